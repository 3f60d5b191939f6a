package protocol

import (
	"errors"
	"fmt"

	"github.com/vango-dev/spindle/pkg/dom"
)

// ErrUnknownCommand is returned when a command kind is not recognised.
var ErrUnknownCommand = errors.New("protocol: unknown command kind")

// EncodeCommands encodes a command batch.
func EncodeCommands(cmds []dom.Command) []byte {
	e := NewEncoder()
	EncodeCommandsTo(e, cmds)
	return e.Bytes()
}

// EncodeCommandsTo encodes a command batch using the provided encoder.
func EncodeCommandsTo(e *Encoder, cmds []dom.Command) {
	e.WriteUvarint(uint64(len(cmds)))
	for i := range cmds {
		encodeCommand(e, &cmds[i])
	}
}

func encodeCommand(e *Encoder, c *dom.Command) {
	e.WriteByte(byte(c.Kind))
	switch c.Kind {
	case dom.KindCreateNode:
		e.WriteUvarint(uint64(c.ID))
		e.WriteString(c.Name)
	case dom.KindCreateText, dom.KindUpdateText, dom.KindCreateComment:
		e.WriteUvarint(uint64(c.ID))
		e.WriteString(c.Value)
	case dom.KindSetAttr:
		e.WriteUvarint(uint64(c.ID))
		e.WriteString(c.Name)
		e.WriteString(c.Value)
	case dom.KindRemoveAttr:
		e.WriteUvarint(uint64(c.ID))
		e.WriteString(c.Name)
	case dom.KindInsertBefore:
		e.WriteUvarint(uint64(c.ID))
		e.WriteUvarint(uint64(c.Child))
		e.WriteUvarint(uint64(c.Ref))
	case dom.KindRemove:
		e.WriteUvarint(uint64(c.ID))
	case dom.KindInsertCss:
		e.WriteString(c.Name)
		e.WriteString(c.Value)
	case dom.KindCallbackAdd, dom.KindCallbackRemove:
		e.WriteUvarint(uint64(c.ID))
		e.WriteString(c.Name)
		e.WriteUvarint(uint64(c.Callback))
	}
}

// DecodeCommands decodes a command batch.
func DecodeCommands(data []byte) ([]dom.Command, error) {
	return DecodeCommandsFrom(NewDecoder(data))
}

// DecodeCommandsFrom decodes a command batch from a decoder.
func DecodeCommandsFrom(d *Decoder) ([]dom.Command, error) {
	count, err := d.ReadCollectionCount()
	if err != nil {
		return nil, err
	}
	cmds := make([]dom.Command, 0, count)
	for i := 0; i < count; i++ {
		c, err := decodeCommand(d)
		if err != nil {
			return nil, fmt.Errorf("protocol: command %d: %w", i, err)
		}
		cmds = append(cmds, c)
	}
	return cmds, nil
}

func decodeCommand(d *Decoder) (dom.Command, error) {
	b, err := d.ReadByte()
	if err != nil {
		return dom.Command{}, err
	}
	c := dom.Command{Kind: dom.Kind(b)}

	readID := func(dst *dom.DomID) {
		if err != nil {
			return
		}
		var v uint64
		v, err = d.ReadUvarint()
		*dst = dom.DomID(v)
	}
	readString := func(dst *string) {
		if err != nil {
			return
		}
		*dst, err = d.ReadString()
	}

	switch c.Kind {
	case dom.KindCreateNode:
		readID(&c.ID)
		readString(&c.Name)
	case dom.KindCreateText, dom.KindUpdateText, dom.KindCreateComment:
		readID(&c.ID)
		readString(&c.Value)
	case dom.KindSetAttr:
		readID(&c.ID)
		readString(&c.Name)
		readString(&c.Value)
	case dom.KindRemoveAttr:
		readID(&c.ID)
		readString(&c.Name)
	case dom.KindInsertBefore:
		readID(&c.ID)
		readID(&c.Child)
		readID(&c.Ref)
	case dom.KindRemove:
		readID(&c.ID)
	case dom.KindInsertCss:
		readString(&c.Name)
		readString(&c.Value)
	case dom.KindCallbackAdd, dom.KindCallbackRemove:
		readID(&c.ID)
		readString(&c.Name)
		if err == nil {
			var v uint64
			v, err = d.ReadUvarint()
			c.Callback = dom.CallbackID(v)
		}
	default:
		return dom.Command{}, fmt.Errorf("%w: 0x%02x", ErrUnknownCommand, b)
	}
	return c, err
}

// CommandFrames packs a command batch into as few frames as fit
// MaxPayloadSize. Every frame but the last carries FlagContinued. Each frame
// decodes on its own with DecodeCommands.
func CommandFrames(cmds []dom.Command) ([]*Frame, error) {
	var frames []*Frame
	body := NewEncoder()
	one := NewEncoder()
	count := 0

	flush := func(flags FrameFlags) {
		e := NewEncoder()
		e.WriteUvarint(uint64(count))
		e.WriteBytes(body.Bytes())
		frames = append(frames, NewFrameWithFlags(FrameCommands, flags, e.Bytes()))
		body.Reset()
		count = 0
	}

	for i := range cmds {
		one.Reset()
		encodeCommand(one, &cmds[i])
		if one.Len()+MaxVarintLen > MaxPayloadSize {
			return nil, fmt.Errorf("%w: %s", ErrFrameTooLarge, cmds[i].Kind)
		}
		if body.Len()+one.Len()+MaxVarintLen > MaxPayloadSize {
			flush(FlagContinued)
		}
		body.WriteBytes(one.Bytes())
		count++
	}
	flush(0)
	return frames, nil
}

// MaxVarintLen is the maximum number of bytes a varint can occupy.
const MaxVarintLen = 10
