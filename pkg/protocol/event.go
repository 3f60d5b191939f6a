package protocol

import (
	"fmt"

	"github.com/vango-dev/spindle/pkg/dom"
)

// EventMessage is a callback firing in the browser.
type EventMessage struct {
	Callback dom.CallbackID
	Event    dom.Event
}

const (
	modAlt byte = 1 << iota
	modCtrl
	modShift
	modMeta
)

// EncodeEvent encodes an event message.
func EncodeEvent(m *EventMessage) []byte {
	e := NewEncoder()
	EncodeEventTo(e, m)
	return e.Bytes()
}

// EncodeEventTo encodes an event message using the provided encoder.
//
//	[Callback: varint][Kind: string][payload by kind]
func EncodeEventTo(e *Encoder, m *EventMessage) {
	e.WriteUvarint(uint64(m.Callback))
	e.WriteString(string(m.Event.Kind))

	switch m.Event.Kind {
	case dom.EventInput:
		e.WriteString(m.Event.Value)
	case dom.EventKeyDown, dom.EventHookKeyDown:
		k := m.Event.Key
		e.WriteString(k.Key)
		e.WriteString(k.Code)
		var mods byte
		if k.Alt {
			mods |= modAlt
		}
		if k.Ctrl {
			mods |= modCtrl
		}
		if k.Shift {
			mods |= modShift
		}
		if k.Meta {
			mods |= modMeta
		}
		e.WriteByte(mods)
	case dom.EventDropFile:
		e.WriteUvarint(uint64(len(m.Event.Files)))
		for _, f := range m.Event.Files {
			e.WriteString(f.Name)
			e.WriteLenBytes(f.Data)
		}
	}
}

// DecodeEvent decodes an event message.
func DecodeEvent(data []byte) (*EventMessage, error) {
	return DecodeEventFrom(NewDecoder(data))
}

// DecodeEventFrom decodes an event message from a decoder.
func DecodeEventFrom(d *Decoder) (*EventMessage, error) {
	cb, err := d.ReadUvarint()
	if err != nil {
		return nil, err
	}
	kind, err := d.ReadString()
	if err != nil {
		return nil, err
	}
	m := &EventMessage{
		Callback: dom.CallbackID(cb),
		Event:    dom.Event{Kind: dom.EventKind(kind)},
	}

	switch m.Event.Kind {
	case dom.EventClick, dom.EventMouseEnter, dom.EventMouseLeave:
	case dom.EventInput:
		if m.Event.Value, err = d.ReadString(); err != nil {
			return nil, err
		}
	case dom.EventKeyDown, dom.EventHookKeyDown:
		k := &m.Event.Key
		if k.Key, err = d.ReadString(); err != nil {
			return nil, err
		}
		if k.Code, err = d.ReadString(); err != nil {
			return nil, err
		}
		mods, err := d.ReadByte()
		if err != nil {
			return nil, err
		}
		k.Alt = mods&modAlt != 0
		k.Ctrl = mods&modCtrl != 0
		k.Shift = mods&modShift != 0
		k.Meta = mods&modMeta != 0
	case dom.EventDropFile:
		n, err := d.ReadCollectionCount()
		if err != nil {
			return nil, err
		}
		m.Event.Files = make([]dom.DropFile, 0, n)
		for i := 0; i < n; i++ {
			name, err := d.ReadString()
			if err != nil {
				return nil, err
			}
			data, err := d.ReadLenBytes()
			if err != nil {
				return nil, err
			}
			m.Event.Files = append(m.Event.Files, dom.DropFile{Name: name, Data: data})
		}
	default:
		return nil, fmt.Errorf("protocol: unknown event kind %q", kind)
	}
	return m, nil
}
