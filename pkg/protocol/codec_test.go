package protocol

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/vango-dev/spindle/pkg/dom"
)

func TestCommandsRoundTrip(t *testing.T) {
	cmds := []dom.Command{
		dom.CreateNode(2, "div"),
		dom.CreateText(3, "héllo"),
		dom.UpdateText(3, "bye"),
		dom.CreateComment(4, "list"),
		dom.SetAttr(2, "class", "autocss_x"),
		dom.RemoveAttr(2, "hidden"),
		dom.InsertBefore(2, 3, 0),
		dom.InsertBefore(2, 5, 4),
		dom.Remove(3),
		dom.InsertCss(".autocss_x", "color: red;"),
		dom.CallbackAdd(2, dom.EventClick, 9),
		dom.CallbackRemove(2, dom.EventClick, 9),
	}

	got, err := DecodeCommands(EncodeCommands(cmds))
	if err != nil {
		t.Fatalf("DecodeCommands() error = %v", err)
	}
	if len(got) != len(cmds) {
		t.Fatalf("decoded %d commands, want %d", len(got), len(cmds))
	}
	for i := range cmds {
		if got[i] != cmds[i] {
			t.Errorf("command %d = %v, want %v", i, got[i], cmds[i])
		}
	}
}

func TestDecodeCommandsErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, io.ErrUnexpectedEOF},
		{"unknown kind", []byte{1, 0xFF}, ErrUnknownCommand},
		{"truncated", []byte{1, byte(dom.KindSetAttr), 2, 5, 'a'}, io.ErrUnexpectedEOF},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeCommands(tt.data)
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCommandFramesSplitLargeBatches(t *testing.T) {
	long := strings.Repeat("x", 1000)
	var cmds []dom.Command
	for i := 0; i < 200; i++ {
		cmds = append(cmds, dom.CreateText(dom.DomID(i+2), long))
	}

	frames, err := CommandFrames(cmds)
	if err != nil {
		t.Fatalf("CommandFrames() error = %v", err)
	}
	if len(frames) < 3 {
		t.Fatalf("expected the batch to span several frames, got %d", len(frames))
	}

	var all []dom.Command
	for i, f := range frames {
		if len(f.Payload) > MaxPayloadSize {
			t.Errorf("frame %d payload %d exceeds limit", i, len(f.Payload))
		}
		last := i == len(frames)-1
		if f.Flags.Has(FlagContinued) == last {
			t.Errorf("frame %d continued flag = %v", i, !last)
		}
		part, err := DecodeCommands(f.Payload)
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		all = append(all, part...)
	}
	if len(all) != len(cmds) {
		t.Errorf("reassembled %d commands, want %d", len(all), len(cmds))
	}
}

func TestCommandFramesRejectsOversizedCommand(t *testing.T) {
	_, err := CommandFrames([]dom.Command{dom.CreateText(2, strings.Repeat("x", MaxPayloadSize))})
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Errorf("error = %v, want ErrFrameTooLarge", err)
	}
}

func TestCommandFramesEmptyBatch(t *testing.T) {
	frames, err := CommandFrames(nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(frames) != 1 {
		t.Fatalf("got %d frames", len(frames))
	}
	cmds, err := DecodeCommands(frames[0].Payload)
	if err != nil || len(cmds) != 0 {
		t.Errorf("got %v, %v", cmds, err)
	}
}

func TestEventRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		msg  EventMessage
	}{
		{"click", EventMessage{Callback: 1, Event: dom.Event{Kind: dom.EventClick}}},
		{"input", EventMessage{Callback: 2, Event: dom.Event{Kind: dom.EventInput, Value: "typed"}}},
		{"keydown", EventMessage{Callback: 3, Event: dom.Event{Kind: dom.EventKeyDown, Key: dom.KeyDownEvent{
			Key: "Enter", Code: "Enter", Ctrl: true, Meta: true,
		}}}},
		{"hook keydown", EventMessage{Callback: 5, Event: dom.Event{Kind: dom.EventHookKeyDown, Key: dom.KeyDownEvent{
			Key: "Escape", Code: "Escape", Shift: true,
		}}}},
		{"mouseleave", EventMessage{Callback: 4, Event: dom.Event{Kind: dom.EventMouseLeave}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeEvent(EncodeEvent(&tt.msg))
			if err != nil {
				t.Fatalf("DecodeEvent() error = %v", err)
			}
			if got.Callback != tt.msg.Callback || got.Event.Kind != tt.msg.Event.Kind ||
				got.Event.Value != tt.msg.Event.Value || got.Event.Key != tt.msg.Event.Key {
				t.Errorf("got %+v, want %+v", got, tt.msg)
			}
		})
	}
}

func TestDropFileEvent(t *testing.T) {
	msg := EventMessage{Callback: 7, Event: dom.Event{Kind: dom.EventDropFile, Files: []dom.DropFile{
		{Name: "a.txt", Data: []byte("hello")},
		{Name: "b.bin", Data: []byte{0, 1, 2}},
	}}}
	got, err := DecodeEvent(EncodeEvent(&msg))
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Event.Files) != 2 {
		t.Fatalf("files = %d", len(got.Event.Files))
	}
	for i, f := range msg.Event.Files {
		if got.Event.Files[i].Name != f.Name || !bytes.Equal(got.Event.Files[i].Data, f.Data) {
			t.Errorf("file %d = %+v, want %+v", i, got.Event.Files[i], f)
		}
	}
}

func TestDecodeEventUnknownKind(t *testing.T) {
	e := NewEncoder()
	e.WriteUvarint(1)
	e.WriteString("scroll")
	if _, err := DecodeEvent(e.Bytes()); err == nil {
		t.Error("expected error for unknown event kind")
	}
}

func TestControlRoundTrip(t *testing.T) {
	tests := []*Control{
		NewPing(1234),
		NewPong(1234),
		NewLocation("/items?page=2"),
		NewClose(CloseServerShutdown, "bye"),
	}
	for _, c := range tests {
		t.Run(c.Type.String(), func(t *testing.T) {
			got, err := DecodeControl(EncodeControl(c))
			if err != nil {
				t.Fatalf("DecodeControl() error = %v", err)
			}
			if *got != *c {
				t.Errorf("got %+v, want %+v", got, c)
			}
		})
	}
}

func TestHandshakeRoundTrip(t *testing.T) {
	ch := &ClientHello{Version: CurrentVersion, Path: "/"}
	gotC, err := DecodeClientHello(EncodeClientHello(ch))
	if err != nil {
		t.Fatal(err)
	}
	if *gotC != *ch {
		t.Errorf("client hello = %+v, want %+v", gotC, ch)
	}
	if !gotC.Version.Compatible() {
		t.Error("current version should be compatible")
	}
	if (ProtocolVersion{Major: CurrentVersion.Major + 1}).Compatible() {
		t.Error("other major version should not be compatible")
	}

	sh := &ServerHello{Status: HandshakeOK, SessionID: "abc", ServerTime: 99}
	gotS, err := DecodeServerHello(EncodeServerHello(sh))
	if err != nil {
		t.Fatal(err)
	}
	if *gotS != *sh {
		t.Errorf("server hello = %+v, want %+v", gotS, sh)
	}
}

func TestErrorMessageRoundTrip(t *testing.T) {
	em := NewFatalError(ErrHandlerPanic, "boom")
	got, err := DecodeErrorMessage(EncodeErrorMessage(em))
	if err != nil {
		t.Fatal(err)
	}
	if *got != *em {
		t.Errorf("got %+v, want %+v", got, em)
	}
	if em.Error() != "fatal: HandlerPanic: boom" {
		t.Errorf("Error() = %q", em.Error())
	}
}

func TestDecoderLimits(t *testing.T) {
	huge := NewEncoder()
	huge.WriteUvarint(MaxFieldSize + 1)
	huge.WriteBytes(make([]byte, MaxFieldSize+1))

	long := NewEncoder()
	long.WriteUvarint(MaxListLen + 1)

	overflow := bytes.Repeat([]byte{0xFF}, 11)

	tests := []struct {
		name string
		read func(*Decoder) error
		in   []byte
		want error
	}{
		{"field too large", func(d *Decoder) error { _, err := d.ReadString(); return err }, huge.Bytes(), ErrFieldTooLarge},
		{"list too long", func(d *Decoder) error { _, err := d.ReadCollectionCount(); return err }, long.Bytes(), ErrListTooLong},
		{"count beyond input", func(d *Decoder) error { _, err := d.ReadCollectionCount(); return err }, []byte{3, 1}, io.ErrUnexpectedEOF},
		{"varint overflow", func(d *Decoder) error { _, err := d.ReadUvarint(); return err }, overflow, ErrVarintOverflow},
		{"short uint64", func(d *Decoder) error { _, err := d.ReadUint64(); return err }, []byte{1, 2, 3}, io.ErrUnexpectedEOF},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.read(NewDecoder(tt.in)); !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLenBytesAreCopied(t *testing.T) {
	e := NewEncoder()
	e.WriteLenBytes([]byte("abc"))
	e.WriteUint16(0xBEEF)
	buf := e.Bytes()

	d := NewDecoder(buf)
	got, err := d.ReadLenBytes()
	if err != nil {
		t.Fatal(err)
	}
	buf[1] = 'z'
	if string(got) != "abc" {
		t.Errorf("ReadLenBytes() aliased the input: %q", got)
	}
	if v, err := d.ReadUint16(); err != nil || v != 0xBEEF {
		t.Errorf("ReadUint16() = %#x, %v", v, err)
	}
}
