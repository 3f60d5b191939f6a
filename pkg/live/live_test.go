package live

import (
	"bytes"
	"log/slog"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/spindle"
	"github.com/vango-dev/spindle/pkg/dom"
	"github.com/vango-dev/spindle/pkg/protocol"
	"github.com/vango-dev/spindle/pkg/reactive"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func testConfig() *Config {
	return &Config{
		HeartbeatInterval: time.Hour,
		Logger:            quietLogger(),
	}
}

// counterPage renders a button showing a count and a paragraph showing the
// current location.
func counterPage(app *spindle.App) dom.Node {
	doc := app.Document()
	count := reactive.NewValue(app.Graph(), 0)
	location := reactive.NewValue(app.Graph(), app.Location())

	label := reactive.Map(count, strconv.Itoa)
	btn := dom.NewElement(doc, "button").Child(dom.NewTextComputed(doc, label))
	btn.OnClick(func() { count.Change(func(n *int) { *n++ }) })

	stop := app.Driver().OnLocationChange(func(path string) {
		app.Dispatch(func() { location.Set(path) })
	})
	p := dom.NewElement(doc, "p").Child(dom.NewTextComputed(doc, location))
	p.AddCleanup(stop)

	return dom.NewElement(doc, "main").Children(btn, p)
}

func startServer(t *testing.T, h *Handler) string {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial(%q) failed: %v", url, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func writeFrame(t *testing.T, conn *websocket.Conn, f *protocol.Frame) {
	t.Helper()
	if err := conn.WriteMessage(websocket.BinaryMessage, f.Encode()); err != nil {
		t.Fatalf("write %s frame failed: %v", f.Type, err)
	}
}

func readFrame(t *testing.T, conn *websocket.Conn) *protocol.Frame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	frame, err := protocol.DecodeFrame(msg)
	if err != nil {
		t.Fatalf("DecodeFrame failed: %v", err)
	}
	return frame
}

func handshake(t *testing.T, conn *websocket.Conn, hello *protocol.ClientHello) *protocol.ServerHello {
	t.Helper()
	writeFrame(t, conn, protocol.NewFrame(protocol.FrameHandshake, protocol.EncodeClientHello(hello)))
	frame := readFrame(t, conn)
	if frame.Type != protocol.FrameHandshake {
		t.Fatalf("frame type = %v, want %v", frame.Type, protocol.FrameHandshake)
	}
	sh, err := protocol.DecodeServerHello(frame.Payload)
	if err != nil {
		t.Fatalf("DecodeServerHello failed: %v", err)
	}
	return sh
}

func readCommands(t *testing.T, conn *websocket.Conn) []dom.Command {
	t.Helper()
	var out []dom.Command
	for {
		frame := readFrame(t, conn)
		if frame.Type != protocol.FrameCommands {
			t.Fatalf("frame type = %v, want %v", frame.Type, protocol.FrameCommands)
		}
		cmds, err := protocol.DecodeCommands(frame.Payload)
		if err != nil {
			t.Fatalf("DecodeCommands failed: %v", err)
		}
		out = append(out, cmds...)
		if !frame.Flags.Has(protocol.FlagContinued) {
			return out
		}
	}
}

func connect(t *testing.T, url, path string) (*websocket.Conn, []dom.Command) {
	t.Helper()
	conn := dial(t, url)
	sh := handshake(t, conn, &protocol.ClientHello{Version: protocol.CurrentVersion, Path: path})
	if sh.Status != protocol.HandshakeOK {
		t.Fatalf("handshake status = %v, want OK", sh.Status)
	}
	if sh.SessionID == "" {
		t.Fatal("handshake returned empty session id")
	}
	return conn, readCommands(t, conn)
}

func findCallback(t *testing.T, cmds []dom.Command, kind dom.EventKind) dom.CallbackID {
	t.Helper()
	for _, c := range cmds {
		if c.Kind == dom.KindCallbackAdd && c.Name == string(kind) {
			return c.Callback
		}
	}
	t.Fatalf("no %s callback in %v", kind, cmds)
	return 0
}

func findText(t *testing.T, cmds []dom.Command, text string) dom.DomID {
	t.Helper()
	for _, c := range cmds {
		if c.Kind == dom.KindCreateText && c.Value == text {
			return c.ID
		}
	}
	t.Fatalf("no text %q in %v", text, cmds)
	return 0
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSessionMountsAndHandlesClick(t *testing.T) {
	url := startServer(t, NewHandler(counterPage, testConfig()))
	conn, cmds := connect(t, url, "/counter")

	got := dom.DebugFragment(cmds)
	cb := findCallback(t, cmds, dom.EventClick)
	want := "<main><button click=" + strconv.FormatUint(uint64(cb), 10) + ">0</button><p>/counter</p></main>"
	if got != want {
		t.Fatalf("initial fragment = %q, want %q", got, want)
	}
	textID := findText(t, cmds, "0")

	ev := &protocol.EventMessage{Callback: cb, Event: dom.Event{Kind: dom.EventClick}}
	writeFrame(t, conn, protocol.NewFrame(protocol.FrameEvent, protocol.EncodeEvent(ev)))

	update := readCommands(t, conn)
	if len(update) != 1 || update[0] != dom.UpdateText(textID, "1") {
		t.Errorf("commands after click = %v, want [%v]", update, dom.UpdateText(textID, "1"))
	}
}

func TestSessionLocationChange(t *testing.T) {
	url := startServer(t, NewHandler(counterPage, testConfig()))
	conn, cmds := connect(t, url, "/a")
	textID := findText(t, cmds, "/a")

	writeFrame(t, conn, protocol.NewFrame(protocol.FrameControl, protocol.EncodeControl(protocol.NewLocation("/b"))))

	update := readCommands(t, conn)
	if len(update) != 1 || update[0] != dom.UpdateText(textID, "/b") {
		t.Errorf("commands after location = %v, want [%v]", update, dom.UpdateText(textID, "/b"))
	}
}

func TestSessionPushLocation(t *testing.T) {
	mount := func(app *spindle.App) dom.Node {
		btn := dom.NewElement(app.Document(), "button")
		btn.OnClick(func() { app.Driver().PushLocation("/next") })
		return btn
	}
	url := startServer(t, NewHandler(mount, testConfig()))
	conn, cmds := connect(t, url, "/")

	ev := &protocol.EventMessage{Callback: findCallback(t, cmds, dom.EventClick), Event: dom.Event{Kind: dom.EventClick}}
	writeFrame(t, conn, protocol.NewFrame(protocol.FrameEvent, protocol.EncodeEvent(ev)))

	frame := readFrame(t, conn)
	if frame.Type != protocol.FrameControl {
		t.Fatalf("frame type = %v, want Control", frame.Type)
	}
	c, err := protocol.DecodeControl(frame.Payload)
	if err != nil {
		t.Fatalf("DecodeControl failed: %v", err)
	}
	if c.Type != protocol.ControlLocation || c.Path != "/next" {
		t.Errorf("control = %+v, want Location /next", c)
	}
}

func TestSessionAnswersPing(t *testing.T) {
	url := startServer(t, NewHandler(counterPage, testConfig()))
	conn, _ := connect(t, url, "/")

	writeFrame(t, conn, protocol.NewFrame(protocol.FrameControl, protocol.EncodeControl(protocol.NewPing(42))))

	frame := readFrame(t, conn)
	c, err := protocol.DecodeControl(frame.Payload)
	if err != nil {
		t.Fatalf("DecodeControl failed: %v", err)
	}
	if c.Type != protocol.ControlPong || c.Timestamp != 42 {
		t.Errorf("control = %+v, want Pong 42", c)
	}
}

func TestSessionRejectsInvalidEvent(t *testing.T) {
	url := startServer(t, NewHandler(counterPage, testConfig()))
	conn, _ := connect(t, url, "/")

	writeFrame(t, conn, protocol.NewFrame(protocol.FrameEvent, []byte{0x01}))

	frame := readFrame(t, conn)
	if frame.Type != protocol.FrameError {
		t.Fatalf("frame type = %v, want Error", frame.Type)
	}
	em, err := protocol.DecodeErrorMessage(frame.Payload)
	if err != nil {
		t.Fatalf("DecodeErrorMessage failed: %v", err)
	}
	if em.Code != protocol.ErrInvalidEvent {
		t.Errorf("error code = %v, want InvalidEvent", em.Code)
	}
}

func TestHandshakeVersionMismatch(t *testing.T) {
	url := startServer(t, NewHandler(counterPage, testConfig()))
	conn := dial(t, url)

	sh := handshake(t, conn, &protocol.ClientHello{Version: protocol.ProtocolVersion{Major: 9}, Path: "/"})
	if sh.Status != protocol.HandshakeVersionMismatch {
		t.Errorf("status = %v, want VersionMismatch", sh.Status)
	}
}

func TestHandshakeInvalidFrame(t *testing.T) {
	url := startServer(t, NewHandler(counterPage, testConfig()))
	conn := dial(t, url)

	writeFrame(t, conn, protocol.NewFrame(protocol.FrameEvent, nil))
	frame := readFrame(t, conn)
	sh, err := protocol.DecodeServerHello(frame.Payload)
	if err != nil {
		t.Fatalf("DecodeServerHello failed: %v", err)
	}
	if sh.Status != protocol.HandshakeInvalidFormat {
		t.Errorf("status = %v, want InvalidFormat", sh.Status)
	}
}

func TestHandshakeServerBusy(t *testing.T) {
	cfg := testConfig()
	cfg.MaxSessions = 1
	h := NewHandler(counterPage, cfg)
	url := startServer(t, h)

	connect(t, url, "/")
	waitFor(t, "first session", func() bool { return h.Manager().Len() == 1 })

	conn := dial(t, url)
	sh := handshake(t, conn, &protocol.ClientHello{Version: protocol.CurrentVersion, Path: "/"})
	if sh.Status != protocol.HandshakeServerBusy {
		t.Errorf("status = %v, want ServerBusy", sh.Status)
	}
}

func TestMountPanicSendsFatalError(t *testing.T) {
	mount := func(*spindle.App) dom.Node { panic("boom") }
	url := startServer(t, NewHandler(mount, testConfig()))
	conn := dial(t, url)
	handshake(t, conn, &protocol.ClientHello{Version: protocol.CurrentVersion, Path: "/"})

	frame := readFrame(t, conn)
	if frame.Type != protocol.FrameError {
		t.Fatalf("frame type = %v, want Error", frame.Type)
	}
	em, err := protocol.DecodeErrorMessage(frame.Payload)
	if err != nil {
		t.Fatalf("DecodeErrorMessage failed: %v", err)
	}
	if !em.Fatal || em.Code != protocol.ErrServerError {
		t.Errorf("error = %+v, want fatal ServerError", em)
	}
}

type recordObserver struct {
	mu     sync.Mutex
	opened []string
	closed []string
}

func (o *recordObserver) SessionOpened(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opened = append(o.opened, id)
}

func (o *recordObserver) SessionClosed(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = append(o.closed, id)
}

func (o *recordObserver) counts() (int, int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.opened), len(o.closed)
}

func TestManagerTracksSessions(t *testing.T) {
	obs := &recordObserver{}
	m := NewManager(obs)
	h := NewHandler(counterPage, testConfig(), WithManager(m))
	url := startServer(t, h)

	conn, _ := connect(t, url, "/")
	waitFor(t, "session registration", func() bool { return m.Len() == 1 })

	ids := m.IDs()
	s, ok := m.Get(ids[0])
	if !ok {
		t.Fatalf("Get(%q) not found", ids[0])
	}
	if got := s.Location(); got != "/" {
		t.Errorf("Location() = %q, want /", got)
	}

	writeFrame(t, conn, protocol.NewFrame(protocol.FrameControl,
		protocol.EncodeControl(protocol.NewClose(protocol.CloseGoingAway, "bye"))))

	waitFor(t, "session removal", func() bool { return m.Len() == 0 })
	opened, closed := obs.counts()
	if opened != 1 || closed != 1 {
		t.Errorf("observer opened=%d closed=%d, want 1 and 1", opened, closed)
	}
	if created, total := m.Totals(); created != 1 || total != 1 {
		t.Errorf("Totals() = %d, %d, want 1, 1", created, total)
	}
}

func TestManagerCloseAll(t *testing.T) {
	h := NewHandler(counterPage, testConfig())
	url := startServer(t, h)

	conn, _ := connect(t, url, "/")
	waitFor(t, "session registration", func() bool { return h.Manager().Len() == 1 })

	h.Manager().CloseAll(protocol.CloseServerShutdown, "restart")

	frame := readFrame(t, conn)
	c, err := protocol.DecodeControl(frame.Payload)
	if err != nil {
		t.Fatalf("DecodeControl failed: %v", err)
	}
	if c.Type != protocol.ControlClose || c.Reason != protocol.CloseServerShutdown {
		t.Errorf("control = %+v, want Close ServerShutdown", c)
	}
	waitFor(t, "session removal", func() bool { return h.Manager().Len() == 0 })
}
