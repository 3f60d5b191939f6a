package live

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vango-dev/spindle/pkg/dom"
	"github.com/vango-dev/spindle/pkg/fetch"
	"github.com/vango-dev/spindle/pkg/protocol"
)

// ErrSessionClosed is returned when writing to a closed session.
var ErrSessionClosed = errors.New("live: session closed")

// Session is a dom.Driver that forwards document commands to a browser over
// a websocket and receives its events and location changes.
type Session struct {
	id     string
	conn   *websocket.Conn
	config *Config
	logger *slog.Logger
	fetch  fetch.Func

	// writeMu serialises frame writes; gorilla connections allow one writer.
	writeMu sync.Mutex

	mu        sync.Mutex
	location  string
	listeners map[int]func(string)
	nextID    int
	onEvent   func(*protocol.EventMessage)

	created       time.Time
	lastActive    atomic.Int64
	bytesSent     atomic.Uint64
	bytesReceived atomic.Uint64
	commandsSent  atomic.Uint64

	done      chan struct{}
	closeOnce sync.Once
}

var _ dom.Driver = (*Session)(nil)

func newSession(id string, conn *websocket.Conn, path string, config *Config) *Session {
	s := &Session{
		id:        id,
		conn:      conn,
		config:    config,
		logger:    config.Logger.With("session", id),
		fetch:     config.Fetcher,
		location:  path,
		listeners: make(map[int]func(string)),
		created:   time.Now(),
		done:      make(chan struct{}),
	}
	s.lastActive.Store(s.created.UnixNano())
	return s
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Done is closed when the session ends.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Closed reports whether the session has ended.
func (s *Session) Closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// OnEvent sets the function browser events are delivered to. It is called
// on the read goroutine.
func (s *Session) OnEvent(fn func(*protocol.EventMessage)) {
	s.mu.Lock()
	s.onEvent = fn
	s.mu.Unlock()
}

// Apply implements dom.Driver. The batch is split into as many command
// frames as needed.
func (s *Session) Apply(cmds []dom.Command) {
	if len(cmds) == 0 || s.Closed() {
		return
	}
	frames, err := protocol.CommandFrames(cmds)
	if err != nil {
		s.logger.Error("command encode error", "error", err)
		s.sendError(protocol.NewFatalError(protocol.ErrServerError, err.Error()))
		s.shutdown()
		return
	}
	for _, f := range frames {
		if err := s.writeFrame(f); err != nil {
			return
		}
	}
	s.commandsSent.Add(uint64(len(cmds)))
}

// Location implements dom.Driver.
func (s *Session) Location() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.location
}

// PushLocation implements dom.Driver. The browser updates its history
// without reporting the change back.
func (s *Session) PushLocation(path string) {
	s.mu.Lock()
	s.location = path
	s.mu.Unlock()
	s.writeControl(protocol.NewLocation(path))
}

// OnLocationChange implements dom.Driver. fn runs on the read goroutine.
func (s *Session) OnLocationChange(fn func(path string)) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Fetch implements dom.Driver. Requests are performed on the server.
func (s *Session) Fetch(ctx context.Context, req dom.FetchRequest) dom.FetchResult {
	return s.fetch(ctx, req)
}

// SetInterval implements dom.Driver. The ticker stops with the session.
func (s *Session) SetInterval(d time.Duration, fn func()) (cancel func()) {
	stop := make(chan struct{})
	var once sync.Once
	go func() {
		ticker := time.NewTicker(d)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				fn()
			case <-stop:
				return
			case <-s.done:
				return
			}
		}
	}()
	return func() { once.Do(func() { close(stop) }) }
}

// ReadLoop reads frames until the connection fails or the session closes.
func (s *Session) ReadLoop() {
	defer s.shutdown()

	for {
		s.conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))

		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				s.logger.Error("read error", "error", err)
			}
			return
		}

		s.lastActive.Store(time.Now().UnixNano())
		s.bytesReceived.Add(uint64(len(msg)))

		frame, err := protocol.DecodeFrame(msg)
		if err != nil {
			s.logger.Error("frame decode error", "error", err)
			s.sendError(protocol.NewError(protocol.ErrInvalidFrame, "invalid frame"))
			continue
		}

		switch frame.Type {
		case protocol.FrameEvent:
			s.handleEventFrame(frame.Payload)
		case protocol.FrameControl:
			s.handleControlFrame(frame.Payload)
		default:
			s.logger.Warn("unexpected frame type", "type", frame.Type)
		}
	}
}

func (s *Session) handleEventFrame(payload []byte) {
	m, err := protocol.DecodeEvent(payload)
	if err != nil {
		s.logger.Error("event decode error", "error", err)
		s.sendError(protocol.NewError(protocol.ErrInvalidEvent, "invalid event format"))
		return
	}

	s.mu.Lock()
	fn := s.onEvent
	s.mu.Unlock()
	if fn == nil {
		s.logger.Debug("event before mount dropped", "callback", m.Callback)
		return
	}
	fn(m)
}

func (s *Session) handleControlFrame(payload []byte) {
	c, err := protocol.DecodeControl(payload)
	if err != nil {
		s.logger.Error("control decode error", "error", err)
		return
	}

	switch c.Type {
	case protocol.ControlPing:
		s.writeControl(protocol.NewPong(c.Timestamp))

	case protocol.ControlPong:
		s.logger.Debug("received pong")

	case protocol.ControlLocation:
		s.mu.Lock()
		s.location = c.Path
		fns := make([]func(string), 0, len(s.listeners))
		for _, fn := range s.listeners {
			fns = append(fns, fn)
		}
		s.mu.Unlock()
		for _, fn := range fns {
			fn(c.Path)
		}

	case protocol.ControlClose:
		s.logger.Info("client closing", "reason", c.Reason, "message", c.Message)
		s.shutdown()
	}
}

// WriteLoop sends heartbeats until the session closes.
func (s *Session) WriteLoop() {
	ticker := time.NewTicker(s.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ts := uint64(time.Now().UnixMilli())
			if err := s.writeControl(protocol.NewPing(ts)); err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *Session) writeControl(c *protocol.Control) error {
	return s.writeFrame(protocol.NewFrame(protocol.FrameControl, protocol.EncodeControl(c)))
}

func (s *Session) sendError(em *protocol.ErrorMessage) {
	s.writeFrame(protocol.NewFrame(protocol.FrameError, protocol.EncodeErrorMessage(em)))
}

// writeFrame writes one frame. A failed write ends the session.
func (s *Session) writeFrame(f *protocol.Frame) error {
	if s.Closed() {
		return ErrSessionClosed
	}
	data := f.Encode()

	s.writeMu.Lock()
	s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	err := s.conn.WriteMessage(websocket.BinaryMessage, data)
	s.writeMu.Unlock()

	if err != nil {
		s.logger.Error("write error", "error", err, "frame", f.Type)
		s.shutdown()
		return err
	}
	s.bytesSent.Add(uint64(len(data)))
	return nil
}

// Close tells the browser the session is over and closes the connection.
func (s *Session) Close(reason protocol.CloseReason, message string) {
	if s.Closed() {
		return
	}
	s.writeControl(protocol.NewClose(reason, message))
	s.shutdown()
}

func (s *Session) shutdown() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

// Stats is a snapshot of session counters.
type Stats struct {
	ID            string
	Location      string
	Created       time.Time
	LastActive    time.Time
	BytesSent     uint64
	BytesReceived uint64
	Commands      uint64
}

// Stats returns the session's counters.
func (s *Session) Stats() Stats {
	return Stats{
		ID:            s.id,
		Location:      s.Location(),
		Created:       s.created,
		LastActive:    time.Unix(0, s.lastActive.Load()),
		BytesSent:     s.bytesSent.Load(),
		BytesReceived: s.bytesReceived.Load(),
		Commands:      s.commandsSent.Load(),
	}
}
