package live

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/spindle"
	"github.com/vango-dev/spindle/pkg/cell"
	"github.com/vango-dev/spindle/pkg/dom"
	"github.com/vango-dev/spindle/pkg/protocol"
)

// Handler upgrades requests to websockets and runs one App per connection.
type Handler struct {
	mount    spindle.MountFunc
	config   *Config
	manager  *Manager
	upgrader websocket.Upgrader
	appOpts  []spindle.Option
	tracer   trace.Tracer
	logger   *slog.Logger
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithManager shares a session manager between handlers.
func WithManager(m *Manager) HandlerOption {
	return func(h *Handler) { h.manager = m }
}

// WithAppOptions adds options to every session App.
func WithAppOptions(opts ...spindle.Option) HandlerOption {
	return func(h *Handler) { h.appOpts = append(h.appOpts, opts...) }
}

// WithTracer sets the tracer used for event dispatch spans.
func WithTracer(t trace.Tracer) HandlerOption {
	return func(h *Handler) { h.tracer = t }
}

// NewHandler returns a handler that mounts the application built by mount
// for every connecting browser.
func NewHandler(mount spindle.MountFunc, config *Config, opts ...HandlerOption) *Handler {
	config = config.withDefaults()
	h := &Handler{
		mount:  mount,
		config: config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		tracer: otel.Tracer(spindle.TracerName),
		logger: config.Logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.manager == nil {
		h.manager = NewManager(nil)
	}
	return h
}

// Manager returns the handler's session manager.
func (h *Handler) Manager() *Manager {
	return h.manager
}

// ServeHTTP implements http.Handler. It blocks for the lifetime of the
// session.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	conn.SetReadLimit(h.config.MaxMessageSize)
	hello, status := h.readHello(conn)
	if status == protocol.HandshakeOK && h.config.MaxSessions > 0 && h.manager.Len() >= h.config.MaxSessions {
		status = protocol.HandshakeServerBusy
	}
	if status != protocol.HandshakeOK {
		h.sendHello(conn, &protocol.ServerHello{Status: status})
		conn.Close()
		return
	}

	s := newSession(uuid.NewString(), conn, hello.Path, h.config)
	if err := h.sendHello(conn, &protocol.ServerHello{
		Status:     protocol.HandshakeOK,
		SessionID:  s.id,
		ServerTime: uint64(time.Now().UnixMilli()),
	}); err != nil {
		conn.Close()
		return
	}

	h.manager.add(s)
	defer h.manager.remove(s.id)
	h.run(s)
}

// run mounts the application and drives its loop until the session ends.
func (h *Handler) run(s *Session) {
	opts := append([]spindle.Option{spindle.WithLogger(s.logger), spindle.WithTracer(h.tracer)}, h.appOpts...)
	app := spindle.New(s, opts...)
	defer app.Close()

	root, err := mountSafely(app, h.mount)
	if err != nil {
		s.logger.Error("mount failed", "error", err)
		s.sendError(protocol.NewFatalError(protocol.ErrServerError, "mount failed"))
		s.Close(protocol.CloseError, err.Error())
		return
	}
	app.Mount(root)

	s.OnEvent(func(m *protocol.EventMessage) {
		app.Dispatch(func() { h.handleEvent(s, app, m) })
	})

	go s.WriteLoop()
	go s.ReadLoop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-s.Done()
		cancel()
	}()

	s.logger.Info("session started", "path", s.Location())
	if err := app.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("session loop stopped", "error", err)
	}
	s.Close(protocol.CloseNormal, "")
	s.logger.Info("session ended", "commands", s.Stats().Commands)
}

// handleEvent runs on the app loop.
func (h *Handler) handleEvent(s *Session, app *spindle.App, m *protocol.EventMessage) {
	_, span := h.tracer.Start(app.Context(), "spindle.live.event",
		trace.WithAttributes(
			attribute.String("spindle.session", s.id),
			attribute.String("spindle.event", string(m.Event.Kind)),
		))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(*cell.ReentrancyError); ok {
				panic(r)
			}
			s.logger.Error("event handler panic",
				"panic", r,
				"stack", string(debug.Stack()))
			s.sendError(protocol.NewError(protocol.ErrHandlerPanic, fmt.Sprint(r)))
		}
	}()
	app.Document().HandleEvent(m.Callback, m.Event)
}

func (h *Handler) readHello(conn *websocket.Conn) (*protocol.ClientHello, protocol.HandshakeStatus) {
	conn.SetReadDeadline(time.Now().Add(h.config.HandshakeTimeout))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		h.logger.Error("handshake read failed", "error", err)
		return nil, protocol.HandshakeInvalidFormat
	}
	frame, err := protocol.DecodeFrame(msg)
	if err != nil || frame.Type != protocol.FrameHandshake {
		h.logger.Error("handshake frame invalid", "error", err)
		return nil, protocol.HandshakeInvalidFormat
	}
	hello, err := protocol.DecodeClientHello(frame.Payload)
	if err != nil {
		h.logger.Error("handshake decode failed", "error", err)
		return nil, protocol.HandshakeInvalidFormat
	}
	if !hello.Version.Compatible() {
		h.logger.Warn("protocol version mismatch",
			"client", fmt.Sprintf("%d.%d", hello.Version.Major, hello.Version.Minor))
		return nil, protocol.HandshakeVersionMismatch
	}
	return hello, protocol.HandshakeOK
}

func (h *Handler) sendHello(conn *websocket.Conn, hello *protocol.ServerHello) error {
	frame := protocol.NewFrame(protocol.FrameHandshake, protocol.EncodeServerHello(hello))
	conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
	if err := conn.WriteMessage(websocket.BinaryMessage, frame.Encode()); err != nil {
		h.logger.Error("handshake write failed", "error", err)
		return err
	}
	return nil
}

func mountSafely(app *spindle.App, mount spindle.MountFunc) (root dom.Node, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			if _, ok := rec.(*cell.ReentrancyError); ok {
				panic(rec)
			}
			err = fmt.Errorf("live: mount panicked: %v", rec)
		}
	}()
	root = mount(app)
	if root == nil {
		return nil, errors.New("live: mount returned no node")
	}
	return root, nil
}
