package session

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/droid-agent/internal/protocol"
)

// Default session timings.
const (
	DefaultConnectTimeout    = 10 * time.Second
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultRequestTimeout    = 30 * time.Second
	DefaultWriteTimeout      = 10 * time.Second

	// initialScanBuffer is the starting buffer for the line scanner; it
	// grows on demand up to protocol.MaxLineSize.
	initialScanBuffer = 64 * 1024
)

// State is the session lifecycle state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateHandshaking
	StateConnected
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateHandshaking:
		return "handshaking"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// Config holds session parameters. Zero timing values select the defaults.
type Config struct {
	// Host and Port locate the automation server.
	Host string
	Port int

	// DeviceID identifies this agent in handshakes, heartbeats and
	// events.
	DeviceID string

	// DeviceInfo and Capabilities are advertised in the handshake.
	DeviceInfo   protocol.DeviceInfo
	Capabilities []string

	ConnectTimeout    time.Duration
	HeartbeatInterval time.Duration
	RequestTimeout    time.Duration
	WriteTimeout      time.Duration
}

func (c *Config) applyDefaults() {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if len(c.Capabilities) == 0 {
		c.Capabilities = protocol.Capabilities()
	}
}

// Handler serves inbound requests from the server. HandleRequest runs on
// its own goroutine per request and returns the response data object.
type Handler interface {
	HandleRequest(ctx context.Context, req *protocol.RequestMessage) map[string]any
}

// Logger is the optional structured logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Stats is a point-in-time snapshot of session counters.
type Stats struct {
	State            string
	MessagesSent     uint64
	MessagesReceived uint64
	RequestsServed   uint64
	Errors           uint64
	PendingRequests  int
	ConnectedAt      time.Time
}

// Session is one established agent<->server connection: a read loop, a
// heartbeat loop and a request correlator over a single TCP stream.
// Writes are serialized so concurrent senders never interleave lines.
//
// A Session is single-use. When the connection drops it closes itself,
// fails all pending requests and signals Done; the owner dials a new one.
type Session struct {
	cfg        Config
	conn       net.Conn
	handler    Handler
	logger     Logger
	correlator *Correlator

	writeMu sync.Mutex
	state   atomic.Int32

	closeOnce sync.Once
	done      chan struct{}
	closeErr  error
	closeMu   sync.Mutex

	connectedAt time.Time

	messagesSent     atomic.Uint64
	messagesReceived atomic.Uint64
	requestsServed   atomic.Uint64
	errorCount       atomic.Uint64
}

// Dial connects, performs the handshake and starts the session loops.
// The context bounds only the dial and handshake, not the session
// lifetime. handler may be nil when the server never sends requests;
// logger may be nil.
func Dial(ctx context.Context, cfg Config, handler Handler, logger Logger) (*Session, error) {
	cfg.applyDefaults()

	s := &Session{
		cfg:        cfg,
		handler:    handler,
		logger:     logger,
		correlator: NewCorrelator(),
		done:       make(chan struct{}),
	}
	s.state.Store(int32(StateConnecting))

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	dialer := net.Dialer{Timeout: cfg.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		s.state.Store(int32(StateDisconnected))
		return nil, fmt.Errorf("dialing %s: %w", addr, err)
	}
	s.conn = conn

	s.state.Store(int32(StateHandshaking))
	if err := s.handshake(ctx); err != nil {
		conn.Close() //nolint:errcheck // teardown on failed handshake
		s.state.Store(int32(StateDisconnected))
		return nil, err
	}

	s.state.Store(int32(StateConnected))
	s.connectedAt = time.Now()
	s.logf().Info("session established", "server", addr, "device_id", cfg.DeviceID)

	go s.readLoop()
	go s.heartbeatLoop()
	return s, nil
}

// handshake sends the identity message and waits for the server verdict.
// Informational lines (welcome) arriving first are logged and skipped.
func (s *Session) handshake(ctx context.Context) error {
	if err := s.send(protocol.HandshakeMessage{
		Type:         protocol.TypeHandshake,
		DeviceID:     s.cfg.DeviceID,
		Timestamp:    protocol.Now(),
		DeviceInfo:   s.cfg.DeviceInfo,
		Capabilities: s.cfg.Capabilities,
	}); err != nil {
		return fmt.Errorf("%w: sending handshake: %w", ErrHandshakeFailed, err)
	}

	deadline := time.Now().Add(s.cfg.ConnectTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := s.conn.SetReadDeadline(deadline); err != nil {
		return fmt.Errorf("%w: setting deadline: %w", ErrHandshakeFailed, err)
	}
	defer s.conn.SetReadDeadline(time.Time{}) //nolint:errcheck // reset for read loop

	scanner := bufio.NewScanner(s.conn)
	scanner.Buffer(make([]byte, initialScanBuffer), protocol.MaxLineSize)
	for scanner.Scan() {
		line := scanner.Bytes()
		msgType, err := protocol.PeekType(line)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrHandshakeFailed, err)
		}
		switch msgType {
		case protocol.TypeWelcome:
			var welcome protocol.WelcomeMessage
			if err := json.Unmarshal(line, &welcome); err == nil {
				s.logf().Info("server welcome", "message", welcome.Message)
			}
		case protocol.TypeHandshakeResponse:
			var resp protocol.HandshakeResponse
			if err := json.Unmarshal(line, &resp); err != nil {
				return fmt.Errorf("%w: %w", ErrHandshakeFailed, err)
			}
			if resp.Status != protocol.HandshakeStatusOK {
				return fmt.Errorf("%w: server status %q: %s", ErrHandshakeFailed, resp.Status, resp.Message)
			}
			return nil
		default:
			return fmt.Errorf("%w: unexpected message type %q", ErrHandshakeFailed, msgType)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrHandshakeFailed, err)
	}
	return fmt.Errorf("%w: connection closed before response", ErrHandshakeFailed)
}

// Submit sends a request to the server and registers cb for its outcome.
// It returns the generated request id. cb fires exactly once with the
// response, a timeout, or a connection-closed error.
func (s *Session) Submit(actionType string, params map[string]any, cb Callback) (string, error) {
	if s.State() != StateConnected {
		return "", ErrNotConnected
	}

	id := uuid.NewString()
	if err := s.correlator.Register(id, s.cfg.RequestTimeout, cb); err != nil {
		return "", err
	}

	err := s.send(protocol.RequestMessage{
		Type:       protocol.TypeRequest,
		RequestID:  id,
		ActionType: actionType,
		Parameters: params,
		Timestamp:  protocol.Now(),
	})
	if err != nil {
		s.correlator.Forget(id)
		return "", err
	}
	return id, nil
}

// SubmitWait is Submit with synchronous delivery, bounded by ctx.
func (s *Session) SubmitWait(ctx context.Context, actionType string, params map[string]any) (*protocol.ResponseMessage, error) {
	type outcome struct {
		resp *protocol.ResponseMessage
		err  error
	}
	ch := make(chan outcome, 1)
	if _, err := s.Submit(actionType, params, func(resp *protocol.ResponseMessage, err error) {
		ch <- outcome{resp, err}
	}); err != nil {
		return nil, err
	}

	select {
	case out := <-ch:
		return out.resp, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// SendEvent pushes an unsolicited event to the server.
func (s *Session) SendEvent(eventType string, data map[string]any) error {
	if s.State() != StateConnected {
		return ErrNotConnected
	}
	return s.send(protocol.EventMessage{
		Type:      protocol.TypeEvent,
		EventType: eventType,
		DeviceID:  s.cfg.DeviceID,
		Timestamp: protocol.Now(),
		Data:      data,
	})
}

// SendResponse answers an inbound request.
func (s *Session) SendResponse(requestID string, data map[string]any) error {
	return s.send(protocol.ResponseMessage{
		Type:      protocol.TypeResponse,
		RequestID: requestID,
		Data:      data,
		Timestamp: protocol.Now(),
	})
}

// send serializes one message as a line and writes it atomically.
// A write failure tears the session down.
func (s *Session) send(v any) error {
	line, err := protocol.MarshalLine(v)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout)); err != nil {
		return fmt.Errorf("setting write deadline: %w", err)
	}
	if _, err := s.conn.Write(line); err != nil {
		s.errorCount.Add(1)
		s.closeWithError(fmt.Errorf("write failed: %w", err))
		return fmt.Errorf("writing message: %w", err)
	}
	s.messagesSent.Add(1)
	return nil
}

// readLoop consumes inbound lines until the connection dies.
func (s *Session) readLoop() {
	scanner := bufio.NewScanner(s.conn)
	scanner.Buffer(make([]byte, initialScanBuffer), protocol.MaxLineSize)

	for scanner.Scan() {
		s.messagesReceived.Add(1)
		s.dispatchLine(scanner.Bytes())
	}

	err := scanner.Err()
	if err != nil {
		s.closeWithError(fmt.Errorf("read failed: %w", err))
	} else {
		s.closeWithError(fmt.Errorf("%w: server closed the connection", ErrConnectionClosed))
	}
}

// dispatchLine routes one inbound line. Malformed lines are logged and
// dropped; only I/O failures end the session.
func (s *Session) dispatchLine(line []byte) {
	msgType, err := protocol.PeekType(line)
	if err != nil {
		s.errorCount.Add(1)
		s.logf().Warn("dropping malformed line", "error", err)
		return
	}

	switch msgType {
	case protocol.TypeResponse:
		var resp protocol.ResponseMessage
		if err := json.Unmarshal(line, &resp); err != nil {
			s.errorCount.Add(1)
			s.logf().Warn("dropping malformed response", "error", err)
			return
		}
		if !s.correlator.Resolve(resp.RequestID, &resp) {
			s.logf().Debug("orphan response", "request_id", resp.RequestID)
		}

	case protocol.TypeRequest:
		var req protocol.RequestMessage
		if err := json.Unmarshal(line, &req); err != nil {
			s.errorCount.Add(1)
			s.logf().Warn("dropping malformed request", "error", err)
			return
		}
		go s.serveRequest(&req)

	case protocol.TypeHeartbeatResponse:
		// Keepalive acknowledged; nothing to do.

	case protocol.TypeWelcome:
		var welcome protocol.WelcomeMessage
		if err := json.Unmarshal(line, &welcome); err == nil {
			s.logf().Info("server welcome", "message", welcome.Message)
		}

	default:
		s.logf().Warn("ignoring unexpected message type", "type", string(msgType))
	}
}

// serveRequest runs the handler and sends the response. Handler panics are
// contained so one bad request cannot kill the read path.
func (s *Session) serveRequest(req *protocol.RequestMessage) {
	s.requestsServed.Add(1)

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RequestTimeout)
	defer cancel()

	data := func() (data map[string]any) {
		defer func() {
			if r := recover(); r != nil {
				s.logf().Error("request handler panic recovered",
					"request_id", req.RequestID, "action", req.ActionType, "panic", r)
				data = map[string]any{
					"status":  "error",
					"message": fmt.Sprintf("execution error: %v", r),
				}
			}
		}()
		if s.handler == nil {
			return map[string]any{"status": "error", "message": "no handler installed"}
		}
		return s.handler.HandleRequest(ctx, req)
	}()

	if err := s.SendResponse(req.RequestID, data); err != nil {
		s.logf().Warn("failed to send response", "request_id", req.RequestID, "error", err)
	}
}

// heartbeatLoop sends a keepalive every HeartbeatInterval until the
// session closes.
func (s *Session) heartbeatLoop() {
	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			err := s.send(protocol.HeartbeatMessage{
				Type:      protocol.TypeHeartbeat,
				DeviceID:  s.cfg.DeviceID,
				Timestamp: protocol.Now(),
			})
			if err != nil {
				// send already tore the session down.
				return
			}
		}
	}
}

// Close shuts the session down and fails all pending requests.
func (s *Session) Close() error {
	s.closeWithError(nil)
	return nil
}

// closeWithError performs the one-shot teardown.
func (s *Session) closeWithError(cause error) {
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateDisconnected))
		s.conn.Close() //nolint:errcheck // teardown

		failed := s.correlator.FailAll(ErrConnectionClosed)

		s.closeMu.Lock()
		s.closeErr = cause
		s.closeMu.Unlock()

		if cause != nil {
			s.logf().Warn("session closed", "cause", cause, "pending_failed", failed)
		} else {
			s.logf().Info("session closed", "pending_failed", failed)
		}
		close(s.done)
	})
}

// Done is closed when the session has fully shut down.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err reports why the session closed. Nil before close and after a clean
// Close.
func (s *Session) Err() error {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	return s.closeErr
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Stats returns a snapshot of the session counters.
func (s *Session) Stats() Stats {
	return Stats{
		State:            s.State().String(),
		MessagesSent:     s.messagesSent.Load(),
		MessagesReceived: s.messagesReceived.Load(),
		RequestsServed:   s.requestsServed.Load(),
		Errors:           s.errorCount.Load(),
		PendingRequests:  s.correlator.Len(),
		ConnectedAt:      s.connectedAt,
	}
}

// logf returns the configured logger or a no-op.
func (s *Session) logf() Logger {
	if s.logger != nil {
		return s.logger
	}
	return nopLogger{}
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
