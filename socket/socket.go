// Package socket implements a typed, bidirectional messaging layer
// over one persistent websocket connection. It supports three
// interaction patterns: fire-and-forget notifications (Emit),
// correlated request/response exchanges (Call answered by a remote
// Respond handler), and delivery of status.Status results through the
// text wire format.
//
// A Socket owns the connection lifecycle (Connecting -> Open ->
// Closed), the correlation table matching responses to pending calls,
// and the capability registry constraining which events each operation
// may use. Inbound frames are read and dispatched by one goroutine;
// call handlers run concurrently on their own goroutines.
package socket

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/wfunc/onoro/status"
	"github.com/wfunc/onoro/timer"
	"github.com/wfunc/onoro/wire"
)

// DefaultCallTimeout bounds a call waiting for its response unless
// overridden per socket or per call.
const DefaultCallTimeout = 1000 * time.Millisecond

var (
	// ErrSocketClosed is returned by Emit and Call while the socket is
	// not open. Sends are never queued across a disconnect.
	ErrSocketClosed = errors.New("socket is not open")
	// ErrAlreadyAttached is returned by Attach on an open socket.
	ErrAlreadyAttached = errors.New("socket already attached to a connection")
)

// State is the connection lifecycle state.
type State int

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Options tunes a Socket. The zero value is usable: default timeout,
// no-op logger and metrics, no rate limit.
type Options struct {
	// CallTimeout is the default response deadline for Call.
	CallTimeout time.Duration
	// Logger receives protocol-level logs. Nil disables logging.
	Logger *zap.SugaredLogger
	// Verbose enables per-frame debug logging.
	Verbose bool
	// Metrics receives protocol observations. Nil disables them.
	Metrics Metrics
	// FrameLimit caps inbound frames per second; over-limit frames are
	// logged and dropped. Zero means unlimited.
	FrameLimit rate.Limit
	// FrameBurst is the burst size used with FrameLimit.
	FrameBurst int
	// Scheduler shares a deadline scheduler between sockets. Nil gives
	// the socket its own, stopped on Close.
	Scheduler *timer.Scheduler
}

// Socket is one endpoint of the messaging layer. Either end of the
// connection may construct one: servers attach an accepted connection,
// clients use Dial.
type Socket struct {
	opts     Options
	log      *zap.SugaredLogger
	registry *registry
	pending  *pendingTable
	sched    *timer.Scheduler
	ownSched bool
	metrics  Metrics
	limiter  *rate.Limiter

	mutex      sync.Mutex
	state      State
	conn       Conn
	openChan   chan struct{}
	ctx        context.Context
	cancel     context.CancelFunc
	userClosed bool
	onClosed   func()
}

// New creates a detached Socket in the Connecting state. Attach (or
// Dial) brings it to Open.
func New(caps Capabilities, opts Options) *Socket {
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = nopMetrics{}
	}

	s := &Socket{
		opts:     opts,
		log:      log,
		registry: newRegistry(caps),
		pending:  newPendingTable(),
		sched:    opts.Scheduler,
		metrics:  metrics,
		state:    StateConnecting,
		openChan: make(chan struct{}),
	}
	if s.sched == nil {
		s.sched = timer.NewScheduler()
		s.ownSched = true
	}
	if opts.FrameLimit > 0 {
		burst := opts.FrameBurst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(opts.FrameLimit, burst)
	}
	return s
}

// On registers the handler for an inbound notification event. The
// event must be in the declared notification set; a second
// registration for the same event replaces the first.
func (s *Socket) On(event string, fn NotificationHandler) error {
	return s.registry.registerNotification(event, fn)
}

// Respond registers the handler answering an inbound call event. The
// handler's Status becomes the response frame; a second registration
// for the same event replaces the first.
func (s *Socket) Respond(event string, fn CallHandler) error {
	return s.registry.registerCallHandler(event, fn)
}

// Attach binds an established connection to the socket, transitions it
// to Open, releases WaitOpen callers and starts the read loop. A
// closed socket may be re-attached by the reconnect policy; an open
// one may not.
func (s *Socket) Attach(conn Conn) error {
	s.mutex.Lock()
	if s.userClosed {
		s.mutex.Unlock()
		return ErrSocketClosed
	}
	if s.state == StateOpen {
		s.mutex.Unlock()
		return ErrAlreadyAttached
	}
	s.state = StateOpen
	s.conn = conn
	s.ctx, s.cancel = context.WithCancel(context.Background())
	close(s.openChan)
	ctx := s.ctx
	s.mutex.Unlock()

	s.log.Infow("socket open", "remote", conn.RemoteAddr())
	go s.readLoop(conn, ctx)
	return nil
}

// WaitOpen blocks until the socket reaches the Open state or ctx is
// done. The wait itself is unbounded; callers bound it with the
// context.
func (s *Socket) WaitOpen(ctx context.Context) error {
	s.mutex.Lock()
	if s.state == StateOpen {
		s.mutex.Unlock()
		return nil
	}
	ch := s.openChan
	s.mutex.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns the current lifecycle state.
func (s *Socket) State() State {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.state
}

// Close shuts the socket down for good: the connection is closed,
// pending calls resolve with ConnectionClosed and the reconnect policy
// does not fire.
func (s *Socket) Close() error {
	s.mutex.Lock()
	s.userClosed = true
	conn := s.conn
	s.mutex.Unlock()

	var err error
	if conn != nil {
		// The read loop observes the close error and finishes the
		// transition.
		err = conn.Close()
	} else {
		s.connectionLost(nil, nil)
	}
	if s.ownSched {
		s.sched.Stop()
	}
	return err
}

// Emit sends a one-way notification frame. The event must be in the
// declared outbound notification set and the socket must be open; no
// acknowledgement is expected.
func (s *Socket) Emit(event string, args ...any) error {
	if err := s.registry.checkEmit(event); err != nil {
		return err
	}
	frame := &wire.Frame{Emit: &wire.Emit{Event: event, Args: normalizeArgs(args)}}
	if err := s.writeFrame(frame); err != nil {
		return err
	}
	if s.opts.Verbose {
		s.log.Debugw("emit sent", "event", event)
	}
	return nil
}

// Call sends a request frame and waits for the correlated response,
// the default deadline, or ctx. The returned Status is the remote
// handler's result, or Err(MessageTimeout, ...) when the deadline
// elapsed first. The error return covers local usage failures only:
// undeclared event, closed socket, cancelled context.
func (s *Socket) Call(ctx context.Context, event string, args ...any) (status.Status, error) {
	return s.CallWithTimeout(ctx, s.opts.CallTimeout, event, args...)
}

// CallWithTimeout is Call with an explicit response deadline.
func (s *Socket) CallWithTimeout(ctx context.Context, timeout time.Duration, event string, args ...any) (status.Status, error) {
	if err := s.registry.checkCall(event); err != nil {
		return status.Status{}, err
	}
	if timeout <= 0 {
		timeout = s.opts.CallTimeout
	}

	p := &pendingCall{
		uuid:   uuid.NewString(),
		event:  event,
		issued: time.Now(),
		result: make(chan status.Status, 1),
	}
	// The entry is published before its timer exists, so the timer can
	// never fire against an absent entry. A resolver racing this window
	// sees a zero timer id and cancels nothing; the stray timer fires
	// later and finds the entry gone.
	s.pending.add(p)
	timerID := s.sched.After(timeout, func() {
		s.timeoutCall(p.uuid, event, timeout)
	})
	if !s.pending.setTimer(p.uuid, timerID) {
		s.sched.Cancel(timerID)
	}
	s.metrics.SetPendingCalls(s.pending.len())

	frame := &wire.Frame{Call: &wire.Call{Event: event, UUID: p.uuid, Args: normalizeArgs(args)}}
	if err := s.writeFrame(frame); err != nil {
		s.abandonCall(p)
		return status.Status{}, err
	}
	if s.opts.Verbose {
		s.log.Debugw("call sent", "event", event, "uuid", p.uuid)
	}

	select {
	case st := <-p.result:
		s.metrics.CallResolved(resolveOutcome(st), time.Since(p.issued))
		return st, nil
	case <-ctx.Done():
		s.abandonCall(p)
		// The resolver may have delivered concurrently with the
		// cancellation; prefer the real result if so.
		select {
		case st := <-p.result:
			s.metrics.CallResolved(resolveOutcome(st), time.Since(p.issued))
			return st, nil
		default:
		}
		s.metrics.CallResolved("cancelled", time.Since(p.issued))
		return status.Status{}, ctx.Err()
	}
}

// abandonCall removes a pending entry after a send failure or context
// cancellation. Losing the race with a resolver is fine; the entry is
// then already gone.
func (s *Socket) abandonCall(p *pendingCall) {
	if taken, ok := s.pending.take(p.uuid); ok {
		s.sched.Cancel(taken.timerID)
		s.metrics.SetPendingCalls(s.pending.len())
	}
}

func resolveOutcome(st status.Status) string {
	switch {
	case st.IsOk():
		return "ok"
	case st.Code() == status.CodeMessageTimeout:
		return "timeout"
	case st.Code() == status.CodeConnectionClosed:
		return "closed"
	default:
		return "err"
	}
}

// timeoutCall resolves a pending call on the timeout path. Removal
// from the table is the guard against double resolution: if the
// response path already took the entry this is a no-op.
func (s *Socket) timeoutCall(id, event string, timeout time.Duration) {
	p, ok := s.pending.take(id)
	if !ok {
		return
	}
	s.log.Warnw("call timed out", "event", event, "uuid", id, "timeout", timeout)
	p.result <- status.Errf(status.CodeMessageTimeout, "%s timed out after %s", event, humanSeconds(timeout))
	s.metrics.SetPendingCalls(s.pending.len())
}

func humanSeconds(d time.Duration) string {
	secs := d.Seconds()
	if secs == 1 {
		return "1 second"
	}
	return fmt.Sprintf("%g seconds", secs)
}

// normalizeArgs maps an empty argument list to nil so it serializes as
// JSON null, the wire form for "no args".
func normalizeArgs(args []any) []any {
	if len(args) == 0 {
		return nil
	}
	return args
}

func (s *Socket) writeFrame(frame *wire.Frame) error {
	s.mutex.Lock()
	if s.state != StateOpen || s.conn == nil {
		s.mutex.Unlock()
		return ErrSocketClosed
	}
	conn := s.conn
	s.mutex.Unlock()

	data, err := wire.Encode(frame)
	if err != nil {
		return err
	}
	if err := conn.WriteFrame(data); err != nil {
		return err
	}
	s.metrics.FrameSent(frame.Kind().String())
	return nil
}

// readLoop reads and dispatches frames until the transport fails. One
// frame is fully dispatched before the next is read; call handlers
// spawned by dispatch keep running concurrently.
func (s *Socket) readLoop(conn Conn, ctx context.Context) {
	for {
		data, err := conn.ReadFrame()
		if err != nil {
			s.connectionLost(conn, err)
			return
		}
		s.dispatch(ctx, data)
	}
}

func (s *Socket) dispatch(ctx context.Context, data []byte) {
	if s.limiter != nil && !s.limiter.Allow() {
		s.log.Warnw("inbound frame rate limit exceeded, dropping frame")
		return
	}

	frame, err := wire.Decode(data)
	if err != nil {
		s.metrics.MalformedFrame()
		s.log.Warnw("dropping malformed frame", "error", err)
		return
	}
	s.metrics.FrameReceived(frame.Kind().String())

	switch frame.Kind() {
	case wire.KindEmit:
		s.dispatchEmit(frame.Emit)
	case wire.KindCall:
		s.dispatchCall(ctx, frame.Call)
	case wire.KindResponse:
		s.dispatchResponse(frame.Response)
	}
}

func (s *Socket) dispatchEmit(emit *wire.Emit) {
	fn, ok := s.registry.notification(emit.Event)
	if !ok {
		if s.registry.inboundCallDeclared(emit.Event) {
			s.log.Warnw("call-only event received as emit, dropping", "event", emit.Event)
		} else {
			s.log.Warnw("emit for unknown event, dropping", "event", emit.Event)
		}
		return
	}
	if s.opts.Verbose {
		s.log.Debugw("emit received", "event", emit.Event)
	}
	fn(emit.Args)
}

func (s *Socket) dispatchCall(ctx context.Context, call *wire.Call) {
	fn, ok := s.registry.callHandler(call.Event)
	if !ok {
		if s.registry.inboundNotificationDeclared(call.Event) {
			s.log.Warnw("notification-only event received as call, dropping", "event", call.Event, "uuid", call.UUID)
		} else {
			s.log.Warnw("call for unknown event, dropping", "event", call.Event, "uuid", call.UUID)
		}
		return
	}
	if s.opts.Verbose {
		s.log.Debugw("call received", "event", call.Event, "uuid", call.UUID)
	}
	go s.serveCall(ctx, call, fn)
}

func (s *Socket) serveCall(ctx context.Context, call *wire.Call, fn CallHandler) {
	st := fn(ctx, call.Args)
	frame := &wire.Frame{Response: &wire.Response{UUID: call.UUID, Status: st}}
	if err := s.writeFrame(frame); err != nil {
		s.log.Warnw("failed to send response", "event", call.Event, "uuid", call.UUID, "error", err)
	}
}

func (s *Socket) dispatchResponse(resp *wire.Response) {
	p, ok := s.pending.take(resp.UUID)
	if !ok {
		// Already resolved, timed out, or never issued here.
		s.log.Infow("orphan response, dropping", "uuid", resp.UUID)
		return
	}
	s.sched.Cancel(p.timerID)
	p.result <- resp.Status
	s.metrics.SetPendingCalls(s.pending.len())
	if s.opts.Verbose {
		s.log.Debugw("response received", "event", p.event, "uuid", resp.UUID)
	}
}

// connectionLost finishes the transition to Closed for the given
// connection: pending calls resolve with ConnectionClosed, WaitOpen
// callers block again, and the reconnect hook fires unless Close was
// requested.
func (s *Socket) connectionLost(conn Conn, readErr error) {
	s.mutex.Lock()
	if conn != nil && s.conn != conn {
		// A stale read loop from a previous connection.
		s.mutex.Unlock()
		return
	}
	alreadyClosed := s.state == StateClosed
	s.state = StateClosed
	s.conn = nil
	if !alreadyClosed {
		s.openChan = make(chan struct{})
	}
	cancel := s.cancel
	s.cancel = nil
	reconnect := !s.userClosed
	onClosed := s.onClosed
	s.mutex.Unlock()

	if alreadyClosed {
		return
	}
	if cancel != nil {
		cancel()
	}

	for _, p := range s.pending.drain() {
		s.sched.Cancel(p.timerID)
		p.result <- status.Errf(status.CodeConnectionClosed, "connection closed before response to %s", p.event)
	}
	s.metrics.SetPendingCalls(0)

	if readErr != nil {
		s.log.Infow("socket closed", "error", readErr)
	} else {
		s.log.Infow("socket closed")
	}

	if reconnect && onClosed != nil {
		go onClosed()
	}
}

// OnClosed registers a hook invoked (on its own goroutine) whenever
// the connection is lost other than through Close. The client dialer
// uses it for reconnection; servers use it to clean up per-connection
// state.
func (s *Socket) OnClosed(fn func()) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.onClosed = fn
}
