package socket

import (
	"context"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/onoro/status"
	"github.com/wfunc/onoro/wire"
)

// testConn is an in-memory Conn. Two of them form a bidirectional
// pipe; closing either side fails both.
type pairState struct {
	closed chan struct{}
	once   sync.Once
}

type testConn struct {
	in    chan []byte
	out   chan []byte
	state *pairState
}

func newConnPair() (*testConn, *testConn) {
	state := &pairState{closed: make(chan struct{})}
	aToB := make(chan []byte, 64)
	bToA := make(chan []byte, 64)
	a := &testConn{in: bToA, out: aToB, state: state}
	b := &testConn{in: aToB, out: bToA, state: state}
	return a, b
}

func (c *testConn) ReadFrame() ([]byte, error) {
	select {
	case data := <-c.in:
		return data, nil
	case <-c.state.closed:
		return nil, io.EOF
	}
}

func (c *testConn) WriteFrame(data []byte) error {
	select {
	case c.out <- data:
		return nil
	case <-c.state.closed:
		return net.ErrClosed
	}
}

func (c *testConn) Close() error {
	c.state.once.Do(func() { close(c.state.closed) })
	return nil
}

func (c *testConn) RemoteAddr() net.Addr { return &net.TCPAddr{} }

// readSentFrame pops the next frame the peer socket wrote, decoded.
func readSentFrame(t *testing.T, c *testConn) *wire.Frame {
	t.Helper()
	select {
	case data := <-c.in:
		frame, err := wire.Decode(data)
		require.NoError(t, err)
		return frame
	case <-time.After(2 * time.Second):
		t.Fatal("no frame sent within 2s")
		return nil
	}
}

func inject(t *testing.T, c *testConn, frame *wire.Frame) {
	t.Helper()
	data, err := wire.Encode(frame)
	require.NoError(t, err)
	require.NoError(t, c.WriteFrame(data))
}

func clientCaps() Capabilities {
	return Capabilities{CallEvents: []string{"new_game"}, Notifications: []string{"server_stats"}}
}

func serverCaps() Capabilities {
	return Capabilities{Calls: []string{"new_game"}, EmitEvents: []string{"server_stats"}}
}

// newPair attaches a client and a server socket to the two ends of an
// in-memory pipe.
func newPair(t *testing.T, clientOpts, serverOpts Options) (*Socket, *Socket) {
	t.Helper()
	serverEnd, clientEnd := newConnPair()

	server := New(serverCaps(), serverOpts)
	client := New(clientCaps(), clientOpts)
	require.NoError(t, server.Attach(serverEnd))
	require.NoError(t, client.Attach(clientEnd))

	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	return client, server
}

func TestCallSuccessScenario(t *testing.T) {
	client, server := newPair(t, Options{}, Options{})

	payload := []byte{0x0a, 0x06, 0x08, 0x0e, 0x10, 0x0e, 0x18, 0x01}
	require.NoError(t, server.Respond("new_game", func(ctx context.Context, args []any) status.Status {
		assert.Nil(t, args)
		return status.Ok(payload)
	}))

	st, err := client.Call(context.Background(), "new_game")
	require.NoError(t, err)
	require.True(t, st.IsOk())

	// Bytes cross the wire as a base64 JSON string.
	assert.Equal(t, "CgYIDhAOGAE=", st.Value())
}

func TestCallTimeoutScenario(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	client, server := newPair(t, Options{}, Options{})
	require.NoError(t, server.Respond("new_game", func(ctx context.Context, args []any) status.Status {
		<-block
		return status.Ok(nil)
	}))

	start := time.Now()
	st, err := client.Call(context.Background(), "new_game")
	require.NoError(t, err)

	assert.False(t, st.IsOk())
	assert.Equal(t, status.CodeMessageTimeout, st.Code())
	assert.Equal(t, "new_game timed out after 1 second", st.Message())
	assert.GreaterOrEqual(t, time.Since(start), DefaultCallTimeout)
}

func TestAtMostOneResolution(t *testing.T) {
	raw, clientEnd := newConnPair()
	client := New(clientCaps(), Options{})
	require.NoError(t, client.Attach(clientEnd))
	t.Cleanup(func() { client.Close() })

	uuids := make(chan string, 1)
	go func() {
		frame, err := wire.Decode(<-raw.in)
		if err == nil && frame.Kind() == wire.KindCall {
			uuids <- frame.Call.UUID
		}
	}()

	st, err := client.CallWithTimeout(context.Background(), 50*time.Millisecond, "new_game")
	require.NoError(t, err)
	require.Equal(t, status.CodeMessageTimeout, st.Code())

	// A response arriving after the timeout already resolved the call
	// must be discarded, not double-resolve anything.
	uuid := <-uuids
	inject(t, raw, &wire.Frame{Response: &wire.Response{UUID: uuid, Status: status.Ok("late")}})
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, 0, client.pending.len())
	assert.Equal(t, StateOpen, client.State())
}

func TestOrphanResponseDiscarded(t *testing.T) {
	raw, clientEnd := newConnPair()
	client := New(clientCaps(), Options{})
	require.NoError(t, client.Attach(clientEnd))
	t.Cleanup(func() { client.Close() })

	// An unsolicited response must not disturb the pending call that
	// is actually outstanding.
	inject(t, raw, &wire.Frame{Response: &wire.Response{UUID: "nobody-asked", Status: status.Ok(nil)}})

	go func() {
		frame, err := wire.Decode(<-raw.in)
		if err != nil || frame.Kind() != wire.KindCall {
			return
		}
		inject(t, raw, &wire.Frame{Response: &wire.Response{
			UUID:   frame.Call.UUID,
			Status: status.Ok("real"),
		}})
	}()

	st, err := client.Call(context.Background(), "new_game")
	require.NoError(t, err)
	require.True(t, st.IsOk())
	assert.Equal(t, "real", st.Value())
}

func TestCallUndeclaredEventFailsBeforeSend(t *testing.T) {
	raw, clientEnd := newConnPair()
	client := New(Capabilities{}, Options{})
	require.NoError(t, client.Attach(clientEnd))
	t.Cleanup(func() { client.Close() })

	_, err := client.Call(context.Background(), "new_game")
	assert.ErrorIs(t, err, ErrUndeclaredEvent)

	select {
	case data := <-raw.in:
		t.Fatalf("frame was sent for an undeclared event: %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSendWhileNotOpenFailsFast(t *testing.T) {
	sock := New(serverCaps(), Options{})
	t.Cleanup(func() { sock.Close() })

	assert.Equal(t, StateConnecting, sock.State())
	assert.ErrorIs(t, sock.Emit("server_stats"), ErrSocketClosed)

	caller := New(clientCaps(), Options{})
	t.Cleanup(func() { caller.Close() })
	_, err := caller.Call(context.Background(), "new_game")
	assert.ErrorIs(t, err, ErrSocketClosed)
}

func TestDuplicateRegistrationReplaces(t *testing.T) {
	client, server := newPair(t, Options{}, Options{})

	require.NoError(t, server.Respond("new_game", func(ctx context.Context, args []any) status.Status {
		return status.Ok("first")
	}))
	require.NoError(t, server.Respond("new_game", func(ctx context.Context, args []any) status.Status {
		return status.Ok("second")
	}))

	st, err := client.Call(context.Background(), "new_game")
	require.NoError(t, err)
	assert.Equal(t, "second", st.Value())
}

func TestMalformedInboundIgnored(t *testing.T) {
	raw, clientEnd := newConnPair()

	var notified atomic.Int32
	client := New(clientCaps(), Options{})
	require.NoError(t, client.On("server_stats", func(args []any) {
		notified.Add(1)
	}))
	require.NoError(t, client.Attach(clientEnd))
	t.Cleanup(func() { client.Close() })

	go func() {
		frame, err := wire.Decode(<-raw.in)
		if err != nil || frame.Kind() != wire.KindCall {
			return
		}
		// Garbage first, then the real response.
		raw.WriteFrame([]byte(`{{{not json`))
		raw.WriteFrame([]byte(`{"ping": {}}`))
		inject(t, raw, &wire.Frame{Response: &wire.Response{
			UUID:   frame.Call.UUID,
			Status: status.Ok("survived"),
		}})
	}()

	st, err := client.Call(context.Background(), "new_game")
	require.NoError(t, err)
	assert.Equal(t, "survived", st.Value())
	assert.Equal(t, int32(0), notified.Load())
	assert.Equal(t, StateOpen, client.State())
}

func TestPendingCallsFlushOnClose(t *testing.T) {
	raw, clientEnd := newConnPair()
	client := New(clientCaps(), Options{})
	require.NoError(t, client.Attach(clientEnd))
	t.Cleanup(func() { client.Close() })

	done := make(chan status.Status, 1)
	go func() {
		st, err := client.CallWithTimeout(context.Background(), 5*time.Second, "new_game")
		if err == nil {
			done <- st
		}
	}()

	// Wait for the call frame, then drop the connection.
	select {
	case <-raw.in:
	case <-time.After(2 * time.Second):
		t.Fatal("call frame never sent")
	}
	raw.Close()

	select {
	case st := <-done:
		assert.Equal(t, status.CodeConnectionClosed, st.Code())
		assert.Equal(t, "connection closed before response to new_game", st.Message())
	case <-time.After(2 * time.Second):
		t.Fatal("pending call was not flushed on close")
	}
	assert.Equal(t, StateClosed, client.State())
}

func TestWaitOpen(t *testing.T) {
	sock := New(clientCaps(), Options{})
	t.Cleanup(func() { sock.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, sock.WaitOpen(ctx), context.DeadlineExceeded)

	_, end := newConnPair()
	require.NoError(t, sock.Attach(end))
	assert.NoError(t, sock.WaitOpen(context.Background()))
}

func TestWrongHandlerKindDropped(t *testing.T) {
	raw, serverEnd := newConnPair()

	var served atomic.Int32
	server := New(serverCaps(), Options{})
	require.NoError(t, server.Respond("new_game", func(ctx context.Context, args []any) status.Status {
		served.Add(1)
		return status.Ok(nil)
	}))
	require.NoError(t, server.Attach(serverEnd))
	t.Cleanup(func() { server.Close() })

	// new_game is declared as a call; receiving it as an emit must not
	// invoke the call handler.
	inject(t, raw, &wire.Frame{Emit: &wire.Emit{Event: "new_game"}})
	// Unknown events are dropped the same way.
	inject(t, raw, &wire.Frame{Emit: &wire.Emit{Event: "mystery"}})
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), served.Load())

	// A proper call still goes through.
	inject(t, raw, &wire.Frame{Call: &wire.Call{Event: "new_game", UUID: "u-1"}})
	frame := readSentFrame(t, raw)
	require.Equal(t, wire.KindResponse, frame.Kind())
	assert.Equal(t, "u-1", frame.Response.UUID)
	assert.Equal(t, int32(1), served.Load())
}

func TestNotificationDelivery(t *testing.T) {
	client, server := newPair(t, Options{}, Options{})

	received := make(chan []any, 1)
	require.NoError(t, client.On("server_stats", func(args []any) {
		received <- args
	}))

	require.NoError(t, server.Emit("server_stats", map[string]any{"connections": 1}))

	select {
	case args := <-received:
		require.Len(t, args, 1)
		stats, ok := args[0].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, float64(1), stats["connections"])
	case <-time.After(2 * time.Second):
		t.Fatal("notification never delivered")
	}
}

func TestCallContextCancellation(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	client, server := newPair(t, Options{}, Options{})
	require.NoError(t, server.Respond("new_game", func(ctx context.Context, args []any) status.Status {
		<-block
		return status.Ok(nil)
	}))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := client.CallWithTimeout(ctx, 5*time.Second, "new_game")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, client.pending.len())
}

func TestInboundFrameRateLimit(t *testing.T) {
	raw, serverEnd := newConnPair()

	var served atomic.Int32
	server := New(Capabilities{Notifications: []string{"spam"}}, Options{
		FrameLimit: 1,
		FrameBurst: 1,
	})
	require.NoError(t, server.On("spam", func(args []any) {
		served.Add(1)
	}))
	require.NoError(t, server.Attach(serverEnd))
	t.Cleanup(func() { server.Close() })

	for i := 0; i < 10; i++ {
		inject(t, raw, &wire.Frame{Emit: &wire.Emit{Event: "spam"}})
	}
	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, int32(1), served.Load())
}

func TestRegistrationValidation(t *testing.T) {
	sock := New(clientCaps(), Options{})
	t.Cleanup(func() { sock.Close() })

	assert.ErrorIs(t, sock.On("new_game", func(args []any) {}), ErrUndeclaredEvent)
	assert.ErrorIs(t, sock.Respond("server_stats", func(ctx context.Context, args []any) status.Status {
		return status.Ok(nil)
	}), ErrUndeclaredEvent)

	assert.NoError(t, sock.On("server_stats", func(args []any) {}))
}

func TestPendingTimerRegistration(t *testing.T) {
	table := newPendingTable()
	p := &pendingCall{uuid: "u-1", result: make(chan status.Status, 1)}
	table.add(p)

	require.True(t, table.setTimer("u-1", 7))

	taken, ok := table.take("u-1")
	require.True(t, ok)
	assert.Equal(t, int64(7), taken.timerID)

	// Once the entry is resolved the timer belongs to the caller.
	assert.False(t, table.setTimer("u-1", 9))
}

func TestSubTickTimeoutStillResolves(t *testing.T) {
	_, clientEnd := newConnPair()
	client := New(clientCaps(), Options{})
	require.NoError(t, client.Attach(clientEnd))
	t.Cleanup(func() { client.Close() })

	// A deadline shorter than the scheduler tick is already due when
	// the timer is registered; the call must still time out rather
	// than wait forever.
	st, err := client.CallWithTimeout(context.Background(), time.Nanosecond, "new_game")
	require.NoError(t, err)
	assert.Equal(t, status.CodeMessageTimeout, st.Code())
	assert.Equal(t, 0, client.pending.len())
}

func TestHumanSeconds(t *testing.T) {
	assert.Equal(t, "1 second", humanSeconds(time.Second))
	assert.Equal(t, "0.05 seconds", humanSeconds(50*time.Millisecond))
	assert.Equal(t, "2 seconds", humanSeconds(2*time.Second))
}
