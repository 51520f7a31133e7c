package socket

import (
	"sync"
	"time"

	"github.com/wfunc/onoro/status"
)

// pendingCall tracks one outstanding call until its response arrives
// or its deadline elapses. The result channel is buffered so the
// resolver never blocks.
type pendingCall struct {
	uuid    string
	event   string
	timerID int64
	issued  time.Time
	result  chan status.Status
}

// pendingTable is the correlation table: outstanding calls keyed by
// correlation id. Removal is the resolution guard: whichever of the
// response path and the timeout path takes the entry first wins, the
// other finds nothing and does nothing.
type pendingTable struct {
	mutex sync.Mutex
	calls map[string]*pendingCall
}

func newPendingTable() *pendingTable {
	return &pendingTable{calls: make(map[string]*pendingCall)}
}

func (t *pendingTable) add(p *pendingCall) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.calls[p.uuid] = p
}

// setTimer records the deadline timer for an already-published entry.
// It returns false when the entry is gone, meaning the call resolved
// before its timer was registered; the caller then owns cancelling the
// timer. Writing the id under the table mutex makes it visible to
// whoever takes the entry.
func (t *pendingTable) setTimer(uuid string, timerID int64) bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	p, ok := t.calls[uuid]
	if !ok {
		return false
	}
	p.timerID = timerID
	return true
}

// take removes and returns the entry for uuid. The second return is
// false when the call was already resolved, timed out, or never
// issued.
func (t *pendingTable) take(uuid string) (*pendingCall, bool) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	p, ok := t.calls[uuid]
	if ok {
		delete(t.calls, uuid)
	}
	return p, ok
}

// drain removes and returns every outstanding entry, for flushing
// pending calls when the connection closes.
func (t *pendingTable) drain() []*pendingCall {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	drained := make([]*pendingCall, 0, len(t.calls))
	for _, p := range t.calls {
		drained = append(drained, p)
	}
	t.calls = make(map[string]*pendingCall)
	return drained
}

func (t *pendingTable) len() int {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return len(t.calls)
}
