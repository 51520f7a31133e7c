// Package timer provides a heap-backed scheduler for one-shot and
// repeating callbacks. The socket layer uses it for call deadlines,
// the server for periodic stats broadcasts.
package timer

import (
	"container/heap"
	"sync"
	"time"
)

type task struct {
	id       int64
	runAt    time.Time
	interval time.Duration
	fn       func()
	index    int
}

type taskQueue []*task

func (q taskQueue) Len() int { return len(q) }

func (q taskQueue) Less(i, j int) bool {
	return q[i].runAt.Before(q[j].runAt)
}

func (q taskQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *taskQueue) Push(x interface{}) {
	n := len(*q)
	t := x.(*task)
	t.index = n
	*q = append(*q, t)
}

func (q *taskQueue) Pop() interface{} {
	old := *q
	n := len(old)
	t := old[n-1]
	t.index = -1
	*q = old[0 : n-1]
	return t
}

// Scheduler runs queued tasks from a single background goroutine.
// Callbacks execute on their own goroutines, so a slow callback never
// delays the next due task.
type Scheduler struct {
	queue     taskQueue
	mutex     sync.Mutex
	nextID    int64
	closeChan chan struct{}
	closeOnce sync.Once
}

// tick bounds how late a due task can fire.
const tick = 10 * time.Millisecond

func NewScheduler() *Scheduler {
	s := &Scheduler{
		queue:     make(taskQueue, 0),
		nextID:    1,
		closeChan: make(chan struct{}),
	}
	heap.Init(&s.queue)
	go s.run()
	return s
}

// After schedules fn to run once after delay and returns a task id
// usable with Cancel.
func (s *Scheduler) After(delay time.Duration, fn func()) int64 {
	return s.add(delay, 0, fn)
}

// Every schedules fn to run repeatedly at the given interval, first
// firing one interval from now.
func (s *Scheduler) Every(interval time.Duration, fn func()) int64 {
	return s.add(interval, interval, fn)
}

func (s *Scheduler) add(delay, interval time.Duration, fn func()) int64 {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	t := &task{
		id:       s.nextID,
		runAt:    time.Now().Add(delay),
		interval: interval,
		fn:       fn,
	}
	s.nextID++

	heap.Push(&s.queue, t)
	return t.id
}

// Cancel removes a scheduled task. It returns false when the task has
// already fired or was never scheduled; a one-shot task that lost this
// race may still run, so callers needing exactly-once semantics must
// guard in the callback itself.
func (s *Scheduler) Cancel(id int64) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for i, t := range s.queue {
		if t.id == id {
			heap.Remove(&s.queue, i)
			return true
		}
	}
	return false
}

// Stop shuts down the scheduler goroutine. Pending tasks are dropped.
func (s *Scheduler) Stop() {
	s.closeOnce.Do(func() {
		close(s.closeChan)
	})
}

func (s *Scheduler) run() {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for _, due := range s.collectDue(time.Now()) {
				go due()
			}
		case <-s.closeChan:
			return
		}
	}
}

func (s *Scheduler) collectDue(now time.Time) []func() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var due []func()
	for s.queue.Len() > 0 {
		t := s.queue[0]
		if t.runAt.After(now) {
			break
		}
		heap.Pop(&s.queue)
		due = append(due, t.fn)

		if t.interval > 0 {
			t.runAt = now.Add(t.interval)
			heap.Push(&s.queue, t)
		}
	}
	return due
}
