package action

import "sync"

// Queue is a multi-producer, single-consumer FIFO of Actions. Network
// workers are producers; the tick worker is the sole consumer.
//
// Ordering: FIFO per producer goroutine. Total order across producers is
// unspecified — action semantics must not depend on cross-client ordering
// beyond the server's own dequeue-order arbitration within one tick.
type Queue struct {
	mu    sync.Mutex
	items []Action
}

// NewQueue creates an empty action queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Push enqueues an action. Never blocks other producers beyond the brief
// mutual-exclusion interval needed to append to the backing slice.
func (q *Queue) Push(a Action) {
	q.mu.Lock()
	q.items = append(q.items, a)
	q.mu.Unlock()
}

// DrainInto moves every currently enqueued action into buf in one step and
// returns the extended slice, leaving the queue empty. Intended to be
// called once per tick by the sole consumer.
func (q *Queue) DrainInto(buf []Action) []Action {
	q.mu.Lock()
	items := q.items
	q.items = nil
	q.mu.Unlock()

	return append(buf, items...)
}

// Len reports the number of actions currently queued (diagnostic use only
// — the tick worker should prefer DrainInto over checking Len first, to
// avoid a race between the check and the drain).
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
