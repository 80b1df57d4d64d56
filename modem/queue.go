package modem

import (
	"slices"
	"sync"
)

// queue holds requests waiting to be sent. Submitters append and cancel
// under the lock; only the loop pops.
type queue struct {
	mu     sync.Mutex
	items  []*Request
	closed bool
}

func (q *queue) push(r *Request) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	if q.contains(r.command) {
		return ErrDuplicateCommand
	}
	if r.priority {
		q.items = slices.Insert(q.items, 0, r)
	} else {
		q.items = append(q.items, r)
	}
	return nil
}

// pushFront re-queues a retry or a diagnostic query ahead of everything
// else. Duplicates are allowed since the loop owns these requests.
func (q *queue) pushFront(r *Request) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = slices.Insert(q.items, 0, r)
}

func (q *queue) pop() *Request {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	r := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return r
}

func (q *queue) remove(r *Request) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	i := slices.Index(q.items, r)
	if i < 0 {
		return false
	}
	q.items = slices.Delete(q.items, i, i+1)
	return true
}

// removeUnsent removes r only if it was never written to the modem. A
// request waiting for a retry stays queued.
func (q *queue) removeUnsent(r *Request) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	i := slices.Index(q.items, r)
	if i < 0 || r.attempts > 0 {
		return false
	}
	q.items = slices.Delete(q.items, i, i+1)
	return true
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// close rejects further submissions and returns what was still waiting.
func (q *queue) close() []*Request {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	items := q.items
	q.items = nil
	return items
}

func (q *queue) contains(cmd string) bool {
	return slices.ContainsFunc(q.items, func(r *Request) bool {
		return r.command == cmd
	})
}
