package async

import (
	"fmt"
	"sync"

	"github.com/kiwiworld/objectd/internal/core/ecs"
	"go.uber.org/zap"
)

// Task is a continuation that must run on the goroutine owning the world.
type Task func(w *ecs.World)

// Queue is a multi-producer, single-consumer run queue. Background goroutines
// Post continuations; the game loop Drains them at PhaseInput. It is the only
// path by which code off the game loop may touch the world.
type Queue struct {
	mu     sync.Mutex
	tasks  []Task
	closed bool
	notify chan struct{}
	log    *zap.Logger
}

func NewQueue(log *zap.Logger) *Queue {
	return &Queue{
		tasks:  make([]Task, 0, 64),
		notify: make(chan struct{}, 1),
		log:    log,
	}
}

// Post enqueues t. It never blocks and returns false once the queue is closed.
func (q *Queue) Post(t Task) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.tasks = append(q.tasks, t)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return true
}

// Notify fires after Post; a loop with nothing else to wait on may select on it.
func (q *Queue) Notify() <-chan struct{} { return q.notify }

// Len returns the number of queued tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Drain runs up to max queued tasks (all of them when max <= 0) in post order
// and returns how many ran. Tasks posted while draining wait for the next call.
// A panicking task is logged and does not stop the rest.
func (q *Queue) Drain(w *ecs.World, max int) int {
	q.mu.Lock()
	n := len(q.tasks)
	if max > 0 && n > max {
		n = max
	}
	batch := make([]Task, n)
	copy(batch, q.tasks[:n])
	rest := copy(q.tasks, q.tasks[n:])
	for i := rest; i < len(q.tasks); i++ {
		q.tasks[i] = nil
	}
	q.tasks = q.tasks[:rest]
	q.mu.Unlock()

	for _, t := range batch {
		q.run(w, t)
	}
	return n
}

// Close rejects further posts. Already queued tasks can still be drained.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
}

func (q *Queue) run(w *ecs.World, t Task) {
	defer func() {
		if rec := recover(); rec != nil {
			q.log.Error("owner task panic recovered", zap.String("panic", fmt.Sprint(rec)))
		}
	}()
	t(w)
}
