package scheduler

import (
	"context"
	"fmt"

	"github.com/goliatone/go-onboarding/core"
)

// TaskQueue is the bounded channel the producer feeds and workers drain.
// A nil task is the shutdown sentinel: workers exit when they pop one, so
// every queued real task ahead of the sentinel still gets processed.
type TaskQueue struct {
	tasks chan *core.MailboxTask
}

func NewTaskQueue(buffer int) *TaskQueue {
	if buffer <= 0 {
		buffer = 64
	}
	return &TaskQueue{
		tasks: make(chan *core.MailboxTask, buffer),
	}
}

func (q *TaskQueue) Push(ctx context.Context, task *core.MailboxTask) error {
	if q == nil {
		return fmt.Errorf("scheduler: task queue is not configured")
	}
	if task == nil {
		return fmt.Errorf("scheduler: use PushSentinel for shutdown signals")
	}
	select {
	case q.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *TaskQueue) PushSentinel(ctx context.Context) error {
	if q == nil {
		return fmt.Errorf("scheduler: task queue is not configured")
	}
	select {
	case q.tasks <- nil:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pop blocks until a task, a sentinel (returned as nil), or context
// cancellation.
func (q *TaskQueue) Pop(ctx context.Context) (*core.MailboxTask, error) {
	if q == nil {
		return nil, fmt.Errorf("scheduler: task queue is not configured")
	}
	select {
	case task := <-q.tasks:
		return task, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *TaskQueue) Size() int {
	if q == nil {
		return 0
	}
	return len(q.tasks)
}
