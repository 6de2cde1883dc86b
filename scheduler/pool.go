package scheduler

import (
	"context"
)

// workerLoop drains the queue until it pops a sentinel or the context ends.
// The in-flight guard is released only after the runner returns, which is
// what makes the producer's skip-while-busy check meaningful.
func (s *Scheduler) workerLoop(ctx context.Context, id int) {
	defer s.wg.Done()

	for {
		task, err := s.queue.Pop(ctx)
		if err != nil {
			return
		}
		if task == nil {
			s.logger.Debug("worker received shutdown sentinel", "worker", id)
			return
		}

		runErr := s.runner.Run(ctx, *task)
		s.guard.release(task.Mailbox.ID)
		if runErr != nil {
			s.logger.Error("mailbox task failed",
				"worker", id,
				"mailbox_id", task.Mailbox.ID,
				"error", runErr,
			)
			continue
		}
		s.logger.Debug("mailbox task completed",
			"worker", id,
			"mailbox_id", task.Mailbox.ID,
		)
	}
}
