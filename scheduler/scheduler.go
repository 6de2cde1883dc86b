package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/goliatone/go-onboarding/core"
	glog "github.com/goliatone/go-logger/glog"
)

// TaskRunner processes one mailbox task end to end.
type TaskRunner interface {
	Run(ctx context.Context, task core.MailboxTask) error
}

// ConfigSource is the slice of the core service the producer polls.
type ConfigSource interface {
	ListActiveConfigurations(ctx context.Context) ([]core.WorkflowConfiguration, error)
	GetMailbox(ctx context.Context, id string) (core.Mailbox, error)
}

// Scheduler polls active configurations on a fixed interval, groups them by
// mailbox, and feeds one task per mailbox to a worker pool. A mailbox already
// being processed is skipped for the cycle rather than queued twice; the skip
// keeps a slow IMAP session from stacking identical work behind itself.
type Scheduler struct {
	source   ConfigSource
	runner   TaskRunner
	queue    *TaskQueue
	guard    *inflightGuard
	interval time.Duration
	workers  int
	logger   core.Logger

	wg       sync.WaitGroup
	stop     chan struct{}
	stopOnce sync.Once
	started  bool
	mu       sync.Mutex
}

type Option func(*Scheduler)

func WithInterval(interval time.Duration) Option {
	return func(s *Scheduler) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

func WithWorkers(workers int) Option {
	return func(s *Scheduler) {
		if workers > 0 {
			s.workers = workers
		}
	}
}

func WithQueueBuffer(buffer int) Option {
	return func(s *Scheduler) {
		if buffer > 0 {
			s.queue = NewTaskQueue(buffer)
		}
	}
}

func WithLogger(logger core.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func New(source ConfigSource, runner TaskRunner, opts ...Option) (*Scheduler, error) {
	if source == nil {
		return nil, fmt.Errorf("scheduler: config source is required")
	}
	if runner == nil {
		return nil, fmt.Errorf("scheduler: task runner is required")
	}
	defaults := core.DefaultConfig().Scheduler
	s := &Scheduler{
		source:   source,
		runner:   runner,
		queue:    NewTaskQueue(0),
		guard:    newInflightGuard(),
		interval: defaults.Interval,
		workers:  defaults.Workers,
		logger:   glog.Nop(),
		stop:     make(chan struct{}),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(s)
	}
	return s, nil
}

// Start launches the worker pool and the polling producer. It returns
// immediately; Stop performs the graceful drain.
func (s *Scheduler) Start(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("scheduler: not configured")
	}
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("scheduler: already started")
	}
	s.started = true
	s.mu.Unlock()

	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.workerLoop(ctx, i)
	}

	s.wg.Add(1)
	go s.produceLoop(ctx)

	s.logger.Info("scheduler started",
		"interval", s.interval,
		"workers", s.workers,
	)
	return nil
}

// Stop halts the producer, pushes one sentinel per worker so queued tasks
// drain first, and waits until the pool exits or the context gives up.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.stopOnce.Do(func() {
		close(s.stop)
	})

	for i := 0; i < s.workers; i++ {
		if err := s.queue.PushSentinel(ctx); err != nil {
			return err
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) produceLoop(ctx context.Context) {
	defer s.wg.Done()

	s.produce(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.produce(ctx)
		case <-s.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// produce runs one polling cycle: list active configurations, group them by
// mailbox, and enqueue a task per mailbox not already in flight.
func (s *Scheduler) produce(ctx context.Context) {
	configs, err := s.source.ListActiveConfigurations(ctx)
	if err != nil {
		s.logger.Error("failed to list active configurations", "error", err)
		return
	}
	if len(configs) == 0 {
		s.logger.Debug("no active configurations")
		return
	}

	byMailbox := make(map[string][]core.WorkflowConfiguration)
	for _, cfg := range configs {
		byMailbox[cfg.MailboxID] = append(byMailbox[cfg.MailboxID], cfg)
	}
	mailboxIDs := make([]string, 0, len(byMailbox))
	for id := range byMailbox {
		mailboxIDs = append(mailboxIDs, id)
	}
	sort.Strings(mailboxIDs)

	for _, mailboxID := range mailboxIDs {
		if !s.guard.tryAcquire(mailboxID) {
			s.logger.Debug("mailbox still in flight, skipping cycle", "mailbox_id", mailboxID)
			continue
		}
		mailbox, mbErr := s.source.GetMailbox(ctx, mailboxID)
		if mbErr != nil {
			s.guard.release(mailboxID)
			s.logger.Error("failed to resolve mailbox, skipping its configurations",
				"mailbox_id", mailboxID,
				"error", mbErr,
			)
			continue
		}
		task := &core.MailboxTask{
			Mailbox: mailbox,
			Configs: byMailbox[mailboxID],
		}
		if pushErr := s.queue.Push(ctx, task); pushErr != nil {
			s.guard.release(mailboxID)
			s.logger.Error("failed to enqueue mailbox task",
				"mailbox_id", mailboxID,
				"error", pushErr,
			)
			return
		}
	}
}

// inflightGuard tracks which mailboxes have a task queued or running.
type inflightGuard struct {
	mu     sync.Mutex
	active map[string]struct{}
}

func newInflightGuard() *inflightGuard {
	return &inflightGuard{
		active: make(map[string]struct{}),
	}
}

func (g *inflightGuard) tryAcquire(mailboxID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.active[mailboxID]; busy {
		return false
	}
	g.active[mailboxID] = struct{}{}
	return true
}

func (g *inflightGuard) release(mailboxID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.active, mailboxID)
}
