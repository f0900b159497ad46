package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/crashkeeper/internal/logging"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
)

var (
	errRetryRequested = errors.New("task requested retry")
	errNoConnectivity = errors.New("no network connectivity")
)

// TaskScheduler is the in-process implementation of the background task
// runtime. Per kind it keeps at most one running and one pending run:
// scheduling an already-pending kind coalesces (replace-on-conflict), so
// bursts of triggers cannot pile up duplicate work. Tasks returning Retry
// are re-run with capped exponential backoff.
type TaskScheduler struct {
	reg         Registry
	constraints map[Kind]Constraint
	online      func() bool
	baseDelay   time.Duration
	maxRetries  uint64
	log         logging.Logger

	mu      sync.Mutex
	running map[Kind]bool
	pending map[Kind]bool
	wg      sync.WaitGroup
}

// SchedulerOption customizes a TaskScheduler.
type SchedulerOption func(*TaskScheduler)

// WithConnectivity sets the connectivity probe used for ConstraintNetwork
// tasks. The default assumes connectivity.
func WithConnectivity(online func() bool) SchedulerOption {
	return func(s *TaskScheduler) { s.online = online }
}

// WithBaseDelay sets the initial retry backoff.
func WithBaseDelay(d time.Duration) SchedulerOption {
	return func(s *TaskScheduler) { s.baseDelay = d }
}

// WithMaxRetries caps per-trigger retry attempts. The work is not lost when
// the cap is hit; the next trigger starts a fresh attempt cycle.
func WithMaxRetries(n uint64) SchedulerOption {
	return func(s *TaskScheduler) { s.maxRetries = n }
}

func NewTaskScheduler(reg Registry, constraints map[Kind]Constraint, log logging.Logger, opts ...SchedulerOption) *TaskScheduler {
	s := &TaskScheduler{
		reg:         reg,
		constraints: constraints,
		online:      func() bool { return true },
		baseDelay:   5 * time.Second,
		maxRetries:  5,
		log:         log,
		running:     make(map[Kind]bool),
		pending:     make(map[Kind]bool),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Schedule triggers a run of kind. Unknown kinds are logged and dropped.
func (s *TaskScheduler) Schedule(kind Kind) {
	if _, ok := s.reg[kind]; !ok {
		s.log.Error(context.Background(), "no factory registered for task kind", "kind", string(kind))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running[kind] {
		// coalesce: one pending re-run replaces any number of triggers
		s.pending[kind] = true
		return
	}
	s.running[kind] = true
	s.wg.Add(1)
	go s.run(kind)
}

// Wait blocks until all in-flight runs (including coalesced re-runs) have
// finished. Used in tests and on shutdown.
func (s *TaskScheduler) Wait() {
	s.wg.Wait()
}

func (s *TaskScheduler) run(kind Kind) {
	defer s.wg.Done()

	ctx := context.Background()
	log := s.log.With("kind", string(kind), "run", uuid.NewString())

	if err := s.attempt(ctx, kind); err != nil {
		log.Warn(ctx, "task gave up after retries, awaiting next trigger", "error", err)
	}

	s.mu.Lock()
	rerun := s.pending[kind]
	delete(s.pending, kind)
	if rerun {
		s.wg.Add(1)
		go s.run(kind)
	} else {
		delete(s.running, kind)
	}
	s.mu.Unlock()
}

// attempt runs the task until Done or the retry budget is exhausted. A
// network-constrained task with no connectivity counts as a retryable
// condition rather than a run.
func (s *TaskScheduler) attempt(ctx context.Context, kind Kind) error {
	backoff := retry.WithMaxRetries(s.maxRetries, retry.NewExponential(s.baseDelay))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if s.constraints[kind] == ConstraintNetwork && !s.online() {
			return retry.RetryableError(errNoConnectivity)
		}
		if s.reg[kind]().Run(ctx) == Retry {
			return retry.RetryableError(errRetryRequested)
		}
		return nil
	})
}
