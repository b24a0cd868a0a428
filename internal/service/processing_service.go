package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/item-processor/internal/domain"
	"github.com/kursadbilgin/item-processor/internal/observability"
	"github.com/kursadbilgin/item-processor/internal/ratelimit"
	"github.com/kursadbilgin/item-processor/internal/tracker"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultProcessConcurrency = 10

var ErrProcessorNotInitialized = errors.New("processing service is not initialized")

// ItemStore is the subset of the item repository a processing run needs.
type ItemStore interface {
	ListIDs(ctx context.Context) ([]int64, error)
	GetByID(ctx context.Context, id int64) (*domain.Item, error)
	Save(ctx context.Context, item *domain.Item) error
}

type ProcessingOptions struct {
	// Concurrency caps how many items are processed at once. Zero means the default of 10.
	Concurrency int
	// Delay is the fixed pause every item takes before it is persisted.
	Delay time.Duration
	// TaskTimeout bounds a single item. Zero means no bound.
	TaskTimeout time.Duration
}

// ProcessResult describes a finished run. Items holds the successfully
// processed items in the order their ids were listed by the store.
type ProcessResult struct {
	RunID     string
	Items     []domain.Item
	Total     int
	Completed int
	Failed    int
	Duration  time.Duration
}

type ProcessingService struct {
	store       ItemStore
	tracker     *tracker.Tracker
	rateLimiter ratelimit.RateLimiter
	logger      *zap.Logger
	metrics     *observability.Metrics

	concurrency int
	delay       time.Duration
	taskTimeout time.Duration

	// runMu serializes runs so one run's reset never wipes another's progress.
	runMu sync.Mutex

	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
	newRunID func() string
}

type taskOutcome struct {
	item *domain.Item
	err  error
}

// NewProcessingService builds the batch processor. rateLimiter may be nil.
func NewProcessingService(
	store ItemStore,
	statusTracker *tracker.Tracker,
	rateLimiter ratelimit.RateLimiter,
	opts ProcessingOptions,
	logger *zap.Logger,
) (*ProcessingService, error) {
	if store == nil {
		return nil, fmt.Errorf("item store is required")
	}
	if statusTracker == nil {
		return nil, fmt.Errorf("status tracker is required")
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultProcessConcurrency
	}
	if opts.Delay < 0 {
		opts.Delay = 0
	}
	if opts.TaskTimeout < 0 {
		opts.TaskTimeout = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ProcessingService{
		store:       store,
		tracker:     statusTracker,
		rateLimiter: rateLimiter,
		logger:      logger,
		concurrency: opts.Concurrency,
		delay:       opts.Delay,
		taskTimeout: opts.TaskTimeout,
		now:         time.Now,
		sleep:       sleepWithContext,
		newRunID:    uuid.NewString,
	}, nil
}

func (s *ProcessingService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// ProcessAll resets the tracker, processes every stored item concurrently and
// returns once each one has reached COMPLETED or FAILED. Per-item failures are
// recorded in the tracker and left out of the result; only a failure to list
// the items fails the run. The run is detached from ctx cancellation.
func (s *ProcessingService) ProcessAll(ctx context.Context) (*ProcessResult, error) {
	if s == nil || s.store == nil || s.tracker == nil {
		return nil, ErrProcessorNotInitialized
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithoutCancel(ctx)

	s.runMu.Lock()
	defer s.runMu.Unlock()

	runID := s.newRunID()
	ctx = observability.WithRunID(ctx, runID)
	logger := observability.WithContextLogger(s.logger, ctx)
	start := s.now()

	logger.Debug("processing run state", zap.String("state", "resetting"))
	s.tracker.Reset()

	ids, err := s.store.ListIDs(ctx)
	if err != nil {
		err = fmt.Errorf("failed to list item ids: %w", err)
		s.metrics.ObserveBatchRun(err, 0, s.now().Sub(start))
		logger.Error("processing run aborted", zap.Error(err))
		return nil, err
	}
	s.tracker.Register(ids)

	logger.Info("processing run started",
		zap.Int("items", len(ids)),
		zap.Int("concurrency", s.concurrency),
	)

	outcomes := make([]taskOutcome, len(ids))
	var g errgroup.Group
	g.SetLimit(s.concurrency)

	logger.Debug("processing run state", zap.String("state", "dispatched"))
	for i, id := range ids {
		g.Go(func() error {
			outcomes[i] = s.processItem(ctx, id)
			return nil
		})
	}

	logger.Debug("processing run state", zap.String("state", "awaiting_all"))
	_ = g.Wait()

	logger.Debug("processing run state", zap.String("state", "aggregating"))
	result := &ProcessResult{
		RunID: runID,
		Items: make([]domain.Item, 0, len(ids)),
		Total: len(ids),
	}
	for _, outcome := range outcomes {
		if outcome.err != nil || outcome.item == nil {
			result.Failed++
			continue
		}
		result.Items = append(result.Items, *outcome.item)
		result.Completed++
	}
	result.Duration = s.now().Sub(start)

	s.metrics.ObserveBatchRun(nil, result.Total, result.Duration)
	logger.Info("processing run finished",
		zap.Int("total", result.Total),
		zap.Int("completed", result.Completed),
		zap.Int("failed", result.Failed),
		zap.Duration("duration", result.Duration),
	)

	return result, nil
}

// Status reports the tracked status of id in the most recent run.
func (s *ProcessingService) Status(id int64) domain.ProcessingStatus {
	if s == nil || s.tracker == nil {
		return domain.ProcessingUnknown
	}
	return s.tracker.Status(id)
}

func (s *ProcessingService) CompletedCount() int64 {
	if s == nil || s.tracker == nil {
		return 0
	}
	return s.tracker.CompletedCount()
}

func (s *ProcessingService) processItem(ctx context.Context, id int64) (outcome taskOutcome) {
	start := s.now()
	s.metrics.IncTasksInFlight()
	defer s.metrics.DecTasksInFlight()

	defer func() {
		if r := recover(); r != nil {
			outcome = taskOutcome{err: fmt.Errorf("process item %d: panic: %v", id, r)}
		}
		s.finishItem(ctx, id, outcome, s.now().Sub(start))
	}()

	s.tracker.SetStatus(id, domain.ProcessingInProgress)

	item, err := s.runItem(ctx, id)
	if err != nil {
		return taskOutcome{err: fmt.Errorf("process item %d: %w", id, err)}
	}
	return taskOutcome{item: item}
}

func (s *ProcessingService) runItem(ctx context.Context, id int64) (*domain.Item, error) {
	if s.taskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.taskTimeout)
		defer cancel()
	}

	item, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load item: %w", err)
	}
	if item == nil {
		return nil, fmt.Errorf("failed to load item: %w", domain.ErrNotFound)
	}

	if s.rateLimiter != nil {
		if err := s.rateLimiter.Wait(ctx, ratelimit.ScopeItemProcessing); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}
	}

	if err := s.sleep(ctx, s.delay); err != nil {
		return nil, fmt.Errorf("processing delay interrupted: %w", err)
	}

	item.Status = domain.ItemStatusProcessed
	if err := s.store.Save(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to save item: %w", err)
	}
	return item, nil
}

func (s *ProcessingService) finishItem(ctx context.Context, id int64, outcome taskOutcome, elapsed time.Duration) {
	if outcome.err == nil && outcome.item != nil {
		s.tracker.SetStatus(id, domain.ProcessingCompleted)
		s.tracker.IncrementCompleted()
		s.metrics.ObserveItemProcessed(observability.OutcomeCompleted, elapsed)
		return
	}

	s.tracker.SetStatus(id, domain.ProcessingFailed)
	s.metrics.ObserveItemProcessed(observability.OutcomeFailed, elapsed)
	observability.WithContextLogger(s.logger, ctx).Warn("item processing failed",
		zap.Int64("itemId", id),
		zap.Duration("elapsed", elapsed),
		zap.Error(outcome.err),
	)
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
