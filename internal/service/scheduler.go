package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const defaultProcessInterval = time.Minute

// BatchProcessor runs one processing pass over every stored item.
type BatchProcessor interface {
	ProcessAll(ctx context.Context) (*ProcessResult, error)
}

// ProcessScheduler triggers a processing run on a fixed interval.
type ProcessScheduler struct {
	processor BatchProcessor
	logger    *zap.Logger
	interval  time.Duration
}

func NewProcessScheduler(processor BatchProcessor, interval time.Duration, logger *zap.Logger) (*ProcessScheduler, error) {
	if processor == nil {
		return nil, fmt.Errorf("batch processor is required")
	}
	if interval <= 0 {
		interval = defaultProcessInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ProcessScheduler{
		processor: processor,
		logger:    logger,
		interval:  interval,
	}, nil
}

// Start runs immediately and then once per interval until ctx is cancelled.
// A failed run is logged and the schedule continues.
func (s *ProcessScheduler) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s.logger.Info("process scheduler started", zap.Duration("interval", s.interval))
	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("process scheduler stopped")
			return nil
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *ProcessScheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	result, err := s.processor.ProcessAll(ctx)
	if err != nil {
		s.logger.Error("scheduled processing run failed", zap.Error(err))
		return
	}

	s.logger.Info("scheduled processing run finished",
		zap.String("runId", result.RunID),
		zap.Int("completed", result.Completed),
		zap.Int("failed", result.Failed),
	)
}
