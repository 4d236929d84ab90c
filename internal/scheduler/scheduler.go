package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"astra-monitor/internal/models"
	"astra-monitor/internal/source"
)

// State of the scheduler loop.
type State int32

const (
	// StateIdle: sleeping between cycles.
	StateIdle State = iota
	// StateRunning: executing one monitoring cycle.
	StateRunning
)

// String implements fmt.Stringer.
func (s State) String() string {
	if s == StateRunning {
		return "RUNNING"
	}
	return "IDLE"
}

// ReadingChecker evaluates and persists a batch of readings.
type ReadingChecker interface {
	CheckReadings(ctx context.Context, readings []models.Reading) []*models.Event
}

// Scheduler drives periodic monitoring cycles: sample readings, evaluate
// them, persist the outcomes. The loop is unkillable by anything inside
// a cycle; only context cancellation stops it, and an in-flight cycle is
// allowed to finish before the loop exits.
type Scheduler struct {
	source   source.ReadingSource
	checker  ReadingChecker
	interval time.Duration
	logger   *zap.Logger

	// Count of in-flight cycles. A manual trigger may overlap the
	// scheduled loop, so this is a counter rather than a flag.
	active atomic.Int32
}

// New creates a scheduler.
func New(src source.ReadingSource, checker ReadingChecker, interval time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		source:   src,
		checker:  checker,
		interval: interval,
		logger:   logger,
	}
}

// State reports RUNNING while at least one cycle, scheduled or manually
// triggered, is in flight.
func (s *Scheduler) State() State {
	if s.active.Load() > 0 {
		return StateRunning
	}
	return StateIdle
}

// Start runs the polling loop until ctx is cancelled. The first cycle
// runs immediately, then one per interval. Cycles execute on a detached
// context so cancellation stops new cycles without abandoning the one in
// flight.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("Scheduler started",
		zap.Duration("interval", s.interval),
	)

	cycleCtx := context.WithoutCancel(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runScheduled(cycleCtx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler stopped")
			return nil
		case <-ticker.C:
			s.runScheduled(cycleCtx)
		}
	}
}

func (s *Scheduler) runScheduled(ctx context.Context) {
	if _, err := s.RunCycle(ctx); err != nil {
		// Logged and swallowed: a bad cycle never terminates the loop.
		s.logger.Error("Monitoring cycle failed",
			zap.Error(err),
		)
	}
}

// RunCycle executes one monitoring cycle synchronously and returns the
// events it recorded. It backs both the scheduled loop and the manual
// trigger; a reading-source failure is treated as zero readings for the
// cycle rather than an error.
func (s *Scheduler) RunCycle(ctx context.Context) ([]*models.Event, error) {
	s.active.Add(1)
	defer s.active.Add(-1)

	cycleID := uuid.New().String()
	log := s.logger.With(zap.String("cycle_id", cycleID))

	log.Info("Running metrics check")

	readings, err := s.source.MonitorAll(ctx)
	if err != nil {
		log.Error("Reading source failed, treating cycle as empty",
			zap.Error(err),
		)
		readings = nil
	}

	events := s.checker.CheckReadings(ctx, readings)

	breaches := 0
	for _, event := range events {
		if event.Status == models.StatusBreach {
			breaches++
		}
	}

	log.Info("Cycle complete",
		zap.Int("readings", len(readings)),
		zap.Int("events", len(events)),
		zap.Int("breaches", breaches),
	)

	return events, nil
}
