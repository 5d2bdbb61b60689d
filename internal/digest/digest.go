// Package digest schedules the weekly goals and monthly analytics emails.
package digest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/applytrak/applytrak/internal/logging"
	"github.com/applytrak/applytrak/internal/metrics"
	"github.com/applytrak/applytrak/internal/notify"
)

// Default schedules, in standard five-field cron syntax.
const (
	DefaultWeeklySpec  = "0 9 * * 1"
	DefaultMonthlySpec = "0 9 1 * *"
)

// DefaultRunTimeout bounds a single digest run.
const DefaultRunTimeout = 30 * time.Minute

// Kinds of digest.
const (
	Weekly  = "weekly"
	Monthly = "monthly"
)

// Sender is what a digest run calls. *notify.Service implements it.
type Sender interface {
	WeeklyDigest(ctx context.Context) (notify.BroadcastResult, error)
	MonthlyDigest(ctx context.Context) (notify.BroadcastResult, error)
}

// Config holds the schedules. Empty specs disable that digest.
type Config struct {
	WeeklySpec  string
	MonthlySpec string
	Location    *time.Location
	RunTimeout  time.Duration
}

// Scheduler runs digests on their cron schedules. Overlapping runs of the same kind are skipped.
type Scheduler struct {
	cron    *cron.Cron
	sender  Sender
	logger  *zap.Logger
	timeout time.Duration

	mu      sync.Mutex
	running map[string]bool
}

// New creates a scheduler. It returns an error for an unparsable spec.
func New(cfg Config, sender Sender, logger *zap.Logger) (*Scheduler, error) {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	timeout := cfg.RunTimeout
	if timeout <= 0 {
		timeout = DefaultRunTimeout
	}

	s := &Scheduler{
		cron:    cron.New(cron.WithLocation(loc)),
		sender:  sender,
		logger:  logging.OrNop(logger),
		timeout: timeout,
		running: make(map[string]bool),
	}

	for kind, spec := range map[string]string{Weekly: cfg.WeeklySpec, Monthly: cfg.MonthlySpec} {
		if spec == "" {
			continue
		}
		if _, err := s.cron.AddFunc(spec, func() { _, _ = s.Run(context.Background(), kind) }); err != nil {
			return nil, fmt.Errorf("invalid %s schedule %q: %w", kind, spec, err)
		}
		s.logger.Info("digest scheduled", zap.String("kind", kind), zap.String("spec", spec))
	}
	return s, nil
}

// Start begins running scheduled digests in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for running digests to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop().Done()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

// Entries returns the next run time of each scheduled digest.
func (s *Scheduler) Entries() []time.Time {
	var next []time.Time
	for _, e := range s.cron.Entries() {
		next = append(next, e.Next)
	}
	return next
}

// Run executes one digest of the given kind now.
func (s *Scheduler) Run(ctx context.Context, kind string) (notify.BroadcastResult, error) {
	var run func(context.Context) (notify.BroadcastResult, error)
	switch kind {
	case Weekly:
		run = s.sender.WeeklyDigest
	case Monthly:
		run = s.sender.MonthlyDigest
	default:
		return notify.BroadcastResult{}, fmt.Errorf("unknown digest kind %q", kind)
	}

	if !s.begin(kind) {
		s.logger.Warn("digest already running, skipped", zap.String("kind", kind))
		return notify.BroadcastResult{}, fmt.Errorf("%s digest already running", kind)
	}
	defer s.end(kind)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	s.logger.Info("digest started", zap.String("kind", kind))
	res, err := run(ctx)
	metrics.RecordDigest(kind, time.Since(start), err == nil)
	if err != nil {
		s.logger.Error("digest failed", zap.String("kind", kind), zap.Error(err))
		return res, err
	}
	s.logger.Info("digest completed",
		zap.String("kind", kind),
		zap.Int("sent", res.Sent),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed),
		zap.Duration("elapsed", time.Since(start)))
	return res, nil
}

func (s *Scheduler) begin(kind string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running[kind] {
		return false
	}
	s.running[kind] = true
	return true
}

func (s *Scheduler) end(kind string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, kind)
}
