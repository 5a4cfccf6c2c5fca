package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pratik-mahalle/tocguard/internal/domain/drum"
	"github.com/pratik-mahalle/tocguard/internal/pkg/logger"
	"github.com/robfig/cron/v3"
)

// DrumScheduler runs drum analysis on a cron schedule
type DrumScheduler struct {
	service  drum.Service
	schedule cron.Schedule
	spec     string
	timeout  time.Duration
	logger   *logger.Logger

	mu        sync.Mutex
	scheduler *cron.Cron
	cancel    context.CancelFunc
}

// NewDrumScheduler creates a drum analysis worker. The schedule uses the
// standard five-field cron syntax.
func NewDrumScheduler(service drum.Service, spec string, timeout time.Duration, log *logger.Logger) (*DrumScheduler, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid drum schedule %q: %w", spec, err)
	}

	return &DrumScheduler{
		service:  service,
		schedule: schedule,
		spec:     spec,
		timeout:  timeout,
		logger:   log.Component("drum_scheduler"),
	}, nil
}

// Start begins scheduled analysis. Runs that overlap a still-running one are skipped.
func (s *DrumScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scheduler != nil {
		return fmt.Errorf("drum scheduler is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	adapter := cronLogger{log: s.logger}
	s.scheduler = cron.New(
		cron.WithLogger(adapter),
		cron.WithChain(cron.Recover(adapter), cron.SkipIfStillRunning(adapter)),
	)
	s.scheduler.Schedule(s.schedule, cron.FuncJob(func() {
		_, _ = s.RunOnce(runCtx)
	}))
	s.cancel = cancel
	s.scheduler.Start()

	s.logger.WithFields(map[string]interface{}{
		"schedule": s.spec,
		"next_run": s.schedule.Next(time.Now()),
	}).Info("Drum scheduler started")

	return nil
}

// Stop halts the scheduler and waits for an in-flight analysis to finish
func (s *DrumScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scheduler == nil {
		return
	}

	<-s.scheduler.Stop().Done()
	s.cancel()
	s.scheduler = nil
	s.cancel = nil

	s.logger.Info("Drum scheduler stopped")
}

// IsRunning reports whether the scheduler has been started
func (s *DrumScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduler != nil
}

// NextRun returns the next scheduled analysis after t
func (s *DrumScheduler) NextRun(t time.Time) time.Time {
	return s.schedule.Next(t)
}

// RunOnce performs a single analysis pass
func (s *DrumScheduler) RunOnce(ctx context.Context) (*drum.AnalysisResult, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := s.service.AnalyzeAll(ctx)
	if err != nil {
		s.logger.ErrorWithErr(err, "Scheduled drum analysis failed")
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"analyzed":    result.Analyzed,
		"identified":  result.Identified,
		"updated":     result.Updated,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Scheduled drum analysis completed")

	return result, nil
}

// cronLogger routes cron's internal messages through the application logger
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.WithFields(kvFields(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.WithFields(kvFields(keysAndValues)).ErrorWithErr(err, msg)
}

func kvFields(keysAndValues []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return fields
}
