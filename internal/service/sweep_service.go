package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nashmi-edu/referral-api/internal/models"
	"github.com/nashmi-edu/referral-api/pkg/config"
	"github.com/nashmi-edu/referral-api/pkg/jobs"
)

// sweepActor attributes sweep-driven case changes in the audit fields.
var sweepActor = models.Actor{ID: "system", Name: "escalation sweep", Role: models.RoleAdmin}

type attendanceFeed interface {
	TotalsOverThreshold(ctx context.Context, minDays int) ([]models.AttendanceTotals, error)
}

// SweepService periodically reconciles attendance totals against absence
// cases. Each sweep fans the affected students out over the worker queue so
// a slow student never blocks the rest.
type SweepService struct {
	attendance attendanceFeed
	absences   *AbsenceService
	queue      *jobs.Queue
	interval   time.Duration
	minDays    int
	metrics    *MetricsService
	logger     *zap.Logger
}

// NewSweepService constructs the sweep and its backing queue.
func NewSweepService(attendance attendanceFeed, absences *AbsenceService, cfg config.EscalationConfig, metrics *MetricsService, logger *zap.Logger) *SweepService {
	if logger == nil {
		logger = zap.NewNop()
	}
	interval := cfg.SweepInterval
	if interval <= 0 {
		interval = time.Hour
	}
	svc := &SweepService{
		attendance: attendance,
		absences:   absences,
		interval:   interval,
		minDays:    3,
		metrics:    metrics,
		logger:     logger,
	}
	svc.queue = jobs.NewQueue("absence-sweep", svc.handleJob, jobs.QueueConfig{
		Workers: cfg.Workers,
		Logger:  logger,
	})
	return svc
}

// Run executes sweeps on the configured interval until the context ends.
// The first sweep runs immediately.
func (s *SweepService) Run(ctx context.Context) {
	s.queue.Start(ctx)
	defer s.queue.Stop()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep loads all students over the absence threshold and enqueues a
// re-evaluation job per student.
func (s *SweepService) Sweep(ctx context.Context) {
	start := time.Now()
	totals, err := s.attendance.TotalsOverThreshold(ctx, s.minDays)
	if err != nil {
		s.logger.Error("attendance sweep query failed", zap.Error(err))
		return
	}
	enqueued := 0
	for _, t := range totals {
		job := jobs.Job{
			ID:      fmt.Sprintf("sweep-%s-%d", t.StudentID, start.Unix()),
			Type:    "absence-reevaluate",
			Payload: t,
		}
		if err := s.queue.Enqueue(job); err != nil {
			s.logger.Warn("sweep enqueue failed", zap.String("student_id", t.StudentID), zap.Error(err))
			continue
		}
		enqueued++
	}
	s.metrics.ObserveSweep(time.Since(start))
	s.logger.Info("absence sweep dispatched",
		zap.Int("students", len(totals)),
		zap.Int("enqueued", enqueued),
		zap.Duration("elapsed", time.Since(start)),
	)
}

func (s *SweepService) handleJob(ctx context.Context, job jobs.Job) error {
	totals, ok := job.Payload.(models.AttendanceTotals)
	if !ok {
		return fmt.Errorf("unexpected payload type %T for job %s", job.Payload, job.ID)
	}
	c, err := s.absences.ReevaluateStudent(ctx, totals, sweepActor)
	if err != nil {
		return fmt.Errorf("reevaluate student %s: %w", totals.StudentID, err)
	}
	if c != nil {
		s.logger.Debug("student reevaluated",
			zap.String("student_id", totals.StudentID),
			zap.String("case_id", c.ID),
			zap.String("level", string(c.ActionLevel)),
		)
	}
	return nil
}
