package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/nashmi-edu/referral-api/internal/dto"
	"github.com/nashmi-edu/referral-api/internal/models"
	"github.com/nashmi-edu/referral-api/internal/notify"
	"github.com/nashmi-edu/referral-api/internal/workflow"
	appErrors "github.com/nashmi-edu/referral-api/pkg/errors"
)

type absenceCaseRepository interface {
	Create(ctx context.Context, c *models.AbsenceCase) error
	GetByID(ctx context.Context, id string) (*models.AbsenceCase, error)
	List(ctx context.Context, filter models.AbsenceCaseFilter) ([]models.AbsenceCase, int, error)
	FindOpenByStudent(ctx context.Context, studentID string) (*models.AbsenceCase, error)
	Update(ctx context.Context, c *models.AbsenceCase) error
}

// AbsenceService drives the absence escalation ladder. All level and
// obligation logic lives in the workflow package; this service loads,
// applies and persists under the case's optimistic version.
type AbsenceService struct {
	repo       absenceCaseRepository
	dispatcher notify.Dispatcher
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewAbsenceService constructs the service.
func NewAbsenceService(repo absenceCaseRepository, dispatcher notify.Dispatcher, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *AbsenceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if dispatcher == nil {
		dispatcher = notify.NewConsoleDispatcher(logger)
	}
	svc := &AbsenceService{
		repo:       repo,
		dispatcher: dispatcher,
		metrics:    metrics,
		validator:  validate,
		logger:     logger,
	}
	registerWorkflowTags(svc.validator)
	return svc
}

// Open creates a new absence case for a student. A student can have at most
// one unresolved case at a time.
func (s *AbsenceService) Open(ctx context.Context, req dto.OpenAbsenceCaseRequest, actor models.Actor) (*models.AbsenceCase, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid absence case payload")
	}
	existing, err := s.repo.FindOpenByStudent(ctx, req.StudentID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check open absence cases")
	}
	if existing != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student already has an open absence case")
	}

	absenceType := models.AbsenceType(req.AbsenceType)
	level := workflow.LevelForDays(req.TotalAbsenceDays)
	actions := workflow.RequiredActions(absenceType, level, req.TotalAbsenceDays)
	c := &models.AbsenceCase{
		StudentID:        req.StudentID,
		AbsenceType:      absenceType,
		TotalAbsenceDays: req.TotalAbsenceDays,
		ConsecutiveDays:  req.ConsecutiveDays,
		ActionLevel:      level,
		Status:           models.AbsenceCaseActive,
		RequiredActions:  actions,
		Progress:         workflow.Progress(actions),
		OpenedBy:         actor.ID,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create absence case")
	}
	s.logger.Info("absence case opened",
		zap.String("case_id", c.ID),
		zap.String("student_id", c.StudentID),
		zap.String("level", string(c.ActionLevel)),
		zap.Int("total_days", c.TotalAbsenceDays),
	)
	return c, nil
}

// Get fetches an absence case by id.
func (s *AbsenceService) Get(ctx context.Context, id string) (*models.AbsenceCase, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "absence case not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load absence case")
	}
	return c, nil
}

// List returns absence cases matching the filter.
func (s *AbsenceService) List(ctx context.Context, filter models.AbsenceCaseFilter) ([]models.AbsenceCase, *models.Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 50
	}
	cases, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list absence cases")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return cases, pagination, nil
}

// MarkActionDone completes one required action. The case resolves when the
// last open obligation is marked done.
func (s *AbsenceService) MarkActionDone(ctx context.Context, id, key string, actor models.Actor) (*models.AbsenceCase, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	action := c.RequiredActions.Find(key)
	if action == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown required action %q", key))
	}
	if action.Done {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("action %q is already done", key))
	}
	now := time.Now().UTC()
	action.Done = true
	action.DoneAt = &now
	c.Progress = workflow.Progress(c.RequiredActions)
	if c.RequiredActions.AllDone() {
		c.Status = models.AbsenceCaseResolved
		c.ResolvedAt = &now
	}
	if err := s.update(ctx, c); err != nil {
		return nil, err
	}
	s.logger.Info("absence action completed",
		zap.String("case_id", c.ID),
		zap.String("action", key),
		zap.String("actor_id", actor.ID),
		zap.Float64("progress", c.Progress),
	)
	return c, nil
}

// Reevaluate feeds fresh attendance totals into a case. The action level
// only ever advances; an advance with unmet obligations escalates the case.
func (s *AbsenceService) Reevaluate(ctx context.Context, id string, req dto.ReevaluateAbsenceRequest, actor models.Actor) (*models.AbsenceCase, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reevaluation payload")
	}
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.reevaluate(ctx, c, req.TotalAbsenceDays, req.ConsecutiveDays, actor)
}

// ReevaluateStudent is the sweep entry point: it reconciles one student's
// attendance totals against their open case, opening one when the totals
// warrant it and none exists.
func (s *AbsenceService) ReevaluateStudent(ctx context.Context, totals models.AttendanceTotals, actor models.Actor) (*models.AbsenceCase, error) {
	c, err := s.repo.FindOpenByStudent(ctx, totals.StudentID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load open absence case")
		}
		if totals.TotalAbsentDays < 3 {
			return nil, nil
		}
		absenceType := models.AbsenceTypeRepeated
		var consecutive *int
		if totals.ConsecutiveDays >= 3 {
			absenceType = models.AbsenceTypeConsecutive
			days := totals.ConsecutiveDays
			consecutive = &days
		}
		return s.Open(ctx, dto.OpenAbsenceCaseRequest{
			StudentID:        totals.StudentID,
			AbsenceType:      string(absenceType),
			TotalAbsenceDays: totals.TotalAbsentDays,
			ConsecutiveDays:  consecutive,
		}, actor)
	}
	days := totals.ConsecutiveDays
	return s.reevaluate(ctx, c, totals.TotalAbsentDays, &days, actor)
}

func (s *AbsenceService) reevaluate(ctx context.Context, c *models.AbsenceCase, totalDays int, consecutiveDays *int, actor models.Actor) (*models.AbsenceCase, error) {
	previousLevel := c.ActionLevel
	updated := workflow.Reevaluate(*c, totalDays, consecutiveDays, time.Now().UTC())
	if err := s.update(ctx, &updated); err != nil {
		return nil, err
	}
	if updated.ActionLevel.Rank() > previousLevel.Rank() {
		s.metrics.RecordEscalation(string(updated.ActionLevel))
		s.logger.Warn("absence case escalated",
			zap.String("case_id", updated.ID),
			zap.String("student_id", updated.StudentID),
			zap.String("from_level", string(previousLevel)),
			zap.String("to_level", string(updated.ActionLevel)),
			zap.Int("total_days", updated.TotalAbsenceDays),
		)
		s.notifyEscalation(ctx, &updated)
	}
	return &updated, nil
}

// notifyEscalation informs the guardian channel about a level advance. Sent
// after the case committed; a failure is logged, never propagated.
func (s *AbsenceService) notifyEscalation(ctx context.Context, c *models.AbsenceCase) {
	msg := notify.Message{
		Recipient: c.StudentID,
		Body:      fmt.Sprintf("Absence case escalated to level %s after %d absence days.", c.ActionLevel, c.TotalAbsenceDays),
		StudentID: c.StudentID,
		Reference: c.ID,
	}
	if err := s.dispatcher.Send(ctx, msg); err != nil {
		s.metrics.RecordNotificationFailure(s.dispatcher.Name())
		s.logger.Warn("escalation notification failed",
			zap.String("case_id", c.ID),
			zap.Error(err),
		)
	}
}

func (s *AbsenceService) update(ctx context.Context, c *models.AbsenceCase) error {
	if err := s.repo.Update(ctx, c); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrStaleVersion, "absence case was modified concurrently, retry")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update absence case")
	}
	return nil
}
