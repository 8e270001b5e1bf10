package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/nashmi-edu/referral-api/internal/dto"
	"github.com/nashmi-edu/referral-api/internal/models"
	appErrors "github.com/nashmi-edu/referral-api/pkg/errors"
)

const ladderCacheKeyPattern = "procedures:ladder:*"

type procedureRepo interface {
	LadderForDegree(ctx context.Context, degree int) ([]models.ProcedureDefinition, error)
	Upsert(ctx context.Context, def *models.ProcedureDefinition) error
}

type ladderCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// ProcedureService serves the disciplinary procedure catalog. Ladders are
// read far more often than they change, so reads go through the cache and
// every catalog write invalidates all cached ladders.
type ProcedureService struct {
	repo      procedureRepo
	cache     ladderCache
	ttl       time.Duration
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewProcedureService constructs the service.
func NewProcedureService(repo procedureRepo, cache ladderCache, ttl time.Duration, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *ProcedureService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &ProcedureService{
		repo:      repo,
		cache:     cache,
		ttl:       ttl,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

// LadderForDegree returns the ordered procedure ladder for a degree,
// cache-first. Cache failures degrade to the database read.
func (s *ProcedureService) LadderForDegree(ctx context.Context, degree int) ([]models.ProcedureDefinition, error) {
	if degree < models.MinViolationDegree || degree > models.MaxViolationDegree {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("degree must be between %d and %d", models.MinViolationDegree, models.MaxViolationDegree))
	}

	key := fmt.Sprintf("procedures:ladder:%d", degree)
	if s.cache != nil {
		var cached []models.ProcedureDefinition
		err := s.cache.Get(ctx, key, &cached)
		if err == nil {
			s.metrics.RecordCacheLookup(true)
			return cached, nil
		}
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("procedure cache read failed", zap.String("key", key), zap.Error(err))
		}
		s.metrics.RecordCacheLookup(false)
	}

	ladder, err := s.repo.LadderForDegree(ctx, degree)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load procedure ladder")
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, ladder, s.ttl); err != nil {
			s.logger.Warn("procedure cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return ladder, nil
}

// Upsert creates or replaces the catalog entry for (degree, repetition) and
// invalidates cached ladders.
func (s *ProcedureService) Upsert(ctx context.Context, req dto.UpsertProcedureRequest, actor models.Actor) (*models.ProcedureDefinition, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid procedure payload")
	}
	def := &models.ProcedureDefinition{
		Degree:      req.Degree,
		Repetition:  req.Repetition,
		Title:       req.Title,
		Description: req.Description,
	}
	if err := s.repo.Upsert(ctx, def); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to upsert procedure definition")
	}
	if s.cache != nil {
		if err := s.cache.DeleteByPattern(ctx, ladderCacheKeyPattern); err != nil {
			s.logger.Warn("procedure cache invalidation failed", zap.Error(err))
		}
	}
	s.logger.Info("procedure catalog updated",
		zap.Int("degree", def.Degree),
		zap.Int("repetition", def.Repetition),
		zap.String("actor_id", actor.ID),
	)
	return def, nil
}
