package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nashmi-edu/referral-api/internal/models"
)

// ProcedureRepository reads and maintains the disciplinary procedure catalog.
type ProcedureRepository struct {
	db *sqlx.DB
}

// NewProcedureRepository constructs the repository.
func NewProcedureRepository(db *sqlx.DB) *ProcedureRepository {
	return &ProcedureRepository{db: db}
}

// LadderForDegree returns the ordered procedure ladder for a degree.
func (r *ProcedureRepository) LadderForDegree(ctx context.Context, degree int) ([]models.ProcedureDefinition, error) {
	const query = `SELECT id, degree, repetition, title, description, created_at, updated_at
	FROM procedure_definitions WHERE degree = $1 ORDER BY repetition ASC`
	var ladder []models.ProcedureDefinition
	if err := r.db.SelectContext(ctx, &ladder, query, degree); err != nil {
		return nil, fmt.Errorf("load procedure ladder: %w", err)
	}
	return ladder, nil
}

// Upsert creates or replaces the ladder entry for (degree, repetition).
func (r *ProcedureRepository) Upsert(ctx context.Context, def *models.ProcedureDefinition) error {
	if def.ID == "" {
		def.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if def.CreatedAt.IsZero() {
		def.CreatedAt = now
	}
	def.UpdatedAt = now
	const query = `INSERT INTO procedure_definitions (id, degree, repetition, title, description, created_at, updated_at)
	VALUES (:id, :degree, :repetition, :title, :description, :created_at, :updated_at)
	ON CONFLICT (degree, repetition) DO UPDATE SET title = EXCLUDED.title, description = EXCLUDED.description, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, def); err != nil {
		return fmt.Errorf("upsert procedure definition: %w", err)
	}
	return nil
}
