package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nashmi-edu/referral-api/internal/models"
)

// ViolationRepository persists immutable violation records.
type ViolationRepository struct {
	db *sqlx.DB
}

// NewViolationRepository constructs the repository.
func NewViolationRepository(db *sqlx.DB) *ViolationRepository {
	return &ViolationRepository{db: db}
}

// Create inserts a new violation record. Records are never updated.
func (r *ViolationRepository) Create(ctx context.Context, record *models.ViolationRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO violation_records
	(id, student_id, referral_id, degree, violation_type, occurred_at, location, description, occurrence, procedure_id, created_by, created_at)
	VALUES (:id, :student_id, :referral_id, :degree, :violation_type, :occurred_at, :location, :description, :occurrence, :procedure_id, :created_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("create violation record: %w", err)
	}
	return nil
}

// List returns violation history per the provided filter, oldest first so
// occurrence numbers read naturally.
func (r *ViolationRepository) List(ctx context.Context, filter models.ViolationFilter) ([]models.ViolationRecord, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.StudentID != "" {
		where = append(where, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Degree > 0 {
		where = append(where, fmt.Sprintf("degree = $%d", len(args)+1))
		args = append(args, filter.Degree)
	}
	if filter.ViolationType != "" {
		where = append(where, fmt.Sprintf("violation_type = $%d", len(args)+1))
		args = append(args, filter.ViolationType)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 100
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT id, student_id, referral_id, degree, violation_type, occurred_at, location, description, occurrence, procedure_id, created_by, created_at
FROM violation_records WHERE %s ORDER BY occurred_at ASC, created_at ASC LIMIT %d OFFSET %d`,
		strings.Join(where, " AND "), size, offset)
	var records []models.ViolationRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("list violation records: %w", err)
	}
	return records, nil
}

// HistoryForStudent returns the full violation history for a student.
func (r *ViolationRepository) HistoryForStudent(ctx context.Context, studentID string) ([]models.ViolationRecord, error) {
	return r.List(ctx, models.ViolationFilter{StudentID: studentID})
}
