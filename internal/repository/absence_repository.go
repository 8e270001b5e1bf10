package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/nashmi-edu/referral-api/internal/models"
)

// AbsenceCaseRepository persists absence cases with optimistic versioning.
type AbsenceCaseRepository struct {
	db *sqlx.DB
}

// NewAbsenceCaseRepository constructs the repository.
func NewAbsenceCaseRepository(db *sqlx.DB) *AbsenceCaseRepository {
	return &AbsenceCaseRepository{db: db}
}

// Create inserts a new absence case at version 1.
func (r *AbsenceCaseRepository) Create(ctx context.Context, c *models.AbsenceCase) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Version == 0 {
		c.Version = 1
	}
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	const query = `INSERT INTO absence_cases
	(id, student_id, absence_type, total_absence_days, consecutive_days, action_level, status, required_actions, progress, version, opened_by, resolved_at, created_at, updated_at)
	VALUES (:id, :student_id, :absence_type, :total_absence_days, :consecutive_days, :action_level, :status, :required_actions, :progress, :version, :opened_by, :resolved_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, c); err != nil {
		return fmt.Errorf("create absence case: %w", err)
	}
	return nil
}

// GetByID fetches an absence case by identifier.
func (r *AbsenceCaseRepository) GetByID(ctx context.Context, id string) (*models.AbsenceCase, error) {
	const query = `SELECT id, student_id, absence_type, total_absence_days, consecutive_days, action_level, status, required_actions, progress, version, opened_by, resolved_at, created_at, updated_at
	FROM absence_cases WHERE id = $1`
	var c models.AbsenceCase
	if err := r.db.GetContext(ctx, &c, query, id); err != nil {
		return nil, err
	}
	return &c, nil
}

// List returns absence cases matching the filter, newest first.
func (r *AbsenceCaseRepository) List(ctx context.Context, filter models.AbsenceCaseFilter) ([]models.AbsenceCase, int, error) {
	base := "FROM absence_cases"
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.StudentID != "" {
		where = append(where, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if len(filter.Status) > 0 {
		values := make([]string, len(filter.Status))
		for i, s := range filter.Status {
			values[i] = string(s)
		}
		args = append(args, pq.Array(values))
		where = append(where, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if filter.Level != "" {
		where = append(where, fmt.Sprintf("action_level = $%d", len(args)+1))
		args = append(args, filter.Level)
	}
	whereClause := strings.Join(where, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT id, student_id, absence_type, total_absence_days, consecutive_days, action_level, status, required_actions, progress, version, opened_by, resolved_at, created_at, updated_at
%s WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`, base, whereClause, size, offset)
	var cases []models.AbsenceCase
	if err := r.db.SelectContext(ctx, &cases, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list absence cases: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count absence cases: %w", err)
	}
	return cases, total, nil
}

// FindOpenByStudent returns the student's unresolved case, if any. The sweep
// re-evaluates open cases instead of piling up new ones.
func (r *AbsenceCaseRepository) FindOpenByStudent(ctx context.Context, studentID string) (*models.AbsenceCase, error) {
	const query = `SELECT id, student_id, absence_type, total_absence_days, consecutive_days, action_level, status, required_actions, progress, version, opened_by, resolved_at, created_at, updated_at
	FROM absence_cases WHERE student_id = $1 AND status IN ('active', 'escalated') ORDER BY created_at DESC LIMIT 1`
	var c models.AbsenceCase
	if err := r.db.GetContext(ctx, &c, query, studentID); err != nil {
		return nil, err
	}
	return &c, nil
}

// Update persists a modified case guarded by its version; the write lands
// only when nobody else changed the row since it was read. sql.ErrNoRows
// signals a stale read.
func (r *AbsenceCaseRepository) Update(ctx context.Context, c *models.AbsenceCase) error {
	expected := c.Version
	c.Version = expected + 1
	c.UpdatedAt = time.Now().UTC()
	const query = `UPDATE absence_cases SET
	total_absence_days = :total_absence_days,
	consecutive_days = :consecutive_days,
	action_level = :action_level,
	status = :status,
	required_actions = :required_actions,
	progress = :progress,
	resolved_at = :resolved_at,
	version = :version,
	updated_at = :updated_at
	WHERE id = :id AND version = :expected_version`
	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":                 c.ID,
		"total_absence_days": c.TotalAbsenceDays,
		"consecutive_days":   c.ConsecutiveDays,
		"action_level":       c.ActionLevel,
		"status":             c.Status,
		"required_actions":   c.RequiredActions,
		"progress":           c.Progress,
		"resolved_at":        c.ResolvedAt,
		"version":            c.Version,
		"updated_at":         c.UpdatedAt,
		"expected_version":   expected,
	})
	if err != nil {
		c.Version = expected
		return fmt.Errorf("update absence case: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		c.Version = expected
		return fmt.Errorf("check absence case update rows: %w", err)
	}
	if rows == 0 {
		c.Version = expected
		return sql.ErrNoRows
	}
	return nil
}
