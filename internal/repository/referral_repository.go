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

// ReferralRepository persists referrals and their workflow state.
type ReferralRepository struct {
	db *sqlx.DB
}

// NewReferralRepository constructs the repository.
func NewReferralRepository(db *sqlx.DB) *ReferralRepository {
	return &ReferralRepository{db: db}
}

// Create inserts a new referral in pending state and assigns the
// human-readable number from the database sequence.
func (r *ReferralRepository) Create(ctx context.Context, referral *models.Referral) error {
	if referral.ID == "" {
		referral.ID = uuid.NewString()
	}
	if referral.Status == "" {
		referral.Status = models.ReferralStatusPending
	}
	now := time.Now().UTC()
	if referral.CreatedAt.IsZero() {
		referral.CreatedAt = now
	}
	referral.UpdatedAt = now

	if referral.Number == "" {
		var seq int64
		if err := r.db.GetContext(ctx, &seq, "SELECT nextval('referral_number_seq')"); err != nil {
			return fmt.Errorf("next referral number: %w", err)
		}
		referral.Number = fmt.Sprintf("REF-%d-%04d", now.Year(), seq)
	}

	const query = `INSERT INTO referrals
	(id, number, student_id, type, target_role, status, priority, reason, assigned_to, received_by, violation_id, case_id, plan_id, created_by, completed_at, created_at, updated_at)
	VALUES (:id, :number, :student_id, :type, :target_role, :status, :priority, :reason, :assigned_to, :received_by, :violation_id, :case_id, :plan_id, :created_by, :completed_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, referral); err != nil {
		return fmt.Errorf("create referral: %w", err)
	}
	return nil
}

// GetByID fetches a referral by identifier.
func (r *ReferralRepository) GetByID(ctx context.Context, id string) (*models.Referral, error) {
	const query = `SELECT id, number, student_id, type, target_role, status, priority, reason,
       assigned_to, received_by, violation_id, case_id, plan_id, created_by, completed_at, created_at, updated_at
	FROM referrals WHERE id = $1`
	var referral models.Referral
	if err := r.db.GetContext(ctx, &referral, query, id); err != nil {
		return nil, err
	}
	return &referral, nil
}

// List returns referrals matching the filter, newest first.
func (r *ReferralRepository) List(ctx context.Context, filter models.ReferralFilter) ([]models.Referral, int, error) {
	base := "FROM referrals"
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
	if filter.Type != "" {
		where = append(where, fmt.Sprintf("type = $%d", len(args)+1))
		args = append(args, filter.Type)
	}
	if filter.TargetRole != "" {
		where = append(where, fmt.Sprintf("target_role = $%d", len(args)+1))
		args = append(args, filter.TargetRole)
	}
	if filter.AssignedTo != "" {
		where = append(where, fmt.Sprintf("assigned_to = $%d", len(args)+1))
		args = append(args, filter.AssignedTo)
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

	query := fmt.Sprintf(`SELECT id, number, student_id, type, target_role, status, priority, reason,
       assigned_to, received_by, violation_id, case_id, plan_id, created_by, completed_at, created_at, updated_at
%s WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`, base, whereClause, size, offset)
	var referrals []models.Referral
	if err := r.db.SelectContext(ctx, &referrals, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list referrals: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count referrals: %w", err)
	}
	return referrals, total, nil
}

// UpdateStateParams groups the columns a workflow transition may touch. The
// write only lands when the row's status is still one of FromStatuses, which
// makes the guard-check-then-write atomic relative to concurrent writers.
type UpdateStateParams struct {
	ID           string
	FromStatuses []models.ReferralStatus
	Status       models.ReferralStatus
	AssignedTo   *string
	ReceivedBy   *string
	TargetRole   *models.Role
	ViolationID  *string
	CompletedAt  *time.Time
}

// UpdateState applies a guarded transition. sql.ErrNoRows signals that the
// referral was not in an allowed source state at write time.
func (r *ReferralRepository) UpdateState(ctx context.Context, params UpdateStateParams) error {
	setParts := []string{
		"status = :status",
		"updated_at = :updated_at",
	}
	if params.AssignedTo != nil {
		setParts = append(setParts, "assigned_to = :assigned_to")
	}
	if params.ReceivedBy != nil {
		setParts = append(setParts, "received_by = :received_by")
	}
	if params.TargetRole != nil {
		setParts = append(setParts, "target_role = :target_role")
	}
	if params.ViolationID != nil {
		setParts = append(setParts, "violation_id = :violation_id")
	}
	if params.CompletedAt != nil {
		setParts = append(setParts, "completed_at = :completed_at")
	}

	from := make([]string, len(params.FromStatuses))
	for i, s := range params.FromStatuses {
		from[i] = fmt.Sprintf("'%s'", s)
	}
	query := fmt.Sprintf("UPDATE referrals SET %s WHERE id = :id AND status IN (%s)",
		strings.Join(setParts, ", "),
		strings.Join(from, ","),
	)

	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":           params.ID,
		"status":       params.Status,
		"updated_at":   time.Now().UTC(),
		"assigned_to":  params.AssignedTo,
		"received_by":  params.ReceivedBy,
		"target_role":  params.TargetRole,
		"violation_id": params.ViolationID,
		"completed_at": params.CompletedAt,
	})
	if err != nil {
		return fmt.Errorf("update referral state: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check referral update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a referral and its workflow log entries in one transaction.
// Linked violation/case/plan entities are detached, not deleted.
func (r *ReferralRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin referral delete: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "UPDATE violation_records SET referral_id = NULL WHERE referral_id = $1", id); err != nil {
		return fmt.Errorf("detach violations: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM workflow_log_entries WHERE referral_id = $1", id); err != nil {
		return fmt.Errorf("delete workflow log: %w", err)
	}
	result, err := tx.ExecContext(ctx, "DELETE FROM referrals WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete referral: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check referral delete rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit referral delete: %w", err)
	}
	return nil
}
