package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nashmi-edu/referral-api/internal/models"
)

// WorkflowLogRepository appends and reads the per-referral audit trail.
// Entries are never updated or deleted individually; only a referral delete
// cascades over them.
type WorkflowLogRepository struct {
	db *sqlx.DB
}

// NewWorkflowLogRepository constructs the repository.
func NewWorkflowLogRepository(db *sqlx.DB) *WorkflowLogRepository {
	return &WorkflowLogRepository{db: db}
}

// Append inserts a new log entry. The seq column is a BIGSERIAL so insertion
// order is recoverable even when created_at collides.
func (r *WorkflowLogRepository) Append(ctx context.Context, entry *models.WorkflowLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO workflow_log_entries (id, referral_id, action, actor_id, actor_name, notes, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING seq`
	if err := r.db.QueryRowxContext(ctx, query,
		entry.ID, entry.ReferralID, entry.Action, entry.ActorID, entry.ActorName, entry.Notes, entry.CreatedAt,
	).Scan(&entry.Seq); err != nil {
		return fmt.Errorf("append workflow log entry: %w", err)
	}
	return nil
}

// ListByReferral returns all entries for a referral in creation order,
// insertion sequence breaking wall-clock ties.
func (r *WorkflowLogRepository) ListByReferral(ctx context.Context, referralID string) ([]models.WorkflowLogEntry, error) {
	const query = `SELECT id, referral_id, action, actor_id, actor_name, notes, seq, created_at
	FROM workflow_log_entries WHERE referral_id = $1 ORDER BY created_at ASC, seq ASC`
	var entries []models.WorkflowLogEntry
	if err := r.db.SelectContext(ctx, &entries, query, referralID); err != nil {
		return nil, fmt.Errorf("list workflow log entries: %w", err)
	}
	return entries, nil
}
