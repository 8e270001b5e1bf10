package models

import "time"

// WorkflowLogEntry is an immutable fact about an action taken on a referral.
// Entries are append-only and ordered by created_at with seq breaking ties.
type WorkflowLogEntry struct {
	ID         string         `db:"id" json:"id"`
	ReferralID string         `db:"referral_id" json:"referral_id"`
	Action     ReferralAction `db:"action" json:"action"`
	ActorID    string         `db:"actor_id" json:"actor_id"`
	ActorName  string         `db:"actor_name" json:"actor_name"`
	Notes      *string        `db:"notes" json:"notes,omitempty"`
	Seq        int64          `db:"seq" json:"seq"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
}
