package models

import "time"

// Violation degree bounds (1 lowest, 4 highest).
const (
	MinViolationDegree = 1
	MaxViolationDegree = 4
)

// ViolationRecord is an immutable behavioural violation fact for a student.
// Occurrence is the 1-based count of records sharing (student, degree, type)
// at the time this record was created.
type ViolationRecord struct {
	ID            string    `db:"id" json:"id"`
	StudentID     string    `db:"student_id" json:"student_id"`
	ReferralID    *string   `db:"referral_id" json:"referral_id,omitempty"`
	Degree        int       `db:"degree" json:"degree"`
	ViolationType string    `db:"violation_type" json:"violation_type"`
	OccurredAt    time.Time `db:"occurred_at" json:"occurred_at"`
	Location      string    `db:"location" json:"location"`
	Description   string    `db:"description" json:"description"`
	Occurrence    int       `db:"occurrence" json:"occurrence"`
	ProcedureID   *string   `db:"procedure_id" json:"procedure_id,omitempty"`
	CreatedBy     string    `db:"created_by" json:"created_by"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// ViolationFilter constrains violation history queries.
type ViolationFilter struct {
	StudentID     string
	Degree        int
	ViolationType string
	Page          int
	PageSize      int
}

// ProcedureDefinition is a static catalog entry. For a given degree the
// entries form an ordered ladder keyed by repetition count.
type ProcedureDefinition struct {
	ID          string    `db:"id" json:"id"`
	Degree      int       `db:"degree" json:"degree"`
	Repetition  int       `db:"repetition" json:"repetition"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
