package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// AbsenceType distinguishes how the absence days accumulated.
type AbsenceType string

const (
	AbsenceTypeConsecutive AbsenceType = "consecutive"
	AbsenceTypeRepeated    AbsenceType = "repeated"
)

// Valid returns true when the type is a supported value.
func (t AbsenceType) Valid() bool {
	switch t {
	case AbsenceTypeConsecutive, AbsenceTypeRepeated:
		return true
	default:
		return false
	}
}

// ActionLevel is the absence-severity tier driving mandatory follow-ups.
type ActionLevel string

const (
	ActionLevel3Days  ActionLevel = "3days"
	ActionLevel5Days  ActionLevel = "5days"
	ActionLevel10Days ActionLevel = "10days"
)

// Rank orders levels so monotonicity can be enforced arithmetically.
func (l ActionLevel) Rank() int {
	switch l {
	case ActionLevel3Days:
		return 1
	case ActionLevel5Days:
		return 2
	case ActionLevel10Days:
		return 3
	default:
		return 0
	}
}

// AbsenceCaseStatus is the lifecycle state of an absence case.
type AbsenceCaseStatus string

const (
	AbsenceCaseActive    AbsenceCaseStatus = "active"
	AbsenceCaseResolved  AbsenceCaseStatus = "resolved"
	AbsenceCaseEscalated AbsenceCaseStatus = "escalated"
)

// Required action keys, in ladder order.
const (
	ActionCounselorNotified        = "counselor_notified"
	ActionLearningPlanCreated      = "learning_plan_created"
	ActionProtectionCenterNotified = "protection_center_notified"
	ActionParentSummoned           = "parent_summoned"
	ActionCommitmentTaken          = "commitment_taken"
	ActionReportedTo1919           = "reported_to_1919"
	ActionEducationDeptNotified    = "education_dept_notified"
)

// RequiredAction is a named obligation that must be marked done for an
// absence case to resolve.
type RequiredAction struct {
	Key      string     `json:"key"`
	Critical bool       `json:"critical"`
	Done     bool       `json:"done"`
	DoneAt   *time.Time `json:"done_at,omitempty"`
}

// RequiredActionList stores required actions as a JSONB column.
type RequiredActionList []RequiredAction

// Value implements driver.Valuer.
func (l RequiredActionList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner.
func (l *RequiredActionList) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("unsupported required actions type %T", src)
	}
}

// Find returns the action with the given key, or nil.
func (l RequiredActionList) Find(key string) *RequiredAction {
	for i := range l {
		if l[i].Key == key {
			return &l[i]
		}
	}
	return nil
}

// AllDone reports whether every required action has been completed.
func (l RequiredActionList) AllDone() bool {
	for _, action := range l {
		if !action.Done {
			return false
		}
	}
	return len(l) > 0
}

// AbsenceCase tracks accumulated absence and the mandatory follow-ups it
// triggers. ActionLevel never decreases for the lifetime of a case.
type AbsenceCase struct {
	ID               string             `db:"id" json:"id"`
	StudentID        string             `db:"student_id" json:"student_id"`
	AbsenceType      AbsenceType        `db:"absence_type" json:"absence_type"`
	TotalAbsenceDays int                `db:"total_absence_days" json:"total_absence_days"`
	ConsecutiveDays  *int               `db:"consecutive_days" json:"consecutive_days,omitempty"`
	ActionLevel      ActionLevel        `db:"action_level" json:"action_level"`
	Status           AbsenceCaseStatus  `db:"status" json:"status"`
	RequiredActions  RequiredActionList `db:"required_actions" json:"required_actions"`
	Progress         float64            `db:"progress" json:"progress"`
	Version          int                `db:"version" json:"version"`
	OpenedBy         string             `db:"opened_by" json:"opened_by"`
	ResolvedAt       *time.Time         `db:"resolved_at" json:"resolved_at,omitempty"`
	CreatedAt        time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time          `db:"updated_at" json:"updated_at"`
}

// AbsenceCaseFilter constrains listing queries.
type AbsenceCaseFilter struct {
	StudentID string
	Status    []AbsenceCaseStatus
	Level     ActionLevel
	Page      int
	PageSize  int
}

// AttendanceTotals is the read-only attendance feed consumed by the
// escalation sweep.
type AttendanceTotals struct {
	StudentID       string `db:"student_id" json:"student_id"`
	TotalAbsentDays int    `db:"total_absent_days" json:"total_absent_days"`
	ConsecutiveDays int    `db:"consecutive_days" json:"consecutive_days"`
}
