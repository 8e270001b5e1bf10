package models

import "time"

// ReferralType classifies why a student case is being routed.
type ReferralType string

const (
	ReferralTypeAcademicWeakness    ReferralType = "academic_weakness"
	ReferralTypeBehavioralViolation ReferralType = "behavioral_violation"
)

// Valid returns true when the type is a supported value.
func (t ReferralType) Valid() bool {
	switch t {
	case ReferralTypeAcademicWeakness, ReferralTypeBehavioralViolation:
		return true
	default:
		return false
	}
}

// ReferralStatus is the lifecycle state of a referral.
type ReferralStatus string

const (
	ReferralStatusPending     ReferralStatus = "pending"
	ReferralStatusReceived    ReferralStatus = "received"
	ReferralStatusInProgress  ReferralStatus = "in_progress"
	ReferralStatusTransferred ReferralStatus = "transferred"
	ReferralStatusCompleted   ReferralStatus = "completed"
	ReferralStatusClosed      ReferralStatus = "closed"
	ReferralStatusCancelled   ReferralStatus = "cancelled"
)

// Terminal reports whether no further workflow actions may change status.
func (s ReferralStatus) Terminal() bool {
	switch s {
	case ReferralStatusCompleted, ReferralStatusClosed, ReferralStatusCancelled:
		return true
	default:
		return false
	}
}

// ReferralPriority orders handling urgency.
type ReferralPriority string

const (
	PriorityLow    ReferralPriority = "low"
	PriorityMedium ReferralPriority = "medium"
	PriorityHigh   ReferralPriority = "high"
	PriorityUrgent ReferralPriority = "urgent"
)

// Valid returns true when the priority is a supported value.
func (p ReferralPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	default:
		return false
	}
}

// ReferralAction names every workflow action recorded in the log.
type ReferralAction string

const (
	ActionReceive          ReferralAction = "receive"
	ActionAssign           ReferralAction = "assign"
	ActionTransfer         ReferralAction = "transfer"
	ActionRecordViolation  ReferralAction = "record_violation"
	ActionComplete         ReferralAction = "complete"
	ActionClose            ReferralAction = "close"
	ActionCancel           ReferralAction = "cancel"
	ActionAddNote          ReferralAction = "add_note"
	ActionGenerateDocument ReferralAction = "generate_document"
	ActionNotifyParent     ReferralAction = "notify_parent"
)

// allowedActions is the central transition table. Guards are checked here and
// nowhere else; an action missing from a state's set is an invalid transition.
var allowedActions = map[ReferralStatus]map[ReferralAction]struct{}{
	ReferralStatusPending: {
		ActionReceive: {},
	},
	ReferralStatusReceived: {
		ActionAssign:           {},
		ActionTransfer:         {},
		ActionRecordViolation:  {},
		ActionComplete:         {},
		ActionClose:            {},
		ActionCancel:           {},
		ActionAddNote:          {},
		ActionGenerateDocument: {},
		ActionNotifyParent:     {},
	},
	ReferralStatusInProgress: {
		ActionAssign:           {},
		ActionTransfer:         {},
		ActionRecordViolation:  {},
		ActionComplete:         {},
		ActionClose:            {},
		ActionCancel:           {},
		ActionAddNote:          {},
		ActionGenerateDocument: {},
		ActionNotifyParent:     {},
	},
	ReferralStatusTransferred: {
		ActionTransfer:         {},
		ActionRecordViolation:  {},
		ActionComplete:         {},
		ActionClose:            {},
		ActionCancel:           {},
		ActionAddNote:          {},
		ActionGenerateDocument: {},
		ActionNotifyParent:     {},
	},
	ReferralStatusCompleted: {},
	ReferralStatusClosed:    {},
	ReferralStatusCancelled: {},
}

// referralStatusOrder keeps SourcesFor output deterministic.
var referralStatusOrder = []ReferralStatus{
	ReferralStatusPending,
	ReferralStatusReceived,
	ReferralStatusInProgress,
	ReferralStatusTransferred,
	ReferralStatusCompleted,
	ReferralStatusClosed,
	ReferralStatusCancelled,
}

// SourcesFor returns every status from which the action is permitted. The
// result feeds the conditional UPDATE that makes transitions atomic.
func SourcesFor(action ReferralAction) []ReferralStatus {
	var sources []ReferralStatus
	for _, s := range referralStatusOrder {
		if s.Allows(action) {
			sources = append(sources, s)
		}
	}
	return sources
}

// Allows reports whether the given action is permitted from this status.
// Deletion is always permitted and therefore not part of the table.
func (s ReferralStatus) Allows(action ReferralAction) bool {
	set, ok := allowedActions[s]
	if !ok {
		return false
	}
	_, ok = set[action]
	return ok
}

// Referral routes a student's case to a responsible role.
type Referral struct {
	ID          string           `db:"id" json:"id"`
	Number      string           `db:"number" json:"number"`
	StudentID   string           `db:"student_id" json:"student_id"`
	Type        ReferralType     `db:"type" json:"type"`
	TargetRole  Role             `db:"target_role" json:"target_role"`
	Status      ReferralStatus   `db:"status" json:"status"`
	Priority    ReferralPriority `db:"priority" json:"priority"`
	Reason      string           `db:"reason" json:"reason"`
	AssignedTo  *string          `db:"assigned_to" json:"assigned_to,omitempty"`
	ReceivedBy  *string          `db:"received_by" json:"received_by,omitempty"`
	ViolationID *string          `db:"violation_id" json:"violation_id,omitempty"`
	CaseID      *string          `db:"case_id" json:"case_id,omitempty"`
	PlanID      *string          `db:"plan_id" json:"plan_id,omitempty"`
	CreatedBy   string           `db:"created_by" json:"created_by"`
	CompletedAt *time.Time       `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time        `db:"updated_at" json:"updated_at"`
}

// ReferralFilter constrains listing queries.
type ReferralFilter struct {
	StudentID  string
	Status     []ReferralStatus
	Type       ReferralType
	TargetRole Role
	AssignedTo string
	Page       int
	PageSize   int
}
