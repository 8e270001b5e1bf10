package dto

import (
	"time"

	"github.com/nashmi-edu/referral-api/internal/models"
	appErrors "github.com/nashmi-edu/referral-api/pkg/errors"
)

// CreateReferralRequest submits a new referral; it always starts pending.
type CreateReferralRequest struct {
	StudentID  string `json:"student_id" validate:"required"`
	Type       string `json:"type" validate:"required,referral_type"`
	TargetRole string `json:"target_role" validate:"required,target_role"`
	Priority   string `json:"priority" validate:"omitempty,priority"`
	Reason     string `json:"reason" validate:"required"`
}

// AssignReferralRequest sets the responsible actor.
type AssignReferralRequest struct {
	AssigneeID string `json:"assignee_id" validate:"required"`
}

// TransferReferralRequest reroutes a referral to another role. Notes are
// mandatory: a transfer without a reason is rejected.
type TransferReferralRequest struct {
	TargetRole string `json:"target_role" validate:"required,target_role"`
	Notes      string `json:"notes" validate:"required"`
}

// NotesRequest carries the optional notes used by complete/close/cancel and
// the mandatory text for add-note.
type NotesRequest struct {
	Notes string `json:"notes"`
}

// RecordViolationRequest captures the behavioural violation to link.
type RecordViolationRequest struct {
	Degree        int       `json:"degree" validate:"required,min=1,max=4"`
	ViolationType string    `json:"violation_type" validate:"required"`
	OccurredAt    time.Time `json:"occurred_at" validate:"required"`
	Location      string    `json:"location"`
	Description   string    `json:"description" validate:"required"`
	NotifyParent  bool      `json:"notify_parent"`
	Recipient     string    `json:"recipient"`
}

// NotifyParentRequest dispatches a message about the referral.
type NotifyParentRequest struct {
	Recipient string `json:"recipient" validate:"required"`
	Message   string `json:"message" validate:"required"`
}

// GenerateDocumentRequest asks the renderer for a printable artifact.
type GenerateDocumentRequest struct {
	DocumentType string `json:"document_type" validate:"required"`
}

// ReferralResult reports a committed state change together with the outcome
// of any post-commit side effect. SideEffect is set when a collaborator
// failed after the transition already committed; the caller retries only the
// side effect.
type ReferralResult struct {
	Referral   *models.Referral `json:"referral"`
	SideEffect *appErrors.Error `json:"side_effect_error,omitempty"`
}

// RecordViolationResult extends ReferralResult with the persisted record and
// the procedure the escalation resolver selected (nil when the ladder for
// the degree is empty).
type RecordViolationResult struct {
	Referral   *models.Referral            `json:"referral"`
	Violation  *models.ViolationRecord     `json:"violation"`
	Procedure  *models.ProcedureDefinition `json:"procedure,omitempty"`
	SideEffect *appErrors.Error            `json:"side_effect_error,omitempty"`
}

// GenerateDocumentResult carries the stored artifact reference.
type GenerateDocumentResult struct {
	Referral    *models.Referral `json:"referral"`
	DocumentID  string           `json:"document_id"`
	DownloadURL string           `json:"download_url,omitempty"`
	ExpiresAt   *time.Time       `json:"expires_at,omitempty"`
	SideEffect  *appErrors.Error `json:"side_effect_error,omitempty"`
}
