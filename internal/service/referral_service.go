package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nashmi-edu/referral-api/internal/dto"
	"github.com/nashmi-edu/referral-api/internal/models"
	"github.com/nashmi-edu/referral-api/internal/notify"
	"github.com/nashmi-edu/referral-api/internal/repository"
	"github.com/nashmi-edu/referral-api/internal/workflow"
	appErrors "github.com/nashmi-edu/referral-api/pkg/errors"
	"github.com/nashmi-edu/referral-api/pkg/export"
)

type referralRepository interface {
	Create(ctx context.Context, referral *models.Referral) error
	GetByID(ctx context.Context, id string) (*models.Referral, error)
	List(ctx context.Context, filter models.ReferralFilter) ([]models.Referral, int, error)
	UpdateState(ctx context.Context, params repository.UpdateStateParams) error
	Delete(ctx context.Context, id string) error
}

type workflowLogRepository interface {
	Append(ctx context.Context, entry *models.WorkflowLogEntry) error
	ListByReferral(ctx context.Context, referralID string) ([]models.WorkflowLogEntry, error)
}

type violationRepository interface {
	Create(ctx context.Context, record *models.ViolationRecord) error
	HistoryForStudent(ctx context.Context, studentID string) ([]models.ViolationRecord, error)
}

type procedureResolver interface {
	LadderForDegree(ctx context.Context, degree int) ([]models.ProcedureDefinition, error)
}

type documentRenderer interface {
	RenderReferral(doc export.ReferralDocument) ([]byte, error)
}

type documentStore interface {
	Save(filename string, data []byte) (string, error)
}

type documentSigner interface {
	Generate(documentID, relPath string) (string, time.Time, error)
}

// ReferralService owns the referral lifecycle. Every state transition runs
// through the same pattern: guard against the transition table, apply a
// conditional update keyed on the allowed source states, then append the
// audit entry. Collaborator calls happen only after the transition committed
// and never roll it back.
type ReferralService struct {
	repo       referralRepository
	log        workflowLogRepository
	violations violationRepository
	procedures procedureResolver
	dispatcher notify.Dispatcher
	renderer   documentRenderer
	store      documentStore
	signer     documentSigner
	csv        *export.CSVExporter
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewReferralService constructs the service and registers the workflow
// validation tags.
func NewReferralService(
	repo referralRepository,
	log workflowLogRepository,
	violations violationRepository,
	procedures procedureResolver,
	dispatcher notify.Dispatcher,
	renderer documentRenderer,
	store documentStore,
	signer documentSigner,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *ReferralService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if dispatcher == nil {
		dispatcher = notify.NewConsoleDispatcher(logger)
	}
	svc := &ReferralService{
		repo:       repo,
		log:        log,
		violations: violations,
		procedures: procedures,
		dispatcher: dispatcher,
		renderer:   renderer,
		store:      store,
		signer:     signer,
		csv:        export.NewCSVExporter(),
		metrics:    metrics,
		validator:  validate,
		logger:     logger,
	}
	registerWorkflowTags(svc.validator)
	return svc
}

// registerWorkflowTags wires the enum validation tags shared by the request
// payloads. Re-registration on a shared validator instance is harmless.
func registerWorkflowTags(v *validator.Validate) {
	_ = v.RegisterValidation("referral_type", func(fl validator.FieldLevel) bool {
		return models.ReferralType(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("target_role", func(fl validator.FieldLevel) bool {
		return models.Role(fl.Field().String()).ValidTarget()
	})
	_ = v.RegisterValidation("priority", func(fl validator.FieldLevel) bool {
		return models.ReferralPriority(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("absence_type", func(fl validator.FieldLevel) bool {
		return models.AbsenceType(fl.Field().String()).Valid()
	})
}

// Create opens a new referral in pending state. Creation itself is not a
// workflow action and leaves no log entry; the trail starts at receive.
func (s *ReferralService) Create(ctx context.Context, req dto.CreateReferralRequest, actor models.Actor) (*models.Referral, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid referral payload")
	}
	priority := models.ReferralPriority(req.Priority)
	if priority == "" {
		priority = models.PriorityMedium
	}
	referral := &models.Referral{
		StudentID:  req.StudentID,
		Type:       models.ReferralType(req.Type),
		TargetRole: models.Role(req.TargetRole),
		Status:     models.ReferralStatusPending,
		Priority:   priority,
		Reason:     req.Reason,
		CreatedBy:  actor.ID,
	}
	if err := s.repo.Create(ctx, referral); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create referral")
	}
	s.logger.Info("referral created",
		zap.String("referral_id", referral.ID),
		zap.String("number", referral.Number),
		zap.String("student_id", referral.StudentID),
	)
	return referral, nil
}

// Get fetches a referral by id.
func (s *ReferralService) Get(ctx context.Context, id string) (*models.Referral, error) {
	referral, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "referral not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load referral")
	}
	return referral, nil
}

// List returns referrals matching the filter.
func (s *ReferralService) List(ctx context.Context, filter models.ReferralFilter) ([]models.Referral, *models.Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 50
	}
	referrals, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list referrals")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return referrals, pagination, nil
}

// Log returns the full audit trail for a referral in order.
func (s *ReferralService) Log(ctx context.Context, id string) ([]models.WorkflowLogEntry, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	entries, err := s.log.ListByReferral(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load workflow log")
	}
	return entries, nil
}

// ExportLog renders the audit trail as CSV and returns the bytes together
// with a suggested filename.
func (s *ReferralService) ExportLog(ctx context.Context, id string) ([]byte, string, error) {
	referral, err := s.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	entries, err := s.log.ListByReferral(ctx, id)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load workflow log")
	}
	data := logDataset(entries)
	payload, err := s.csv.Render(data)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render workflow log export")
	}
	filename := fmt.Sprintf("%s-log.csv", referral.Number)
	return payload, filename, nil
}

// ViolationHistory returns every recorded violation for a student, newest
// first as the repository orders them.
func (s *ReferralService) ViolationHistory(ctx context.Context, studentID string) ([]models.ViolationRecord, error) {
	if strings.TrimSpace(studentID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student id is required")
	}
	history, err := s.violations.HistoryForStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load violation history")
	}
	return history, nil
}

// Receive acknowledges a pending referral. Only the first receive wins; a
// concurrent or repeated receive fails the state guard.
func (s *ReferralService) Receive(ctx context.Context, id string, actor models.Actor) (*models.Referral, error) {
	referral, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := guardTransition(referral, models.ActionReceive); err != nil {
		return nil, err
	}
	receivedBy := actor.ID
	err = s.repo.UpdateState(ctx, repository.UpdateStateParams{
		ID:           referral.ID,
		FromStatuses: models.SourcesFor(models.ActionReceive),
		Status:       models.ReferralStatusReceived,
		ReceivedBy:   &receivedBy,
	})
	if err != nil {
		return nil, s.transitionError(err, "referral is no longer pending")
	}
	referral.Status = models.ReferralStatusReceived
	referral.ReceivedBy = &receivedBy
	if err := s.appendLog(ctx, referral.ID, models.ActionReceive, actor, nil); err != nil {
		return nil, err
	}
	return referral, nil
}

// Assign sets the responsible actor and moves the referral into progress.
func (s *ReferralService) Assign(ctx context.Context, id string, req dto.AssignReferralRequest, actor models.Actor) (*models.Referral, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}
	referral, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := guardTransition(referral, models.ActionAssign); err != nil {
		return nil, err
	}
	assignee := req.AssigneeID
	err = s.repo.UpdateState(ctx, repository.UpdateStateParams{
		ID:           referral.ID,
		FromStatuses: models.SourcesFor(models.ActionAssign),
		Status:       models.ReferralStatusInProgress,
		AssignedTo:   &assignee,
	})
	if err != nil {
		return nil, s.transitionError(err, "referral can no longer be assigned")
	}
	referral.Status = models.ReferralStatusInProgress
	referral.AssignedTo = &assignee
	notes := fmt.Sprintf("assigned to %s", assignee)
	if err := s.appendLog(ctx, referral.ID, models.ActionAssign, actor, &notes); err != nil {
		return nil, err
	}
	return referral, nil
}

// Transfer reroutes the referral to another role. Notes are mandatory so the
// receiving role knows why the case landed on their desk.
func (s *ReferralService) Transfer(ctx context.Context, id string, req dto.TransferReferralRequest, actor models.Actor) (*models.Referral, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "transfer requires a target role and notes")
	}
	referral, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := guardTransition(referral, models.ActionTransfer); err != nil {
		return nil, err
	}
	target := models.Role(req.TargetRole)
	err = s.repo.UpdateState(ctx, repository.UpdateStateParams{
		ID:           referral.ID,
		FromStatuses: models.SourcesFor(models.ActionTransfer),
		Status:       models.ReferralStatusTransferred,
		TargetRole:   &target,
	})
	if err != nil {
		return nil, s.transitionError(err, "referral can no longer be transferred")
	}
	referral.Status = models.ReferralStatusTransferred
	referral.TargetRole = target
	if err := s.appendLog(ctx, referral.ID, models.ActionTransfer, actor, &req.Notes); err != nil {
		return nil, err
	}
	return referral, nil
}

// Complete marks the referral handled.
func (s *ReferralService) Complete(ctx context.Context, id string, req dto.NotesRequest, actor models.Actor) (*models.Referral, error) {
	return s.finalize(ctx, id, models.ActionComplete, models.ReferralStatusCompleted, req.Notes, actor)
}

// Close ends the referral without a completion outcome.
func (s *ReferralService) Close(ctx context.Context, id string, req dto.NotesRequest, actor models.Actor) (*models.Referral, error) {
	return s.finalize(ctx, id, models.ActionClose, models.ReferralStatusClosed, req.Notes, actor)
}

// Cancel withdraws a referral that was already received.
func (s *ReferralService) Cancel(ctx context.Context, id string, req dto.NotesRequest, actor models.Actor) (*models.Referral, error) {
	return s.finalize(ctx, id, models.ActionCancel, models.ReferralStatusCancelled, req.Notes, actor)
}

// finalize applies a terminal transition. All three terminal states stamp
// completed_at so "terminal iff completed_at set" holds.
func (s *ReferralService) finalize(ctx context.Context, id string, action models.ReferralAction, status models.ReferralStatus, notes string, actor models.Actor) (*models.Referral, error) {
	referral, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := guardTransition(referral, action); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	err = s.repo.UpdateState(ctx, repository.UpdateStateParams{
		ID:           referral.ID,
		FromStatuses: models.SourcesFor(action),
		Status:       status,
		CompletedAt:  &now,
	})
	if err != nil {
		return nil, s.transitionError(err, fmt.Sprintf("referral can no longer be %s", status))
	}
	referral.Status = status
	referral.CompletedAt = &now
	var notesPtr *string
	if strings.TrimSpace(notes) != "" {
		notesPtr = &notes
	}
	if err := s.appendLog(ctx, referral.ID, action, actor, notesPtr); err != nil {
		return nil, err
	}
	return referral, nil
}

// AddNote appends a free-form entry to the audit trail without changing
// state.
func (s *ReferralService) AddNote(ctx context.Context, id string, req dto.NotesRequest, actor models.Actor) (*models.WorkflowLogEntry, error) {
	if strings.TrimSpace(req.Notes) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "notes are required")
	}
	referral, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := guardTransition(referral, models.ActionAddNote); err != nil {
		return nil, err
	}
	entry := &models.WorkflowLogEntry{
		ReferralID: referral.ID,
		Action:     models.ActionAddNote,
		ActorID:    actor.ID,
		ActorName:  actor.Name,
		Notes:      &req.Notes,
	}
	if err := s.log.Append(ctx, entry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to append workflow log entry")
	}
	s.metrics.RecordTransition(string(models.ActionAddNote))
	return entry, nil
}

// RecordViolation persists a behavioural violation, resolves the escalation
// procedure from the student's history and links the record to the referral.
// At most one violation may be linked per referral.
func (s *ReferralService) RecordViolation(ctx context.Context, id string, req dto.RecordViolationRequest, actor models.Actor) (*dto.RecordViolationResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid violation payload")
	}
	referral, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if referral.Type != models.ReferralTypeBehavioralViolation {
		return nil, appErrors.Clone(appErrors.ErrValidation, "violations can only be recorded on behavioral referrals")
	}
	if referral.ViolationID != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "referral already has a linked violation")
	}
	if err := guardTransition(referral, models.ActionRecordViolation); err != nil {
		return nil, err
	}

	history, err := s.violations.HistoryForStudent(ctx, referral.StudentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load violation history")
	}
	occurrence := workflow.Occurrence(history, referral.StudentID, req.Degree, req.ViolationType)

	ladder, err := s.procedures.LadderForDegree(ctx, req.Degree)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load procedure ladder")
	}
	var procedure *models.ProcedureDefinition
	var procedureID *string
	if proc, ok := workflow.SelectProcedure(ladder, occurrence); ok {
		procedure = &proc
		procedureID = &proc.ID
	}

	record := &models.ViolationRecord{
		StudentID:     referral.StudentID,
		ReferralID:    &referral.ID,
		Degree:        req.Degree,
		ViolationType: req.ViolationType,
		OccurredAt:    req.OccurredAt,
		Location:      req.Location,
		Description:   req.Description,
		Occurrence:    occurrence,
		ProcedureID:   procedureID,
		CreatedBy:     actor.ID,
	}
	if err := s.violations.Create(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create violation record")
	}

	// Keep the current status; the conditional update only links the record
	// and fails if the status moved underneath us.
	err = s.repo.UpdateState(ctx, repository.UpdateStateParams{
		ID:           referral.ID,
		FromStatuses: []models.ReferralStatus{referral.Status},
		Status:       referral.Status,
		ViolationID:  &record.ID,
	})
	if err != nil {
		return nil, s.transitionError(err, "referral state changed while recording the violation")
	}
	referral.ViolationID = &record.ID

	notes := fmt.Sprintf("degree %d %s, occurrence %d", record.Degree, record.ViolationType, record.Occurrence)
	if procedure != nil {
		notes = fmt.Sprintf("%s, procedure: %s", notes, procedure.Title)
	}
	if err := s.appendLog(ctx, referral.ID, models.ActionRecordViolation, actor, &notes); err != nil {
		return nil, err
	}
	s.metrics.RecordViolation(record.Degree)

	result := &dto.RecordViolationResult{Referral: referral, Violation: record, Procedure: procedure}
	if req.NotifyParent {
		body := fmt.Sprintf("A degree %d violation was recorded for your child (referral %s).", record.Degree, referral.Number)
		if procedure != nil {
			body = fmt.Sprintf("%s Applied procedure: %s.", body, procedure.Title)
		}
		result.SideEffect = s.dispatch(ctx, notify.Message{
			Recipient: req.Recipient,
			Body:      body,
			StudentID: referral.StudentID,
			Reference: referral.Number,
		})
	}
	return result, nil
}

// NotifyParent sends a guardian notification about the referral. The audit
// entry is written first; a dispatch failure is reported as a side effect
// without undoing anything.
func (s *ReferralService) NotifyParent(ctx context.Context, id string, req dto.NotifyParentRequest, actor models.Actor) (*dto.ReferralResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid notification payload")
	}
	referral, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := guardTransition(referral, models.ActionNotifyParent); err != nil {
		return nil, err
	}
	notes := fmt.Sprintf("notified %s", req.Recipient)
	if err := s.appendLog(ctx, referral.ID, models.ActionNotifyParent, actor, &notes); err != nil {
		return nil, err
	}
	result := &dto.ReferralResult{Referral: referral}
	result.SideEffect = s.dispatch(ctx, notify.Message{
		Recipient: req.Recipient,
		Body:      req.Message,
		StudentID: referral.StudentID,
		Reference: referral.Number,
	})
	return result, nil
}

// GenerateDocument renders the referral into a printable PDF, stores it and
// returns a signed download reference.
func (s *ReferralService) GenerateDocument(ctx context.Context, id string, req dto.GenerateDocumentRequest, actor models.Actor) (*dto.GenerateDocumentResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid document payload")
	}
	referral, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := guardTransition(referral, models.ActionGenerateDocument); err != nil {
		return nil, err
	}
	entries, err := s.log.ListByReferral(ctx, referral.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load workflow log")
	}

	payload, err := s.renderer.RenderReferral(referralDocument(referral, entries, req.DocumentType))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrDependency.Code, appErrors.ErrDependency.Status, "document rendering failed")
	}
	relPath := fmt.Sprintf("referrals/%s-%s.pdf", referral.Number, req.DocumentType)
	if _, err := s.store.Save(relPath, payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrDependency.Code, appErrors.ErrDependency.Status, "document storage failed")
	}

	documentID := uuid.NewString()
	notes := fmt.Sprintf("%s document %s", req.DocumentType, documentID)
	if err := s.appendLog(ctx, referral.ID, models.ActionGenerateDocument, actor, &notes); err != nil {
		return nil, err
	}

	result := &dto.GenerateDocumentResult{Referral: referral, DocumentID: documentID}
	token, expiresAt, err := s.signer.Generate(documentID, relPath)
	if err != nil {
		// The document exists and is recorded; only the download link failed.
		result.SideEffect = appErrors.Wrap(err, appErrors.ErrDependency.Code, appErrors.ErrDependency.Status, "failed to sign download url")
		return result, nil
	}
	result.DownloadURL = fmt.Sprintf("/api/v1/documents/%s", token)
	result.ExpiresAt = &expiresAt
	return result, nil
}

// Delete removes a referral and its audit trail. Allowed from any state;
// linked violation records survive detached.
func (s *ReferralService) Delete(ctx context.Context, id string, actor models.Actor) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "referral not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete referral")
	}
	s.logger.Info("referral deleted",
		zap.String("referral_id", id),
		zap.String("actor_id", actor.ID),
	)
	return nil
}

// guardTransition checks the central transition table and produces the
// user-facing invalid-state message.
func guardTransition(referral *models.Referral, action models.ReferralAction) error {
	if referral.Status.Allows(action) {
		return nil
	}
	if referral.Status.Terminal() {
		return appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("referral is already %s", referral.Status))
	}
	if referral.Status == models.ReferralStatusPending {
		return appErrors.Clone(appErrors.ErrInvalidState, "referral must be received before any other action")
	}
	return appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("cannot %s a referral in state %s", action, referral.Status))
}

// transitionError maps the repository's no-rows signal onto the invalid
// state error produced when a concurrent writer won the transition.
func (s *ReferralService) transitionError(err error, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrInvalidState, message)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update referral state")
}

func (s *ReferralService) appendLog(ctx context.Context, referralID string, action models.ReferralAction, actor models.Actor, notes *string) error {
	entry := &models.WorkflowLogEntry{
		ReferralID: referralID,
		Action:     action,
		ActorID:    actor.ID,
		ActorName:  actor.Name,
		Notes:      notes,
	}
	if err := s.log.Append(ctx, entry); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to append workflow log entry")
	}
	s.metrics.RecordTransition(string(action))
	return nil
}

// dispatch sends a notification and converts a failure into the partial
// success side-effect error.
func (s *ReferralService) dispatch(ctx context.Context, msg notify.Message) *appErrors.Error {
	if err := s.dispatcher.Send(ctx, msg); err != nil {
		s.logger.Warn("parent notification failed",
			zap.String("dispatcher", s.dispatcher.Name()),
			zap.String("reference", msg.Reference),
			zap.Error(err),
		)
		s.metrics.RecordNotificationFailure(s.dispatcher.Name())
		return appErrors.Wrap(err, appErrors.ErrDependency.Code, appErrors.ErrDependency.Status, "parent notification failed")
	}
	return nil
}

// referralDocument assembles the renderer input for a printable referral.
func referralDocument(referral *models.Referral, entries []models.WorkflowLogEntry, documentType string) export.ReferralDocument {
	fields := []export.Field{
		{Label: "Referral Number", Value: referral.Number},
		{Label: "Student", Value: referral.StudentID},
		{Label: "Type", Value: string(referral.Type)},
		{Label: "Target Role", Value: string(referral.TargetRole)},
		{Label: "Status", Value: string(referral.Status)},
		{Label: "Priority", Value: string(referral.Priority)},
		{Label: "Reason", Value: referral.Reason},
		{Label: "Created", Value: referral.CreatedAt.Format("2006-01-02 15:04")},
	}
	return export.ReferralDocument{
		Title:    fmt.Sprintf("Student Referral %s", referral.Number),
		Subtitle: documentType,
		Fields:   fields,
		Log:      logDataset(entries),
	}
}

// logDataset flattens workflow log entries for tabular export.
func logDataset(entries []models.WorkflowLogEntry) export.Dataset {
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		notes := ""
		if entry.Notes != nil {
			notes = *entry.Notes
		}
		rows = append(rows, []string{
			entry.CreatedAt.Format(time.RFC3339),
			string(entry.Action),
			entry.ActorName,
			notes,
		})
	}
	return export.Dataset{
		Headers: []string{"Time", "Action", "Actor", "Notes"},
		Rows:    rows,
	}
}
