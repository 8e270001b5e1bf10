package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nashmi-edu/referral-api/internal/dto"
	"github.com/nashmi-edu/referral-api/internal/models"
	"github.com/nashmi-edu/referral-api/internal/notify"
	"github.com/nashmi-edu/referral-api/internal/repository"
	appErrors "github.com/nashmi-edu/referral-api/pkg/errors"
	"github.com/nashmi-edu/referral-api/pkg/export"
)

type referralRepoStub struct {
	referrals map[string]*models.Referral
	seq       int
	onGet     func(*models.Referral)
}

func newReferralRepoStub() *referralRepoStub {
	return &referralRepoStub{referrals: make(map[string]*models.Referral)}
}

func (r *referralRepoStub) Create(ctx context.Context, referral *models.Referral) error {
	r.seq++
	if referral.ID == "" {
		referral.ID = fmt.Sprintf("ref-%d", r.seq)
	}
	referral.Number = fmt.Sprintf("REF-2026-%04d", r.seq)
	if referral.Status == "" {
		referral.Status = models.ReferralStatusPending
	}
	referral.CreatedAt = time.Now().UTC()
	r.referrals[referral.ID] = referral
	return nil
}

func (r *referralRepoStub) GetByID(ctx context.Context, id string) (*models.Referral, error) {
	if ref, ok := r.referrals[id]; ok {
		copy := *ref
		if r.onGet != nil {
			r.onGet(&copy)
		}
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (r *referralRepoStub) List(ctx context.Context, filter models.ReferralFilter) ([]models.Referral, int, error) {
	result := make([]models.Referral, 0, len(r.referrals))
	for _, ref := range r.referrals {
		result = append(result, *ref)
	}
	return result, len(result), nil
}

func (r *referralRepoStub) UpdateState(ctx context.Context, params repository.UpdateStateParams) error {
	ref, ok := r.referrals[params.ID]
	if !ok {
		return sql.ErrNoRows
	}
	allowed := false
	for _, s := range params.FromStatuses {
		if ref.Status == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return sql.ErrNoRows
	}
	ref.Status = params.Status
	if params.AssignedTo != nil {
		ref.AssignedTo = params.AssignedTo
	}
	if params.ReceivedBy != nil {
		ref.ReceivedBy = params.ReceivedBy
	}
	if params.TargetRole != nil {
		ref.TargetRole = *params.TargetRole
	}
	if params.ViolationID != nil {
		ref.ViolationID = params.ViolationID
	}
	if params.CompletedAt != nil {
		ref.CompletedAt = params.CompletedAt
	}
	return nil
}

func (r *referralRepoStub) Delete(ctx context.Context, id string) error {
	if _, ok := r.referrals[id]; !ok {
		return sql.ErrNoRows
	}
	delete(r.referrals, id)
	return nil
}

type workflowLogStub struct {
	entries []models.WorkflowLogEntry
	failure error
}

func (l *workflowLogStub) Append(ctx context.Context, entry *models.WorkflowLogEntry) error {
	if l.failure != nil {
		return l.failure
	}
	entry.Seq = int64(len(l.entries) + 1)
	entry.CreatedAt = time.Now().UTC()
	l.entries = append(l.entries, *entry)
	return nil
}

func (l *workflowLogStub) ListByReferral(ctx context.Context, referralID string) ([]models.WorkflowLogEntry, error) {
	var result []models.WorkflowLogEntry
	for _, entry := range l.entries {
		if entry.ReferralID == referralID {
			result = append(result, entry)
		}
	}
	return result, nil
}

type violationRepoStub struct {
	records []models.ViolationRecord
}

func (v *violationRepoStub) Create(ctx context.Context, record *models.ViolationRecord) error {
	if record.ID == "" {
		record.ID = fmt.Sprintf("vio-%d", len(v.records)+1)
	}
	record.CreatedAt = time.Now().UTC()
	v.records = append(v.records, *record)
	return nil
}

func (v *violationRepoStub) HistoryForStudent(ctx context.Context, studentID string) ([]models.ViolationRecord, error) {
	var history []models.ViolationRecord
	for _, record := range v.records {
		if record.StudentID == studentID {
			history = append(history, record)
		}
	}
	return history, nil
}

type procedureResolverStub struct {
	ladders map[int][]models.ProcedureDefinition
}

func (p *procedureResolverStub) LadderForDegree(ctx context.Context, degree int) ([]models.ProcedureDefinition, error) {
	return p.ladders[degree], nil
}

type dispatcherStub struct {
	sent    []notify.Message
	failure error
}

func (d *dispatcherStub) Send(ctx context.Context, msg notify.Message) error {
	if d.failure != nil {
		return d.failure
	}
	d.sent = append(d.sent, msg)
	return nil
}

func (d *dispatcherStub) Name() string { return "stub" }

type rendererStub struct {
	failure error
}

func (r *rendererStub) RenderReferral(doc export.ReferralDocument) ([]byte, error) {
	if r.failure != nil {
		return nil, r.failure
	}
	return []byte("%PDF-1.4"), nil
}

type storeStub struct {
	saved map[string][]byte
}

func (s *storeStub) Save(filename string, data []byte) (string, error) {
	if s.saved == nil {
		s.saved = make(map[string][]byte)
	}
	s.saved[filename] = data
	return filename, nil
}

type signerStub struct{}

func (signerStub) Generate(documentID, relPath string) (string, time.Time, error) {
	return documentID + ".token", time.Now().Add(time.Hour), nil
}

type referralFixture struct {
	svc        *ReferralService
	repo       *referralRepoStub
	log        *workflowLogStub
	violations *violationRepoStub
	procedures *procedureResolverStub
	dispatcher *dispatcherStub
}

func newReferralFixture() *referralFixture {
	f := &referralFixture{
		repo:       newReferralRepoStub(),
		log:        &workflowLogStub{},
		violations: &violationRepoStub{},
		procedures: &procedureResolverStub{ladders: map[int][]models.ProcedureDefinition{}},
		dispatcher: &dispatcherStub{},
	}
	f.svc = NewReferralService(f.repo, f.log, f.violations, f.procedures, f.dispatcher,
		&rendererStub{}, &storeStub{}, signerStub{}, nil, nil, nil)
	return f
}

var testActor = models.Actor{ID: "user-1", Name: "Counselor One", Role: models.RoleCounselor}

func (f *referralFixture) createBehavioral(t *testing.T) *models.Referral {
	t.Helper()
	referral, err := f.svc.Create(context.Background(), dto.CreateReferralRequest{
		StudentID:  "student-1",
		Type:       string(models.ReferralTypeBehavioralViolation),
		TargetRole: string(models.RoleVicePrincipal),
		Reason:     "repeated classroom disruption",
	}, testActor)
	require.NoError(t, err)
	return referral
}

func TestReferralLifecycle(t *testing.T) {
	f := newReferralFixture()
	ctx := context.Background()
	referral := f.createBehavioral(t)
	require.Equal(t, models.ReferralStatusPending, referral.Status)
	require.Equal(t, models.PriorityMedium, referral.Priority)
	require.Empty(t, f.log.entries)

	received, err := f.svc.Receive(ctx, referral.ID, testActor)
	require.NoError(t, err)
	require.Equal(t, models.ReferralStatusReceived, received.Status)
	require.NotNil(t, received.ReceivedBy)

	assigned, err := f.svc.Assign(ctx, referral.ID, dto.AssignReferralRequest{AssigneeID: "user-2"}, testActor)
	require.NoError(t, err)
	require.Equal(t, models.ReferralStatusInProgress, assigned.Status)

	completed, err := f.svc.Complete(ctx, referral.ID, dto.NotesRequest{Notes: "handled"}, testActor)
	require.NoError(t, err)
	require.Equal(t, models.ReferralStatusCompleted, completed.Status)
	require.NotNil(t, completed.CompletedAt)

	entries, err := f.svc.Log(ctx, referral.ID)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, models.ActionReceive, entries[0].Action)
	require.Equal(t, models.ActionAssign, entries[1].Action)
	require.Equal(t, models.ActionComplete, entries[2].Action)
}

func TestReferralExportLog(t *testing.T) {
	f := newReferralFixture()
	ctx := context.Background()
	referral := f.createBehavioral(t)

	_, err := f.svc.Receive(ctx, referral.ID, testActor)
	require.NoError(t, err)
	_, err = f.svc.Assign(ctx, referral.ID, dto.AssignReferralRequest{AssigneeID: "user-2"}, testActor)
	require.NoError(t, err)

	payload, filename, err := f.svc.ExportLog(ctx, referral.ID)
	require.NoError(t, err)
	require.Equal(t, referral.Number+"-log.csv", filename)

	lines := strings.Split(strings.TrimRight(string(payload), "\n"), "\n")
	require.Len(t, lines, 3)
	require.Equal(t, "Time,Action,Actor,Notes", lines[0])
	require.Contains(t, lines[1], ",receive,Counselor One,")
	require.Contains(t, lines[2], ",assign,Counselor One,assigned to user-2")
}

func TestReferralCompleteTwice(t *testing.T) {
	f := newReferralFixture()
	ctx := context.Background()
	referral := f.createBehavioral(t)
	_, err := f.svc.Receive(ctx, referral.ID, testActor)
	require.NoError(t, err)
	_, err = f.svc.Complete(ctx, referral.ID, dto.NotesRequest{}, testActor)
	require.NoError(t, err)

	_, err = f.svc.Complete(ctx, referral.ID, dto.NotesRequest{}, testActor)
	require.ErrorIs(t, err, appErrors.ErrInvalidState)
	entries, _ := f.svc.Log(ctx, referral.ID)
	require.Len(t, entries, 2)
}

func TestReferralPendingBlocksActions(t *testing.T) {
	f := newReferralFixture()
	ctx := context.Background()
	referral := f.createBehavioral(t)

	_, err := f.svc.Assign(ctx, referral.ID, dto.AssignReferralRequest{AssigneeID: "user-2"}, testActor)
	require.ErrorIs(t, err, appErrors.ErrInvalidState)

	_, err = f.svc.Transfer(ctx, referral.ID, dto.TransferReferralRequest{TargetRole: string(models.RoleCommittee), Notes: "beyond counselor scope"}, testActor)
	require.ErrorIs(t, err, appErrors.ErrInvalidState)

	_, err = f.svc.Complete(ctx, referral.ID, dto.NotesRequest{}, testActor)
	require.ErrorIs(t, err, appErrors.ErrInvalidState)

	_, err = f.svc.Cancel(ctx, referral.ID, dto.NotesRequest{}, testActor)
	require.ErrorIs(t, err, appErrors.ErrInvalidState)

	_, err = f.svc.AddNote(ctx, referral.ID, dto.NotesRequest{Notes: "note"}, testActor)
	require.ErrorIs(t, err, appErrors.ErrInvalidState)

	require.Empty(t, f.log.entries)
}

func TestReferralConcurrentReceive(t *testing.T) {
	f := newReferralFixture()
	ctx := context.Background()
	referral := f.createBehavioral(t)

	// Another writer wins between the guard read and the conditional update:
	// the read still sees pending, the row no longer is.
	f.repo.referrals[referral.ID].Status = models.ReferralStatusReceived
	f.repo.onGet = func(r *models.Referral) { r.Status = models.ReferralStatusPending }

	_, err := f.svc.Receive(ctx, referral.ID, testActor)
	require.ErrorIs(t, err, appErrors.ErrInvalidState)
	require.Empty(t, f.log.entries)
}

func TestTransferRequiresNotes(t *testing.T) {
	f := newReferralFixture()
	ctx := context.Background()
	referral := f.createBehavioral(t)
	_, err := f.svc.Receive(ctx, referral.ID, testActor)
	require.NoError(t, err)

	_, err = f.svc.Transfer(ctx, referral.ID, dto.TransferReferralRequest{TargetRole: string(models.RoleCommittee)}, testActor)
	require.ErrorIs(t, err, appErrors.ErrValidation)

	transferred, err := f.svc.Transfer(ctx, referral.ID, dto.TransferReferralRequest{TargetRole: string(models.RoleCommittee), Notes: "needs committee review"}, testActor)
	require.NoError(t, err)
	require.Equal(t, models.ReferralStatusTransferred, transferred.Status)
	require.Equal(t, models.RoleCommittee, transferred.TargetRole)
}

func TestRecordViolationResolvesProcedure(t *testing.T) {
	f := newReferralFixture()
	ctx := context.Background()
	f.procedures.ladders[2] = []models.ProcedureDefinition{
		{ID: "proc-1", Degree: 2, Repetition: 1, Title: "Verbal warning"},
		{ID: "proc-2", Degree: 2, Repetition: 2, Title: "Written pledge"},
		{ID: "proc-3", Degree: 2, Repetition: 3, Title: "Parent summons"},
	}
	// One prior violation of the same degree and type.
	f.violations.records = append(f.violations.records, models.ViolationRecord{
		ID: "vio-0", StudentID: "student-1", Degree: 2, ViolationType: "fighting", Occurrence: 1,
	})

	referral := f.createBehavioral(t)
	_, err := f.svc.Receive(ctx, referral.ID, testActor)
	require.NoError(t, err)

	result, err := f.svc.RecordViolation(ctx, referral.ID, dto.RecordViolationRequest{
		Degree:        2,
		ViolationType: "fighting",
		OccurredAt:    time.Now().UTC(),
		Description:   "altercation during recess",
	}, testActor)
	require.NoError(t, err)
	require.Equal(t, 2, result.Violation.Occurrence)
	require.NotNil(t, result.Procedure)
	require.Equal(t, "proc-2", result.Procedure.ID)
	require.NotNil(t, result.Referral.ViolationID)
	require.Equal(t, result.Violation.ID, *result.Referral.ViolationID)
	require.Nil(t, result.SideEffect)

	// A second violation on the same referral conflicts.
	_, err = f.svc.RecordViolation(ctx, referral.ID, dto.RecordViolationRequest{
		Degree:        2,
		ViolationType: "fighting",
		OccurredAt:    time.Now().UTC(),
		Description:   "second altercation",
	}, testActor)
	require.ErrorIs(t, err, appErrors.ErrConflict)
}

func TestRecordViolationSaturatesLadder(t *testing.T) {
	f := newReferralFixture()
	ctx := context.Background()
	f.procedures.ladders[1] = []models.ProcedureDefinition{
		{ID: "proc-1", Degree: 1, Repetition: 1, Title: "Verbal warning"},
		{ID: "proc-2", Degree: 1, Repetition: 2, Title: "Written warning"},
	}
	for i := 0; i < 5; i++ {
		f.violations.records = append(f.violations.records, models.ViolationRecord{
			ID: fmt.Sprintf("vio-%d", i), StudentID: "student-1", Degree: 1, ViolationType: "tardiness",
		})
	}

	referral := f.createBehavioral(t)
	_, err := f.svc.Receive(ctx, referral.ID, testActor)
	require.NoError(t, err)

	result, err := f.svc.RecordViolation(ctx, referral.ID, dto.RecordViolationRequest{
		Degree:        1,
		ViolationType: "tardiness",
		OccurredAt:    time.Now().UTC(),
		Description:   "late again",
	}, testActor)
	require.NoError(t, err)
	require.Equal(t, 6, result.Violation.Occurrence)
	// Occurrence beyond the ladder keeps the last procedure.
	require.Equal(t, "proc-2", result.Procedure.ID)
}

func TestRecordViolationOnAcademicReferral(t *testing.T) {
	f := newReferralFixture()
	ctx := context.Background()
	referral, err := f.svc.Create(ctx, dto.CreateReferralRequest{
		StudentID:  "student-2",
		Type:       string(models.ReferralTypeAcademicWeakness),
		TargetRole: string(models.RoleCounselor),
		Reason:     "failing math",
	}, testActor)
	require.NoError(t, err)
	_, err = f.svc.Receive(ctx, referral.ID, testActor)
	require.NoError(t, err)

	_, err = f.svc.RecordViolation(ctx, referral.ID, dto.RecordViolationRequest{
		Degree:        1,
		ViolationType: "tardiness",
		OccurredAt:    time.Now().UTC(),
		Description:   "late",
	}, testActor)
	require.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestNotifyParentDispatchFailure(t *testing.T) {
	f := newReferralFixture()
	ctx := context.Background()
	f.dispatcher.failure = errors.New("gateway timeout")

	referral := f.createBehavioral(t)
	_, err := f.svc.Receive(ctx, referral.ID, testActor)
	require.NoError(t, err)

	result, err := f.svc.NotifyParent(ctx, referral.ID, dto.NotifyParentRequest{
		Recipient: "guardian-1",
		Message:   "please contact the school",
	}, testActor)
	require.NoError(t, err)
	require.NotNil(t, result.SideEffect)
	require.Equal(t, appErrors.ErrDependency.Code, result.SideEffect.Code)

	// The audit entry survives the failed dispatch.
	entries, err := f.svc.Log(ctx, referral.ID)
	require.NoError(t, err)
	require.Equal(t, models.ActionNotifyParent, entries[len(entries)-1].Action)
}

func TestGenerateDocument(t *testing.T) {
	f := newReferralFixture()
	ctx := context.Background()
	referral := f.createBehavioral(t)
	_, err := f.svc.Receive(ctx, referral.ID, testActor)
	require.NoError(t, err)

	result, err := f.svc.GenerateDocument(ctx, referral.ID, dto.GenerateDocumentRequest{DocumentType: "referral-form"}, testActor)
	require.NoError(t, err)
	require.NotEmpty(t, result.DocumentID)
	require.Contains(t, result.DownloadURL, "/api/v1/documents/")
	require.NotNil(t, result.ExpiresAt)

	entries, err := f.svc.Log(ctx, referral.ID)
	require.NoError(t, err)
	require.Equal(t, models.ActionGenerateDocument, entries[len(entries)-1].Action)
}

func TestGenerateDocumentRendererFailure(t *testing.T) {
	f := newReferralFixture()
	ctx := context.Background()
	renderer := &rendererStub{failure: errors.New("font missing")}
	f.svc = NewReferralService(f.repo, f.log, f.violations, f.procedures, f.dispatcher,
		renderer, &storeStub{}, signerStub{}, nil, nil, nil)

	referral := f.createBehavioral(t)
	_, err := f.svc.Receive(ctx, referral.ID, testActor)
	require.NoError(t, err)
	before := len(f.log.entries)

	_, err = f.svc.GenerateDocument(ctx, referral.ID, dto.GenerateDocumentRequest{DocumentType: "referral-form"}, testActor)
	require.ErrorIs(t, err, appErrors.ErrDependency)
	require.Len(t, f.log.entries, before)
}

func TestReferralDelete(t *testing.T) {
	f := newReferralFixture()
	ctx := context.Background()
	referral := f.createBehavioral(t)

	require.NoError(t, f.svc.Delete(ctx, referral.ID, testActor))
	err := f.svc.Delete(ctx, referral.ID, testActor)
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}
