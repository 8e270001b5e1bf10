package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nashmi-edu/referral-api/internal/dto"
	"github.com/nashmi-edu/referral-api/internal/models"
	appErrors "github.com/nashmi-edu/referral-api/pkg/errors"
)

type absenceRepoStub struct {
	cases map[string]*models.AbsenceCase
	seq   int
	// onGet runs after each read and can mutate stored state, simulating a
	// concurrent writer between the service's read and its update.
	onGet func(c *models.AbsenceCase)
}

func newAbsenceRepoStub() *absenceRepoStub {
	return &absenceRepoStub{cases: make(map[string]*models.AbsenceCase)}
}

func (r *absenceRepoStub) Create(ctx context.Context, c *models.AbsenceCase) error {
	r.seq++
	if c.ID == "" {
		c.ID = fmt.Sprintf("case-%d", r.seq)
	}
	if c.Version == 0 {
		c.Version = 1
	}
	stored := *c
	r.cases[c.ID] = &stored
	return nil
}

func (r *absenceRepoStub) GetByID(ctx context.Context, id string) (*models.AbsenceCase, error) {
	if c, ok := r.cases[id]; ok {
		copy := *c
		copy.RequiredActions = append(models.RequiredActionList(nil), c.RequiredActions...)
		if r.onGet != nil {
			r.onGet(&copy)
		}
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (r *absenceRepoStub) List(ctx context.Context, filter models.AbsenceCaseFilter) ([]models.AbsenceCase, int, error) {
	result := make([]models.AbsenceCase, 0, len(r.cases))
	for _, c := range r.cases {
		result = append(result, *c)
	}
	return result, len(result), nil
}

func (r *absenceRepoStub) FindOpenByStudent(ctx context.Context, studentID string) (*models.AbsenceCase, error) {
	for _, c := range r.cases {
		if c.StudentID == studentID && c.Status != models.AbsenceCaseResolved {
			copy := *c
			copy.RequiredActions = append(models.RequiredActionList(nil), c.RequiredActions...)
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *absenceRepoStub) Update(ctx context.Context, c *models.AbsenceCase) error {
	stored, ok := r.cases[c.ID]
	if !ok || stored.Version != c.Version {
		return sql.ErrNoRows
	}
	c.Version++
	copy := *c
	r.cases[c.ID] = &copy
	return nil
}

type absenceFixture struct {
	svc        *AbsenceService
	repo       *absenceRepoStub
	dispatcher *dispatcherStub
}

func newAbsenceFixture() *absenceFixture {
	f := &absenceFixture{repo: newAbsenceRepoStub(), dispatcher: &dispatcherStub{}}
	f.svc = NewAbsenceService(f.repo, f.dispatcher, nil, nil, nil)
	return f
}

func TestAbsenceOpen(t *testing.T) {
	f := newAbsenceFixture()
	ctx := context.Background()

	c, err := f.svc.Open(ctx, dto.OpenAbsenceCaseRequest{
		StudentID:        "student-1",
		AbsenceType:      string(models.AbsenceTypeRepeated),
		TotalAbsenceDays: 4,
	}, testActor)
	require.NoError(t, err)
	require.Equal(t, models.ActionLevel3Days, c.ActionLevel)
	require.Equal(t, models.AbsenceCaseActive, c.Status)
	require.Len(t, c.RequiredActions, 2)
	require.NotNil(t, c.RequiredActions.Find(models.ActionCounselorNotified))
	require.NotNil(t, c.RequiredActions.Find(models.ActionLearningPlanCreated))
	require.Zero(t, c.Progress)

	// One open case per student.
	_, err = f.svc.Open(ctx, dto.OpenAbsenceCaseRequest{
		StudentID:        "student-1",
		AbsenceType:      string(models.AbsenceTypeRepeated),
		TotalAbsenceDays: 5,
	}, testActor)
	require.ErrorIs(t, err, appErrors.ErrConflict)
}

func TestAbsenceMarkActionDone(t *testing.T) {
	f := newAbsenceFixture()
	ctx := context.Background()
	c, err := f.svc.Open(ctx, dto.OpenAbsenceCaseRequest{
		StudentID:        "student-1",
		AbsenceType:      string(models.AbsenceTypeRepeated),
		TotalAbsenceDays: 3,
	}, testActor)
	require.NoError(t, err)

	_, err = f.svc.MarkActionDone(ctx, c.ID, "no_such_action", testActor)
	require.ErrorIs(t, err, appErrors.ErrValidation)

	updated, err := f.svc.MarkActionDone(ctx, c.ID, models.ActionCounselorNotified, testActor)
	require.NoError(t, err)
	require.InDelta(t, 50.0, updated.Progress, 0.01)
	require.Equal(t, models.AbsenceCaseActive, updated.Status)

	_, err = f.svc.MarkActionDone(ctx, c.ID, models.ActionCounselorNotified, testActor)
	require.ErrorIs(t, err, appErrors.ErrConflict)

	resolved, err := f.svc.MarkActionDone(ctx, c.ID, models.ActionLearningPlanCreated, testActor)
	require.NoError(t, err)
	require.Equal(t, models.AbsenceCaseResolved, resolved.Status)
	require.NotNil(t, resolved.ResolvedAt)
	require.InDelta(t, 100.0, resolved.Progress, 0.01)
}

func TestAbsenceReevaluateEscalates(t *testing.T) {
	f := newAbsenceFixture()
	ctx := context.Background()
	consecutive := 4
	c, err := f.svc.Open(ctx, dto.OpenAbsenceCaseRequest{
		StudentID:        "student-1",
		AbsenceType:      string(models.AbsenceTypeConsecutive),
		TotalAbsenceDays: 4,
		ConsecutiveDays:  &consecutive,
	}, testActor)
	require.NoError(t, err)
	require.Equal(t, models.ActionLevel3Days, c.ActionLevel)

	updated, err := f.svc.Reevaluate(ctx, c.ID, dto.ReevaluateAbsenceRequest{TotalAbsenceDays: 7}, testActor)
	require.NoError(t, err)
	require.Equal(t, models.ActionLevel5Days, updated.ActionLevel)
	require.Equal(t, models.AbsenceCaseEscalated, updated.Status)
	require.NotNil(t, updated.RequiredActions.Find(models.ActionParentSummoned))
	require.NotNil(t, updated.RequiredActions.Find(models.ActionCommitmentTaken))
	require.NotNil(t, updated.RequiredActions.Find(models.ActionProtectionCenterNotified))
	require.Less(t, updated.Progress, 100.0)
	require.Len(t, f.dispatcher.sent, 1)

	// Fewer reported days never lower the level or the stored total.
	again, err := f.svc.Reevaluate(ctx, c.ID, dto.ReevaluateAbsenceRequest{TotalAbsenceDays: 2}, testActor)
	require.NoError(t, err)
	require.Equal(t, models.ActionLevel5Days, again.ActionLevel)
	require.Equal(t, 7, again.TotalAbsenceDays)
}

func TestAbsenceReevaluateToTenDays(t *testing.T) {
	f := newAbsenceFixture()
	ctx := context.Background()
	c, err := f.svc.Open(ctx, dto.OpenAbsenceCaseRequest{
		StudentID:        "student-1",
		AbsenceType:      string(models.AbsenceTypeRepeated),
		TotalAbsenceDays: 6,
	}, testActor)
	require.NoError(t, err)

	updated, err := f.svc.Reevaluate(ctx, c.ID, dto.ReevaluateAbsenceRequest{TotalAbsenceDays: 12}, testActor)
	require.NoError(t, err)
	require.Equal(t, models.ActionLevel10Days, updated.ActionLevel)
	reported := updated.RequiredActions.Find(models.ActionReportedTo1919)
	require.NotNil(t, reported)
	require.True(t, reported.Critical)
	require.NotNil(t, updated.RequiredActions.Find(models.ActionEducationDeptNotified))
}

func TestAbsenceStaleVersion(t *testing.T) {
	f := newAbsenceFixture()
	ctx := context.Background()
	c, err := f.svc.Open(ctx, dto.OpenAbsenceCaseRequest{
		StudentID:        "student-1",
		AbsenceType:      string(models.AbsenceTypeRepeated),
		TotalAbsenceDays: 3,
	}, testActor)
	require.NoError(t, err)

	// Another writer commits between the service's read and its update, so
	// the version the service carries is stale by the time it writes.
	f.repo.onGet = func(*models.AbsenceCase) {
		f.repo.cases[c.ID].Version++
	}

	_, err = f.svc.MarkActionDone(ctx, c.ID, models.ActionCounselorNotified, testActor)
	require.ErrorIs(t, err, appErrors.ErrStaleVersion)
}

func TestReevaluateStudentOpensCase(t *testing.T) {
	f := newAbsenceFixture()
	ctx := context.Background()

	// Below the opening threshold nothing happens.
	c, err := f.svc.ReevaluateStudent(ctx, models.AttendanceTotals{StudentID: "student-1", TotalAbsentDays: 2}, sweepActor)
	require.NoError(t, err)
	require.Nil(t, c)

	c, err = f.svc.ReevaluateStudent(ctx, models.AttendanceTotals{
		StudentID:       "student-1",
		TotalAbsentDays: 6,
		ConsecutiveDays: 4,
	}, sweepActor)
	require.NoError(t, err)
	require.NotNil(t, c)
	require.Equal(t, models.AbsenceTypeConsecutive, c.AbsenceType)
	require.Equal(t, models.ActionLevel5Days, c.ActionLevel)

	// A later sweep feeds the existing case instead of opening another.
	updated, err := f.svc.ReevaluateStudent(ctx, models.AttendanceTotals{
		StudentID:       "student-1",
		TotalAbsentDays: 11,
		ConsecutiveDays: 4,
	}, sweepActor)
	require.NoError(t, err)
	require.Equal(t, c.ID, updated.ID)
	require.Equal(t, models.ActionLevel10Days, updated.ActionLevel)
	require.Len(t, f.repo.cases, 1)
}
