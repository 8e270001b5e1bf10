package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nashmi-edu/referral-api/internal/models"
)

func TestLevelForDaysThresholds(t *testing.T) {
	require.Equal(t, models.ActionLevel3Days, LevelForDays(0))
	require.Equal(t, models.ActionLevel3Days, LevelForDays(4))
	require.Equal(t, models.ActionLevel5Days, LevelForDays(5))
	require.Equal(t, models.ActionLevel5Days, LevelForDays(9))
	require.Equal(t, models.ActionLevel10Days, LevelForDays(10))
	require.Equal(t, models.ActionLevel10Days, LevelForDays(30))
}

func TestAdvanceLevelNeverDecreases(t *testing.T) {
	require.Equal(t, models.ActionLevel10Days, AdvanceLevel(models.ActionLevel10Days, models.ActionLevel5Days))
	require.Equal(t, models.ActionLevel10Days, AdvanceLevel(models.ActionLevel5Days, models.ActionLevel10Days))
	require.Equal(t, models.ActionLevel3Days, AdvanceLevel(models.ActionLevel3Days, models.ActionLevel3Days))
}

func TestRequiredActionsBaseLevel(t *testing.T) {
	actions := RequiredActions(models.AbsenceTypeRepeated, models.ActionLevel3Days, 4)

	require.Len(t, actions, 2)
	require.NotNil(t, actions.Find(models.ActionCounselorNotified))
	require.NotNil(t, actions.Find(models.ActionLearningPlanCreated))
}

func TestRequiredActionsConsecutiveEscalationAddsProtectionCenter(t *testing.T) {
	actions := RequiredActions(models.AbsenceTypeConsecutive, models.ActionLevel5Days, 6)

	protection := actions.Find(models.ActionProtectionCenterNotified)
	require.NotNil(t, protection)
	require.True(t, protection.Critical)

	// Repeated absences never require the protection center.
	actions = RequiredActions(models.AbsenceTypeRepeated, models.ActionLevel5Days, 6)
	require.Nil(t, actions.Find(models.ActionProtectionCenterNotified))
}

func TestRequiredActionsTenDayObligations(t *testing.T) {
	actions := RequiredActions(models.AbsenceTypeRepeated, models.ActionLevel10Days, 12)

	hotline := actions.Find(models.ActionReportedTo1919)
	require.NotNil(t, hotline)
	require.True(t, hotline.Critical)
	require.NotNil(t, actions.Find(models.ActionEducationDeptNotified))
	require.NotNil(t, actions.Find(models.ActionParentSummoned))
	require.NotNil(t, actions.Find(models.ActionCommitmentTaken))
}

func TestMergeActionsPreservesCompletion(t *testing.T) {
	doneAt := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	current := models.RequiredActionList{
		{Key: models.ActionCounselorNotified, Done: true, DoneAt: &doneAt},
		{Key: models.ActionLearningPlanCreated},
	}
	computed := RequiredActions(models.AbsenceTypeRepeated, models.ActionLevel5Days, 6)

	merged := MergeActions(current, computed)

	counselor := merged.Find(models.ActionCounselorNotified)
	require.True(t, counselor.Done)
	require.Equal(t, &doneAt, counselor.DoneAt)
	require.NotNil(t, merged.Find(models.ActionParentSummoned))
	require.NotNil(t, merged.Find(models.ActionCommitmentTaken))
	require.Len(t, merged, 4)
}

func TestProgressPercentage(t *testing.T) {
	require.Zero(t, Progress(nil))

	actions := models.RequiredActionList{
		{Key: "a", Done: true},
		{Key: "b", Done: true},
		{Key: "c"},
		{Key: "d"},
	}
	require.InDelta(t, 50.0, Progress(actions), 0.001)
}

func TestReevaluateLevelAdvanceEscalates(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	c := models.AbsenceCase{
		StudentID:        "student-1",
		AbsenceType:      models.AbsenceTypeRepeated,
		TotalAbsenceDays: 4,
		ActionLevel:      models.ActionLevel3Days,
		Status:           models.AbsenceCaseActive,
		RequiredActions:  RequiredActions(models.AbsenceTypeRepeated, models.ActionLevel3Days, 4),
	}

	updated := Reevaluate(c, 6, nil, now)

	require.Equal(t, models.ActionLevel5Days, updated.ActionLevel)
	require.Equal(t, models.AbsenceCaseEscalated, updated.Status)
	require.NotNil(t, updated.RequiredActions.Find(models.ActionParentSummoned))
	require.NotNil(t, updated.RequiredActions.Find(models.ActionCommitmentTaken))
	require.Len(t, updated.RequiredActions, 4)
}

func TestReevaluateLevelIsMonotonic(t *testing.T) {
	now := time.Now().UTC()
	c := models.AbsenceCase{
		AbsenceType:      models.AbsenceTypeRepeated,
		TotalAbsenceDays: 12,
		ActionLevel:      models.ActionLevel10Days,
		Status:           models.AbsenceCaseEscalated,
		RequiredActions:  RequiredActions(models.AbsenceTypeRepeated, models.ActionLevel10Days, 12),
	}

	// Attendance improved; the case must not regress.
	updated := Reevaluate(c, 3, nil, now)

	require.Equal(t, models.ActionLevel10Days, updated.ActionLevel)
	require.Equal(t, 12, updated.TotalAbsenceDays)
}

func TestReevaluateSatisfiedLowerLevelDoesNotResolveAfterAdvance(t *testing.T) {
	now := time.Now().UTC()
	actions := RequiredActions(models.AbsenceTypeRepeated, models.ActionLevel5Days, 6)
	for i := range actions {
		actions[i].Done = true
	}
	c := models.AbsenceCase{
		AbsenceType:      models.AbsenceTypeRepeated,
		TotalAbsenceDays: 6,
		ActionLevel:      models.ActionLevel5Days,
		Status:           models.AbsenceCaseActive,
		RequiredActions:  actions,
	}

	updated := Reevaluate(c, 11, nil, now)

	require.Equal(t, models.ActionLevel10Days, updated.ActionLevel)
	require.Equal(t, models.AbsenceCaseEscalated, updated.Status)
	require.Less(t, updated.Progress, 100.0)
	require.False(t, updated.RequiredActions.AllDone())
}

func TestReevaluateResolvesWhenEverythingDone(t *testing.T) {
	now := time.Now().UTC()
	actions := RequiredActions(models.AbsenceTypeRepeated, models.ActionLevel3Days, 4)
	for i := range actions {
		actions[i].Done = true
	}
	c := models.AbsenceCase{
		AbsenceType:      models.AbsenceTypeRepeated,
		TotalAbsenceDays: 4,
		ActionLevel:      models.ActionLevel3Days,
		Status:           models.AbsenceCaseActive,
		RequiredActions:  actions,
	}

	updated := Reevaluate(c, 4, nil, now)

	require.Equal(t, models.AbsenceCaseResolved, updated.Status)
	require.NotNil(t, updated.ResolvedAt)
	require.InDelta(t, 100.0, updated.Progress, 0.001)
}
