package workflow

import (
	"time"

	"github.com/nashmi-edu/referral-api/internal/models"
)

// Absence day thresholds for action levels.
const (
	fiveDayThreshold = 5
	tenDayThreshold  = 10
)

// LevelForDays maps accumulated absence days onto an action level. The
// highest threshold met wins.
func LevelForDays(totalDays int) models.ActionLevel {
	switch {
	case totalDays >= tenDayThreshold:
		return models.ActionLevel10Days
	case totalDays >= fiveDayThreshold:
		return models.ActionLevel5Days
	default:
		return models.ActionLevel3Days
	}
}

// AdvanceLevel returns the higher of the current and computed levels. A
// case's level never decreases even when attendance improves; improvement is
// handled by resolving the case and opening a new one.
func AdvanceLevel(current, computed models.ActionLevel) models.ActionLevel {
	if computed.Rank() > current.Rank() {
		return computed
	}
	return current
}

// RequiredActions builds the obligation set for the given case shape. The
// set is additive with level: escalation only ever introduces obligations.
func RequiredActions(absenceType models.AbsenceType, level models.ActionLevel, totalDays int) models.RequiredActionList {
	actions := models.RequiredActionList{
		{Key: models.ActionCounselorNotified},
		{Key: models.ActionLearningPlanCreated},
	}
	if absenceType == models.AbsenceTypeConsecutive && level.Rank() > models.ActionLevel3Days.Rank() {
		actions = append(actions, models.RequiredAction{Key: models.ActionProtectionCenterNotified, Critical: true})
	}
	if totalDays >= fiveDayThreshold {
		actions = append(actions,
			models.RequiredAction{Key: models.ActionParentSummoned},
			models.RequiredAction{Key: models.ActionCommitmentTaken},
		)
	}
	if totalDays >= tenDayThreshold {
		actions = append(actions,
			models.RequiredAction{Key: models.ActionReportedTo1919, Critical: true},
			models.RequiredAction{Key: models.ActionEducationDeptNotified},
		)
	}
	return actions
}

// MergeActions reconciles the currently stored actions with a freshly
// computed requirement set. Completion state of existing actions is
// preserved; new obligations are appended undone. Keys that dropped out of
// the computed set are kept as well, since obligations never shrink within a
// case.
func MergeActions(current, computed models.RequiredActionList) models.RequiredActionList {
	merged := make(models.RequiredActionList, len(current))
	copy(merged, current)
	for _, action := range computed {
		if merged.Find(action.Key) == nil {
			merged = append(merged, action)
		}
	}
	return merged
}

// Progress returns completed/total as a percentage. An empty set is 0.
func Progress(actions models.RequiredActionList) float64 {
	if len(actions) == 0 {
		return 0
	}
	done := 0
	for _, action := range actions {
		if action.Done {
			done++
		}
	}
	return float64(done) / float64(len(actions)) * 100
}

// Reevaluate applies fresh attendance data to a case and returns the updated
// copy. The level only advances; when advancement leaves unresolved
// obligations the case escalates. A case whose obligations are all complete
// resolves against its current level.
func Reevaluate(c models.AbsenceCase, totalDays int, consecutiveDays *int, now time.Time) models.AbsenceCase {
	if totalDays > c.TotalAbsenceDays {
		c.TotalAbsenceDays = totalDays
	}
	if consecutiveDays != nil {
		c.ConsecutiveDays = consecutiveDays
	}

	previous := c.ActionLevel
	c.ActionLevel = AdvanceLevel(c.ActionLevel, LevelForDays(c.TotalAbsenceDays))

	computed := RequiredActions(c.AbsenceType, c.ActionLevel, c.TotalAbsenceDays)
	c.RequiredActions = MergeActions(c.RequiredActions, computed)
	c.Progress = Progress(c.RequiredActions)

	switch {
	case c.RequiredActions.AllDone():
		if c.Status != models.AbsenceCaseResolved {
			c.Status = models.AbsenceCaseResolved
			c.ResolvedAt = &now
		}
	case c.ActionLevel.Rank() > previous.Rank():
		c.Status = models.AbsenceCaseEscalated
	case c.Status == models.AbsenceCaseResolved:
		// New obligations reopened a previously resolved case.
		c.Status = models.AbsenceCaseActive
		c.ResolvedAt = nil
	}
	return c
}
