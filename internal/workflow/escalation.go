// Package workflow holds the pure escalation rules: occurrence counting,
// procedure ladder selection, and the absence action ladder. Nothing in this
// package performs I/O; callers persist results and trigger side effects as
// separate explicit steps.
package workflow

import (
	"sort"

	"github.com/nashmi-edu/referral-api/internal/models"
)

// Occurrence returns the 1-based occurrence number a new violation with the
// given (studentID, degree, violationType) would carry: the count of prior
// matching records plus one. A different degree or type restarts counting.
func Occurrence(history []models.ViolationRecord, studentID string, degree int, violationType string) int {
	count := 0
	for _, record := range history {
		if record.StudentID == studentID && record.Degree == degree && record.ViolationType == violationType {
			count++
		}
	}
	return count + 1
}

// SelectProcedure picks the ladder entry whose repetition matches the
// occurrence. When the occurrence exceeds the defined ladder the last
// (highest-repetition) entry is returned: the procedure saturates rather than
// falling off the ladder. An empty ladder yields ok=false.
func SelectProcedure(ladder []models.ProcedureDefinition, occurrence int) (models.ProcedureDefinition, bool) {
	if len(ladder) == 0 {
		return models.ProcedureDefinition{}, false
	}

	ordered := make([]models.ProcedureDefinition, len(ladder))
	copy(ordered, ladder)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Repetition < ordered[j].Repetition
	})

	for _, entry := range ordered {
		if entry.Repetition == occurrence {
			return entry, true
		}
	}
	return ordered[len(ordered)-1], true
}
