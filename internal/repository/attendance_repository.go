package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/nashmi-edu/referral-api/internal/models"
)

// AttendanceRepository is the read-only attendance feed for the escalation
// sweep. Attendance capture itself lives in another system; this repository
// only aggregates what the sweep needs.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// TotalsOverThreshold returns absence totals for students whose accumulated
// unexcused absences reached minDays.
func (r *AttendanceRepository) TotalsOverThreshold(ctx context.Context, minDays int) ([]models.AttendanceTotals, error) {
	const query = `WITH marked AS (
    SELECT student_id, status,
           ROW_NUMBER() OVER (PARTITION BY student_id ORDER BY date) - ROW_NUMBER() OVER (PARTITION BY student_id, status ORDER BY date) AS grp
    FROM daily_attendance
), runs AS (
    SELECT student_id, COUNT(*) AS run_length
    FROM marked
    WHERE status = 'absent'
    GROUP BY student_id, grp
)
SELECT student_id,
       SUM(run_length) AS total_absent_days,
       MAX(run_length) AS consecutive_days
FROM runs
GROUP BY student_id
HAVING SUM(run_length) >= $1`
	var totals []models.AttendanceTotals
	if err := r.db.SelectContext(ctx, &totals, query, minDays); err != nil {
		return nil, fmt.Errorf("aggregate attendance totals: %w", err)
	}
	return totals, nil
}

// TotalsForStudent returns a single student's absence totals.
func (r *AttendanceRepository) TotalsForStudent(ctx context.Context, studentID string) (*models.AttendanceTotals, error) {
	const query = `SELECT student_id,
       COUNT(*) FILTER (WHERE status = 'absent') AS total_absent_days,
       0 AS consecutive_days
FROM daily_attendance WHERE student_id = $1 GROUP BY student_id`
	var totals models.AttendanceTotals
	if err := r.db.GetContext(ctx, &totals, query, studentID); err != nil {
		return nil, err
	}
	return &totals, nil
}
