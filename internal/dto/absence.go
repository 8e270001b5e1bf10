package dto

// OpenAbsenceCaseRequest opens a new absence case from accumulated
// attendance data.
type OpenAbsenceCaseRequest struct {
	StudentID        string `json:"student_id" validate:"required"`
	AbsenceType      string `json:"absence_type" validate:"required,absence_type"`
	TotalAbsenceDays int    `json:"total_absence_days" validate:"min=0"`
	ConsecutiveDays  *int   `json:"consecutive_days,omitempty"`
}

// ReevaluateAbsenceRequest feeds fresh attendance totals into an open case.
type ReevaluateAbsenceRequest struct {
	TotalAbsenceDays int  `json:"total_absence_days" validate:"min=0"`
	ConsecutiveDays  *int `json:"consecutive_days,omitempty"`
}

// UpsertProcedureRequest creates or replaces a catalog ladder entry.
type UpsertProcedureRequest struct {
	Degree      int    `json:"degree" validate:"required,min=1,max=4"`
	Repetition  int    `json:"repetition" validate:"required,min=1"`
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
}
