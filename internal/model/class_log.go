package model

import "time"

// ClassLog is the immutable record of a completed session. Exactly one log
// exists per originating schedule row (unique constraint on schedule_id).
// The cost fields are snapshotted from the rate tables at completion time so
// later rate changes never rewrite history. A nil payment date means unpaid.
type ClassLog struct {
	ID              int64      `json:"id"`
	ScheduleID      int64      `json:"schedule_id"`
	ClassNumber     string     `json:"class_number"`
	Title           string     `json:"title"`
	TutorName       string     `json:"tutor_name"`
	StudentName     string     `json:"student_name"`
	Date            time.Time  `json:"date"`
	Day             string     `json:"day"`
	StartTime       string     `json:"start_time"`
	EndTime         string     `json:"end_time"`
	DurationHours   float64    `json:"duration_hours"`
	Subject         string     `json:"subject"`
	Content         string     `json:"content"`
	Homework        string     `json:"homework"`
	AdditionalNotes string     `json:"additional_notes"`
	ClassCost       float64    `json:"class_cost"`
	TutorCost       float64    `json:"tutor_cost"`
	StudentPaidDate *time.Time `json:"student_payment_date"`
	TutorPaidDate   *time.Time `json:"tutor_payment_date"`
	CreatedAt       time.Time  `json:"created_at"`
}
