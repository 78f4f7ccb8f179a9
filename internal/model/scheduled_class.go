package model

import "time"

type ScheduledClassStatus string

const (
	ScheduledClassStatusPlanned   ScheduledClassStatus = "planned"
	ScheduledClassStatusConfirmed ScheduledClassStatus = "confirmed"
)

// ScheduledClass is a planned, not-yet-occurred session. It is never updated
// once completion starts: completing a class deletes the row and inserts a
// ClassLog in its place.
type ScheduledClass struct {
	ID        int64                `json:"id"`
	TutorID   string               `json:"tutor_id"`
	StudentID string               `json:"student_id"`
	Subject   string               `json:"subject"`
	Date      time.Time            `json:"date"`
	StartTime string               `json:"start_time"` // "15:04"
	EndTime   string               `json:"end_time"`
	Status    ScheduledClassStatus `json:"status"`
	ZoomLink  string               `json:"zoom_link"`
	Notes     string               `json:"notes"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
}
