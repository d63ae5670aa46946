package models

import "time"

// OccupancyHistory records one academic year of housing for a student. It
// feeds the cycle-limit year count and the renewal rent-paid check; a student
// with no history owes nothing.
type OccupancyHistory struct {
	ID           string     `db:"id" json:"id"`
	TenantID     string     `db:"tenant_id" json:"tenant_id"`
	StudentID    string     `db:"student_id" json:"student_id"`
	RoomID       string     `db:"room_id" json:"room_id"`
	AcademicYear string     `db:"academic_year" json:"academic_year"`
	RentPaid     bool       `db:"rent_paid" json:"rent_paid"`
	StartedAt    time.Time  `db:"started_at" json:"started_at"`
	EndedAt      *time.Time `db:"ended_at" json:"ended_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}
