package models

import "time"

// BatchStatus is the lifecycle state of an application batch.
type BatchStatus string

const (
	BatchStatusOpen       BatchStatus = "OPEN"
	BatchStatusClosed     BatchStatus = "CLOSED"
	BatchStatusProcessing BatchStatus = "PROCESSING"
	BatchStatusCompleted  BatchStatus = "COMPLETED"
)

// ApplicationBatch groups housing requests that are processed together. The
// batch is the unit of atomicity for its counters, not for individual
// assignments; the CLOSED -> PROCESSING transition doubles as the mutual
// exclusion gate against concurrent runs.
type ApplicationBatch struct {
	ID                  string      `db:"id" json:"id"`
	TenantID            string      `db:"tenant_id" json:"tenant_id"`
	Name                string      `db:"name" json:"name"`
	AcademicYear        string      `db:"academic_year" json:"academic_year"`
	Status              BatchStatus `db:"status" json:"status"`
	TotalRequests       int         `db:"total_requests" json:"total_requests"`
	ApprovedCount       int         `db:"approved_count" json:"approved_count"`
	AssignedCount       int         `db:"assigned_count" json:"assigned_count"`
	RejectedCount       int         `db:"rejected_count" json:"rejected_count"`
	ProcessingStartedAt *time.Time  `db:"processing_started_at" json:"processing_started_at,omitempty"`
	ProcessingEndedAt   *time.Time  `db:"processing_ended_at" json:"processing_ended_at,omitempty"`
	CreatedAt           time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time   `db:"updated_at" json:"updated_at"`
}

// BatchFilter encapsulates allowed search parameters for listing batches.
type BatchFilter struct {
	Status       BatchStatus
	AcademicYear string
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}
