package models

import (
	"time"

	"github.com/lib/pq"
)

// RequestType distinguishes first-time applications from renewals.
type RequestType string

const (
	RequestTypeNew     RequestType = "NEW"
	RequestTypeRenewal RequestType = "RENEWAL"
)

// RequestStatus is the lifecycle state of a housing request.
type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "PENDING"
	RequestStatusApproved  RequestStatus = "APPROVED"
	RequestStatusRejected  RequestStatus = "REJECTED"
	RequestStatusAssigned  RequestStatus = "ASSIGNED"
	RequestStatusCancelled RequestStatus = "CANCELLED"
)

// HousingRequest is one student's demand for housing within a batch. It owns
// at most one active room assignment at a time.
type HousingRequest struct {
	ID                 string         `db:"id" json:"id"`
	TenantID           string         `db:"tenant_id" json:"tenant_id"`
	StudentID          string         `db:"student_id" json:"student_id"`
	BatchID            string         `db:"batch_id" json:"batch_id"`
	Type               RequestType    `db:"type" json:"type"`
	Status             RequestStatus  `db:"status" json:"status"`
	PriorityScore      int            `db:"priority_score" json:"priority_score"`
	AssignedRoomID     *string        `db:"assigned_room_id" json:"assigned_room_id,omitempty"`
	PreferredRoomTypes pq.StringArray `db:"preferred_room_types" json:"preferred_room_types,omitempty"`
	HasEnrollmentCert  bool           `db:"has_enrollment_cert" json:"has_enrollment_cert"`
	HasIDCard          bool           `db:"has_id_card" json:"has_id_card"`
	HasEnrollmentRcpt  bool           `db:"has_enrollment_receipt" json:"has_enrollment_receipt"`
	SubmittedAt        time.Time      `db:"submitted_at" json:"submitted_at"`
	AssignedAt         *time.Time     `db:"assigned_at" json:"assigned_at,omitempty"`
	AutoAssigned       bool           `db:"auto_assigned" json:"auto_assigned"`
	CancelReason       *string        `db:"cancel_reason" json:"cancel_reason,omitempty"`
	CreatedAt          time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at" json:"updated_at"`
}

// RequestFilter encapsulates allowed search parameters for listing requests.
type RequestFilter struct {
	BatchID   string
	StudentID string
	Type      RequestType
	Status    RequestStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
