package dto

import "github.com/crou-platform/crou-housing-api/internal/models"

// CreateBatchRequest is the payload for opening a new application batch.
type CreateBatchRequest struct {
	Name         string `json:"name" validate:"required,min=3,max=120"`
	AcademicYear string `json:"academic_year" validate:"required,len=9"`
}

// CreateStudentRequest is the payload for registering a student.
type CreateStudentRequest struct {
	INE          string `json:"ine" validate:"required,min=4,max=32"`
	FullName     string `json:"full_name" validate:"required,min=2,max=150"`
	Gender       string `json:"gender" validate:"required,oneof=MASCULIN FEMININ"`
	Cycle        string `json:"cycle" validate:"required,oneof=LICENCE MASTER MEDECINE DOCTORAT"`
	LevelOfStudy int    `json:"level_of_study" validate:"required,min=1,max=8"`
	Boursier     bool   `json:"boursier"`
	BacSeries    string `json:"bac_series" validate:"omitempty,max=2"`
	Resident     bool   `json:"resident"`
	Handicape    bool   `json:"handicape"`
}

// UpdateStudentRequest mirrors CreateStudentRequest with an activity flag.
type UpdateStudentRequest struct {
	FullName     string `json:"full_name" validate:"required,min=2,max=150"`
	Gender       string `json:"gender" validate:"required,oneof=MASCULIN FEMININ"`
	Cycle        string `json:"cycle" validate:"required,oneof=LICENCE MASTER MEDECINE DOCTORAT"`
	LevelOfStudy int    `json:"level_of_study" validate:"required,min=1,max=8"`
	Boursier     bool   `json:"boursier"`
	BacSeries    string `json:"bac_series" validate:"omitempty,max=2"`
	Resident     bool   `json:"resident"`
	Handicape    bool   `json:"handicape"`
	Active       bool   `json:"active"`
}

// CreateRoomRequest is the payload for registering a room.
type CreateRoomRequest struct {
	FacilityName      string `json:"facility_name" validate:"required,min=2,max=120"`
	Number            string `json:"number" validate:"required,min=1,max=20"`
	RoomType          string `json:"room_type" validate:"required,min=2,max=40"`
	Capacity          int    `json:"capacity" validate:"required,min=1,max=12"`
	GenderRestriction string `json:"gender_restriction" validate:"required,oneof=MEN_ONLY WOMEN_ONLY MIXED"`
}

// UpdateRoomRequest mutates room attributes other than occupancy counters.
type UpdateRoomRequest struct {
	FacilityName      string `json:"facility_name" validate:"required,min=2,max=120"`
	Number            string `json:"number" validate:"required,min=1,max=20"`
	RoomType          string `json:"room_type" validate:"required,min=2,max=40"`
	Capacity          int    `json:"capacity" validate:"required,min=1,max=12"`
	GenderRestriction string `json:"gender_restriction" validate:"required,oneof=MEN_ONLY WOMEN_ONLY MIXED"`
	Status            string `json:"status" validate:"required,oneof=AVAILABLE MAINTENANCE CLOSED"`
	Active            bool   `json:"active"`
}

// SubmitHousingRequest is the payload for filing a housing request in a batch.
type SubmitHousingRequest struct {
	StudentID          string   `json:"student_id" validate:"required,uuid4"`
	Type               string   `json:"type" validate:"required,oneof=NEW RENEWAL"`
	PreferredRoomTypes []string `json:"preferred_room_types" validate:"omitempty,max=5,dive,min=2,max=40"`
	HasEnrollmentCert  bool     `json:"has_enrollment_cert"`
	HasIDCard          bool     `json:"has_id_card"`
	HasEnrollmentRcpt  bool     `json:"has_enrollment_receipt"`
}

// ReviewRequest decides a pending housing request. The decision is derived
// from the eligibility result; the payload only allows an override comment.
type ReviewRequest struct {
	Comment string `json:"comment" validate:"omitempty,max=500"`
}

// CancelAssignmentRequest is the payload for reversing an assignment.
type CancelAssignmentRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=500"`
}

// RequestView joins a housing request with its eligibility outcome for
// review responses.
type RequestView struct {
	Request     models.HousingRequest `json:"request"`
	Eligibility *EligibilityResult    `json:"eligibility,omitempty"`
}
