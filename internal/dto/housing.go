package dto

import "time"

// AssignmentResult is the outcome of one request's assignment attempt. Either
// the room fields are populated or Error carries the failure reason; every
// candidate in a batch run yields exactly one result.
type AssignmentResult struct {
	RequestID    string `json:"request_id"`
	StudentID    string `json:"student_id,omitempty"`
	StudentName  string `json:"student_name,omitempty"`
	RoomID       string `json:"room_id,omitempty"`
	RoomNumber   string `json:"room_number,omitempty"`
	FacilityName string `json:"facility_name,omitempty"`
	Success      bool   `json:"success"`
	Error        string `json:"error,omitempty"`
}

// BatchAssignmentReport summarises a completed batch run.
type BatchAssignmentReport struct {
	BatchID       string             `json:"batch_id"`
	BatchName     string             `json:"batch_name"`
	TotalRequests int                `json:"total_requests"`
	SuccessCount  int                `json:"success_count"`
	FailureCount  int                `json:"failure_count"`
	Results       []AssignmentResult `json:"results"`
	StartedAt     time.Time          `json:"started_at"`
	CompletedAt   time.Time          `json:"completed_at"`
	DurationMs    int64              `json:"duration_ms"`
}

// BatchStatistics is the read-side aggregation of a batch's progress.
type BatchStatistics struct {
	Total              int     `json:"total"`
	Assigned           int     `json:"assigned"`
	Pending            int     `json:"pending"`
	Failed             int     `json:"failed"`
	ProgressPercentage float64 `json:"progress_percentage"`
}

// EligibilityChecks reports every individual rule evaluation. IsHandicape is
// always evaluated regardless of the eligibility outcome since it is a
// separate absolute-priority signal.
type EligibilityChecks struct {
	IsBoursier            bool `json:"isBoursier"`
	HasBacScientifique    bool `json:"hasBacScientifique"`
	IsNonResident         bool `json:"isNonResident"`
	HasExceededCycleLimit bool `json:"hasExceededCycleLimit"`
	HasRentPaid           bool `json:"hasRentPaid"`
	HasRequiredDocuments  bool `json:"hasRequiredDocuments"`
	IsHandicape           bool `json:"isHandicape"`
}

// EligibilityResult is the outcome of validating one housing request.
type EligibilityResult struct {
	IsEligible bool              `json:"isEligible"`
	Reasons    []string          `json:"reasons"`
	Score      int               `json:"score"`
	Checks     EligibilityChecks `json:"checks"`
}

// ReasonCount pairs an ineligibility reason with its occurrence count.
type ReasonCount struct {
	Reason string `json:"reason"`
	Count  int    `json:"count"`
}

// BatchEligibilityStats aggregates eligibility across a batch.
type BatchEligibilityStats struct {
	Total        int           `json:"total"`
	Eligible     int           `json:"eligible"`
	Ineligible   int           `json:"ineligible"`
	AverageScore float64       `json:"average_score"`
	TopReasons   []ReasonCount `json:"top_reasons"`
}
