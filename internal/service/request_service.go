package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/crou-platform/crou-housing-api/internal/dto"
	"github.com/crou-platform/crou-housing-api/internal/models"
	appErrors "github.com/crou-platform/crou-housing-api/pkg/errors"
)

type housingRequestRepo interface {
	FindByID(ctx context.Context, tenantID, id string) (*models.HousingRequest, error)
	List(ctx context.Context, tenantID string, filter models.RequestFilter) ([]models.HousingRequest, int, error)
	Create(ctx context.Context, request *models.HousingRequest) error
	ExistsForStudent(ctx context.Context, tenantID, batchID, studentID string) (bool, error)
	UpdatePriorityScore(ctx context.Context, tenantID, id string, score int) error
	UpdateStatus(ctx context.Context, tenantID, id string, status models.RequestStatus) error
}

type requestBatchReader interface {
	FindByID(ctx context.Context, tenantID, id string) (*models.ApplicationBatch, error)
}

type requestStudentReader interface {
	FindByID(ctx context.Context, tenantID, id string) (*models.Student, error)
}

type eligibilityValidator interface {
	ValidateEligibility(ctx context.Context, tenantID string, request *models.HousingRequest) (*dto.EligibilityResult, error)
}

// RequestService handles housing request intake and review.
type RequestService struct {
	requests    housingRequestRepo
	batches     requestBatchReader
	students    requestStudentReader
	eligibility eligibilityValidator
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewRequestService wires request intake dependencies.
func NewRequestService(
	requests housingRequestRepo,
	batches requestBatchReader,
	students requestStudentReader,
	eligibility eligibilityValidator,
	validate *validator.Validate,
	logger *zap.Logger,
) *RequestService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RequestService{
		requests:    requests,
		batches:     batches,
		students:    students,
		eligibility: eligibility,
		validator:   validate,
		logger:      logger,
	}
}

// SubmitRequest files a new housing request in a batch. The batch must still
// be OPEN and a student may hold only one request per batch.
func (s *RequestService) SubmitRequest(ctx context.Context, tenantID, batchID string, req dto.SubmitHousingRequest) (*models.HousingRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid housing request payload")
	}

	batch, err := s.batches.FindByID(ctx, tenantID, batchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "batch not found")
		}
		return nil, err
	}
	if batch.Status != models.BatchStatusOpen {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("batch %s is not accepting requests", batchID))
	}

	student, err := s.students.FindByID(ctx, tenantID, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, err
	}
	if !student.Active {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "student record is inactive")
	}

	exists, err := s.requests.ExistsForStudent(ctx, tenantID, batchID, req.StudentID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student already has a request in this batch")
	}

	request := &models.HousingRequest{
		TenantID:           tenantID,
		StudentID:          req.StudentID,
		BatchID:            batchID,
		Type:               models.RequestType(req.Type),
		Status:             models.RequestStatusPending,
		PreferredRoomTypes: req.PreferredRoomTypes,
		HasEnrollmentCert:  req.HasEnrollmentCert,
		HasIDCard:          req.HasIDCard,
		HasEnrollmentRcpt:  req.HasEnrollmentRcpt,
	}
	if err := s.requests.Create(ctx, request); err != nil {
		return nil, err
	}
	s.logger.Info("housing request submitted",
		zap.String("request_id", request.ID),
		zap.String("batch_id", batchID),
		zap.String("student_id", req.StudentID))
	return request, nil
}

// GetRequest returns one request.
func (s *RequestService) GetRequest(ctx context.Context, tenantID, id string) (*models.HousingRequest, error) {
	request, err := s.requests.FindByID(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "housing request not found")
		}
		return nil, err
	}
	return request, nil
}

// ListRequests returns requests matching the filter.
func (s *RequestService) ListRequests(ctx context.Context, tenantID string, filter models.RequestFilter) ([]models.HousingRequest, int, error) {
	return s.requests.List(ctx, tenantID, filter)
}

// ReviewRequest runs eligibility validation on a pending request, persists
// the computed priority score and decides APPROVED or REJECTED.
func (s *RequestService) ReviewRequest(ctx context.Context, tenantID, id string) (*dto.RequestView, error) {
	request, err := s.GetRequest(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if request.Status != models.RequestStatusPending {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("request %s has already been reviewed", id))
	}

	result, err := s.eligibility.ValidateEligibility(ctx, tenantID, request)
	if err != nil {
		return nil, err
	}

	if err := s.requests.UpdatePriorityScore(ctx, tenantID, id, result.Score); err != nil {
		return nil, err
	}
	status := models.RequestStatusRejected
	if result.IsEligible {
		status = models.RequestStatusApproved
	}
	if err := s.requests.UpdateStatus(ctx, tenantID, id, status); err != nil {
		return nil, err
	}
	request.Status = status
	request.PriorityScore = result.Score

	s.logger.Info("housing request reviewed",
		zap.String("request_id", id),
		zap.String("status", string(status)),
		zap.Int("score", result.Score),
		zap.Strings("reasons", result.Reasons))
	return &dto.RequestView{Request: *request, Eligibility: result}, nil
}

// ValidateRequest exposes the raw eligibility evaluation without mutating
// the request, for preview by gestionnaires.
func (s *RequestService) ValidateRequest(ctx context.Context, tenantID, id string) (*dto.EligibilityResult, error) {
	request, err := s.GetRequest(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	return s.eligibility.ValidateEligibility(ctx, tenantID, request)
}
