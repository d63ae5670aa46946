package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/crou-platform/crou-housing-api/internal/dto"
	"github.com/crou-platform/crou-housing-api/internal/models"
)

type eligibilityStudentReader interface {
	FindByID(ctx context.Context, tenantID, id string) (*models.Student, error)
}

type occupancyReader interface {
	CountYears(ctx context.Context, tenantID, studentID string) (int, error)
	LastPeriod(ctx context.Context, tenantID, studentID string) (*models.OccupancyHistory, error)
}

type eligibilityRequestReader interface {
	ListByBatch(ctx context.Context, tenantID, batchID string) ([]models.HousingRequest, error)
}

// EligibilityService evaluates housing requests against the CROU admission
// policies and computes priority scores.
type EligibilityService struct {
	students  eligibilityStudentReader
	occupancy occupancyReader
	requests  eligibilityRequestReader
	logger    *zap.Logger
}

// NewEligibilityService wires eligibility dependencies.
func NewEligibilityService(
	students eligibilityStudentReader,
	occupancy occupancyReader,
	requests eligibilityRequestReader,
	logger *zap.Logger,
) *EligibilityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EligibilityService{
		students:  students,
		occupancy: occupancy,
		requests:  requests,
		logger:    logger,
	}
}

const (
	renewalBaseScore     = 100
	handicapeScore       = 1000
	boursierScore        = 20
	scientificBacScore   = 50
	nonResidentScore     = 30
	seniorityBonusCeil   = 6
	seniorityBonusFactor = 5
)

// ValidateEligibility applies the policy matching the request type and
// returns the full breakdown: eligibility, score, every individual check and
// every failing reason. The disability check always runs because it is an
// absolute-priority signal independent of the eligibility outcome.
func (s *EligibilityService) ValidateEligibility(ctx context.Context, tenantID string, request *models.HousingRequest) (*dto.EligibilityResult, error) {
	student, err := s.students.FindByID(ctx, tenantID, request.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &dto.EligibilityResult{
				IsEligible: false,
				Reasons:    []string{"student not found"},
				Score:      0,
			}, nil
		}
		return nil, fmt.Errorf("load student %s: %w", request.StudentID, err)
	}

	switch request.Type {
	case models.RequestTypeRenewal:
		return s.validateRenewal(ctx, tenantID, student, request)
	default:
		return s.validateNewAssignment(student, request), nil
	}
}

// CalculatePriorityScore computes the priority score a request would receive,
// without persisting anything. An ineligible request scores zero.
func (s *EligibilityService) CalculatePriorityScore(ctx context.Context, tenantID string, request *models.HousingRequest) (int, error) {
	result, err := s.ValidateEligibility(ctx, tenantID, request)
	if err != nil {
		return 0, err
	}
	return result.Score, nil
}

func (s *EligibilityService) validateRenewal(ctx context.Context, tenantID string, student *models.Student, request *models.HousingRequest) (*dto.EligibilityResult, error) {
	result := &dto.EligibilityResult{Reasons: []string{}}
	result.Checks.IsHandicape = student.Handicape
	result.Checks.IsBoursier = student.Boursier
	result.Checks.HasBacScientifique = student.HasScientificBac()
	result.Checks.IsNonResident = !student.Resident

	years, err := s.occupancy.CountYears(ctx, tenantID, student.ID)
	if err != nil {
		return nil, err
	}
	limit := student.Cycle.MaxHousingYears()
	result.Checks.HasExceededCycleLimit = years >= limit
	if result.Checks.HasExceededCycleLimit {
		result.Reasons = append(result.Reasons, fmt.Sprintf("housing year limit reached for cycle %s (%d years)", student.Cycle, limit))
	}

	last, err := s.occupancy.LastPeriod(ctx, tenantID, student.ID)
	if err != nil {
		return nil, err
	}
	// A student with no recorded occupancy owes nothing.
	result.Checks.HasRentPaid = last == nil || last.RentPaid
	if !result.Checks.HasRentPaid {
		result.Reasons = append(result.Reasons, "previous housing period rent not paid")
	}

	result.Checks.HasRequiredDocuments = request.HasEnrollmentCert && request.HasIDCard
	if !result.Checks.HasRequiredDocuments {
		result.Reasons = append(result.Reasons, "missing required documents (enrollment certificate, id card)")
	}

	result.IsEligible = len(result.Reasons) == 0
	if result.IsEligible {
		result.Score = renewalBaseScore
		if student.Handicape {
			result.Score += handicapeScore
		}
	}
	return result, nil
}

func (s *EligibilityService) validateNewAssignment(student *models.Student, request *models.HousingRequest) *dto.EligibilityResult {
	result := &dto.EligibilityResult{Reasons: []string{}}
	result.Checks.IsHandicape = student.Handicape
	result.Checks.IsBoursier = student.Boursier
	result.Checks.HasBacScientifique = student.HasScientificBac()
	result.Checks.IsNonResident = !student.Resident

	if !student.Boursier {
		result.Reasons = append(result.Reasons, "scholarship required for a first housing assignment")
	}

	result.Checks.HasRequiredDocuments = request.HasEnrollmentRcpt && request.HasEnrollmentCert && request.HasIDCard
	if !result.Checks.HasRequiredDocuments {
		result.Reasons = append(result.Reasons, "missing required documents (enrollment receipt, enrollment certificate, id card)")
	}

	result.IsEligible = len(result.Reasons) == 0
	if !result.IsEligible {
		return result
	}

	score := boursierScore
	if student.Handicape {
		score += handicapeScore
	}
	if result.Checks.HasBacScientifique {
		score += scientificBacScore
	}
	if result.Checks.IsNonResident {
		score += nonResidentScore
	}
	if bonus := (seniorityBonusCeil - student.LevelOfStudy) * seniorityBonusFactor; bonus > 0 {
		score += bonus
	}
	result.Score = score
	return result
}

// GetBatchEligibilityStats aggregates eligibility over every request of a
// batch: totals, average score among eligible requests and the five most
// frequent ineligibility reasons.
func (s *EligibilityService) GetBatchEligibilityStats(ctx context.Context, tenantID, batchID string) (*dto.BatchEligibilityStats, error) {
	requests, err := s.requests.ListByBatch(ctx, tenantID, batchID)
	if err != nil {
		return nil, err
	}

	stats := &dto.BatchEligibilityStats{Total: len(requests), TopReasons: []dto.ReasonCount{}}
	reasonCounts := map[string]int{}
	scoreSum := 0

	for i := range requests {
		result, err := s.ValidateEligibility(ctx, tenantID, &requests[i])
		if err != nil {
			return nil, err
		}
		if result.IsEligible {
			stats.Eligible++
			scoreSum += result.Score
			continue
		}
		stats.Ineligible++
		for _, reason := range result.Reasons {
			reasonCounts[reason]++
		}
	}

	if stats.Eligible > 0 {
		stats.AverageScore = float64(scoreSum) / float64(stats.Eligible)
	}

	for reason, count := range reasonCounts {
		stats.TopReasons = append(stats.TopReasons, dto.ReasonCount{Reason: reason, Count: count})
	}
	sort.Slice(stats.TopReasons, func(i, j int) bool {
		if stats.TopReasons[i].Count != stats.TopReasons[j].Count {
			return stats.TopReasons[i].Count > stats.TopReasons[j].Count
		}
		return stats.TopReasons[i].Reason < stats.TopReasons[j].Reason
	})
	if len(stats.TopReasons) > 5 {
		stats.TopReasons = stats.TopReasons[:5]
	}
	return stats, nil
}
