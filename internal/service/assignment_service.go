package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/crou-platform/crou-housing-api/internal/dto"
	"github.com/crou-platform/crou-housing-api/internal/models"
	appErrors "github.com/crou-platform/crou-housing-api/pkg/errors"
)

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type assignmentBatchRepo interface {
	FindByID(ctx context.Context, tenantID, id string) (*models.ApplicationBatch, error)
	TransitionStatus(ctx context.Context, tenantID, id string, from, to models.BatchStatus) (bool, error)
	MarkProcessingStarted(ctx context.Context, tenantID, id string, at time.Time) error
	FinalizeProcessing(ctx context.Context, tenantID, id string, assignedCount int, endedAt time.Time) error
}

type assignmentRequestRepo interface {
	ListApprovedByBatch(ctx context.Context, tenantID, batchID string) ([]models.HousingRequest, error)
	FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, tenantID, id string) (*models.HousingRequest, error)
	MarkAssigned(ctx context.Context, exec sqlx.ExtContext, tenantID, id, roomID string, at time.Time) error
	MarkCancelled(ctx context.Context, exec sqlx.ExtContext, tenantID, id, reason string) error
}

type assignmentRoomRepo interface {
	ListCandidates(ctx context.Context, exec sqlx.ExtContext, tenantID string, criteria models.RoomSearchCriteria) ([]models.Room, error)
	ReserveBed(ctx context.Context, exec sqlx.ExtContext, tenantID, roomID string) error
	ConfirmBed(ctx context.Context, exec sqlx.ExtContext, tenantID, roomID string) error
	ReleaseBed(ctx context.Context, exec sqlx.ExtContext, tenantID, roomID string) error
}

type assignmentStudentRepo interface {
	FindByID(ctx context.Context, tenantID, id string) (*models.Student, error)
}

type statsCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

type assignmentEventPublisher interface {
	RoomAssigned(ctx context.Context, tenantID, batchID, requestID, studentID, roomID string) error
	AssignmentCancelled(ctx context.Context, tenantID, requestID, roomID, reason string) error
}

type assignmentMetrics interface {
	ObserveAssignment(outcome string)
	ObserveBatchProcessing(duration time.Duration)
}

// AssignmentService runs the batch room-assignment engine. A batch run is
// sequential and greedy: candidates are walked in priority order and each
// attempt commits or rolls back independently, so one student's failure never
// poisons the rest of the batch.
type AssignmentService struct {
	batches   assignmentBatchRepo
	requests  assignmentRequestRepo
	rooms     assignmentRoomRepo
	students  assignmentStudentRepo
	tx        txProvider
	cache     statsCache
	publisher assignmentEventPublisher
	metrics   assignmentMetrics
	cacheTTL  time.Duration
	logger    *zap.Logger
}

// AssignmentConfig governs assignment engine behaviour.
type AssignmentConfig struct {
	StatsCacheTTL time.Duration
}

// NewAssignmentService wires assignment engine dependencies. Cache, publisher
// and metrics are optional; a nil value disables the concern.
func NewAssignmentService(
	batches assignmentBatchRepo,
	requests assignmentRequestRepo,
	rooms assignmentRoomRepo,
	students assignmentStudentRepo,
	tx txProvider,
	cache statsCache,
	publisher assignmentEventPublisher,
	metrics assignmentMetrics,
	logger *zap.Logger,
	cfg AssignmentConfig,
) *AssignmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.StatsCacheTTL <= 0 {
		cfg.StatsCacheTTL = 30 * time.Second
	}
	return &AssignmentService{
		batches:   batches,
		requests:  requests,
		rooms:     rooms,
		students:  students,
		tx:        tx,
		cache:     cache,
		publisher: publisher,
		metrics:   metrics,
		cacheTTL:  cfg.StatsCacheTTL,
		logger:    logger,
	}
}

// ProcessBatch runs the assignment engine over one batch. The CLOSED to
// PROCESSING transition is a conditional update and doubles as the mutual
// exclusion gate: a second concurrent caller loses the update and errors out
// without touching any request.
func (s *AssignmentService) ProcessBatch(ctx context.Context, tenantID, batchID string) (*dto.BatchAssignmentReport, error) {
	batch, err := s.batches.FindByID(ctx, tenantID, batchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "batch not found")
		}
		return nil, fmt.Errorf("load batch %s: %w", batchID, err)
	}

	won, err := s.batches.TransitionStatus(ctx, tenantID, batchID, models.BatchStatusClosed, models.BatchStatusProcessing)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("batch %s must be CLOSED to start processing (current status: %s)", batchID, batch.Status))
	}

	startedAt := time.Now().UTC()
	if err := s.batches.MarkProcessingStarted(ctx, tenantID, batchID, startedAt); err != nil {
		s.revertProcessingGate(ctx, tenantID, batchID)
		return nil, err
	}

	candidates, err := s.requests.ListApprovedByBatch(ctx, tenantID, batchID)
	if err != nil {
		s.revertProcessingGate(ctx, tenantID, batchID)
		return nil, err
	}

	report := &dto.BatchAssignmentReport{
		BatchID:       batchID,
		BatchName:     batch.Name,
		TotalRequests: len(candidates),
		Results:       make([]dto.AssignmentResult, 0, len(candidates)),
		StartedAt:     startedAt,
	}

	for i := range candidates {
		result := s.assignRoomToRequest(ctx, tenantID, &candidates[i])
		report.Results = append(report.Results, result)
		if result.Success {
			report.SuccessCount++
			if s.metrics != nil {
				s.metrics.ObserveAssignment("assigned")
			}
			if s.publisher != nil {
				if err := s.publisher.RoomAssigned(ctx, tenantID, batchID, result.RequestID, result.StudentID, result.RoomID); err != nil {
					s.logger.Warn("publish room assigned event", zap.String("request_id", result.RequestID), zap.Error(err))
				}
			}
			continue
		}
		report.FailureCount++
		if s.metrics != nil {
			s.metrics.ObserveAssignment("failed")
		}
		s.logger.Info("assignment attempt failed",
			zap.String("batch_id", batchID),
			zap.String("request_id", result.RequestID),
			zap.String("reason", result.Error))
	}

	completedAt := time.Now().UTC()
	if err := s.batches.FinalizeProcessing(ctx, tenantID, batchID, report.SuccessCount, completedAt); err != nil {
		s.revertProcessingGate(ctx, tenantID, batchID)
		return nil, err
	}
	report.CompletedAt = completedAt
	report.DurationMs = completedAt.Sub(startedAt).Milliseconds()

	if s.metrics != nil {
		s.metrics.ObserveBatchProcessing(completedAt.Sub(startedAt))
	}
	s.invalidateStats(ctx, tenantID, batchID)

	s.logger.Info("batch processing completed",
		zap.String("batch_id", batchID),
		zap.Int("total", report.TotalRequests),
		zap.Int("assigned", report.SuccessCount),
		zap.Int("failed", report.FailureCount),
		zap.Int64("duration_ms", report.DurationMs))
	return report, nil
}

// revertProcessingGate moves a batch back from PROCESSING to CLOSED after a
// batch-level failure, so a later retry can win the gate again. Assignments
// already committed stay committed; only APPROVED requests are re-attempted.
func (s *AssignmentService) revertProcessingGate(ctx context.Context, tenantID, batchID string) {
	reverted, err := s.batches.TransitionStatus(ctx, tenantID, batchID, models.BatchStatusProcessing, models.BatchStatusClosed)
	if err != nil || !reverted {
		s.logger.Error("revert batch to CLOSED after processing failure",
			zap.String("batch_id", batchID),
			zap.Bool("reverted", reverted),
			zap.Error(err))
	}
}

// assignRoomToRequest attempts one assignment in its own transaction. Either
// every mutation (bed reservation, request update, bed confirmation) commits
// together or none survives.
func (s *AssignmentService) assignRoomToRequest(ctx context.Context, tenantID string, request *models.HousingRequest) dto.AssignmentResult {
	result := dto.AssignmentResult{RequestID: request.ID, StudentID: request.StudentID}

	student, err := s.students.FindByID(ctx, tenantID, request.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			result.Error = "student not found"
		} else {
			result.Error = err.Error()
		}
		return result
	}
	result.StudentName = student.FullName

	category, err := models.RestrictionForGender(student.Gender)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		result.Error = fmt.Sprintf("begin assignment transaction: %v", err)
		return result
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	rooms, err := s.rooms.ListCandidates(ctx, tx, tenantID, models.RoomSearchCriteria{
		Category:       category,
		PreferredTypes: request.PreferredRoomTypes,
	})
	if err != nil {
		result.Error = err.Error()
		return result
	}
	if len(rooms) == 0 {
		result.Error = fmt.Sprintf("no available compatible room for gender %s", student.Gender)
		return result
	}

	// Candidates arrive smallest capacity first; the head is the pick.
	room := rooms[0]

	if err := s.rooms.ReserveBed(ctx, tx, tenantID, room.ID); err != nil {
		result.Error = err.Error()
		return result
	}
	if err := s.requests.MarkAssigned(ctx, tx, tenantID, request.ID, room.ID, time.Now().UTC()); err != nil {
		result.Error = err.Error()
		return result
	}
	if err := s.rooms.ConfirmBed(ctx, tx, tenantID, room.ID); err != nil {
		result.Error = err.Error()
		return result
	}
	if err := tx.Commit(); err != nil {
		result.Error = fmt.Sprintf("commit assignment: %v", err)
		return result
	}
	committed = true

	result.Success = true
	result.RoomID = room.ID
	result.RoomNumber = room.Number
	result.FacilityName = room.FacilityName
	return result
}

// CancelAssignment reverses one ASSIGNED request: the occupant slot is
// released, the room reference cleared and the reason recorded, atomically.
func (s *AssignmentService) CancelAssignment(ctx context.Context, tenantID, requestID, reason string) error {
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin cancellation transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	request, err := s.requests.FindByIDForUpdate(ctx, tx, tenantID, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "housing request not found")
		}
		return fmt.Errorf("load request %s: %w", requestID, err)
	}
	if request.Status != models.RequestStatusAssigned || request.AssignedRoomID == nil {
		return appErrors.Clone(appErrors.ErrNoRoomAssigned, fmt.Sprintf("request %s has no room assigned", requestID))
	}
	roomID := *request.AssignedRoomID

	if err := s.rooms.ReleaseBed(ctx, tx, tenantID, roomID); err != nil {
		return err
	}
	if err := s.requests.MarkCancelled(ctx, tx, tenantID, requestID, reason); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit cancellation: %w", err)
	}
	committed = true

	if s.metrics != nil {
		s.metrics.ObserveAssignment("cancelled")
	}
	if s.publisher != nil {
		if err := s.publisher.AssignmentCancelled(ctx, tenantID, requestID, roomID, reason); err != nil {
			s.logger.Warn("publish assignment cancelled event", zap.String("request_id", requestID), zap.Error(err))
		}
	}
	if request.BatchID != "" {
		s.invalidateStats(ctx, tenantID, request.BatchID)
	}
	return nil
}

// GetBatchStatistics aggregates batch progress from the batch counters. The
// result is cached briefly; two calls without an intervening mutation return
// identical values.
func (s *AssignmentService) GetBatchStatistics(ctx context.Context, tenantID, batchID string) (*dto.BatchStatistics, error) {
	key := statsCacheKey(tenantID, batchID)
	if s.cache != nil {
		var cached dto.BatchStatistics
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("batch statistics cache read", zap.String("batch_id", batchID), zap.Error(err))
		}
	}

	batch, err := s.batches.FindByID(ctx, tenantID, batchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "batch not found")
		}
		return nil, fmt.Errorf("load batch %s: %w", batchID, err)
	}

	stats := &dto.BatchStatistics{
		Total:    batch.TotalRequests,
		Assigned: batch.AssignedCount,
		Failed:   batch.RejectedCount,
	}
	if pending := stats.Total - stats.Assigned - stats.Failed; pending > 0 {
		stats.Pending = pending
	}
	if stats.Total > 0 {
		stats.ProgressPercentage = float64(stats.Assigned) / float64(stats.Total) * 100
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, stats, s.cacheTTL); err != nil {
			s.logger.Warn("batch statistics cache write", zap.String("batch_id", batchID), zap.Error(err))
		}
	}
	return stats, nil
}

func (s *AssignmentService) invalidateStats(ctx context.Context, tenantID, batchID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, statsCacheKey(tenantID, batchID)); err != nil {
		s.logger.Warn("invalidate batch statistics cache", zap.String("batch_id", batchID), zap.Error(err))
	}
}

func statsCacheKey(tenantID, batchID string) string {
	return fmt.Sprintf("housing:stats:%s:%s", tenantID, batchID)
}
