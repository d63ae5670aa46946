package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/crou-platform/crou-housing-api/internal/dto"
	"github.com/crou-platform/crou-housing-api/internal/models"
	appErrors "github.com/crou-platform/crou-housing-api/pkg/errors"
	"github.com/crou-platform/crou-housing-api/pkg/export"
	"github.com/crou-platform/crou-housing-api/pkg/jobs"
)

type batchRepo interface {
	FindByID(ctx context.Context, tenantID, id string) (*models.ApplicationBatch, error)
	List(ctx context.Context, tenantID string, filter models.BatchFilter) ([]models.ApplicationBatch, int, error)
	Create(ctx context.Context, batch *models.ApplicationBatch) error
	CloseWithCounters(ctx context.Context, tenantID, id string) (bool, error)
}

type batchRequestReader interface {
	ListByBatch(ctx context.Context, tenantID, batchID string) ([]models.HousingRequest, error)
}

type batchStudentReader interface {
	ListByIDs(ctx context.Context, tenantID string, ids []string) ([]models.Student, error)
}

type batchRoomReader interface {
	ListByIDs(ctx context.Context, tenantID string, ids []string) ([]models.Room, error)
}

type batchProcessor interface {
	ProcessBatch(ctx context.Context, tenantID, batchID string) (*dto.BatchAssignmentReport, error)
}

type tabularExporter interface {
	Render(data export.Dataset) ([]byte, error)
}

type documentExporter interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

type processJobPayload struct {
	TenantID string
	BatchID  string
}

// BatchService owns the batch lifecycle around the assignment engine: intake
// windows, closing, queued processing and result export.
type BatchService struct {
	batches   batchRepo
	requests  batchRequestReader
	students  batchStudentReader
	rooms     batchRoomReader
	processor batchProcessor
	csv       tabularExporter
	pdf       documentExporter
	queue     *jobs.Queue
	validator *validator.Validate
	logger    *zap.Logger
}

// BatchQueueConfig sizes the async processing queue.
type BatchQueueConfig struct {
	Workers    int
	BufferSize int
}

// NewBatchService wires batch orchestration dependencies and builds the
// background queue. Call StartQueue before enqueueing async runs.
func NewBatchService(
	batches batchRepo,
	requests batchRequestReader,
	students batchStudentReader,
	rooms batchRoomReader,
	processor batchProcessor,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg BatchQueueConfig,
) *BatchService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &BatchService{
		batches:   batches,
		requests:  requests,
		students:  students,
		rooms:     rooms,
		processor: processor,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		validator: validate,
		logger:    logger,
	}
	s.queue = jobs.NewQueue("batch-processing", s.handleProcessJob, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		Logger:     logger,
	})
	return s
}

// StartQueue launches the background workers.
func (s *BatchService) StartQueue(ctx context.Context) {
	s.queue.Start(ctx)
}

// StopQueue drains and stops the background workers.
func (s *BatchService) StopQueue() {
	s.queue.Stop()
}

// CreateBatch opens a new application batch.
func (s *BatchService) CreateBatch(ctx context.Context, tenantID string, req dto.CreateBatchRequest) (*models.ApplicationBatch, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid batch payload")
	}
	batch := &models.ApplicationBatch{
		TenantID:     tenantID,
		Name:         strings.TrimSpace(req.Name),
		AcademicYear: req.AcademicYear,
		Status:       models.BatchStatusOpen,
	}
	if err := s.batches.Create(ctx, batch); err != nil {
		return nil, err
	}
	s.logger.Info("batch created", zap.String("batch_id", batch.ID), zap.String("tenant_id", tenantID))
	return batch, nil
}

// GetBatch returns one batch.
func (s *BatchService) GetBatch(ctx context.Context, tenantID, id string) (*models.ApplicationBatch, error) {
	batch, err := s.batches.FindByID(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "batch not found")
		}
		return nil, err
	}
	return batch, nil
}

// ListBatches returns batches matching the filter.
func (s *BatchService) ListBatches(ctx context.Context, tenantID string, filter models.BatchFilter) ([]models.ApplicationBatch, int, error) {
	return s.batches.List(ctx, tenantID, filter)
}

// CloseBatch ends the intake window: the batch moves OPEN to CLOSED and its
// request counters are snapshotted in the same statement. Closing an already
// closed batch errors.
func (s *BatchService) CloseBatch(ctx context.Context, tenantID, id string) (*models.ApplicationBatch, error) {
	if _, err := s.GetBatch(ctx, tenantID, id); err != nil {
		return nil, err
	}
	closed, err := s.batches.CloseWithCounters(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if !closed {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("batch %s is not open", id))
	}
	batch, err := s.GetBatch(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	s.logger.Info("batch closed",
		zap.String("batch_id", id),
		zap.Int("total_requests", batch.TotalRequests),
		zap.Int("approved", batch.ApprovedCount))
	return batch, nil
}

// ProcessBatch runs the assignment engine synchronously.
func (s *BatchService) ProcessBatch(ctx context.Context, tenantID, id string) (*dto.BatchAssignmentReport, error) {
	return s.processor.ProcessBatch(ctx, tenantID, id)
}

// ProcessBatchAsync enqueues a batch run on the background queue and returns
// the job identifier. Preconditions are still enforced by the engine when the
// job executes.
func (s *BatchService) ProcessBatchAsync(ctx context.Context, tenantID, id string) (string, error) {
	batch, err := s.GetBatch(ctx, tenantID, id)
	if err != nil {
		return "", err
	}
	if batch.Status != models.BatchStatusClosed {
		return "", appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("batch %s must be CLOSED to start processing (current status: %s)", id, batch.Status))
	}
	job := jobs.Job{
		ID:      uuid.NewString(),
		Type:    "process-batch",
		Payload: processJobPayload{TenantID: tenantID, BatchID: id},
	}
	if err := s.queue.Enqueue(job); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "enqueue batch processing")
	}
	s.logger.Info("batch processing enqueued", zap.String("batch_id", id), zap.String("job_id", job.ID))
	return job.ID, nil
}

func (s *BatchService) handleProcessJob(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(processJobPayload)
	if !ok {
		return fmt.Errorf("unexpected payload for job %s", job.ID)
	}
	report, err := s.processor.ProcessBatch(ctx, payload.TenantID, payload.BatchID)
	if err != nil {
		// A lost processing gate is terminal, retrying cannot win it back.
		if appErr := appErrors.FromError(err); appErr.Code == appErrors.ErrConflict.Code {
			s.logger.Warn("async batch run skipped", zap.String("batch_id", payload.BatchID), zap.Error(err))
			return nil
		}
		return err
	}
	s.logger.Info("async batch run finished",
		zap.String("batch_id", payload.BatchID),
		zap.Int("assigned", report.SuccessCount),
		zap.Int("failed", report.FailureCount))
	return nil
}

// ExportFile is a rendered batch export ready to stream.
type ExportFile struct {
	Payload     []byte
	ContentType string
	FileName    string
}

// ExportResults renders the batch outcome as CSV or PDF.
func (s *BatchService) ExportResults(ctx context.Context, tenantID, id, format string) (*ExportFile, error) {
	batch, err := s.GetBatch(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	requests, err := s.requests.ListByBatch(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	studentIDs := make([]string, 0, len(requests))
	roomIDs := make([]string, 0, len(requests))
	for i := range requests {
		studentIDs = append(studentIDs, requests[i].StudentID)
		if requests[i].AssignedRoomID != nil {
			roomIDs = append(roomIDs, *requests[i].AssignedRoomID)
		}
	}
	students, err := s.students.ListByIDs(ctx, tenantID, studentIDs)
	if err != nil {
		return nil, err
	}
	studentNames := make(map[string]string, len(students))
	for i := range students {
		studentNames[students[i].ID] = students[i].FullName
	}
	rooms, err := s.rooms.ListByIDs(ctx, tenantID, roomIDs)
	if err != nil {
		return nil, err
	}
	roomsByID := make(map[string]models.Room, len(rooms))
	for i := range rooms {
		roomsByID[rooms[i].ID] = rooms[i]
	}

	dataset := export.Dataset{
		Headers: []string{"Request", "Student", "Type", "Status", "Score", "Facility", "Room"},
		Rows:    make([]map[string]string, 0, len(requests)),
	}
	for i := range requests {
		request := &requests[i]
		row := map[string]string{
			"Request": request.ID,
			"Student": request.StudentID,
			"Type":    string(request.Type),
			"Status":  string(request.Status),
			"Score":   fmt.Sprintf("%d", request.PriorityScore),
		}
		if name, ok := studentNames[request.StudentID]; ok {
			row["Student"] = name
		}
		if request.AssignedRoomID != nil {
			if room, ok := roomsByID[*request.AssignedRoomID]; ok {
				row["Facility"] = room.FacilityName
				row["Room"] = room.Number
			}
		}
		dataset.Rows = append(dataset.Rows, row)
	}

	title := fmt.Sprintf("Assignment results %s (%s)", batch.Name, batch.AcademicYear)
	switch strings.ToLower(format) {
	case "", "csv":
		payload, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "render csv export")
		}
		return &ExportFile{Payload: payload, ContentType: "text/csv", FileName: exportFileName(batch, "csv")}, nil
	case "pdf":
		payload, err := s.pdf.Render(dataset, title)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "render pdf export")
		}
		return &ExportFile{Payload: payload, ContentType: "application/pdf", FileName: exportFileName(batch, "pdf")}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
}

func exportFileName(batch *models.ApplicationBatch, ext string) string {
	name := strings.ReplaceAll(strings.ToLower(batch.Name), " ", "-")
	return fmt.Sprintf("assignments-%s-%s.%s", name, time.Now().UTC().Format("20060102"), ext)
}
