package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crou-platform/crou-housing-api/internal/dto"
	"github.com/crou-platform/crou-housing-api/internal/models"
	appErrors "github.com/crou-platform/crou-housing-api/pkg/errors"
)

type mockBatchStore struct {
	batches      map[string]*models.ApplicationBatch
	closeAllowed bool
	// snapshot stands in for the counters the close statement computes.
	snapshot [3]int
}

func (m *mockBatchStore) FindByID(ctx context.Context, tenantID, id string) (*models.ApplicationBatch, error) {
	if b, ok := m.batches[id]; ok {
		cp := *b
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockBatchStore) List(ctx context.Context, tenantID string, filter models.BatchFilter) ([]models.ApplicationBatch, int, error) {
	out := make([]models.ApplicationBatch, 0, len(m.batches))
	for _, b := range m.batches {
		out = append(out, *b)
	}
	return out, len(out), nil
}

func (m *mockBatchStore) Create(ctx context.Context, batch *models.ApplicationBatch) error {
	batch.ID = "generated"
	if m.batches == nil {
		m.batches = map[string]*models.ApplicationBatch{}
	}
	cp := *batch
	m.batches[batch.ID] = &cp
	return nil
}

func (m *mockBatchStore) CloseWithCounters(ctx context.Context, tenantID, id string) (bool, error) {
	if !m.closeAllowed {
		return false, nil
	}
	if b, ok := m.batches[id]; ok {
		b.Status = models.BatchStatusClosed
		b.TotalRequests = m.snapshot[0]
		b.ApprovedCount = m.snapshot[1]
		b.RejectedCount = m.snapshot[2]
	}
	return true, nil
}

type mockBatchRequestReader struct {
	requests []models.HousingRequest
}

func (m *mockBatchRequestReader) ListByBatch(ctx context.Context, tenantID, batchID string) ([]models.HousingRequest, error) {
	return m.requests, nil
}

type mockStudentDirectory struct {
	students map[string]models.Student
	calls    int
	lastIDs  []string
}

func (m *mockStudentDirectory) ListByIDs(ctx context.Context, tenantID string, ids []string) ([]models.Student, error) {
	m.calls++
	m.lastIDs = ids
	out := make([]models.Student, 0, len(ids))
	for _, id := range ids {
		if s, ok := m.students[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

type mockRoomDirectory struct {
	rooms map[string]models.Room
	calls int
}

func (m *mockRoomDirectory) ListByIDs(ctx context.Context, tenantID string, ids []string) ([]models.Room, error) {
	m.calls++
	out := make([]models.Room, 0, len(ids))
	for _, id := range ids {
		if r, ok := m.rooms[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

type mockProcessor struct {
	report *dto.BatchAssignmentReport
	err    error
	calls  int
	done   chan struct{}
}

func (m *mockProcessor) ProcessBatch(ctx context.Context, tenantID, batchID string) (*dto.BatchAssignmentReport, error) {
	m.calls++
	if m.done != nil {
		close(m.done)
	}
	return m.report, m.err
}

func newBatchFixture() (*BatchService, *mockBatchStore, *mockBatchRequestReader, *mockProcessor) {
	batches := &mockBatchStore{batches: map[string]*models.ApplicationBatch{}}
	requests := &mockBatchRequestReader{}
	processor := &mockProcessor{report: &dto.BatchAssignmentReport{}}
	svc := NewBatchService(batches, requests, &mockStudentDirectory{}, &mockRoomDirectory{}, processor, nil, nil, BatchQueueConfig{Workers: 1, BufferSize: 4})
	return svc, batches, requests, processor
}

func TestCreateBatchValidatesPayload(t *testing.T) {
	svc, _, _, _ := newBatchFixture()

	_, err := svc.CreateBatch(context.Background(), "tenant-1", dto.CreateBatchRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCreateBatchOpensIntake(t *testing.T) {
	svc, batches, _, _ := newBatchFixture()

	batch, err := svc.CreateBatch(context.Background(), "tenant-1", dto.CreateBatchRequest{
		Name:         "  Rentree 2026  ",
		AcademicYear: "2026-2027",
	})
	require.NoError(t, err)
	assert.Equal(t, models.BatchStatusOpen, batch.Status)
	assert.Equal(t, "Rentree 2026", batch.Name)
	assert.Contains(t, batches.batches, batch.ID)
}

func TestCloseBatchSnapshotsCounters(t *testing.T) {
	svc, batches, _, _ := newBatchFixture()
	batches.batches["batch-1"] = &models.ApplicationBatch{ID: "batch-1", Status: models.BatchStatusOpen}
	batches.closeAllowed = true
	batches.snapshot = [3]int{10, 7, 2}

	batch, err := svc.CloseBatch(context.Background(), "tenant-1", "batch-1")
	require.NoError(t, err)
	assert.Equal(t, models.BatchStatusClosed, batch.Status)
	assert.Equal(t, 10, batch.TotalRequests)
	assert.Equal(t, 7, batch.ApprovedCount)
	assert.Equal(t, 2, batch.RejectedCount)
}

func TestCloseBatchAlreadyClosed(t *testing.T) {
	svc, batches, _, _ := newBatchFixture()
	batches.batches["batch-1"] = &models.ApplicationBatch{ID: "batch-1", Status: models.BatchStatusClosed}
	batches.closeAllowed = false

	_, err := svc.CloseBatch(context.Background(), "tenant-1", "batch-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Contains(t, err.Error(), "is not open")
}

func TestProcessBatchAsyncRequiresClosedBatch(t *testing.T) {
	svc, batches, _, processor := newBatchFixture()
	batches.batches["batch-1"] = &models.ApplicationBatch{ID: "batch-1", Status: models.BatchStatusOpen}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.StartQueue(ctx)
	defer svc.StopQueue()

	_, err := svc.ProcessBatchAsync(context.Background(), "tenant-1", "batch-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Zero(t, processor.calls)
}

func TestProcessBatchAsyncRunsJob(t *testing.T) {
	svc, batches, _, processor := newBatchFixture()
	batches.batches["batch-1"] = &models.ApplicationBatch{ID: "batch-1", Status: models.BatchStatusClosed}
	processor.done = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.StartQueue(ctx)
	defer svc.StopQueue()

	jobID, err := svc.ProcessBatchAsync(context.Background(), "tenant-1", "batch-1")
	require.NoError(t, err)
	assert.NotEmpty(t, jobID)

	select {
	case <-processor.done:
	case <-time.After(2 * time.Second):
		t.Fatal("background job never ran")
	}
}

func TestProcessBatchAsyncWithoutQueueStarted(t *testing.T) {
	svc, batches, _, _ := newBatchFixture()
	batches.batches["batch-1"] = &models.ApplicationBatch{ID: "batch-1", Status: models.BatchStatusClosed}

	_, err := svc.ProcessBatchAsync(context.Background(), "tenant-1", "batch-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}

func TestExportResultsCSV(t *testing.T) {
	batches := &mockBatchStore{batches: map[string]*models.ApplicationBatch{
		"batch-1": {
			ID:           "batch-1",
			Name:         "Rentree 2026",
			AcademicYear: "2026-2027",
			Status:       models.BatchStatusCompleted,
		},
	}}
	roomID := "room-1"
	requests := &mockBatchRequestReader{requests: []models.HousingRequest{
		{ID: "req-1", StudentID: "stu-1", Type: models.RequestTypeNew, Status: models.RequestStatusAssigned, PriorityScore: 130, AssignedRoomID: &roomID},
		{ID: "req-2", StudentID: "stu-2", Type: models.RequestTypeRenewal, Status: models.RequestStatusRejected},
	}}
	students := &mockStudentDirectory{students: map[string]models.Student{
		"stu-1": {ID: "stu-1", FullName: "Amadou Diallo"},
	}}
	rooms := &mockRoomDirectory{rooms: map[string]models.Room{
		"room-1": {ID: "room-1", FacilityName: "Cite A", Number: "A101"},
	}}
	svc := NewBatchService(batches, requests, students, rooms, &mockProcessor{}, nil, nil, BatchQueueConfig{})

	file, err := svc.ExportResults(context.Background(), "tenant-1", "batch-1", "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", file.ContentType)
	assert.True(t, strings.HasPrefix(file.FileName, "assignments-rentree-2026-"))
	assert.True(t, strings.HasSuffix(file.FileName, ".csv"))

	lines := strings.Split(strings.TrimSpace(string(file.Payload)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Request,Student,Type,Status,Score,Facility,Room", lines[0])
	assert.Contains(t, lines[1], "req-1")
	assert.Contains(t, lines[1], "Amadou Diallo")
	assert.Contains(t, lines[1], "Cite A")
	assert.Contains(t, lines[1], "130")
	// Unknown students fall back to their identifier.
	assert.Contains(t, lines[2], "stu-2")

	// Each directory is hit once for the whole batch, not once per request.
	assert.Equal(t, 1, students.calls)
	assert.Equal(t, []string{"stu-1", "stu-2"}, students.lastIDs)
	assert.Equal(t, 1, rooms.calls)
}

func TestExportResultsUnsupportedFormat(t *testing.T) {
	svc, batches, _, _ := newBatchFixture()
	batches.batches["batch-1"] = &models.ApplicationBatch{ID: "batch-1", Status: models.BatchStatusCompleted}

	_, err := svc.ExportResults(context.Background(), "tenant-1", "batch-1", "xlsx")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
