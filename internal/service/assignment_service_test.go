package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crou-platform/crou-housing-api/internal/models"
	appErrors "github.com/crou-platform/crou-housing-api/pkg/errors"
)

type mockAssignmentBatchRepo struct {
	batch          *models.ApplicationBatch
	findCalls      int
	startErr       error
	finalizeErr    error
	finalizedCount int
	finalized      bool
}

func (m *mockAssignmentBatchRepo) FindByID(ctx context.Context, tenantID, id string) (*models.ApplicationBatch, error) {
	m.findCalls++
	if m.batch == nil {
		return nil, sql.ErrNoRows
	}
	cp := *m.batch
	return &cp, nil
}

func (m *mockAssignmentBatchRepo) TransitionStatus(ctx context.Context, tenantID, id string, from, to models.BatchStatus) (bool, error) {
	if m.batch == nil || m.batch.Status != from {
		return false, nil
	}
	m.batch.Status = to
	return true, nil
}

func (m *mockAssignmentBatchRepo) MarkProcessingStarted(ctx context.Context, tenantID, id string, at time.Time) error {
	return m.startErr
}

func (m *mockAssignmentBatchRepo) FinalizeProcessing(ctx context.Context, tenantID, id string, assignedCount int, endedAt time.Time) error {
	if m.finalizeErr != nil {
		return m.finalizeErr
	}
	m.finalized = true
	m.finalizedCount = assignedCount
	return nil
}

type mockAssignmentRequestRepo struct {
	approved    []models.HousingRequest
	approvedErr error
	forUpdate   *models.HousingRequest
	assigned    map[string]string
	cancelled   map[string]string
}

func (m *mockAssignmentRequestRepo) ListApprovedByBatch(ctx context.Context, tenantID, batchID string) ([]models.HousingRequest, error) {
	if m.approvedErr != nil {
		return nil, m.approvedErr
	}
	return m.approved, nil
}

func (m *mockAssignmentRequestRepo) FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, tenantID, id string) (*models.HousingRequest, error) {
	if m.forUpdate == nil {
		return nil, sql.ErrNoRows
	}
	cp := *m.forUpdate
	return &cp, nil
}

func (m *mockAssignmentRequestRepo) MarkAssigned(ctx context.Context, exec sqlx.ExtContext, tenantID, id, roomID string, at time.Time) error {
	if m.assigned == nil {
		m.assigned = map[string]string{}
	}
	m.assigned[id] = roomID
	return nil
}

func (m *mockAssignmentRequestRepo) MarkCancelled(ctx context.Context, exec sqlx.ExtContext, tenantID, id, reason string) error {
	if m.cancelled == nil {
		m.cancelled = map[string]string{}
	}
	m.cancelled[id] = reason
	return nil
}

type mockAssignmentRoomRepo struct {
	candidates map[models.GenderRestriction][]models.Room
	reserveErr error
	reserved   []string
	confirmed  []string
	released   []string
}

func (m *mockAssignmentRoomRepo) ListCandidates(ctx context.Context, exec sqlx.ExtContext, tenantID string, criteria models.RoomSearchCriteria) ([]models.Room, error) {
	return m.candidates[criteria.Category], nil
}

func (m *mockAssignmentRoomRepo) ReserveBed(ctx context.Context, exec sqlx.ExtContext, tenantID, roomID string) error {
	if m.reserveErr != nil {
		return m.reserveErr
	}
	m.reserved = append(m.reserved, roomID)
	return nil
}

func (m *mockAssignmentRoomRepo) ConfirmBed(ctx context.Context, exec sqlx.ExtContext, tenantID, roomID string) error {
	m.confirmed = append(m.confirmed, roomID)
	return nil
}

func (m *mockAssignmentRoomRepo) ReleaseBed(ctx context.Context, exec sqlx.ExtContext, tenantID, roomID string) error {
	m.released = append(m.released, roomID)
	return nil
}

type memoryStatsCache struct {
	entries map[string]interface{}
	sets    int
}

// Get always misses; the mock only records writes and invalidations.
func (m *memoryStatsCache) Get(ctx context.Context, key string, dest interface{}) error {
	return appErrors.ErrCacheMiss
}

func (m *memoryStatsCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if m.entries == nil {
		m.entries = map[string]interface{}{}
	}
	m.entries[key] = value
	m.sets++
	return nil
}

func (m *memoryStatsCache) DeleteByPattern(ctx context.Context, pattern string) error {
	m.entries = nil
	return nil
}

func newAssignmentTxMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestProcessBatchRequiresClosedBatch(t *testing.T) {
	batches := &mockAssignmentBatchRepo{
		batch: &models.ApplicationBatch{ID: "batch-1", Status: models.BatchStatusOpen},
	}
	svc := NewAssignmentService(batches, &mockAssignmentRequestRepo{}, &mockAssignmentRoomRepo{}, &mockStudentReader{}, nil, nil, nil, nil, nil, AssignmentConfig{})

	_, err := svc.ProcessBatch(context.Background(), "tenant-1", "batch-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Contains(t, err.Error(), "must be CLOSED")
	assert.False(t, batches.finalized)
}

func TestProcessBatchNotFound(t *testing.T) {
	svc := NewAssignmentService(&mockAssignmentBatchRepo{}, &mockAssignmentRequestRepo{}, &mockAssignmentRoomRepo{}, &mockStudentReader{}, nil, nil, nil, nil, nil, AssignmentConfig{})

	_, err := svc.ProcessBatch(context.Background(), "tenant-1", "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestProcessBatchAssignsByPriorityAndFillsSmallestRoomFirst(t *testing.T) {
	db, mock, cleanup := newAssignmentTxMock(t)
	defer cleanup()

	batches := &mockAssignmentBatchRepo{
		batch: &models.ApplicationBatch{ID: "batch-1", Name: "Rentree 2026", Status: models.BatchStatusClosed},
	}
	requests := &mockAssignmentRequestRepo{
		approved: []models.HousingRequest{
			{ID: "req-high", StudentID: "stu-1", BatchID: "batch-1"},
			{ID: "req-low", StudentID: "stu-2", BatchID: "batch-1"},
		},
	}
	rooms := &mockAssignmentRoomRepo{
		candidates: map[models.GenderRestriction][]models.Room{
			models.RestrictionMenOnly: {
				{ID: "room-small", Number: "A101", FacilityName: "Cite A", Capacity: 2},
				{ID: "room-big", Number: "B201", FacilityName: "Cite B", Capacity: 4},
			},
		},
	}
	students := &mockStudentReader{students: map[string]*models.Student{
		"stu-1": {ID: "stu-1", FullName: "Amadou Diallo", Gender: models.GenderMale},
		"stu-2": {ID: "stu-2", FullName: "Moussa Traore", Gender: models.GenderMale},
	}}

	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectCommit()

	svc := NewAssignmentService(batches, requests, rooms, students, db, nil, nil, nil, nil, AssignmentConfig{})
	report, err := svc.ProcessBatch(context.Background(), "tenant-1", "batch-1")
	require.NoError(t, err)

	assert.Equal(t, 2, report.TotalRequests)
	assert.Equal(t, 2, report.SuccessCount)
	assert.Equal(t, 0, report.FailureCount)
	require.Len(t, report.Results, 2)
	// Candidates arrive in priority order and both get the smallest room head.
	assert.Equal(t, "req-high", report.Results[0].RequestID)
	assert.Equal(t, "room-small", report.Results[0].RoomID)
	assert.Equal(t, "Cite A", report.Results[0].FacilityName)
	assert.Equal(t, "room-small", requests.assigned["req-high"])
	assert.Equal(t, []string{"room-small", "room-small"}, rooms.reserved)
	assert.Equal(t, []string{"room-small", "room-small"}, rooms.confirmed)
	assert.True(t, batches.finalized)
	assert.Equal(t, 2, batches.finalizedCount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessBatchContinuesAfterIndividualFailure(t *testing.T) {
	db, mock, cleanup := newAssignmentTxMock(t)
	defer cleanup()

	batches := &mockAssignmentBatchRepo{
		batch: &models.ApplicationBatch{ID: "batch-1", Status: models.BatchStatusClosed},
	}
	requests := &mockAssignmentRequestRepo{
		approved: []models.HousingRequest{
			{ID: "req-ghost", StudentID: "ghost", BatchID: "batch-1"},
			{ID: "req-ok", StudentID: "stu-2", BatchID: "batch-1"},
		},
	}
	rooms := &mockAssignmentRoomRepo{
		candidates: map[models.GenderRestriction][]models.Room{
			models.RestrictionWomenOnly: {{ID: "room-1", Number: "C301", Capacity: 3}},
		},
	}
	students := &mockStudentReader{students: map[string]*models.Student{
		"stu-2": {ID: "stu-2", FullName: "Fatou Ndiaye", Gender: models.GenderFemale},
	}}

	// Only the surviving candidate opens a transaction.
	mock.ExpectBegin()
	mock.ExpectCommit()

	svc := NewAssignmentService(batches, requests, rooms, students, db, nil, nil, nil, nil, AssignmentConfig{})
	report, err := svc.ProcessBatch(context.Background(), "tenant-1", "batch-1")
	require.NoError(t, err)

	assert.Equal(t, 1, report.SuccessCount)
	assert.Equal(t, 1, report.FailureCount)
	assert.Equal(t, "student not found", report.Results[0].Error)
	assert.True(t, report.Results[1].Success)
	assert.Equal(t, 1, batches.finalizedCount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessBatchNoCompatibleRoomRollsBack(t *testing.T) {
	db, mock, cleanup := newAssignmentTxMock(t)
	defer cleanup()

	batches := &mockAssignmentBatchRepo{
		batch: &models.ApplicationBatch{ID: "batch-1", Status: models.BatchStatusClosed},
	}
	requests := &mockAssignmentRequestRepo{
		approved: []models.HousingRequest{{ID: "req-1", StudentID: "stu-1", BatchID: "batch-1"}},
	}
	students := &mockStudentReader{students: map[string]*models.Student{
		"stu-1": {ID: "stu-1", Gender: models.GenderMale},
	}}

	mock.ExpectBegin()
	mock.ExpectRollback()

	svc := NewAssignmentService(batches, requests, &mockAssignmentRoomRepo{}, students, db, nil, nil, nil, nil, AssignmentConfig{})
	report, err := svc.ProcessBatch(context.Background(), "tenant-1", "batch-1")
	require.NoError(t, err)

	assert.Equal(t, 0, report.SuccessCount)
	assert.Equal(t, 1, report.FailureCount)
	assert.Equal(t, "no available compatible room for gender MASCULIN", report.Results[0].Error)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessBatchInvalidGender(t *testing.T) {
	batches := &mockAssignmentBatchRepo{
		batch: &models.ApplicationBatch{ID: "batch-1", Status: models.BatchStatusClosed},
	}
	requests := &mockAssignmentRequestRepo{
		approved: []models.HousingRequest{{ID: "req-1", StudentID: "stu-1", BatchID: "batch-1"}},
	}
	students := &mockStudentReader{students: map[string]*models.Student{
		"stu-1": {ID: "stu-1", Gender: "AUTRE"},
	}}

	svc := NewAssignmentService(batches, requests, &mockAssignmentRoomRepo{}, students, nil, nil, nil, nil, nil, AssignmentConfig{})
	report, err := svc.ProcessBatch(context.Background(), "tenant-1", "batch-1")
	require.NoError(t, err)
	assert.Equal(t, `invalid gender "AUTRE"`, report.Results[0].Error)
}

func TestProcessBatchRevertsGateWhenCandidateLoadFails(t *testing.T) {
	batches := &mockAssignmentBatchRepo{
		batch: &models.ApplicationBatch{ID: "batch-1", Status: models.BatchStatusClosed},
	}
	requests := &mockAssignmentRequestRepo{approvedErr: errors.New("connection reset")}

	svc := NewAssignmentService(batches, requests, &mockAssignmentRoomRepo{}, &mockStudentReader{}, nil, nil, nil, nil, nil, AssignmentConfig{})
	_, err := svc.ProcessBatch(context.Background(), "tenant-1", "batch-1")
	require.Error(t, err)
	assert.False(t, batches.finalized)
	// The won gate is handed back so the batch is not stranded in PROCESSING.
	assert.Equal(t, models.BatchStatusClosed, batches.batch.Status)

	// Once the transient failure clears, a retry wins the gate again.
	requests.approvedErr = nil
	report, err := svc.ProcessBatch(context.Background(), "tenant-1", "batch-1")
	require.NoError(t, err)
	assert.Zero(t, report.TotalRequests)
	assert.True(t, batches.finalized)
}

func TestProcessBatchRevertsGateWhenStartOrFinalizeFails(t *testing.T) {
	batches := &mockAssignmentBatchRepo{
		batch:    &models.ApplicationBatch{ID: "batch-1", Status: models.BatchStatusClosed},
		startErr: errors.New("write timeout"),
	}

	svc := NewAssignmentService(batches, &mockAssignmentRequestRepo{}, &mockAssignmentRoomRepo{}, &mockStudentReader{}, nil, nil, nil, nil, nil, AssignmentConfig{})
	_, err := svc.ProcessBatch(context.Background(), "tenant-1", "batch-1")
	require.Error(t, err)
	assert.Equal(t, models.BatchStatusClosed, batches.batch.Status)

	batches.startErr = nil
	batches.finalizeErr = errors.New("write timeout")
	_, err = svc.ProcessBatch(context.Background(), "tenant-1", "batch-1")
	require.Error(t, err)
	assert.Equal(t, models.BatchStatusClosed, batches.batch.Status)
	assert.False(t, batches.finalized)
}

func TestCancelAssignmentReleasesBed(t *testing.T) {
	db, mock, cleanup := newAssignmentTxMock(t)
	defer cleanup()

	roomID := "room-1"
	requests := &mockAssignmentRequestRepo{
		forUpdate: &models.HousingRequest{
			ID:             "req-1",
			BatchID:        "batch-1",
			Status:         models.RequestStatusAssigned,
			AssignedRoomID: &roomID,
		},
	}
	rooms := &mockAssignmentRoomRepo{}
	cache := &memoryStatsCache{entries: map[string]interface{}{statsCacheKey("tenant-1", "batch-1"): struct{}{}}}

	mock.ExpectBegin()
	mock.ExpectCommit()

	svc := NewAssignmentService(&mockAssignmentBatchRepo{}, requests, rooms, &mockStudentReader{}, db, cache, nil, nil, nil, AssignmentConfig{})
	require.NoError(t, svc.CancelAssignment(context.Background(), "tenant-1", "req-1", "room damaged"))

	assert.Equal(t, []string{"room-1"}, rooms.released)
	assert.Equal(t, "room damaged", requests.cancelled["req-1"])
	assert.Nil(t, cache.entries)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelAssignmentWithoutRoomFails(t *testing.T) {
	db, mock, cleanup := newAssignmentTxMock(t)
	defer cleanup()

	requests := &mockAssignmentRequestRepo{
		forUpdate: &models.HousingRequest{ID: "req-1", Status: models.RequestStatusCancelled},
	}

	mock.ExpectBegin()
	mock.ExpectRollback()

	svc := NewAssignmentService(&mockAssignmentBatchRepo{}, requests, &mockAssignmentRoomRepo{}, &mockStudentReader{}, db, nil, nil, nil, nil, AssignmentConfig{})
	err := svc.CancelAssignment(context.Background(), "tenant-1", "req-1", "double cancel")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNoRoomAssigned.Code, appErrors.FromError(err).Code)
	assert.Empty(t, requests.cancelled)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetBatchStatisticsFromCounters(t *testing.T) {
	batches := &mockAssignmentBatchRepo{
		batch: &models.ApplicationBatch{
			ID:            "batch-1",
			Status:        models.BatchStatusCompleted,
			TotalRequests: 10,
			AssignedCount: 6,
			RejectedCount: 2,
		},
	}
	svc := NewAssignmentService(batches, &mockAssignmentRequestRepo{}, &mockAssignmentRoomRepo{}, &mockStudentReader{}, nil, nil, nil, nil, nil, AssignmentConfig{})

	stats, err := svc.GetBatchStatistics(context.Background(), "tenant-1", "batch-1")
	require.NoError(t, err)
	assert.Equal(t, 10, stats.Total)
	assert.Equal(t, 6, stats.Assigned)
	assert.Equal(t, 2, stats.Failed)
	assert.Equal(t, 2, stats.Pending)
	assert.InDelta(t, 60.0, stats.ProgressPercentage, 0.001)

	// Without an intervening mutation a second read is identical.
	again, err := svc.GetBatchStatistics(context.Background(), "tenant-1", "batch-1")
	require.NoError(t, err)
	assert.Equal(t, stats, again)
}

func TestGetBatchStatisticsEmptyBatch(t *testing.T) {
	batches := &mockAssignmentBatchRepo{
		batch: &models.ApplicationBatch{ID: "batch-1", Status: models.BatchStatusClosed},
	}
	svc := NewAssignmentService(batches, &mockAssignmentRequestRepo{}, &mockAssignmentRoomRepo{}, &mockStudentReader{}, nil, nil, nil, nil, nil, AssignmentConfig{})

	stats, err := svc.GetBatchStatistics(context.Background(), "tenant-1", "batch-1")
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
	assert.Zero(t, stats.Pending)
	assert.Zero(t, stats.ProgressPercentage)
}

func TestGetBatchStatisticsCachesResult(t *testing.T) {
	batches := &mockAssignmentBatchRepo{
		batch: &models.ApplicationBatch{ID: "batch-1", TotalRequests: 4, AssignedCount: 4},
	}
	cache := &memoryStatsCache{}
	svc := NewAssignmentService(batches, &mockAssignmentRequestRepo{}, &mockAssignmentRoomRepo{}, &mockStudentReader{}, nil, cache, nil, nil, nil, AssignmentConfig{})

	_, err := svc.GetBatchStatistics(context.Background(), "tenant-1", "batch-1")
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets)
	assert.Contains(t, cache.entries, "housing:stats:tenant-1:batch-1")
}
