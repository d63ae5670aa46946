package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/crou-platform/crou-housing-api/internal/models"
)

// BatchRepository manages persistence for application batches.
type BatchRepository struct {
	db *sqlx.DB
}

// NewBatchRepository constructs a BatchRepository.
func NewBatchRepository(db *sqlx.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

const batchColumns = `id, tenant_id, name, academic_year, status, total_requests, approved_count, assigned_count, rejected_count, processing_started_at, processing_ended_at, created_at, updated_at`

// FindByID fetches a batch scoped to its tenant.
func (r *BatchRepository) FindByID(ctx context.Context, tenantID, id string) (*models.ApplicationBatch, error) {
	query := fmt.Sprintf(`SELECT %s FROM application_batches WHERE tenant_id = $1 AND id = $2`, batchColumns)
	var batch models.ApplicationBatch
	if err := r.db.GetContext(ctx, &batch, query, tenantID, id); err != nil {
		return nil, err
	}
	return &batch, nil
}

// List returns batches matching the provided filters.
func (r *BatchRepository) List(ctx context.Context, tenantID string, filter models.BatchFilter) ([]models.ApplicationBatch, int, error) {
	base := "FROM application_batches WHERE tenant_id = $1"
	args := []interface{}{tenantID}

	if filter.Status != "" {
		args = append(args, filter.Status)
		base += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.AcademicYear != "" {
		args = append(args, filter.AcademicYear)
		base += fmt.Sprintf(" AND academic_year = $%d", len(args))
	}

	allowedSorts := map[string]string{
		"name":          "name",
		"academic_year": "academic_year",
		"created_at":    "created_at",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok {
		column = "created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", batchColumns, base, column, order, size, offset)

	var batches []models.ApplicationBatch
	if err := r.db.SelectContext(ctx, &batches, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list batches: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count batches: %w", err)
	}
	return batches, total, nil
}

// Create inserts a new batch in OPEN status.
func (r *BatchRepository) Create(ctx context.Context, batch *models.ApplicationBatch) error {
	if batch.ID == "" {
		batch.ID = uuid.NewString()
	}
	if batch.Status == "" {
		batch.Status = models.BatchStatusOpen
	}
	now := time.Now().UTC()
	if batch.CreatedAt.IsZero() {
		batch.CreatedAt = now
	}
	batch.UpdatedAt = now
	const query = `INSERT INTO application_batches (id, tenant_id, name, academic_year, status, total_requests, approved_count, assigned_count, rejected_count, processing_started_at, processing_ended_at, created_at, updated_at)
        VALUES (:id, :tenant_id, :name, :academic_year, :status, :total_requests, :approved_count, :assigned_count, :rejected_count, :processing_started_at, :processing_ended_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, batch); err != nil {
		return fmt.Errorf("create batch: %w", err)
	}
	return nil
}

// TransitionStatus moves a batch from one status to another only if it is
// still in the expected state. The returned flag is false when another caller
// won the transition first, which is what makes batch processing mutually
// exclusive without any advisory lock.
func (r *BatchRepository) TransitionStatus(ctx context.Context, tenantID, id string, from, to models.BatchStatus) (bool, error) {
	const query = `UPDATE application_batches SET status = $4, updated_at = $5
        WHERE tenant_id = $1 AND id = $2 AND status = $3`
	res, err := r.db.ExecContext(ctx, query, tenantID, id, from, to, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("transition batch status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition batch status result: %w", err)
	}
	return affected == 1, nil
}

// MarkProcessingStarted stamps the start of a batch run.
func (r *BatchRepository) MarkProcessingStarted(ctx context.Context, tenantID, id string, at time.Time) error {
	const query = `UPDATE application_batches SET processing_started_at = $3, updated_at = $3
        WHERE tenant_id = $1 AND id = $2`
	if _, err := r.db.ExecContext(ctx, query, tenantID, id, at); err != nil {
		return fmt.Errorf("mark processing started: %w", err)
	}
	return nil
}

// FinalizeProcessing records the end of a run: COMPLETED status, the number
// of successful assignments and the end timestamp.
func (r *BatchRepository) FinalizeProcessing(ctx context.Context, tenantID, id string, assignedCount int, endedAt time.Time) error {
	const query = `UPDATE application_batches SET status = $3, assigned_count = $4, processing_ended_at = $5, updated_at = $5
        WHERE tenant_id = $1 AND id = $2`
	if _, err := r.db.ExecContext(ctx, query, tenantID, id, models.BatchStatusCompleted, assignedCount, endedAt); err != nil {
		return fmt.Errorf("finalize batch processing: %w", err)
	}
	return nil
}

// CloseWithCounters moves an OPEN batch to CLOSED and snapshots its request
// counters in a single statement, so no request submitted concurrently can
// slip between the count and the close.
func (r *BatchRepository) CloseWithCounters(ctx context.Context, tenantID, id string) (bool, error) {
	const query = `UPDATE application_batches
        SET status = $3,
            total_requests = (SELECT COUNT(*) FROM housing_requests WHERE tenant_id = $1 AND batch_id = $2),
            approved_count = (SELECT COUNT(*) FROM housing_requests WHERE tenant_id = $1 AND batch_id = $2 AND status = $4),
            rejected_count = (SELECT COUNT(*) FROM housing_requests WHERE tenant_id = $1 AND batch_id = $2 AND status = $5),
            updated_at = $6
        WHERE tenant_id = $1 AND id = $2 AND status = $7`
	res, err := r.db.ExecContext(ctx, query, tenantID, id, models.BatchStatusClosed, models.RequestStatusApproved, models.RequestStatusRejected, time.Now().UTC(), models.BatchStatusOpen)
	if err != nil {
		return false, fmt.Errorf("close batch: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("close batch result: %w", err)
	}
	return affected == 1, nil
}
