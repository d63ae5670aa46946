package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/crou-platform/crou-housing-api/internal/models"
)

// HousingRequestRepository manages persistence for housing requests.
type HousingRequestRepository struct {
	db *sqlx.DB
}

// NewHousingRequestRepository constructs a HousingRequestRepository.
func NewHousingRequestRepository(db *sqlx.DB) *HousingRequestRepository {
	return &HousingRequestRepository{db: db}
}

const requestColumns = `id, tenant_id, student_id, batch_id, type, status, priority_score, assigned_room_id, preferred_room_types, has_enrollment_cert, has_id_card, has_enrollment_receipt, submitted_at, assigned_at, auto_assigned, cancel_reason, created_at, updated_at`

// FindByID fetches a request scoped to its tenant.
func (r *HousingRequestRepository) FindByID(ctx context.Context, tenantID, id string) (*models.HousingRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM housing_requests WHERE tenant_id = $1 AND id = $2`, requestColumns)
	var request models.HousingRequest
	if err := r.db.GetContext(ctx, &request, query, tenantID, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// FindByIDForUpdate loads a request with a row lock inside the surrounding
// transaction, so cancellation and assignment cannot interleave on it.
func (r *HousingRequestRepository) FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, tenantID, id string) (*models.HousingRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM housing_requests WHERE tenant_id = $1 AND id = $2 FOR UPDATE`, requestColumns)
	var request models.HousingRequest
	if err := sqlx.GetContext(ctx, exec, &request, query, tenantID, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// ListApprovedByBatch returns the assignment candidate set in processing
// order: priority score strictly descending, submission time ascending as the
// explicit tie-break, id as the final stable key.
func (r *HousingRequestRepository) ListApprovedByBatch(ctx context.Context, tenantID, batchID string) ([]models.HousingRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM housing_requests
        WHERE tenant_id = $1 AND batch_id = $2 AND status = $3
        ORDER BY priority_score DESC, submitted_at ASC, id ASC`, requestColumns)
	var requests []models.HousingRequest
	if err := r.db.SelectContext(ctx, &requests, query, tenantID, batchID, models.RequestStatusApproved); err != nil {
		return nil, fmt.Errorf("list approved requests: %w", err)
	}
	return requests, nil
}

// ListByBatch returns every request in a batch regardless of status.
func (r *HousingRequestRepository) ListByBatch(ctx context.Context, tenantID, batchID string) ([]models.HousingRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM housing_requests WHERE tenant_id = $1 AND batch_id = $2 ORDER BY submitted_at ASC`, requestColumns)
	var requests []models.HousingRequest
	if err := r.db.SelectContext(ctx, &requests, query, tenantID, batchID); err != nil {
		return nil, fmt.Errorf("list batch requests: %w", err)
	}
	return requests, nil
}

// List returns requests matching the provided filters.
func (r *HousingRequestRepository) List(ctx context.Context, tenantID string, filter models.RequestFilter) ([]models.HousingRequest, int, error) {
	base := "FROM housing_requests WHERE tenant_id = $1"
	args := []interface{}{tenantID}

	if filter.BatchID != "" {
		args = append(args, filter.BatchID)
		base += fmt.Sprintf(" AND batch_id = $%d", len(args))
	}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		base += fmt.Sprintf(" AND student_id = $%d", len(args))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		base += fmt.Sprintf(" AND type = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		base += fmt.Sprintf(" AND status = $%d", len(args))
	}

	allowedSorts := map[string]string{
		"priority_score": "priority_score",
		"submitted_at":   "submitted_at",
		"created_at":     "created_at",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok {
		column = "submitted_at"
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", requestColumns, base, column, order, size, offset)

	var requests []models.HousingRequest
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list requests: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count requests: %w", err)
	}
	return requests, total, nil
}

// ExistsForStudent checks whether a student already has a request in a batch.
func (r *HousingRequestRepository) ExistsForStudent(ctx context.Context, tenantID, batchID, studentID string) (bool, error) {
	const query = `SELECT 1 FROM housing_requests WHERE tenant_id = $1 AND batch_id = $2 AND student_id = $3 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, tenantID, batchID, studentID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check request existence: %w", err)
	}
	return true, nil
}

// Create inserts a new housing request.
func (r *HousingRequestRepository) Create(ctx context.Context, request *models.HousingRequest) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if request.CreatedAt.IsZero() {
		request.CreatedAt = now
	}
	if request.SubmittedAt.IsZero() {
		request.SubmittedAt = now
	}
	request.UpdatedAt = now
	const query = `INSERT INTO housing_requests (id, tenant_id, student_id, batch_id, type, status, priority_score, assigned_room_id, preferred_room_types, has_enrollment_cert, has_id_card, has_enrollment_receipt, submitted_at, assigned_at, auto_assigned, cancel_reason, created_at, updated_at)
        VALUES (:id, :tenant_id, :student_id, :batch_id, :type, :status, :priority_score, :assigned_room_id, :preferred_room_types, :has_enrollment_cert, :has_id_card, :has_enrollment_receipt, :submitted_at, :assigned_at, :auto_assigned, :cancel_reason, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, request); err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return nil
}

// UpdatePriorityScore persists the computed eligibility score on the request.
func (r *HousingRequestRepository) UpdatePriorityScore(ctx context.Context, tenantID, id string, score int) error {
	const query = `UPDATE housing_requests SET priority_score = $3, updated_at = $4 WHERE tenant_id = $1 AND id = $2`
	if _, err := r.db.ExecContext(ctx, query, tenantID, id, score, time.Now().UTC()); err != nil {
		return fmt.Errorf("update priority score: %w", err)
	}
	return nil
}

// UpdateStatus moves a request to a reviewed status (APPROVED or REJECTED).
func (r *HousingRequestRepository) UpdateStatus(ctx context.Context, tenantID, id string, status models.RequestStatus) error {
	const query = `UPDATE housing_requests SET status = $3, updated_at = $4 WHERE tenant_id = $1 AND id = $2`
	if _, err := r.db.ExecContext(ctx, query, tenantID, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update request status: %w", err)
	}
	return nil
}

// MarkAssigned records a successful assignment inside the caller's
// transaction: room reference, ASSIGNED status, timestamp and auto flag.
func (r *HousingRequestRepository) MarkAssigned(ctx context.Context, exec sqlx.ExtContext, tenantID, id, roomID string, at time.Time) error {
	const query = `UPDATE housing_requests SET assigned_room_id = $3, status = $4, assigned_at = $5, auto_assigned = true, updated_at = $5
        WHERE tenant_id = $1 AND id = $2`
	if _, err := exec.ExecContext(ctx, query, tenantID, id, roomID, models.RequestStatusAssigned, at); err != nil {
		return fmt.Errorf("mark request assigned: %w", err)
	}
	return nil
}

// MarkCancelled reverses an assignment inside the caller's transaction.
func (r *HousingRequestRepository) MarkCancelled(ctx context.Context, exec sqlx.ExtContext, tenantID, id, reason string) error {
	const query = `UPDATE housing_requests SET assigned_room_id = NULL, status = $3, cancel_reason = $4, updated_at = $5
        WHERE tenant_id = $1 AND id = $2`
	if _, err := exec.ExecContext(ctx, query, tenantID, id, models.RequestStatusCancelled, reason, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark request cancelled: %w", err)
	}
	return nil
}
