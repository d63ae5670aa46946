package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/crou-platform/crou-housing-api/internal/models"
)

// OccupancyRepository manages the per-year housing history used by the
// renewal eligibility rules.
type OccupancyRepository struct {
	db *sqlx.DB
}

// NewOccupancyRepository constructs an OccupancyRepository.
func NewOccupancyRepository(db *sqlx.DB) *OccupancyRepository {
	return &OccupancyRepository{db: db}
}

const occupancyColumns = `id, tenant_id, student_id, room_id, academic_year, rent_paid, started_at, ended_at, created_at`

// CountYears returns how many academic years a student has been housed.
func (r *OccupancyRepository) CountYears(ctx context.Context, tenantID, studentID string) (int, error) {
	const query = `SELECT COUNT(DISTINCT academic_year) FROM occupancy_history WHERE tenant_id = $1 AND student_id = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, tenantID, studentID); err != nil {
		return 0, fmt.Errorf("count housed years: %w", err)
	}
	return count, nil
}

// LastPeriod returns the most recent occupancy record for a student, or nil
// when the student has never been housed.
func (r *OccupancyRepository) LastPeriod(ctx context.Context, tenantID, studentID string) (*models.OccupancyHistory, error) {
	query := fmt.Sprintf(`SELECT %s FROM occupancy_history
        WHERE tenant_id = $1 AND student_id = $2
        ORDER BY started_at DESC LIMIT 1`, occupancyColumns)
	var record models.OccupancyHistory
	if err := r.db.GetContext(ctx, &record, query, tenantID, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("load last occupancy: %w", err)
	}
	return &record, nil
}

// ListByStudent returns the full housing history of a student, newest first.
func (r *OccupancyRepository) ListByStudent(ctx context.Context, tenantID, studentID string) ([]models.OccupancyHistory, error) {
	query := fmt.Sprintf(`SELECT %s FROM occupancy_history
        WHERE tenant_id = $1 AND student_id = $2
        ORDER BY started_at DESC`, occupancyColumns)
	var records []models.OccupancyHistory
	if err := r.db.SelectContext(ctx, &records, query, tenantID, studentID); err != nil {
		return nil, fmt.Errorf("list occupancy history: %w", err)
	}
	return records, nil
}

// Create inserts a new occupancy record.
func (r *OccupancyRepository) Create(ctx context.Context, record *models.OccupancyHistory) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO occupancy_history (id, tenant_id, student_id, room_id, academic_year, rent_paid, started_at, ended_at, created_at)
        VALUES (:id, :tenant_id, :student_id, :room_id, :academic_year, :rent_paid, :started_at, :ended_at, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("create occupancy record: %w", err)
	}
	return nil
}

// SetRentPaid updates the rent flag on an occupancy record.
func (r *OccupancyRepository) SetRentPaid(ctx context.Context, tenantID, id string, paid bool) error {
	const query = `UPDATE occupancy_history SET rent_paid = $3 WHERE tenant_id = $1 AND id = $2`
	if _, err := r.db.ExecContext(ctx, query, tenantID, id, paid); err != nil {
		return fmt.Errorf("set rent paid: %w", err)
	}
	return nil
}
