package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/crou-platform/crou-housing-api/internal/models"
	appErrors "github.com/crou-platform/crou-housing-api/pkg/errors"
)

// RoomRepository manages persistence for rooms and their occupancy counters.
// The counter mutations are guarded UPDATEs so the capacity invariant
// (occupants + reserved <= capacity) can never be violated durably.
type RoomRepository struct {
	db *sqlx.DB
}

// NewRoomRepository constructs a RoomRepository.
func NewRoomRepository(db *sqlx.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

const roomColumns = `id, tenant_id, facility_name, number, room_type, capacity, occupants, reserved, gender_restriction, status, active, created_at, updated_at`

// FindByID fetches a room scoped to its tenant.
func (r *RoomRepository) FindByID(ctx context.Context, tenantID, id string) (*models.Room, error) {
	query := fmt.Sprintf(`SELECT %s FROM rooms WHERE tenant_id = $1 AND id = $2`, roomColumns)
	var room models.Room
	if err := r.db.GetContext(ctx, &room, query, tenantID, id); err != nil {
		return nil, err
	}
	return &room, nil
}

// ListByIDs fetches the given rooms in one round trip.
func (r *RoomRepository) ListByIDs(ctx context.Context, tenantID string, ids []string) ([]models.Room, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT %s FROM rooms WHERE tenant_id = $1 AND id = ANY($2)`, roomColumns)
	var rooms []models.Room
	if err := r.db.SelectContext(ctx, &rooms, query, tenantID, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("list rooms by ids: %w", err)
	}
	return rooms, nil
}

// ListCandidates returns assignable rooms for an assignment attempt, locked
// for the duration of the surrounding transaction. Candidates are AVAILABLE,
// active, have free capacity and admit the requested gender category;
// preferred room types narrow the set when present. Smallest capacity sorts
// first so small rooms fill before large ones, room number breaking ties.
func (r *RoomRepository) ListCandidates(ctx context.Context, exec sqlx.ExtContext, tenantID string, criteria models.RoomSearchCriteria) ([]models.Room, error) {
	query := fmt.Sprintf(`SELECT %s FROM rooms
        WHERE tenant_id = $1
          AND status = $2
          AND active = true
          AND capacity - occupants - reserved > 0
          AND (gender_restriction = $3 OR gender_restriction = $4)`, roomColumns)
	args := []interface{}{tenantID, models.RoomStatusAvailable, models.RestrictionMixed, criteria.Category}

	if len(criteria.PreferredTypes) > 0 {
		args = append(args, pq.StringArray(criteria.PreferredTypes))
		query += fmt.Sprintf(" AND room_type = ANY($%d)", len(args))
	}
	query += " ORDER BY capacity ASC, number ASC FOR UPDATE"

	var rooms []models.Room
	if err := sqlx.SelectContext(ctx, exec, &rooms, query, args...); err != nil {
		return nil, fmt.Errorf("list candidate rooms: %w", err)
	}
	return rooms, nil
}

// ReserveBed places a provisional hold on one bed. The WHERE clause rejects
// the update when it would break the capacity invariant.
func (r *RoomRepository) ReserveBed(ctx context.Context, exec sqlx.ExtContext, tenantID, roomID string) error {
	const query = `UPDATE rooms SET reserved = reserved + 1, updated_at = $3
        WHERE tenant_id = $1 AND id = $2 AND occupants + reserved < capacity`
	res, err := exec.ExecContext(ctx, query, tenantID, roomID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("reserve bed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reserve bed result: %w", err)
	}
	if affected == 0 {
		return appErrors.Clone(appErrors.ErrCapacityExceeded, fmt.Sprintf("room %s has no free bed to reserve", roomID))
	}
	return nil
}

// ConfirmBed converts a reserved bed into a real occupant.
func (r *RoomRepository) ConfirmBed(ctx context.Context, exec sqlx.ExtContext, tenantID, roomID string) error {
	const query = `UPDATE rooms SET reserved = reserved - 1, occupants = occupants + 1, updated_at = $3
        WHERE tenant_id = $1 AND id = $2 AND reserved > 0`
	res, err := exec.ExecContext(ctx, query, tenantID, roomID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("confirm bed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("confirm bed result: %w", err)
	}
	if affected == 0 {
		return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("room %s has no reserved bed to confirm", roomID))
	}
	return nil
}

// ReleaseBed frees one occupied bed after a cancelled assignment.
func (r *RoomRepository) ReleaseBed(ctx context.Context, exec sqlx.ExtContext, tenantID, roomID string) error {
	const query = `UPDATE rooms SET occupants = occupants - 1, updated_at = $3
        WHERE tenant_id = $1 AND id = $2 AND occupants > 0`
	res, err := exec.ExecContext(ctx, query, tenantID, roomID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("release bed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("release bed result: %w", err)
	}
	if affected == 0 {
		return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("room %s has no occupant to release", roomID))
	}
	return nil
}

// List returns rooms matching the provided filters.
func (r *RoomRepository) List(ctx context.Context, tenantID string, filter models.RoomFilter) ([]models.Room, int, error) {
	base := "FROM rooms WHERE tenant_id = $1"
	args := []interface{}{tenantID}

	if filter.FacilityName != "" {
		args = append(args, filter.FacilityName)
		base += fmt.Sprintf(" AND facility_name = $%d", len(args))
	}
	if filter.RoomType != "" {
		args = append(args, filter.RoomType)
		base += fmt.Sprintf(" AND room_type = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		base += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.Restriction != "" {
		args = append(args, filter.Restriction)
		base += fmt.Sprintf(" AND gender_restriction = $%d", len(args))
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		base += fmt.Sprintf(" AND active = $%d", len(args))
	}

	allowedSorts := map[string]string{
		"number":     "number",
		"capacity":   "capacity",
		"created_at": "created_at",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok {
		column = "number"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", roomColumns, base, column, order, size, offset)

	var rooms []models.Room
	if err := r.db.SelectContext(ctx, &rooms, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list rooms: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count rooms: %w", err)
	}
	return rooms, total, nil
}

// Create inserts a new room record.
func (r *RoomRepository) Create(ctx context.Context, room *models.Room) error {
	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if room.CreatedAt.IsZero() {
		room.CreatedAt = now
	}
	room.UpdatedAt = now
	const query = `INSERT INTO rooms (id, tenant_id, facility_name, number, room_type, capacity, occupants, reserved, gender_restriction, status, active, created_at, updated_at)
        VALUES (:id, :tenant_id, :facility_name, :number, :room_type, :capacity, :occupants, :reserved, :gender_restriction, :status, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, room); err != nil {
		return fmt.Errorf("create room: %w", err)
	}
	return nil
}

// Update modifies room attributes other than the occupancy counters.
func (r *RoomRepository) Update(ctx context.Context, room *models.Room) error {
	room.UpdatedAt = time.Now().UTC()
	const query = `UPDATE rooms SET facility_name = :facility_name, number = :number, room_type = :room_type, capacity = :capacity, gender_restriction = :gender_restriction, status = :status, active = :active, updated_at = :updated_at WHERE tenant_id = :tenant_id AND id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, room); err != nil {
		return fmt.Errorf("update room: %w", err)
	}
	return nil
}
