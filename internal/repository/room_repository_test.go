package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crou-platform/crou-housing-api/internal/models"
	appErrors "github.com/crou-platform/crou-housing-api/pkg/errors"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func roomRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "tenant_id", "facility_name", "number", "room_type", "capacity", "occupants", "reserved", "gender_restriction", "status", "active", "created_at", "updated_at"})
}

func TestRoomRepositoryListCandidatesOrdersSmallestFirst(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRoomRepository(db)

	now := time.Now()
	rows := roomRows().
		AddRow("room-small", "tenant-1", "Cite A", "A101", "DOUBLE", 2, 0, 0, "MIXED", "AVAILABLE", true, now, now).
		AddRow("room-big", "tenant-1", "Cite B", "B201", "QUAD", 4, 1, 0, "MEN_ONLY", "AVAILABLE", true, now, now)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY capacity ASC, number ASC FOR UPDATE")).
		WithArgs("tenant-1", models.RoomStatusAvailable, models.RestrictionMixed, models.RestrictionMenOnly).
		WillReturnRows(rows)

	rooms, err := repo.ListCandidates(context.Background(), db, "tenant-1", models.RoomSearchCriteria{
		Category: models.RestrictionMenOnly,
	})
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, "room-small", rooms[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRoomRepositoryListCandidatesAppliesPreferredTypes(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRoomRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("AND room_type = ANY($5)")).
		WillReturnRows(roomRows())

	_, err := repo.ListCandidates(context.Background(), db, "tenant-1", models.RoomSearchCriteria{
		Category:       models.RestrictionWomenOnly,
		PreferredTypes: []string{"SINGLE"},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRoomRepositoryListByIDsSingleRoundTrip(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRoomRepository(db)

	now := time.Now()
	rows := roomRows().
		AddRow("room-1", "tenant-1", "Cite A", "A101", "DOUBLE", 2, 1, 0, "MIXED", "AVAILABLE", true, now, now).
		AddRow("room-2", "tenant-1", "Cite B", "B201", "QUAD", 4, 2, 0, "MEN_ONLY", "AVAILABLE", true, now, now)

	mock.ExpectQuery(regexp.QuoteMeta("FROM rooms WHERE tenant_id = $1 AND id = ANY($2)")).
		WillReturnRows(rows)

	rooms, err := repo.ListByIDs(context.Background(), "tenant-1", []string{"room-1", "room-2"})
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, "Cite A", rooms[0].FacilityName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRoomRepositoryListByIDsEmptyInput(t *testing.T) {
	db, _, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRoomRepository(db)

	rooms, err := repo.ListByIDs(context.Background(), "tenant-1", nil)
	require.NoError(t, err)
	assert.Empty(t, rooms)
}

func TestRoomRepositoryReserveBedFullRoom(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRoomRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("occupants + reserved < capacity")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.ReserveBed(context.Background(), db, "tenant-1", "room-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrCapacityExceeded.Code, appErrors.FromError(err).Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRoomRepositoryReserveBedSucceeds(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRoomRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("SET reserved = reserved + 1")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.ReserveBed(context.Background(), db, "tenant-1", "room-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRoomRepositoryConfirmBedWithoutReservation(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRoomRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("reserved = reserved - 1, occupants = occupants + 1")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.ConfirmBed(context.Background(), db, "tenant-1", "room-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestRoomRepositoryReleaseBedEmptyRoom(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRoomRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("occupants = occupants - 1")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.ReleaseBed(context.Background(), db, "tenant-1", "room-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no occupant to release")
}

func TestRoomRepositoryCreateAssignsID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRoomRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO rooms")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	room := &models.Room{
		TenantID:          "tenant-1",
		FacilityName:      "Cite A",
		Number:            "A101",
		RoomType:          "DOUBLE",
		Capacity:          2,
		GenderRestriction: models.RestrictionMixed,
		Status:            models.RoomStatusAvailable,
		Active:            true,
	}
	require.NoError(t, repo.Create(context.Background(), room))
	assert.NotEmpty(t, room.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}
