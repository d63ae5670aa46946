package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func studentRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "tenant_id", "ine", "full_name", "gender", "cycle", "level_of_study", "boursier", "bac_series", "resident", "handicape", "active", "created_at", "updated_at"})
}

func TestStudentRepositoryListByIDsSingleRoundTrip(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	now := time.Now()
	rows := studentRows().
		AddRow("stu-1", "tenant-1", "N01234520260001", "Amadou Diallo", "MASCULIN", "LICENCE", 2, true, "D", true, false, true, now, now).
		AddRow("stu-2", "tenant-1", "N01234520260002", "Fatou Ndiaye", "FEMININ", "MASTER", 4, false, "L", false, false, true, now, now)

	mock.ExpectQuery(regexp.QuoteMeta("FROM students WHERE tenant_id = $1 AND id = ANY($2)")).
		WillReturnRows(rows)

	students, err := repo.ListByIDs(context.Background(), "tenant-1", []string{"stu-1", "stu-2"})
	require.NoError(t, err)
	require.Len(t, students, 2)
	assert.Equal(t, "Amadou Diallo", students[0].FullName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryListByIDsEmptyInput(t *testing.T) {
	db, _, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	students, err := repo.ListByIDs(context.Background(), "tenant-1", nil)
	require.NoError(t, err)
	assert.Empty(t, students)
}
