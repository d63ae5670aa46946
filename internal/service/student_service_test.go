package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crou-platform/crou-housing-api/internal/dto"
	"github.com/crou-platform/crou-housing-api/internal/models"
	appErrors "github.com/crou-platform/crou-housing-api/pkg/errors"
)

type mockStudentStore struct {
	items       map[string]*models.Student
	ineIndex    map[string]bool
	deactivated []string
}

func (m *mockStudentStore) FindByID(ctx context.Context, tenantID, id string) (*models.Student, error) {
	if s, ok := m.items[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentStore) List(ctx context.Context, tenantID string, filter models.StudentFilter) ([]models.Student, int, error) {
	return nil, 0, nil
}

func (m *mockStudentStore) ExistsByINE(ctx context.Context, tenantID, ine, excludeID string) (bool, error) {
	return m.ineIndex[ine], nil
}

func (m *mockStudentStore) Create(ctx context.Context, student *models.Student) error {
	student.ID = "generated"
	if m.items == nil {
		m.items = map[string]*models.Student{}
	}
	cp := *student
	m.items[student.ID] = &cp
	return nil
}

func (m *mockStudentStore) Update(ctx context.Context, student *models.Student) error {
	cp := *student
	m.items[student.ID] = &cp
	return nil
}

func (m *mockStudentStore) Deactivate(ctx context.Context, tenantID, id string) error {
	m.deactivated = append(m.deactivated, id)
	return nil
}

type mockOccupancyLister struct {
	history []models.OccupancyHistory
}

func (m *mockOccupancyLister) ListByStudent(ctx context.Context, tenantID, studentID string) ([]models.OccupancyHistory, error) {
	return m.history, nil
}

func validStudentPayload() dto.CreateStudentRequest {
	return dto.CreateStudentRequest{
		INE:          "N01234520260001",
		FullName:     "Awa Diop",
		Gender:       "FEMININ",
		Cycle:        "LICENCE",
		LevelOfStudy: 2,
		Boursier:     true,
		BacSeries:    "D",
	}
}

func TestCreateStudentActiveByDefault(t *testing.T) {
	store := &mockStudentStore{ineIndex: map[string]bool{}}
	svc := NewStudentService(store, &mockOccupancyLister{}, nil, nil)

	student, err := svc.CreateStudent(context.Background(), "tenant-1", validStudentPayload())
	require.NoError(t, err)
	assert.True(t, student.Active)
	assert.Equal(t, models.CycleLicence, student.Cycle)
}

func TestCreateStudentRejectsDuplicateINE(t *testing.T) {
	store := &mockStudentStore{ineIndex: map[string]bool{"N01234520260001": true}}
	svc := NewStudentService(store, &mockOccupancyLister{}, nil, nil)

	_, err := svc.CreateStudent(context.Background(), "tenant-1", validStudentPayload())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Contains(t, err.Error(), "INE already exists")
}

func TestCreateStudentRejectsUnknownCycle(t *testing.T) {
	svc := NewStudentService(&mockStudentStore{ineIndex: map[string]bool{}}, &mockOccupancyLister{}, nil, nil)

	payload := validStudentPayload()
	payload.Cycle = "PREPA"
	_, err := svc.CreateStudent(context.Background(), "tenant-1", payload)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestDeactivateStudentRequiresExistence(t *testing.T) {
	store := &mockStudentStore{items: map[string]*models.Student{}}
	svc := NewStudentService(store, &mockOccupancyLister{}, nil, nil)

	err := svc.DeactivateStudent(context.Background(), "tenant-1", "ghost")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	assert.Empty(t, store.deactivated)
}

func TestGetHousingHistory(t *testing.T) {
	store := &mockStudentStore{items: map[string]*models.Student{
		"stu-1": {ID: "stu-1", Active: true},
	}}
	occupancy := &mockOccupancyLister{history: []models.OccupancyHistory{
		{ID: "occ-2", AcademicYear: "2025-2026", RentPaid: false},
		{ID: "occ-1", AcademicYear: "2024-2025", RentPaid: true},
	}}
	svc := NewStudentService(store, occupancy, nil, nil)

	history, err := svc.GetHousingHistory(context.Background(), "tenant-1", "stu-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "occ-2", history[0].ID)
}
