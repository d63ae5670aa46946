package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/crou-platform/crou-housing-api/internal/dto"
	"github.com/crou-platform/crou-housing-api/internal/models"
	appErrors "github.com/crou-platform/crou-housing-api/pkg/errors"
)

type studentRepo interface {
	FindByID(ctx context.Context, tenantID, id string) (*models.Student, error)
	List(ctx context.Context, tenantID string, filter models.StudentFilter) ([]models.Student, int, error)
	ExistsByINE(ctx context.Context, tenantID, ine, excludeID string) (bool, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Deactivate(ctx context.Context, tenantID, id string) error
}

type studentOccupancyReader interface {
	ListByStudent(ctx context.Context, tenantID, studentID string) ([]models.OccupancyHistory, error)
}

// StudentService manages student records.
type StudentService struct {
	students  studentRepo
	occupancy studentOccupancyReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService wires student management dependencies.
func NewStudentService(students studentRepo, occupancy studentOccupancyReader, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{students: students, occupancy: occupancy, validator: validate, logger: logger}
}

// GetStudent returns one student.
func (s *StudentService) GetStudent(ctx context.Context, tenantID, id string) (*models.Student, error) {
	student, err := s.students.FindByID(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, err
	}
	return student, nil
}

// ListStudents returns students matching the filter.
func (s *StudentService) ListStudents(ctx context.Context, tenantID string, filter models.StudentFilter) ([]models.Student, int, error) {
	return s.students.List(ctx, tenantID, filter)
}

// CreateStudent registers a new student. INE must be unique per tenant.
func (s *StudentService) CreateStudent(ctx context.Context, tenantID string, req dto.CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	exists, err := s.students.ExistsByINE(ctx, tenantID, req.INE, "")
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a student with this INE already exists")
	}
	student := &models.Student{
		TenantID:     tenantID,
		INE:          req.INE,
		FullName:     req.FullName,
		Gender:       models.Gender(req.Gender),
		Cycle:        models.AcademicCycle(req.Cycle),
		LevelOfStudy: req.LevelOfStudy,
		Boursier:     req.Boursier,
		BacSeries:    req.BacSeries,
		Resident:     req.Resident,
		Handicape:    req.Handicape,
		Active:       true,
	}
	if err := s.students.Create(ctx, student); err != nil {
		return nil, err
	}
	s.logger.Info("student created", zap.String("student_id", student.ID), zap.String("ine", student.INE))
	return student, nil
}

// UpdateStudent mutates a student record.
func (s *StudentService) UpdateStudent(ctx context.Context, tenantID, id string, req dto.UpdateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	student, err := s.GetStudent(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	student.FullName = req.FullName
	student.Gender = models.Gender(req.Gender)
	student.Cycle = models.AcademicCycle(req.Cycle)
	student.LevelOfStudy = req.LevelOfStudy
	student.Boursier = req.Boursier
	student.BacSeries = req.BacSeries
	student.Resident = req.Resident
	student.Handicape = req.Handicape
	student.Active = req.Active
	if err := s.students.Update(ctx, student); err != nil {
		return nil, err
	}
	return student, nil
}

// DeactivateStudent soft-deletes a student.
func (s *StudentService) DeactivateStudent(ctx context.Context, tenantID, id string) error {
	if _, err := s.GetStudent(ctx, tenantID, id); err != nil {
		return err
	}
	return s.students.Deactivate(ctx, tenantID, id)
}

// GetHousingHistory returns a student's occupancy records, newest first.
func (s *StudentService) GetHousingHistory(ctx context.Context, tenantID, id string) ([]models.OccupancyHistory, error) {
	if _, err := s.GetStudent(ctx, tenantID, id); err != nil {
		return nil, err
	}
	return s.occupancy.ListByStudent(ctx, tenantID, id)
}
