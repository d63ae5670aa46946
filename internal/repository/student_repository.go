package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/crou-platform/crou-housing-api/internal/models"
)

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

const studentColumns = `id, tenant_id, ine, full_name, gender, cycle, level_of_study, boursier, bac_series, resident, handicape, active, created_at, updated_at`

// FindByID fetches a student scoped to its tenant.
func (r *StudentRepository) FindByID(ctx context.Context, tenantID, id string) (*models.Student, error) {
	query := fmt.Sprintf(`SELECT %s FROM students WHERE tenant_id = $1 AND id = $2`, studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, tenantID, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// List returns students matching the provided filters.
func (r *StudentRepository) List(ctx context.Context, tenantID string, filter models.StudentFilter) ([]models.Student, int, error) {
	base := "FROM students WHERE tenant_id = $1"
	args := []interface{}{tenantID}

	if filter.Cycle != "" {
		args = append(args, filter.Cycle)
		base += fmt.Sprintf(" AND cycle = $%d", len(args))
	}
	if filter.Boursier != nil {
		args = append(args, *filter.Boursier)
		base += fmt.Sprintf(" AND boursier = $%d", len(args))
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		base += fmt.Sprintf(" AND active = $%d", len(args))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		base += fmt.Sprintf(" AND (LOWER(full_name) LIKE $%d OR LOWER(ine) LIKE $%d)", len(args), len(args))
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"full_name":  "full_name",
		"ine":        "ine",
		"created_at": "created_at",
	}
	column, ok := allowedSorts[sortBy]
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", studentColumns, base, column, order, size, offset)

	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// ListByIDs fetches the given students in one round trip.
func (r *StudentRepository) ListByIDs(ctx context.Context, tenantID string, ids []string) ([]models.Student, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT %s FROM students WHERE tenant_id = $1 AND id = ANY($2)`, studentColumns)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, tenantID, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("list students by ids: %w", err)
	}
	return students, nil
}

// ExistsByINE checks if a student with the given INE exists in the tenant,
// optionally excluding an ID.
func (r *StudentRepository) ExistsByINE(ctx context.Context, tenantID, ine, excludeID string) (bool, error) {
	query := "SELECT 1 FROM students WHERE tenant_id = $1 AND ine = $2"
	args := []interface{}{tenantID, ine}
	if excludeID != "" {
		query += " AND id <> $3"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check ine: %w", err)
	}
	return true, nil
}

// Create inserts a new student record.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	student.UpdatedAt = now
	const query = `INSERT INTO students (id, tenant_id, ine, full_name, gender, cycle, level_of_study, boursier, bac_series, resident, handicape, active, created_at, updated_at)
        VALUES (:id, :tenant_id, :ine, :full_name, :gender, :cycle, :level_of_study, :boursier, :bac_series, :resident, :handicape, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Update modifies an existing student.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET ine = :ine, full_name = :full_name, gender = :gender, cycle = :cycle, level_of_study = :level_of_study, boursier = :boursier, bac_series = :bac_series, resident = :resident, handicape = :handicape, active = :active, updated_at = :updated_at WHERE tenant_id = :tenant_id AND id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return nil
}

// Deactivate marks a student as inactive.
func (r *StudentRepository) Deactivate(ctx context.Context, tenantID, id string) error {
	const query = `UPDATE students SET active = false, updated_at = $3 WHERE tenant_id = $1 AND id = $2`
	if _, err := r.db.ExecContext(ctx, query, tenantID, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate student: %w", err)
	}
	return nil
}
