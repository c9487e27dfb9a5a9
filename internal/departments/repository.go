package departments

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/neuracraft/atlas/internal/platform/db"
	"github.com/neuracraft/atlas/internal/shared"
)

// Repository defines persistence operations for departments.
type Repository interface {
	List(ctx context.Context, activeOnly bool) ([]Department, error)
	Get(ctx context.Context, id int64) (Department, error)
	Create(ctx context.Context, d Department) (Department, error)
	Update(ctx context.Context, id int64, d Department) (Department, error)
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const departmentColumns = `id, name, code, description, is_active, created_at, updated_at`

func scanDepartment(row pgx.Row) (Department, error) {
	var d Department
	err := row.Scan(&d.ID, &d.Name, &d.Code, &d.Description, &d.IsActive, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}

func (r *repository) List(ctx context.Context, activeOnly bool) ([]Department, error) {
	query := `SELECT ` + departmentColumns + ` FROM departments`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY name, id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var departments []Department
	for rows.Next() {
		d, err := scanDepartment(rows)
		if err != nil {
			return nil, err
		}
		departments = append(departments, d)
	}
	return departments, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Department, error) {
	d, err := scanDepartment(r.pool.QueryRow(ctx,
		`SELECT `+departmentColumns+` FROM departments WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Department{}, shared.ErrNotFound
		}
		return Department{}, err
	}
	return d, nil
}

func (r *repository) Create(ctx context.Context, d Department) (Department, error) {
	created, err := scanDepartment(r.pool.QueryRow(ctx, `
		INSERT INTO departments (name, code, description, is_active)
		VALUES ($1, $2, $3, $4)
		RETURNING `+departmentColumns,
		d.Name, d.Code, d.Description, d.IsActive))
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Department{}, shared.ErrDuplicate
		}
		return Department{}, err
	}
	return created, nil
}

func (r *repository) Update(ctx context.Context, id int64, d Department) (Department, error) {
	updated, err := scanDepartment(r.pool.QueryRow(ctx, `
		UPDATE departments
		SET name = $2, code = $3, description = $4, is_active = $5, updated_at = now()
		WHERE id = $1
		RETURNING `+departmentColumns,
		id, d.Name, d.Code, d.Description, d.IsActive))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Department{}, shared.ErrNotFound
		}
		if db.IsUniqueViolation(err) {
			return Department{}, shared.ErrDuplicate
		}
		return Department{}, err
	}
	return updated, nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM departments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
