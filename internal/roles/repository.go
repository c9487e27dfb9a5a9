package roles

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/neuracraft/atlas/internal/platform/db"
	"github.com/neuracraft/atlas/internal/shared"
)

// Repository defines persistence operations for roles.
type Repository interface {
	List(ctx context.Context, filters ListFilters) ([]Role, error)
	Get(ctx context.Context, id int64) (Role, error)
	Create(ctx context.Context, role Role) (Role, error)
	Update(ctx context.Context, id int64, role Role) (Role, error)
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const roleColumns = `r.id, r.name, r.description, r.department_id, COALESCE(d.name, ''), r.is_active, r.created_at, r.updated_at`

const roleFrom = ` FROM roles r LEFT JOIN departments d ON d.id = r.department_id`

func scanRole(row pgx.Row) (Role, error) {
	var role Role
	err := row.Scan(&role.ID, &role.Name, &role.Description, &role.DepartmentID,
		&role.DepartmentName, &role.IsActive, &role.CreatedAt, &role.UpdatedAt)
	return role, err
}

func (r *repository) List(ctx context.Context, filters ListFilters) ([]Role, error) {
	query := `SELECT ` + roleColumns + roleFrom + ` WHERE 1=1`
	args := []any{}
	if filters.DepartmentID != nil {
		args = append(args, *filters.DepartmentID)
		query += ` AND r.department_id = $1`
	}
	if filters.ActiveOnly {
		query += ` AND r.is_active`
	}
	query += ` ORDER BY r.name, r.id`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Role, error) {
	role, err := scanRole(r.pool.QueryRow(ctx,
		`SELECT `+roleColumns+roleFrom+` WHERE r.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, shared.ErrNotFound
		}
		return Role{}, err
	}
	return role, nil
}

func (r *repository) Create(ctx context.Context, role Role) (Role, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO roles (name, description, department_id, is_active)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		role.Name, role.Description, role.DepartmentID, role.IsActive).Scan(&id)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Role{}, shared.ErrDuplicate
		}
		if db.IsForeignKeyViolation(err) {
			return Role{}, shared.ErrNotFound
		}
		return Role{}, err
	}
	return r.Get(ctx, id)
}

func (r *repository) Update(ctx context.Context, id int64, role Role) (Role, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE roles
		SET name = $2, description = $3, department_id = $4, is_active = $5, updated_at = now()
		WHERE id = $1`,
		id, role.Name, role.Description, role.DepartmentID, role.IsActive)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Role{}, shared.ErrDuplicate
		}
		if db.IsForeignKeyViolation(err) {
			return Role{}, shared.ErrNotFound
		}
		return Role{}, err
	}
	if tag.RowsAffected() == 0 {
		return Role{}, shared.ErrNotFound
	}
	return r.Get(ctx, id)
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
