package users

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/neuracraft/atlas/internal/platform/db"
	"github.com/neuracraft/atlas/internal/shared"
)

// Repository defines persistence operations for user accounts and their
// role membership.
type Repository interface {
	List(ctx context.Context) ([]User, error)
	Get(ctx context.Context, id int64) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	Create(ctx context.Context, u User) (User, error)
	Update(ctx context.Context, id int64, u User) (User, error)
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	Delete(ctx context.Context, id int64) error
	ReplaceRoles(ctx context.Context, userID int64, roleIDs []int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const userColumns = `id, email, name, password_hash, phone, employee_id, department_id, is_active, created_at, updated_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Phone, &u.EmployeeID,
		&u.DepartmentID, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (r *repository) List(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return r.attachRoles(ctx, users)
}

func (r *repository) Get(ctx context.Context, id int64) (User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, shared.ErrNotFound
		}
		return User{}, err
	}
	users, err := r.attachRoles(ctx, []User{u})
	if err != nil {
		return User{}, err
	}
	return users[0], nil
}

func (r *repository) GetByEmail(ctx context.Context, email string) (User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, shared.ErrNotFound
		}
		return User{}, err
	}
	users, err := r.attachRoles(ctx, []User{u})
	if err != nil {
		return User{}, err
	}
	return users[0], nil
}

func (r *repository) Create(ctx context.Context, u User) (User, error) {
	created, err := scanUser(r.pool.QueryRow(ctx, `
		INSERT INTO users (email, name, password_hash, phone, employee_id, department_id, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+userColumns,
		u.Email, u.Name, u.PasswordHash, u.Phone, u.EmployeeID, u.DepartmentID, u.IsActive))
	if err != nil {
		if db.IsUniqueViolation(err) {
			return User{}, shared.ErrDuplicate
		}
		if db.IsForeignKeyViolation(err) {
			return User{}, shared.ErrNotFound
		}
		return User{}, err
	}
	created.Roles = []RoleRef{}
	return created, nil
}

func (r *repository) Update(ctx context.Context, id int64, u User) (User, error) {
	updated, err := scanUser(r.pool.QueryRow(ctx, `
		UPDATE users
		SET email = $2, name = $3, phone = $4, employee_id = $5, department_id = $6,
		    is_active = $7, updated_at = now()
		WHERE id = $1
		RETURNING `+userColumns,
		id, u.Email, u.Name, u.Phone, u.EmployeeID, u.DepartmentID, u.IsActive))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, shared.ErrNotFound
		}
		if db.IsUniqueViolation(err) {
			return User{}, shared.ErrDuplicate
		}
		if db.IsForeignKeyViolation(err) {
			return User{}, shared.ErrNotFound
		}
		return User{}, err
	}
	users, err := r.attachRoles(ctx, []User{updated})
	if err != nil {
		return User{}, err
	}
	return users[0], nil
}

func (r *repository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`,
		id, passwordHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) ReplaceRoles(ctx context.Context, userID int64, roleIDs []int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			DELETE FROM user_roles WHERE user_id = $1 AND role_id != ALL($2)`,
			userID, roleIDs); err != nil {
			return err
		}
		for _, roleID := range roleIDs {
			if _, err := tx.Exec(ctx, `
				INSERT INTO user_roles (user_id, role_id)
				VALUES ($1, $2)
				ON CONFLICT DO NOTHING`, userID, roleID); err != nil {
				if db.IsForeignKeyViolation(err) {
					return shared.ErrNotFound
				}
				return err
			}
		}
		return nil
	})
}

func (r *repository) attachRoles(ctx context.Context, users []User) ([]User, error) {
	if len(users) == 0 {
		return users, nil
	}
	ids := make([]int64, len(users))
	index := make(map[int64]int, len(users))
	for i := range users {
		users[i].Roles = []RoleRef{}
		ids[i] = users[i].ID
		index[users[i].ID] = i
	}
	rows, err := r.pool.Query(ctx, `
		SELECT ur.user_id, ro.id, ro.name
		FROM user_roles ur
		JOIN roles ro ON ro.id = ur.role_id
		WHERE ur.user_id = ANY($1)
		ORDER BY ro.name, ro.id`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var userID int64
		var ref RoleRef
		if err := rows.Scan(&userID, &ref.ID, &ref.Name); err != nil {
			return nil, err
		}
		users[index[userID]].Roles = append(users[index[userID]].Roles, ref)
	}
	return users, rows.Err()
}
