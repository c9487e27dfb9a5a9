package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/neuracraft/atlas/internal/platform/db"
	"github.com/neuracraft/atlas/internal/shared"
)

// Repository defines persistence operations for the module catalog and its
// permission vocabulary.
type Repository interface {
	ListModules(ctx context.Context, activeOnly bool) ([]Module, error)
	GetModule(ctx context.Context, id int64) (Module, error)
	CreateModule(ctx context.Context, m Module) (Module, error)
	UpdateModule(ctx context.Context, id int64, m Module) (Module, error)
	DeleteModule(ctx context.Context, id int64) error

	ListPermissions(ctx context.Context, moduleID int64) ([]ModulePermission, error)
	ListPermissionsForModules(ctx context.Context, moduleIDs []int64) (map[int64][]ModulePermission, error)
	CreatePermission(ctx context.Context, p ModulePermission) (ModulePermission, error)
	UpdatePermission(ctx context.Context, id int64, p PermissionInput) (ModulePermission, error)
	DeletePermission(ctx context.Context, id int64) error
	ReplacePermissions(ctx context.Context, moduleID int64, perms []PermissionInput) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const moduleColumns = `id, name, icon, path, parent_id, sort_order, is_active, created_at, updated_at`

func scanModule(row pgx.Row) (Module, error) {
	var m Module
	err := row.Scan(&m.ID, &m.Name, &m.Icon, &m.Path, &m.ParentID, &m.Order, &m.IsActive, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

func (r *repository) ListModules(ctx context.Context, activeOnly bool) ([]Module, error) {
	query := `SELECT ` + moduleColumns + ` FROM modules`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY sort_order, id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var modules []Module
	for rows.Next() {
		m, err := scanModule(rows)
		if err != nil {
			return nil, err
		}
		modules = append(modules, m)
	}
	return modules, rows.Err()
}

func (r *repository) GetModule(ctx context.Context, id int64) (Module, error) {
	m, err := scanModule(r.pool.QueryRow(ctx, `SELECT `+moduleColumns+` FROM modules WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Module{}, shared.ErrNotFound
		}
		return Module{}, err
	}
	return m, nil
}

func (r *repository) CreateModule(ctx context.Context, m Module) (Module, error) {
	now := time.Now().UTC()
	row := r.pool.QueryRow(ctx, `
		INSERT INTO modules (name, icon, path, parent_id, sort_order, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING `+moduleColumns,
		m.Name, m.Icon, m.Path, m.ParentID, m.Order, m.IsActive, now)
	return scanModule(row)
}

func (r *repository) UpdateModule(ctx context.Context, id int64, m Module) (Module, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE modules
		SET name = $2, icon = $3, path = $4, parent_id = $5, sort_order = $6, is_active = $7, updated_at = $8
		WHERE id = $1
		RETURNING `+moduleColumns,
		id, m.Name, m.Icon, m.Path, m.ParentID, m.Order, m.IsActive, time.Now().UTC())
	updated, err := scanModule(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Module{}, shared.ErrNotFound
		}
		return Module{}, err
	}
	return updated, nil
}

// DeleteModule removes a module. The subtree, its vocabulary and incident
// grant edges go with it through ON DELETE CASCADE.
func (r *repository) DeleteModule(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM modules WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

const permissionColumns = `id, module_id, codename, label, category, sort_order`

func (r *repository) ListPermissions(ctx context.Context, moduleID int64) ([]ModulePermission, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+permissionColumns+`
		FROM module_permissions
		WHERE module_id = $1
		ORDER BY category, sort_order, codename`, moduleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPermissions(rows)
}

func (r *repository) ListPermissionsForModules(ctx context.Context, moduleIDs []int64) (map[int64][]ModulePermission, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+permissionColumns+`
		FROM module_permissions
		WHERE module_id = ANY($1)
		ORDER BY category, sort_order, codename`, moduleIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	perms, err := collectPermissions(rows)
	if err != nil {
		return nil, err
	}
	byModule := make(map[int64][]ModulePermission, len(moduleIDs))
	for _, p := range perms {
		byModule[p.ModuleID] = append(byModule[p.ModuleID], p)
	}
	return byModule, nil
}

func collectPermissions(rows pgx.Rows) ([]ModulePermission, error) {
	var perms []ModulePermission
	for rows.Next() {
		var p ModulePermission
		if err := rows.Scan(&p.ID, &p.ModuleID, &p.Codename, &p.Label, &p.Category, &p.Order); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

func (r *repository) CreatePermission(ctx context.Context, p ModulePermission) (ModulePermission, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO module_permissions (module_id, codename, label, category, sort_order)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+permissionColumns,
		p.ModuleID, p.Codename, p.Label, p.Category, p.Order)
	var created ModulePermission
	if err := row.Scan(&created.ID, &created.ModuleID, &created.Codename, &created.Label, &created.Category, &created.Order); err != nil {
		if db.IsUniqueViolation(err) {
			return ModulePermission{}, shared.ErrDuplicate
		}
		return ModulePermission{}, err
	}
	return created, nil
}

func (r *repository) UpdatePermission(ctx context.Context, id int64, p PermissionInput) (ModulePermission, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE module_permissions
		SET codename = $2, label = $3, category = $4, sort_order = $5
		WHERE id = $1
		RETURNING `+permissionColumns,
		id, p.Codename, p.Label, p.Category, p.Order)
	var updated ModulePermission
	if err := row.Scan(&updated.ID, &updated.ModuleID, &updated.Codename, &updated.Label, &updated.Category, &updated.Order); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ModulePermission{}, shared.ErrNotFound
		}
		if db.IsUniqueViolation(err) {
			return ModulePermission{}, shared.ErrDuplicate
		}
		return ModulePermission{}, err
	}
	return updated, nil
}

func (r *repository) DeletePermission(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM module_permissions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ReplacePermissions applies a diff-based replace of the module vocabulary.
// Codenames absent from perms are deleted; present ones are upserted so the
// row id (and any grant membership referencing it) survives.
func (r *repository) ReplacePermissions(ctx context.Context, moduleID int64, perms []PermissionInput) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		keep := make([]string, 0, len(perms))
		for _, p := range perms {
			keep = append(keep, p.Codename)
		}
		if _, err := tx.Exec(ctx, `
			DELETE FROM module_permissions
			WHERE module_id = $1 AND codename != ALL($2)`, moduleID, keep); err != nil {
			return err
		}
		for _, p := range perms {
			if _, err := tx.Exec(ctx, `
				INSERT INTO module_permissions (module_id, codename, label, category, sort_order)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (module_id, codename)
				DO UPDATE SET label = EXCLUDED.label, category = EXCLUDED.category, sort_order = EXCLUDED.sort_order`,
				moduleID, p.Codename, p.Label, p.Category, p.Order); err != nil {
				return err
			}
		}
		return nil
	})
}
