package rbac

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/neuracraft/atlas/internal/platform/db"
)

// Repository defines the grant graph persistence operations.
type Repository interface {
	// GetGrantEdges returns, in one consistent read, every grant edge of the
	// given roles whose module is active, module metadata included.
	GetGrantEdges(ctx context.Context, roleIDs []int64) ([]GrantEdge, error)
	// GetModuleCodenames returns the codenames granted to any of the roles
	// on one active module, duplicates across roles included.
	GetModuleCodenames(ctx context.Context, roleIDs []int64, moduleID int64) ([]string, error)

	GetUserRoleIDs(ctx context.Context, userID int64) ([]int64, error)
	GetModuleIDByPath(ctx context.Context, path string) (int64, error)

	RoleExists(ctx context.Context, roleID int64) (bool, error)
	ModuleExists(ctx context.Context, moduleID int64) (bool, error)

	// ResolvePermissionIDs maps codenames to permission ids of the module.
	// Codenames with no matching vocabulary entry are simply absent from the
	// result (lenient filter).
	ResolvePermissionIDs(ctx context.Context, moduleID int64, codenames []string) ([]int64, error)
	// AllPermissionIDs snapshots every permission id the module currently has.
	AllPermissionIDs(ctx context.Context, moduleID int64) ([]int64, error)

	// ReplaceGrantMembership atomically replaces the permission set of the
	// (role, module) edge, creating the edge when missing.
	ReplaceGrantMembership(ctx context.Context, roleID, moduleID int64, permissionIDs []int64) error

	ListAssignments(ctx context.Context, roleID int64) ([]ModuleAssignment, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) GetGrantEdges(ctx context.Context, roleIDs []int64) ([]GrantEdge, error) {
	// Single statement: a concurrent SetGrants can never leak a half-replaced
	// edge into one resolution.
	rows, err := r.pool.Query(ctx, `
		SELECT rmp.role_id,
		       m.id, m.name, m.icon, m.path, m.parent_id, m.sort_order,
		       COALESCE(array_agg(mp.codename ORDER BY mp.codename) FILTER (WHERE mp.codename IS NOT NULL), '{}')
		FROM role_module_permissions rmp
		JOIN modules m ON m.id = rmp.module_id AND m.is_active
		LEFT JOIN role_module_permission_grants g ON g.grant_id = rmp.id
		LEFT JOIN module_permissions mp ON mp.id = g.permission_id
		WHERE rmp.role_id = ANY($1)
		GROUP BY rmp.id, rmp.role_id, m.id
		ORDER BY m.id, rmp.role_id`, roleIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var edges []GrantEdge
	for rows.Next() {
		var edge GrantEdge
		if err := rows.Scan(&edge.RoleID,
			&edge.Module.ID, &edge.Module.Name, &edge.Module.Icon, &edge.Module.Path,
			&edge.Module.ParentID, &edge.Module.Order,
			&edge.Codenames); err != nil {
			return nil, err
		}
		edges = append(edges, edge)
	}
	return edges, rows.Err()
}

func (r *repository) GetModuleCodenames(ctx context.Context, roleIDs []int64, moduleID int64) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT mp.codename
		FROM role_module_permissions rmp
		JOIN modules m ON m.id = rmp.module_id AND m.is_active
		JOIN role_module_permission_grants g ON g.grant_id = rmp.id
		JOIN module_permissions mp ON mp.id = g.permission_id
		WHERE rmp.role_id = ANY($1) AND rmp.module_id = $2`, roleIDs, moduleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var codenames []string
	for rows.Next() {
		var codename string
		if err := rows.Scan(&codename); err != nil {
			return nil, err
		}
		codenames = append(codenames, codename)
	}
	return codenames, rows.Err()
}

func (r *repository) GetUserRoleIDs(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT ur.role_id
		FROM user_roles ur
		JOIN roles ro ON ro.id = ur.role_id AND ro.is_active
		WHERE ur.user_id = $1
		ORDER BY ur.role_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *repository) GetModuleIDByPath(ctx context.Context, path string) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `SELECT id FROM modules WHERE path = $1 AND is_active`, path).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return id, nil
}

func (r *repository) RoleExists(ctx context.Context, roleID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM roles WHERE id = $1)`, roleID).Scan(&exists)
	return exists, err
}

func (r *repository) ModuleExists(ctx context.Context, moduleID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM modules WHERE id = $1)`, moduleID).Scan(&exists)
	return exists, err
}

func (r *repository) ResolvePermissionIDs(ctx context.Context, moduleID int64, codenames []string) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id FROM module_permissions
		WHERE module_id = $1 AND codename = ANY($2)
		ORDER BY id`, moduleID, codenames)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectIDs(rows)
}

func (r *repository) AllPermissionIDs(ctx context.Context, moduleID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id FROM module_permissions WHERE module_id = $1 ORDER BY id`, moduleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectIDs(rows)
}

func collectIDs(rows pgx.Rows) ([]int64, error) {
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *repository) ReplaceGrantMembership(ctx context.Context, roleID, moduleID int64, permissionIDs []int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var grantID int64
		err := tx.QueryRow(ctx, `
			INSERT INTO role_module_permissions (role_id, module_id)
			VALUES ($1, $2)
			ON CONFLICT (role_id, module_id) DO UPDATE SET role_id = EXCLUDED.role_id
			RETURNING id`, roleID, moduleID).Scan(&grantID)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			DELETE FROM role_module_permission_grants
			WHERE grant_id = $1 AND permission_id != ALL($2)`, grantID, permissionIDs); err != nil {
			return err
		}
		for _, permissionID := range permissionIDs {
			if _, err := tx.Exec(ctx, `
				INSERT INTO role_module_permission_grants (grant_id, permission_id)
				VALUES ($1, $2)
				ON CONFLICT DO NOTHING`, grantID, permissionID); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *repository) ListAssignments(ctx context.Context, roleID int64) ([]ModuleAssignment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT m.id, m.name, m.path, m.icon, m.parent_id, m.sort_order,
		       mp.id, mp.codename, mp.label, mp.category, mp.sort_order,
		       EXISTS (
		           SELECT 1
		           FROM role_module_permissions rmp
		           JOIN role_module_permission_grants g ON g.grant_id = rmp.id
		           WHERE rmp.role_id = $1 AND rmp.module_id = m.id AND g.permission_id = mp.id
		       )
		FROM modules m
		LEFT JOIN module_permissions mp ON mp.module_id = m.id
		WHERE m.is_active
		ORDER BY m.sort_order, m.id, mp.category, mp.sort_order, mp.codename`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type row struct {
		assignment *ModuleAssignment
		parentID   *int64
	}
	byModule := make(map[int64]*row)
	var order []int64

	for rows.Next() {
		var (
			moduleID   int64
			name       string
			path       string
			icon       string
			parentID   *int64
			moduleSort int
			permID     *int64
			codename   *string
			label      *string
			category   *string
			permSort   *int
			granted    bool
		)
		if err := rows.Scan(&moduleID, &name, &path, &icon, &parentID, &moduleSort,
			&permID, &codename, &label, &category, &permSort, &granted); err != nil {
			return nil, err
		}
		entry, ok := byModule[moduleID]
		if !ok {
			entry = &row{
				assignment: &ModuleAssignment{
					ModuleID:             moduleID,
					ModuleName:           name,
					ModulePath:           path,
					ModuleIcon:           icon,
					AvailablePermissions: []AvailablePermission{},
					GrantedPermissions:   []string{},
					Children:             []ModuleAssignment{},
				},
				parentID: parentID,
			}
			byModule[moduleID] = entry
			order = append(order, moduleID)
		}
		if permID != nil {
			entry.assignment.AvailablePermissions = append(entry.assignment.AvailablePermissions, AvailablePermission{
				ID:       *permID,
				Codename: *codename,
				Label:    *label,
				Category: *category,
				Order:    derefInt(permSort),
			})
			if granted {
				entry.assignment.GrantedPermissions = append(entry.assignment.GrantedPermissions, *codename)
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Rebuild the hierarchy bottom-up, preserving sort order.
	childIDs := make(map[int64][]int64)
	for _, id := range order {
		entry := byModule[id]
		if entry.parentID != nil {
			if _, ok := byModule[*entry.parentID]; ok {
				childIDs[*entry.parentID] = append(childIDs[*entry.parentID], id)
			}
		}
	}
	var build func(id int64) ModuleAssignment
	build = func(id int64) ModuleAssignment {
		assignment := *byModule[id].assignment
		for _, childID := range childIDs[id] {
			assignment.Children = append(assignment.Children, build(childID))
		}
		return assignment
	}
	roots := []ModuleAssignment{}
	for _, id := range order {
		if byModule[id].parentID == nil {
			roots = append(roots, build(id))
		}
	}
	return roots, nil
}

func derefInt(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
