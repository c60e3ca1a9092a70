// Copyright 2026 The OpenTrusty Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/opentrusty/obralog/internal/rbac"
)

// ModuleRepository implements rbac.ModuleRepository
type ModuleRepository struct {
	db *DB
}

// NewModuleRepository creates a new module repository
func NewModuleRepository(db *DB) *ModuleRepository {
	return &ModuleRepository{db: db}
}

func scanModule(row pgx.Row) (*rbac.Module, error) {
	var m rbac.Module
	if err := row.Scan(&m.ID, &m.Code, &m.Name, &m.Description, &m.Active, &m.CreatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *ModuleRepository) Create(ctx context.Context, m *rbac.Module) error {
	err := r.db.pool.QueryRow(ctx, `
		INSERT INTO modules (code, name, description, active)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, m.Code, m.Name, m.Description, m.Active).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return rbac.ErrModuleExists
		}
		return fmt.Errorf("failed to insert module: %w", err)
	}
	return nil
}

func (r *ModuleRepository) GetByID(ctx context.Context, id int64) (*rbac.Module, error) {
	return r.get(ctx, `WHERE id = $1`, id)
}

func (r *ModuleRepository) GetByCode(ctx context.Context, code string) (*rbac.Module, error) {
	return r.get(ctx, `WHERE code = $1`, code)
}

func (r *ModuleRepository) get(ctx context.Context, where string, arg any) (*rbac.Module, error) {
	m, err := scanModule(r.db.pool.QueryRow(ctx,
		`SELECT id, code, name, description, active, created_at FROM modules `+where, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, rbac.ErrModuleNotFound
		}
		return nil, fmt.Errorf("failed to get module: %w", err)
	}
	return m, nil
}

func (r *ModuleRepository) List(ctx context.Context) ([]*rbac.Module, error) {
	rows, err := r.db.pool.Query(ctx,
		`SELECT id, code, name, description, active, created_at FROM modules ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list modules: %w", err)
	}
	defer rows.Close()

	out := []*rbac.Module{}
	for rows.Next() {
		m, err := scanModule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan module: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *ModuleRepository) Update(ctx context.Context, m *rbac.Module) error {
	tag, err := r.db.pool.Exec(ctx, `
		UPDATE modules SET code = $2, name = $3, description = $4, active = $5
		WHERE id = $1
	`, m.ID, m.Code, m.Name, m.Description, m.Active)
	if err != nil {
		if isUniqueViolation(err) {
			return rbac.ErrModuleExists
		}
		return fmt.Errorf("failed to update module: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return rbac.ErrModuleNotFound
	}
	return nil
}

func (r *ModuleRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.pool.Exec(ctx, `DELETE FROM modules WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return rbac.ErrModuleInUse
		}
		return fmt.Errorf("failed to delete module: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return rbac.ErrModuleNotFound
	}
	return nil
}

// RoleRepository implements rbac.RoleRepository
type RoleRepository struct {
	db *DB
}

// NewRoleRepository creates a new role repository
func NewRoleRepository(db *DB) *RoleRepository {
	return &RoleRepository{db: db}
}

func scanRole(row pgx.Row) (*rbac.Role, error) {
	var role rbac.Role
	if err := row.Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt); err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *RoleRepository) Create(ctx context.Context, role *rbac.Role) error {
	err := r.db.pool.QueryRow(ctx, `
		INSERT INTO roles (name, description) VALUES ($1, $2)
		RETURNING id, created_at
	`, role.Name, role.Description).Scan(&role.ID, &role.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return rbac.ErrRoleExists
		}
		return fmt.Errorf("failed to insert role: %w", err)
	}
	return nil
}

func (r *RoleRepository) GetByID(ctx context.Context, id int64) (*rbac.Role, error) {
	return r.get(ctx, `WHERE id = $1`, id)
}

func (r *RoleRepository) GetByName(ctx context.Context, name string) (*rbac.Role, error) {
	return r.get(ctx, `WHERE name = $1`, name)
}

func (r *RoleRepository) get(ctx context.Context, where string, arg any) (*rbac.Role, error) {
	role, err := scanRole(r.db.pool.QueryRow(ctx,
		`SELECT id, name, description, created_at FROM roles `+where, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, rbac.ErrRoleNotFound
		}
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	return role, nil
}

func (r *RoleRepository) List(ctx context.Context) ([]*rbac.Role, error) {
	rows, err := r.db.pool.Query(ctx, `SELECT id, name, description, created_at FROM roles ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	out := []*rbac.Role{}
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		out = append(out, role)
	}
	return out, rows.Err()
}

func (r *RoleRepository) Update(ctx context.Context, role *rbac.Role) error {
	tag, err := r.db.pool.Exec(ctx,
		`UPDATE roles SET name = $2, description = $3 WHERE id = $1`,
		role.ID, role.Name, role.Description)
	if err != nil {
		if isUniqueViolation(err) {
			return rbac.ErrRoleExists
		}
		return fmt.Errorf("failed to update role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return rbac.ErrRoleNotFound
	}
	return nil
}

func (r *RoleRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return rbac.ErrRoleInUse
		}
		return fmt.Errorf("failed to delete role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return rbac.ErrRoleNotFound
	}
	return nil
}

// GrantRepository implements rbac.GrantRepository
type GrantRepository struct {
	db *DB
}

// NewGrantRepository creates a new grant repository
func NewGrantRepository(db *DB) *GrantRepository {
	return &GrantRepository{db: db}
}

const grantSelect = `
	SELECT g.id, g.identity_id, g.module_id, g.role_id, m.code, m.active, r.name,
		g.can_read, g.can_create, g.can_update, g.can_delete,
		g.created_at, g.updated_at
	FROM grants g
	JOIN modules m ON m.id = g.module_id
	JOIN roles r ON r.id = g.role_id`

func scanGrant(row pgx.Row) (*rbac.Grant, error) {
	var g rbac.Grant
	err := row.Scan(
		&g.ID, &g.IdentityID, &g.ModuleID, &g.RoleID, &g.ModuleCode, &g.ModuleActive, &g.RoleName,
		&g.CanRead, &g.CanCreate, &g.CanUpdate, &g.CanDelete,
		&g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// Upsert is keyed on (identity_id, module_id), matching the table constraint.
func (r *GrantRepository) Upsert(ctx context.Context, g *rbac.Grant) error {
	err := r.db.pool.QueryRow(ctx, `
		INSERT INTO grants (identity_id, module_id, role_id, can_read, can_create, can_update, can_delete)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (identity_id, module_id) DO UPDATE SET
			role_id = EXCLUDED.role_id,
			can_read = EXCLUDED.can_read,
			can_create = EXCLUDED.can_create,
			can_update = EXCLUDED.can_update,
			can_delete = EXCLUDED.can_delete,
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`, g.IdentityID, g.ModuleID, g.RoleID, g.CanRead, g.CanCreate, g.CanUpdate, g.CanDelete,
	).Scan(&g.ID, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert grant: %w", err)
	}
	return nil
}

func (r *GrantRepository) GetForModule(ctx context.Context, identityID int64, moduleCode string) (*rbac.Grant, error) {
	g, err := scanGrant(r.db.pool.QueryRow(ctx,
		grantSelect+` WHERE g.identity_id = $1 AND m.code = $2 AND m.active`,
		identityID, moduleCode))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, rbac.ErrGrantNotFound
		}
		return nil, fmt.Errorf("failed to get grant: %w", err)
	}
	return g, nil
}

func (r *GrantRepository) ListByIdentity(ctx context.Context, identityID int64) ([]*rbac.Grant, error) {
	rows, err := r.db.pool.Query(ctx, grantSelect+` WHERE g.identity_id = $1 ORDER BY g.id`, identityID)
	if err != nil {
		return nil, fmt.Errorf("failed to list grants: %w", err)
	}
	defer rows.Close()

	out := []*rbac.Grant{}
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan grant: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}
