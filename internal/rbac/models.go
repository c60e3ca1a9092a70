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

package rbac

import (
	"context"
	"time"

	"github.com/opentrusty/obralog/internal/apperror"
)

// Domain errors
var (
	ErrModuleNotFound = apperror.New(apperror.KindNotFound, "module not found")
	ErrModuleExists   = apperror.New(apperror.KindConflict, "module code already exists")
	ErrModuleInUse    = apperror.New(apperror.KindConflict, "module is referenced by grants")
	ErrRoleNotFound   = apperror.New(apperror.KindNotFound, "role not found")
	ErrRoleExists     = apperror.New(apperror.KindConflict, "role name already exists")
	ErrRoleInUse      = apperror.New(apperror.KindConflict, "role is referenced by grants")
	ErrGrantNotFound  = apperror.New(apperror.KindNotFound, "grant not found")
	ErrInvalidModule  = apperror.New(apperror.KindValidation, "module code and name are required")
	ErrInvalidRole    = apperror.New(apperror.KindValidation, "role name is required")
	ErrInvalidGrant   = apperror.New(apperror.KindValidation, "identityId, moduleId and roleId are required")
)

// Module is a business capability area that permissions are scoped to.
type Module struct {
	ID          int64     `json:"id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Role is a label attached to a grant. It carries no permissions itself.
type Role struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Permissions are the four independent action flags of a grant.
type Permissions struct {
	CanRead   bool `json:"canRead"`
	CanCreate bool `json:"canCreate"`
	CanUpdate bool `json:"canUpdate"`
	CanDelete bool `json:"canDelete"`
}

// Allows reports the flag for action. Unknown actions are denied.
func (p Permissions) Allows(action Action) bool {
	switch action {
	case ActionRead:
		return p.CanRead
	case ActionCreate:
		return p.CanCreate
	case ActionUpdate:
		return p.CanUpdate
	case ActionDelete:
		return p.CanDelete
	default:
		return false
	}
}

// FullAccess grants every action.
func FullAccess() Permissions {
	return Permissions{CanRead: true, CanCreate: true, CanUpdate: true, CanDelete: true}
}

// Grant binds one identity to one module with a role and permission flags.
// There is at most one grant per (IdentityID, ModuleID).
type Grant struct {
	ID         int64  `json:"id"`
	IdentityID int64  `json:"identityId"`
	ModuleID   int64  `json:"moduleId"`
	RoleID     int64  `json:"roleId"`
	ModuleCode string `json:"moduleCode,omitempty"`
	RoleName   string `json:"roleName,omitempty"`
	// ModuleActive mirrors the module flag. Grants on inactive modules confer nothing.
	ModuleActive bool `json:"moduleActive"`
	Permissions
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ModuleRepository defines the interface for module persistence
type ModuleRepository interface {
	// Create inserts a module. Returns ErrModuleExists on a duplicate code.
	Create(ctx context.Context, module *Module) error
	GetByID(ctx context.Context, id int64) (*Module, error)
	GetByCode(ctx context.Context, code string) (*Module, error)
	List(ctx context.Context) ([]*Module, error)
	Update(ctx context.Context, module *Module) error
	// Delete removes a module. Returns ErrModuleInUse while grants reference it.
	Delete(ctx context.Context, id int64) error
}

// RoleRepository defines the interface for role persistence
type RoleRepository interface {
	// Create inserts a role. Returns ErrRoleExists on a duplicate name.
	Create(ctx context.Context, role *Role) error
	GetByID(ctx context.Context, id int64) (*Role, error)
	GetByName(ctx context.Context, name string) (*Role, error)
	List(ctx context.Context) ([]*Role, error)
	Update(ctx context.Context, role *Role) error
	// Delete removes a role. Returns ErrRoleInUse while grants reference it.
	Delete(ctx context.Context, id int64) error
}

// GrantRepository defines the interface for grant persistence
type GrantRepository interface {
	// Upsert inserts the grant or, when one already exists for
	// (IdentityID, ModuleID), overwrites its role and flags in place.
	// On return grant carries the stored ID and timestamps.
	Upsert(ctx context.Context, grant *Grant) error

	// GetForModule returns the grant of identityID in the active module with
	// moduleCode. Grants on inactive modules are reported as ErrGrantNotFound.
	GetForModule(ctx context.Context, identityID int64, moduleCode string) (*Grant, error)

	// ListByIdentity returns every grant of identityID, including grants on
	// inactive modules, with module code, module flag and role name populated.
	ListByIdentity(ctx context.Context, identityID int64) ([]*Grant, error)
}
