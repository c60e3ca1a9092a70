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
	"errors"
	"sort"
	"strconv"
	"strings"

	"github.com/opentrusty/obralog/internal/apperror"
	"github.com/opentrusty/obralog/internal/audit"
	"github.com/opentrusty/obralog/internal/identity"
	"github.com/opentrusty/obralog/internal/observability/metrics"
	"github.com/opentrusty/obralog/internal/observability/tracing"
	"go.opentelemetry.io/otel/attribute"
)

// IdentityLookup resolves identities for grant assignment.
type IdentityLookup interface {
	GetByID(ctx context.Context, id int64) (*identity.Identity, error)
}

// Service is the permission matrix plus module and role administration.
type Service struct {
	modules     ModuleRepository
	roles       RoleRepository
	grants      GrantRepository
	identities  IdentityLookup
	auditLogger audit.Logger
}

// NewService creates a new authorization service
func NewService(
	modules ModuleRepository,
	roles RoleRepository,
	grants GrantRepository,
	identities IdentityLookup,
	auditLogger audit.Logger,
) *Service {
	return &Service{
		modules:     modules,
		roles:       roles,
		grants:      grants,
		identities:  identities,
		auditLogger: auditLogger,
	}
}

// AssignRequest describes a grant assignment. Omitted flags default to
// read-only: CanRead true, the others false.
type AssignRequest struct {
	IdentityID int64
	ModuleID   int64
	RoleID     int64
	CanRead    *bool
	CanCreate  *bool
	CanUpdate  *bool
	CanDelete  *bool
	// GrantedBy is the identity performing the assignment, 0 for the system.
	GrantedBy int64
}

func (r AssignRequest) permissions() Permissions {
	flag := func(v *bool, def bool) bool {
		if v == nil {
			return def
		}
		return *v
	}
	return Permissions{
		CanRead:   flag(r.CanRead, true),
		CanCreate: flag(r.CanCreate, false),
		CanUpdate: flag(r.CanUpdate, false),
		CanDelete: flag(r.CanDelete, false),
	}
}

// Assign upserts the grant keyed on (identity, module): a repeated
// assignment replaces role and flags instead of adding a row.
func (s *Service) Assign(ctx context.Context, req AssignRequest) (*Grant, error) {
	if req.IdentityID <= 0 || req.ModuleID <= 0 || req.RoleID <= 0 {
		return nil, ErrInvalidGrant
	}

	if _, err := s.identities.GetByID(ctx, req.IdentityID); err != nil {
		if errors.Is(err, identity.ErrIdentityNotFound) {
			return nil, identity.ErrIdentityNotFound
		}
		return nil, apperror.Internal("failed to load identity", err)
	}
	module, err := s.GetModule(ctx, req.ModuleID)
	if err != nil {
		return nil, err
	}
	role, err := s.GetRole(ctx, req.RoleID)
	if err != nil {
		return nil, err
	}

	grant := &Grant{
		IdentityID:  req.IdentityID,
		ModuleID:    module.ID,
		RoleID:      role.ID,
		ModuleCode:   module.Code,
		RoleName:     role.Name,
		ModuleActive: module.Active,
		Permissions:  req.permissions(),
	}
	if err := s.grants.Upsert(ctx, grant); err != nil {
		return nil, apperror.Internal("failed to assign grant", err)
	}

	metrics.RecordGrantAssigned(ctx, module.Code)
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeGrantAssigned,
		ActorID:  actor(req.GrantedBy),
		Resource: audit.ResourceGrant,
		Metadata: map[string]any{
			audit.AttrIdentityID: req.IdentityID,
			audit.AttrModule:     module.Code,
			audit.AttrRoleID:     role.ID,
			"can_read":           grant.CanRead,
			"can_create":         grant.CanCreate,
			"can_update":         grant.CanUpdate,
			"can_delete":         grant.CanDelete,
		},
	})

	return grant, nil
}

// HasPermission reports whether identityID may perform action in the
// module with moduleCode. No grant, or an unknown action, means false.
func (s *Service) HasPermission(ctx context.Context, identityID int64, moduleCode string, action Action) (allowed bool, err error) {
	ctx, span := tracing.StartSpan(ctx, "rbac.HasPermission",
		attribute.String("module", moduleCode),
		attribute.String("action", string(action)),
	)
	defer func() {
		span.SetAttributes(attribute.Bool("allowed", allowed))
		tracing.End(span, err)
	}()

	if _, ok := ParseAction(string(action)); !ok {
		return false, nil
	}

	grant, err := s.grants.GetForModule(ctx, identityID, moduleCode)
	if err != nil {
		if errors.Is(err, ErrGrantNotFound) {
			return false, nil
		}
		return false, apperror.Internal("failed to load grant", err)
	}
	return grant.Allows(action), nil
}

// RolesOf returns the distinct role names across the grants of identityID
// on active modules, sorted.
func (s *Service) RolesOf(ctx context.Context, identityID int64) ([]string, error) {
	grants, err := s.grants.ListByIdentity(ctx, identityID)
	if err != nil {
		return nil, apperror.Internal("failed to list grants", err)
	}

	seen := make(map[string]struct{}, len(grants))
	roles := make([]string, 0, len(grants))
	for _, g := range grants {
		if !g.ModuleActive {
			continue
		}
		if _, ok := seen[g.RoleName]; ok || g.RoleName == "" {
			continue
		}
		seen[g.RoleName] = struct{}{}
		roles = append(roles, g.RoleName)
	}
	sort.Strings(roles)
	return roles, nil
}

// GrantsOf lists the grants of identityID.
func (s *Service) GrantsOf(ctx context.Context, identityID int64) ([]*Grant, error) {
	if _, err := s.identities.GetByID(ctx, identityID); err != nil {
		if errors.Is(err, identity.ErrIdentityNotFound) {
			return nil, identity.ErrIdentityNotFound
		}
		return nil, apperror.Internal("failed to load identity", err)
	}
	grants, err := s.grants.ListByIdentity(ctx, identityID)
	if err != nil {
		return nil, apperror.Internal("failed to list grants", err)
	}
	return grants, nil
}

// CreateModule registers a module. Codes are unique.
func (s *Service) CreateModule(ctx context.Context, actorID int64, code, name, description string) (*Module, error) {
	code, name = strings.TrimSpace(code), strings.TrimSpace(name)
	if code == "" || name == "" {
		return nil, ErrInvalidModule
	}

	m := &Module{Code: code, Name: name, Description: strings.TrimSpace(description), Active: true}
	if err := s.modules.Create(ctx, m); err != nil {
		if errors.Is(err, ErrModuleExists) {
			return nil, ErrModuleExists
		}
		return nil, apperror.Internal("failed to create module", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeModuleCreated,
		ActorID:  actor(actorID),
		Resource: audit.ResourceModule,
		Metadata: map[string]any{audit.AttrModule: code},
	})
	return m, nil
}

func (s *Service) GetModule(ctx context.Context, id int64) (*Module, error) {
	m, err := s.modules.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrModuleNotFound) {
			return nil, ErrModuleNotFound
		}
		return nil, apperror.Internal("failed to load module", err)
	}
	return m, nil
}

func (s *Service) ListModules(ctx context.Context) ([]*Module, error) {
	out, err := s.modules.List(ctx)
	if err != nil {
		return nil, apperror.Internal("failed to list modules", err)
	}
	return out, nil
}

// ModuleUpdate carries the optional fields of a module update.
type ModuleUpdate struct {
	Code        *string
	Name        *string
	Description *string
	Active      *bool
}

func (s *Service) UpdateModule(ctx context.Context, id int64, upd ModuleUpdate) (*Module, error) {
	m, err := s.GetModule(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.Code != nil {
		m.Code = strings.TrimSpace(*upd.Code)
	}
	if upd.Name != nil {
		m.Name = strings.TrimSpace(*upd.Name)
	}
	if upd.Description != nil {
		m.Description = strings.TrimSpace(*upd.Description)
	}
	if upd.Active != nil {
		m.Active = *upd.Active
	}
	if m.Code == "" || m.Name == "" {
		return nil, ErrInvalidModule
	}

	if err := s.modules.Update(ctx, m); err != nil {
		switch {
		case errors.Is(err, ErrModuleExists):
			return nil, ErrModuleExists
		case errors.Is(err, ErrModuleNotFound):
			return nil, ErrModuleNotFound
		}
		return nil, apperror.Internal("failed to update module", err)
	}
	return m, nil
}

// DeleteModule removes a module that no grant references.
func (s *Service) DeleteModule(ctx context.Context, actorID, id int64) error {
	m, err := s.GetModule(ctx, id)
	if err != nil {
		return err
	}
	if err := s.modules.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, ErrModuleInUse):
			return ErrModuleInUse
		case errors.Is(err, ErrModuleNotFound):
			return ErrModuleNotFound
		}
		return apperror.Internal("failed to delete module", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeModuleDeleted,
		ActorID:  actor(actorID),
		Resource: audit.ResourceModule,
		Metadata: map[string]any{audit.AttrModule: m.Code},
	})
	return nil
}

// CreateRole registers a role. Names are unique.
func (s *Service) CreateRole(ctx context.Context, actorID int64, name, description string) (*Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidRole
	}

	r := &Role{Name: name, Description: strings.TrimSpace(description)}
	if err := s.roles.Create(ctx, r); err != nil {
		if errors.Is(err, ErrRoleExists) {
			return nil, ErrRoleExists
		}
		return nil, apperror.Internal("failed to create role", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeRoleCreated,
		ActorID:  actor(actorID),
		Resource: audit.ResourceRole,
		Metadata: map[string]any{audit.AttrRoleID: r.ID, "name": name},
	})
	return r, nil
}

func (s *Service) GetRole(ctx context.Context, id int64) (*Role, error) {
	r, err := s.roles.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrRoleNotFound) {
			return nil, ErrRoleNotFound
		}
		return nil, apperror.Internal("failed to load role", err)
	}
	return r, nil
}

func (s *Service) ListRoles(ctx context.Context) ([]*Role, error) {
	out, err := s.roles.List(ctx)
	if err != nil {
		return nil, apperror.Internal("failed to list roles", err)
	}
	return out, nil
}

// RoleUpdate carries the optional fields of a role update.
type RoleUpdate struct {
	Name        *string
	Description *string
}

func (s *Service) UpdateRole(ctx context.Context, id int64, upd RoleUpdate) (*Role, error) {
	r, err := s.GetRole(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.Name != nil {
		r.Name = strings.TrimSpace(*upd.Name)
	}
	if upd.Description != nil {
		r.Description = strings.TrimSpace(*upd.Description)
	}
	if r.Name == "" {
		return nil, ErrInvalidRole
	}

	if err := s.roles.Update(ctx, r); err != nil {
		switch {
		case errors.Is(err, ErrRoleExists):
			return nil, ErrRoleExists
		case errors.Is(err, ErrRoleNotFound):
			return nil, ErrRoleNotFound
		}
		return nil, apperror.Internal("failed to update role", err)
	}
	return r, nil
}

// DeleteRole removes a role that no grant references.
func (s *Service) DeleteRole(ctx context.Context, actorID, id int64) error {
	r, err := s.GetRole(ctx, id)
	if err != nil {
		return err
	}
	if err := s.roles.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, ErrRoleInUse):
			return ErrRoleInUse
		case errors.Is(err, ErrRoleNotFound):
			return ErrRoleNotFound
		}
		return apperror.Internal("failed to delete role", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeRoleDeleted,
		ActorID:  actor(actorID),
		Resource: audit.ResourceRole,
		Metadata: map[string]any{audit.AttrRoleID: r.ID, "name": r.Name},
	})
	return nil
}

// EnsureModule returns the module with code, creating it when absent.
func (s *Service) EnsureModule(ctx context.Context, code, name string) (*Module, error) {
	m, err := s.modules.GetByCode(ctx, code)
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, ErrModuleNotFound) {
		return nil, apperror.Internal("failed to load module", err)
	}
	m, err = s.CreateModule(ctx, 0, code, name, "")
	if errors.Is(err, ErrModuleExists) {
		return s.modules.GetByCode(ctx, code)
	}
	return m, err
}

// EnsureRole returns the role with name, creating it when absent.
func (s *Service) EnsureRole(ctx context.Context, name, description string) (*Role, error) {
	r, err := s.roles.GetByName(ctx, name)
	if err == nil {
		return r, nil
	}
	if !errors.Is(err, ErrRoleNotFound) {
		return nil, apperror.Internal("failed to load role", err)
	}
	r, err = s.CreateRole(ctx, 0, name, description)
	if errors.Is(err, ErrRoleExists) {
		return s.roles.GetByName(ctx, name)
	}
	return r, err
}

// EnsureAdministrator gives identityID role with full access to the module
// with moduleCode, creating the role and module when absent.
func (s *Service) EnsureAdministrator(ctx context.Context, identityID int64, roleName, moduleCode string) error {
	role, err := s.EnsureRole(ctx, roleName, "System administrator")
	if err != nil {
		return err
	}
	module, err := s.EnsureModule(ctx, moduleCode, moduleCode)
	if err != nil {
		return err
	}
	all := FullAccess()
	_, err = s.Assign(ctx, AssignRequest{
		IdentityID: identityID,
		ModuleID:   module.ID,
		RoleID:     role.ID,
		CanRead:    &all.CanRead,
		CanCreate:  &all.CanCreate,
		CanUpdate:  &all.CanUpdate,
		CanDelete:  &all.CanDelete,
	})
	return err
}

func actor(identityID int64) string {
	if identityID <= 0 {
		return audit.ActorSystemBootstrap
	}
	return strconv.FormatInt(identityID, 10)
}
