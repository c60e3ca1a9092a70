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

package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/opentrusty/obralog/internal/apperror"
	"github.com/opentrusty/obralog/internal/identity"
	"github.com/opentrusty/obralog/internal/rbac"
)

// AssignGrantRequest represents a grant assignment. Omitted flags default
// to read-only.
type AssignGrantRequest struct {
	IdentityID int64 `json:"identityId"`
	ModuleID   int64 `json:"moduleId"`
	RoleID     int64 `json:"roleId"`
	CanRead    *bool `json:"canRead,omitempty"`
	CanCreate  *bool `json:"canCreate,omitempty"`
	CanUpdate  *bool `json:"canUpdate,omitempty"`
	CanDelete  *bool `json:"canDelete,omitempty"`
}

// ModuleRequest creates a module.
type ModuleRequest struct {
	Code        string `json:"code" example:"HR"`
	Name        string `json:"name" example:"Human Resources"`
	Description string `json:"description,omitempty"`
}

// ModuleUpdateRequest updates a module. Omitted fields are left unchanged.
type ModuleUpdateRequest struct {
	Code        *string `json:"code,omitempty"`
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Active      *bool   `json:"active,omitempty"`
}

// RoleRequest creates a role.
type RoleRequest struct {
	Name        string `json:"name" example:"ADMIN"`
	Description string `json:"description,omitempty"`
}

// RoleUpdateRequest updates a role. Omitted fields are left unchanged.
type RoleUpdateRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

var errInvalidID = apperror.Validation("invalid id")

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errInvalidID
	}
	return id, nil
}

// callerID is the authenticated identity id, 0 when absent.
func callerID(r *http.Request) int64 {
	if p := PrincipalFrom(r.Context()); p != nil {
		return p.IdentityID
	}
	return 0
}

// ListUsers lists every identity
// @Summary List identities
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Success 200 {array} identity.Public
// @Failure 403 {object} map[string]string
// @Router /users [get]
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	list, err := h.credentials.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]identity.Public, 0, len(list))
	for _, ident := range list {
		out = append(out, ident.Public())
	}
	respondJSON(w, http.StatusOK, out)
}

// ListGrants lists the grants of one identity
// @Summary List grants of an identity
// @Tags Grants
// @Produce json
// @Security BearerAuth
// @Param identityID path int true "Identity ID"
// @Success 200 {array} rbac.Grant
// @Router /users/{identityID}/grants [get]
func (h *Handler) ListGrants(w http.ResponseWriter, r *http.Request) {
	identityID, err := pathID(r, "identityID")
	if err != nil {
		writeError(w, r, err)
		return
	}

	grants, err := h.access.GrantsOf(r.Context(), identityID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, grants)
}

// AssignGrant upserts a grant
// @Summary Assign grant
// @Description Create or replace the grant of an identity in a module
// @Tags Grants
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body AssignGrantRequest true "Grant"
// @Success 200 {object} rbac.Grant
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /grants [post]
func (h *Handler) AssignGrant(w http.ResponseWriter, r *http.Request) {
	var req AssignGrantRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	grant, err := h.access.Assign(r.Context(), rbac.AssignRequest{
		IdentityID: req.IdentityID,
		ModuleID:   req.ModuleID,
		RoleID:     req.RoleID,
		CanRead:    req.CanRead,
		CanCreate:  req.CanCreate,
		CanUpdate:  req.CanUpdate,
		CanDelete:  req.CanDelete,
		GrantedBy:  callerID(r),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, grant)
}

// CreateModule creates a module
// @Summary Create module
// @Tags Modules
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ModuleRequest true "Module"
// @Success 201 {object} rbac.Module
// @Failure 409 {object} map[string]string
// @Router /modules [post]
func (h *Handler) CreateModule(w http.ResponseWriter, r *http.Request) {
	var req ModuleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	m, err := h.access.CreateModule(r.Context(), callerID(r), req.Code, req.Name, req.Description)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, m)
}

// ListModules lists modules
// @Summary List modules
// @Tags Modules
// @Produce json
// @Security BearerAuth
// @Success 200 {array} rbac.Module
// @Router /modules [get]
func (h *Handler) ListModules(w http.ResponseWriter, r *http.Request) {
	list, err := h.access.ListModules(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

// GetModule returns one module
// @Summary Get module
// @Tags Modules
// @Produce json
// @Security BearerAuth
// @Param moduleID path int true "Module ID"
// @Success 200 {object} rbac.Module
// @Failure 404 {object} map[string]string
// @Router /modules/{moduleID} [get]
func (h *Handler) GetModule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "moduleID")
	if err != nil {
		writeError(w, r, err)
		return
	}

	m, err := h.access.GetModule(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, m)
}

// UpdateModule updates a module
// @Summary Update module
// @Tags Modules
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param moduleID path int true "Module ID"
// @Param request body ModuleUpdateRequest true "Changes"
// @Success 200 {object} rbac.Module
// @Router /modules/{moduleID} [put]
func (h *Handler) UpdateModule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "moduleID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req ModuleUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	m, err := h.access.UpdateModule(r.Context(), id, rbac.ModuleUpdate{
		Code:        req.Code,
		Name:        req.Name,
		Description: req.Description,
		Active:      req.Active,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, m)
}

// DeleteModule deletes a module
// @Summary Delete module
// @Description Fails with 409 while grants reference the module
// @Tags Modules
// @Security BearerAuth
// @Param moduleID path int true "Module ID"
// @Success 204
// @Failure 409 {object} map[string]string
// @Router /modules/{moduleID} [delete]
func (h *Handler) DeleteModule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "moduleID")
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.access.DeleteModule(r.Context(), callerID(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateRole creates a role
// @Summary Create role
// @Tags Roles
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body RoleRequest true "Role"
// @Success 201 {object} rbac.Role
// @Failure 403 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /roles [post]
func (h *Handler) CreateRole(w http.ResponseWriter, r *http.Request) {
	var req RoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	role, err := h.access.CreateRole(r.Context(), callerID(r), req.Name, req.Description)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, role)
}

// ListRoles lists roles
// @Summary List roles
// @Tags Roles
// @Produce json
// @Security BearerAuth
// @Success 200 {array} rbac.Role
// @Router /roles [get]
func (h *Handler) ListRoles(w http.ResponseWriter, r *http.Request) {
	list, err := h.access.ListRoles(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

// GetRole returns one role
// @Summary Get role
// @Tags Roles
// @Produce json
// @Security BearerAuth
// @Param roleID path int true "Role ID"
// @Success 200 {object} rbac.Role
// @Router /roles/{roleID} [get]
func (h *Handler) GetRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "roleID")
	if err != nil {
		writeError(w, r, err)
		return
	}

	role, err := h.access.GetRole(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, role)
}

// UpdateRole updates a role
// @Summary Update role
// @Tags Roles
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param roleID path int true "Role ID"
// @Param request body RoleUpdateRequest true "Changes"
// @Success 200 {object} rbac.Role
// @Router /roles/{roleID} [put]
func (h *Handler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "roleID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req RoleUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	role, err := h.access.UpdateRole(r.Context(), id, rbac.RoleUpdate{Name: req.Name, Description: req.Description})
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, role)
}

// DeleteRole deletes a role
// @Summary Delete role
// @Tags Roles
// @Security BearerAuth
// @Param roleID path int true "Role ID"
// @Success 204
// @Failure 409 {object} map[string]string
// @Router /roles/{roleID} [delete]
func (h *Handler) DeleteRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "roleID")
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.access.DeleteRole(r.Context(), callerID(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
