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
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/opentrusty/obralog/internal/apperror"
	"github.com/opentrusty/obralog/internal/guard"
	"github.com/opentrusty/obralog/internal/identity"
	"github.com/opentrusty/obralog/internal/observability/logger"
	"github.com/opentrusty/obralog/internal/token"
	"github.com/opentrusty/obralog/internal/worklog"
)

// ImportRequest names the date whose rows are copied.
type ImportRequest struct {
	Date string `json:"date" example:"2026-03-09"`
}

// actor builds the worklog caller. Roles come from the permission matrix and
// the display name from the stored identity, never from token claims.
func (h *Handler) actor(r *http.Request) (worklog.Actor, error) {
	p := PrincipalFrom(r.Context())
	if p == nil {
		return worklog.Actor{}, guard.ErrUnauthenticated
	}

	roles, err := h.access.RolesOf(r.Context(), p.IdentityID)
	if err != nil {
		return worklog.Actor{}, err
	}

	a := worklog.Actor{
		IdentityID:      p.IdentityID,
		OrganizationKey: p.OrganizationKey,
		MemberKey:       p.MemberKey,
		Roles:           token.NewRoleSet(roles...),
	}

	ident, err := h.credentials.Get(r.Context(), p.IdentityID)
	switch {
	case err == nil:
		a.DisplayName = ident.DisplayName
	case errors.Is(err, identity.ErrIdentityNotFound):
		// Token outlived its identity.
		return worklog.Actor{}, guard.ErrUnauthenticated
	default:
		slog.WarnContext(r.Context(), "display name unavailable", logger.IdentityID(p.IdentityID), logger.Error(err))
	}
	return a, nil
}

// withActor resolves the actor or answers the error.
func (h *Handler) withActor(w http.ResponseWriter, r *http.Request) (worklog.Actor, bool) {
	a, err := h.actor(r)
	if err != nil {
		writeError(w, r, err)
		return worklog.Actor{}, false
	}
	return a, true
}

// CreateHeader creates a site-log header
// @Summary Create header
// @Description Owner is the caller; the site must exist in the catalog
// @Tags SiteLog
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body worklog.HeaderInput true "Header"
// @Success 201 {object} worklog.Header
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /mdo/headers [post]
func (h *Handler) CreateHeader(w http.ResponseWriter, r *http.Request) {
	a, ok := h.withActor(w, r)
	if !ok {
		return
	}
	var in worklog.HeaderInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	hdr, err := h.siteLog.CreateHeader(r.Context(), a, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, hdr)
}

// ListHeaders pages the caller's headers
// @Summary List headers
// @Description Ten per page, newest first. Supervisors see every header.
// @Tags SiteLog
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page (1-based)"
// @Success 200 {object} worklog.Page
// @Router /mdo/headers [get]
func (h *Handler) ListHeaders(w http.ResponseWriter, r *http.Request) {
	a, ok := h.withActor(w, r)
	if !ok {
		return
	}
	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, r, apperror.Validation("page must be a positive integer"))
			return
		}
		page = n
	}

	result, err := h.siteLog.ListHeaders(r.Context(), a, page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// GetHeader returns a header
// @Summary Get header
// @Tags SiteLog
// @Produce json
// @Security BearerAuth
// @Param stamp path string true "Header stamp"
// @Success 200 {object} worklog.Header
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /mdo/headers/{stamp} [get]
func (h *Handler) GetHeader(w http.ResponseWriter, r *http.Request) {
	a, ok := h.withActor(w, r)
	if !ok {
		return
	}

	hdr, err := h.siteLog.GetHeader(r.Context(), a, chi.URLParam(r, "stamp"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, hdr)
}

// GetSheet returns a header with its details
// @Summary Get full header
// @Tags SiteLog
// @Produce json
// @Security BearerAuth
// @Param stamp path string true "Header stamp"
// @Success 200 {object} worklog.Sheet
// @Router /mdo/headers/{stamp}/full [get]
func (h *Handler) GetSheet(w http.ResponseWriter, r *http.Request) {
	a, ok := h.withActor(w, r)
	if !ok {
		return
	}

	sheet, err := h.siteLog.GetSheet(r.Context(), a, chi.URLParam(r, "stamp"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, sheet)
}

// UpdateHeader updates a header
// @Summary Update header
// @Description Owner only, on the creation day. Supervisors are exempt.
// @Tags SiteLog
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param stamp path string true "Header stamp"
// @Param request body worklog.HeaderUpdate true "Changes"
// @Success 200 {object} worklog.Header
// @Failure 403 {object} map[string]string
// @Router /mdo/headers/{stamp} [put]
func (h *Handler) UpdateHeader(w http.ResponseWriter, r *http.Request) {
	a, ok := h.withActor(w, r)
	if !ok {
		return
	}
	var upd worklog.HeaderUpdate
	if err := decodeJSON(w, r, &upd); err != nil {
		writeError(w, r, err)
		return
	}

	hdr, err := h.siteLog.UpdateHeader(r.Context(), a, chi.URLParam(r, "stamp"), upd)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, hdr)
}

// DeleteHeader deletes a header and its details
// @Summary Delete header
// @Tags SiteLog
// @Security BearerAuth
// @Param stamp path string true "Header stamp"
// @Success 204
// @Failure 403 {object} map[string]string
// @Router /mdo/headers/{stamp} [delete]
func (h *Handler) DeleteHeader(w http.ResponseWriter, r *http.Request) {
	a, ok := h.withActor(w, r)
	if !ok {
		return
	}

	if err := h.siteLog.DeleteHeader(r.Context(), a, chi.URLParam(r, "stamp")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateDetail adds a labor or equipment row
// @Summary Create detail
// @Description Exactly one of company+employee or equipment code is required
// @Tags SiteLog
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body worklog.DetailInput true "Detail"
// @Success 201 {object} worklog.Detail
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /mdo/details [post]
func (h *Handler) CreateDetail(w http.ResponseWriter, r *http.Request) {
	a, ok := h.withActor(w, r)
	if !ok {
		return
	}
	var in worklog.DetailInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	d, err := h.siteLog.CreateDetail(r.Context(), a, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, d)
}

// ListDetails lists the rows of a header
// @Summary List details of header
// @Tags SiteLog
// @Produce json
// @Security BearerAuth
// @Param stamp path string true "Header stamp"
// @Success 200 {array} worklog.Detail
// @Router /mdo/details/header/{stamp} [get]
func (h *Handler) ListDetails(w http.ResponseWriter, r *http.Request) {
	a, ok := h.withActor(w, r)
	if !ok {
		return
	}

	list, err := h.siteLog.ListDetails(r.Context(), a, chi.URLParam(r, "stamp"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

// ImportDetails copies rows from a previous date
// @Summary Import details from date
// @Description Copies the caller's rows of that date into the header, hours reset to zero
// @Tags SiteLog
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param stamp path string true "Target header stamp"
// @Param request body ImportRequest true "Source date"
// @Success 201 {object} worklog.ImportResult
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /mdo/details/{stamp}/import [post]
func (h *Handler) ImportDetails(w http.ResponseWriter, r *http.Request) {
	a, ok := h.withActor(w, r)
	if !ok {
		return
	}
	var req ImportRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.siteLog.ImportFromDate(r.Context(), a, chi.URLParam(r, "stamp"), req.Date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, result)
}

// GetDetail returns a row
// @Summary Get detail
// @Tags SiteLog
// @Produce json
// @Security BearerAuth
// @Param stamp path string true "Detail stamp"
// @Success 200 {object} worklog.Detail
// @Router /mdo/details/{stamp} [get]
func (h *Handler) GetDetail(w http.ResponseWriter, r *http.Request) {
	a, ok := h.withActor(w, r)
	if !ok {
		return
	}

	d, err := h.siteLog.GetDetail(r.Context(), a, chi.URLParam(r, "stamp"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}

// UpdateDetail updates a row
// @Summary Update detail
// @Tags SiteLog
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param stamp path string true "Detail stamp"
// @Param request body worklog.DetailUpdate true "Changes"
// @Success 200 {object} worklog.Detail
// @Router /mdo/details/{stamp} [put]
func (h *Handler) UpdateDetail(w http.ResponseWriter, r *http.Request) {
	a, ok := h.withActor(w, r)
	if !ok {
		return
	}
	var upd worklog.DetailUpdate
	if err := decodeJSON(w, r, &upd); err != nil {
		writeError(w, r, err)
		return
	}

	d, err := h.siteLog.UpdateDetail(r.Context(), a, chi.URLParam(r, "stamp"), upd)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}

// DeleteDetail deletes a row
// @Summary Delete detail
// @Tags SiteLog
// @Security BearerAuth
// @Param stamp path string true "Detail stamp"
// @Success 204
// @Router /mdo/details/{stamp} [delete]
func (h *Handler) DeleteDetail(w http.ResponseWriter, r *http.Request) {
	a, ok := h.withActor(w, r)
	if !ok {
		return
	}

	if err := h.siteLog.DeleteDetail(r.Context(), a, chi.URLParam(r, "stamp")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
