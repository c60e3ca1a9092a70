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
)

// searchLimit reads the optional limit query parameter. The catalog clamps it.
func searchLimit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		return 0
	}
	return n
}

// SearchSites searches construction sites
// @Summary Search sites
// @Description Only sites whose status starts with 3, 4, 5 or 7
// @Tags Catalog
// @Produce json
// @Security BearerAuth
// @Param q query string false "Matches code or name"
// @Param limit query int false "Maximum results"
// @Success 200 {array} roster.Site
// @Router /mdo/sites/search [get]
func (h *Handler) SearchSites(w http.ResponseWriter, r *http.Request) {
	sites, err := h.catalog.SearchSites(r.Context(), r.URL.Query().Get("q"), searchLimit(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, sites)
}

// GetSite returns one site
// @Summary Get site
// @Tags Catalog
// @Produce json
// @Security BearerAuth
// @Param code path string true "Site code"
// @Success 200 {object} roster.Site
// @Failure 404 {object} map[string]string
// @Router /mdo/sites/{code} [get]
func (h *Handler) GetSite(w http.ResponseWriter, r *http.Request) {
	site, err := h.catalog.FindSite(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, site)
}

// SearchEquipment searches active equipment
// @Summary Search equipment
// @Tags Catalog
// @Produce json
// @Security BearerAuth
// @Param q query string false "Matches code or designation"
// @Param limit query int false "Maximum results"
// @Success 200 {array} roster.Equipment
// @Router /mdo/equipment/search [get]
func (h *Handler) SearchEquipment(w http.ResponseWriter, r *http.Request) {
	list, err := h.catalog.SearchEquipment(r.Context(), r.URL.Query().Get("q"), searchLimit(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

// GetEquipment returns one equipment item
// @Summary Get equipment
// @Tags Catalog
// @Produce json
// @Security BearerAuth
// @Param code path string true "Equipment code"
// @Success 200 {object} roster.Equipment
// @Failure 404 {object} map[string]string
// @Router /mdo/equipment/{code} [get]
func (h *Handler) GetEquipment(w http.ResponseWriter, r *http.Request) {
	eq, err := h.catalog.FindEquipment(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, eq)
}
