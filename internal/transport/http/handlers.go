// @title Obralog API
// @version 1.0.0
// @description Identity, access control and daily site-log service
// @contact.name OpenTrusty Authors
// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/opentrusty/obralog/internal/apperror"
	"github.com/opentrusty/obralog/internal/guard"
	"github.com/opentrusty/obralog/internal/identity"
	"github.com/opentrusty/obralog/internal/observability/logger"
	"github.com/opentrusty/obralog/internal/rbac"
	"github.com/opentrusty/obralog/internal/roster"
	"github.com/opentrusty/obralog/internal/token"
	"github.com/opentrusty/obralog/internal/worklog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/swaggo/swag"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// maxBodyBytes caps every JSON request body.
const maxBodyBytes = 1 << 20

// Credentials is the credential lifecycle consumed by the auth endpoints.
type Credentials interface {
	Register(ctx context.Context, organizationKey, memberKey, password string) (*identity.Identity, error)
	Login(ctx context.Context, organizationKey, memberKey, password string) (*identity.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*identity.Session, error)
	Logout(ctx context.Context, identityID int64) error
	ForgotPassword(ctx context.Context, organizationKey, memberKey, contact string) (*identity.ResetTicket, error)
	ResetPassword(ctx context.Context, resetToken, organizationKey, memberKey, newPassword string) error
	Get(ctx context.Context, identityID int64) (*identity.Identity, error)
	List(ctx context.Context) ([]*identity.Identity, error)
}

// AccessAdmin is the permission matrix administration surface.
type AccessAdmin interface {
	Assign(ctx context.Context, req rbac.AssignRequest) (*rbac.Grant, error)
	GrantsOf(ctx context.Context, identityID int64) ([]*rbac.Grant, error)
	RolesOf(ctx context.Context, identityID int64) ([]string, error)

	CreateModule(ctx context.Context, actorID int64, code, name, description string) (*rbac.Module, error)
	GetModule(ctx context.Context, id int64) (*rbac.Module, error)
	ListModules(ctx context.Context) ([]*rbac.Module, error)
	UpdateModule(ctx context.Context, id int64, upd rbac.ModuleUpdate) (*rbac.Module, error)
	DeleteModule(ctx context.Context, actorID, id int64) error

	CreateRole(ctx context.Context, actorID int64, name, description string) (*rbac.Role, error)
	GetRole(ctx context.Context, id int64) (*rbac.Role, error)
	ListRoles(ctx context.Context) ([]*rbac.Role, error)
	UpdateRole(ctx context.Context, id int64, upd rbac.RoleUpdate) (*rbac.Role, error)
	DeleteRole(ctx context.Context, actorID, id int64) error
}

// SiteLog is the owned-record surface behind /mdo.
type SiteLog interface {
	CreateHeader(ctx context.Context, a worklog.Actor, in worklog.HeaderInput) (*worklog.Header, error)
	ListHeaders(ctx context.Context, a worklog.Actor, page int) (*worklog.Page, error)
	GetHeader(ctx context.Context, a worklog.Actor, stamp string) (*worklog.Header, error)
	GetSheet(ctx context.Context, a worklog.Actor, stamp string) (*worklog.Sheet, error)
	UpdateHeader(ctx context.Context, a worklog.Actor, stamp string, upd worklog.HeaderUpdate) (*worklog.Header, error)
	DeleteHeader(ctx context.Context, a worklog.Actor, stamp string) error

	CreateDetail(ctx context.Context, a worklog.Actor, in worklog.DetailInput) (*worklog.Detail, error)
	GetDetail(ctx context.Context, a worklog.Actor, stamp string) (*worklog.Detail, error)
	ListDetails(ctx context.Context, a worklog.Actor, headerStamp string) ([]*worklog.Detail, error)
	UpdateDetail(ctx context.Context, a worklog.Actor, stamp string, upd worklog.DetailUpdate) (*worklog.Detail, error)
	DeleteDetail(ctx context.Context, a worklog.Actor, stamp string) error
	ImportFromDate(ctx context.Context, a worklog.Actor, targetStamp, date string) (*worklog.ImportResult, error)
}

// Catalog is the read-only site and equipment lookup.
type Catalog interface {
	FindSite(ctx context.Context, code string) (*roster.Site, error)
	FindEquipment(ctx context.Context, code string) (*roster.Equipment, error)
	SearchSites(ctx context.Context, query string, limit int) ([]roster.Site, error)
	SearchEquipment(ctx context.Context, query string, limit int) ([]roster.Equipment, error)
}

// TokenVerifier verifies bearer access tokens.
type TokenVerifier interface {
	VerifyAccess(raw string) (*token.Claims, error)
}

// Handler holds HTTP handlers and dependencies
type Handler struct {
	credentials Credentials
	access      AccessAdmin
	siteLog     SiteLog
	catalog     Catalog
	tokens      TokenVerifier
	guard       *guard.Guard
	opts        Options
}

// Options tunes routing and protection.
type Options struct {
	// AdminModule is the module code guarding identity and grant administration.
	AdminModule string
	// AdminRole is the role required for role administration.
	AdminRole string
	// RequestTimeout bounds every request; zero means 60s.
	RequestTimeout time.Duration
	// AuthRateLimiter throttles the public auth endpoints; nil disables it.
	AuthRateLimiter *RateLimiter
	// Registry receives the HTTP metrics; nil creates a private registry.
	Registry *prometheus.Registry
	// Version is reported by the health endpoint.
	Version string
}

// NewHandler creates a new HTTP handler
func NewHandler(
	credentials Credentials,
	access AccessAdmin,
	siteLog SiteLog,
	catalog Catalog,
	tokens TokenVerifier,
	g *guard.Guard,
	opts Options,
) *Handler {
	if opts.AdminModule == "" {
		opts.AdminModule = rbac.ModuleHR
	}
	if opts.AdminRole == "" {
		opts.AdminRole = rbac.RoleAdmin
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 60 * time.Second
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}
	return &Handler{
		credentials: credentials,
		access:      access,
		siteLog:     siteLog,
		catalog:     catalog,
		tokens:      tokens,
		guard:       g,
		opts:        opts,
	}
}

// NewRouter creates a new HTTP router
func NewRouter(h *Handler) *chi.Mux {
	httpMetrics := NewHTTPMetrics(h.opts.Registry)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(httpMetrics.Instrument)
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(h.opts.RequestTimeout))

	r.Get("/health", h.HealthCheck)
	r.Get("/openapi.json", h.OpenAPI)
	r.Method(http.MethodGet, "/metrics", httpMetrics.Handler())

	hr := h.opts.AdminModule

	r.Route("/api/v1", func(r chi.Router) {
		// Public
		r.Group(func(r chi.Router) {
			if h.opts.AuthRateLimiter != nil {
				r.Use(RateLimitMiddleware(h.opts.AuthRateLimiter))
			}
			r.Post("/users/register", h.Register)
			r.Post("/auth/login", h.Login)
			r.Post("/auth/refresh", h.Refresh)
			r.Post("/auth/forgot-password", h.ForgotPassword)
			r.Post("/auth/reset-password", h.ResetPassword)
		})

		// Protected
		r.Group(func(r chi.Router) {
			r.Use(h.AuthMiddleware)

			r.Post("/auth/logout", h.Logout)
			r.Get("/auth/me", h.Me)

			r.With(h.require(h.guard.RequireModule(hr, rbac.ActionRead))).Get("/users", h.ListUsers)
			r.With(h.require(h.guard.RequireModule(hr, rbac.ActionRead))).Get("/users/{identityID}/grants", h.ListGrants)
			r.With(h.require(h.guard.RequireModule(hr, rbac.ActionCreate))).Post("/grants", h.AssignGrant)

			r.Route("/modules", func(r chi.Router) {
				r.With(h.require(h.guard.RequireModule(hr, rbac.ActionCreate))).Post("/", h.CreateModule)
				r.With(h.require(h.guard.RequireModule(hr, rbac.ActionRead))).Get("/", h.ListModules)
				r.With(h.require(h.guard.RequireModule(hr, rbac.ActionRead))).Get("/{moduleID}", h.GetModule)
				r.With(h.require(h.guard.RequireModule(hr, rbac.ActionUpdate))).Put("/{moduleID}", h.UpdateModule)
				r.With(h.require(h.guard.RequireModule(hr, rbac.ActionDelete))).Delete("/{moduleID}", h.DeleteModule)
			})

			r.Route("/roles", func(r chi.Router) {
				r.Use(h.require(h.guard.RequireRoles(h.opts.AdminRole)))
				r.Post("/", h.CreateRole)
				r.Get("/", h.ListRoles)
				r.Get("/{roleID}", h.GetRole)
				r.Put("/{roleID}", h.UpdateRole)
				r.Delete("/{roleID}", h.DeleteRole)
			})

			r.Route("/mdo", func(r chi.Router) {
				r.Post("/headers", h.CreateHeader)
				r.Get("/headers", h.ListHeaders)
				r.Get("/headers/{stamp}", h.GetHeader)
				r.Get("/headers/{stamp}/full", h.GetSheet)
				r.Put("/headers/{stamp}", h.UpdateHeader)
				r.Delete("/headers/{stamp}", h.DeleteHeader)

				r.Post("/details", h.CreateDetail)
				r.Get("/details/header/{stamp}", h.ListDetails)
				r.Post("/details/{stamp}/import", h.ImportDetails)
				r.Get("/details/{stamp}", h.GetDetail)
				r.Put("/details/{stamp}", h.UpdateDetail)
				r.Delete("/details/{stamp}", h.DeleteDetail)

				r.Get("/sites/search", h.SearchSites)
				r.Get("/sites/{code}", h.GetSite)
				r.Get("/equipment/search", h.SearchEquipment)
				r.Get("/equipment/{code}", h.GetEquipment)
			})
		})
	})

	return r
}

// HealthCheck returns the health status
// @Summary Health Check
// @Description Checks if the service is up and running
// @Tags System
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "obralog",
		"version": h.opts.Version,
	})
}

// OpenAPI serves the registered API document
// @Summary OpenAPI document
// @Tags System
// @Produce json
// @Success 200 {object} map[string]any
// @Router /openapi.json [get]
func (h *Handler) OpenAPI(w http.ResponseWriter, r *http.Request) {
	doc, err := swag.ReadDoc()
	if err != nil {
		writeError(w, r, apperror.Internal("openapi document unavailable", err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, doc)
}

// decodeJSON reads a single JSON object from the request body.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperror.Validation("request body is required")
		}
		return apperror.Validation("invalid request body")
	}
	return nil
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError writes an error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// statusOf maps the error taxonomy onto HTTP status codes.
func statusOf(kind apperror.Kind) int {
	switch kind {
	case apperror.KindNotFound:
		return http.StatusNotFound
	case apperror.KindUnauthenticated:
		return http.StatusUnauthorized
	case apperror.KindForbidden:
		return http.StatusForbidden
	case apperror.KindConflict:
		return http.StatusConflict
	case apperror.KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeError answers with the status and caller-safe message of err.
// Every authentication failure reads the same.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperror.KindOf(err)
	status := statusOf(kind)

	attrs := []any{
		logger.RequestID(middleware.GetReqID(r.Context())),
		logger.Path(r.URL.Path),
		logger.ErrorKind(string(kind)),
		logger.Error(err),
	}
	switch kind {
	case apperror.KindUnauthenticated:
		slog.DebugContext(r.Context(), "request rejected", attrs...)
		respondError(w, status, "unauthorized")
		return
	case apperror.KindInternal:
		slog.ErrorContext(r.Context(), "request failed", attrs...)
	default:
		slog.DebugContext(r.Context(), "request rejected", attrs...)
	}
	respondError(w, status, apperror.MessageOf(err))
}
