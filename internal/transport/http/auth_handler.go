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

	"github.com/opentrusty/obralog/internal/guard"
	"github.com/opentrusty/obralog/internal/token"
)

// RegisterRequest represents registration data
type RegisterRequest struct {
	OrganizationKey string `json:"organizationKey" example:"ACME"`
	MemberKey       string `json:"memberKey" example:"0042"`
	Password        string `json:"password" example:"secret123"`
}

// LoginRequest represents login credentials
type LoginRequest struct {
	OrganizationKey string `json:"organizationKey" example:"SYSTEM"`
	MemberKey       string `json:"memberKey" example:"0001"`
	Password        string `json:"password" example:"Admin@123"`
}

// RefreshRequest carries the refresh half of a token pair.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// ForgotPasswordRequest starts a password reset.
type ForgotPasswordRequest struct {
	OrganizationKey string `json:"organizationKey"`
	MemberKey       string `json:"memberKey"`
	Contact         string `json:"contact" example:"ana@example.com"`
}

// ResetPasswordRequest completes a password reset.
type ResetPasswordRequest struct {
	ResetToken      string `json:"resetToken"`
	OrganizationKey string `json:"organizationKey"`
	MemberKey       string `json:"memberKey"`
	NewPassword     string `json:"newPassword"`
}

// MeResponse describes the caller as the access token sees them.
type MeResponse struct {
	IdentityID      int64         `json:"identityId"`
	OrganizationKey string        `json:"organizationKey"`
	MemberKey       string        `json:"memberKey"`
	Roles           token.RoleSet `json:"roles"`
}

// Register handles identity registration
// @Summary Register
// @Description Register an identity for an employee listed in the roster
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration Data"
// @Success 201 {object} identity.Public
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /users/register [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	ident, err := h.credentials.Register(r.Context(), req.OrganizationKey, req.MemberKey, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, ident.Public())
}

// Login handles login
// @Summary Login
// @Description Authenticate with organization key, member key and password
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Credentials"
// @Success 200 {object} identity.Session
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	sess, err := h.credentials.Login(r.Context(), req.OrganizationKey, req.MemberKey, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, sess)
}

// Refresh rotates a token pair
// @Summary Refresh
// @Description Exchange a refresh token for a new pair. The old refresh token stops working.
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body RefreshRequest true "Refresh token"
// @Success 200 {object} identity.Session
// @Failure 401 {object} map[string]string
// @Router /auth/refresh [post]
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	sess, err := h.credentials.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, sess)
}

// Logout invalidates the caller's refresh token
// @Summary Logout
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /auth/logout [post]
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	p := PrincipalFrom(r.Context())
	if p == nil {
		writeError(w, r, guard.ErrUnauthenticated)
		return
	}

	if err := h.credentials.Logout(r.Context(), p.IdentityID); err != nil {
		writeError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "Logged out successfully",
	})
}

// Me returns the verified token claims
// @Summary Current identity
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} MeResponse
// @Failure 401 {object} map[string]string
// @Router /auth/me [get]
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	p := PrincipalFrom(r.Context())
	if p == nil {
		writeError(w, r, guard.ErrUnauthenticated)
		return
	}

	roles := p.Roles
	if roles == nil {
		roles = token.RoleSet{}
	}
	respondJSON(w, http.StatusOK, MeResponse{
		IdentityID:      p.IdentityID,
		OrganizationKey: p.OrganizationKey,
		MemberKey:       p.MemberKey,
		Roles:           roles,
	})
}

// ForgotPassword issues a reset token
// @Summary Forgot password
// @Description Deliver a single-use reset token to the address on file when contact matches it
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body ForgotPasswordRequest true "Identity"
// @Success 200 {object} identity.ResetTicket
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /auth/forgot-password [post]
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	ticket, err := h.credentials.ForgotPassword(r.Context(), req.OrganizationKey, req.MemberKey, req.Contact)
	if err != nil {
		writeError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, ticket)
}

// ResetPassword consumes a reset token
// @Summary Reset password
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body ResetPasswordRequest true "Reset data"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Router /auth/reset-password [post]
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	err := h.credentials.ResetPassword(r.Context(), req.ResetToken, req.OrganizationKey, req.MemberKey, req.NewPassword)
	if err != nil {
		writeError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "Password has been reset successfully",
	})
}
