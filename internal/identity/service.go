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

package identity

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/opentrusty/obralog/internal/apperror"
	"github.com/opentrusty/obralog/internal/audit"
	"github.com/opentrusty/obralog/internal/observability/logger"
	"github.com/opentrusty/obralog/internal/observability/metrics"
	"github.com/opentrusty/obralog/internal/roster"
	"github.com/opentrusty/obralog/internal/token"
)

// DefaultResetTTL is how long a reset token stays redeemable.
const DefaultResetTTL = time.Hour

// resetRequestedMessage is answered for every well-formed forgot-password
// request on a known identity, whether or not a token was issued.
const resetRequestedMessage = "Password reset instructions have been sent"

// EmployeeDirectory confirms that a key pair belongs to a real employee.
type EmployeeDirectory interface {
	FindEmployee(ctx context.Context, organizationKey, memberKey string) (*roster.Employee, error)
}

// RoleResolver lists the role names an identity holds across its grants.
type RoleResolver interface {
	RolesOf(ctx context.Context, identityID int64) ([]string, error)
}

// Session is the result of a successful login or refresh.
type Session struct {
	AccessToken     string    `json:"accessToken"`
	RefreshToken    string    `json:"refreshToken"`
	IdentityID      int64     `json:"identityId"`
	AccessExpiresAt time.Time `json:"accessExpiresAt"`
}

// ResetTicket is returned by ForgotPassword. ResetToken and ResetLink are
// only populated when plaintext exposure is enabled.
type ResetTicket struct {
	Message    string    `json:"message"`
	ResetToken string    `json:"resetToken,omitempty"`
	ResetLink  string    `json:"resetLink,omitempty"`
	ExpiresAt  time.Time `json:"-"`
}

// Service manages the credential lifecycle
type Service struct {
	repo        Repository
	hasher      *PasswordHasher
	tokens      *token.Service
	auditLogger audit.Logger

	directory EmployeeDirectory
	roles     RoleResolver
	notifier  ResetNotifier

	resetTTL         time.Duration
	resetLinkBase    string
	exposeResetToken bool
	now              func() time.Time

	// dummyHash is verified against when the identity is unknown so both
	// login paths cost one password verification.
	dummyOnce sync.Once
	dummyHash string
}

// Option configures a Service.
type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithResetTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.resetTTL = ttl
		}
	}
}

// WithResetLinkBase sets the prefix the reset token is appended to.
func WithResetLinkBase(base string) Option {
	return func(s *Service) { s.resetLinkBase = base }
}

// WithExposeResetToken returns plaintext reset tokens to the caller.
// Development only.
func WithExposeResetToken(expose bool) Option {
	return func(s *Service) { s.exposeResetToken = expose }
}

func WithNotifier(n ResetNotifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithRoleResolver embeds the identity's role names in issued tokens.
func WithRoleResolver(r RoleResolver) Option {
	return func(s *Service) { s.roles = r }
}

// WithEmployeeDirectory enables the roster check on registration.
func WithEmployeeDirectory(d EmployeeDirectory) Option {
	return func(s *Service) { s.directory = d }
}

// NewService creates a new identity service
func NewService(
	repo Repository,
	hasher *PasswordHasher,
	tokens *token.Service,
	auditLogger audit.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		repo:        repo,
		hasher:      hasher,
		tokens:      tokens,
		auditLogger: auditLogger,
		notifier:    LogNotifier{},
		resetTTL:    DefaultResetTTL,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates an identity for an employee listed in the roster.
func (s *Service) Register(ctx context.Context, organizationKey, memberKey, password string) (*Identity, error) {
	organizationKey, memberKey = strings.TrimSpace(organizationKey), strings.TrimSpace(memberKey)
	if organizationKey == "" || memberKey == "" {
		return nil, ErrMissingKeys
	}
	if len(password) < MinPasswordLength {
		return nil, ErrWeakPassword
	}

	var displayName string
	if s.directory != nil {
		emp, err := s.directory.FindEmployee(ctx, organizationKey, memberKey)
		if err != nil {
			if apperror.KindOf(err) == apperror.KindNotFound {
				return nil, ErrEmployeeNotFound
			}
			return nil, apperror.Internal("failed to check employee roster", err)
		}
		displayName = emp.FullName
	}

	_, err := s.repo.GetByKeys(ctx, organizationKey, memberKey)
	switch {
	case err == nil:
		return nil, ErrIdentityExists
	case !errors.Is(err, ErrIdentityNotFound):
		return nil, apperror.Internal("failed to look up identity", err)
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, apperror.Internal("failed to hash password", err)
	}

	ident := &Identity{
		OrganizationKey: organizationKey,
		MemberKey:       memberKey,
		DisplayName:     displayName,
		PasswordHash:    passwordHash,
		Active:          true,
	}
	if err := s.repo.Create(ctx, ident); err != nil {
		if errors.Is(err, ErrIdentityExists) {
			return nil, ErrIdentityExists
		}
		return nil, apperror.Internal("failed to create identity", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeIdentityRegistered,
		ActorID:  actorID(ident.ID),
		Resource: audit.ResourceIdentity,
		Metadata: map[string]any{
			audit.AttrOrganization: organizationKey,
			audit.AttrMember:       memberKey,
		},
	})

	return ident, nil
}

// Login authenticates by key pair and password and issues a token pair.
// An unknown identity and a wrong password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, organizationKey, memberKey, password string) (*Session, error) {
	organizationKey, memberKey = strings.TrimSpace(organizationKey), strings.TrimSpace(memberKey)
	if organizationKey == "" || memberKey == "" {
		return nil, ErrMissingKeys
	}

	ident, err := s.repo.GetByKeys(ctx, organizationKey, memberKey)
	if err != nil {
		if !errors.Is(err, ErrIdentityNotFound) {
			return nil, apperror.Internal("failed to look up identity", err)
		}
		_, _ = s.hasher.Verify(password, s.placeholderHash())
		s.loginFailed(ctx, "", organizationKey, memberKey, "identity_not_found")
		return nil, errUnknownIdentity
	}

	valid, err := s.hasher.Verify(password, ident.PasswordHash)
	if err != nil {
		slog.ErrorContext(ctx, "stored password hash is unreadable", logger.IdentityID(ident.ID), logger.Error(err))
	}
	if err != nil || !valid {
		s.loginFailed(ctx, actorID(ident.ID), organizationKey, memberKey, "invalid_password")
		return nil, ErrInvalidCredentials
	}

	if !ident.Active {
		s.loginFailed(ctx, actorID(ident.ID), organizationKey, memberKey, "inactive")
		return nil, ErrInvalidCredentials
	}

	if s.hasher.NeedsRehash(ident.PasswordHash) {
		s.upgradeHash(ctx, ident.ID, password)
	}

	session, err := s.issue(ctx, ident)
	if err != nil {
		return nil, err
	}

	metrics.RecordLogin(ctx, true)
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeLoginSuccess,
		ActorID:  actorID(ident.ID),
		Resource: audit.ResourceLogin,
	})

	return session, nil
}

// Refresh rotates the token pair. The presented refresh token must be the
// one whose hash is currently stored; after rotation it never verifies again.
// Two concurrent rotations race on the stored hash and the last write wins.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		s.refreshRejected(ctx, "", refreshFailureReason(err))
		return nil, err
	}

	identityID, err := claims.IdentityID()
	if err != nil {
		s.refreshRejected(ctx, "", "bad_subject")
		return nil, token.ErrInvalidToken
	}

	ident, err := s.repo.GetByID(ctx, identityID)
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			s.refreshRejected(ctx, actorID(identityID), "identity_not_found")
			return nil, token.ErrInvalidToken
		}
		return nil, apperror.Internal("failed to load identity", err)
	}

	if ident.RefreshTokenHash == nil || *ident.RefreshTokenHash == "" {
		s.refreshRejected(ctx, actorID(identityID), "no_active_session")
		return nil, token.ErrInvalidToken
	}
	if !refreshTokenMatches(refreshToken, *ident.RefreshTokenHash) {
		s.refreshRejected(ctx, actorID(identityID), "stale_token")
		return nil, token.ErrInvalidToken
	}
	if !ident.Active {
		s.refreshRejected(ctx, actorID(identityID), "inactive")
		return nil, token.ErrInvalidToken
	}

	session, err := s.issue(ctx, ident)
	if err != nil {
		return nil, err
	}

	metrics.RecordRefresh(ctx, true)
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeTokenRefreshed,
		ActorID:  actorID(ident.ID),
		Resource: audit.ResourceSession,
	})

	return session, nil
}

// Logout clears the stored refresh hash. It is idempotent. Access tokens
// already issued stay valid until they expire.
func (s *Service) Logout(ctx context.Context, identityID int64) error {
	if _, err := s.Get(ctx, identityID); err != nil {
		return err
	}

	if err := s.repo.SetRefreshTokenHash(ctx, identityID, nil); err != nil {
		return apperror.Internal("failed to clear refresh token", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeLogout,
		ActorID:  actorID(identityID),
		Resource: audit.ResourceSession,
	})
	return nil
}

// ForgotPassword issues a single-use reset token when contact matches the
// address the roster holds for the identity. The token goes to the stored
// address only. A mismatch gets the same answer as a match but issues nothing.
func (s *Service) ForgotPassword(ctx context.Context, organizationKey, memberKey, contact string) (*ResetTicket, error) {
	organizationKey, memberKey = strings.TrimSpace(organizationKey), strings.TrimSpace(memberKey)
	if organizationKey == "" || memberKey == "" {
		return nil, ErrMissingKeys
	}
	contact, ok := normalizeContact(contact)
	if !ok {
		return nil, ErrInvalidContact
	}

	ident, err := s.repo.GetByKeys(ctx, organizationKey, memberKey)
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			return nil, ErrIdentityNotFound
		}
		return nil, apperror.Internal("failed to look up identity", err)
	}

	expiresAt := s.now().Add(s.resetTTL)
	ticket := &ResetTicket{Message: resetRequestedMessage, ExpiresAt: expiresAt}

	recipient, err := s.contactOnFile(ctx, organizationKey, memberKey)
	if err != nil {
		return nil, err
	}
	if recipient == "" || !strings.EqualFold(recipient, contact) {
		s.resetRejected(ctx, ident.ID, "contact_mismatch")
		return ticket, nil
	}
	if !ident.Active {
		s.resetRejected(ctx, ident.ID, "inactive")
		return ticket, nil
	}

	raw, err := generateResetToken()
	if err != nil {
		return nil, apperror.Internal("failed to generate reset token", err)
	}
	hash, err := s.hasher.Hash(raw)
	if err != nil {
		return nil, apperror.Internal("failed to hash reset token", err)
	}

	// Deliver before storing: a failed delivery leaves no redeemable hash.
	link := s.resetLinkBase + raw
	if err := s.notifier.SendPasswordReset(ctx, ResetDelivery{
		Contact:         recipient,
		OrganizationKey: organizationKey,
		MemberKey:       memberKey,
		Token:           raw,
		Link:            link,
		ExpiresAt:       expiresAt,
	}); err != nil {
		return nil, apperror.Internal("failed to deliver reset token", err)
	}

	if err := s.repo.SetResetToken(ctx, ident.ID, hash, expiresAt); err != nil {
		return nil, apperror.Internal("failed to store reset token", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypePasswordResetRequested,
		ActorID:  actorID(ident.ID),
		Resource: audit.ResourcePassword,
	})

	if s.exposeResetToken {
		ticket.ResetToken = raw
		ticket.ResetLink = link
	}
	return ticket, nil
}

// contactOnFile returns the roster address of the key pair, or "" when none
// is held.
func (s *Service) contactOnFile(ctx context.Context, organizationKey, memberKey string) (string, error) {
	if s.directory == nil {
		return "", nil
	}
	emp, err := s.directory.FindEmployee(ctx, organizationKey, memberKey)
	if err != nil {
		if apperror.KindOf(err) == apperror.KindNotFound {
			return "", nil
		}
		return "", apperror.Internal("failed to check employee roster", err)
	}
	addr, ok := normalizeContact(emp.Email)
	if !ok {
		return "", nil
	}
	return addr, nil
}

// normalizeContact accepts a bare mail address.
func normalizeContact(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.ContainsAny(raw, "\r\n") {
		return "", false
	}
	addr, err := mail.ParseAddress(raw)
	if err != nil || addr.Address != raw {
		return "", false
	}
	return raw, true
}

// ResetPassword redeems a reset token. On success the password is replaced
// and both the reset token and the refresh token are cleared.
func (s *Service) ResetPassword(ctx context.Context, resetToken, organizationKey, memberKey, newPassword string) error {
	if len(newPassword) < MinPasswordLength {
		return ErrWeakPassword
	}
	organizationKey, memberKey = strings.TrimSpace(organizationKey), strings.TrimSpace(memberKey)
	if organizationKey == "" || memberKey == "" {
		return ErrMissingKeys
	}

	ident, err := s.repo.GetByKeys(ctx, organizationKey, memberKey)
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			return ErrInvalidOrExpiredToken
		}
		return apperror.Internal("failed to look up identity", err)
	}

	if ident.ResetTokenHash == nil || ident.ResetTokenExpiresAt == nil {
		s.resetRejected(ctx, ident.ID, "no_reset_pending")
		return ErrInvalidOrExpiredToken
	}
	if !s.now().Before(*ident.ResetTokenExpiresAt) {
		s.resetRejected(ctx, ident.ID, "expired")
		return ErrInvalidOrExpiredToken
	}
	valid, err := s.hasher.Verify(resetToken, *ident.ResetTokenHash)
	if err != nil || !valid {
		s.resetRejected(ctx, ident.ID, "token_mismatch")
		return ErrInvalidOrExpiredToken
	}

	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return apperror.Internal("failed to hash password", err)
	}

	if err := s.repo.CompletePasswordReset(ctx, ident.ID, *ident.ResetTokenHash, passwordHash); err != nil {
		if errors.Is(err, ErrInvalidOrExpiredToken) {
			s.resetRejected(ctx, ident.ID, "already_consumed")
			return ErrInvalidOrExpiredToken
		}
		return apperror.Internal("failed to complete password reset", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypePasswordResetCompleted,
		ActorID:  actorID(ident.ID),
		Resource: audit.ResourcePassword,
	})
	return nil
}

// Get retrieves an identity by ID
func (s *Service) Get(ctx context.Context, identityID int64) (*Identity, error) {
	ident, err := s.repo.GetByID(ctx, identityID)
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			return nil, ErrIdentityNotFound
		}
		return nil, apperror.Internal("failed to load identity", err)
	}
	return ident, nil
}

// List returns every identity
func (s *Service) List(ctx context.Context) ([]*Identity, error) {
	out, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperror.Internal("failed to list identities", err)
	}
	return out, nil
}

func (s *Service) issue(ctx context.Context, ident *Identity) (*Session, error) {
	var roles []string
	if s.roles != nil {
		var err error
		if roles, err = s.roles.RolesOf(ctx, ident.ID); err != nil {
			return nil, apperror.Internal("failed to resolve roles", err)
		}
	}

	pair, err := s.tokens.IssuePair(token.Subject{
		IdentityID:      ident.ID,
		OrganizationKey: ident.OrganizationKey,
		MemberKey:       ident.MemberKey,
		Roles:           roles,
	})
	if err != nil {
		return nil, apperror.Internal("failed to issue tokens", err)
	}

	hash := hashRefreshToken(pair.RefreshToken)
	if err := s.repo.SetRefreshTokenHash(ctx, ident.ID, &hash); err != nil {
		return nil, apperror.Internal("failed to store refresh token", err)
	}

	return &Session{
		AccessToken:     pair.AccessToken,
		RefreshToken:    pair.RefreshToken,
		IdentityID:      ident.ID,
		AccessExpiresAt: pair.AccessExpiresAt,
	}, nil
}

func (s *Service) upgradeHash(ctx context.Context, identityID int64, password string) {
	upgraded, err := s.hasher.Hash(password)
	if err == nil {
		err = s.repo.UpdatePasswordHash(ctx, identityID, upgraded)
	}
	if err != nil {
		slog.WarnContext(ctx, "failed to upgrade password hash", logger.IdentityID(identityID), logger.Error(err))
	}
}

func (s *Service) loginFailed(ctx context.Context, actor, organizationKey, memberKey, reason string) {
	metrics.RecordLogin(ctx, false)
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeLoginFailed,
		ActorID:  actor,
		Resource: audit.ResourceLogin,
		Metadata: map[string]any{
			audit.AttrReason:       reason,
			audit.AttrOrganization: organizationKey,
			audit.AttrMember:       memberKey,
		},
	})
}

func (s *Service) refreshRejected(ctx context.Context, actor, reason string) {
	metrics.RecordRefresh(ctx, false)
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeRefreshRejected,
		ActorID:  actor,
		Resource: audit.ResourceSession,
		Metadata: map[string]any{audit.AttrReason: reason},
	})
}

func (s *Service) resetRejected(ctx context.Context, identityID int64, reason string) {
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypePasswordResetRejected,
		ActorID:  actorID(identityID),
		Resource: audit.ResourcePassword,
		Metadata: map[string]any{audit.AttrReason: reason},
	})
}

func refreshFailureReason(err error) string {
	if errors.Is(err, token.ErrTokenExpired) {
		return "expired"
	}
	return "invalid"
}

// hashRefreshToken returns the hex SHA-256 of a refresh token.
func hashRefreshToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func refreshTokenMatches(raw, storedHash string) bool {
	return subtle.ConstantTimeCompare([]byte(hashRefreshToken(raw)), []byte(storedHash)) == 1
}

// placeholderHash is a well-formed hash of a random secret, built on first use.
func (s *Service) placeholderHash() string {
	s.dummyOnce.Do(func() {
		secret, err := generateResetToken()
		if err == nil {
			s.dummyHash, err = s.hasher.Hash(secret)
		}
		if err != nil {
			slog.Warn("failed to build placeholder password hash", logger.Error(err))
		}
	})
	return s.dummyHash
}

func generateResetToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func actorID(identityID int64) string {
	if identityID <= 0 {
		return ""
	}
	return strconv.FormatInt(identityID, 10)
}
