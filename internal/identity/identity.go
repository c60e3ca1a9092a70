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
	"time"

	"github.com/opentrusty/obralog/internal/apperror"
)

// Domain errors
var (
	ErrIdentityNotFound      = apperror.New(apperror.KindNotFound, "identity not found")
	ErrIdentityExists        = apperror.New(apperror.KindConflict, "user already registered")
	ErrInvalidCredentials    = apperror.New(apperror.KindUnauthenticated, "invalid credentials")
	ErrInvalidOrExpiredToken = apperror.New(apperror.KindValidation, "invalid or expired reset token")
	ErrWeakPassword          = apperror.New(apperror.KindValidation, "password must be at least 6 characters")
	ErrMissingKeys           = apperror.New(apperror.KindValidation, "organizationKey and memberKey are required")
	ErrEmployeeNotFound      = apperror.New(apperror.KindNotFound, "employee not found in company records")
	ErrInvalidContact        = apperror.New(apperror.KindValidation, "a valid contact address is required")

	// errUnknownIdentity is what Login reports for an absent identity: it
	// matches ErrIdentityNotFound with errors.Is but is classified, and
	// rendered, exactly like a wrong password.
	errUnknownIdentity = apperror.Wrap(apperror.KindUnauthenticated, "invalid credentials", ErrIdentityNotFound)
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 6

// Identity is an authenticated principal keyed by (OrganizationKey, MemberKey).
type Identity struct {
	ID              int64
	OrganizationKey string
	MemberKey       string
	// DisplayName is the roster full name captured at registration.
	DisplayName     string
	PasswordHash    string

	// At most one refresh token is valid at a time: the one hashed here.
	RefreshTokenHash *string

	ResetTokenHash      *string
	ResetTokenExpiresAt *time.Time

	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Public is the identity without credential material.
type Public struct {
	ID              int64     `json:"id"`
	OrganizationKey string    `json:"organizationKey"`
	MemberKey       string    `json:"memberKey"`
	DisplayName     string    `json:"displayName,omitempty"`
	Active          bool      `json:"active"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Public strips every hash.
func (i *Identity) Public() Public {
	return Public{
		ID:              i.ID,
		OrganizationKey: i.OrganizationKey,
		MemberKey:       i.MemberKey,
		DisplayName:     i.DisplayName,
		Active:          i.Active,
		CreatedAt:       i.CreatedAt,
	}
}

// Repository defines the interface for identity persistence
type Repository interface {
	// Create inserts a new identity and sets its ID and CreatedAt.
	// Returns ErrIdentityExists when the key pair is taken.
	Create(ctx context.Context, identity *Identity) error

	// GetByID retrieves an identity by ID
	GetByID(ctx context.Context, id int64) (*Identity, error)

	// GetByKeys retrieves an identity by its organization and member keys
	GetByKeys(ctx context.Context, organizationKey, memberKey string) (*Identity, error)

	// List returns all identities ordered by ID
	List(ctx context.Context) ([]*Identity, error)

	// SetRefreshTokenHash overwrites (or clears, with nil) the stored refresh hash
	SetRefreshTokenHash(ctx context.Context, id int64, hash *string) error

	// SetResetToken overwrites the stored reset hash and its expiry
	SetResetToken(ctx context.Context, id int64, hash string, expiresAt time.Time) error

	// CompletePasswordReset replaces the password hash and clears reset and
	// refresh hashes, but only while the stored reset hash still equals
	// expectedResetHash. Returns ErrInvalidOrExpiredToken otherwise.
	CompletePasswordReset(ctx context.Context, id int64, expectedResetHash, passwordHash string) error

	// UpdatePasswordHash replaces the password hash
	UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error
}
