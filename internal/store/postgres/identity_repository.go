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
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/opentrusty/obralog/internal/identity"
)

const identityColumns = `
	id, organization_key, member_key, display_name, password_hash,
	refresh_token_hash, reset_token_hash, reset_token_expires_at,
	active, created_at, updated_at`

// IdentityRepository implements identity.Repository
type IdentityRepository struct {
	db *DB
}

// NewIdentityRepository creates a new identity repository
func NewIdentityRepository(db *DB) *IdentityRepository {
	return &IdentityRepository{db: db}
}

func scanIdentity(row pgx.Row) (*identity.Identity, error) {
	var i identity.Identity
	err := row.Scan(
		&i.ID, &i.OrganizationKey, &i.MemberKey, &i.DisplayName, &i.PasswordHash,
		&i.RefreshTokenHash, &i.ResetTokenHash, &i.ResetTokenExpiresAt,
		&i.Active, &i.CreatedAt, &i.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &i, nil
}

// Create inserts a new identity
func (r *IdentityRepository) Create(ctx context.Context, i *identity.Identity) error {
	now := time.Now()
	err := r.db.pool.QueryRow(ctx, `
		INSERT INTO identities (
			organization_key, member_key, display_name, password_hash,
			active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING id
	`, i.OrganizationKey, i.MemberKey, i.DisplayName, i.PasswordHash, i.Active, now).Scan(&i.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return identity.ErrIdentityExists
		}
		return fmt.Errorf("failed to insert identity: %w", err)
	}

	i.CreatedAt = now
	i.UpdatedAt = now
	return nil
}

// GetByID retrieves an identity by ID
func (r *IdentityRepository) GetByID(ctx context.Context, id int64) (*identity.Identity, error) {
	i, err := scanIdentity(r.db.pool.QueryRow(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, identity.ErrIdentityNotFound
		}
		return nil, fmt.Errorf("failed to get identity: %w", err)
	}
	return i, nil
}

// GetByKeys retrieves an identity by its key pair
func (r *IdentityRepository) GetByKeys(ctx context.Context, organizationKey, memberKey string) (*identity.Identity, error) {
	i, err := scanIdentity(r.db.pool.QueryRow(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE organization_key = $1 AND member_key = $2`,
		organizationKey, memberKey))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, identity.ErrIdentityNotFound
		}
		return nil, fmt.Errorf("failed to get identity: %w", err)
	}
	return i, nil
}

// List returns all identities ordered by ID
func (r *IdentityRepository) List(ctx context.Context) ([]*identity.Identity, error) {
	rows, err := r.db.pool.Query(ctx, `SELECT `+identityColumns+` FROM identities ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list identities: %w", err)
	}
	defer rows.Close()

	var out []*identity.Identity
	for rows.Next() {
		i, err := scanIdentity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan identity: %w", err)
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

// SetRefreshTokenHash overwrites or clears the stored refresh hash
func (r *IdentityRepository) SetRefreshTokenHash(ctx context.Context, id int64, hash *string) error {
	return r.exec(ctx, "set refresh token", `
		UPDATE identities SET refresh_token_hash = $2, updated_at = NOW() WHERE id = $1
	`, id, hash)
}

// SetResetToken stores a reset hash and its expiry
func (r *IdentityRepository) SetResetToken(ctx context.Context, id int64, hash string, expiresAt time.Time) error {
	return r.exec(ctx, "set reset token", `
		UPDATE identities
		SET reset_token_hash = $2, reset_token_expires_at = $3, updated_at = NOW()
		WHERE id = $1
	`, id, hash, expiresAt)
}

// CompletePasswordReset consumes the reset token. The row only changes while
// the stored reset hash still equals expectedResetHash, so concurrent resets
// with one token succeed at most once.
func (r *IdentityRepository) CompletePasswordReset(ctx context.Context, id int64, expectedResetHash, passwordHash string) error {
	tag, err := r.db.pool.Exec(ctx, `
		UPDATE identities
		SET password_hash = $3,
			reset_token_hash = NULL,
			reset_token_expires_at = NULL,
			refresh_token_hash = NULL,
			updated_at = NOW()
		WHERE id = $1 AND reset_token_hash = $2
	`, id, expectedResetHash, passwordHash)
	if err != nil {
		return fmt.Errorf("failed to complete password reset: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return identity.ErrInvalidOrExpiredToken
	}
	return nil
}

// UpdatePasswordHash replaces the password hash
func (r *IdentityRepository) UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error {
	return r.exec(ctx, "update password hash", `
		UPDATE identities SET password_hash = $2, updated_at = NOW() WHERE id = $1
	`, id, passwordHash)
}

func (r *IdentityRepository) exec(ctx context.Context, op, query string, args ...any) error {
	tag, err := r.db.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return identity.ErrIdentityNotFound
	}
	return nil
}
