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
	"errors"
	"fmt"
	"log/slog"

	"github.com/opentrusty/obralog/internal/audit"
	"github.com/opentrusty/obralog/internal/observability/logger"
)

// Provisioner grants the bootstrap administrator its permissions.
type Provisioner interface {
	// EnsureAdministrator idempotently gives identityID role with full
	// access to the module with moduleCode.
	EnsureAdministrator(ctx context.Context, identityID int64, role, moduleCode string) error
}

// BootstrapConfig names the initial administrator.
type BootstrapConfig struct {
	OrganizationKey string
	MemberKey       string
	Password        string
	AdminRole       string
	Module          string
}

// BootstrapService manages the initial initialization of the system
type BootstrapService struct {
	repo        Repository
	hasher      *PasswordHasher
	provisioner Provisioner
	auditLogger audit.Logger
}

// NewBootstrapService creates a new bootstrap service
func NewBootstrapService(
	repo Repository,
	hasher *PasswordHasher,
	provisioner Provisioner,
	auditLogger audit.Logger,
) *BootstrapService {
	return &BootstrapService{
		repo:        repo,
		hasher:      hasher,
		provisioner: provisioner,
		auditLogger: auditLogger,
	}
}

// Bootstrap creates the administrator identity when absent and ensures its
// grant. An empty password skips bootstrapping. An existing administrator
// keeps its password. The administrator is not required to be in the roster.
func (s *BootstrapService) Bootstrap(ctx context.Context, cfg BootstrapConfig) (*Identity, error) {
	if cfg.Password == "" {
		slog.InfoContext(ctx, "bootstrap skipped: no administrator password configured")
		return nil, nil
	}
	if cfg.OrganizationKey == "" || cfg.MemberKey == "" {
		return nil, ErrMissingKeys
	}
	if len(cfg.Password) < MinPasswordLength {
		return nil, ErrWeakPassword
	}

	admin, err := s.repo.GetByKeys(ctx, cfg.OrganizationKey, cfg.MemberKey)
	created := false
	switch {
	case errors.Is(err, ErrIdentityNotFound):
		hash, err := s.hasher.Hash(cfg.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash bootstrap password: %w", err)
		}
		admin = &Identity{
			OrganizationKey: cfg.OrganizationKey,
			MemberKey:       cfg.MemberKey,
			DisplayName:     "System Administrator",
			PasswordHash:    hash,
			Active:          true,
		}
		if err := s.repo.Create(ctx, admin); err != nil {
			return nil, fmt.Errorf("failed to create bootstrap administrator: %w", err)
		}
		created = true
	case err != nil:
		return nil, fmt.Errorf("failed to look up bootstrap administrator: %w", err)
	}

	if err := s.provisioner.EnsureAdministrator(ctx, admin.ID, cfg.AdminRole, cfg.Module); err != nil {
		return nil, fmt.Errorf("failed to grant bootstrap administrator: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeSystemBootstrapped,
		ActorID:  audit.ActorSystemBootstrap,
		Resource: audit.ResourceIdentity,
		Metadata: map[string]any{
			audit.AttrIdentityID:   admin.ID,
			audit.AttrOrganization: cfg.OrganizationKey,
			audit.AttrMember:       cfg.MemberKey,
			audit.AttrModule:       cfg.Module,
			"created":              created,
		},
	})
	slog.InfoContext(ctx, "bootstrap administrator ready",
		logger.IdentityID(admin.ID),
		logger.OrganizationKey(cfg.OrganizationKey),
		logger.MemberKey(cfg.MemberKey),
		slog.Bool("created", created),
	)
	return admin, nil
}
