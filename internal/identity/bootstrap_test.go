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
	"testing"

	"github.com/opentrusty/obralog/internal/audit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingProvisioner struct {
	calls []int64
}

func (p *recordingProvisioner) EnsureAdministrator(_ context.Context, identityID int64, role, moduleCode string) error {
	p.calls = append(p.calls, identityID)
	return nil
}

// TestPurpose: Validates idempotent bootstrapping of the system administrator.
// Scope: Unit Test
// Security: Initial privileged account provisioning
// Expected: First run creates SYSTEM/0001 with the configured password and grants it;
// a second run creates nothing, keeps the password and re-ensures the grant.
// Test Case ID: BOOT-01
func TestBootstrapService_Bootstrap(t *testing.T) {
	repo := NewMockRepository()
	hasher := testHasher()
	prov := &recordingProvisioner{}
	svc := NewBootstrapService(repo, hasher, prov, audit.NopLogger{})
	ctx := context.Background()
	cfg := BootstrapConfig{OrganizationKey: "SYSTEM", MemberKey: "0001", Password: "Admin@123", AdminRole: "ADMIN", Module: "HR"}

	admin, err := svc.Bootstrap(ctx, cfg)
	require.NoError(t, err)
	require.NotNil(t, admin)
	ok, err := hasher.Verify("Admin@123", admin.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)

	cfg.Password = "Changed@456"
	again, err := svc.Bootstrap(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, admin.ID, again.ID)
	ok, _ = hasher.Verify("Admin@123", again.PasswordHash)
	assert.True(t, ok, "existing administrator keeps its password")

	assert.Equal(t, []int64{admin.ID, admin.ID}, prov.calls)
	list, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestBootstrapService_SkipsWithoutPassword(t *testing.T) {
	prov := &recordingProvisioner{}
	svc := NewBootstrapService(NewMockRepository(), testHasher(), prov, audit.NopLogger{})

	admin, err := svc.Bootstrap(context.Background(), BootstrapConfig{OrganizationKey: "SYSTEM", MemberKey: "0001"})
	assert.NoError(t, err)
	assert.Nil(t, admin)
	assert.Empty(t, prov.calls)

	_, err = svc.Bootstrap(context.Background(), BootstrapConfig{OrganizationKey: "SYSTEM", MemberKey: "0001", Password: "123"})
	assert.ErrorIs(t, err, ErrWeakPassword)
}

// TestPurpose: Validates the documented default credentials end to end.
// Scope: Unit Test
// Security: Authentication
// Expected: After bootstrap, SYSTEM/0001 with Admin@123 logs in and receives a two-part token pair.
// Test Case ID: BOOT-02
func TestBootstrap_ThenLogin(t *testing.T) {
	f := newFixture(t)
	boot := NewBootstrapService(f.repo, testHasher(), &recordingProvisioner{}, audit.NopLogger{})
	_, err := boot.Bootstrap(context.Background(), BootstrapConfig{OrganizationKey: "SYSTEM", MemberKey: "0001", Password: "Admin@123", AdminRole: "ADMIN", Module: "HR"})
	require.NoError(t, err)

	sess, err := f.svc.Login(context.Background(), "SYSTEM", "0001", "Admin@123")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.AccessToken)
	assert.NotEmpty(t, sess.RefreshToken)
	assert.NotEqual(t, sess.AccessToken, sess.RefreshToken)
}
