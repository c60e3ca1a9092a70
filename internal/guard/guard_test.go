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

package guard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/opentrusty/obralog/internal/apperror"
	"github.com/opentrusty/obralog/internal/audit"
	"github.com/opentrusty/obralog/internal/rbac"
	"github.com/opentrusty/obralog/internal/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type grantKey struct {
	identity int64
	module   string
}

type fakeMatrix struct {
	grants map[grantKey]rbac.Permissions
	roles  map[int64][]string
	err    error
	calls  int
}

func (m *fakeMatrix) HasPermission(_ context.Context, identityID int64, moduleCode string, action rbac.Action) (bool, error) {
	m.calls++
	if m.err != nil {
		return false, m.err
	}
	p, ok := m.grants[grantKey{identityID, moduleCode}]
	return ok && p.Allows(action), nil
}

func (m *fakeMatrix) RolesOf(_ context.Context, identityID int64) ([]string, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.roles[identityID], nil
}

type recordingAudit struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *recordingAudit) Log(_ context.Context, e audit.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func newGuard() (*Guard, *fakeMatrix, *recordingAudit) {
	m := &fakeMatrix{
		grants: map[grantKey]rbac.Permissions{
			{1, rbac.ModuleHR}: {CanRead: true, CanCreate: false},
		},
		roles: map[int64][]string{1: {"viewer"}, 2: {rbac.RoleAdmin}},
	}
	a := &recordingAudit{}
	return New(m, a), m, a
}

// TestPurpose: Validates module-action checks deny when the grant flag is false, regardless of role.
// Scope: Unit Test
// Security: Fail-closed authorization
// Expected: read allowed, create denied with Forbidden and an access_denied audit event.
// Test Case ID: GRD-01
func TestGuard_RequireModule(t *testing.T) {
	g, _, a := newGuard()
	ctx := context.Background()
	p := &Principal{IdentityID: 1, Roles: token.NewRoleSet(rbac.RoleAdmin)}

	assert.NoError(t, g.Evaluate(ctx, p, g.RequireModule(rbac.ModuleHR, rbac.ActionRead)))

	err := g.Evaluate(ctx, p, g.RequireModule(rbac.ModuleHR, rbac.ActionCreate))
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, apperror.KindForbidden, apperror.KindOf(err))

	require.Len(t, a.events, 1)
	assert.Equal(t, audit.TypeAccessDenied, a.events[0].Type)
	assert.Equal(t, "1", a.events[0].ActorID)
	assert.Equal(t, rbac.ModuleHR, a.events[0].Metadata[audit.AttrModule])
}

// TestPurpose: Validates a module denial is logged with the module and action that were refused.
// Scope: Unit Test
// Security: Attributable access-denied logging
// Expected: One "access denied" record carrying identity_id, module and action.
// Test Case ID: GRD-04
func TestGuard_RequireModule_LogsDenial(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	g, _, _ := newGuard()
	p := &Principal{IdentityID: 1}
	require.ErrorIs(t, g.Evaluate(context.Background(), p, g.RequireModule(rbac.ModuleHR, rbac.ActionCreate)), ErrForbidden)

	var rec map[string]any
	require.NoError(t, json.NewDecoder(&buf).Decode(&rec))
	assert.Equal(t, "access denied", rec["msg"])
	assert.Equal(t, "1", rec["identity_id"])
	assert.Equal(t, rbac.ModuleHR, rec["module"])
	assert.Equal(t, string(rbac.ActionCreate), rec["action"])
}

// TestPurpose: Validates role-membership checks use the matrix, not token claims.
// Scope: Unit Test
// Security: Privilege escalation prevention through stale or forged role claims
// Expected: A principal claiming ADMIN without an ADMIN grant is denied; a real ADMIN is allowed.
// Test Case ID: GRD-02
func TestGuard_RequireRoles(t *testing.T) {
	g, _, _ := newGuard()
	ctx := context.Background()

	claimed := &Principal{IdentityID: 1, Roles: token.NewRoleSet(rbac.RoleAdmin)}
	assert.ErrorIs(t, g.Evaluate(ctx, claimed, g.RequireRoles(rbac.RoleAdmin)), ErrForbidden)

	admin := &Principal{IdentityID: 2}
	assert.NoError(t, g.Evaluate(ctx, admin, g.RequireRoles(rbac.RoleAdmin, rbac.RoleSupervisor)))
	assert.NoError(t, g.Evaluate(ctx, claimed, g.RequireRoles()), "no declared roles allows")
}

// TestPurpose: Validates the evaluation order and defaults.
// Scope: Unit Test
// Security: Authentication precedes authorization
// Expected: Nil principal is Unauthenticated without consulting the matrix; no predicates allow;
// the first deny short-circuits; matrix errors deny as Internal.
// Test Case ID: GRD-03
func TestGuard_Evaluate_Order(t *testing.T) {
	g, m, _ := newGuard()
	ctx := context.Background()

	err := g.Evaluate(ctx, nil, g.RequireModule(rbac.ModuleHR, rbac.ActionRead))
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.Equal(t, 0, m.calls)

	p := &Principal{IdentityID: 1}
	assert.NoError(t, g.Evaluate(ctx, p))

	err = g.Evaluate(ctx, p,
		g.RequireModule(rbac.ModuleSiteLog, rbac.ActionRead),
		g.RequireModule(rbac.ModuleHR, rbac.ActionRead),
	)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, 1, m.calls, "second predicate never runs")

	m.err = errors.New("connection reset")
	err = g.Evaluate(ctx, p, g.RequireModule(rbac.ModuleHR, rbac.ActionRead))
	assert.Equal(t, apperror.KindInternal, apperror.KindOf(err))
}

func TestGuard_CustomPredicateKind(t *testing.T) {
	g, _, _ := newGuard()
	deny := Predicate{
		Rule:  "always",
		Kind:  apperror.KindUnauthenticated,
		Check: func(context.Context, *Principal) (bool, error) { return false, nil },
	}
	err := g.Evaluate(context.Background(), &Principal{IdentityID: 1}, deny)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestPrincipalFromClaims(t *testing.T) {
	p, err := PrincipalFromClaims(&token.Claims{
		OrganizationKey:  "SYSTEM",
		MemberKey:        "0001",
		Role:             token.NewRoleSet("ADMIN"),
		RegisteredClaims: jwt.RegisteredClaims{Subject: "42"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), p.IdentityID)
	assert.True(t, p.Roles.Has("ADMIN"))

	_, err = PrincipalFromClaims(&token.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "abc"}})
	assert.Error(t, err)
}
