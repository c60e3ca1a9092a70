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

// Package guard is the request-time access gate.
//
// A protected operation declares an ordered list of predicates. Evaluate
// runs them in order against the verified principal and stops at the first
// deny. An empty list allows: operations are opt-in to permission checking.
package guard

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/opentrusty/obralog/internal/apperror"
	"github.com/opentrusty/obralog/internal/audit"
	"github.com/opentrusty/obralog/internal/observability/logger"
	"github.com/opentrusty/obralog/internal/observability/metrics"
	"github.com/opentrusty/obralog/internal/rbac"
	"github.com/opentrusty/obralog/internal/token"
)

// Domain errors
var (
	ErrUnauthenticated = apperror.New(apperror.KindUnauthenticated, "unauthorized")
	ErrForbidden       = apperror.New(apperror.KindForbidden, "access denied")
)

// Principal is the identity resolved from a verified access token.
type Principal struct {
	IdentityID      int64
	OrganizationKey string
	MemberKey       string
	// Roles are the role claims of the token. They are informational only;
	// role checks always consult the permission matrix.
	Roles token.RoleSet
}

// PrincipalFromClaims builds a principal from verified access token claims.
func PrincipalFromClaims(c *token.Claims) (*Principal, error) {
	id, err := c.IdentityID()
	if err != nil {
		return nil, err
	}
	return &Principal{
		IdentityID:      id,
		OrganizationKey: c.OrganizationKey,
		MemberKey:       c.MemberKey,
		Roles:           c.Role,
	}, nil
}

// Matrix answers the permission questions the guard asks.
type Matrix interface {
	HasPermission(ctx context.Context, identityID int64, moduleCode string, action rbac.Action) (bool, error)
	RolesOf(ctx context.Context, identityID int64) ([]string, error)
}

// Predicate is one access rule. Kind is the error kind produced on deny.
type Predicate struct {
	Rule  string
	Kind  apperror.Kind
	Check func(ctx context.Context, p *Principal) (bool, error)
	attrs map[string]any

	// module and action are set by RequireModule.
	module string
	action rbac.Action
}

// Guard evaluates predicates against the permission matrix.
type Guard struct {
	matrix      Matrix
	auditLogger audit.Logger
}

// New creates a guard.
func New(matrix Matrix, auditLogger audit.Logger) *Guard {
	return &Guard{matrix: matrix, auditLogger: auditLogger}
}

// RequireModule allows the principal when its grant in moduleCode carries action.
func (g *Guard) RequireModule(moduleCode string, action rbac.Action) Predicate {
	return Predicate{
		Rule: "module:" + moduleCode + ":" + string(action),
		Kind: apperror.KindForbidden,
		Check: func(ctx context.Context, p *Principal) (bool, error) {
			return g.matrix.HasPermission(ctx, p.IdentityID, moduleCode, action)
		},
		attrs:  map[string]any{audit.AttrModule: moduleCode, audit.AttrAction: string(action)},
		module: moduleCode,
		action: action,
	}
}

// RequireRoles allows the principal when any of its roles is in roles.
// With no roles declared every principal is allowed.
func (g *Guard) RequireRoles(roles ...string) Predicate {
	want := token.NewRoleSet(roles...)
	return Predicate{
		Rule: "roles:" + strings.Join(want, ","),
		Kind: apperror.KindForbidden,
		Check: func(ctx context.Context, p *Principal) (bool, error) {
			if len(want) == 0 {
				return true, nil
			}
			held, err := g.matrix.RolesOf(ctx, p.IdentityID)
			if err != nil {
				return false, err
			}
			return token.NewRoleSet(held...).Intersects(want), nil
		},
		attrs: map[string]any{"roles": strings.Join(want, ",")},
	}
}

// Evaluate runs preds in order. A nil principal is Unauthenticated before
// any predicate runs. Matrix failures are Internal and deny.
func (g *Guard) Evaluate(ctx context.Context, p *Principal, preds ...Predicate) error {
	if p == nil || p.IdentityID <= 0 {
		return ErrUnauthenticated
	}
	for _, pred := range preds {
		ok, err := pred.Check(ctx, p)
		if err != nil {
			return apperror.Internal("failed to evaluate access rule", err)
		}
		if ok {
			continue
		}
		g.denied(ctx, p, pred)
		return denial(pred.Kind)
	}
	return nil
}

func (g *Guard) denied(ctx context.Context, p *Principal, pred Predicate) {
	metrics.RecordAccessDenied(ctx, pred.Rule)

	attrs := []any{logger.IdentityID(p.IdentityID), slog.String("rule", pred.Rule)}
	if pred.module != "" {
		attrs = append(attrs, logger.Module(pred.module), logger.Action(string(pred.action)))
	}
	slog.InfoContext(ctx, "access denied", attrs...)

	meta := map[string]any{audit.AttrReason: pred.Rule}
	for k, v := range pred.attrs {
		meta[k] = v
	}
	g.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeAccessDenied,
		ActorID:  strconv.FormatInt(p.IdentityID, 10),
		Resource: audit.ResourceGrant,
		Metadata: meta,
	})
}

func denial(kind apperror.Kind) error {
	switch kind {
	case apperror.KindUnauthenticated:
		return ErrUnauthenticated
	case apperror.KindForbidden, "":
		return ErrForbidden
	default:
		return apperror.New(kind, "access denied")
	}
}
