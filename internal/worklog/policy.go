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

package worklog

import (
	"context"
	"log/slog"
	"time"

	"github.com/opentrusty/obralog/internal/observability/logger"
)

// Policy is the record-level ownership and creation-day rule.
type Policy struct {
	supervisorRole string
	loc            *time.Location
	now            func() time.Time
}

// PolicyOption configures a Policy.
type PolicyOption func(*Policy)

// WithPolicyClock overrides the clock.
func WithPolicyClock(now func() time.Time) PolicyOption {
	return func(p *Policy) { p.now = now }
}

// NewPolicy creates a policy. Calendar days are compared in loc; a nil loc
// means the server's local zone.
func NewPolicy(supervisorRole string, loc *time.Location, opts ...PolicyOption) *Policy {
	if loc == nil {
		loc = time.Local
	}
	p := &Policy{supervisorRole: supervisorRole, loc: loc, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// IsSupervisor reports whether a bypasses ownership and the day lock.
func (p *Policy) IsSupervisor(a Actor) bool {
	return p.supervisorRole != "" && a.Roles.Has(p.supervisorRole)
}

// AssertOwnerOrSupervisor allows supervisors, the creator by id, the owner
// by natural key, and the identity whose display name is the foreman.
func (p *Policy) AssertOwnerOrSupervisor(ctx context.Context, h *Header, a Actor) error {
	if p.IsSupervisor(a) {
		return nil
	}

	byID := h.OwnerID == a.IdentityID
	byKey := h.MemberKey != "" && h.MemberKey == a.MemberKey && h.OrganizationKey == a.OrganizationKey
	byName := h.ForemanName != "" && h.ForemanName == a.DisplayName

	if !byID && (byKey || byName) {
		// The id and name markers can drift apart, e.g. after a rename.
		slog.WarnContext(ctx, "header ownership markers disagree",
			logger.Stamp(h.Stamp),
			logger.IdentityID(a.IdentityID),
			slog.Int64("owner_id", h.OwnerID),
			slog.Bool("key_match", byKey),
			slog.Bool("name_match", byName),
		)
	}

	if byID || byKey || byName {
		return nil
	}
	return ErrAccessDenied
}

// AssertEditableToday allows supervisors, and the creator by id on the
// calendar day the header was created.
func (p *Policy) AssertEditableToday(h *Header, a Actor) error {
	if p.IsSupervisor(a) {
		return nil
	}
	if !sameDay(h.CreatedAt.In(p.loc), p.now().In(p.loc)) {
		return ErrDayLocked
	}
	if h.OwnerID != a.IdentityID {
		return ErrNotOwner
	}
	return nil
}

// AssertMutable applies both checks in order.
func (p *Policy) AssertMutable(ctx context.Context, h *Header, a Actor) error {
	if err := p.AssertOwnerOrSupervisor(ctx, h, a); err != nil {
		return err
	}
	return p.AssertEditableToday(h, a)
}

// ParseDate parses a YYYY-MM-DD work date in the policy location.
func (p *Policy) ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, p.loc)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
