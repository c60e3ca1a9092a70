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

package token

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/opentrusty/obralog/internal/apperror"
)

// Domain errors
var (
	ErrInvalidToken = apperror.New(apperror.KindUnauthenticated, "invalid token")
	ErrTokenExpired = apperror.New(apperror.KindUnauthenticated, "token expired")
)

// Type distinguishes the two halves of a token pair.
type Type string

const (
	TypeAccess  Type = "access"
	TypeRefresh Type = "refresh"
)

// Claims is the claim set carried by both access and refresh tokens.
// Claims are signed, not encrypted: every holder can read them.
type Claims struct {
	OrganizationKey string  `json:"organizationKey"`
	MemberKey       string  `json:"memberKey"`
	Role            RoleSet `json:"role,omitempty"`
	Type            Type    `json:"typ"`
	jwt.RegisteredClaims
}

// Subject is the identity a token pair is issued for.
type Subject struct {
	IdentityID      int64
	OrganizationKey string
	MemberKey       string
	Roles           []string
}

// RoleSet is the canonical role representation. It decodes from either a
// single JSON string or an array of strings and always encodes as a sorted,
// de-duplicated array.
type RoleSet []string

// NewRoleSet normalizes role names: trims blanks, drops empties, de-duplicates
// and sorts. Role names are case-sensitive.
func NewRoleSet(roles ...string) RoleSet {
	seen := make(map[string]struct{}, len(roles))
	out := make(RoleSet, 0, len(roles))
	for _, r := range roles {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// Has reports set membership.
func (s RoleSet) Has(role string) bool {
	for _, r := range s {
		if r == role {
			return true
		}
	}
	return false
}

// Intersects reports whether any element of other is in s.
func (s RoleSet) Intersects(other RoleSet) bool {
	for _, r := range other {
		if s.Has(r) {
			return true
		}
	}
	return false
}

func (s *RoleSet) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*s = NewRoleSet(single)
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*s = NewRoleSet(many...)
	return nil
}
