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
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/opentrusty/obralog/internal/id"
)

const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// Pair is an issued access/refresh token pair.
type Pair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Service signs and verifies HS256 tokens. It holds no state besides the
// secret and the clock.
type Service struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithAccessTTL overrides the default access token lifetime.
func WithAccessTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.accessTTL = ttl
		}
	}
}

// WithRefreshTTL overrides the default refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
	}
}

// WithIssuer sets the iss claim. Tokens with a different issuer are rejected.
func WithIssuer(issuer string) Option {
	return func(s *Service) {
		s.issuer = strings.TrimSpace(issuer)
	}
}

// NewService creates a token service for the given signing secret.
func NewService(secret string, opts ...Option) (*Service, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("token: signing secret is required")
	}
	s := &Service{
		secret:     []byte(secret),
		accessTTL:  DefaultAccessTTL,
		refreshTTL: DefaultRefreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// IssuePair issues a pair with the configured lifetimes.
func (s *Service) IssuePair(sub Subject) (*Pair, error) {
	return s.Issue(sub, s.accessTTL, s.refreshTTL)
}

// Issue signs an access and a refresh token carrying the same claim set.
func (s *Service) Issue(sub Subject, accessTTL, refreshTTL time.Duration) (*Pair, error) {
	if sub.IdentityID <= 0 {
		return nil, errors.New("token: subject id is required")
	}
	now := s.now()

	access, accessExp, err := s.sign(sub, TypeAccess, now, accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := s.sign(sub, TypeRefresh, now, refreshTTL)
	if err != nil {
		return nil, err
	}

	return &Pair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (s *Service) sign(sub Subject, typ Type, now time.Time, ttl time.Duration) (string, time.Time, error) {
	exp := now.Add(ttl)
	claims := Claims{
		OrganizationKey: sub.OrganizationKey,
		MemberKey:       sub.MemberKey,
		Role:            NewRoleSet(sub.Roles...),
		Type:            typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(sub.IdentityID, 10),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        id.NewUUIDv7(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign %s token: %w", typ, err)
	}
	return signed, exp, nil
}

// Verify checks signature, structure and expiry. Expired tokens yield
// ErrTokenExpired, every other failure ErrInvalidToken.
func (s *Service) Verify(raw string) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrInvalidToken
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(s.issuer))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, parserOpts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	if _, err := claims.IdentityID(); err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// VerifyAccess verifies raw and requires it to be an access token.
func (s *Service) VerifyAccess(raw string) (*Claims, error) {
	return s.verifyType(raw, TypeAccess)
}

// VerifyRefresh verifies raw and requires it to be a refresh token.
func (s *Service) VerifyRefresh(raw string) (*Claims, error) {
	return s.verifyType(raw, TypeRefresh)
}

func (s *Service) verifyType(raw string, typ Type) (*Claims, error) {
	claims, err := s.Verify(raw)
	if err != nil {
		return nil, err
	}
	if claims.Type != typ {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// IdentityID parses the numeric subject.
func (c *Claims) IdentityID() (int64, error) {
	v, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("token: invalid subject %q", c.Subject)
	}
	return v, nil
}
