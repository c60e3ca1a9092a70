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

package audit

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"
)

// Event types
const (
	TypeLoginSuccess           = "login_success"
	TypeLoginFailed            = "login_failed"
	TypeTokenRefreshed         = "token_refreshed"
	TypeRefreshRejected        = "refresh_rejected"
	TypeLogout                 = "logout"
	TypePasswordResetRequested = "password_reset_requested"
	TypePasswordResetCompleted = "password_reset_completed"
	TypePasswordResetRejected  = "password_reset_rejected"
	TypeIdentityRegistered     = "identity_registered"
	TypeGrantAssigned          = "grant_assigned"
	TypeAccessDenied           = "access_denied"
	TypeModuleCreated          = "module_created"
	TypeModuleDeleted          = "module_deleted"
	TypeRoleCreated            = "role_created"
	TypeRoleDeleted            = "role_deleted"
	TypeSystemBootstrapped     = "system_bootstrapped"
)

// Actors and resources
const (
	ActorSystemBootstrap = "system:bootstrap"

	ResourceLogin    = "login"
	ResourceSession  = "session"
	ResourcePassword = "password"
	ResourceIdentity = "identity"
	ResourceGrant    = "grant"
	ResourceModule   = "module"
	ResourceRole     = "role"
)

// Metadata keys
const (
	AttrReason       = "reason"
	AttrOrganization = "organization"
	AttrMember       = "member"
	AttrModule       = "module"
	AttrAction       = "action"
	AttrRoleID       = "role_id"
	AttrModuleID     = "module_id"
	AttrIdentityID   = "identity_id"
	AttrPath         = "path"
)

// Event represents an auditable action
type Event struct {
	Type      string
	ActorID   string
	Resource  string
	Metadata  map[string]any
	Timestamp time.Time
	IPAddress string
	UserAgent string
}

// Logger defines the interface for audit logging
type Logger interface {
	Log(ctx context.Context, event Event)
}

// SlogLogger implements Logger using slog
type SlogLogger struct {
	now func() time.Time
}

// NewSlogLogger creates a new audit logger
func NewSlogLogger() *SlogLogger {
	return &SlogLogger{now: time.Now}
}

// Log records an audit event
func (l *SlogLogger) Log(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = l.now()
	}

	attrs := []any{
		slog.String("audit_type", event.Type),
		slog.String("actor_id", event.ActorID),
		slog.String("resource", event.Resource),
		slog.Time("timestamp", event.Timestamp),
	}

	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", event.UserAgent))
	}

	if len(event.Metadata) > 0 {
		attrs = append(attrs, slog.Group("metadata", redact(event.Metadata)...))
	}

	slog.InfoContext(ctx, "AUDIT_EVENT", append(attrs, slog.String("component", "audit"))...)
}

// redact flattens metadata in key order, masking secret-looking keys.
func redact(metadata map[string]any) []any {
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	group := make([]any, 0, len(keys))
	for _, k := range keys {
		v := metadata[k]
		if isSecret(k) {
			v = "[REDACTED]"
		}
		group = append(group, slog.Any(k, v))
	}
	return group
}

var secretMarkers = []string{"password", "secret", "token", "key", "hash", "credential", "authorization"}

// isSecret checks if a key likely contains a secret
func isSecret(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range secretMarkers {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// NopLogger discards events.
type NopLogger struct{}

func (NopLogger) Log(context.Context, Event) {}
