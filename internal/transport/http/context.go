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

package http

import (
	"context"

	"github.com/opentrusty/obralog/internal/guard"
)

type contextKey string

const principalKey contextKey = "principal"

func withPrincipal(ctx context.Context, p *guard.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom retrieves the verified principal from context, or nil on
// unauthenticated routes.
func PrincipalFrom(ctx context.Context) *guard.Principal {
	if p, ok := ctx.Value(principalKey).(*guard.Principal); ok {
		return p
	}
	return nil
}
