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

package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestPurpose: Validates that wrapped sentinels keep their identity and kind through fmt.Errorf chains.
// Scope: Unit Test
// Security: Stable error taxonomy (no accidental 500 for auth failures)
// Expected: errors.Is matches the sentinel and KindOf reports its kind; plain errors are Internal.
// Test Case ID: ERR-01
func TestApperror_KindOf(t *testing.T) {
	sentinel := New(KindForbidden, "access denied")
	wrapped := fmt.Errorf("guard: %w", sentinel)

	assert.True(t, errors.Is(wrapped, sentinel))
	assert.Equal(t, KindForbidden, KindOf(wrapped))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Equal(t, Kind(""), KindOf(nil))
}

// TestPurpose: Validates that internal causes are never exposed as caller-facing messages.
// Scope: Unit Test
// Security: Information disclosure prevention (CWE-209)
// Expected: MessageOf hides the cause of Internal errors and returns the message of every other kind.
// Test Case ID: ERR-02
func TestApperror_MessageOf(t *testing.T) {
	internal := Internal("failed to load identity", errors.New("dial tcp 10.0.0.1:5432: refused"))
	assert.Equal(t, "internal error", MessageOf(internal))
	assert.Contains(t, internal.Error(), "10.0.0.1")

	assert.Equal(t, "module code already exists", MessageOf(New(KindConflict, "module code already exists")))
	assert.Equal(t, "internal error", MessageOf(errors.New("raw")))
}
