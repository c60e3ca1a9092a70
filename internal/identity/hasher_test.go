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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func testHasher() *PasswordHasher {
	return NewPasswordHasher(1024, 1, 1, 16, 32)
}

// TestPurpose: Validates Argon2id hashing and verification.
// Scope: Unit Test
// Security: Password storage (CWE-916), salted hashes
// Expected: Same password verifies, wrong password does not, two hashes of one password differ.
// Test Case ID: HSH-01
func TestPasswordHasher_Argon2id(t *testing.T) {
	h := testHasher()

	a, err := h.Hash("Admin@123")
	require.NoError(t, err)
	b, err := h.Hash("Admin@123")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(a, "$argon2id$v=19$m=1024,t=1,p=1$"))
	assert.NotEqual(t, a, b)

	ok, err := h.Verify("Admin@123", a)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify("admin@123", a)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.False(t, h.NeedsRehash(a))
	assert.True(t, NewPasswordHasher(2048, 1, 1, 16, 32).NeedsRehash(a))
}

// TestPurpose: Validates that legacy bcrypt rows still authenticate and are flagged for upgrade.
// Scope: Unit Test
// Security: Credential migration without forced resets
// Expected: bcrypt hash verifies for the right password only and NeedsRehash reports true.
// Test Case ID: HSH-02
func TestPasswordHasher_LegacyBcrypt(t *testing.T) {
	h := testHasher()
	legacy, err := bcrypt.GenerateFromPassword([]byte("Admin@123"), bcrypt.MinCost)
	require.NoError(t, err)

	ok, err := h.Verify("Admin@123", string(legacy))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify("nope", string(legacy))
	require.NoError(t, err)
	assert.False(t, ok)

	assert.True(t, h.NeedsRehash(string(legacy)))
}

func TestPasswordHasher_Malformed(t *testing.T) {
	h := testHasher()
	for _, bad := range []string{
		"",
		"plaintext",
		"$argon2i$v=19$m=1024,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=x,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=1024,t=1,p=1$***$aGFzaA",
		"$2a$10$short",
	} {
		ok, err := h.Verify("Admin@123", bad)
		assert.Error(t, err, bad)
		assert.False(t, ok)
	}
}
