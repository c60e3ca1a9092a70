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

package postgres

import (
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPurpose: Validates the embedded migration set.
// Scope: Unit Test
// Security: Schema integrity
// Expected: Scripts are named by base file name, ordered, unique and non-empty.
// Test Case ID: PG-04
func TestMigrations_Ordered(t *testing.T) {
	migrations, err := Migrations()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)

	names := make([]string, 0, len(migrations))
	seen := map[string]bool{}
	for _, m := range migrations {
		assert.False(t, strings.Contains(m.Name, "/"), m.Name)
		assert.True(t, strings.HasSuffix(m.Name, ".up.sql"), m.Name)
		assert.NotEmpty(t, strings.TrimSpace(m.SQL), m.Name)
		assert.False(t, seen[m.Name], "duplicate %s", m.Name)
		seen[m.Name] = true
		names = append(names, m.Name)
	}
	assert.True(t, sort.StringsAreSorted(names))
	assert.Equal(t, "001_initial_schema.up.sql", names[0])
	assert.Contains(t, names, "002_employee_email.up.sql")
}
