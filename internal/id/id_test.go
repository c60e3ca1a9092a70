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

package id

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUUIDv7(t *testing.T) {
	u, err := uuid.Parse(NewUUIDv7())
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), u.Version())
}

func TestNewStamp_SortableAndUnique(t *testing.T) {
	a := NewStamp("MDOH")
	b := NewStamp("MDOH")

	assert.True(t, strings.HasPrefix(a, "MDOH-"))
	assert.NotEqual(t, a, b)
	assert.Less(t, a, b, "monotonic entropy keeps stamps ordered")

	_, err := ulid.Parse(strings.TrimPrefix(a, "MDOH-"))
	assert.NoError(t, err)
}
