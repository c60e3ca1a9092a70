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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// TestPurpose: Validates the precedence defaults < YAML < environment.
// Scope: Unit Test
// Security: Secrets can be supplied by environment without touching files
// Expected: YAML overrides defaults, env overrides YAML, untouched fields keep defaults.
// Test Case ID: CFG-01
func TestLoad_Precedence(t *testing.T) {
	path := writeFile(t, `
auth:
  jwt_secret: from-yaml
  access_ttl: 5m
database:
  password: yaml-db
  name: sites
`)
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("BOOTSTRAP_PASSWORD", "Admin@123")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.Equal(t, 5*time.Minute, cfg.Auth.AccessTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.RefreshTTL)
	assert.Equal(t, "sites", cfg.Database.Database)
	assert.Equal(t, "yaml-db", cfg.Database.Password)
	assert.Equal(t, "supervisor", cfg.Auth.SupervisorRole)
	assert.False(t, cfg.Auth.ExposeResetToken)
	assert.Equal(t, "SYSTEM", cfg.Bootstrap.OrganizationKey)
	assert.Equal(t, "Admin@123", cfg.Bootstrap.Password)
}

// TestPurpose: Validates mandatory settings.
// Scope: Unit Test
// Security: The service must not start with an empty signing secret
// Expected: Missing JWT secret, missing DB password and inverted lifetimes are rejected.
// Test Case ID: CFG-02
func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing secret", func(c *Config) { c.Auth.JWTSecret = " " }},
		{"missing db password", func(c *Config) { c.Database.Password = "" }},
		{"access outlives refresh", func(c *Config) { c.Auth.AccessTTL = 8 * 24 * time.Hour }},
		{"bad location", func(c *Config) { c.Server.Location = "Mars/Olympus" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Auth.JWTSecret = "secret"
			cfg.Database.Password = "pw"
			require.NoError(t, cfg.Validate())

			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{User: "u", Password: "p", Host: "db", Port: "5432", Database: "n", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@db:5432/n?sslmode=disable", d.DSN())
}
