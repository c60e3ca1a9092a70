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

package roster

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/opentrusty/obralog/internal/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*SQLDirectory, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSQLDirectory(db), mock
}

func TestFindEmployee(t *testing.T) {
	dir, mock := newMock(t)
	ctx := context.Background()

	mock.ExpectQuery("SELECT company_name, employee_number, full_name, email FROM employees").
		WithArgs("ACME", "0042").
		WillReturnRows(sqlmock.NewRows([]string{"company_name", "employee_number", "full_name", "email"}).
			AddRow("ACME", "0042", "Ana Sousa", "ana@example.com"))
	mock.ExpectQuery("SELECT company_name, employee_number, full_name, email FROM employees").
		WithArgs("ACME", "9999").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("SELECT company_name, employee_number, full_name, email FROM employees").
		WithArgs("ACME", "0001").
		WillReturnError(errors.New("connection reset"))

	emp, err := dir.FindEmployee(ctx, "ACME", "0042")
	require.NoError(t, err)
	assert.Equal(t, "Ana Sousa", emp.FullName)
	assert.Equal(t, "ana@example.com", emp.Email)

	_, err = dir.FindEmployee(ctx, "ACME", "9999")
	assert.ErrorIs(t, err, ErrEmployeeNotFound)
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))

	_, err = dir.FindEmployee(ctx, "ACME", "0001")
	assert.Equal(t, apperror.KindInternal, apperror.KindOf(err))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindSiteAndEquipment(t *testing.T) {
	dir, mock := newMock(t)
	ctx := context.Background()

	mock.ExpectQuery("SELECT code, name, status FROM sites WHERE code").
		WithArgs("OB-1").
		WillReturnRows(sqlmock.NewRows([]string{"code", "name", "status"}).AddRow("OB-1", "Ponte Norte", "3"))
	mock.ExpectQuery("SELECT code, designation, inactive FROM equipment WHERE code").
		WithArgs("EQ-9").
		WillReturnRows(sqlmock.NewRows([]string{"code", "designation", "inactive"}).AddRow("EQ-9", "Grua", 1))
	mock.ExpectQuery("SELECT code, designation, inactive FROM equipment WHERE code").
		WithArgs("EQ-0").
		WillReturnError(sql.ErrNoRows)

	site, err := dir.FindSite(ctx, "OB-1")
	require.NoError(t, err)
	assert.Equal(t, "Ponte Norte", site.Name)

	eq, err := dir.FindEquipment(ctx, "EQ-9")
	require.NoError(t, err)
	assert.True(t, eq.Inactive)

	_, err = dir.FindEquipment(ctx, "EQ-0")
	assert.ErrorIs(t, err, ErrEquipmentNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestPurpose: Validates catalog search filters and input handling.
// Scope: Unit Test
// Security: LIKE wildcard injection (user input cannot widen the match)
// Expected: Only open sites / active equipment are queried, wildcards are escaped and limits clamped.
// Test Case ID: ROS-01
func TestSearch(t *testing.T) {
	dir, mock := newMock(t)
	ctx := context.Background()

	mock.ExpectQuery(`WHERE LEFT\(status, 1\) IN \('3', '4', '5', '7'\)`).
		WithArgs(`50\%`, DefaultSearchLimit).
		WillReturnRows(sqlmock.NewRows([]string{"code", "name", "status"}).
			AddRow("OB-1", "Ponte 50%", "3").
			AddRow("OB-2", "Escola", "7"))
	mock.ExpectQuery(`WHERE inactive = 0`).
		WithArgs("", 5).
		WillReturnRows(sqlmock.NewRows([]string{"code", "designation"}).AddRow("EQ-1", "Escavadora"))

	sites, err := dir.SearchSites(ctx, " 50% ", 500)
	require.NoError(t, err)
	assert.Len(t, sites, 2)

	eqs, err := dir.SearchEquipment(ctx, "", 5)
	require.NoError(t, err)
	require.Len(t, eqs, 1)
	assert.False(t, eqs[0].Inactive)

	assert.NoError(t, mock.ExpectationsWereMet())
}
