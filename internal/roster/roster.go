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

// Package roster reads the externally maintained company catalog: employees,
// construction sites and equipment. The service never writes to it.
package roster

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/opentrusty/obralog/internal/apperror"
)

// Domain errors
var (
	ErrEmployeeNotFound  = apperror.New(apperror.KindNotFound, "employee not found")
	ErrSiteNotFound      = apperror.New(apperror.KindNotFound, "site not found")
	ErrEquipmentNotFound = apperror.New(apperror.KindNotFound, "equipment not found")
)

// DefaultSearchLimit caps search results.
const DefaultSearchLimit = 50

// Employee is a roster row.
type Employee struct {
	OrganizationKey string `json:"organizationKey"`
	MemberKey       string `json:"memberKey"`
	FullName        string `json:"fullName"`
	// Email is the address password resets are delivered to. Empty when the
	// roster holds none.
	Email string `json:"-"`
}

// Site is a construction site.
type Site struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// Equipment is a piece of plant or vehicle.
type Equipment struct {
	Code        string `json:"code"`
	Designation string `json:"designation"`
	Inactive    bool   `json:"inactive"`
}

// Directory is the read-only catalog.
type Directory interface {
	FindEmployee(ctx context.Context, organizationKey, memberKey string) (*Employee, error)
	FindSite(ctx context.Context, code string) (*Site, error)
	FindEquipment(ctx context.Context, code string) (*Equipment, error)
	SearchSites(ctx context.Context, query string, limit int) ([]Site, error)
	SearchEquipment(ctx context.Context, query string, limit int) ([]Equipment, error)
}

// SQLDirectory implements Directory over database/sql.
type SQLDirectory struct {
	db *sql.DB
}

// NewSQLDirectory wraps an open database handle.
func NewSQLDirectory(db *sql.DB) *SQLDirectory {
	return &SQLDirectory{db: db}
}

func (d *SQLDirectory) FindEmployee(ctx context.Context, organizationKey, memberKey string) (*Employee, error) {
	var e Employee
	err := d.db.QueryRowContext(ctx,
		`SELECT company_name, employee_number, full_name, email FROM employees
		 WHERE company_name = $1 AND employee_number = $2`,
		organizationKey, memberKey,
	).Scan(&e.OrganizationKey, &e.MemberKey, &e.FullName, &e.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEmployeeNotFound
		}
		return nil, fmt.Errorf("failed to get employee: %w", err)
	}
	return &e, nil
}

func (d *SQLDirectory) FindSite(ctx context.Context, code string) (*Site, error) {
	var s Site
	err := d.db.QueryRowContext(ctx,
		`SELECT code, name, status FROM sites WHERE code = $1`, code,
	).Scan(&s.Code, &s.Name, &s.Status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSiteNotFound
		}
		return nil, fmt.Errorf("failed to get site: %w", err)
	}
	return &s, nil
}

func (d *SQLDirectory) FindEquipment(ctx context.Context, code string) (*Equipment, error) {
	var e Equipment
	var inactive int
	err := d.db.QueryRowContext(ctx,
		`SELECT code, designation, inactive FROM equipment WHERE code = $1`, code,
	).Scan(&e.Code, &e.Designation, &inactive)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEquipmentNotFound
		}
		return nil, fmt.Errorf("failed to get equipment: %w", err)
	}
	e.Inactive = inactive != 0
	return &e, nil
}

// SearchSites lists open sites (status starting with 3, 4, 5 or 7) whose
// code or name matches query. An empty query matches every open site.
func (d *SQLDirectory) SearchSites(ctx context.Context, query string, limit int) ([]Site, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT code, name, status FROM sites
		 WHERE LEFT(status, 1) IN ('3', '4', '5', '7')
		   AND ($1 = '' OR code ILIKE $1 || '%' OR name ILIKE '%' || $1 || '%')
		 ORDER BY code
		 LIMIT $2`,
		escapeLike(query), clampLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search sites: %w", err)
	}
	defer rows.Close()

	out := []Site{}
	for rows.Next() {
		var s Site
		if err := rows.Scan(&s.Code, &s.Name, &s.Status); err != nil {
			return nil, fmt.Errorf("failed to scan site: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// SearchEquipment lists active equipment whose code or designation matches query.
func (d *SQLDirectory) SearchEquipment(ctx context.Context, query string, limit int) ([]Equipment, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT code, designation FROM equipment
		 WHERE inactive = 0
		   AND ($1 = '' OR code ILIKE $1 || '%' OR designation ILIKE '%' || $1 || '%')
		 ORDER BY code
		 LIMIT $2`,
		escapeLike(query), clampLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search equipment: %w", err)
	}
	defer rows.Close()

	out := []Equipment{}
	for rows.Next() {
		var e Equipment
		if err := rows.Scan(&e.Code, &e.Designation); err != nil {
			return nil, fmt.Errorf("failed to scan equipment: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(q string) string {
	return likeEscaper.Replace(strings.TrimSpace(q))
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > DefaultSearchLimit {
		return DefaultSearchLimit
	}
	return limit
}
