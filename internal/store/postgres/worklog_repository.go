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
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/opentrusty/obralog/internal/worklog"
)

const headerColumns = `stamp, owner_id, organization_key, member_key, work_date, site_code, foreman_name, created_at`

// HeaderRepository implements worklog.HeaderRepository
type HeaderRepository struct {
	db *DB
}

// NewHeaderRepository creates a new header repository
func NewHeaderRepository(db *DB) *HeaderRepository {
	return &HeaderRepository{db: db}
}

func scanHeader(row pgx.Row) (*worklog.Header, error) {
	var h worklog.Header
	err := row.Scan(&h.Stamp, &h.OwnerID, &h.OrganizationKey, &h.MemberKey,
		&h.WorkDate, &h.SiteCode, &h.ForemanName, &h.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func collectHeaders(rows pgx.Rows) ([]*worklog.Header, error) {
	defer rows.Close()
	out := []*worklog.Header{}
	for rows.Next() {
		h, err := scanHeader(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan header: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (r *HeaderRepository) Create(ctx context.Context, h *worklog.Header) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO site_log_headers (`+headerColumns+`)
		VALUES ($1, $2, $3, $4, $5::date, $6, $7, $8)
	`, h.Stamp, h.OwnerID, h.OrganizationKey, h.MemberKey,
		h.WorkDate.Format(worklog.DateLayout), h.SiteCode, h.ForemanName, h.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert header: %w", err)
	}
	return nil
}

func (r *HeaderRepository) Get(ctx context.Context, stamp string) (*worklog.Header, error) {
	h, err := scanHeader(r.db.pool.QueryRow(ctx,
		`SELECT `+headerColumns+` FROM site_log_headers WHERE stamp = $1`, stamp))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, worklog.ErrHeaderNotFound
		}
		return nil, fmt.Errorf("failed to get header: %w", err)
	}
	return h, nil
}

func (r *HeaderRepository) List(ctx context.Context, f worklog.HeaderFilter) ([]*worklog.Header, int, error) {
	where := ``
	args := []any{}
	if f.OwnerID != 0 || f.MemberKey != "" {
		where = ` WHERE owner_id = $1 OR (organization_key = $2 AND member_key = $3)`
		args = append(args, f.OwnerID, f.OrganizationKey, f.MemberKey)
	}

	var total int
	if err := r.db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM site_log_headers`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count headers: %w", err)
	}

	n := len(args)
	query := fmt.Sprintf(`SELECT %s FROM site_log_headers%s ORDER BY created_at DESC, stamp DESC LIMIT $%d OFFSET $%d`,
		headerColumns, where, n+1, n+2)
	rows, err := r.db.pool.Query(ctx, query, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list headers: %w", err)
	}
	items, err := collectHeaders(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *HeaderRepository) ListByOwnerAndDate(ctx context.Context, ownerID int64, workDate time.Time) ([]*worklog.Header, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT `+headerColumns+` FROM site_log_headers
		WHERE owner_id = $1 AND work_date = $2::date
		ORDER BY created_at
	`, ownerID, workDate.Format(worklog.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to list headers by date: %w", err)
	}
	return collectHeaders(rows)
}

func (r *HeaderRepository) Update(ctx context.Context, h *worklog.Header) error {
	tag, err := r.db.pool.Exec(ctx, `
		UPDATE site_log_headers SET work_date = $2::date, site_code = $3, foreman_name = $4
		WHERE stamp = $1
	`, h.Stamp, h.WorkDate.Format(worklog.DateLayout), h.SiteCode, h.ForemanName)
	if err != nil {
		return fmt.Errorf("failed to update header: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return worklog.ErrHeaderNotFound
	}
	return nil
}

// Delete removes the header together with any remaining details.
func (r *HeaderRepository) Delete(ctx context.Context, stamp string) error {
	return r.db.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM site_log_details WHERE header_stamp = $1`, stamp); err != nil {
			return fmt.Errorf("failed to delete details: %w", err)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM site_log_headers WHERE stamp = $1`, stamp)
		if err != nil {
			return fmt.Errorf("failed to delete header: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return worklog.ErrHeaderNotFound
		}
		return nil
	})
}

const detailColumns = `stamp, header_stamp, COALESCE(company_name, ''), COALESCE(employee_number, ''),
	COALESCE(equipment_code, ''), designation, quantity`

// DetailRepository implements worklog.DetailRepository
type DetailRepository struct {
	db *DB
}

// NewDetailRepository creates a new detail repository
func NewDetailRepository(db *DB) *DetailRepository {
	return &DetailRepository{db: db}
}

func scanDetail(row pgx.Row) (*worklog.Detail, error) {
	var d worklog.Detail
	err := row.Scan(&d.Stamp, &d.HeaderStamp, &d.CompanyName, &d.EmployeeNumber,
		&d.EquipmentCode, &d.Designation, &d.Quantity)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

const insertDetail = `
	INSERT INTO site_log_details (stamp, header_stamp, company_name, employee_number, equipment_code, designation, quantity)
	VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), $6, $7)`

func detailArgs(d *worklog.Detail) []any {
	return []any{d.Stamp, d.HeaderStamp, d.CompanyName, d.EmployeeNumber, d.EquipmentCode, d.Designation, d.Quantity}
}

func (r *DetailRepository) Create(ctx context.Context, d *worklog.Detail) error {
	if _, err := r.db.pool.Exec(ctx, insertDetail, detailArgs(d)...); err != nil {
		if isForeignKeyViolation(err) {
			return worklog.ErrHeaderNotFound
		}
		return fmt.Errorf("failed to insert detail: %w", err)
	}
	return nil
}

// CreateBatch inserts every detail in one transaction.
func (r *DetailRepository) CreateBatch(ctx context.Context, details []*worklog.Detail) error {
	return r.db.withTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, d := range details {
			batch.Queue(insertDetail, detailArgs(d)...)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert details: %w", err)
		}
		return nil
	})
}

func (r *DetailRepository) Get(ctx context.Context, stamp string) (*worklog.Detail, error) {
	d, err := scanDetail(r.db.pool.QueryRow(ctx,
		`SELECT `+detailColumns+` FROM site_log_details WHERE stamp = $1`, stamp))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, worklog.ErrDetailNotFound
		}
		return nil, fmt.Errorf("failed to get detail: %w", err)
	}
	return d, nil
}

func (r *DetailRepository) ListByHeaders(ctx context.Context, headerStamps ...string) ([]*worklog.Detail, error) {
	rows, err := r.db.pool.Query(ctx,
		`SELECT `+detailColumns+` FROM site_log_details WHERE header_stamp = ANY($1) ORDER BY stamp`,
		headerStamps)
	if err != nil {
		return nil, fmt.Errorf("failed to list details: %w", err)
	}
	defer rows.Close()

	out := []*worklog.Detail{}
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan detail: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *DetailRepository) Update(ctx context.Context, d *worklog.Detail) error {
	tag, err := r.db.pool.Exec(ctx, `
		UPDATE site_log_details SET
			company_name = NULLIF($2, ''),
			employee_number = NULLIF($3, ''),
			equipment_code = NULLIF($4, ''),
			designation = $5,
			quantity = $6
		WHERE stamp = $1
	`, d.Stamp, d.CompanyName, d.EmployeeNumber, d.EquipmentCode, d.Designation, d.Quantity)
	if err != nil {
		return fmt.Errorf("failed to update detail: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return worklog.ErrDetailNotFound
	}
	return nil
}

func (r *DetailRepository) Delete(ctx context.Context, stamp string) error {
	tag, err := r.db.pool.Exec(ctx, `DELETE FROM site_log_details WHERE stamp = $1`, stamp)
	if err != nil {
		return fmt.Errorf("failed to delete detail: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return worklog.ErrDetailNotFound
	}
	return nil
}

func (r *DetailRepository) DeleteByHeader(ctx context.Context, headerStamp string) error {
	if _, err := r.db.pool.Exec(ctx, `DELETE FROM site_log_details WHERE header_stamp = $1`, headerStamp); err != nil {
		return fmt.Errorf("failed to delete details: %w", err)
	}
	return nil
}
