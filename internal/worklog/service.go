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

package worklog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/opentrusty/obralog/internal/apperror"
	"github.com/opentrusty/obralog/internal/id"
	"github.com/opentrusty/obralog/internal/observability/logger"
	"github.com/opentrusty/obralog/internal/roster"
)

// Service manages headers and details under the ownership policy.
type Service struct {
	headers HeaderRepository
	details DetailRepository
	catalog Catalog
	policy  *Policy
	now     func() time.Time
}

// NewService creates a worklog service.
func NewService(headers HeaderRepository, details DetailRepository, catalog Catalog, policy *Policy) *Service {
	return &Service{
		headers: headers,
		details: details,
		catalog: catalog,
		policy:  policy,
		now:     policy.now,
	}
}

// Policy returns the ownership policy in use.
func (s *Service) Policy() *Policy { return s.policy }

// HeaderInput carries the fields of a new header.
type HeaderInput struct {
	WorkDate    string `json:"workDate"`
	SiteCode    string `json:"siteCode"`
	ForemanName string `json:"foremanName"`
}

// HeaderUpdate carries the optional fields of a header update.
type HeaderUpdate struct {
	WorkDate    *string `json:"workDate,omitempty"`
	SiteCode    *string `json:"siteCode,omitempty"`
	ForemanName *string `json:"foremanName,omitempty"`
}

// CreateHeader opens a site log owned by a.
func (s *Service) CreateHeader(ctx context.Context, a Actor, in HeaderInput) (*Header, error) {
	site := strings.TrimSpace(in.SiteCode)
	if site == "" {
		return nil, ErrSiteRequired
	}
	if strings.TrimSpace(in.ForemanName) == "" {
		return nil, ErrForemanRequired
	}
	workDate, err := s.policy.ParseDate(strings.TrimSpace(in.WorkDate))
	if err != nil {
		return nil, err
	}
	if err := s.checkSite(ctx, site); err != nil {
		return nil, err
	}

	h := &Header{
		Stamp:           id.NewStamp(HeaderStampPrefix),
		OwnerID:         a.IdentityID,
		OrganizationKey: a.OrganizationKey,
		MemberKey:       a.MemberKey,
		WorkDate:        workDate,
		SiteCode:        site,
		ForemanName:     strings.TrimSpace(in.ForemanName),
		CreatedAt:       s.now(),
	}
	if err := s.headers.Create(ctx, h); err != nil {
		return nil, s.internal(ctx, "failed to create header", err)
	}

	slog.InfoContext(ctx, "header created", logger.Stamp(h.Stamp), logger.IdentityID(a.IdentityID))
	return h, nil
}

// ListHeaders returns page (1-based) of the headers visible to a.
// Supervisors see every header; others see those they own by id or key.
func (s *Service) ListHeaders(ctx context.Context, a Actor, page int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	f := HeaderFilter{Limit: PageSize, Offset: (page - 1) * PageSize}
	if !s.policy.IsSupervisor(a) {
		f.OwnerID = a.IdentityID
		f.OrganizationKey = a.OrganizationKey
		f.MemberKey = a.MemberKey
	}

	items, total, err := s.headers.List(ctx, f)
	if err != nil {
		return nil, s.internal(ctx, "failed to list headers", err)
	}
	if items == nil {
		items = []*Header{}
	}
	return &Page{
		Page:       page,
		Total:      total,
		TotalPages: (total + PageSize - 1) / PageSize,
		Items:      items,
	}, nil
}

// GetHeader returns a header visible to a.
func (s *Service) GetHeader(ctx context.Context, a Actor, stamp string) (*Header, error) {
	h, err := s.loadHeader(ctx, stamp)
	if err != nil {
		return nil, err
	}
	if err := s.policy.AssertOwnerOrSupervisor(ctx, h, a); err != nil {
		return nil, err
	}
	return h, nil
}

// GetSheet returns a header and its details.
func (s *Service) GetSheet(ctx context.Context, a Actor, stamp string) (*Sheet, error) {
	h, err := s.GetHeader(ctx, a, stamp)
	if err != nil {
		return nil, err
	}
	details, err := s.details.ListByHeaders(ctx, h.Stamp)
	if err != nil {
		return nil, s.internal(ctx, "failed to list details", err)
	}
	if details == nil {
		details = []*Detail{}
	}
	return &Sheet{Header: h, Details: details}, nil
}

// UpdateHeader changes a header while its day lock is open.
func (s *Service) UpdateHeader(ctx context.Context, a Actor, stamp string, upd HeaderUpdate) (*Header, error) {
	h, err := s.mutableHeader(ctx, a, stamp)
	if err != nil {
		return nil, err
	}

	if upd.SiteCode != nil {
		site := strings.TrimSpace(*upd.SiteCode)
		if site == "" {
			return nil, ErrSiteRequired
		}
		if err := s.checkSite(ctx, site); err != nil {
			return nil, err
		}
		h.SiteCode = site
	}
	if upd.ForemanName != nil {
		name := strings.TrimSpace(*upd.ForemanName)
		if name == "" {
			return nil, ErrForemanRequired
		}
		h.ForemanName = name
	}
	if upd.WorkDate != nil {
		d, err := s.policy.ParseDate(strings.TrimSpace(*upd.WorkDate))
		if err != nil {
			return nil, err
		}
		h.WorkDate = d
	}

	if err := s.headers.Update(ctx, h); err != nil {
		if errors.Is(err, ErrHeaderNotFound) {
			return nil, ErrHeaderNotFound
		}
		return nil, s.internal(ctx, "failed to update header", err)
	}
	return h, nil
}

// DeleteHeader removes a header and, first, its details.
func (s *Service) DeleteHeader(ctx context.Context, a Actor, stamp string) error {
	h, err := s.mutableHeader(ctx, a, stamp)
	if err != nil {
		return err
	}
	if err := s.details.DeleteByHeader(ctx, h.Stamp); err != nil {
		return s.internal(ctx, "failed to delete details", err)
	}
	if err := s.headers.Delete(ctx, h.Stamp); err != nil {
		if errors.Is(err, ErrHeaderNotFound) {
			return ErrHeaderNotFound
		}
		return s.internal(ctx, "failed to delete header", err)
	}

	slog.InfoContext(ctx, "header deleted", logger.Stamp(h.Stamp), logger.IdentityID(a.IdentityID))
	return nil
}

// DetailInput carries the fields of a new detail. Exactly one of the labor
// pair (CompanyName, EmployeeNumber) or EquipmentCode must be given.
type DetailInput struct {
	HeaderStamp    string   `json:"headerStamp"`
	CompanyName    string   `json:"companyName,omitempty"`
	EmployeeNumber string   `json:"employeeNumber,omitempty"`
	EquipmentCode  string   `json:"equipmentCode,omitempty"`
	Quantity       *float64 `json:"quantity,omitempty"`
}

// DetailUpdate carries the optional fields of a detail update. Supplying
// either kind of reference switches the row to that kind.
type DetailUpdate struct {
	CompanyName    *string  `json:"companyName,omitempty"`
	EmployeeNumber *string  `json:"employeeNumber,omitempty"`
	EquipmentCode  *string  `json:"equipmentCode,omitempty"`
	Quantity       *float64 `json:"quantity,omitempty"`
}

// CreateDetail adds a row to a header while its day lock is open.
func (s *Service) CreateDetail(ctx context.Context, a Actor, in DetailInput) (*Detail, error) {
	if strings.TrimSpace(in.HeaderStamp) == "" {
		return nil, ErrHeaderRequired
	}
	h, err := s.mutableHeader(ctx, a, strings.TrimSpace(in.HeaderStamp))
	if err != nil {
		return nil, err
	}

	d := &Detail{Stamp: id.NewStamp(DetailStampPrefix), HeaderStamp: h.Stamp}
	if err := s.resolve(ctx, d, strings.TrimSpace(in.CompanyName), strings.TrimSpace(in.EmployeeNumber), strings.TrimSpace(in.EquipmentCode)); err != nil {
		return nil, err
	}
	if in.Quantity != nil {
		if *in.Quantity < 0 {
			return nil, ErrInvalidQuantity
		}
		d.Quantity = *in.Quantity
	}

	if err := s.details.Create(ctx, d); err != nil {
		return nil, s.internal(ctx, "failed to create detail", err)
	}
	return d, nil
}

// GetDetail returns a detail whose header is visible to a.
func (s *Service) GetDetail(ctx context.Context, a Actor, stamp string) (*Detail, error) {
	d, err := s.loadDetail(ctx, stamp)
	if err != nil {
		return nil, err
	}
	if _, err := s.GetHeader(ctx, a, d.HeaderStamp); err != nil {
		return nil, err
	}
	return d, nil
}

// ListDetails returns the details of a header visible to a.
func (s *Service) ListDetails(ctx context.Context, a Actor, headerStamp string) ([]*Detail, error) {
	sheet, err := s.GetSheet(ctx, a, headerStamp)
	if err != nil {
		return nil, err
	}
	return sheet.Details, nil
}

// UpdateDetail changes a row while its header's day lock is open.
func (s *Service) UpdateDetail(ctx context.Context, a Actor, stamp string, upd DetailUpdate) (*Detail, error) {
	d, err := s.loadDetail(ctx, stamp)
	if err != nil {
		return nil, err
	}
	if _, err := s.mutableHeader(ctx, a, d.HeaderStamp); err != nil {
		return nil, err
	}

	company, number, equipment := deref(upd.CompanyName), deref(upd.EmployeeNumber), deref(upd.EquipmentCode)
	if company != "" || number != "" || equipment != "" {
		if err := s.resolve(ctx, d, company, number, equipment); err != nil {
			return nil, err
		}
	}
	if upd.Quantity != nil {
		if *upd.Quantity < 0 {
			return nil, ErrInvalidQuantity
		}
		d.Quantity = *upd.Quantity
	}

	if err := s.details.Update(ctx, d); err != nil {
		if errors.Is(err, ErrDetailNotFound) {
			return nil, ErrDetailNotFound
		}
		return nil, s.internal(ctx, "failed to update detail", err)
	}
	return d, nil
}

// DeleteDetail removes a row while its header's day lock is open.
func (s *Service) DeleteDetail(ctx context.Context, a Actor, stamp string) error {
	d, err := s.loadDetail(ctx, stamp)
	if err != nil {
		return err
	}
	if _, err := s.mutableHeader(ctx, a, d.HeaderStamp); err != nil {
		return err
	}
	if err := s.details.Delete(ctx, d.Stamp); err != nil {
		if errors.Is(err, ErrDetailNotFound) {
			return ErrDetailNotFound
		}
		return s.internal(ctx, "failed to delete detail", err)
	}
	return nil
}

// ImportResult reports an import.
type ImportResult struct {
	ImportedCount int    `json:"importedCount"`
	Message       string `json:"message"`
}

// ImportFromDate copies the rows of the headers a created for date
// (YYYY-MM-DD) into the target header, with quantities reset to zero.
func (s *Service) ImportFromDate(ctx context.Context, a Actor, targetStamp, date string) (*ImportResult, error) {
	workDate, err := s.policy.ParseDate(strings.TrimSpace(date))
	if err != nil {
		return nil, err
	}
	target, err := s.mutableHeader(ctx, a, targetStamp)
	if err != nil {
		return nil, err
	}

	sources, err := s.headers.ListByOwnerAndDate(ctx, a.IdentityID, workDate)
	if err != nil {
		return nil, s.internal(ctx, "failed to list source headers", err)
	}
	stamps := make([]string, 0, len(sources))
	for _, h := range sources {
		if h.Stamp != target.Stamp {
			stamps = append(stamps, h.Stamp)
		}
	}
	if len(stamps) == 0 {
		return nil, ErrNothingToImport
	}

	rows, err := s.details.ListByHeaders(ctx, stamps...)
	if err != nil {
		return nil, s.internal(ctx, "failed to list source details", err)
	}
	if len(rows) == 0 {
		return nil, ErrNothingToImport
	}

	copies := make([]*Detail, 0, len(rows))
	for _, r := range rows {
		copies = append(copies, &Detail{
			Stamp:          id.NewStamp(DetailStampPrefix),
			HeaderStamp:    target.Stamp,
			CompanyName:    r.CompanyName,
			EmployeeNumber: r.EmployeeNumber,
			EquipmentCode:  r.EquipmentCode,
			Designation:    r.Designation,
		})
	}
	if err := s.details.CreateBatch(ctx, copies); err != nil {
		return nil, s.internal(ctx, "failed to import details", err)
	}

	return &ImportResult{
		ImportedCount: len(copies),
		Message:       fmt.Sprintf("Successfully imported %d details from %s", len(copies), workDate.Format(DateLayout)),
	}, nil
}

// resolve validates the labor XOR equipment rule and fills the designation
// from the catalog. Fields of the other kind are cleared.
func (s *Service) resolve(ctx context.Context, d *Detail, company, number, equipment string) error {
	labor := company != "" || number != ""
	switch {
	case labor && equipment != "":
		return ErrLaborOrEquipment
	case !labor && equipment == "":
		return ErrLaborOrEquipment
	case labor:
		if company == "" || number == "" {
			return ErrLaborIncomplete
		}
		emp, err := s.catalog.FindEmployee(ctx, company, number)
		if err != nil {
			if errors.Is(err, roster.ErrEmployeeNotFound) {
				return roster.ErrEmployeeNotFound
			}
			return s.internal(ctx, "failed to look up employee", err)
		}
		d.CompanyName, d.EmployeeNumber, d.EquipmentCode = company, number, ""
		d.Designation = emp.FullName
	default:
		eq, err := s.catalog.FindEquipment(ctx, equipment)
		if err != nil {
			if errors.Is(err, roster.ErrEquipmentNotFound) {
				return roster.ErrEquipmentNotFound
			}
			return s.internal(ctx, "failed to look up equipment", err)
		}
		d.CompanyName, d.EmployeeNumber, d.EquipmentCode = "", "", equipment
		d.Designation = eq.Designation
	}
	return nil
}

func (s *Service) mutableHeader(ctx context.Context, a Actor, stamp string) (*Header, error) {
	h, err := s.loadHeader(ctx, stamp)
	if err != nil {
		return nil, err
	}
	if err := s.policy.AssertMutable(ctx, h, a); err != nil {
		return nil, err
	}
	return h, nil
}

func (s *Service) loadHeader(ctx context.Context, stamp string) (*Header, error) {
	h, err := s.headers.Get(ctx, stamp)
	if err != nil {
		if errors.Is(err, ErrHeaderNotFound) {
			return nil, ErrHeaderNotFound
		}
		return nil, s.internal(ctx, "failed to load header", err)
	}
	return h, nil
}

func (s *Service) loadDetail(ctx context.Context, stamp string) (*Detail, error) {
	d, err := s.details.Get(ctx, stamp)
	if err != nil {
		if errors.Is(err, ErrDetailNotFound) {
			return nil, ErrDetailNotFound
		}
		return nil, s.internal(ctx, "failed to load detail", err)
	}
	return d, nil
}

func (s *Service) checkSite(ctx context.Context, code string) error {
	if _, err := s.catalog.FindSite(ctx, code); err != nil {
		if errors.Is(err, roster.ErrSiteNotFound) {
			return roster.ErrSiteNotFound
		}
		return s.internal(ctx, "failed to look up site", err)
	}
	return nil
}

func (s *Service) internal(ctx context.Context, msg string, err error) error {
	slog.ErrorContext(ctx, msg, logger.Component("worklog"), logger.Error(err))
	return apperror.Internal(msg, err)
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}
