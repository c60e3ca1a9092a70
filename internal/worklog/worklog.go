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

// Package worklog holds the daily site logs: one header per site and day,
// and the labor and equipment rows recorded under it.
//
// Every header is an owned record. Reads require ownership or the supervisor
// role; mutations additionally require the creation-day lock to be open.
package worklog

import (
	"context"
	"time"

	"github.com/opentrusty/obralog/internal/apperror"
	"github.com/opentrusty/obralog/internal/roster"
	"github.com/opentrusty/obralog/internal/token"
)

// Domain errors
var (
	ErrHeaderNotFound   = apperror.New(apperror.KindNotFound, "header not found")
	ErrDetailNotFound   = apperror.New(apperror.KindNotFound, "detail not found")
	ErrNothingToImport  = apperror.New(apperror.KindNotFound, "no details found to import")
	ErrAccessDenied     = apperror.New(apperror.KindForbidden, "access denied to this header")
	ErrDayLocked        = apperror.New(apperror.KindForbidden, "cannot modify this record after its creation day")
	ErrNotOwner         = apperror.New(apperror.KindForbidden, "you cannot edit this header")
	ErrForemanRequired  = apperror.New(apperror.KindValidation, "foreman name cannot be empty")
	ErrSiteRequired     = apperror.New(apperror.KindValidation, "site code is required")
	ErrInvalidDate      = apperror.New(apperror.KindValidation, "date must be formatted as YYYY-MM-DD")
	ErrLaborOrEquipment = apperror.New(apperror.KindValidation, "row must be either labor or equipment")
	ErrLaborIncomplete  = apperror.New(apperror.KindValidation, "company and employee number are required for a labor row")
	ErrInvalidQuantity  = apperror.New(apperror.KindValidation, "quantity cannot be negative")
	ErrHeaderRequired   = apperror.New(apperror.KindValidation, "header stamp is required")
)

// Stamp prefixes of the natural keys.
const (
	HeaderStampPrefix = "MDOH"
	DetailStampPrefix = "MDOD"
)

// PageSize is the number of headers per list page.
const PageSize = 10

// DateLayout is the wire format of work dates.
const DateLayout = "2006-01-02"

// Actor is the caller of a worklog operation.
type Actor struct {
	IdentityID      int64
	OrganizationKey string
	MemberKey       string
	// DisplayName is matched against the header foreman name.
	DisplayName string
	// Roles must come from the permission matrix, not from token claims.
	Roles token.RoleSet
}

// Header is a daily site log.
type Header struct {
	Stamp           string    `json:"stamp"`
	OwnerID         int64     `json:"ownerId"`
	OrganizationKey string    `json:"organizationKey"`
	MemberKey       string    `json:"memberKey"`
	WorkDate        time.Time `json:"workDate"`
	SiteCode        string    `json:"siteCode"`
	ForemanName     string    `json:"foremanName"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Detail is one labor or equipment row of a header.
type Detail struct {
	Stamp          string  `json:"stamp"`
	HeaderStamp    string  `json:"headerStamp"`
	CompanyName    string  `json:"companyName,omitempty"`
	EmployeeNumber string  `json:"employeeNumber,omitempty"`
	EquipmentCode  string  `json:"equipmentCode,omitempty"`
	Designation    string  `json:"designation"`
	Quantity       float64 `json:"quantity"`
}

// IsLabor reports whether the row records an employee.
func (d *Detail) IsLabor() bool {
	return d.CompanyName != "" || d.EmployeeNumber != ""
}

// Sheet is a header together with its details.
type Sheet struct {
	Header  *Header   `json:"header"`
	Details []*Detail `json:"details"`
}

// Page is one page of headers, newest first.
type Page struct {
	Page       int       `json:"page"`
	Total      int       `json:"total"`
	TotalPages int       `json:"totalPages"`
	Items      []*Header `json:"items"`
}

// HeaderFilter scopes a header listing. A zero OwnerID with empty keys lists
// every header.
type HeaderFilter struct {
	OwnerID         int64
	OrganizationKey string
	MemberKey       string
	Limit           int
	Offset          int
}

// HeaderRepository defines the interface for header persistence
type HeaderRepository interface {
	Create(ctx context.Context, h *Header) error
	Get(ctx context.Context, stamp string) (*Header, error)
	// List returns headers matching f, newest first, and the total count.
	// A scoped filter matches on OwnerID or on the natural key pair.
	List(ctx context.Context, f HeaderFilter) ([]*Header, int, error)
	// ListByOwnerAndDate returns the headers ownerID created for workDate.
	ListByOwnerAndDate(ctx context.Context, ownerID int64, workDate time.Time) ([]*Header, error)
	Update(ctx context.Context, h *Header) error
	Delete(ctx context.Context, stamp string) error
}

// DetailRepository defines the interface for detail persistence
type DetailRepository interface {
	Create(ctx context.Context, d *Detail) error
	CreateBatch(ctx context.Context, details []*Detail) error
	Get(ctx context.Context, stamp string) (*Detail, error)
	// ListByHeaders returns the details of the given headers ordered by stamp.
	ListByHeaders(ctx context.Context, headerStamps ...string) ([]*Detail, error)
	Update(ctx context.Context, d *Detail) error
	Delete(ctx context.Context, stamp string) error
	DeleteByHeader(ctx context.Context, headerStamp string) error
}

// Catalog is the read-only roster the worklog resolves codes against.
type Catalog interface {
	FindEmployee(ctx context.Context, organizationKey, memberKey string) (*roster.Employee, error)
	FindSite(ctx context.Context, code string) (*roster.Site, error)
	FindEquipment(ctx context.Context, code string) (*roster.Equipment, error)
}
