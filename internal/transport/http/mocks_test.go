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

package http

import (
	"context"

	"github.com/opentrusty/obralog/internal/identity"
	"github.com/opentrusty/obralog/internal/rbac"
	"github.com/opentrusty/obralog/internal/roster"
	"github.com/opentrusty/obralog/internal/worklog"
	"github.com/stretchr/testify/mock"
)

// MockCredentials is a testify mock of Credentials.
type MockCredentials struct{ mock.Mock }

func (m *MockCredentials) Register(ctx context.Context, org, member, password string) (*identity.Identity, error) {
	args := m.Called(ctx, org, member, password)
	return ptr[identity.Identity](args.Get(0)), args.Error(1)
}

func (m *MockCredentials) Login(ctx context.Context, org, member, password string) (*identity.Session, error) {
	args := m.Called(ctx, org, member, password)
	return ptr[identity.Session](args.Get(0)), args.Error(1)
}

func (m *MockCredentials) Refresh(ctx context.Context, refreshToken string) (*identity.Session, error) {
	args := m.Called(ctx, refreshToken)
	return ptr[identity.Session](args.Get(0)), args.Error(1)
}

func (m *MockCredentials) Logout(ctx context.Context, identityID int64) error {
	return m.Called(ctx, identityID).Error(0)
}

func (m *MockCredentials) ForgotPassword(ctx context.Context, org, member, contact string) (*identity.ResetTicket, error) {
	args := m.Called(ctx, org, member, contact)
	return ptr[identity.ResetTicket](args.Get(0)), args.Error(1)
}

func (m *MockCredentials) ResetPassword(ctx context.Context, resetToken, org, member, newPassword string) error {
	return m.Called(ctx, resetToken, org, member, newPassword).Error(0)
}

func (m *MockCredentials) Get(ctx context.Context, identityID int64) (*identity.Identity, error) {
	args := m.Called(ctx, identityID)
	return ptr[identity.Identity](args.Get(0)), args.Error(1)
}

func (m *MockCredentials) List(ctx context.Context) ([]*identity.Identity, error) {
	args := m.Called(ctx)
	list, _ := args.Get(0).([]*identity.Identity)
	return list, args.Error(1)
}

// MockAccessAdmin is a testify mock of AccessAdmin.
type MockAccessAdmin struct{ mock.Mock }

func (m *MockAccessAdmin) Assign(ctx context.Context, req rbac.AssignRequest) (*rbac.Grant, error) {
	args := m.Called(ctx, req)
	return ptr[rbac.Grant](args.Get(0)), args.Error(1)
}

func (m *MockAccessAdmin) GrantsOf(ctx context.Context, identityID int64) ([]*rbac.Grant, error) {
	args := m.Called(ctx, identityID)
	list, _ := args.Get(0).([]*rbac.Grant)
	return list, args.Error(1)
}

func (m *MockAccessAdmin) RolesOf(ctx context.Context, identityID int64) ([]string, error) {
	args := m.Called(ctx, identityID)
	list, _ := args.Get(0).([]string)
	return list, args.Error(1)
}

func (m *MockAccessAdmin) CreateModule(ctx context.Context, actorID int64, code, name, description string) (*rbac.Module, error) {
	args := m.Called(ctx, actorID, code, name, description)
	return ptr[rbac.Module](args.Get(0)), args.Error(1)
}

func (m *MockAccessAdmin) GetModule(ctx context.Context, id int64) (*rbac.Module, error) {
	args := m.Called(ctx, id)
	return ptr[rbac.Module](args.Get(0)), args.Error(1)
}

func (m *MockAccessAdmin) ListModules(ctx context.Context) ([]*rbac.Module, error) {
	args := m.Called(ctx)
	list, _ := args.Get(0).([]*rbac.Module)
	return list, args.Error(1)
}

func (m *MockAccessAdmin) UpdateModule(ctx context.Context, id int64, upd rbac.ModuleUpdate) (*rbac.Module, error) {
	args := m.Called(ctx, id, upd)
	return ptr[rbac.Module](args.Get(0)), args.Error(1)
}

func (m *MockAccessAdmin) DeleteModule(ctx context.Context, actorID, id int64) error {
	return m.Called(ctx, actorID, id).Error(0)
}

func (m *MockAccessAdmin) CreateRole(ctx context.Context, actorID int64, name, description string) (*rbac.Role, error) {
	args := m.Called(ctx, actorID, name, description)
	return ptr[rbac.Role](args.Get(0)), args.Error(1)
}

func (m *MockAccessAdmin) GetRole(ctx context.Context, id int64) (*rbac.Role, error) {
	args := m.Called(ctx, id)
	return ptr[rbac.Role](args.Get(0)), args.Error(1)
}

func (m *MockAccessAdmin) ListRoles(ctx context.Context) ([]*rbac.Role, error) {
	args := m.Called(ctx)
	list, _ := args.Get(0).([]*rbac.Role)
	return list, args.Error(1)
}

func (m *MockAccessAdmin) UpdateRole(ctx context.Context, id int64, upd rbac.RoleUpdate) (*rbac.Role, error) {
	args := m.Called(ctx, id, upd)
	return ptr[rbac.Role](args.Get(0)), args.Error(1)
}

func (m *MockAccessAdmin) DeleteRole(ctx context.Context, actorID, id int64) error {
	return m.Called(ctx, actorID, id).Error(0)
}

// MockSiteLog is a testify mock of SiteLog.
type MockSiteLog struct{ mock.Mock }

func (m *MockSiteLog) CreateHeader(ctx context.Context, a worklog.Actor, in worklog.HeaderInput) (*worklog.Header, error) {
	args := m.Called(ctx, a, in)
	return ptr[worklog.Header](args.Get(0)), args.Error(1)
}

func (m *MockSiteLog) ListHeaders(ctx context.Context, a worklog.Actor, page int) (*worklog.Page, error) {
	args := m.Called(ctx, a, page)
	return ptr[worklog.Page](args.Get(0)), args.Error(1)
}

func (m *MockSiteLog) GetHeader(ctx context.Context, a worklog.Actor, stamp string) (*worklog.Header, error) {
	args := m.Called(ctx, a, stamp)
	return ptr[worklog.Header](args.Get(0)), args.Error(1)
}

func (m *MockSiteLog) GetSheet(ctx context.Context, a worklog.Actor, stamp string) (*worklog.Sheet, error) {
	args := m.Called(ctx, a, stamp)
	return ptr[worklog.Sheet](args.Get(0)), args.Error(1)
}

func (m *MockSiteLog) UpdateHeader(ctx context.Context, a worklog.Actor, stamp string, upd worklog.HeaderUpdate) (*worklog.Header, error) {
	args := m.Called(ctx, a, stamp, upd)
	return ptr[worklog.Header](args.Get(0)), args.Error(1)
}

func (m *MockSiteLog) DeleteHeader(ctx context.Context, a worklog.Actor, stamp string) error {
	return m.Called(ctx, a, stamp).Error(0)
}

func (m *MockSiteLog) CreateDetail(ctx context.Context, a worklog.Actor, in worklog.DetailInput) (*worklog.Detail, error) {
	args := m.Called(ctx, a, in)
	return ptr[worklog.Detail](args.Get(0)), args.Error(1)
}

func (m *MockSiteLog) GetDetail(ctx context.Context, a worklog.Actor, stamp string) (*worklog.Detail, error) {
	args := m.Called(ctx, a, stamp)
	return ptr[worklog.Detail](args.Get(0)), args.Error(1)
}

func (m *MockSiteLog) ListDetails(ctx context.Context, a worklog.Actor, headerStamp string) ([]*worklog.Detail, error) {
	args := m.Called(ctx, a, headerStamp)
	list, _ := args.Get(0).([]*worklog.Detail)
	return list, args.Error(1)
}

func (m *MockSiteLog) UpdateDetail(ctx context.Context, a worklog.Actor, stamp string, upd worklog.DetailUpdate) (*worklog.Detail, error) {
	args := m.Called(ctx, a, stamp, upd)
	return ptr[worklog.Detail](args.Get(0)), args.Error(1)
}

func (m *MockSiteLog) DeleteDetail(ctx context.Context, a worklog.Actor, stamp string) error {
	return m.Called(ctx, a, stamp).Error(0)
}

func (m *MockSiteLog) ImportFromDate(ctx context.Context, a worklog.Actor, targetStamp, date string) (*worklog.ImportResult, error) {
	args := m.Called(ctx, a, targetStamp, date)
	return ptr[worklog.ImportResult](args.Get(0)), args.Error(1)
}

// MockCatalog is a testify mock of Catalog.
type MockCatalog struct{ mock.Mock }

func (m *MockCatalog) FindSite(ctx context.Context, code string) (*roster.Site, error) {
	args := m.Called(ctx, code)
	return ptr[roster.Site](args.Get(0)), args.Error(1)
}

func (m *MockCatalog) FindEquipment(ctx context.Context, code string) (*roster.Equipment, error) {
	args := m.Called(ctx, code)
	return ptr[roster.Equipment](args.Get(0)), args.Error(1)
}

func (m *MockCatalog) SearchSites(ctx context.Context, query string, limit int) ([]roster.Site, error) {
	args := m.Called(ctx, query, limit)
	list, _ := args.Get(0).([]roster.Site)
	return list, args.Error(1)
}

func (m *MockCatalog) SearchEquipment(ctx context.Context, query string, limit int) ([]roster.Equipment, error) {
	args := m.Called(ctx, query, limit)
	list, _ := args.Get(0).([]roster.Equipment)
	return list, args.Error(1)
}

// ptr returns v as *T, or nil when the mock returned nil.
func ptr[T any](v any) *T {
	p, _ := v.(*T)
	return p
}

// fakeMatrix answers guard questions from fixed tables.
type fakeMatrix struct {
	perms map[int64]map[string]rbac.Permissions
	roles map[int64][]string
	err   error
}

func newFakeMatrix() *fakeMatrix {
	return &fakeMatrix{
		perms: make(map[int64]map[string]rbac.Permissions),
		roles: make(map[int64][]string),
	}
}

func (f *fakeMatrix) grant(identityID int64, module string, p rbac.Permissions) {
	if f.perms[identityID] == nil {
		f.perms[identityID] = make(map[string]rbac.Permissions)
	}
	f.perms[identityID][module] = p
}

func (f *fakeMatrix) HasPermission(_ context.Context, identityID int64, module string, action rbac.Action) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.perms[identityID][module].Allows(action), nil
}

func (f *fakeMatrix) RolesOf(_ context.Context, identityID int64) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.roles[identityID], nil
}
