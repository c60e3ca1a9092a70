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

package rbac

// Names seeded by the bootstrap step. Role and module names are compared
// case-sensitively.
const (
	// RoleAdmin may administer roles.
	RoleAdmin = "ADMIN"

	// RoleSupervisor bypasses record ownership and the creation-day lock.
	RoleSupervisor = "supervisor"

	// ModuleHR scopes identity, module and grant administration.
	ModuleHR = "HR"

	// ModuleSiteLog scopes daily site-log headers and details.
	ModuleSiteLog = "MDO"
)

// Action is one of the four permission flags on a grant.
type Action string

const (
	ActionRead   Action = "read"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// ParseAction validates an action name.
func ParseAction(s string) (Action, bool) {
	switch a := Action(s); a {
	case ActionRead, ActionCreate, ActionUpdate, ActionDelete:
		return a, true
	default:
		return "", false
	}
}
