package auth

import (
	"sort"

	"sitepulse/pkg/contracts/domain"
)

// Permission keys checked by handlers and services.
const (
	PermDataUpload       = "data.upload"
	PermDataProcess      = "data.process"
	PermDataViewAll      = "data.view_all"
	PermDataViewAssigned = "data.view_assigned"

	PermReportsGenerate  = "reports.generate"
	PermReportsExcel     = "reports.excel"
	PermReportsWord      = "reports.word"
	PermReportsPortfolio = "reports.portfolio"

	PermUsersCreate  = "users.create"
	PermUsersEdit    = "users.edit"
	PermUsersDelete  = "users.delete"
	PermUsersViewAll = "users.view_all"

	PermBuildingsViewAll      = "buildings.view_all"
	PermBuildingsViewAssigned = "buildings.view_assigned"
	PermBuildingsEditAll      = "buildings.edit_all"
	PermBuildingsEditAssigned = "buildings.edit_assigned"

	PermSystemAdmin         = "system.admin"
	PermDefectsApprove      = "defects.approve"
	PermDefectsUpdateStatus = "defects.update_status"
)

// rolePermissions is the static permission matrix. Admin is handled as
// a wildcard in Can rather than enumerated here.
var rolePermissions = map[domain.Role]map[string]bool{
	domain.RolePropertyDeveloper: {
		PermDataViewAssigned:      true,
		PermReportsGenerate:       true,
		PermReportsExcel:          true,
		PermReportsWord:           true,
		PermReportsPortfolio:      true,
		PermBuildingsViewAssigned: true,
		PermDefectsApprove:        true,
	},
	domain.RoleProjectManager: {
		PermDataUpload:            true,
		PermDataProcess:           true,
		PermDataViewAssigned:      true,
		PermReportsGenerate:       true,
		PermReportsExcel:          true,
		PermReportsWord:           true,
		PermBuildingsViewAssigned: true,
		PermBuildingsEditAssigned: true,
		PermDefectsApprove:        true,
		PermDefectsUpdateStatus:   true,
	},
	domain.RoleInspector: {
		PermDataUpload:            true,
		PermDataProcess:           true,
		PermDataViewAssigned:      true,
		PermReportsGenerate:       true,
		PermReportsExcel:          true,
		PermReportsWord:           true,
		PermBuildingsViewAssigned: true,
	},
	domain.RoleBuilder: {
		PermDataViewAssigned:      true,
		PermReportsGenerate:       true,
		PermBuildingsViewAssigned: true,
		PermDefectsUpdateStatus:   true,
	},
}

// Can reports whether a role holds a permission. Admin holds everything.
func Can(role domain.Role, permission string) bool {
	if role == domain.RoleAdmin {
		return true
	}
	return rolePermissions[role][permission]
}

// Permissions returns the full permission set for a role, used by the
// login response so the frontend can shape its navigation.
func Permissions(role domain.Role) []string {
	if role == domain.RoleAdmin {
		all := map[string]bool{
			PermSystemAdmin: true, PermUsersCreate: true, PermUsersEdit: true,
			PermUsersDelete: true, PermUsersViewAll: true,
			PermDataUpload: true, PermDataProcess: true, PermDataViewAll: true,
			PermReportsGenerate: true, PermReportsExcel: true, PermReportsWord: true,
			PermReportsPortfolio: true,
			PermBuildingsViewAll: true, PermBuildingsEditAll: true,
			PermDefectsApprove: true, PermDefectsUpdateStatus: true,
		}
		return sortedKeys(all)
	}
	return sortedKeys(rolePermissions[role])
}

// CanViewAllData reports whether the role sees every building without
// explicit grants.
func CanViewAllData(role domain.Role) bool {
	return Can(role, PermDataViewAll)
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k, ok := range m {
		if ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
