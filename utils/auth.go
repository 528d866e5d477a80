package utils

import (
	"slices"

	"modbot/model"
)

// Permission levels, lowest first.
type PermissionLevel int

const (
	GuestPermission PermissionLevel = iota
	EditorPermission
	ManagerPermission
	DeveloperPermission
)

// CheckPermission returns the highest level the member holds. Members with the
// Administrator permission count as managers.
func CheckPermission(memberRoleIDs []string, userID string, isAdmin bool, cfg *model.GuildConfig, developerUserIDs []string) PermissionLevel {
	if slices.Contains(developerUserIDs, userID) {
		return DeveloperPermission
	}
	if isAdmin {
		return ManagerPermission
	}
	if cfg == nil {
		return GuestPermission
	}

	for _, roleID := range memberRoleIDs {
		if slices.Contains(cfg.ManagerRoleIDs, roleID) {
			return ManagerPermission
		}
	}
	for _, roleID := range memberRoleIDs {
		if slices.Contains(cfg.EditorRoleIDs, roleID) {
			return EditorPermission
		}
	}
	return GuestPermission
}
