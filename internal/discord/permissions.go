package discord

import (
	"slices"

	"github.com/bwmarrin/discordgo"
)

// PermissionChecker decides who may start and stop recordings.
type PermissionChecker struct {
	roleID string
}

// NewPermissionChecker creates a PermissionChecker for the given recorder
// role ID.
func NewPermissionChecker(roleID string) *PermissionChecker {
	return &PermissionChecker{roleID: roleID}
}

// CanRecord reports whether the interaction author may control recordings.
// With no role configured everyone may. Otherwise the member needs the role
// or the Administrator permission. Interactions without a Member (direct
// messages) are never allowed.
func (p *PermissionChecker) CanRecord(i *discordgo.InteractionCreate) bool {
	if p.roleID == "" {
		return true
	}
	if i.Member == nil {
		return false
	}
	if i.Member.Permissions&discordgo.PermissionAdministrator != 0 {
		return true
	}
	return slices.Contains(i.Member.Roles, p.roleID)
}
