// Package perms translates access tiers into Discord permission overwrites
// for the team voice channels.
package perms

import (
	"slices"

	"github.com/bwmarrin/discordgo"
)

// Tier is the level of access a subject gets on a team channel.
type Tier int

const (
	// TierDenyConnect lets the subject see the channel but not join it.
	TierDenyConnect Tier = iota
	TierGuest
	TierStaff
	TierLeader
)

const (
	guestAllow int64 = discordgo.PermissionViewChannel |
		discordgo.PermissionVoiceConnect

	controlAllow int64 = discordgo.PermissionViewChannel |
		discordgo.PermissionVoiceConnect |
		discordgo.PermissionVoiceSpeak |
		discordgo.PermissionVoiceStreamVideo |
		discordgo.PermissionVoiceMoveMembers |
		discordgo.PermissionVoiceMuteMembers |
		discordgo.PermissionVoiceDeafenMembers |
		discordgo.PermissionManageChannels |
		discordgo.PermissionManageRoles
)

// Allow returns the allow-set of a tier.
func (t Tier) Allow() int64 {
	switch t {
	case TierDenyConnect:
		return discordgo.PermissionViewChannel
	case TierGuest:
		return guestAllow
	case TierStaff, TierLeader:
		return controlAllow
	default:
		return 0
	}
}

// Deny returns the deny-set of a tier.
func (t Tier) Deny() int64 {
	if t == TierDenyConnect {
		return discordgo.PermissionVoiceConnect
	}
	return 0
}

func (t Tier) String() string {
	switch t {
	case TierDenyConnect:
		return "deny-connect"
	case TierGuest:
		return "guest"
	case TierStaff:
		return "staff"
	case TierLeader:
		return "leader"
	default:
		return "unknown"
	}
}

// Input describes who gets which tier on a pair of team channels.
type Input struct {
	// EveryoneRoleID is the @everyone role, whose id equals the guild id.
	EveryoneRoleID string
	StaffRoleIDs   []string
	GuestRoleIDs   []string
	CreatorID      string
	LeaderIDs      []string

	// GuildRoleIDs is the guild's current role set. Configured role ids
	// missing from it are dropped.
	GuildRoleIDs map[string]struct{}
}

// Build returns the overwrites for the input in a stable order: everyone,
// guests, staff, creator, leaders. A subject listed twice keeps one entry
// with the union of its allow and deny bits.
func Build(in Input) []*discordgo.PermissionOverwrite {
	var out []*discordgo.PermissionOverwrite
	add := func(id string, kind discordgo.PermissionOverwriteType, tier Tier) {
		if id == "" {
			return
		}
		for _, ow := range out {
			if ow.ID == id {
				ow.Allow |= tier.Allow()
				ow.Deny |= tier.Deny()
				return
			}
		}
		out = append(out, &discordgo.PermissionOverwrite{
			ID:    id,
			Type:  kind,
			Allow: tier.Allow(),
			Deny:  tier.Deny(),
		})
	}
	knownRole := func(id string) bool {
		_, ok := in.GuildRoleIDs[id]
		return ok
	}

	add(in.EveryoneRoleID, discordgo.PermissionOverwriteTypeRole, TierDenyConnect)
	for _, id := range in.GuestRoleIDs {
		if knownRole(id) {
			add(id, discordgo.PermissionOverwriteTypeRole, TierGuest)
		}
	}
	for _, id := range in.StaffRoleIDs {
		if knownRole(id) {
			add(id, discordgo.PermissionOverwriteTypeRole, TierStaff)
		}
	}
	add(in.CreatorID, discordgo.PermissionOverwriteTypeMember, TierLeader)
	for _, id := range in.LeaderIDs {
		add(id, discordgo.PermissionOverwriteTypeMember, TierLeader)
	}

	return out
}

// MergeLeader returns a copy of current in which userID holds the leader
// allow-set. An existing overwrite for userID keeps its deny bits and other
// allow bits; otherwise a member overwrite is appended. current is not
// modified.
func MergeLeader(current []*discordgo.PermissionOverwrite, userID string) []*discordgo.PermissionOverwrite {
	out := make([]*discordgo.PermissionOverwrite, 0, len(current)+1)
	merged := false
	for _, ow := range current {
		if ow == nil {
			continue
		}
		cp := *ow
		if cp.ID == userID {
			cp.Allow |= TierLeader.Allow()
			merged = true
		}
		out = append(out, &cp)
	}
	if !merged {
		out = append(out, &discordgo.PermissionOverwrite{
			ID:    userID,
			Type:  discordgo.PermissionOverwriteTypeMember,
			Allow: TierLeader.Allow(),
		})
	}
	return out
}

// IsStaff reports whether a member may run the command and operate the
// leader panel: either through a native Manage Channels, Manage Server or
// Administrator permission or through one of the configured staff roles.
func IsStaff(permissions int64, roles []string, staffRoleIDs []string) bool {
	if permissions&(discordgo.PermissionManageChannels|discordgo.PermissionManageGuild|discordgo.PermissionAdministrator) != 0 {
		return true
	}
	for _, r := range roles {
		if slices.Contains(staffRoleIDs, r) {
			return true
		}
	}
	return false
}
