package voice

import (
	"context"

	"github.com/bwmarrin/discordgo"
)

// Channel is a live view of a guild channel as reported by Discord.
type Channel struct {
	ID       string
	GuildID  string
	ParentID string
	Name     string
	Type     discordgo.ChannelType

	// Members is the number of users currently connected, for voice
	// channels. It is read fresh on every fetch.
	Members int

	Overwrites []*discordgo.PermissionOverwrite
}

// ChannelSpec describes a voice channel to create.
type ChannelSpec struct {
	Name       string
	ParentID   string
	Overwrites []*discordgo.PermissionOverwrite
	Reason     string
}

// Client is the slice of the Discord API the pair lifecycle needs.
//
// Channel must return an error coded errors.CodeChannelNotFound when the
// channel no longer exists. Other failures are returned uncoded so callers
// can attach their own code.
type Client interface {
	Channel(ctx context.Context, channelID string) (*Channel, error)
	CreateVoiceChannel(ctx context.Context, guildID string, spec ChannelSpec) (*Channel, error)
	DeleteChannel(ctx context.Context, channelID, reason string) error
	SetChannelOverwrites(ctx context.Context, channelID string, overwrites []*discordgo.PermissionOverwrite) error
}
