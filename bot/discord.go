package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"

	apperr "github.com/CS-5/apalto-bot/errors"
	"github.com/CS-5/apalto-bot/voice"
)

// discordClient serves voice.Client from a live session. Channel metadata
// comes from the REST API; occupancy comes from the gateway state cache,
// which discordgo updates before our handlers run.
type discordClient struct {
	session *discordgo.Session
}

func newDiscordClient(s *discordgo.Session) *discordClient {
	return &discordClient{session: s}
}

func (c *discordClient) Channel(ctx context.Context, channelID string) (*voice.Channel, error) {
	ch, err := c.session.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, channelError(err, channelID, "fetching channel")
	}

	out := toChannel(ch)
	if ch.Type == discordgo.ChannelTypeGuildVoice || ch.Type == discordgo.ChannelTypeGuildStageVoice {
		members, err := c.voiceMembers(ch.GuildID, ch.ID)
		if err != nil {
			return nil, err
		}
		out.Members = members
	}
	return out, nil
}

// voiceMembers counts the users connected to channelID. A guild the state
// has not received yet is reported as a transient failure so that nobody
// mistakes a cold cache for an empty channel.
func (c *discordClient) voiceMembers(guildID, channelID string) (int, error) {
	guild, err := c.session.State.Guild(guildID)
	if err != nil {
		return 0, fmt.Errorf("guild %s not in state: %w", guildID, err)
	}

	c.session.State.RLock()
	defer c.session.State.RUnlock()

	if guild.Unavailable {
		return 0, fmt.Errorf("guild %s is unavailable", guildID)
	}
	count := 0
	for _, vs := range guild.VoiceStates {
		if vs.ChannelID == channelID {
			count++
		}
	}
	return count, nil
}

func (c *discordClient) CreateVoiceChannel(ctx context.Context, guildID string, spec voice.ChannelSpec) (*voice.Channel, error) {
	ch, err := c.session.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
		Name:                 spec.Name,
		Type:                 discordgo.ChannelTypeGuildVoice,
		ParentID:             spec.ParentID,
		PermissionOverwrites: spec.Overwrites,
	}, discordgo.WithContext(ctx), discordgo.WithAuditLogReason(spec.Reason))
	if err != nil {
		return nil, fmt.Errorf("creating voice channel %q: %w", spec.Name, err)
	}
	return toChannel(ch), nil
}

func (c *discordClient) DeleteChannel(ctx context.Context, channelID, reason string) error {
	_, err := c.session.ChannelDelete(channelID, discordgo.WithContext(ctx), discordgo.WithAuditLogReason(reason))
	if err != nil {
		return channelError(err, channelID, "deleting channel")
	}
	return nil
}

func (c *discordClient) SetChannelOverwrites(ctx context.Context, channelID string, overwrites []*discordgo.PermissionOverwrite) error {
	_, err := c.session.ChannelEditComplex(channelID, &discordgo.ChannelEdit{
		PermissionOverwrites: overwrites,
	}, discordgo.WithContext(ctx), discordgo.WithAuditLogReason("apalto: líderes"))
	if err != nil {
		return channelError(err, channelID, "editing channel overwrites")
	}
	return nil
}

// guildRoleIDs returns the ids of the guild's roles, preferring the state
// cache.
func (c *discordClient) guildRoleIDs(ctx context.Context, guildID string) (map[string]struct{}, error) {
	var roles []*discordgo.Role
	if guild, err := c.session.State.Guild(guildID); err == nil && !guild.Unavailable {
		c.session.State.RLock()
		roles = append(roles, guild.Roles...)
		c.session.State.RUnlock()
	}
	if len(roles) == 0 {
		fetched, err := c.session.GuildRoles(guildID, discordgo.WithContext(ctx))
		if err != nil {
			return nil, apperr.Wrapf(err, apperr.CodeDiscordRequestFailure, "fetching roles of guild %s", guildID)
		}
		roles = fetched
	}

	out := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		out[r.ID] = struct{}{}
	}
	return out, nil
}

// member fetches a guild member, reporting unknown users as not found.
func (c *discordClient) member(ctx context.Context, guildID, userID string) (*discordgo.Member, error) {
	m, err := c.session.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		if isNotFound(err, discordgo.ErrCodeUnknownMember, discordgo.ErrCodeUnknownUser) {
			return nil, apperr.Wrap(err, apperr.CodeDiscordMemberNotFound, "member not found",
				apperr.FieldGuildID(guildID), apperr.FieldUserID(userID))
		}
		return nil, apperr.Wrap(err, apperr.CodeDiscordRequestFailure, "fetching member",
			apperr.FieldGuildID(guildID), apperr.FieldUserID(userID))
	}
	return m, nil
}

// channelError codes an unknown-channel response as not found and leaves
// any other failure uncoded.
func channelError(err error, channelID, op string) error {
	if isNotFound(err, discordgo.ErrCodeUnknownChannel) {
		return apperr.Wrap(err, apperr.CodeChannelNotFound, op, apperr.FieldChannelID(channelID))
	}
	return fmt.Errorf("%s %s: %w", op, channelID, err)
}

func isNotFound(err error, codes ...int) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return false
	}
	if restErr.Message != nil {
		for _, code := range codes {
			if restErr.Message.Code == code {
				return true
			}
		}
	}
	return restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound
}

func toChannel(ch *discordgo.Channel) *voice.Channel {
	return &voice.Channel{
		ID:         ch.ID,
		GuildID:    ch.GuildID,
		ParentID:   ch.ParentID,
		Name:       ch.Name,
		Type:       ch.Type,
		Overwrites: ch.PermissionOverwrites,
	}
}
