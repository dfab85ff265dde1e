package voice

import (
	"context"
	"errors"

	apperr "github.com/CS-5/apalto-bot/errors"
	"github.com/CS-5/apalto-bot/perms"
)

// GrantRequest names the leaders chosen for a pair's channels. An empty
// leader id leaves that channel untouched.
type GrantRequest struct {
	GuildID   string
	Team1ID   string
	Team2ID   string
	Leader1ID string
	Leader2ID string
}

// GrantResult reports the outcome for each team channel. A nil error with
// Granted false means no leader was requested for that team.
type GrantResult struct {
	Team1Granted bool
	Team2Granted bool
	Team1Err     error
	Team2Err     error
}

// Err joins both per-channel failures.
func (r GrantResult) Err() error {
	return errors.Join(r.Team1Err, r.Team2Err)
}

// GrantLeaders merges the leader tier into each chosen leader's overwrite
// on their team's channel. The channels are handled independently: a
// failure on one does not prevent the other from being updated.
func (m *Manager) GrantLeaders(ctx context.Context, req GrantRequest) GrantResult {
	var res GrantResult
	if req.Leader1ID != "" {
		res.Team1Err = m.grantLeader(ctx, req.GuildID, req.Team1ID, req.Leader1ID)
		res.Team1Granted = res.Team1Err == nil
	}
	if req.Leader2ID != "" {
		res.Team2Err = m.grantLeader(ctx, req.GuildID, req.Team2ID, req.Leader2ID)
		res.Team2Granted = res.Team2Err == nil
	}
	return res
}

func (m *Manager) grantLeader(ctx context.Context, guildID, channelID, userID string) error {
	fields := []apperr.Attr{
		apperr.FieldGuildID(guildID),
		apperr.FieldChannelID(channelID),
		apperr.FieldUserID(userID),
	}

	ch, err := m.client.Channel(ctx, channelID)
	if err != nil {
		if apperr.IsNotFound(err) {
			if p, ok := m.registry.ByChannel(channelID); ok {
				m.dropOrphan(p, err)
			}
			return apperr.Wrap(err, apperr.CodeChannelNotFound, "team channel not found", fields...)
		}
		return apperr.Wrap(err, apperr.CodeUpstreamFailure, "fetching team channel", fields...)
	}
	if ch.GuildID != guildID {
		return apperr.New(apperr.CodeChannelNotFound, "team channel is not in this guild", fields...)
	}

	merged := perms.MergeLeader(ch.Overwrites, userID)
	if err := m.client.SetChannelOverwrites(ctx, channelID, merged); err != nil {
		m.log.Error("writing leader overwrite failed",
			"channel_id", channelID, "user_id", userID, "error", err)
		if apperr.IsNotFound(err) {
			return apperr.Wrap(err, apperr.CodeChannelNotFound, "team channel not found", fields...)
		}
		return apperr.Wrap(err, apperr.CodePermissionEditFailed,
			"writing leader overwrite; check that the bot can manage roles on the channel", fields...)
	}

	m.log.Info("leader granted", "channel_id", channelID, "user_id", userID, "guild_id", guildID)
	return nil
}
