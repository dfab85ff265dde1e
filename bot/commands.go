package bot

import (
	"context"

	"github.com/bwmarrin/discordgo"

	apperr "github.com/CS-5/apalto-bot/errors"
)

// CommandAdmin manages the application's slash commands over REST, without
// opening a gateway session. An empty guild id targets global commands.
type CommandAdmin struct {
	session *discordgo.Session
	appID   string
}

// NewCommandAdmin returns an admin for the application appID. When appID is
// empty the bot user's id is used, which equals the application id.
func NewCommandAdmin(ctx context.Context, token, appID string) (*CommandAdmin, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeDiscordRequestFailure, "creating discord session")
	}
	if appID == "" {
		me, err := s.User("@me", discordgo.WithContext(ctx))
		if err != nil {
			return nil, apperr.Wrap(err, apperr.CodeDiscordRequestFailure, "resolving application id")
		}
		appID = me.ID
	}
	return &CommandAdmin{session: s, appID: appID}, nil
}

func (a *CommandAdmin) AppID() string { return a.appID }

// Deploy replaces the commands of guildID with Commands().
func (a *CommandAdmin) Deploy(ctx context.Context, guildID string) ([]*discordgo.ApplicationCommand, error) {
	created, err := a.session.ApplicationCommandBulkOverwrite(a.appID, guildID, Commands(), discordgo.WithContext(ctx))
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeDiscordRequestFailure, "deploying commands", apperr.FieldGuildID(guildID))
	}
	return created, nil
}

func (a *CommandAdmin) List(ctx context.Context, guildID string) ([]*discordgo.ApplicationCommand, error) {
	cmds, err := a.session.ApplicationCommands(a.appID, guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeDiscordRequestFailure, "listing commands", apperr.FieldGuildID(guildID))
	}
	return cmds, nil
}

// Clear removes every command of guildID and returns how many there were.
func (a *CommandAdmin) Clear(ctx context.Context, guildID string) (int, error) {
	existing, err := a.List(ctx, guildID)
	if err != nil {
		return 0, err
	}
	if len(existing) == 0 {
		return 0, nil
	}
	_, err = a.session.ApplicationCommandBulkOverwrite(a.appID, guildID, []*discordgo.ApplicationCommand{}, discordgo.WithContext(ctx))
	if err != nil {
		return 0, apperr.Wrap(err, apperr.CodeDiscordRequestFailure, "clearing commands", apperr.FieldGuildID(guildID))
	}
	return len(existing), nil
}
