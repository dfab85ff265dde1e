// Package bot connects the pair lifecycle to Discord: gateway handlers,
// the /apalto command and its leader panel.
package bot

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/CS-5/apalto-bot/clock"
	"github.com/CS-5/apalto-bot/config"
	apperr "github.com/CS-5/apalto-bot/errors"
	"github.com/CS-5/apalto-bot/voice"
)

const (
	interactionTimeout = 30 * time.Second
	eventTimeout       = 15 * time.Second
	restoreTimeout     = 2 * time.Minute
)

type (
	Bot struct {
		session        *discordgo.Session
		cfg            *config.Config
		client         *discordClient
		manager        *voice.Manager
		selections     *selections
		log            *slog.Logger
		keepCommands   bool
		mu             sync.Mutex
		registeredCmds map[string][]*discordgo.ApplicationCommand // guildID -> commands
	}

	// Options tunes a Bot. The zero value is ready for production.
	Options struct {
		// KeepCommands leaves the guild commands registered on Stop.
		KeepCommands bool
		Logger       *slog.Logger
		Clock        clock.Clock
	}
)

func NewBot(cfg *config.Config, opts Options) (*Bot, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, apperr.Errorf(apperr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}

	dg, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeDiscordRequestFailure, "creating discord session")
	}
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client := newDiscordClient(dg)
	bot := &Bot{
		session: dg,
		cfg:     cfg,
		client:  client,
		manager: voice.NewManager(voice.Options{
			Client:        client,
			Clock:         opts.Clock,
			EmptyDuration: cfg.EmptyDuration(),
			Store:         voice.NewStore(cfg.StateFile),
			Logger:        logger,
		}),
		selections:     newSelections(selectionsSize, selectionsTTL),
		log:            logger.With("component", "bot"),
		keepCommands:   opts.KeepCommands,
		registeredCmds: make(map[string][]*discordgo.ApplicationCommand),
	}

	// Ready registers commands in the bot's guilds and resumes persisted pairs
	dg.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		bot.ready(s, r)
	})

	// Voice state update handler (join, leave or move)
	dg.AddHandler(func(s *discordgo.Session, vsu *discordgo.VoiceStateUpdate) {
		bot.voiceStateUpdate(vsu)
	})

	// Slash commands, panel components and modals
	dg.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		bot.interactionCreate(s, i)
	})

	return bot, nil
}

func (b *Bot) Start() error {
	if err := b.session.Open(); err != nil {
		return apperr.Wrap(err, apperr.CodeDiscordRequestFailure, "opening gateway session")
	}
	return nil
}

// Stop cancels pending deletion timers, unregisters the commands this
// process registered (unless KeepCommands) and closes the session. Pairs
// stay on Discord and in the state file.
func (b *Bot) Stop() {
	b.manager.Shutdown()

	if !b.keepCommands && b.session.State.User != nil {
		b.mu.Lock()
		registered := b.registeredCmds
		b.registeredCmds = make(map[string][]*discordgo.ApplicationCommand)
		b.mu.Unlock()

		for guildID, commands := range registered {
			for _, cmd := range commands {
				err := b.session.ApplicationCommandDelete(b.session.State.User.ID, guildID, cmd.ID)
				if err != nil {
					b.log.Warn("deleting command failed", "command", cmd.Name, "guild_id", guildID, "error", err)
				}
			}
		}
	}

	if err := b.session.Close(); err != nil {
		b.log.Warn("closing session failed", "error", err)
	}
}

func (b *Bot) ready(s *discordgo.Session, r *discordgo.Ready) {
	b.log.Info("logged in", "user", r.User.Username, "guilds", len(r.Guilds))

	for _, guild := range r.Guilds {
		b.registerCommands(s, guild.ID)
	}

	ctx, cancel := context.WithTimeout(context.Background(), restoreTimeout)
	defer cancel()

	n, err := b.manager.Restore(ctx)
	if err != nil {
		b.log.Error("restoring pairs failed", "path", b.cfg.StateFile, "error", err)
		return
	}
	b.log.Info("tracking pairs", "pairs", n, "empty_duration", b.manager.EmptyDuration())
}

// registerCommands overwrites the guild's commands with ours. Ready fires
// again after a reconnect; the overwrite makes that harmless.
func (b *Bot) registerCommands(s *discordgo.Session, guildID string) {
	created, err := s.ApplicationCommandBulkOverwrite(s.State.User.ID, guildID, Commands())
	if err != nil {
		b.log.Error("registering commands failed", "guild_id", guildID, "error", err)
		return
	}

	b.mu.Lock()
	b.registeredCmds[guildID] = created
	b.mu.Unlock()

	b.log.Debug("registered commands", "guild_id", guildID, "count", len(created))
}

func (b *Bot) voiceStateUpdate(vsu *discordgo.VoiceStateUpdate) {
	var before string
	if vsu.BeforeUpdate != nil {
		before = vsu.BeforeUpdate.ChannelID
	}
	// Mute, deafen and stream toggles keep the channel.
	if before == vsu.ChannelID {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()
	b.manager.HandleVoiceStateUpdate(ctx, before, vsu.ChannelID)
}

func (b *Bot) interactionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		if i.ApplicationCommandData().Name == commandName {
			b.handleApalto(s, i)
		}
	case discordgo.InteractionMessageComponent:
		if id := i.MessageComponentData().CustomID; isPanelID(id) {
			b.handlePanel(s, i, id)
		}
	case discordgo.InteractionModalSubmit:
		if id := i.ModalSubmitData().CustomID; isPanelID(id) {
			b.handlePanel(s, i, id)
		}
	}
}

// respond answers the interaction with an ephemeral message.
func (b *Bot) respond(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, components []discordgo.MessageComponent) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds:     []*discordgo.MessageEmbed{embed},
			Components: components,
			Flags:      discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		b.log.Warn("responding to interaction failed", "interaction_id", i.ID, "error", err)
	}
}

func (b *Bot) deferEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate) bool {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	})
	if err != nil {
		b.log.Warn("deferring interaction failed", "interaction_id", i.ID, "error", err)
		return false
	}
	return true
}

// editReply replaces the deferred response. nil components leave the
// current ones in place.
func (b *Bot) editReply(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, components []discordgo.MessageComponent) {
	edit := &discordgo.WebhookEdit{Embeds: &[]*discordgo.MessageEmbed{embed}}
	if components != nil {
		edit.Components = &components
	}
	if _, err := s.InteractionResponseEdit(i.Interaction, edit); err != nil {
		b.log.Warn("editing interaction response failed", "interaction_id", i.ID, "error", err)
	}
}

func (b *Bot) followup(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) {
	_, err := s.FollowupMessageCreate(i.Interaction, false, &discordgo.WebhookParams{
		Embeds: []*discordgo.MessageEmbed{embed},
		Flags:  discordgo.MessageFlagsEphemeral,
	})
	if err != nil {
		b.log.Warn("sending followup failed", "interaction_id", i.ID, "error", err)
	}
}
