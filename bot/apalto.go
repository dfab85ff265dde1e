package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	apperr "github.com/CS-5/apalto-bot/errors"
	"github.com/CS-5/apalto-bot/perms"
	"github.com/CS-5/apalto-bot/voice"
)

const (
	commandName    = "apalto"
	categoryOption = "categoria"
)

// Commands returns the application commands the bot serves.
func Commands() []*discordgo.ApplicationCommand {
	manageChannels := int64(discordgo.PermissionManageChannels)
	return []*discordgo.ApplicationCommand{
		{
			Name:                     commandName,
			Description:              "Cria duas calls privadas para ap-alto (TIME 1 e TIME 2).",
			DefaultMemberPermissions: &manageChannels,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionChannel,
					Name:        categoryOption,
					Description: "Categoria onde as calls serão criadas",
					Required:    false,
					ChannelTypes: []discordgo.ChannelType{
						discordgo.ChannelTypeGuildCategory,
					},
				},
			},
		},
	}
}

func (b *Bot) handleApalto(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), interactionTimeout)
	defer cancel()

	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	})
	if err != nil {
		b.log.Warn("deferring /apalto failed", "guild_id", i.GuildID, "error", err)
		return
	}

	if i.GuildID == "" || i.Member == nil || i.Member.User == nil {
		b.editReply(s, i, errEmbed("Use em um servidor", ""), nil)
		return
	}

	var optionID string
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == categoryOption {
			optionID, _ = opt.Value.(string)
		}
	}

	categoryID, ok := resolveCategory(ctx, b.client.Channel, categoryQuery{
		GuildID:    i.GuildID,
		Candidates: b.cfg.CategoryCandidates(i.GuildID),
		OptionID:   optionID,
		ChannelID:  i.ChannelID,
	})
	if !ok {
		b.editReply(s, i, errorEmbed(apperr.New(apperr.CodeInvalidCategory, "no category resolved",
			apperr.FieldGuildID(i.GuildID))), nil)
		return
	}

	roles, err := b.client.guildRoleIDs(ctx, i.GuildID)
	if err != nil {
		b.log.Error("fetching guild roles failed", "guild_id", i.GuildID, "error", err)
		b.editReply(s, i, errorEmbed(err), nil)
		return
	}

	creatorID := i.Member.User.ID
	pair, err := b.manager.CreatePair(ctx, voice.CreateRequest{
		GuildID:    i.GuildID,
		CategoryID: categoryID,
		CreatorID:  creatorID,
		Overwrites: perms.Build(perms.Input{
			EveryoneRoleID: i.GuildID,
			StaffRoleIDs:   b.cfg.StaffRoleIDs,
			GuestRoleIDs:   b.cfg.GuestRoleIDs,
			CreatorID:      creatorID,
			GuildRoleIDs:   roles,
		}),
	})
	if err != nil {
		b.log.Error("creating pair failed",
			"guild_id", i.GuildID, "category_id", categoryID, "user_id", creatorID,
			"code", apperr.CodeOf(err), "error", err)
		b.editReply(s, i, errorEmbed(err), nil)
		return
	}

	panel := customID{Team1ID: pair.Team1ID, Team2ID: pair.Team2ID}
	b.editReply(s, i,
		okEmbed("Calls criadas", pairDescription(pair, b.manager.EmptyDuration())),
		panelComponents(panel, false))
}

func pairDescription(p *voice.Pair, idle time.Duration) string {
	return fmt.Sprintf("Defina os **líderes** (um pra cada time).\n• <#%s>\n• <#%s>\n\n"+
		"As calls serão **visíveis** para todos, mas só líderes conectam.\n"+
		"Líderes poderão **arrastar / mutar / ensurdecer** na própria call.\n"+
		"As calls são apagadas se as duas ficarem vazias por %d min.",
		p.Team1ID, p.Team2ID, int(idle/time.Minute))
}

type channelFetcher func(ctx context.Context, channelID string) (*voice.Channel, error)

// categoryQuery lists where a category may come from, in priority order:
// configured candidates, the command option, then the category above the
// channel the command was used in (through the parent of a thread).
type categoryQuery struct {
	GuildID    string
	Candidates []string
	OptionID   string
	ChannelID  string
}

func resolveCategory(ctx context.Context, fetch channelFetcher, q categoryQuery) (string, bool) {
	isCategory := func(id string) bool {
		if id == "" {
			return false
		}
		ch, err := fetch(ctx, id)
		return err == nil && ch.Type == discordgo.ChannelTypeGuildCategory && ch.GuildID == q.GuildID
	}

	for _, id := range q.Candidates {
		if isCategory(id) {
			return id, true
		}
	}
	if isCategory(q.OptionID) {
		return q.OptionID, true
	}

	if q.ChannelID == "" {
		return "", false
	}
	ch, err := fetch(ctx, q.ChannelID)
	if err != nil {
		return "", false
	}
	parentID := ch.ParentID
	if isThread(ch.Type) && parentID != "" {
		parent, err := fetch(ctx, parentID)
		if err != nil {
			return "", false
		}
		parentID = parent.ParentID
	}
	if isCategory(parentID) {
		return parentID, true
	}
	return "", false
}

func isThread(t discordgo.ChannelType) bool {
	switch t {
	case discordgo.ChannelTypeGuildPublicThread,
		discordgo.ChannelTypeGuildPrivateThread,
		discordgo.ChannelTypeGuildNewsThread:
		return true
	}
	return false
}
