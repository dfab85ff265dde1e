package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/CS-5/apalto-bot/config"
	apperr "github.com/CS-5/apalto-bot/errors"
	"github.com/CS-5/apalto-bot/perms"
	"github.com/CS-5/apalto-bot/voice"
)

// panelComponents returns the leader panel shown under a new pair.
func panelComponents(id customID, disabled bool) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "Escolher líder TIME 1",
					Style:    discordgo.SecondaryButton,
					CustomID: id.with(actionPickLeader1, 1).String(),
					Disabled: disabled,
				},
				discordgo.Button{
					Label:    "Escolher líder TIME 2",
					Style:    discordgo.SecondaryButton,
					CustomID: id.with(actionPickLeader2, 2).String(),
					Disabled: disabled,
				},
				discordgo.Button{
					Label:    "Aplicar Permissões",
					Style:    discordgo.SuccessButton,
					CustomID: id.with(actionFinalize, 0).String(),
					Disabled: disabled,
				},
			},
		},
	}
}

func leaderPickerComponents(id customID) []discordgo.MessageComponent {
	minValues := 1
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.SelectMenu{
					MenuType:    discordgo.UserSelectMenu,
					CustomID:    id.with(slotTarget(id.Slot), id.Slot).String(),
					Placeholder: pickerLabel(id.Slot),
					MinValues:   &minValues,
					MaxValues:   1,
				},
			},
		},
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "Informar ID",
					Style:    discordgo.SecondaryButton,
					CustomID: id.with(actionEnterID, id.Slot).String(),
				},
			},
		},
	}
}

func pickerLabel(slot int) string {
	return fmt.Sprintf("Escolha o líder do TIME %d", slot)
}

func (b *Bot) handlePanel(s *discordgo.Session, i *discordgo.InteractionCreate, raw string) {
	id, err := parseCustomID(raw)
	if err != nil {
		b.log.Warn("ignoring panel interaction", "custom_id", raw, "error", err)
		b.respond(s, i, errorEmbed(err), nil)
		return
	}

	if i.GuildID == "" || i.Member == nil || i.Member.User == nil {
		b.respond(s, i, errEmbed("Use em um servidor válido", ""), nil)
		return
	}
	if !perms.IsStaff(i.Member.Permissions, i.Member.Roles, b.cfg.StaffRoleIDs) {
		b.respond(s, i, errEmbed("Sem permissão",
			"Você precisa ter **Gerenciar Canais**, **Gerenciar Servidor** ou um cargo listado em `STAFF_ROLE_IDS`."), nil)
		return
	}

	switch {
	case i.Type == discordgo.InteractionModalSubmit && id.Action == actionModal:
		b.handleLeaderModal(s, i, id)
	case i.Type != discordgo.InteractionMessageComponent:
		b.respond(s, i, errorEmbed(apperr.New(apperr.CodeInteractionInvalidData, "unexpected interaction type")), nil)
	case id.Action == actionPickLeader1, id.Action == actionPickLeader2:
		b.handlePickLeader(s, i, id)
	case id.Action == actionLeader1, id.Action == actionLeader2:
		b.handleLeaderSelect(s, i, id)
	case id.Action == actionEnterID:
		b.handleEnterID(s, i, id)
	case id.Action == actionFinalize:
		b.handleFinalize(s, i, id)
	default:
		b.respond(s, i, errorEmbed(apperr.New(apperr.CodeInteractionInvalidData, "unexpected panel action")), nil)
	}
}

func (b *Bot) handlePickLeader(s *discordgo.Session, i *discordgo.InteractionCreate, id customID) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content:    pickerLabel(id.Slot),
			Components: leaderPickerComponents(id),
			Flags:      discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		b.log.Warn("showing leader picker failed", "pair", id.pairKey(), "error", err)
	}
}

func (b *Bot) handleLeaderSelect(s *discordgo.Session, i *discordgo.InteractionCreate, id customID) {
	values := i.MessageComponentData().Values
	if len(values) == 0 {
		b.respond(s, i, warnEmbed("Nada selecionado", "Escolha um membro."), nil)
		return
	}

	userID := values[0]
	b.selections.set(id.pairKey(), id.Slot, userID)
	b.log.Debug("leader selected", "pair", id.pairKey(), "slot", id.Slot, "user_id", userID)

	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{okEmbed("Seleção salva",
				fmt.Sprintf("Líder do TIME %d: <@%s>\nClique em **Aplicar Permissões**.", id.Slot, userID))},
			Components: []discordgo.MessageComponent{},
		},
	})
	if err != nil {
		b.log.Warn("acknowledging leader selection failed", "pair", id.pairKey(), "error", err)
	}
}

func (b *Bot) handleEnterID(s *discordgo.Session, i *discordgo.InteractionCreate, id customID) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID: id.with(actionModal, id.Slot).String(),
			Title:    "Informar ID do usuário",
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{
					Components: []discordgo.MessageComponent{
						discordgo.TextInput{
							CustomID:    userIDInput,
							Label:       "ID do usuário",
							Style:       discordgo.TextInputShort,
							Placeholder: "Exemplo: 123456789012345678",
							Required:    true,
							MinLength:   17,
							MaxLength:   20,
						},
					},
				},
			},
		},
	})
	if err != nil {
		b.log.Warn("opening id modal failed", "pair", id.pairKey(), "error", err)
		b.respond(s, i, errEmbed("Não foi possível abrir o modal", ""), nil)
	}
}

func (b *Bot) handleLeaderModal(s *discordgo.Session, i *discordgo.InteractionCreate, id customID) {
	ctx, cancel := context.WithTimeout(context.Background(), interactionTimeout)
	defer cancel()

	raw := strings.TrimSpace(modalValue(i.ModalSubmitData(), userIDInput))
	if !config.IsSnowflake(raw) {
		b.respond(s, i, errEmbed("ID inválido", "Informe um ID numérico de 17 a 20 dígitos."), nil)
		return
	}

	if !b.deferEphemeral(s, i) {
		return
	}

	member, err := b.client.member(ctx, i.GuildID, raw)
	if err != nil {
		b.log.Info("leader id rejected", "guild_id", i.GuildID, "user_id", raw, "error", err)
		b.editReply(s, i, errorEmbed(err), nil)
		return
	}

	b.selections.set(id.pairKey(), id.Slot, member.User.ID)
	b.editReply(s, i, okEmbed("ID salvo",
		fmt.Sprintf("Usuário: <@%s> (TIME %d)", member.User.ID, id.Slot)), nil)
}

func (b *Bot) handleFinalize(s *discordgo.Session, i *discordgo.InteractionCreate, id customID) {
	ctx, cancel := context.WithTimeout(context.Background(), interactionTimeout)
	defer cancel()

	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	})
	if err != nil {
		b.log.Warn("deferring finalize failed", "pair", id.pairKey(), "error", err)
		return
	}

	key := id.pairKey()
	sel, ok := b.selections.get(key)
	if !ok || sel.empty() {
		b.followup(s, i, warnEmbed("Nada selecionado", "Escolha ao menos um líder."))
		return
	}

	res := b.manager.GrantLeaders(ctx, voice.GrantRequest{
		GuildID:   i.GuildID,
		Team1ID:   id.Team1ID,
		Team2ID:   id.Team2ID,
		Leader1ID: sel.Leader1,
		Leader2ID: sel.Leader2,
	})

	if res.Err() == nil {
		b.selections.clear(key)
		components := panelComponents(id, true)
		if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Components: &components}); err != nil {
			b.log.Warn("disabling panel failed", "pair", key, "error", err)
		}
		b.followup(s, i, okEmbed("Permissões aplicadas",
			"Os líderes e cargos staff agora têm controle total nas calls."))
		return
	}

	b.log.Warn("leader grant incomplete", "pair", key, "error", res.Err())
	b.followup(s, i, grantReport(res))
}

// grantReport describes a grant that failed on at least one channel. The
// panel stays active so the grant can be retried.
func grantReport(res voice.GrantResult) *discordgo.MessageEmbed {
	var lines []string
	line := func(team int, granted bool, err error) {
		switch {
		case err != nil:
			lines = append(lines, fmt.Sprintf("TIME %d: %s", team, strings.TrimPrefix(errorEmbed(err).Title, "❌ ")))
		case granted:
			lines = append(lines, fmt.Sprintf("TIME %d: líder aplicado", team))
		}
	}
	line(1, res.Team1Granted, res.Team1Err)
	line(2, res.Team2Granted, res.Team2Err)
	description := strings.Join(lines, "\n")

	if !res.Team1Granted && !res.Team2Granted {
		return errEmbed("Erro ao aplicar", description)
	}
	return warnEmbed("Permissões aplicadas parcialmente", description)
}

func modalValue(data discordgo.ModalSubmitInteractionData, inputID string) string {
	for _, c := range data.Components {
		row, ok := c.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, inner := range row.Components {
			if input, ok := inner.(*discordgo.TextInput); ok && input.CustomID == inputID {
				return input.Value
			}
		}
	}
	return ""
}
