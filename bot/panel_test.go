package bot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperr "github.com/CS-5/apalto-bot/errors"
	"github.com/CS-5/apalto-bot/voice"
)

func panelButtons(t *testing.T, components []discordgo.MessageComponent) []discordgo.Button {
	t.Helper()
	require.Len(t, components, 1)
	row, ok := components[0].(discordgo.ActionsRow)
	require.True(t, ok)

	var out []discordgo.Button
	for _, c := range row.Components {
		btn, ok := c.(discordgo.Button)
		require.True(t, ok)
		out = append(out, btn)
	}
	return out
}

func TestPanelComponents(t *testing.T) {
	id := customID{Team1ID: team1, Team2ID: team2}

	buttons := panelButtons(t, panelComponents(id, false))
	require.Len(t, buttons, 3)
	assert.Equal(t, "Escolher líder TIME 1", buttons[0].Label)
	assert.Equal(t, "apalto:pickL1:"+team1+":"+team2, buttons[0].CustomID)
	assert.Equal(t, "apalto:pickL2:"+team1+":"+team2, buttons[1].CustomID)
	assert.Equal(t, "apalto:finalize:"+team1+":"+team2, buttons[2].CustomID)
	assert.Equal(t, discordgo.SuccessButton, buttons[2].Style)
	for _, b := range buttons {
		assert.False(t, b.Disabled)
	}

	for _, b := range panelButtons(t, panelComponents(id, true)) {
		assert.True(t, b.Disabled)
	}
}

func TestLeaderPickerComponents(t *testing.T) {
	id := customID{Action: actionPickLeader2, Slot: 2, Team1ID: team1, Team2ID: team2}
	rows := leaderPickerComponents(id)
	require.Len(t, rows, 2)

	menu := rows[0].(discordgo.ActionsRow).Components[0].(discordgo.SelectMenu)
	assert.Equal(t, discordgo.UserSelectMenu, menu.MenuType)
	assert.Equal(t, "apalto:leader2:"+team1+":"+team2, menu.CustomID)
	assert.Equal(t, 1, *menu.MinValues)
	assert.Equal(t, 1, menu.MaxValues)

	button := rows[1].(discordgo.ActionsRow).Components[0].(discordgo.Button)
	assert.Equal(t, "apalto:enterid:leader2:"+team1+":"+team2, button.CustomID)
}

func TestGrantReport(t *testing.T) {
	partial := grantReport(voice.GrantResult{
		Team1Granted: true,
		Team2Err:     apperr.New(apperr.CodePermissionEditFailed, "forbidden"),
	})
	assert.Equal(t, colorWarn, partial.Color)
	assert.Contains(t, partial.Description, "TIME 1: líder aplicado")
	assert.Contains(t, partial.Description, "TIME 2: Erro ao aplicar")

	failed := grantReport(voice.GrantResult{
		Team1Err: apperr.New(apperr.CodeChannelNotFound, "gone"),
	})
	assert.Equal(t, colorErr, failed.Color)
	assert.Contains(t, failed.Description, "TIME 1: Call não encontrada")
}

func TestErrorEmbed(t *testing.T) {
	assert.Equal(t, "❌ Categoria inválida",
		errorEmbed(apperr.New(apperr.CodeInvalidCategory, "x")).Title)
	assert.Equal(t, "❌ Não foi possível criar as calls",
		errorEmbed(apperr.Wrap(errors.New("403"), apperr.CodeChannelCreationFailed, "x")).Title)
	assert.Equal(t, "❌ Erro", errorEmbed(errors.New("boom")).Title)
	assert.Equal(t, colorErr, errorEmbed(errors.New("boom")).Color)
}

func TestEmbedStyles(t *testing.T) {
	assert.Equal(t, "✅ Feito", okEmbed("Feito", "").Title)
	assert.Equal(t, colorOK, okEmbed("Feito", "").Color)
	assert.Equal(t, "⚠️ Cuidado", warnEmbed("Cuidado", "").Title)
	assert.Equal(t, colorWarn, warnEmbed("Cuidado", "").Color)
}

func TestModalValue(t *testing.T) {
	data := discordgo.ModalSubmitInteractionData{
		CustomID: "apalto:modal:leader1:" + team1 + ":" + team2,
		Components: []discordgo.MessageComponent{
			&discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				&discordgo.TextInput{CustomID: userIDInput, Value: " 600000000000000001 "},
			}},
		},
	}
	assert.Equal(t, " 600000000000000001 ", modalValue(data, userIDInput))
	assert.Empty(t, modalValue(data, "other"))
}

func TestPairDescription(t *testing.T) {
	p := &voice.Pair{Team1ID: team1, Team2ID: team2}
	desc := pairDescription(p, 5*time.Minute)
	assert.Contains(t, desc, "<#"+team1+">")
	assert.Contains(t, desc, "<#"+team2+">")
	assert.Contains(t, desc, "vazias por 5 min")
}

func TestCommands(t *testing.T) {
	cmds := Commands()
	require.Len(t, cmds, 1)
	assert.Equal(t, "apalto", cmds[0].Name)
	require.NotNil(t, cmds[0].DefaultMemberPermissions)
	assert.Equal(t, int64(discordgo.PermissionManageChannels), *cmds[0].DefaultMemberPermissions)
	require.Len(t, cmds[0].Options, 1)
	assert.Equal(t, []discordgo.ChannelType{discordgo.ChannelTypeGuildCategory}, cmds[0].Options[0].ChannelTypes)
}

type fakeChannels map[string]*voice.Channel

func (f fakeChannels) fetch(_ context.Context, id string) (*voice.Channel, error) {
	ch, ok := f[id]
	if !ok {
		return nil, apperr.New(apperr.CodeChannelNotFound, "unknown channel")
	}
	return ch, nil
}

func TestResolveCategory(t *testing.T) {
	const (
		guild     = "100000000000000001"
		otherGuld = "100000000000000002"
		catFixed  = "200000000000000001"
		catOpt    = "200000000000000002"
		catParent = "200000000000000003"
		catForgn  = "200000000000000004"
		text      = "300000000000000001"
		thread    = "300000000000000002"
	)
	channels := fakeChannels{
		catFixed:  {ID: catFixed, GuildID: guild, Type: discordgo.ChannelTypeGuildCategory},
		catOpt:    {ID: catOpt, GuildID: guild, Type: discordgo.ChannelTypeGuildCategory},
		catParent: {ID: catParent, GuildID: guild, Type: discordgo.ChannelTypeGuildCategory},
		catForgn:  {ID: catForgn, GuildID: otherGuld, Type: discordgo.ChannelTypeGuildCategory},
		text:      {ID: text, GuildID: guild, ParentID: catParent, Type: discordgo.ChannelTypeGuildText},
		thread:    {ID: thread, GuildID: guild, ParentID: text, Type: discordgo.ChannelTypeGuildPublicThread},
	}

	tests := []struct {
		name string
		q    categoryQuery
		want string
		ok   bool
	}{
		{"configured first", categoryQuery{Candidates: []string{catFixed}, OptionID: catOpt, ChannelID: text}, catFixed, true},
		{"foreign candidate skipped", categoryQuery{Candidates: []string{catForgn}, OptionID: catOpt}, catOpt, true},
		{"missing candidate skipped", categoryQuery{Candidates: []string{"999999999999999999"}, ChannelID: text}, catParent, true},
		{"option", categoryQuery{OptionID: catOpt, ChannelID: text}, catOpt, true},
		{"non-category option", categoryQuery{OptionID: text, ChannelID: text}, catParent, true},
		{"thread parent", categoryQuery{ChannelID: thread}, catParent, true},
		{"channel parent", categoryQuery{ChannelID: text}, catParent, true},
		{"nothing", categoryQuery{}, "", false},
		{"uncategorized channel", categoryQuery{ChannelID: catOpt}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.q.GuildID = guild
			got, ok := resolveCategory(context.Background(), channels.fetch, tt.q)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
