package bot

import (
	"github.com/bwmarrin/discordgo"

	apperr "github.com/CS-5/apalto-bot/errors"
)

const (
	colorOK   = 0x35c46a
	colorWarn = 0xf5a623
	colorErr  = 0xef5350
)

func okEmbed(title, description string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{Title: "✅ " + title, Description: description, Color: colorOK}
}

func warnEmbed(title, description string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{Title: "⚠️ " + title, Description: description, Color: colorWarn}
}

func errEmbed(title, description string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{Title: "❌ " + title, Description: description, Color: colorErr}
}

// errorEmbed renders err for the member who triggered it.
func errorEmbed(err error) *discordgo.MessageEmbed {
	switch apperr.CodeOf(err) {
	case apperr.CodeInvalidCategory:
		return errEmbed("Categoria inválida",
			"Defina TRANSMISSAO_CATEGORY_ID no .env **ou** mapeie em DEFAULT_CATEGORY_IDS (GUILD_ID=CATEGORY_ID).")
	case apperr.CodeChannelCreationFailed:
		return errEmbed("Não foi possível criar as calls",
			"Verifique se os cargos configurados existem e se o bot tem **Gerenciar Canais** na categoria.")
	case apperr.CodePermissionEditFailed:
		return errEmbed("Erro ao aplicar",
			"O bot precisa de **Gerenciar Cargos** e **Gerenciar Canais** nas calls.")
	case apperr.CodeChannelNotFound:
		return errEmbed("Call não encontrada", "As calls já foram apagadas. Use /apalto para criar novas.")
	case apperr.CodeDiscordMemberNotFound:
		return errEmbed("ID inválido", "Não foi possível encontrar esse usuário na guild.")
	case apperr.CodeInteractionInvalidData:
		return errEmbed("Interação inválida", "Os dados deste botão não são reconhecidos.")
	default:
		return errEmbed("Erro", "Falha ao processar a interação.")
	}
}
