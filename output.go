package main

import (
	"fmt"
	"io"

	"github.com/bwmarrin/discordgo"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	keyStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Width(22)
)

// scopeName labels a command scope for output.
func scopeName(guildID string) string {
	if guildID == "" {
		return "global"
	}
	return "guild " + guildID
}

func printCommands(w io.Writer, guildID string, cmds []*discordgo.ApplicationCommand) {
	fmt.Fprintln(w, titleStyle.Render(scopeName(guildID)))
	if len(cmds) == 0 {
		fmt.Fprintln(w, dimStyle.Render("  (no commands)"))
		return
	}
	for _, c := range cmds {
		fmt.Fprintf(w, "  /%s %s\n", c.Name, dimStyle.Render(c.ID))
	}
}
