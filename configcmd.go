package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/CS-5/apalto-bot/config"
)

func newConfigCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.FromViper(v)
			if err != nil {
				return err
			}

			source := v.ConfigFileUsed()
			if source == "" {
				source = "(environment only)"
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, titleStyle.Render("apalto-bot configuration"))
			fmt.Fprintln(out, dimStyle.Render(source))

			rows := [][2]string{
				{"token", orUnset(cfg.MaskedToken())},
				{"client_id", orUnset(cfg.ClientID)},
				{"guild_ids", joinIDs(cfg.GuildIDs)},
				{"category_id", orUnset(cfg.CategoryID)},
				{"default_category_ids", joinIDs(cfg.DefaultCategoryIDs)},
				{"staff_role_ids", joinIDs(cfg.StaffRoleIDs)},
				{"guest_role_ids", joinIDs(cfg.GuestRoleIDs)},
				{"empty_duration", cfg.EmptyDuration().String()},
				{"state_file", orUnset(cfg.StateFile)},
				{"debug_log", fmt.Sprint(cfg.Debug)},
			}
			for _, r := range rows {
				fmt.Fprintf(out, "  %s %s\n", keyStyle.Render(r[0]), r[1])
			}

			for _, w := range cfg.Warnings() {
				fmt.Fprintln(out, errorStyle.Render("  ! "+w))
			}
			for _, err := range cfg.Validate() {
				fmt.Fprintln(out, errorStyle.Render("  ✗ "+err.Error()))
			}
			return nil
		},
	}
}

func orUnset(s string) string {
	if s == "" {
		return dimStyle.Render("(unset)")
	}
	return s
}

func joinIDs(ids []string) string {
	return orUnset(strings.Join(ids, ","))
}
