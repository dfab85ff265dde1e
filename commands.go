package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/CS-5/apalto-bot/bot"
	"github.com/CS-5/apalto-bot/config"
	apperr "github.com/CS-5/apalto-bot/errors"
)

const adminTimeout = 30 * time.Second

func newCommandsCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "commands",
		Short: "Manage the bot's slash commands without starting it",
	}

	cmd.AddCommand(
		newCommandsDeployCmd(v),
		newCommandsListCmd(v),
		newCommandsClearCmd(v),
		newCommandsRedeployCmd(v),
	)
	return cmd
}

func newCommandsDeployCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "deploy [guild...]",
		Short: "Register /apalto in the given guilds, or every configured guild",
		Long: "Register /apalto in the given guilds. Without arguments the guilds in guild_ids are used, " +
			"and with none configured the command is registered globally.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAdmin(cmd, v, func(ctx context.Context, admin *bot.CommandAdmin, cfg *config.Config) error {
				targets, err := guildTargets(args, cfg)
				if err != nil {
					return err
				}
				if len(targets) == 0 {
					targets = []string{""}
				}
				return deployCommands(ctx, cmd, admin, targets)
			})
		},
	}
}

func newCommandsListCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "list [guild]",
		Short: "List global commands, or the commands of one guild",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAdmin(cmd, v, func(ctx context.Context, admin *bot.CommandAdmin, _ *config.Config) error {
				guildID := ""
				if len(args) == 1 {
					if !config.IsSnowflake(args[0]) {
						return invalidGuild(args[0])
					}
					guildID = args[0]
				}
				cmds, err := admin.List(ctx, guildID)
				if err != nil {
					return err
				}
				printCommands(cmd.OutOrStdout(), guildID, cmds)
				return nil
			})
		},
	}
}

func newCommandsClearCmd(v *viper.Viper) *cobra.Command {
	var global bool

	cmd := &cobra.Command{
		Use:   "clear [guild] [--global]",
		Short: "Remove the bot's commands",
		Long: "Remove the commands of the given guild and, with --global, the global commands. " +
			"Without a guild argument or --global every guild in guild_ids is cleared.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAdmin(cmd, v, func(ctx context.Context, admin *bot.CommandAdmin, cfg *config.Config) error {
				var targets []string
				if len(args) == 1 || !global {
					t, err := guildTargets(args, cfg)
					if err != nil {
						return err
					}
					targets = t
				}
				if global {
					targets = append(targets, "")
				}
				if len(targets) == 0 {
					return apperr.New(apperr.CodeCLIInputInvalid, "nothing to clear: pass a guild, --global, or set guild_ids")
				}
				return clearCommands(ctx, cmd, admin, targets)
			})
		},
	}

	cmd.Flags().BoolVar(&global, "global", false, "also clear global commands")
	return cmd
}

func newCommandsRedeployCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "redeploy",
		Short: "Clear global and guild commands, then deploy to every configured guild",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withAdmin(cmd, v, func(ctx context.Context, admin *bot.CommandAdmin, cfg *config.Config) error {
				if len(cfg.GuildIDs) == 0 {
					return apperr.New(apperr.CodeCLIInputInvalid, "redeploy needs guild_ids (GUILD_IDS)")
				}
				if err := clearCommands(ctx, cmd, admin, append([]string{""}, cfg.GuildIDs...)); err != nil {
					return err
				}
				return deployCommands(ctx, cmd, admin, cfg.GuildIDs)
			})
		},
	}
}

// withAdmin loads the configuration, opens a REST-only command admin and
// runs fn under a deadline.
func withAdmin(cmd *cobra.Command, v *viper.Viper, fn func(context.Context, *bot.CommandAdmin, *config.Config) error) error {
	cfg, err := loadConfig(v)
	if err != nil {
		return err
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return errors.Join(errs...)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), adminTimeout)
	defer cancel()

	admin, err := bot.NewCommandAdmin(ctx, cfg.Token, cfg.ClientID)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render("application "+admin.AppID()))
	return fn(ctx, admin, cfg)
}

// guildTargets returns the guild ids named in args, or the configured ones
// when args is empty.
func guildTargets(args []string, cfg *config.Config) ([]string, error) {
	if len(args) == 0 {
		return cfg.GuildIDs, nil
	}
	for _, id := range args {
		if !config.IsSnowflake(id) {
			return nil, invalidGuild(id)
		}
	}
	return args, nil
}

func invalidGuild(id string) error {
	return apperr.Errorf(apperr.CodeCLIInputInvalid, "%q is not a guild id", id)
}

func deployCommands(ctx context.Context, cmd *cobra.Command, admin *bot.CommandAdmin, targets []string) error {
	created := make([][]*discordgo.ApplicationCommand, len(targets))
	err := fanOut(ctx, targets, func(ctx context.Context, i int, guildID string) error {
		cmds, err := admin.Deploy(ctx, guildID)
		created[i] = cmds
		return err
	})

	out := cmd.OutOrStdout()
	for i, guildID := range targets {
		if created[i] == nil {
			continue
		}
		fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("✓ deployed %d command(s) to %s", len(created[i]), scopeName(guildID))))
	}
	return err
}

func clearCommands(ctx context.Context, cmd *cobra.Command, admin *bot.CommandAdmin, targets []string) error {
	removed := make([]int, len(targets))
	done := make([]bool, len(targets))
	err := fanOut(ctx, targets, func(ctx context.Context, i int, guildID string) error {
		n, err := admin.Clear(ctx, guildID)
		removed[i], done[i] = n, err == nil
		return err
	})

	out := cmd.OutOrStdout()
	for i, guildID := range targets {
		if !done[i] {
			continue
		}
		fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("✓ removed %d command(s) from %s", removed[i], scopeName(guildID))))
	}
	return err
}

// fanOut runs fn for every target concurrently. Failures do not cancel the
// other targets; they are joined into the returned error.
func fanOut(ctx context.Context, targets []string, fn func(context.Context, int, string) error) error {
	errs := make([]error, len(targets))

	var g errgroup.Group
	g.SetLimit(4)
	for i, guildID := range targets {
		g.Go(func() error {
			errs[i] = fn(ctx, i, guildID)
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}
