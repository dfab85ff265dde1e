package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/CS-5/apalto-bot/bot"
)

func newRunCmd(v *viper.Viper) *cobra.Command {
	var keepCommands bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Connect to Discord and serve /apalto",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}

			b, err := bot.NewBot(cfg, bot.Options{
				KeepCommands: keepCommands,
				Logger:       slog.Default(),
			})
			if err != nil {
				return err
			}

			if err := b.Start(); err != nil {
				return err
			}

			slog.Info("bot is now running, press CTRL+C to exit")
			sc := make(chan os.Signal, 1)
			signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
			<-sc

			slog.Info("shutting down")
			b.Stop()
			return nil
		},
	}

	cmd.Flags().BoolVar(&keepCommands, "keep-commands", false, "leave slash commands registered on exit")
	return cmd
}
