package main

import (
	"errors"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/CS-5/apalto-bot/config"
	apperr "github.com/CS-5/apalto-bot/errors"
)

// NewRootCmd creates the apalto-bot command with its subcommands. Each call
// owns a fresh viper instance.
func NewRootCmd() *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:           "apalto-bot",
		Short:         "Discord bot that creates paired team voice channels",
		Long:          "apalto-bot creates TIME 1 / TIME 2 voice channel pairs on /apalto and deletes them once both stay empty.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initViper(cmd, v)
		},
	}

	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().String("env-file", "", "path to .env file (default .env)")
	root.PersistentFlags().Bool("debug", false, "enable debug logging")

	root.AddCommand(
		newRunCmd(v),
		newCommandsCmd(v),
		newConfigCmd(v),
	)

	return root
}

// initViper loads the .env file, then layers defaults, environment and an
// optional config file onto v, and configures the default logger.
func initViper(cmd *cobra.Command, v *viper.Viper) error {
	envFile, _ := cmd.Flags().GetString("env-file")
	if err := config.LoadDotEnv(envFile); err != nil {
		return err
	}

	config.SetDefaults(v)
	config.SetupEnv(v)

	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return apperr.Errorf(apperr.CodeConfigLoadReadFailure, "reading config file: %w", err)
		}
	} else {
		// SetConfigType is left unset so viper never matches the
		// apalto-bot binary itself.
		v.SetConfigName("apalto")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/apalto")
		v.AddConfigPath("/etc/apalto")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return apperr.Errorf(apperr.CodeConfigLoadReadFailure, "reading config: %w", err)
			}
		}
	}

	if err := v.BindPFlag("debug_log", cmd.Root().PersistentFlags().Lookup("debug")); err != nil {
		return apperr.Errorf(apperr.CodeCLIInputInvalid, "binding debug flag: %w", err)
	}

	slog.SetDefault(newLogger(cmd.ErrOrStderr(), v.GetBool("debug_log")))
	return nil
}

func newLogger(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// loadConfig decodes v, logging every warning.
func loadConfig(v *viper.Viper) (*config.Config, error) {
	cfg, err := config.FromViper(v)
	if err != nil {
		return nil, err
	}
	for _, w := range cfg.Warnings() {
		slog.Warn(w)
	}
	return cfg, nil
}
