package main

import (
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/matt-steen/task-dashboard/pkg/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "dev"

const filePerms = 0o666

// app carries what every subcommand needs.
type app struct {
	configPath string
	cfg        config.Config
	logFile    io.Closer
}

func main() {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "taskdash",
		Short:         "Task tracking API server and terminal dashboard",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logFile != nil {
				a.logFile.Close()
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "taskdash.yaml",
		"path to the YAML config; environment variables are used when it does not exist")

	rootCmd.AddCommand(a.serveCmd())
	rootCmd.AddCommand(a.signUpCmd())
	rootCmd.AddCommand(a.confirmCmd())
	rootCmd.AddCommand(a.statsCmd())
	rootCmd.AddCommand(a.dashboardCmd())
	rootCmd.AddCommand(envCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (a *app) load() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}

	a.cfg = cfg

	return a.setupLogging()
}

// setupLogging points the global logger at the log file, or stderr when none is set.
func (a *app) setupLogging() error {
	level, err := zerolog.ParseLevel(a.cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", a.cfg.LogLevel, err)
	}

	zerolog.SetGlobalLevel(level)

	var out io.Writer = os.Stderr

	if a.cfg.LogFile != "" {
		logFile, err := os.OpenFile(a.cfg.LogFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, fs.FileMode(filePerms))
		if err != nil {
			return fmt.Errorf("cannot open log file: %w", err)
		}

		a.logFile = logFile
		out = logFile
	}

	log.Logger = log.With().Caller().Logger().Output(zerolog.ConsoleWriter{
		Out: out, TimeFormat: "2006-01-02_15:04:05",
	})

	return nil
}

func envCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "List the environment variables taskdash reads",
		// the config is not needed to describe it
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			usage, err := config.Usage()
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), usage)

			return nil
		},
	}
}
