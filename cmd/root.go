package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/baicai99/ilovelie/internal/config"
	"github.com/baicai99/ilovelie/internal/history"
	"github.com/baicai99/ilovelie/internal/logger"
	"github.com/baicai99/ilovelie/internal/replace"
	"github.com/baicai99/ilovelie/internal/state"
	"github.com/baicai99/ilovelie/internal/toggle"
)

// cfg holds the merged configuration, populated in PersistentPreRunE.
var cfg config.Config

// eng holds the components wired for the running command.
var eng *engine

var (
	backendFlag  string
	dataDirFlag  string
	logLevelFlag string
)

type engine struct {
	kv       state.Store
	store    *history.Store
	sessions *history.Manager
	toggles  *toggle.Machine
	replacer *replace.Engine
	log      zerolog.Logger
}

var rootCmd = &cobra.Command{
	Use:          "ilovelie",
	Short:        "Swap spans of a file for substitutes and toggle between the truth and the lie",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
		if backendFlag != "" {
			cfg.Backend = backendFlag
		}
		if dataDirFlag != "" {
			cfg.DataDir = dataDirFlag
		}
		if logLevelFlag != "" {
			cfg.LogLevel = logLevelFlag
		}

		e, err := openEngine(cmd, cfg)
		if err != nil {
			return err
		}
		eng = e
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeEngine()
	},
}

func openEngine(cmd *cobra.Command, c config.Config) (*engine, error) {
	ctx := cmd.Context()
	log := logger.New(logger.Config{Level: c.LogLevel, Format: c.LogFormat, Out: cmd.ErrOrStderr()})

	kv, err := state.Open(c.Backend, c.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening state: %w", err)
	}
	store, err := history.NewStore(ctx, kv, history.WithLogger(log))
	if err != nil {
		kv.Close()
		return nil, fmt.Errorf("loading history: %w", err)
	}
	sessions := history.NewManager(store)
	toggles, err := toggle.New(ctx, sessions, kv, toggle.WithLogger(log))
	if err != nil {
		kv.Close()
		return nil, fmt.Errorf("loading toggle state: %w", err)
	}
	return &engine{
		kv:       kv,
		store:    store,
		sessions: sessions,
		toggles:  toggles,
		replacer: replace.New(sessions, toggles, replace.WithLogger(log)),
		log:      log,
	}, nil
}

func closeEngine() error {
	if eng == nil {
		return nil
	}
	err := eng.kv.Close()
	eng = nil
	return err
}

// Execute runs the root command. Exits with code 1 on error.
func Execute() {
	err := rootCmd.Execute()
	// PersistentPostRunE is skipped when RunE fails.
	closeEngine()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&backendFlag, "backend", "", "state backend: file, sqlite or memory")
	rootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "directory holding ilovelie state")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "log level: debug, info, warn, error")
}
