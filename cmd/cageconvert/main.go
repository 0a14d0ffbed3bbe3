package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rewired-gh/cageconvert/internal/action"
	"github.com/rewired-gh/cageconvert/internal/config"
	"github.com/rewired-gh/cageconvert/internal/logger"
	"github.com/rewired-gh/cageconvert/internal/models"
	"github.com/rewired-gh/cageconvert/internal/storage"
	"github.com/rewired-gh/cageconvert/internal/telegram"
	"github.com/rewired-gh/cageconvert/internal/vendor"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "cageconvert",
		Short: "Normalize metabolic and activity cage recordings",
		Long: `cageconvert converts exports of metabolic and activity monitoring systems
into one canonical time-series table, and joins or matches converted
experiments so they share a time range and time scale.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Path to configuration file")
	flags.StringP("input", "i", "", "Path to input files, default: current dir")
	flags.StringP("output", "o", "", "Path where the output will be stored, default: current dir")
	flags.String("log", "", "Path of the log file, default: <output>/cageconvert.log")
	flags.String("log_level", "info", "Log level (debug, info, warn, error)")
	flags.String("pattern", "", "String pattern to match input files")
	flags.String("exclude", "", "String pattern of input files to skip")
	flags.Int64("frequency", 0, "Aggregate the output to this frequency in seconds, 0 keeps the input frequency")
	flags.String("out_file_suffix", "", "Suffix of the exported file, the action name by default")
	flags.String("orientation", "parameter-wide", "Output orientation (parameter-wide, subject-wide)")
	flags.String("format", "csv", "Output format (csv, xlsx)")
	flags.String("time_fmt_in", "", "strftime format of timestamps in source files")
	flags.String("dark_start", "18:00:00", "Start of the dark phase when the data has no light column")
	flags.String("dark_end", "06:00:00", "End of the dark phase when the data has no light column")

	convertCmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert vendor export files to the canonical format",
		Long: `Convert parses every export file of one system found under --input and
writes the subjects of all files as one canonical table.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAction(cmd, models.ActionConvert)
		},
	}
	convertCmd.Flags().String("system", "clams-oxymax",
		fmt.Sprintf("System which was used to record the data (%s)", strings.Join(vendor.Systems(), ", ")))
	convertCmd.Flags().String("col_spec", "", "Column specification file replacing the built-in one")
	convertCmd.Flags().Bool("regularize", true, "Make irregular time series regular")

	joinCmd := &cobra.Command{
		Use:   "join",
		Short: "Join converted files one after the other",
		Long: `Join appends converted recordings of one experiment in time order,
filling in the missing times between them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAction(cmd, models.ActionJoin)
		},
	}

	matchCmd := &cobra.Command{
		Use:   "match",
		Short: "Unify several experiments to the same time range and time scale",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAction(cmd, models.ActionMatch)
		},
	}
	matchCmd.Flags().String("match_start", "1970-01-01", "Common start date of matched experiments (yyyy-mm-dd)")

	rootCmd.AddCommand(convertCmd, joinCmd, matchCmd, newRunsCmd())

	if err := rootCmd.Execute(); err != nil {
		logError(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func runAction(cmd *cobra.Command, name string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logPath := cfg.Logging.File
	if logPath == "" {
		logPath = filepath.Join(cfg.Output.Dir, "cageconvert.log")
	}
	log, err := logger.NewFile(cfg.Logging.Level, cfg.Logging.Format, logPath)
	if err != nil {
		return err
	}
	defer log.Close()
	if configPath != "" {
		log.Info("Configuration loaded from %s", configPath)
	}

	var opts []action.Option

	if cfg.Storage.Enabled {
		store, err := storage.New(cfg.Storage.DBPath)
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				log.Error("Failed to close storage: %v", err)
			}
		}()
		opts = append(opts, action.WithLedger(store))
	} else {
		log.Debug("Run ledger disabled")
	}

	if cfg.Telegram.Enabled {
		client, err := telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			return fmt.Errorf("failed to initialize Telegram client: %w", err)
		}
		log.Info("Telegram client initialized successfully")
		opts = append(opts, action.WithNotifier(client))
	} else {
		log.Debug("Telegram notifications disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := action.New(cfg, log, opts...)
	var res *action.Result
	switch name {
	case models.ActionConvert:
		res, err = runner.Convert(ctx)
	case models.ActionJoin:
		res, err = runner.Join(ctx)
	case models.ActionMatch:
		res, err = runner.Match(ctx)
	}

	printResult(cmd.OutOrStdout(), res)
	return err
}
