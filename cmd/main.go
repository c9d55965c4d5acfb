package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/okian/faceval/internal/config"
	"github.com/okian/faceval/pkg/logger"
)

// errModelsFailed makes evaluate exit non-zero after printing the report.
var errModelsFailed = errors.New("models failed")

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Stderr.WriteString("faceval: " + err.Error() + "\n")
		stop()
		os.Exit(1)
	}
}

// cli carries state shared by the subcommands once the root pre-run loaded it.
type cli struct {
	configPath string
	cfg        *config.Config
	log        logger.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "faceval",
		Short: "Evaluate face attribute classifiers against ground truth",
		Long: `faceval scores gender, race and age predictions of one or more models
against annotated ground truth: accuracy, macro-F1, confusion matrices,
ordinal age distance and confidence calibration.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = logger.Sync()
		},
	}
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "",
		"YAML config file (defaults to $"+config.EnvConfigPath+")")

	root.AddCommand(
		newEvaluateCmd(c),
		newServeCmd(c),
		newNormalizeCmd(c),
		newSynthCmd(c),
	)
	return root
}

// setup initializes logging and loads configuration. The logger is brought
// up before the config so load failures can be reported, then rebuilt with
// the configured format.
func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	if err := logger.InitWith(logger.WithWriter(cmd.ErrOrStderr())); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	ctx := cmd.Context()
	cfg, err := config.Load(ctx, c.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := logger.InitWith(logger.WithWriter(cmd.ErrOrStderr()), logger.WithFormat(cfg.LogFormat)); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	c.log = logger.Get()
	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		c.log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	c.cfg = cfg
	return nil
}
