package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/txengine/internal/buildinfo"
	"github.com/cleared-dev/txengine/internal/config"
	"github.com/cleared-dev/txengine/internal/engine"
	"github.com/cleared-dev/txengine/internal/logging"
	"github.com/cleared-dev/txengine/internal/rejectlog"
	"github.com/cleared-dev/txengine/internal/txcsv"
)

// options holds flag values for the root command.
type options struct {
	configPath  string
	logLevel    string
	rejectsPath string
}

// NewRootCommand creates the txengine CLI command.
func NewRootCommand() *cobra.Command {
	var opts options

	rootCmd := &cobra.Command{
		Use:     "txengine <transactions.csv>",
		Short:   "Replay a transaction log and print final client balances",
		Version: buildinfo.String(),
		Args:    cobra.ExactArgs(1),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			return runReplay(cmd.OutOrStdout(), cmd.ErrOrStderr(), args[0], cfg)
		},
	}

	rootCmd.Flags().StringVar(&opts.configPath, "config", "", "path to a YAML config file")
	rootCmd.Flags().StringVar(&opts.logLevel, "log-level", "", "diagnostic log level (overrides config)")
	rootCmd.Flags().StringVar(&opts.rejectsPath, "rejects", "", "write rejected records to this CSV file (overrides config)")

	return rootCmd
}

func loadConfig(cmd *cobra.Command, opts options) (*config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = opts.logLevel
	}
	if cmd.Flags().Changed("rejects") {
		cfg.Rejects.Path = opts.rejectsPath
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runReplay(stdout, stderr io.Writer, inputPath string, cfg *config.Config) (err error) {
	log, err := logging.New(cfg.Log, stderr)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	f, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("opening input: %w", err)
	}
	defer f.Close()

	engineOpts := []engine.Option{engine.WithLogger(log)}
	if cfg.Rejects.Path != "" {
		rejects, cerr := rejectlog.Create(cfg.Rejects.Path)
		if cerr != nil {
			return cerr
		}
		defer func() {
			if cerr := rejects.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()
		engineOpts = append(engineOpts, engine.WithRejectHandler(rejects.Record))
	}

	eng := engine.New(engineOpts...)
	if _, err := eng.Process(txcsv.NewReader(f)); err != nil {
		return fmt.Errorf("processing %s: %w", inputPath, err)
	}

	if err := txcsv.WriteBalances(stdout, eng.Balances(cfg.Output.Precision)); err != nil {
		return fmt.Errorf("writing balances: %w", err)
	}
	return nil
}
