// Command autoeval fills in evaluation forms in a Chrome tab at a human pace.
package main

import (
	"fmt"
	"os"

	"autoeval/internal/config"
	"autoeval/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	verbose    bool
	configPath string

	// Loaded in PersistentPreRunE
	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "autoeval",
	Short: "Human-paced evaluation form automation",
	Long: `autoeval drives an evaluation page in Chrome: it picks an option for
every item (mostly the primary one, a few secondary ones), writes a comment,
saves, optionally submits, and moves on to the next pending entity.

Pacing, quotas and selectors live in .autoeval/config.yaml and can be
overridden with AUTOEVAL_* environment variables.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded

		opts := cfg.Logging.Options()
		if verbose {
			opts.Level = "debug"
		}
		// The panel owns the terminal; keep log output in the file.
		if tuiActive(cmd) {
			opts.Console = false
		} else if verbose {
			opts.Console = true
		}
		logger, err = logging.Initialize(opts)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logging.BootDebug("config loaded from %s", configPath)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Config file")

	registerRunFlags()
	registerBrowserCommands()
	registerConfigCommands()
	registerHistoryCommand()

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(browserCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(historyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
