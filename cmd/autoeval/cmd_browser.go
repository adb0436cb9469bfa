package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"autoeval/internal/browser"
	"autoeval/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// browserCmd manages the Chrome instance runs attach to
var browserCmd = &cobra.Command{
	Use:   "browser",
	Short: "Manage the Chrome instance used by runs",
}

var browserDetach bool

var browserLaunchCmd = &cobra.Command{
	Use:   "launch [url]",
	Short: "Launch Chrome and record its control URL",
	Long: `Launches Chrome with the configured profile directory and records the
DevTools URL so 'autoeval run' attaches to it. Log in to the evaluation site
in this window before running.

With --detach Chrome keeps running after this command exits; otherwise it is
closed on Ctrl+C.`,
	Args: cobra.MaximumNArgs(1),
	RunE: browserLaunch,
}

func registerBrowserCommands() {
	browserLaunchCmd.Flags().BoolVar(&browserDetach, "detach", false, "Leave Chrome running after exit")
	browserCmd.AddCommand(browserLaunchCmd)
}

func browserLaunch(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	bcfg := cfg.Browser
	bcfg.DebuggerURL = ""

	if browserDetach {
		u, err := browser.LaunchDetached(bcfg)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Browser launched. Control URL: %s\n", u)
		fmt.Fprintf(out, "Recorded in %s\n", bcfg.ControlURLFile)
		return nil
	}

	logger.Info("Launching browser", zap.Bool("headless", bcfg.Headless))
	// Launch fresh rather than attaching to a stale recorded URL.
	recorded := bcfg.ControlURLFile
	bcfg.ControlURLFile = ""
	mgr := browser.NewManager(bcfg)
	if err := mgr.Start(cmd.Context()); err != nil {
		return fmt.Errorf("failed to start browser: %w", err)
	}
	if err := browser.WriteControlURL(recorded, mgr.ControlURL()); err != nil {
		logging.BootWarn("failed to write browser control file: %v", err)
	}

	url := bcfg.TargetURL
	if len(args) > 0 {
		url = args[0]
	}
	if url != "" {
		if _, err := mgr.OpenPage(cmd.Context(), url); err != nil {
			logging.BrowserWarn("open %s: %v", url, err)
		}
	}

	fmt.Fprintf(out, "Browser launched. Control URL: %s\n", mgr.ControlURL())
	fmt.Fprintln(out, "Press Ctrl+C to shutdown")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	select {
	case <-sigCh:
	case <-cmd.Context().Done():
	}

	if recorded != "" {
		if err := os.Remove(recorded); err != nil && !os.IsNotExist(err) {
			logging.BootWarn("failed to remove browser control file: %v", err)
		}
	}
	return mgr.Shutdown(context.Background())
}
