package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"autoeval/cmd/autoeval/ui"
	"autoeval/internal/browser"
	"autoeval/internal/config"
	"autoeval/internal/control"
	"autoeval/internal/history"
	"autoeval/internal/logging"
	"autoeval/internal/metrics"
	"autoeval/internal/pacing"
	"autoeval/internal/sequencer"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var runFlags struct {
	multi       bool
	autoSubmit  bool
	headless    bool
	noTUI       bool
	watch       bool
	debuggerURL string
	metricsAddr string
	seed        uint64
}

// runCmd runs the automation against the evaluation page
var runCmd = &cobra.Command{
	Use:   "run [url]",
	Short: "Open the evaluation page and run the automation",
	Long: `Connects to Chrome (the one started by 'autoeval browser launch', the
--debugger-url one, or a newly launched instance), finds or opens the page
and starts the control panel.

Without a TUI (--no-tui) the run starts immediately and ends the command;
SIGINT/SIGTERM stop it at the next checkpoint.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAutomation,
}

func registerRunFlags() {
	f := runCmd.Flags()
	f.BoolVar(&runFlags.multi, "multi", false, "Process every pending entity, not just the open one")
	f.BoolVar(&runFlags.autoSubmit, "auto-submit", false, "Submit each entity after saving")
	f.BoolVar(&runFlags.headless, "headless", false, "Launch Chrome headless")
	f.BoolVar(&runFlags.noTUI, "no-tui", false, "Run once without the control panel")
	f.BoolVar(&runFlags.watch, "watch", false, "Reload automation settings when the config file changes")
	f.StringVar(&runFlags.debuggerURL, "debugger-url", "", "Attach to Chrome at this DevTools URL")
	f.StringVar(&runFlags.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	f.Uint64Var(&runFlags.seed, "seed", 0, "Random seed (0 = random)")
}

// tuiActive reports whether the command will hand the terminal to the panel.
func tuiActive(cmd *cobra.Command) bool {
	return cmd == runCmd && !runFlags.noTUI
}

// applyRunFlags folds explicitly set flags into the loaded config.
func applyRunFlags(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("multi") {
		c.Automation.AutoAdvanceEntities = runFlags.multi
	}
	if flags.Changed("auto-submit") {
		c.Automation.AutoSubmit = runFlags.autoSubmit
	}
	if flags.Changed("headless") {
		c.Browser.Headless = runFlags.headless
	}
	if runFlags.debuggerURL != "" {
		c.Browser.DebuggerURL = runFlags.debuggerURL
	}
	if runFlags.metricsAddr != "" {
		c.Metrics.Enabled = true
		c.Metrics.Addr = runFlags.metricsAddr
	}
}

func runAutomation(cmd *cobra.Command, args []string) error {
	applyRunFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	url := cfg.Browser.TargetURL
	if len(args) > 0 {
		url = args[0]
	}

	mgr := browser.NewManager(cfg.Browser)
	if err := mgr.Start(ctx); err != nil {
		return fmt.Errorf("failed to start browser: %w", err)
	}
	defer func() {
		if err := mgr.Shutdown(context.Background()); err != nil {
			logging.BrowserWarn("browser shutdown: %v", err)
		}
	}()

	page, err := mgr.OpenPage(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to open page: %w", err)
	}

	rng := pacing.NewSource(runFlags.seed)
	fe := browser.NewFrontend(page, cfg.Browser, cfg.Selectors, rng)

	var observers []sequencer.Observer
	var rec *metrics.Recorder
	if cfg.Metrics.Enabled {
		rec = metrics.NewRecorder()
		observers = append(observers, rec.Observe)
	}
	if cfg.Logging.History != "" {
		tracker, err := history.NewTracker(cfg.Logging.History)
		if err != nil {
			return err
		}
		observers = append(observers, tracker.Observe)
	}

	eng, err := sequencer.New(fe, cfg.Automation, sequencer.Options{Rand: rng, Observers: observers})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	if rec != nil {
		g.Go(func() error { return rec.Serve(gctx, cfg.Metrics.Addr, cfg.Metrics.Path) })
	}

	var program *tea.Program
	if !runFlags.noTUI {
		program = tea.NewProgram(ui.New(gctx, eng, true), tea.WithAltScreen(), tea.WithContext(gctx))
		eng.Subscribe(ui.Forward(program.Send))
	}

	if runFlags.watch {
		w, err := config.NewWatcher(configPath, func(next *config.Config) {
			patch := eng.Config().Diff(next.Automation)
			if patch.Empty() {
				return
			}
			updated, err := eng.UpdateConfiguration(patch)
			if err != nil {
				logging.ConfigWarn("reloaded settings rejected: %v", err)
				return
			}
			if program != nil {
				program.Send(ui.ConfigReloadedMsg{Config: updated})
			}
		})
		if err != nil {
			return err
		}
		g.Go(func() error { return w.Run(gctx) })
	}

	g.Go(func() error {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)
		select {
		case sig := <-sigCh:
			logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
			eng.Stop()
			if program != nil {
				program.Quit()
			}
		case <-gctx.Done():
		}
		return nil
	})

	g.Go(func() error {
		defer cancel()
		if program != nil {
			_, err := program.Run()
			eng.Stop()
			waitIdle(eng, 5*time.Second)
			if err != nil && gctx.Err() == nil {
				return err
			}
			if sum, ok := eng.LastSummary(); ok {
				printSummary(cmd.OutOrStdout(), sum)
			}
			return nil
		}

		sum, err := eng.Run(gctx, sequencer.ModeFor(eng.Config()))
		printSummary(cmd.OutOrStdout(), sum)
		return err
	})

	return g.Wait()
}

// waitIdle gives a run started from the panel time to reach its next
// checkpoint after Stop.
func waitIdle(eng *sequencer.Engine, limit time.Duration) {
	deadline := time.Now().Add(limit)
	for eng.State() != control.StateIdle && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
}

func printSummary(w io.Writer, sum sequencer.Summary) {
	logger.Info("Run finished",
		zap.String("run_id", sum.RunID),
		zap.String("outcome", string(sum.Outcome)),
		zap.Int("entities", len(sum.Entities)),
		zap.Int("items_set", sum.ItemsSet()),
		zap.Duration("duration", sum.Duration))

	fmt.Fprintf(w, "Run %s (%s mode): %s\n", sum.RunID, sum.Mode, sum.Outcome)
	if sum.Reason != "" {
		fmt.Fprintf(w, "  %s\n", sum.Reason)
	}
	for i, res := range sum.Entities {
		marker := "✓"
		switch {
		case res.Empty:
			marker = "-"
		case res.Failed || res.Errors > 0 || len(res.Missing) > 0:
			marker = "!"
		}
		fmt.Fprintf(w, "  %s %d. %s\n", marker, i+1, res.Line())
		if len(res.Missing) > 0 {
			fmt.Fprintf(w, "       missing controls: %v\n", res.Missing)
		}
	}
	fmt.Fprintf(w, "Items set: %d, item errors: %d, took %v\n", sum.ItemsSet(), sum.ItemErrors(), sum.Duration.Round(time.Second))
}
