package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixonmars/watchexec/config"
	"github.com/felixonmars/watchexec/internal/engine"
	"github.com/felixonmars/watchexec/internal/event"
	"github.com/felixonmars/watchexec/internal/filter"
	"github.com/felixonmars/watchexec/internal/journal"
	"github.com/felixonmars/watchexec/internal/watch"
)

// exitCode is what main passes to os.Exit after a clean run.
var exitCode int

type flags struct {
	configFile  string
	debounceMs  int
	graceMs     int
	stopSignal  string
	onBusy      string
	busySignal  string
	watchPaths  []string
	patterns    []string
	ignores     []string
	projectRoot string
	workDir     string
	env         []string
	journalPath string
}

func rootCmd() *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:   "watchexec [flags] -- command [args...]",
		Short: "Run a command whenever watched files change",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return run(cmd.Context(), &f, args)
		},
	}

	cmd.Flags().StringVarP(&f.configFile, "config", "c", "", "YAML config file")
	cmd.Flags().IntVar(&f.debounceMs, "debounce", -1, "debounce window in milliseconds")
	cmd.Flags().IntVar(&f.graceMs, "grace", -1, "termination grace period in milliseconds")
	cmd.Flags().StringVarP(&f.stopSignal, "signal", "s", "", "signal sent to stop the command (default SIGTERM)")
	cmd.Flags().StringVar(&f.onBusy, "on-busy", "", "what to do when a trigger arrives while running: queue, restart or signal")
	cmd.Flags().StringVar(&f.busySignal, "busy-signal", "", "signal delivered for --on-busy=signal")
	cmd.Flags().StringArrayVarP(&f.watchPaths, "watch", "w", nil, "path to watch (repeatable, default .)")
	cmd.Flags().StringArrayVarP(&f.patterns, "filter", "f", nil, "only act on paths matching this glob (repeatable)")
	cmd.Flags().StringArrayVarP(&f.ignores, "ignore", "i", nil, "ignore paths matching this glob (repeatable)")
	cmd.Flags().StringVar(&f.projectRoot, "project-root", "", "project root for path display")
	cmd.Flags().StringVar(&f.workDir, "workdir", "", "working directory for the command")
	cmd.Flags().StringArrayVarP(&f.env, "env", "E", nil, "extra KEY=VALUE for the command (repeatable)")
	cmd.Flags().StringVar(&f.journalPath, "journal", "", "SQLite file recording actions and exits")

	return cmd
}

func buildConfig(f *flags, command []string) (*config.Config, error) {
	cfg, err := config.Load(f.configFile)
	if err != nil {
		return nil, err
	}

	cfg.Command = command
	if f.debounceMs >= 0 {
		cfg.Debounce = config.Duration(time.Duration(f.debounceMs) * time.Millisecond)
	}
	if f.graceMs >= 0 {
		cfg.Grace = config.Duration(time.Duration(f.graceMs) * time.Millisecond)
	}
	if f.stopSignal != "" {
		sig, err := event.ParseSignal(f.stopSignal)
		if err != nil {
			return nil, err
		}
		cfg.StopSignal = sig
	}
	if f.onBusy != "" {
		cfg.Policy = config.Policy(f.onBusy)
	}
	if f.busySignal != "" {
		sig, err := event.ParseSignal(f.busySignal)
		if err != nil {
			return nil, err
		}
		cfg.BusySignal = sig
	}
	if len(f.watchPaths) > 0 {
		cfg.WatchPaths = f.watchPaths
	}
	if len(f.patterns) > 0 {
		cfg.WatchPatterns = f.patterns
	}
	if len(f.ignores) > 0 {
		cfg.IgnorePatterns = f.ignores
	}
	if f.projectRoot != "" {
		cfg.ProjectRoot = f.projectRoot
	}
	if f.workDir != "" {
		cfg.WorkDir = f.workDir
	}
	if len(f.env) > 0 {
		cfg.Env = append(cfg.Env, f.env...)
	}
	if f.journalPath != "" {
		cfg.JournalPath = f.journalPath
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(ctx context.Context, f *flags, command []string) error {
	cfg, err := buildConfig(f, command)
	if err != nil {
		return err
	}

	filterer := filter.NewGlob(cfg.ProjectRoot)
	if err := filterer.SetWatchPatterns(cfg.WatchPatterns); err != nil {
		return fmt.Errorf("watch patterns: %w", err)
	}
	if err := filterer.SetIgnorePatterns(cfg.IgnorePatterns); err != nil {
		return fmt.Errorf("ignore patterns: %w", err)
	}

	opts := []engine.Option{engine.WithFilterer(filterer)}

	var jnl *journal.Journal
	if cfg.JournalPath != "" {
		jnl, err = journal.Open(cfg.JournalPath)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer jnl.Close()
		opts = append(opts, engine.WithJournal(jnl))
	}

	eng, err := engine.New(cfg, opts...)
	if err != nil {
		return err
	}

	watcher, err := watch.NewWatcher(eng)
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Stop()
	for _, path := range cfg.WatchPaths {
		if err := watcher.AddPath(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
	}

	notifications, unsubscribe := eng.Subscribe()
	defer unsubscribe()
	go func() {
		for n := range notifications {
			if n.Exit != nil {
				log.Printf("[%s] %s -> %s (exit code %d)", n.JobID[:8], n.From, n.To, n.Exit.Code)
			} else {
				log.Printf("[%s] %s -> %s", n.JobID[:8], n.From, n.To)
			}
		}
	}()

	go func() {
		for err := range watcher.Errors() {
			log.Printf("watcher error: %v", err)
		}
	}()

	sigCtx, cancelSignals := context.WithCancel(ctx)
	defer cancelSignals()
	watch.Signals(sigCtx, eng)

	if err := eng.Start(); err != nil {
		return err
	}
	watcher.Start()

	<-eng.Done()

	if eng.StartupFailed() {
		exitCode = 1
	}
	return nil
}
