package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	protocol "github.com/strafehq/strafe/packages/config"
	"github.com/strafehq/strafe/packages/core/scenario"
	"github.com/strafehq/strafe/packages/store"
	"github.com/strafehq/strafe/packages/stress"
)

// WatchDebounceDelay coalesces rapid editor write events.
const WatchDebounceDelay = 300 * time.Millisecond

var (
	runDuration   time.Duration
	runRate       float64
	runVUs        int
	runMaxVUs     int
	runRampUp     time.Duration
	runThink      time.Duration
	runThresholds string
	runConfigPath string
	runStorePath  string
	runWatch      bool
	runNoColor    bool
	runNoProgress bool
)

var runCmd = &cobra.Command{
	Use:   "run <scenario.yaml>",
	Short: "Run a load test scenario",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

func init() {
	runCmd.Flags().DurationVarP(&runDuration, "duration", "d", 30*time.Second, "test duration")
	runCmd.Flags().Float64VarP(&runRate, "rate", "r", 0, "requests per second (rate mode)")
	runCmd.Flags().IntVarP(&runVUs, "vus", "u", 0, "virtual users (vu mode)")
	runCmd.Flags().IntVar(&runMaxVUs, "max-vus", 100, "max in-flight requests")
	runCmd.Flags().DurationVar(&runRampUp, "ramp-up", 0, "linear ramp-up time")
	runCmd.Flags().DurationVar(&runThink, "think", 0, "default think time between requests per VU")
	runCmd.Flags().StringVar(&runThresholds, "thresholds", "", `pass/fail thresholds, e.g. "p95<200ms,errors<1%"`)
	runCmd.Flags().StringVarP(&runConfigPath, "config", "c", ".strafe.yaml", "protocol config file")
	runCmd.Flags().StringVar(&runStorePath, "store", "", "SQLite run-history file to append the summary to")
	runCmd.Flags().BoolVarP(&runWatch, "watch", "w", false, "re-run when the scenario file changes")
	runCmd.Flags().BoolVar(&runNoColor, "no-color", false, "disable colored output")
	runCmd.Flags().BoolVar(&runNoProgress, "no-progress", false, "disable the live progress line")
}

func buildStressConfig() (*stress.Config, error) {
	cfg := stress.DefaultConfig()
	cfg.Duration = runDuration
	cfg.MaxVUs = runMaxVUs
	cfg.RampUp = runRampUp
	cfg.ThinkTime = runThink

	switch {
	case runVUs > 0 && runRate > 0:
		return nil, fmt.Errorf("--rate and --vus are mutually exclusive")
	case runVUs > 0:
		cfg.Mode = stress.VUMode
		cfg.VUs = runVUs
	case runRate > 0:
		cfg.Mode = stress.RateMode
		cfg.Rate = runRate
	}

	thresholds, err := stress.ParseThresholds(runThresholds)
	if err != nil {
		return nil, err
	}
	cfg.Thresholds = thresholds

	return cfg, nil
}

func runRun(cmd *cobra.Command, args []string) error {
	scenarioPath := args[0]

	protoCfg, err := protocol.LoadOrDefault(runConfigPath)
	if err != nil {
		return err
	}

	runOnce := func(ctx context.Context) (bool, error) {
		stressCfg, err := buildStressConfig()
		if err != nil {
			return false, err
		}

		file, err := scenario.Load(scenarioPath)
		if err != nil {
			return false, err
		}

		reporter := stress.NewReporter(
			stress.WithWriter(cmd.OutOrStdout()),
			stress.WithNoColor(runNoColor),
			stress.WithNoProgress(runNoProgress),
		)

		runner := stress.NewRunner(stressCfg,
			stress.WithProtocolConfig(protoCfg),
			stress.WithReporter(reporter),
		)
		if err := runner.Load(file); err != nil {
			return false, err
		}

		startedAt := time.Now()
		result, err := runner.Run(ctx)
		if err != nil {
			return false, err
		}

		if runStorePath != "" {
			if err := saveRun(file, startedAt, result); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to save run: %v\n", err)
			}
		}

		return result.Passed, nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	passed, err := runOnce(ctx)
	if err != nil {
		return err
	}

	if !runWatch {
		if !passed {
			os.Exit(1)
		}
		return nil
	}

	return watchAndRerun(ctx, cmd, scenarioPath, runOnce)
}

func saveRun(file *scenario.File, startedAt time.Time, result *stress.Result) error {
	s, err := store.Open(runStorePath)
	if err != nil {
		return err
	}
	defer s.Close()

	name := file.Name
	if name == "" {
		name = filepath.Base(file.Path)
	}

	return s.Save(&store.Run{
		Scenario:  name,
		StartedAt: startedAt,
		Duration:  result.Summary.Duration,
		Requests:  result.Summary.TotalRequests,
		Errors:    result.Summary.ErrorCount,
		RPS:       result.Summary.RPS,
		P50Ms:     float64(result.Summary.P50.Microseconds()) / 1000,
		P95Ms:     float64(result.Summary.P95.Microseconds()) / 1000,
		P99Ms:     float64(result.Summary.P99.Microseconds()) / 1000,
	})
}

func watchAndRerun(ctx context.Context, cmd *cobra.Command, scenarioPath string, runOnce func(context.Context) (bool, error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(scenarioPath)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", scenarioPath, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nWatching for changes... (press Ctrl+C to stop)\n")

	var debounceTimer *time.Timer
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) || !isScenarioFile(event.Name) {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(WatchDebounceDelay, func() {
				fmt.Fprintf(cmd.OutOrStdout(), "\nFile changed: %s\nRe-running...\n\n", event.Name)
				if _, err := runOnce(ctx); err != nil {
					fmt.Fprintf(os.Stderr, "error: %v\n", err)
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "watch error: %v\n", err)
		}
	}
}

func isScenarioFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
