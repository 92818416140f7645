// orderwatch watches broker logs for terminal proving failures, resets the
// stuck order via an external script, captures container diagnostics, and
// reports resets via Telegram.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	sddaemon "github.com/coreos/go-systemd/v22/daemon"

	"github.com/setevik/orderwatch/internal/config"
	"github.com/setevik/orderwatch/internal/debounce"
	"github.com/setevik/orderwatch/internal/diag"
	"github.com/setevik/orderwatch/internal/matcher"
	"github.com/setevik/orderwatch/internal/notify"
	"github.com/setevik/orderwatch/internal/reset"
	"github.com/setevik/orderwatch/internal/store"
	"github.com/setevik/orderwatch/internal/trigger"
	"github.com/setevik/orderwatch/internal/watcher"
)

var version = "dev"

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "query":
			runQuery(os.Args[2:])
			return
		case "status":
			runStatus(os.Args[2:])
			return
		case "test-telegram":
			runTestTelegram(os.Args[2:])
			return
		case "version":
			fmt.Println("orderwatch", version)
			return
		}
	}

	// Default: run daemon.
	runDaemon(os.Args[1:])
}

func runDaemon(args []string) {
	fs := flag.NewFlagSet("orderwatch", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	showVersion := fs.Bool("version", false, "print version and exit")
	fs.Parse(args)

	if *showVersion {
		fmt.Println("orderwatch", version)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}

	setupLogging(cfg.Log.Level)

	slog.Info("orderwatch starting",
		"version", version,
		"instance", cfg.Instance.ID,
		"source", cfg.Source.Mode,
	)

	if err := run(cfg); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Open reset history database.
	db, err := store.Open(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("opening reset database: %w", err)
	}
	defer db.Close()

	slog.Info("reset database opened", "path", cfg.DBPath())

	// Run retention purge on startup.
	if cfg.DB.Retention.Duration > 0 {
		purged, err := db.Purge(cfg.DB.Retention.Duration)
		if err != nil {
			slog.Warn("failed to purge old triggers", "error", err)
		} else if purged > 0 {
			slog.Info("purged old triggers", "count", purged, "retention", cfg.DB.Retention.Duration)
		}
	}

	// Telegram is optional: a missing env file just disables it.
	creds, err := notify.LoadCredentials(cfg.Telegram.EnvFile)
	if err != nil {
		slog.Warn("could not read telegram credentials", "path", cfg.Telegram.EnvFile, "error", err)
	}
	notifier := notify.New(creds)
	if notifier.Enabled() {
		slog.Info("telegram notifications enabled")
	} else {
		slog.Info("telegram notifications disabled", "env_file", cfg.Telegram.EnvFile)
	}

	p := &pipeline{
		matcher: matcher.New(cfg.Matcher.Markers),
		cooldown: debounce.New(cfg.Cooldown.Window.Duration),
		capturer: diag.New(diag.Options{
			Dir:            cfg.Diagnostics.Dir,
			Containers:     cfg.Diagnostics.Containers,
			LogWindow:      cfg.Diagnostics.LogWindow.Duration,
			CommandTimeout: cfg.Diagnostics.CommandTimeout.Duration,
		}),
		dispatcher: reset.New(cfg.Reset.Command, cfg.Reset.Timeout.Duration),
		notifier:   notifier,
		db:         db,
		now:        time.Now,
	}

	lines, err := buildSource(cfg).Lines(ctx)
	if err != nil {
		return fmt.Errorf("starting log source: %w", err)
	}

	// Notify systemd we are ready (sd_notify).
	_, _ = sddaemon.SdNotify(false, sddaemon.SdNotifyReady)

	// Start watchdog ticker if WatchdogSec is configured.
	var watchdogTicker *time.Ticker
	if wdInterval, err := sddaemon.SdWatchdogEnabled(false); err == nil && wdInterval > 0 {
		// Ping at half the watchdog interval.
		watchdogTicker = time.NewTicker(wdInterval / 2)
		defer watchdogTicker.Stop()
		slog.Info("systemd watchdog enabled", "interval", wdInterval)
	}

	slog.Info("watching for prover failures", "cooldown", p.cooldown.Window())

	for {
		// Watchdog channel (nil if disabled, select skips nil channels).
		var watchdogCh <-chan time.Time
		if watchdogTicker != nil {
			watchdogCh = watchdogTicker.C
		}

		select {
		case line, ok := <-lines:
			if !ok {
				slog.Info("input stream closed, exiting")
				return nil
			}
			p.handleLine(ctx, line)

		case <-watchdogCh:
			_, _ = sddaemon.SdNotify(false, sddaemon.SdNotifyWatchdog)

		case sig := <-sigCh:
			slog.Info("received signal, shutting down", "signal", sig)
			_, _ = sddaemon.SdNotify(false, sddaemon.SdNotifyStopping)
			cancel()
			return nil
		}
	}
}

// buildSource creates the configured line source. The docker source is
// supervised because the followed container can restart under it.
func buildSource(cfg *config.Config) watcher.LineSource {
	if cfg.Source.Mode == "docker" {
		return watcher.NewSupervisedSource(
			func() watcher.LineSource {
				return watcher.NewDockerLogSource(cfg.Source.Container)
			},
			5*time.Second, // restart wait
			0,             // unlimited restarts
		)
	}
	return watcher.NewStdinSource(os.Stdin)
}

// --- query subcommand ---

func runQuery(args []string) {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	last := fs.String("last", "24h", "time window (e.g. 24h, 7d, 30d)")
	order := fs.String("order", "", "filter by order ID")
	outcome := fs.String("outcome", "", "filter by outcome (reset_ok, reset_failed)")
	limit := fs.Int("limit", 50, "max triggers to show")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}

	setupLogging("error") // quiet for CLI output

	db, err := store.Open(cfg.DBPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	since, err := parseDuration(*last)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid --last value %q: %v\n", *last, err)
		os.Exit(1)
	}

	if *order != "" && !matcher.IsOrderID(*order) {
		fmt.Fprintf(os.Stderr, "invalid --order value %q: want 0x followed by 64 hex chars\n", *order)
		os.Exit(1)
	}

	triggers, err := db.Query(store.QueryFilter{
		Since:   time.Now().Add(-since),
		OrderID: *order,
		Outcome: *outcome,
		Limit:   *limit,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "query error: %v\n", err)
		os.Exit(1)
	}

	if len(triggers) == 0 {
		fmt.Println("No resets found.")
		return
	}

	printTriggers(triggers)
}

func printTriggers(triggers []*trigger.Trigger) {
	for _, tr := range triggers {
		ts := tr.Timestamp.Local().Format("2006-01-02 15:04:05")
		notified := ""
		if tr.Notified {
			notified = " (notified)"
		}
		fmt.Printf("%s  [%s] %s%s\n", ts, tr.Outcome.Label(), tr.OrderID, notified)
		if tr.DiagFile != "" {
			fmt.Printf("             Diagnostics: %s\n", tr.DiagFile)
		}
		fmt.Println()
	}
	fmt.Printf("Total: %d reset(s)\n", len(triggers))
}

// --- status subcommand ---

func runStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}

	setupLogging("error")

	fmt.Printf("Instance:     %s\n", cfg.Instance.ID)
	fmt.Printf("Reset cmd:    %s\n", cfg.Reset.Command)
	fmt.Printf("Cooldown:     %s\n", cfg.Cooldown.Window.Duration)

	db, err := store.Open(cfg.DBPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	// Last reset.
	lastTriggers, err := db.Query(store.QueryFilter{Limit: 1})
	if err == nil && len(lastTriggers) > 0 {
		tr := lastTriggers[0]
		ago := time.Since(tr.Timestamp).Truncate(time.Second)
		fmt.Printf("Last reset:   [%s] %s — %s ago\n", tr.Outcome.Label(), tr.OrderID, formatDuration(ago))
	} else {
		fmt.Println("Last reset:   none")
	}

	// Reset counts for last 24h.
	since24h := time.Now().Add(-24 * time.Hour)
	triggers24h, _ := db.Query(store.QueryFilter{Since: since24h})

	var ok, failed int
	for _, tr := range triggers24h {
		switch tr.Outcome {
		case trigger.OutcomeResetOK:
			ok++
		case trigger.OutcomeResetFailed:
			failed++
		}
	}
	fmt.Printf("Resets (24h): %d ok, %d failed\n", ok, failed)

	// Telegram state.
	creds, _ := notify.LoadCredentials(cfg.Telegram.EnvFile)
	if creds.Valid() {
		fmt.Println("Telegram:     configured")
	} else {
		fmt.Printf("Telegram:     disabled (no credentials in %s)\n", cfg.Telegram.EnvFile)
	}

	// DB info.
	count, _ := db.Count()
	fmt.Printf("DB resets:    %d total\n", count)
	fmt.Printf("DB path:      %s\n", cfg.DBPath())
}

// --- test-telegram subcommand ---

func runTestTelegram(args []string) {
	fs := flag.NewFlagSet("test-telegram", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}

	setupLogging(cfg.Log.Level)

	creds, err := notify.LoadCredentials(cfg.Telegram.EnvFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error reading credentials: %v\n", err)
		os.Exit(1)
	}
	if !creds.Valid() {
		fmt.Fprintf(os.Stderr, "error: no TG_TOKEN/TG_CHAT_ID in %s\n", cfg.Telegram.EnvFile)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	msg := fmt.Sprintf("Test notification from orderwatch on %s", cfg.Instance.ID)
	if err := notify.New(creds).Send(ctx, msg); err != nil {
		fmt.Fprintf(os.Stderr, "error sending test notification: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Test notification sent successfully.")
}

// --- utilities ---

func setupLogging(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}

// parseDuration extends time.ParseDuration with support for "d" (days) suffix.
func parseDuration(s string) (time.Duration, error) {
	if strings.HasSuffix(s, "d") {
		s = strings.TrimSuffix(s, "d")
		var days int
		if _, err := fmt.Sscanf(s, "%d", &days); err != nil {
			return 0, fmt.Errorf("invalid days format: %s", s)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}

// formatDuration formats a duration in human-readable form.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		return fmt.Sprintf("%dh %dm", h, m)
	}
	days := int(d.Hours()) / 24
	h := int(d.Hours()) % 24
	return fmt.Sprintf("%dd %dh", days, h)
}
