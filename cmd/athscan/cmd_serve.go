package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"ATHScanner/internal/logger"
	"ATHScanner/internal/notifier"
	"ATHScanner/internal/scheduler"
	"ATHScanner/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduled scanner with its HTTP API",
	Long: `Run the scanner as a service: the cron trigger, the HTTP API with its
websocket progress stream, and the Telegram bot when configured.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.GetLogger().WithComponent("main")
	log.Info("ATH scanner starting...")

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	hub := server.NewHub(cfg.Location())
	a.sinks.Add(hub)

	var tn *notifier.TelegramNotifier
	if cfg.TelegramEnabled() {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
		tn.Location = cfg.Location()
		a.sinks.Add(tn)
	}

	orch, err := a.newOrchestrator(ctx)
	if err != nil {
		return fmt.Errorf("init scanner: %w", err)
	}

	var messenger scheduler.Messenger
	if tn != nil {
		messenger = tn
	}
	sched := scheduler.NewScheduler(ctx, orch, messenger, cfg.Location())
	if err := sched.Register(cfg.Schedule.ScanCron); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	if tn != nil {
		go tn.StartPolling(ctx, sched.HandleCommand)
		log.Info("Telegram polling started")
	}

	srv := server.New(server.Config{
		Addr:         cfg.Server.Addr,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}, server.Deps{
		Scanner:  orch,
		Results:  a.results,
		History:  historySource(a),
		Symbols:  a.symbols,
		Hub:      hub,
		Metrics:  a.metrics.Handler(),
		LogFile:  logger.GetLogger().File(),
		Location: cfg.Location(),
	})
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	if cfg.Scan.RunOnStart {
		log.Info("RUN_ON_START enabled, starting a scan now")
		if _, err := sched.RunNow(); err != nil {
			log.Warnf("initial scan: %v", err)
		}
	}

	log.Info("ATH scanner is running. Press Ctrl+C to stop.")
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, stopping...")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	_ = orch.CancelScan()
	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnf("http shutdown: %v", err)
	}
	fmt.Fprintln(os.Stderr, "ATH scanner stopped")
	return nil
}

// historySource keeps a nil *SQLStore from becoming a non-nil interface.
func historySource(a *app) server.HistorySource {
	if a.history == nil {
		return nil
	}
	return a.history
}
