package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/policyops/isebridge/docs" // Swagger docs
	"github.com/policyops/isebridge/pkg/api"
	"github.com/policyops/isebridge/pkg/audit"
	"github.com/policyops/isebridge/pkg/config"
	"github.com/policyops/isebridge/pkg/ise"
	"github.com/policyops/isebridge/pkg/schedule"
	"github.com/policyops/isebridge/pkg/webhook"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil {
		logger.Error("isebridge exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	flagSet := flag.NewFlagSet("isebridge", flag.ContinueOnError)
	configPath := flagSet.String("config", "", "Path to configuration file")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	client := ise.NewClient(cfg.ISE, logger)

	// The configured policy set, shell profile and command sets must exist
	// remotely before we accept a single webhook.
	policy, registry, err := ise.Preflight(ctx, client,
		cfg.Policy.PolicySetName,
		cfg.Policy.ShellProfileName,
		cfg.Policy.CommandSetNames,
		logger,
	)
	if err != nil {
		return fmt.Errorf("preflight: %w", err)
	}

	var auditStore *audit.Store
	if cfg.AuditDB != "" {
		auditStore, err = audit.Open(cfg.AuditDB)
		if err != nil {
			return fmt.Errorf("open audit store: %w", err)
		}
		defer auditStore.Close()
	}

	sched := schedule.New(ctx, logger)
	defer sched.Stop()

	svc := webhook.NewService(client, registry, policy, sched, webhook.Options{
		ScheduleStart: cfg.Schedule.Start,
		ScheduleEnd:   cfg.Schedule.End,
		Audit:         auditStore,
	}, logger)

	srv := api.NewServer(api.Config{
		Addr:    cfg.HTTP.Addr,
		APIKey:  cfg.HTTP.APIKey,
		DevMode: cfg.DevMode,
	}, svc, logger)

	logger.Info("listening for webhooks",
		"addr", srv.Addr(),
		"schedule_start", cfg.Schedule.Start,
		"schedule_end", cfg.Schedule.End,
		"active_rules", registry.Len(),
	)
	return srv.Run(ctx)
}
