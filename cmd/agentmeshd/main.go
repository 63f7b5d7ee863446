// Command agentmeshd is the coordination daemon: it opens an engine.Engine
// against a project's .claude directory and runs the periodic maintenance
// sweep (expired-message cleanup, expired-ballot auto-tally) until signaled
// to stop.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agentmesh/engine/internal/store"
	"github.com/agentmesh/engine/pkg/concurrency"
	"github.com/agentmesh/engine/pkg/config"
	"github.com/agentmesh/engine/pkg/engine"
	"github.com/agentmesh/engine/pkg/logger"
	"github.com/agentmesh/engine/pkg/messagequeue"
	"github.com/robfig/cron/v3"
)

// daemonConfig is the root of cmd/agentmeshd's environment configuration,
// composing the ambient logger config with the engine's own.
type daemonConfig struct {
	Logger logger.Config
	Store  store.Config

	Resilience messagequeue.ResilientQueueConfig

	// MaintenanceSchedule is a standard five-field cron expression; the
	// default runs the sweep once a minute.
	MaintenanceSchedule string `env:"AGENTMESH_MAINTENANCE_CRON" env-default:"*/1 * * * *"`
}

func main() {
	var cfg daemonConfig
	if err := config.Load(&cfg); err != nil {
		// Logger isn't initialized yet; this is the one place that writes
		// straight to stderr.
		os.Stderr.WriteString("agentmeshd: failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Init(cfg.Logger)
	log := logger.L()

	eng, err := engine.Open(engine.Config{Store: cfg.Store, Resilience: cfg.Resilience})
	if err != nil {
		log.Error("failed to open engine", "error", err)
		os.Exit(1)
	}
	defer eng.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool := concurrency.NewWorkerPool(2, 4)
	pool.Start(ctx)
	defer pool.Stop()

	c := cron.New()
	_, err = c.AddFunc(cfg.MaintenanceSchedule, func() {
		pool.Submit(func(taskCtx context.Context) {
			runMaintenance(taskCtx, eng, log)
		})
	})
	if err != nil {
		log.Error("failed to schedule maintenance sweep", "error", err)
		os.Exit(1)
	}
	c.Start()
	defer c.Stop()

	log.Info("agentmeshd started", "root_dir", cfg.Store.RootDir, "schedule", cfg.MaintenanceSchedule)
	<-ctx.Done()
	log.Info("agentmeshd shutting down")
}

// runMaintenance sweeps expired messages and auto-tallies any open ballot
// whose deadline has passed, mirroring what a caller would otherwise have
// to poll for manually.
func runMaintenance(ctx context.Context, eng *engine.Engine, log *slog.Logger) {
	n, err := eng.Messages.CleanupExpired(ctx)
	if err != nil {
		log.ErrorContext(ctx, "cleanup_expired failed", "error", err)
	} else if n > 0 {
		log.InfoContext(ctx, "cleaned up expired messages", "count", n)
	}

	open, err := eng.Votes.OpenVotes(ctx)
	if err != nil {
		log.ErrorContext(ctx, "failed to list open votes", "error", err)
		return
	}
	now := time.Now().UTC()
	for _, ballot := range open {
		if now.Before(ballot.Deadline) {
			continue
		}
		if _, err := eng.Votes.Tally(ctx, ballot.VoteID, false); err != nil {
			log.ErrorContext(ctx, "failed to auto-tally expired vote", "vote_id", ballot.VoteID, "error", err)
		} else {
			log.InfoContext(ctx, "auto-tallied expired vote", "vote_id", ballot.VoteID)
		}
	}
}
