package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/jonboulle/clockwork"
	_ "go.uber.org/automaxprocs"

	"github.com/cleanmate/chat-relay/internal/backend"
	"github.com/cleanmate/chat-relay/internal/config"
	"github.com/cleanmate/chat-relay/internal/logging"
	"github.com/cleanmate/chat-relay/internal/monitoring"
	"github.com/cleanmate/chat-relay/internal/relay"
	"github.com/cleanmate/chat-relay/internal/transport"
)

func main() {
	debug := flag.Bool("debug", false, "enable debug logging (overrides LOG_LEVEL)")
	flag.Parse()

	bootLog := logging.New("info", "json")

	cfg, err := config.Load(&bootLog)
	if err != nil {
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *debug {
		cfg.LogLevel = "debug"
	}

	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	// automaxprocs has already clamped GOMAXPROCS to the container CPU limit.
	log.Info().
		Int("gomaxprocs", runtime.GOMAXPROCS(0)).
		Str("addr", cfg.Addr).
		Str("backend_url", cfg.BackendBaseURL).
		Dur("heartbeat_interval", cfg.HeartbeatInterval).
		Int("max_connections", cfg.MaxConnections).
		Msg("Starting chat relay")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats, err := monitoring.NewStatsCollector(cfg.StatsInterval, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to start stats collector")
	}
	go stats.Run(ctx)

	hub := relay.NewHub(log, cfg.SendBufferSize)
	client := backend.NewClient(cfg.BackendBaseURL, cfg.NotifyURL, cfg.BackendTimeout, log)
	handler := relay.NewHandler(hub, client, log)

	reaper := relay.NewReaper(hub, cfg.HeartbeatInterval, clockwork.NewRealClock(), log)
	go reaper.Run(ctx)

	server := transport.NewServer(cfg, log, hub, handler, stats)
	if err := server.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}

	log.Info().Msg("Shutdown complete")
}
