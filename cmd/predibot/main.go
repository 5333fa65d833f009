package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alejandrodnm/predibot/config"
	"github.com/alejandrodnm/predibot/internal/adapters/feed"
	"github.com/alejandrodnm/predibot/internal/adapters/notify"
	"github.com/alejandrodnm/predibot/internal/adapters/storage"
	"github.com/alejandrodnm/predibot/internal/adapters/twitch"
	"github.com/alejandrodnm/predibot/internal/domain"
	"github.com/alejandrodnm/predibot/internal/ports"
	"github.com/alejandrodnm/predibot/internal/profiler"
	"github.com/alejandrodnm/predibot/internal/stability"
	"github.com/alejandrodnm/predibot/internal/strategy"
	"github.com/alejandrodnm/predibot/internal/tracker"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	noScan := flag.Bool("no-scan", false, "disable the redundant polling scanner")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	slog.Info("predibot starting",
		"config", *configPath,
		"streamers", len(cfg.Streamers),
		"redis", cfg.Feed.RedisAddr,
		"scanner", cfg.Scanner.Enabled && !*noScan,
	)

	store, err := storage.NewSQLiteStore(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	profiles, err := profiler.New(store, cfg.Profiler.CacheSize, slog.Default())
	if err != nil {
		slog.Error("failed to build profiler", "err", err)
		os.Exit(1)
	}

	client := twitch.NewClient(cfg.Twitch.GQLBase, cfg.Twitch.ClientID, cfg.Twitch.Token)
	notifier := notify.NewConsole()

	trk := tracker.New(tracker.Params{
		Engine:    strategy.NewEngine(),
		Monitor:   stability.NewMonitor(cfg.Stability),
		Profiles:  profiles,
		Submitter: client,
		Provider:  client,
		Notifier:  notifier,
		Logger:    slog.Default(),
		BetConfig: cfg.BetConfigFor,
	})

	source := feed.NewRedisSource(
		redis.NewClient(&redis.Options{Addr: cfg.Feed.RedisAddr}),
		cfg.Feed.Channel,
		slog.Default(),
	)
	defer source.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go profiles.Run(ctx)

	feedErr := make(chan error, 1)
	go func() { feedErr <- source.Start(ctx) }()

	if cfg.Scanner.Enabled && !*noScan {
		scn := tracker.NewScanner(trk, client, cfg.StreamerIDs(), cfg.ScanInterval(), cfg.ScanGrace(), slog.Default())
		go scn.Run(ctx)
	}

	go reportLoop(ctx, cfg, trk, profiles, notifier)

	run(ctx, trk, source, feedErr)

	// Esperar a que las goroutines de apuesta y resolución terminen.
	trk.Wait()
	slog.Info("predibot stopped cleanly")
}

// run bombea mensajes del feed al tracker hasta que el contexto termine o el
// feed falle de forma irrecuperable.
func run(ctx context.Context, trk *tracker.Tracker, source ports.MessageSource, feedErr <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return

		case err := <-feedErr:
			if err != nil {
				slog.Error("feed exited with error", "err", err)
				os.Exit(1)
			}
			return

		case msg, ok := <-source.Messages():
			if !ok {
				return
			}
			trk.Handle(ctx, msg)
		}
	}
}

// reportLoop imprime periódicamente el estado de las predicciones en
// seguimiento y los perfiles aprendidos.
func reportLoop(ctx context.Context, cfg *config.Config, trk *tracker.Tracker, profiles *profiler.Service, notifier ports.Notifier) {
	ticker := time.NewTicker(cfg.ReportInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			active := trk.ActiveSnapshots()
			summary := profileSummaries(ctx, cfg, profiles)
			if err := notifier.Report(ctx, active, summary); err != nil {
				slog.Warn("report failed", "err", err)
			}
		}
	}
}

func profileSummaries(ctx context.Context, cfg *config.Config, profiles *profiler.Service) []domain.StreamerProfile {
	ids := cfg.StreamerIDs()
	out := make([]domain.StreamerProfile, 0, len(ids))
	for _, id := range ids {
		out = append(out, profiles.ProfileFor(ctx, id))
	}
	return out
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
