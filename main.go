package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"safety-monitor/alerts"
	"safety-monitor/chat"
	"safety-monitor/classifier"
	"safety-monitor/cooldown"
	"safety-monitor/db"
	"safety-monitor/detections"
	"safety-monitor/distress"
	"safety-monitor/observe"
	"safety-monitor/tts"
	"safety-monitor/utils"

	"github.com/joho/godotenv"
	"github.com/mdobak/go-xerrors"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Expected 'serve' subcommand")
		os.Exit(1)
	}
	_ = godotenv.Load()

	switch os.Args[1] {
	case "serve":
		serveCmd := flag.NewFlagSet("serve", flag.ExitOnError)
		protocol := serveCmd.String("proto", "http", "Protocol to use (http or https)")
		port := serveCmd.String("p", utils.GetEnv("PORT", "5000"), "Port to use")
		serveCmd.Parse(os.Args[2:])
		serve(*protocol, *port)
	default:
		fmt.Println("Expected 'serve' subcommand")
		os.Exit(1)
	}
}

// buildApp wires every collaborator from the environment. Optional services
// that are not configured are left nil and logged.
func buildApp(ctx context.Context) (*app, func(), error) {
	logger := utils.GetLogger()

	policy := distress.DefaultPolicy()
	if path := utils.GetEnv("DISTRESS_POLICY_PATH", ""); path != "" {
		loaded, err := distress.LoadPolicy(path)
		if err != nil {
			return nil, nil, fmt.Errorf("load policy: %w", err)
		}
		policy = loaded
		logger.InfoContext(ctx, "loaded distress policy", slog.String("path", path))
	}
	engine := distress.NewEngine(policy, distress.WithLogger(logger))

	store, err := db.NewDBClient()
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	cleanup := []func(){func() { store.Close() }}

	var cd cooldown.Store
	if addr := utils.GetEnv("REDIS_ADDR", ""); addr != "" {
		client, err := cooldown.NewRedisClient(ctx, addr, utils.GetEnv("REDIS_PASSWORD", ""))
		if err != nil {
			logger.WarnContext(ctx, "redis unavailable, keeping cooldowns in memory", slog.Any("error", xerrors.New(err)))
		} else {
			cd = cooldown.NewRedisStore(client)
			cleanup = append(cleanup, func() { client.Close() })
		}
	}
	if cd == nil {
		cd = cooldown.NewMemoryStore()
	}

	metrics := observe.DefaultMetrics()
	alertService := alerts.NewService(store, alerts.NewLogNotifier(logger), cd,
		alerts.WithLogger(logger),
		alerts.WithMetrics(metrics),
	)

	journal := detections.NewJournal(utils.GetEnv("DETECTIONS_JOURNAL_PATH", filepath.Join("data", "detections.json")))

	a := newApp(engine, alertService, store, journal)
	a.metrics = metrics
	a.logger = logger

	if url := utils.GetEnv("CLASSIFIER_URL", ""); url != "" {
		a.classifier = classifier.NewClient(url, utils.GetEnv("CLASSIFIER_API_KEY", ""))
	}

	if key := utils.GetEnv("GEMINI_API_KEY", ""); key != "" {
		client, err := chat.NewGeminiClient(ctx, key)
		if err != nil {
			logger.WarnContext(ctx, "assistant disabled", slog.Any("error", xerrors.New(err)))
		} else {
			a.chat = client
			cleanup = append(cleanup, func() { client.Close() })
		}
	}

	if key := utils.GetEnv("GOOGLE_TTS_API_KEY", ""); key != "" {
		client, err := tts.NewGoogleTTSClient(key)
		if err != nil {
			logger.WarnContext(ctx, "spoken prompts disabled", slog.Any("error", xerrors.New(err)))
		} else {
			a.tts = client
		}
	}

	return a, func() {
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
	}, nil
}
