package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dan1elw/LARA/internal/ai"
	"github.com/dan1elw/LARA/internal/ai/gemini"
	"github.com/dan1elw/LARA/internal/analysis"
	"github.com/dan1elw/LARA/internal/api"
	"github.com/dan1elw/LARA/internal/config"
	"github.com/dan1elw/LARA/internal/geo"
	"github.com/dan1elw/LARA/internal/opensky"
	"github.com/dan1elw/LARA/internal/report"
	"github.com/dan1elw/LARA/internal/storage/sqlite"
	"github.com/dan1elw/LARA/internal/tracking"
	"github.com/dan1elw/LARA/internal/websocket"
	"github.com/dan1elw/LARA/pkg/logger"
)

var (
	// Version is injected at build time
	Version = "dev"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file (optional - will search in configs/ and root directory)")
	flag.Parse()

	cfg, err := config.LoadWithFallback(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LoggerConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting LARA server",
		logger.String("version", Version),
		logger.String("config_path", *configPath),
	)

	home := cfg.Home()
	spheroid := geo.WGS84

	if dir := filepath.Dir(cfg.Storage.SQLitePath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Error("Failed to create database directory", logger.Error(err), logger.String("path", dir))
			os.Exit(1)
		}
	}

	store, err := sqlite.New(cfg.Storage.SQLitePath, spheroid, home, cfg.Storage.MaxPositionsInAPI, log)
	if err != nil {
		log.Error("Failed to create SQLite storage", logger.Error(err))
		os.Exit(1)
	}
	defer store.Close()
	log.Info("Using SQLite storage", logger.String("path", cfg.Storage.SQLitePath))

	wsServer := websocket.NewServer(log)
	go wsServer.Run()

	segmenter, err := tracking.NewSegmenter(spheroid, home, cfg.SessionTimeout(), log)
	if err != nil {
		log.Error("Failed to create session segmenter", logger.Error(err))
		os.Exit(1)
	}

	openskyClient := opensky.NewClient(opensky.ClientConfig{
		APIURL:       cfg.Tracking.OpenSkyAPIURL,
		TokenURL:     cfg.Tracking.OpenSkyTokenURL,
		ClientID:     cfg.Tracking.OpenSkyClientID,
		ClientSecret: cfg.Tracking.OpenSkyClientSecret,
	}, log)

	collector, err := opensky.NewService(openskyClient, segmenter, store, wsServer, spheroid, opensky.ServiceConfig{
		Home:          home,
		RadiusKM:      cfg.Tracking.RadiusKM,
		FetchInterval: cfg.FetchInterval(),
	}, log)
	if err != nil {
		log.Error("Failed to create OpenSky collector", logger.Error(err))
		os.Exit(1)
	}

	analyzer, err := analysis.NewAnalyzer(spheroid, home, cfg.Location(), cfg.AnalysisOptions(), log)
	if err != nil {
		log.Error("Failed to create analyzer", logger.Error(err))
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var summarizer ai.SummaryProvider
	if cfg.AI.Enabled {
		geminiClient, err := gemini.NewClient(ctx, cfg.AI.APIKey, log)
		if err != nil {
			// Continue without summaries rather than failing
			log.Error("Failed to create Gemini client", logger.Error(err))
		} else {
			summarizer = geminiClient
			log.Info("AI report summaries enabled", logger.String("model", cfg.AI.Model))
		}
	}

	reportService := report.NewService(store, analyzer, summarizer, ai.SummaryConfig{Model: cfg.AI.Model}, log)

	handler := api.NewHandler(store, reportService, wsServer, log)
	router := api.NewRouter(handler, cfg.Server.CORSAllowedOrigins...)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := collector.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return runAnalysisScheduler(gctx, cfg.AnalysisInterval(), reportService, wsServer, log)
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSecs) * time.Second,
	}

	go func() {
		log.Info("Starting HTTP server", logger.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error on startup", logger.String("addr", addr), logger.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("Shutting down server...")

	cancel()
	if err := g.Wait(); err != nil {
		log.Error("Background service error during shutdown", logger.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", logger.Error(err))
	}

	log.Info("Server fully stopped")
}

// runAnalysisScheduler reruns the analysis pipeline on a fixed interval and
// announces finished runs to the WebSocket clients. Failed runs are logged
// and retried on the next tick.
func runAnalysisScheduler(ctx context.Context, interval time.Duration, svc *report.Service, ws *websocket.Server, log *logger.Logger) error {
	log = log.Named("scheduler")
	log.Info("Starting analysis scheduler", logger.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			rep, err := svc.Run(ctx)
			if err != nil {
				log.Error("Scheduled analysis run failed", logger.Error(err))
				continue
			}
			ws.Broadcast(&websocket.Message{Type: websocket.MessageTypeAnalysisDone, Data: rep})
		}
	}
}
