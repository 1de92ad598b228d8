package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"stylebench/internal/http/handlers"
	httpapi "stylebench/internal/http/httpapi"
	"stylebench/internal/infra"
	"stylebench/internal/jobs"
	"stylebench/internal/providers/genai"
	"stylebench/internal/registry"
	"stylebench/internal/storage"
)

func main() {
	// Load .env (optional)
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	files, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize storage")
	}
	bundles := storage.NewBundleStore(files)

	reg, err := registry.Load(cfg.RegistryPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load registry")
	}
	logger.Info().Int("suites", len(reg.Suites())).Int("styles", len(reg.Styles())).Msg("registry loaded")

	gen, err := genai.NewClient(genai.Options{
		BaseURL:  cfg.GenBaseURL,
		APIKey:   cfg.GenAPIKey,
		Model:    cfg.GenModel,
		Logger:   &logger,
		Files:    files,
		Timeout:  cfg.GenTimeout,
		RetryMax: cfg.ItemRetryMax,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure generation client")
	}

	// runCtx bounds every scheduler task; cancelling it aborts in-flight
	// generation calls once shutdown begins.
	runCtx, stopRuns := context.WithCancel(context.Background())
	defer stopRuns()

	store := jobs.NewStore()
	broker := jobs.NewBroker()
	runner := jobs.NewRunner(runCtx, store, broker, gen, bundles, logger, cfg.BatchSize)

	// Janitor: drop terminal jobs past the retention window.
	janitorDone := make(chan struct{})
	go func() {
		defer close(janitorDone)
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				if n := store.Reap(cfg.JobRetention); n > 0 {
					logger.Info().Int("removed", n).Msg("reaped expired jobs")
				}
			}
		}
	}()

	app := &handlers.App{
		Config:   cfg,
		Logger:   logger,
		Store:    store,
		Broker:   broker,
		Runner:   runner,
		Registry: reg,
		Bundles:  bundles,
		Files:    files,
	}

	router := httpapi.NewRouter(app)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	// Let in-flight jobs finish their current batch before pulling the plug.
	if err := runner.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("jobs still in flight at shutdown deadline")
	}
	stopRuns()
	<-janitorDone
	logger.Info().Msg("server stopped")
}
