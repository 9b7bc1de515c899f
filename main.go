package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"media-server/internal/convert"
	"media-server/internal/extract"
	"media-server/internal/handlers"
	"media-server/internal/index"
	"media-server/internal/logging"
	"media-server/internal/metrics"
	"media-server/internal/middleware"
	"media-server/internal/repcache"
	"media-server/internal/startup"
	"media-server/internal/watcher"

	"github.com/gorilla/mux"
)

func main() {
	startTime := time.Now()

	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	// Initialize the index store
	indexStart := time.Now()
	store, err := index.New(context.Background(), config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to initialize index store: %v", err)
	}
	defer store.Close()
	startup.LogIndexInit(time.Since(indexStart))

	// Initialize converters and the representation cache
	startup.LogConverterInit(config.CachingEnabled)
	convert.InitVips()
	defer convert.ShutdownVips()
	cache := repcache.New(config.RepCacheDir, convert.DefaultRegistry(), config.ConvertTimeout)

	// Initialize the watcher
	startup.LogWatcherInit(config.AwaitWriteFinish, config.SweepInterval)
	w, err := watcher.New(watcher.Config{
		Root:          config.MediaDir,
		Store:         store,
		Extractors:    extract.DefaultRegistry(),
		Debounce:      config.AwaitWriteFinish,
		SweepInterval: config.SweepInterval,
		Workers:       config.EnrichWorkers,
	})
	if err != nil {
		startup.LogFatal("Failed to initialize watcher: %v", err)
	}
	if err := w.Start(context.Background()); err != nil {
		startup.LogFatal("Failed to start watcher: %v", err)
	}
	startup.LogWatcherStarted()

	// Setup router and middleware chain
	h := handlers.New(store, cache, w, config.MediaDir)
	router := mux.NewRouter()
	h.RegisterRoutes(router)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogStaticFiles = config.LogStaticFiles
	loggingConfig.LogHealthChecks = config.LogHealthChecks

	var handler http.Handler = router
	handler = middleware.Metrics(middleware.DefaultMetricsConfig())(handler)
	handler = middleware.Logger(loggingConfig)(handler)
	handler = middleware.Compression(middleware.DefaultCompressionConfig())(handler)
	handler = middleware.CORS(middleware.CORSConfig{
		AllowedOrigin:    config.CORSAllowedOrigin,
		AllowCredentials: config.CORSAllowCredentials,
	})(handler)

	srv := &http.Server{
		Addr:        ":" + config.Port,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// Large representations and long video responses; no write deadline.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	if config.MetricsEnabled {
		go func() {
			if err := metrics.Serve(config.MetricsPort); err != nil && err != http.ErrServerClosed {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	go handleShutdown(srv, w)

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		startup.LogFatal("Server error: %v", err)
	}
}

func handleShutdown(srv *http.Server, w *watcher.Watcher) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Stopping watcher")
	w.Close()
	startup.LogShutdownStepComplete("Watcher stopped")

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownComplete()
}
