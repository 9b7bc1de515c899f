// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// All configuration is loaded from environment variables via [LoadConfig]:
//
//   - MEDIA_DIR: Path to the media root (default: /media)
//   - CACHE_DIR: Path to the representation cache directory (default: /cache)
//   - DATABASE_DIR: Path to the index database directory (default: /database)
//   - PORT: HTTP server port (default: 8080)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable or disable the metrics server (default: true)
//   - CORS_ALLOWED_ORIGIN: Origin allowed on API responses (default: empty, CORS off)
//   - CORS_ALLOW_CREDENTIALS: Send Access-Control-Allow-Credentials (default: false)
//   - CONVERT_TIMEOUT: Bound on a single conversion as Go duration (default: 2m)
//   - AWAIT_WRITE_FINISH: Watcher quiet period before indexing a written file (default: 500ms)
//   - SWEEP_INTERVAL: Index/filesystem reconciliation period (default: 10m)
//   - ENRICH_WORKERS: Enrichment worker count (default: sized off the host)
//   - LOG_LEVEL: Logging level - debug, info, warn, error (default: info)
//   - LOG_STATIC_FILES: Log static file requests (default: false)
//   - LOG_HEALTH_CHECKS: Log health check requests (default: true)
//
// # Directory Setup
//
// The database directory is required and must be writable. The cache
// directory is probed for write access; conversion caching is disabled when
// it is not available. The media directory is checked but never created; it
// should be mounted.
package startup
