// Package metrics defines the Prometheus collectors exported by the media
// server: HTTP traffic, index store queries, watcher activity, and
// representation cache behavior. Collectors are registered via promauto at
// package init; the metrics HTTP endpoint is wired in main.
package metrics
