// Package watcher keeps the file index synchronized with the media root. It
// performs an initial recursive scan, then follows filesystem notifications
// via fsnotify, progressively enriching each record: discovery, stat fields,
// then type-specific metadata from the extractor registry.
//
// The notification loop never blocks on enrichment. Events are debounced per
// path to coalesce rapid writes, then dispatched onto hash-sharded worker
// queues, which preserves per-path ordering while letting unrelated paths
// proceed in parallel. A periodic sweep removes records whose backing file
// vanished without an event and retries failed metadata extraction.
package watcher
