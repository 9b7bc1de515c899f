// Package handlers implements the HTTP API: file listings with metadata
// projection, representation retrieval through the cache, static passthrough,
// and health probes. Handlers only parse, delegate, and shape responses;
// extraction and conversion live behind the index and representation cache.
package handlers
