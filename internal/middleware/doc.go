// Package middleware provides the HTTP middleware chain: request logging in
// W3C Extended Log Format, gzip compression for JSON responses, Prometheus
// request metrics, and configurable CORS headers.
package middleware
