// Package server implements the HTTP monitoring API: health and session
// status endpoints plus the Prometheus metrics exposition.
package server
