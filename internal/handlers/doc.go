// Package handlers implements the HTTP API: media upload, catalog reads
// with variant URLs, focal point updates, variant regeneration, and the
// server-sent-events progress stream.
package handlers
