// Package http exposes the debugger over a chi router: the /api/debug control
// verbs, a per-bot SSE stream of snapshot diffs, /health and /metrics.
package http
