// Package mcp exposes the debugger as Model Context Protocol tools (debug_*),
// served over stdio or SSE.
package mcp
