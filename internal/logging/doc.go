// Package logging configures the process-wide slog logger for lexindex.
//
// Logs are JSON lines. They go to stderr by default and, when a file path
// is configured, to a size-rotated file under ~/.lexindex/logs/. The MCP
// server mode writes to the file only because stdout carries the protocol.
package logging
