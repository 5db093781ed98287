// Package logging provides opt-in file-based logging with rotation for the
// retrieval engine. When debug logging is enabled, comprehensive logs are
// written to ~/.ragarchive/logs/ for debugging commit, WAL and search
// behavior.
//
// By default logging is minimal and goes to stderr only.
package logging
