// Package main provides the ragarchive-mcp command - an MCP server
// exposing one archive's search, context-assembly, and ingest operations
// to MCP clients (Claude Code, Cursor) over stdio.
//
// Usage:
//
//	ragarchive-mcp [flags]
//
// Flags:
//
//	-a, --archive string   Path to the archive file (default "archive.ragarchive")
//	    --debug            Enable debug logging to ~/.ragarchive/logs/
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/ragarchive/internal/logging"
	"github.com/Aman-CERP/ragarchive/internal/mcp"
	"github.com/Aman-CERP/ragarchive/internal/provider"
	"github.com/Aman-CERP/ragarchive/pkg/ragsearch"
	"github.com/Aman-CERP/ragarchive/pkg/ragstore"
	"github.com/Aman-CERP/ragarchive/pkg/version"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		archivePath string
		debugMode   bool
	)

	cmd := &cobra.Command{
		Use:     "ragarchive-mcp",
		Short:   "MCP server exposing ragarchive search and ingest tools",
		Version: version.Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := logging.DefaultConfig()
			if debugMode {
				cfg = logging.DebugConfig()
			}
			logger, cleanup, err := logging.Setup(cfg)
			if err != nil {
				return err
			}
			defer cleanup()
			slog.SetDefault(logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			store, err := ragstore.Open(ctx, archivePath, nil, 5*time.Second)
			if err != nil {
				return fmt.Errorf("open archive %s: %w", archivePath, err)
			}
			defer store.Close()

			reader := ragsearch.NewReader(store, ragsearch.Options{
				Tokens: provider.NewWordTokenCounter(),
			})

			server, err := mcp.NewServer(store, reader)
			if err != nil {
				return err
			}

			return server.Serve(ctx, "stdio")
		},
	}
	cmd.Flags().StringVarP(&archivePath, "archive", "a", "archive.ragarchive", "Path to the archive file")
	cmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.ragarchive/logs/")
	return cmd
}
