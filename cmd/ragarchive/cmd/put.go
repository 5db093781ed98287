package cmd

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/ragarchive/internal/frame"
	"github.com/Aman-CERP/ragarchive/internal/output"
	"github.com/Aman-CERP/ragarchive/internal/provider"
	"github.com/Aman-CERP/ragarchive/pkg/ragstore"
)

func newPutCmd() *cobra.Command {
	var path, kind, searchText string
	var commitAfter, noEmbed bool

	cmd := &cobra.Command{
		Use:   "put <file>",
		Short: "Stage a frame from a file's contents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.New(cmd.OutOrStdout())

			payload, err := os.ReadFile(args[0])
			if err != nil {
				out.Errorf("failed to read %s: %v", args[0], err)
				return err
			}

			s, err := ragstore.Open(context.Background(), path, nil, 5*time.Second)
			if err != nil {
				out.Errorf("failed to open archive: %v", err)
				return err
			}
			defer s.Close()

			opts := frame.PutOptions{
				Kind:          kind,
				Role:          frame.RoleChunk,
				HasSearchText: searchText != "",
				SearchText:    searchText,
			}
			if opts.SearchText == "" {
				opts.SearchText = string(payload)
				opts.HasSearchText = true
			}

			item := ragstore.IngestItem{Opts: opts, Payload: payload}
			if !noEmbed {
				item.EmbedText = opts.SearchText
			}

			var embedder provider.Embedder
			if !noEmbed {
				embedder = provider.NewStaticEmbedder()
			}

			results, err := s.BatchIngest(context.Background(), []ragstore.IngestItem{item}, embedder, 1)
			if err != nil {
				out.Errorf("put failed: %v", err)
				return err
			}
			if err := results[0].Err; err != nil {
				out.Errorf("put failed: %v", err)
				return err
			}
			out.Successf("staged frame %d (%s)", results[0].FrameID, args[0])

			if commitAfter {
				if err := s.Commit(); err != nil {
					out.Errorf("commit failed: %v", err)
					return err
				}
				out.Success("committed")
			}
			return nil
		},
	}
	addArchiveFlag(cmd, &path)
	cmd.Flags().StringVar(&kind, "kind", "doc.chunk", "Frame kind")
	cmd.Flags().StringVar(&searchText, "search-text", "", "Search text (defaults to the file contents)")
	cmd.Flags().BoolVar(&commitAfter, "commit", true, "Commit immediately after staging")
	cmd.Flags().BoolVar(&noEmbed, "no-embed", false, "Skip vector embedding, stage lexical search text only")
	return cmd
}
