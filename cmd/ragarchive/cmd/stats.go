package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/ragarchive/internal/output"
	"github.com/Aman-CERP/ragarchive/pkg/ragstore"
)

func newStatsCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print archive, frame, and index counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.New(cmd.OutOrStdout())

			s, err := ragstore.Open(context.Background(), path, nil, 5*time.Second)
			if err != nil {
				out.Errorf("failed to open archive: %v", err)
				return err
			}
			defer s.Close()

			frames := s.FrameStore().Store()
			out.Statusf("", "committed frames: %d", frames.CommittedCount())
			out.Statusf("", "pending frames: %d", frames.PendingCount())
			out.Statusf("", "lexical documents: %d", s.LexicalIndex().DocCount())
			out.Statusf("", "vectors: %d", s.VectorEngine().Count())
			return nil
		},
	}
	addArchiveFlag(cmd, &path)
	return cmd
}
