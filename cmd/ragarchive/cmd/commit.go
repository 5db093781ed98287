package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/ragarchive/internal/output"
	"github.com/Aman-CERP/ragarchive/pkg/ragstore"
)

func newCommitCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Flush pending frames and index mutations to the archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.New(cmd.OutOrStdout())

			s, err := ragstore.Open(context.Background(), path, nil, 5*time.Second)
			if err != nil {
				out.Errorf("failed to open archive: %v", err)
				return err
			}
			defer s.Close()

			if err := s.Commit(); err != nil {
				out.Errorf("commit failed: %v", err)
				return err
			}
			out.Success("committed")
			return nil
		},
	}
	addArchiveFlag(cmd, &path)
	return cmd
}
