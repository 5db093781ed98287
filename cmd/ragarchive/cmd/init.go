package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/ragarchive/internal/output"
	"github.com/Aman-CERP/ragarchive/pkg/ragstore"
)

func newInitCmd() *cobra.Command {
	var path string
	var dimension int

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a new archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.New(cmd.OutOrStdout())
			s, err := ragstore.Create(context.Background(), path, uint32(dimension), nil)
			if err != nil {
				out.Errorf("failed to create archive: %v", err)
				return err
			}
			defer s.Close()
			out.Successf("created archive at %s", path)
			return nil
		},
	}
	addArchiveFlag(cmd, &path)
	cmd.Flags().IntVar(&dimension, "dimension", 0, "Vector dimension hint (0 = infer from first embedding)")
	return cmd
}
