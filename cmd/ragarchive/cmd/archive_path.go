package cmd

import "github.com/spf13/cobra"

// defaultArchivePath is used when --archive isn't given.
const defaultArchivePath = "archive.ragarchive"

func addArchiveFlag(cmd *cobra.Command, path *string) {
	cmd.Flags().StringVarP(path, "archive", "a", defaultArchivePath, "Path to the archive file")
}
