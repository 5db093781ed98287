package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	ragcontext "github.com/Aman-CERP/ragarchive/internal/context"
	"github.com/Aman-CERP/ragarchive/internal/output"
	"github.com/Aman-CERP/ragarchive/internal/provider"
	"github.com/Aman-CERP/ragarchive/internal/search"
	"github.com/Aman-CERP/ragarchive/pkg/ragsearch"
	"github.com/Aman-CERP/ragarchive/pkg/ragstore"
)

func newSearchCmd() *cobra.Command {
	var path, kind string
	var limit int
	var buildContext bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a lexical search against the archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.New(cmd.OutOrStdout())
			query := args[0]

			s, err := ragstore.Open(context.Background(), path, nil, 5*time.Second)
			if err != nil {
				out.Errorf("failed to open archive: %v", err)
				return err
			}
			defer s.Close()

			reader := ragsearch.NewReader(s, ragsearch.Options{
				Tokens: provider.NewWordTokenCounter(),
			})

			var filter *search.FrameFilter
			if kind != "" {
				filter = &search.FrameFilter{Kinds: map[string]struct{}{kind: {}}}
			}

			ctx := context.Background()
			req := search.Request{
				Mode:      search.ModeTextOnly,
				QueryText: query,
				TopK:      limit,
				Filter:    filter,
			}

			if !buildContext {
				results, err := reader.Search(ctx, req)
				if err != nil {
					out.Errorf("search failed: %v", err)
					return err
				}
				for _, r := range results {
					fmt.Fprintf(cmd.OutOrStdout(), "%d\t%.4f\t%v\n", r.FrameID, r.Score, r.MatchedTerms)
				}
				return nil
			}

			result, err := reader.BuildContext(ctx, ragcontext.Config{
				Mode:             ragcontext.ModeFast,
				MaxContextTokens: 4000,
				SnippetMaxTokens: 400,
				MaxSnippets:      limit,
				SearchTopK:       limit,
				SearchMode:       search.ModeTextOnly,
			}, ragcontext.Request{QueryText: query, Filter: filter})
			if err != nil {
				out.Errorf("context build failed: %v", err)
				return err
			}
			for _, item := range result.Items {
				fmt.Fprintf(cmd.OutOrStdout(), "--- frame %d (score %.4f) ---\n%s\n", item.FrameID, item.Score, item.Snippet)
			}
			out.Statusf("", "total tokens: %d, truncated: %v", result.TotalTokens, result.Truncated)
			return nil
		},
	}
	addArchiveFlag(cmd, &path)
	cmd.Flags().StringVarP(&kind, "kind", "t", "", "Restrict to frames of this kind")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().BoolVar(&buildContext, "context", false, "Assemble a token-budgeted context instead of raw hits")
	return cmd
}
