package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/kvcomments/internal/ui"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Short:   "List comments in stored order",
	GroupID: "comments",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		list, err := commentsClient.List(cmd.Context())
		if err != nil {
			return fmt.Errorf("listing comments: %w", err)
		}
		if limit > 0 && len(list) > limit {
			list = list[:limit]
		}

		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), list)
		}
		ui.WriteComments(cmd.OutOrStdout(), list, ui.TerminalWidth())
		return nil
	},
}

func init() {
	listCmd.Flags().Int("limit", 0, "show at most this many comments (0 = all)")
}
