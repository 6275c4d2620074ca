package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/kvcomments/internal/client"
	"github.com/alfredjeanlab/kvcomments/internal/ui"
)

var addCmd = &cobra.Command{
	Use:     "add <text...>",
	Short:   "Post a comment",
	GroupID: "comments",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		at, _ := cmd.Flags().GetString("time")

		c, err := commentsClient.Add(cmd.Context(), &client.AddCommentRequest{
			Content: strings.Join(args, " "),
			Time:    parseTimeFlag(at),
		})
		if err != nil {
			return fmt.Errorf("adding comment: %w", err)
		}

		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), c)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "added %s\n", ui.FormatComment(*c))
		return nil
	},
}

func init() {
	addCmd.Flags().String("time", "", "comment time: epoch milliseconds or a display string (default: server time)")
}
