package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:     "delete <id>...",
	Short:   "Delete comments by id",
	GroupID: "comments",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var errs []error
		for _, id := range args {
			if err := commentsClient.Delete(cmd.Context(), id); err != nil {
				errs = append(errs, fmt.Errorf("deleting %s: %w", id, err))
				continue
			}
			if !jsonOutput {
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
			}
		}
		if jsonOutput && len(errs) == 0 {
			return printJSON(cmd.OutOrStdout(), map[string][]string{"deleted": args})
		}
		return errors.Join(errs...)
	},
}
