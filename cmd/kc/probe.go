package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

var probeCmd = &cobra.Command{
	Use:     "probe",
	Short:   "Read and write raw store keys (server must enable probes)",
	GroupID: "system",
}

var probeGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print the raw value stored under key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		value, err := commentsClient.ProbeGet(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[0], err)
		}
		out := cmd.OutOrStdout()
		if _, err := out.Write(value); err != nil {
			return err
		}
		if len(value) > 0 && value[len(value)-1] != '\n' {
			fmt.Fprintln(out)
		}
		return nil
	},
}

var probeSetCmd = &cobra.Command{
	Use:   "set <key> [value]",
	Short: "Store a raw value under key (reads stdin when value is omitted)",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var value []byte
		if len(args) == 2 {
			value = []byte(args[1])
		} else {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("reading stdin: %w", err)
			}
			value = data
		}
		if err := commentsClient.ProbeSet(cmd.Context(), args[0], value); err != nil {
			return fmt.Errorf("writing %s: %w", args[0], err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "set %s (%d bytes)\n", args[0], len(value))
		return nil
	},
}

var probeDeleteCmd = &cobra.Command{
	Use:   "delete <key>",
	Short: "Remove a raw key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := commentsClient.ProbeDelete(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("deleting %s: %w", args[0], err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
		return nil
	},
}

func init() {
	probeCmd.AddCommand(probeGetCmd)
	probeCmd.AddCommand(probeSetCmd)
	probeCmd.AddCommand(probeDeleteCmd)
}
