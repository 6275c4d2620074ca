package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/kvcomments/internal/ui"
)

var remoteCmd = &cobra.Command{
	Use:     "remote",
	Short:   "Manage named comment service remotes",
	GroupID: "system",
	// Only the local remotes file is touched; no HTTP client is needed.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !ui.ShouldUseColor() {
			ui.ForceNoColor()
		}
		return nil
	},
}

var remoteAddCmd = &cobra.Command{
	Use:   "add <name> <url>",
	Short: "Add or replace a named remote",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		r := Remote{URL: args[1]}
		r.Token, _ = cmd.Flags().GetString("token")
		r.NATSURL, _ = cmd.Flags().GetString("nats")
		r.BasePath, _ = cmd.Flags().GetString("base-path")
		use, _ := cmd.Flags().GetBool("use")
		if err := r.validate(); err != nil {
			return err
		}

		err := updateRemotes(func(cfg *RemotesConfig) error {
			cfg.Remotes[name] = r
			if use || len(cfg.Remotes) == 1 {
				cfg.Active = name
			}
			return nil
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "remote %s -> %s\n", ui.RenderAccent(name), r.URL)
		return nil
	},
}

var remoteRemoveCmd = &cobra.Command{
	Use:     "remove <name>",
	Aliases: []string{"rm"},
	Short:   "Remove a named remote",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		err := updateRemotes(func(cfg *RemotesConfig) error {
			if _, err := cfg.lookup(name); err != nil {
				return err
			}
			delete(cfg.Remotes, name)
			if cfg.Active == name {
				cfg.Active = ""
			}
			return nil
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed remote %s\n", name)
		return nil
	},
}

var remoteUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Make a remote the default for other commands",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		err := updateRemotes(func(cfg *RemotesConfig) error {
			if _, err := cfg.lookup(name); err != nil {
				return err
			}
			cfg.Active = name
			return nil
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "using remote %s\n", ui.RenderAccent(name))
		return nil
	},
}

// remoteView is the JSON shape of list and show.
type remoteView struct {
	Name   string `json:"name"`
	Active bool   `json:"active"`
	Remote
}

var remoteListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List remotes; the active one is marked with *",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadRemotesConfig()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		views := make([]remoteView, 0, len(cfg.Remotes))
		for _, name := range cfg.names() {
			views = append(views, remoteView{Name: name, Active: name == cfg.Active, Remote: cfg.Remotes[name].masked()})
		}
		if jsonOutput {
			return printJSON(out, views)
		}
		if len(views) == 0 {
			fmt.Fprintln(out, ui.RenderMuted("no remotes; add one with 'kc remote add <name> <url>'"))
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "  NAME\tURL\tBASE PATH\tTOKEN")
		for _, v := range views {
			marker := "  "
			if v.Active {
				marker = "* "
			}
			base := v.BasePath
			if base == "" {
				base = "-"
			}
			fmt.Fprintf(w, "%s%s\t%s\t%s\t%s\n", marker, v.Name, v.URL, base, v.Token)
		}
		return w.Flush()
	},
}

var remoteShowCmd = &cobra.Command{
	Use:   "show [<name>]",
	Short: "Show one remote (the active one by default)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadRemotesConfig()
		if err != nil {
			return err
		}
		name := cfg.Active
		if len(args) == 1 {
			name = args[0]
		}
		if name == "" {
			return errors.New("no active remote; pass a name or run 'kc remote use <name>'")
		}
		r, err := cfg.lookup(name)
		if err != nil {
			return err
		}

		v := remoteView{Name: name, Active: name == cfg.Active, Remote: r.masked()}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), v)
		}
		return writeRemote(cmd.OutOrStdout(), v)
	},
}

func writeRemote(out io.Writer, v remoteView) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	name := v.Name
	if v.Active {
		name += " (active)"
	}
	fields := [][2]string{
		{"name", name},
		{"url", v.URL},
		{"base_path", v.BasePath},
		{"token", v.Token},
		{"nats_url", v.NATSURL},
	}
	for _, f := range fields {
		if f[1] != "" {
			fmt.Fprintf(w, "%s:\t%s\n", f[0], f[1])
		}
	}
	return w.Flush()
}

func init() {
	remoteAddCmd.Flags().String("token", "", "bearer token for deletes and probes")
	remoteAddCmd.Flags().String("nats", "", "NATS URL used by kc watch")
	remoteAddCmd.Flags().String("base-path", "", "route prefix when not /api/comments")
	remoteAddCmd.Flags().Bool("use", false, "make this the active remote")

	remoteCmd.AddCommand(remoteAddCmd, remoteRemoveCmd, remoteUseCmd, remoteListCmd, remoteShowCmd)
}
