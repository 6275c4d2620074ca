package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/kvcomments/internal/client"
	"github.com/alfredjeanlab/kvcomments/internal/ui"
)

var (
	serverURL  string
	authToken  string
	basePath   string
	jsonOutput bool

	commentsClient client.CommentsClient
)

func defaultServerURL() string {
	if s := os.Getenv("KVC_URL"); s != "" {
		return s
	}
	if u := activeRemoteURL(); u != "" {
		return u
	}
	return "http://localhost:8080"
}

func defaultToken() string {
	if s := os.Getenv("KVC_TOKEN"); s != "" {
		return s
	}
	return activeRemoteToken()
}

func defaultBasePath() string {
	if s := os.Getenv("KVC_BASE_PATH"); s != "" {
		return s
	}
	if p := activeRemote().BasePath; p != "" {
		return p
	}
	return client.DefaultBasePath
}

var rootCmd = &cobra.Command{
	Use:          "kc <command>",
	Short:        "Guestbook comment service and client",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !ui.ShouldUseColor() {
			ui.ForceNoColor()
		}
		commentsClient = client.NewHTTPClient(serverURL, authToken).WithBasePath(basePath)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if commentsClient != nil {
			commentsClient.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "url", defaultServerURL(), "comment service URL")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", defaultToken(), "bearer token for deletes and probes")
	rootCmd.PersistentFlags().StringVar(&basePath, "base-path", defaultBasePath(), "route prefix the service mounts comments under")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	rootCmd.AddGroup(
		&cobra.Group{ID: "comments", Title: "Comments:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	cobra.EnableCommandSorting = false
	rootCmd.SetHelpFunc(colorizedHelpFunc())

	// Comments
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(watchCmd)

	// System
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(remoteCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
