package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/kvcomments/internal/events"
	"github.com/alfredjeanlab/kvcomments/internal/model"
	"github.com/alfredjeanlab/kvcomments/internal/ui"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Short:   "Follow new and deleted comments",
	GroupID: "comments",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		interval, _ := cmd.Flags().GetDuration("interval")
		natsURL, _ := cmd.Flags().GetString("nats")
		if natsURL == "" {
			natsURL = os.Getenv("KVC_NATS_URL")
		}
		if natsURL == "" {
			natsURL = activeRemoteNATSURL()
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		out := cmd.OutOrStdout()
		if natsURL != "" {
			return watchNATS(ctx, out, natsURL)
		}
		return watchPoll(ctx, out, interval)
	},
}

// watchNATS prints every comment event published on the bus.
func watchNATS(ctx context.Context, out io.Writer, natsURL string) error {
	sub, err := events.NewNATSSubscriber(natsURL,
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("nats: disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Printf("nats: reconnected")
		}),
	)
	if err != nil {
		return fmt.Errorf("connecting to NATS: %w", err)
	}
	defer sub.Close()

	ch, cancel, err := sub.Subscribe(events.TopicAll)
	if err != nil {
		return fmt.Errorf("subscribing to events: %w", err)
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			printEvent(out, msg)
		}
	}
}

func printEvent(out io.Writer, msg events.Message) {
	if jsonOutput {
		fmt.Fprintf(out, "%s\n", msg.Data)
		return
	}
	line, err := events.Describe(msg.Subject, msg.Data)
	if err != nil {
		line = fmt.Sprintf("%s (undecodable: %v)", msg.Subject, err)
	}
	fmt.Fprintf(out, "%s %s\n", ui.RenderMuted(time.Now().Format("15:04:05")), line)
}

// watchPoll lists the comments every interval and prints the ones not seen
// before. The first listing only primes the seen set.
func watchPoll(ctx context.Context, out io.Writer, interval time.Duration) error {
	seen := make(map[string]bool)
	primed := false
	for {
		list, err := commentsClient.List(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("listing comments: %w", err)
		}
		if fresh := diffComments(list, seen); primed && len(fresh) > 0 {
			if jsonOutput {
				if err := printJSON(out, fresh); err != nil {
					return err
				}
			} else {
				ui.WriteComments(out, fresh, ui.TerminalWidth())
			}
		}
		primed = true

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}

// diffComments returns the comments whose ids are not in seen and records
// every id of list. Ids that disappeared are forgotten so a re-used id shows
// up again.
func diffComments(list []model.Comment, seen map[string]bool) []model.Comment {
	var fresh []model.Comment
	present := make(map[string]bool, len(list))
	for _, c := range list {
		present[c.ID] = true
		if !seen[c.ID] {
			fresh = append(fresh, c)
		}
	}
	for id := range seen {
		if !present[id] {
			delete(seen, id)
		}
	}
	for id := range present {
		seen[id] = true
	}
	return fresh
}

func init() {
	watchCmd.Flags().Duration("interval", 5*time.Second, "poll interval when no NATS URL is configured")
	watchCmd.Flags().String("nats", "", "NATS URL to follow events from (default $KVC_NATS_URL or the active remote)")
}
