package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"esims/cmd/esimctl/client"
)

// Events prints the event feed, optionally following it.
func Events(api func() *client.Client) *cobra.Command {
	var (
		after    uint64
		limit    int
		follow   bool
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Print transition events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := api()
			ctx := cmd.Context()
			for {
				page, err := c.Events(ctx, after, limit)
				if err != nil {
					return err
				}
				for _, e := range page.Events {
					fmt.Fprintf(cmd.OutOrStdout(), "%d %s\n", e.Seq, e.Summary())
					after = e.Seq
				}
				if !follow {
					return nil
				}
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(interval):
				}
			}
		},
	}

	cmd.Flags().Uint64Var(&after, "after", 0, "Only print events with a greater sequence number")
	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum events per request")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep polling for new events")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "Polling interval with --follow")

	return cmd
}
