package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matheus3301/smsync/internal/client"
	"github.com/matheus3301/smsync/internal/lock"
	"github.com/matheus3301/smsync/internal/profile"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, err := profileName(cmd)
			if err != nil {
				return err
			}
			held, err := lock.Holder(profile.Dir(name))
			if err != nil {
				return err
			}
			if held == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Profile %q: daemon not running\n", name)
				return nil
			}
			return call(cmd, func(ctx context.Context, c *client.Client) error {
				st, err := c.GetSyncStatus(ctx)
				if err != nil {
					return err
				}
				return output(cmd, st, func(w io.Writer) {
					fmt.Fprintf(w, "Profile:       %s (pid %d)\n", st.Profile, held.PID)
					fmt.Fprintf(w, "Status:        %s since %s\n", st.Status, formatMillis(st.StatusSinceUnixMs))
					fmt.Fprintf(w, "Uptime:        %dms\n", st.UptimeMs)
					fmt.Fprintf(w, "Last cycle:    %s (%d cycles)\n", formatMillis(st.LastCycleAtUnixMs), st.Cycles)
					fmt.Fprintf(w, "Generation:    %d\n", st.Generation)
					fmt.Fprintf(w, "Conversations: %d\n", st.Conversations)
					fmt.Fprintf(w, "In flight:     %d\n", st.InFlightSends)
					if len(st.FailedTables) > 0 {
						fmt.Fprintf(w, "Unreadable:    %s\n", strings.Join(st.FailedTables, ", "))
					}
					if st.LastError != "" {
						fmt.Fprintf(w, "Last error:    %s\n", st.LastError)
					}
				})
			})
		},
	}
}

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Request a conversation rebuild",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return call(cmd, func(ctx context.Context, c *client.Client) error {
				resp, err := c.TriggerSync(ctx)
				if err != nil {
					return err
				}
				return output(cmd, resp, func(w io.Writer) {
					fmt.Fprintf(w, "Rebuild requested (%d cycles so far)\n", resp.Cycles)
				})
			})
		},
	}
}
