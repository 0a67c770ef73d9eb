package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/matheus3301/smsync/internal/client"
)

func parseID(s, what string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", what, s)
	}
	return id, nil
}

func newConversationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"ls"},
		Short:   "List conversations from the cache",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			offset, _ := cmd.Flags().GetInt("offset")
			limit, _ := cmd.Flags().GetInt("limit")
			return call(cmd, func(ctx context.Context, c *client.Client) error {
				resp, err := c.ListConversations(ctx, offset, limit)
				if err != nil {
					return err
				}
				return output(cmd, resp, func(w io.Writer) {
					if len(resp.Conversations) == 0 {
						fmt.Fprintln(w, "No conversations.")
						return
					}
					tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "THREAD\tNAME\tLAST\tFLAGS\tSNIPPET")
					for _, conv := range resp.Conversations {
						flags := ""
						if conv.IsPinned {
							flags += "P"
						}
						if !conv.IsRead {
							flags += "U"
						}
						fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
							conv.ThreadID, conv.DisplayName, formatMillis(conv.LastActivityAt), flags, conv.Snippet)
					}
					_ = tw.Flush()
					fmt.Fprintf(w, "%d of %d (generation %d)\n", len(resp.Conversations), resp.Total, resp.Generation)
				})
			})
		},
	}
	cmd.Flags().Int("offset", 0, "skip this many conversations")
	cmd.Flags().Int("limit", 0, "show at most this many conversations (0 = all)")
	return cmd
}

func newPinCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pin <thread>",
		Short: "Pin or unpin a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			thread, err := parseID(args[0], "thread")
			if err != nil {
				return err
			}
			unpin, _ := cmd.Flags().GetBool("off")
			return call(cmd, func(ctx context.Context, c *client.Client) error {
				return c.SetPinned(ctx, thread, !unpin)
			})
		},
	}
	cmd.Flags().Bool("off", false, "unpin instead")
	return cmd
}

func newReadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "read <thread>",
		Short: "Mark every message of a conversation read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			thread, err := parseID(args[0], "thread")
			if err != nil {
				return err
			}
			unread, _ := cmd.Flags().GetBool("unread")
			return call(cmd, func(ctx context.Context, c *client.Client) error {
				n, err := c.MarkRead(ctx, thread, !unread)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d messages updated\n", n)
				return nil
			})
		},
	}
	cmd.Flags().Bool("unread", false, "mark unread instead")
	return cmd
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <thread>",
		Short: "Delete a conversation from the message store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			thread, err := parseID(args[0], "thread")
			if err != nil {
				return err
			}
			return call(cmd, func(ctx context.Context, c *client.Client) error {
				n, err := c.DeleteConversation(ctx, thread)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d messages deleted\n", n)
				return nil
			})
		},
	}
}

func newSoundCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sound <thread> [ref]",
		Short: "Set or clear the notification sound of a conversation",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			thread, err := parseID(args[0], "thread")
			if err != nil {
				return err
			}
			ref := ""
			if len(args) > 1 {
				ref = args[1]
			}
			return call(cmd, func(ctx context.Context, c *client.Client) error {
				return c.SetSound(ctx, thread, ref)
			})
		},
	}
}
