package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/matheus3301/smsync/internal/api"
	"github.com/matheus3301/smsync/internal/client"
	"github.com/matheus3301/smsync/internal/paging"
)

func newMessagesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "messages <thread>",
		Short: "Page through a conversation, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			thread, err := parseID(args[0], "thread")
			if err != nil {
				return err
			}
			offset, _ := cmd.Flags().GetInt("offset")
			limit, _ := cmd.Flags().GetInt("limit")
			return call(cmd, func(ctx context.Context, c *client.Client) error {
				resp, err := c.ListMessages(ctx, thread, offset, limit)
				if err != nil {
					return err
				}
				return output(cmd, resp, func(w io.Writer) {
					printMessages(w, resp.Messages)
					if resp.NextKey != nil {
						fmt.Fprintf(w, "more: --offset %d\n", *resp.NextKey)
					}
				})
			})
		},
	}
	cmd.Flags().Int("offset", 0, "skip this many messages")
	cmd.Flags().Int("limit", 0, "page size (0 = daemon default)")
	return cmd
}

func printMessages(w io.Writer, msgs []paging.Message) {
	if len(msgs) == 0 {
		fmt.Fprintln(w, "No messages.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tTIME\tDIR\tSTATE\tBODY")
	for _, m := range msgs {
		body := m.Body
		if m.ImageRef != "" {
			body = strings.TrimSpace(body + " [" + m.ImageRef + "]")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", m.Key(), formatMillis(m.TimestampMs), m.Direction, m.State, body)
	}
	_ = tw.Flush()
}

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch [thread]",
		Short: "Stream conversation list generations, or changes to one thread",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()
			ctx := cmd.Context()
			w := cmd.OutOrStdout()

			if len(args) == 0 {
				return c.WatchConversations(ctx, func(evt api.ConversationsEvent) error {
					if jsonOutput(cmd) {
						return outputJSON(w, evt)
					}
					fmt.Fprintf(w, "generation %d: %d conversations\n", evt.Generation, len(evt.Conversations))
					return nil
				})
			}
			thread, err := parseID(args[0], "thread")
			if err != nil {
				return err
			}
			return c.WatchThread(ctx, thread, func(evt api.ThreadEvent) error {
				if jsonOutput(cmd) {
					return outputJSON(w, evt)
				}
				fmt.Fprintf(w, "%s thread %d %s\n", formatMillis(evt.OccurredAtUnixMs), evt.ThreadID, evt.Kind)
				return nil
			})
		},
	}
}

func newSendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send <address> <body...>",
		Short: "Send a text, or an attachment with --attach",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, body := args[0], strings.Join(args[1:], " ")
			attach, _ := cmd.Flags().GetString("attach")
			return call(cmd, func(ctx context.Context, c *client.Client) error {
				var resp api.SendResponse
				var err error
				if attach == "" {
					resp, err = c.SendText(ctx, addr, body)
				} else {
					var data []byte
					data, err = os.ReadFile(attach)
					if err != nil {
						return err
					}
					resp, err = c.SendAttachment(ctx, api.SendAttachmentRequest{
						Address: addr,
						Body:    body,
						Name:    filepath.Base(attach),
						Data:    data,
					})
				}
				if err != nil {
					return err
				}
				return output(cmd, resp, func(w io.Writer) {
					fmt.Fprintf(w, "queued %s in thread %d (%d segments)\n", resp.Token, resp.ThreadID, resp.Segments)
				})
			})
		},
	}
	cmd.Flags().String("attach", "", "file to send as a multimedia attachment")
	return cmd
}

func newResendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resend <id> <address> <body...>",
		Short: "Discard a failed text and send it again",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "message id")
			if err != nil {
				return err
			}
			return call(cmd, func(ctx context.Context, c *client.Client) error {
				resp, err := c.Resend(ctx, id, args[1], strings.Join(args[2:], " "))
				if err != nil {
					return err
				}
				return output(cmd, resp, func(w io.Writer) {
					fmt.Fprintf(w, "queued %s in thread %d\n", resp.Token, resp.ThreadID)
				})
			})
		},
	}
}

func newScheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Manage scheduled texts",
	}

	add := &cobra.Command{
		Use:   "add <address> <body...>",
		Short: "Schedule a text",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			at, err := scheduleTime(cmd)
			if err != nil {
				return err
			}
			thread, _ := cmd.Flags().GetInt64("thread")
			return call(cmd, func(ctx context.Context, c *client.Client) error {
				resp, err := c.ScheduleMessage(ctx, api.ScheduleMessageRequest{
					ThreadID: thread,
					Address:  args[0],
					Body:     strings.Join(args[1:], " "),
					AtUnixMs: at.UnixMilli(),
				})
				if err != nil {
					return err
				}
				return output(cmd, resp, func(w io.Writer) {
					fmt.Fprintf(w, "scheduled #%d for %s\n", resp.Message.ID, formatMillis(resp.Message.ScheduledAt))
				})
			})
		},
	}
	add.Flags().String("at", "", "send time, RFC 3339")
	add.Flags().Duration("in", 0, "send after this long")
	add.Flags().Int64("thread", 0, "thread the text belongs to")

	list := &cobra.Command{
		Use:   "list [thread]",
		Short: "List scheduled texts",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var thread int64
			if len(args) == 1 {
				var err error
				if thread, err = parseID(args[0], "thread"); err != nil {
					return err
				}
			}
			return call(cmd, func(ctx context.Context, c *client.Client) error {
				resp, err := c.ListScheduled(ctx, thread)
				if err != nil {
					return err
				}
				return output(cmd, resp, func(w io.Writer) {
					tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "ID\tAT\tSTATUS\tTO\tBODY")
					for _, m := range resp.Messages {
						fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", m.ID, formatMillis(m.ScheduledAt), m.Status, m.Address, m.Body)
					}
					_ = tw.Flush()
				})
			})
		},
	}

	cancel := &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a pending scheduled text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "scheduled id")
			if err != nil {
				return err
			}
			return call(cmd, func(ctx context.Context, c *client.Client) error {
				return c.CancelScheduled(ctx, id)
			})
		},
	}

	cmd.AddCommand(add, list, cancel)
	return cmd
}

func scheduleTime(cmd *cobra.Command) (time.Time, error) {
	at, _ := cmd.Flags().GetString("at")
	in, _ := cmd.Flags().GetDuration("in")
	switch {
	case at != "" && in != 0:
		return time.Time{}, fmt.Errorf("use either --at or --in")
	case at != "":
		return time.Parse(time.RFC3339, at)
	case in > 0:
		return time.Now().Add(in), nil
	}
	return time.Time{}, fmt.Errorf("--at or --in is required")
}
