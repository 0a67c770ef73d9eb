package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/matheus3301/smsync/internal/client"
)

func newBlockCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "block",
		Short: "Manage blocked numbers",
	}

	add := &cobra.Command{
		Use:   "add <number>",
		Short: "Block a number",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(cmd, func(ctx context.Context, c *client.Client) error {
				return c.Block(ctx, args[0])
			})
		},
	}
	remove := &cobra.Command{
		Use:   "remove <number>",
		Short: "Unblock a number",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(cmd, func(ctx context.Context, c *client.Client) error {
				return c.Unblock(ctx, args[0])
			})
		},
	}
	list := &cobra.Command{
		Use:   "list",
		Short: "List blocked numbers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return call(cmd, func(ctx context.Context, c *client.Client) error {
				resp, err := c.ListBlocked(ctx)
				if err != nil {
					return err
				}
				return output(cmd, resp, func(w io.Writer) {
					for _, n := range resp.Numbers {
						fmt.Fprintln(w, n.Number)
					}
				})
			})
		},
	}
	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Import the message store's own block list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return call(cmd, func(ctx context.Context, c *client.Client) error {
				n, err := c.ImportBlocked(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d numbers added\n", n)
				return nil
			})
		},
	}

	cmd.AddCommand(add, remove, list, importCmd)
	return cmd
}
