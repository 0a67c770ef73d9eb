package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/matheus3301/smsync/internal/client"
)

func newContactsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contacts",
		Short: "Manage display names",
	}

	set := &cobra.Command{
		Use:   "set <address> <name>",
		Short: "Set the display name of an address",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			photo, _ := cmd.Flags().GetString("photo")
			return call(cmd, func(ctx context.Context, c *client.Client) error {
				return c.SetContact(ctx, args[0], args[1], photo)
			})
		},
	}
	set.Flags().String("photo", "", "photo reference")

	list := &cobra.Command{
		Use:   "list",
		Short: "List contacts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return call(cmd, func(ctx context.Context, c *client.Client) error {
				resp, err := c.ListContacts(ctx)
				if err != nil {
					return err
				}
				return output(cmd, resp, func(w io.Writer) {
					tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
					for _, ct := range resp.Contacts {
						fmt.Fprintf(tw, "%s\t%s\n", ct.Address, ct.Name)
					}
					_ = tw.Flush()
				})
			})
		},
	}

	cmd.AddCommand(set, list)
	return cmd
}
