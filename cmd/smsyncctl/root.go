package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/matheus3301/smsync/internal/client"
	"github.com/matheus3301/smsync/internal/profile"
)

const appName = "smsyncctl"

func newRootCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Control a running smsyncd",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	cmd.Version = version
	cmd.SetVersionTemplate(appName + " version {{.Version}}\n")

	cmd.PersistentFlags().String("profile", "", "profile name (overrides config default)")
	cmd.PersistentFlags().Bool("json", false, "output in JSON format")
	cmd.PersistentFlags().Duration("timeout", 10*time.Second, "per-call timeout")

	cmd.AddCommand(
		newStatusCmd(),
		newSyncCmd(),
		newConversationsCmd(),
		newPinCmd(),
		newReadCmd(),
		newDeleteCmd(),
		newSoundCmd(),
		newMessagesCmd(),
		newWatchCmd(),
		newSendCmd(),
		newResendCmd(),
		newScheduleCmd(),
		newBlockCmd(),
		newContactsCmd(),
	)
	return cmd
}

// profileName resolves and validates the --profile flag.
func profileName(cmd *cobra.Command) (string, error) {
	flag, _ := cmd.Flags().GetString("profile")
	name := profile.Resolve(flag)
	if err := profile.ValidateName(name); err != nil {
		return "", err
	}
	return name, nil
}

// connect dials the profile's daemon.
func connect(cmd *cobra.Command) (*client.Client, error) {
	name, err := profileName(cmd)
	if err != nil {
		return nil, err
	}
	c, err := client.New(profile.SocketPath(name))
	if err != nil {
		return nil, fmt.Errorf("cannot connect to daemon for profile %q: %w", name, err)
	}
	return c, nil
}

// call runs fn with a connected client and the command's timeout.
func call(cmd *cobra.Command, fn func(ctx context.Context, c *client.Client) error) error {
	c, err := connect(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	timeout, _ := cmd.Flags().GetDuration("timeout")
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()
	return fn(ctx, c)
}

func jsonOutput(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// output writes v as JSON when --json is set and calls human otherwise.
func output(cmd *cobra.Command, v any, human func(w io.Writer)) error {
	if jsonOutput(cmd) {
		return outputJSON(cmd.OutOrStdout(), v)
	}
	human(cmd.OutOrStdout())
	return nil
}

func formatMillis(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).Format("2006-01-02 15:04")
}
