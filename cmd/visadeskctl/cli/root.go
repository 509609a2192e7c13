package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// Opener builds the helpers a command runs against. Commands call it lazily so
// --help never needs Redis or secrets.
type Opener func() (*OpsCLI, error)

// NewRootCommand assembles the visadeskctl command tree.
func NewRootCommand(open Opener) *cobra.Command {
	root := &cobra.Command{
		Use:           "visadeskctl",
		Short:         "Visadesk operator tooling",
		Long:          `Mint development tokens, push test notifications and inspect the dispatch queue.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newTokenCommand(open))
	root.AddCommand(newNotifyCommand(open))
	root.AddCommand(newQueueCommand(open))
	return root
}

func newTokenCommand(open Opener) *cobra.Command {
	var opts TokenOptions
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed bearer token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ops, err := open()
			if err != nil {
				return err
			}
			defer ops.Close()
			token, err := ops.IssueToken(opts)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&opts.Subject, "sub", "", "principal id")
	cmd.Flags().StringVar(&opts.Role, "role", "staff", "admin, staff, agent or customer")
	cmd.Flags().StringSliceVar(&opts.Permissions, "perm", nil, "extra permission codes")
	cmd.Flags().DurationVar(&opts.TTL, "ttl", time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("sub")
	return cmd
}

func newNotifyCommand(open Opener) *cobra.Command {
	notifyCmd := &cobra.Command{
		Use:   "notify",
		Short: "Notification commands",
	}
	var opts SendOptions
	send := &cobra.Command{
		Use:   "send [message]",
		Short: "Enqueue a test notification",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ops, err := open()
			if err != nil {
				return err
			}
			defer ops.Close()
			opts.Message = args[0]
			info, err := ops.SendNotification(cmd.Context(), opts)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s on %s\n", info.ID, info.Queue)
			return err
		},
	}
	send.Flags().StringSliceVar(&opts.Recipients, "to", nil, "recipient principal ids")
	send.Flags().StringVar(&opts.Kind, "kind", "info", "info, success, warning or error")
	send.Flags().StringVar(&opts.SubjectType, "subject-type", "", "subject type, e.g. application")
	send.Flags().StringVar(&opts.SubjectID, "subject-id", "", "subject id")
	_ = send.MarkFlagRequired("to")
	notifyCmd.AddCommand(send)
	return notifyCmd
}

func newQueueCommand(open Opener) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Show dispatch queue depth",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ops, err := open()
			if err != nil {
				return err
			}
			defer ops.Close()
			stats, err := ops.InspectQueue(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOutput {
				return json.NewEncoder(out).Encode(stats)
			}
			_, err = fmt.Fprintf(out, "queue=%s pending=%d active=%d scheduled=%d retry=%d archived=%d\n",
				stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Archived)
			return err
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print JSON")
	return cmd
}
