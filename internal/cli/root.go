// Package cli implements the hubctl command tree, a thin client of the
// hub's control/status API.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Execute runs the hubctl root command.
func Execute() error {
	return buildRootCmd().Execute()
}

func buildRootCmd() *cobra.Command {
	var hubURL string

	root := &cobra.Command{
		Use:           "hubctl",
		Short:         "Control a running mlxhubd daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&hubURL, "hub", "http://127.0.0.1:8800", "Base URL of the hub control API")

	cl := func() *client { return newClient(hubURL) }

	root.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the fleet and group snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := cl().status()
			if err != nil {
				return err
			}
			renderStatus(cmd.OutOrStdout(), st)
			return nil
		},
	})

	for _, action := range []struct {
		use, short string
	}{
		{"start", "Start a worker"},
		{"stop", "Stop a running worker"},
		{"load", "Load a JIT worker (group-admitted)"},
		{"unload", "Unload a JIT worker"},
	} {
		action := action
		root.AddCommand(&cobra.Command{
			Use:   action.use + " <name>",
			Short: action.short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ack, err := cl().post("/hub/models/" + args[0] + "/" + action.use)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), ack.Detail)
				if ack.Evicted != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "evicted %s to free a group slot\n", ack.Evicted)
				}
				return nil
			},
		})
	}

	root.AddCommand(&cobra.Command{
		Use:   "stop-all",
		Short: "Stop every running worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			ack, err := cl().post("/hub/models/stop-all")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ack.Detail)
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "reload",
		Short: "Re-read the hub config and reconcile the fleet",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := cl().post("/hub/reload"); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "reloaded")
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "shutdown",
		Short: "Stop all workers and exit the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			ack, err := cl().post("/hub/shutdown")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ack.Detail)
			return nil
		},
	})

	return root
}
