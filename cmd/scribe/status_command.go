package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status and job counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}

			status, err := client.daemonStatus(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Running:  %s\n", yesNo(status.Running))
			fmt.Fprintf(out, "PID:      %d\n", status.PID)
			fmt.Fprintf(out, "Database: %s\n", status.DBPath)
			fmt.Fprintf(out, "Jobs:     %d total (%d pending, %d processing, %d completed, %d failed)\n",
				status.Jobs.Total, status.Jobs.Pending, status.Jobs.Processing,
				status.Jobs.Completed, status.Jobs.Failed)

			if len(status.Dependencies) == 0 {
				return nil
			}
			rows := make([][]string, 0, len(status.Dependencies))
			for _, dep := range status.Dependencies {
				rows = append(rows, []string{dep.Name, dep.Command, yesNo(dep.Available), dep.Detail})
			}
			fmt.Fprintln(out, renderTable([]string{"Dependency", "Command", "Available", "Detail"}, rows))
			return nil
		},
	}
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
