package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"scribe/internal/api"
)

func newFollowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "follow <job-id>",
		Short: "Stream live progress for a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			return followJob(cmd, client, args[0])
		},
	}
}

// followJob renders a job's event stream. On a terminal the progress line is
// rewritten in place; otherwise each event prints on its own line.
func followJob(cmd *cobra.Command, client *apiClient, jobID string) error {
	out := cmd.OutOrStdout()
	inPlace := stdoutIsTerminal()

	var failed bool
	err := client.streamJob(cmd.Context(), jobID, func(event api.ProgressEvent) {
		line := fmt.Sprintf("[%3.0f%%] %s", event.Progress, colorStatus(event.Status))
		if event.Message != "" {
			line += " - " + event.Message
		}
		if inPlace && !event.Terminal() {
			fmt.Fprintf(out, "\r\033[K%s", line)
			return
		}
		if inPlace {
			fmt.Fprintf(out, "\r\033[K%s\n", line)
		} else {
			fmt.Fprintln(out, line)
		}
		if event.Terminal() {
			failed = event.Status == "failed"
			for _, file := range event.ResultFiles {
				fmt.Fprintf(out, "Result: %s (%s, %d bytes)\n", file.FileName, file.ID, file.FileSize)
			}
		}
	})
	if err != nil {
		return err
	}
	if failed {
		return fmt.Errorf("job %s failed", jobID)
	}
	return nil
}
