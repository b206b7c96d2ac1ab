package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	var resolveURLs bool

	cmd := &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show a job's details and result files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}

			job, err := client.getJob(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Job:      %s\n", job.JobID)
			fmt.Fprintf(out, "Source:   %s (%s)\n", job.SourceURL, job.Source)
			fmt.Fprintf(out, "Status:   %s\n", colorStatus(job.Status))
			fmt.Fprintf(out, "Progress: %.0f%%\n", job.Progress)
			fmt.Fprintf(out, "Created:  %s\n", job.CreatedAt.Local().Format(time.DateTime))
			fmt.Fprintf(out, "Updated:  %s\n", job.UpdatedAt.Local().Format(time.DateTime))
			if job.ErrorMessage != "" {
				fmt.Fprintf(out, "Error:    %s\n", job.ErrorMessage)
			}

			if len(job.ResultFiles) == 0 {
				return nil
			}

			rows := make([][]string, 0, len(job.ResultFiles))
			for _, file := range job.ResultFiles {
				location := file.StoragePath
				if resolveURLs {
					resolved, err := client.fileURL(cmd.Context(), job.JobID, file.ID)
					if err != nil {
						return err
					}
					location = resolved
				}
				rows = append(rows, []string{
					file.ID,
					file.FileName,
					file.DetectedLanguage,
					fmt.Sprintf("%d", file.FileSize),
					location,
				})
			}
			fmt.Fprintln(out, renderTable([]string{"File ID", "Name", "Language", "Bytes", "Location"}, rows))
			return nil
		},
	}

	cmd.Flags().BoolVar(&resolveURLs, "urls", false, "Resolve result files to access URLs")
	return cmd
}
