package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"scribe/internal/api"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var req api.CreateJobRequest
	var follow bool

	cmd := &cobra.Command{
		Use:   "submit <url>",
		Short: "Submit a media URL for transcription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}

			req.VideoURL = args[0]
			job, err := client.createJob(cmd.Context(), req)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Job %s accepted (%s)\n", job.JobID, job.Source)

			if !follow {
				fmt.Fprintf(out, "Follow progress with `scribe follow %s`\n", job.JobID)
				return nil
			}
			return followJob(cmd, client, job.JobID)
		},
	}

	cmd.Flags().StringVar(&req.VideoSource, "source", "", "Media source (url or youtube; detected when omitted)")
	cmd.Flags().StringVar(&req.Model, "model", "", "Whisper model override")
	cmd.Flags().StringVar(&req.Language, "language", "", "Language hint for transcription")
	cmd.Flags().StringVar(&req.OutputFormat, "format", "", "Transcript format (txt or markdown)")
	cmd.Flags().StringVar(&req.Device, "device", "", "Transcription device override (cpu or cuda)")
	cmd.Flags().StringVar(&req.ComputeType, "compute-type", "", "Compute precision override")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Stream progress until the job finishes")
	return cmd
}
