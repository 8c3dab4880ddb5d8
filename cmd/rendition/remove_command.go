package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"rendition/internal/config"
	"rendition/internal/logging"
	"rendition/internal/queue"
	"rendition/internal/resolution"
	"rendition/internal/status"
)

func newRemoveCommand(ctx *commandContext) *cobra.Command {
	var resolutionFlag string

	cmd := &cobra.Command{
		Use:   "remove <job-id>",
		Short: "Remove a job that has not started processing yet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := resolution.Parse(resolutionFlag)
			if err != nil {
				return err
			}
			jobID := strings.TrimSpace(args[0])

			return ctx.withBroker(func(cfg *config.Config, broker *queue.Broker) error {
				removed, err := status.New(broker, logging.NewNop()).Remove(cmd.Context(), res.Height(), jobID)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if !removed {
					fmt.Fprintf(out, "Job %s was not waiting on %s; nothing removed\n", jobID, res.QueueName())
					return nil
				}
				fmt.Fprintf(out, "Job %s removed from %s\n", jobID, res.QueueName())
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&resolutionFlag, "resolution", "r", "", "Resolution queue the job was submitted to")
	_ = cmd.MarkFlagRequired("resolution")

	return cmd
}
