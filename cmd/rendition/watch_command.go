package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"rendition/internal/config"
	"rendition/internal/queue"
	"rendition/internal/resolution"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var resolutionFlag string

	cmd := &cobra.Command{
		Use:   "watch <job-id>",
		Short: "Follow a job's lifecycle events until it finishes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := resolution.Parse(resolutionFlag)
			if err != nil {
				return err
			}
			jobID := strings.TrimSpace(args[0])

			return ctx.withBroker(func(cfg *config.Config, broker *queue.Broker) error {
				record, err := broker.Get(cmd.Context(), res.QueueName(), jobID)
				if err != nil {
					return err
				}
				if record == nil {
					return fmt.Errorf("job %s not found on %s", jobID, res.QueueName())
				}

				out := cmd.OutOrStdout()
				if record.State.Terminal() {
					printTerminal(out, record.State, record.Result, record.FailureReason)
					return nil
				}

				sub := broker.Subscribe(cmd.Context(), res.QueueName())
				defer sub.Close()

				for {
					select {
					case <-cmd.Context().Done():
						return cmd.Context().Err()
					case event, ok := <-sub.Events():
						if !ok {
							return fmt.Errorf("event stream closed")
						}
						if event.JobID != jobID {
							continue
						}
						switch event.Type {
						case queue.EventProgress:
							fmt.Fprintf(out, "%.1f%%\n", event.Progress)
						case queue.EventCompleted:
							printTerminal(out, queue.StateCompleted, event.Result, "")
							return nil
						case queue.EventFailed:
							printTerminal(out, queue.StateFailed, nil, event.FailureReason)
							return nil
						}
					}
				}
			})
		},
	}

	cmd.Flags().StringVarP(&resolutionFlag, "resolution", "r", "", "Resolution queue the job was submitted to")
	_ = cmd.MarkFlagRequired("resolution")

	return cmd
}

func printTerminal(out io.Writer, state queue.State, result *queue.Result, reason string) {
	switch state {
	case queue.StateCompleted:
		if result != nil {
			fmt.Fprintf(out, "completed: %s\n", result.URL)
			return
		}
		fmt.Fprintln(out, "completed")
	case queue.StateFailed:
		fmt.Fprintf(out, "failed: %s\n", reason)
	}
}
