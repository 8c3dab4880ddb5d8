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

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var resolutionFlag string
	var jsonFlag bool

	cmd := &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show the current state of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID := strings.TrimSpace(args[0])

			return ctx.withBroker(func(cfg *config.Config, broker *queue.Broker) error {
				svc := status.New(broker, logging.NewNop())

				var js *status.JobStatus
				var err error
				if strings.TrimSpace(resolutionFlag) == "" {
					js, err = svc.GetAny(cmd.Context(), jobID)
				} else {
					var res resolution.Resolution
					res, err = resolution.Parse(resolutionFlag)
					if err != nil {
						return err
					}
					js, err = svc.GetByResolution(cmd.Context(), res.Height(), jobID)
				}
				if err != nil {
					return err
				}
				if js == nil {
					return fmt.Errorf("job %s not found", jobID)
				}

				if jsonFlag {
					return writeJSON(cmd, js)
				}
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				rows := [][]string{
					{"Job", js.JobID},
					{"Queue", js.QueueName},
					{"State", colorizeState(string(js.State), colorize)},
					{"Progress", fmt.Sprintf("%.1f%%", js.Progress)},
					{"Source", js.Job.SourceLocation},
					{"Owner", js.Job.OwnerID},
				}
				if js.Result != nil {
					rows = append(rows, []string{"Output", js.Result.URL})
				}
				if js.FailureReason != "" {
					rows = append(rows, []string{"Failure", js.FailureReason})
				}
				fmt.Fprintln(out, renderTable([]string{"Field", "Value"}, rows, nil))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&resolutionFlag, "resolution", "r", "", "Limit the lookup to one resolution queue")
	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Emit JSON output")

	return cmd
}
