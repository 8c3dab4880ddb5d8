package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"rendition/internal/config"
	"rendition/internal/queue"
	"rendition/internal/resolution"
)

func newHealthCommand(ctx *commandContext) *cobra.Command {
	var jsonFlag bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Show per-queue job counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withBroker(func(cfg *config.Config, broker *queue.Broker) error {
				summaries := make(map[string]queue.HealthSummary, len(resolution.All()))
				for _, res := range resolution.All() {
					summary, err := broker.Health(cmd.Context(), res.QueueName())
					if err != nil {
						return err
					}
					summaries[res.QueueName()] = summary
				}

				if jsonFlag {
					return writeJSON(cmd, summaries)
				}

				rows := make([][]string, 0, len(resolution.All()))
				for _, res := range resolution.All() {
					s := summaries[res.QueueName()]
					rows = append(rows, []string{
						res.QueueName(),
						strconv.FormatInt(s.Waiting, 10),
						strconv.FormatInt(s.Active, 10),
						strconv.FormatInt(s.Delayed, 10),
						strconv.FormatInt(s.Completed, 10),
						strconv.FormatInt(s.Failed, 10),
						strconv.FormatInt(s.Total(), 10),
					})
				}
				aligns := []columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Queue", "Waiting", "Active", "Delayed", "Completed", "Failed", "Total"},
					rows, aligns))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Emit JSON output")

	return cmd
}
