package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"rendition/internal/config"
	"rendition/internal/logging"
	"rendition/internal/queue"
	"rendition/internal/resolution"
	"rendition/internal/router"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var resolutionFlag string
	var ownerFlag string
	var artifactFlag string
	var metaFlags []string
	var jsonFlag bool

	cmd := &cobra.Command{
		Use:   "submit <source>",
		Short: "Submit a transcode job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := resolution.Parse(resolutionFlag)
			if err != nil {
				return err
			}
			meta, err := parseMeta(metaFlags)
			if err != nil {
				return err
			}

			return ctx.withBroker(func(cfg *config.Config, broker *queue.Broker) error {
				receipt, err := router.New(cfg, broker, logging.NewNop()).Submit(cmd.Context(), router.Request{
					SourceLocation:   strings.TrimSpace(args[0]),
					OwnerID:          strings.TrimSpace(ownerFlag),
					Resolution:       res.Height(),
					SourceArtifactID: strings.TrimSpace(artifactFlag),
					Meta:             meta,
				})
				if err != nil {
					return err
				}
				if jsonFlag {
					return writeJSON(cmd, map[string]string{
						"jobId":      receipt.JobID,
						"resolution": receipt.Resolution.String(),
						"queue":      receipt.QueueName,
					})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued job %s on %s\n", receipt.JobID, receipt.QueueName)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&resolutionFlag, "resolution", "r", "", "Target resolution (360, 480, 720, or 1080)")
	cmd.Flags().StringVarP(&ownerFlag, "owner", "o", "", "Owner identifier for progress delivery")
	cmd.Flags().StringVar(&artifactFlag, "artifact", "", "Source artifact id to delete after a successful transcode")
	cmd.Flags().StringArrayVar(&metaFlags, "meta", nil, "Additional metadata as key=value (repeatable)")
	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Emit JSON output")
	_ = cmd.MarkFlagRequired("resolution")
	_ = cmd.MarkFlagRequired("owner")

	return cmd
}

func parseMeta(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	meta := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid meta entry %q (expected key=value)", pair)
		}
		meta[key] = value
	}
	return meta, nil
}
