package transcode

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// probeDuration asks ffprobe for the container duration in seconds.
func probeDuration(ctx context.Context, binary, path string) (float64, error) {
	cmd := commandContext(ctx, binary,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		"--", path)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}
	raw := strings.TrimSpace(string(output))
	if raw == "" || raw == "N/A" {
		return 0, fmt.Errorf("ffprobe: no duration reported")
	}
	duration, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe: non-numeric duration %q", raw)
	}
	return duration, nil
}
