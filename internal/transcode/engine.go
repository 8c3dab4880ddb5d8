package transcode

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"rendition/internal/logging"
	"rendition/internal/services"
)

var commandContext = exec.CommandContext

// stderrTailLimit bounds the diagnostic output attached to failures.
const stderrTailLimit = 8 * 1024

// Engine converts local media files to a target resolution via ffmpeg.
type Engine struct {
	ffmpeg  string
	ffprobe string
	logger  *slog.Logger
}

// Option configures the engine.
type Option func(*Engine)

// WithFFmpeg overrides the ffmpeg binary.
func WithFFmpeg(binary string) Option {
	return func(e *Engine) {
		if binary != "" {
			e.ffmpeg = binary
		}
	}
}

// WithFFprobe overrides the ffprobe binary.
func WithFFprobe(binary string) Option {
	return func(e *Engine) {
		if binary != "" {
			e.ffprobe = binary
		}
	}
}

// NewEngine constructs an engine using default binary names.
func NewEngine(logger *slog.Logger, opts ...Option) *Engine {
	engine := &Engine{
		ffmpeg:  "ffmpeg",
		ffprobe: "ffprobe",
		logger:  logging.NewComponentLogger(logger, "transcode"),
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine
}

// Convert transcodes inputPath to outputPath at the target height. The scale
// filter fixes the height and computes the width to preserve aspect ratio,
// rounded to the nearest even number. onProgress receives percentages in
// [0,100] as markers arrive; a successful run always ends with onProgress(100)
// even when no intermediate markers were observed.
func (e *Engine) Convert(ctx context.Context, inputPath, outputPath string, height int, onProgress func(float64)) error {
	inputPath = strings.TrimSpace(inputPath)
	outputPath = strings.TrimSpace(outputPath)
	if inputPath == "" {
		return services.Wrap(services.ErrValidation, "transcode", "convert", "input path is required", nil)
	}
	if outputPath == "" {
		return services.Wrap(services.ErrValidation, "transcode", "convert", "output path is required", nil)
	}
	if height <= 0 {
		return services.Wrap(services.ErrValidation, "transcode", "convert", fmt.Sprintf("height must be positive, got %d", height), nil)
	}
	if _, err := os.Stat(inputPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return services.Wrap(services.ErrValidation, "transcode", "convert", "input file does not exist: "+inputPath, nil)
		}
		return services.Wrap(services.ErrTransient, "transcode", "convert", "stat input", err)
	}
	if _, err := exec.LookPath(e.ffmpeg); err != nil {
		return services.Wrap(services.ErrConfiguration, "transcode", "convert", "ffmpeg binary not found: "+e.ffmpeg, err)
	}

	duration, err := probeDuration(ctx, e.ffprobe, inputPath)
	if err != nil {
		e.logger.Warn("duration probe failed, progress will be unknown",
			logging.String("input", inputPath),
			logging.Error(err))
		duration = 0
	}

	args := []string{
		"-y",
		"-i", inputPath,
		"-vf", fmt.Sprintf("scale=-2:%d", height),
		"-movflags", "+faststart",
		"-progress", "pipe:1",
		"-nostats",
		outputPath,
	}
	cmd := commandContext(ctx, e.ffmpeg, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return services.Wrap(services.ErrTransient, "transcode", "convert", "stdout pipe", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return services.Wrap(services.ErrTransient, "transcode", "convert", "start ffmpeg", err)
	}

	parser := newProgressParser(duration)
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		percent, ok := parser.Feed(scanner.Text())
		if ok && onProgress != nil {
			onProgress(percent)
		}
	}
	scanErr := scanner.Err()

	if err := cmd.Wait(); err != nil {
		return services.Wrap(services.ErrExternalTool, "transcode", "convert",
			fmt.Sprintf("ffmpeg failed: %s", stderrTail(&stderr)), err)
	}
	if scanErr != nil {
		return services.Wrap(services.ErrTransient, "transcode", "convert", "read progress stream", scanErr)
	}

	if onProgress != nil {
		onProgress(100)
	}
	return nil
}

func stderrTail(buf *bytes.Buffer) string {
	text := strings.TrimSpace(buf.String())
	if len(text) > stderrTailLimit {
		text = text[len(text)-stderrTailLimit:]
	}
	if text == "" {
		return "no diagnostic output"
	}
	return text
}
