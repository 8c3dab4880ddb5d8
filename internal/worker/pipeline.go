package worker

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"rendition/internal/logging"
	"rendition/internal/queue"
	"rendition/internal/services"
)

// Converter is the transcode engine contract the pipeline needs.
type Converter interface {
	Convert(ctx context.Context, inputPath, outputPath string, height int, onProgress func(float64)) error
}

// Stage names used in logs and structured progress.
const (
	stageDownloading = "downloading"
	stageProcessing  = "processing"
	stageUploading   = "uploading"
	stageCleanup     = "cleanup"
)

// Progress bands per stage. The engine's 0-100 maps into the processing band.
const (
	progressDownloadStart = 5.0
	progressBandLow       = 10.0
	progressBandHigh      = 90.0
	progressUpload        = 95.0
	progressCleanup       = 98.0
)

// process drives one leased job through all four stages. The returned error is
// nil only when the job completed and the broker accepted the result.
func (p *Pool) process(ctx context.Context, record *queue.Record) error {
	job := record.Job
	logger := p.logger.With(
		logging.String(logging.FieldJobID, job.ID),
		logging.String(logging.FieldOwner, job.OwnerID),
		logging.Int("attempt", record.Attempt),
	)

	policy := p.policy()
	runCtx := ctx
	if policy.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, policy.Timeout)
		defer cancel()
	}

	files := newTempFiles(logger)
	defer files.cleanup()

	result, err := p.runStages(runCtx, job, files, logger)
	if err != nil {
		logger.Error("job failed", logging.Error(err))
		if failErr := p.broker.Fail(ctx, p.queueName, job.ID, err.Error(), services.Retryable(err)); failErr != nil {
			logger.Error("failed to record job failure", logging.Error(failErr))
		}
		return err
	}

	if err := p.broker.Complete(ctx, p.queueName, job.ID, *result); err != nil {
		// The artifact is already published; the job outcome is failure but
		// the upload is left for manual reconciliation.
		logger.Error("job completed but result could not be recorded; uploaded artifact retained",
			logging.String("result_url", result.URL),
			logging.Error(err))
		if failErr := p.broker.Fail(ctx, p.queueName, job.ID, "record completion: "+err.Error(), true); failErr != nil {
			logger.Error("failed to record job failure", logging.Error(failErr))
		}
		return err
	}

	logger.Info("job completed", logging.String("result_url", result.URL))
	return nil
}

func (p *Pool) runStages(ctx context.Context, job queue.Job, files *tempFiles, logger *slog.Logger) (*queue.Result, error) {
	sampler := logging.NewProgressSampler(5)
	report := func(stage string, percent float64) {
		if sampler.ShouldLog(percent, stage) {
			logger.Info("progress",
				logging.String(logging.FieldStage, stage),
				logging.Float64("percent", percent))
		}
		if err := p.broker.ReportProgress(ctx, p.queueName, job.ID, percent); err != nil {
			logger.Warn("failed to report progress", logging.Error(err))
		}
	}

	// Downloading.
	report(stageDownloading, progressDownloadStart)
	inputPath := filepath.Join(p.tempDir, fmt.Sprintf("%s-input%s", job.ID, sourceExt(job.SourceLocation)))
	files.add(inputPath)
	if err := p.store.Download(ctx, job.SourceLocation, inputPath); err != nil {
		return nil, err
	}

	// Processing: the engine's own 0-100 maps into the 10-90 band.
	outputPath := filepath.Join(p.tempDir, fmt.Sprintf("%s-output.mp4", job.ID))
	files.add(outputPath)
	report(stageProcessing, progressBandLow)
	err := p.engine.Convert(ctx, inputPath, outputPath, job.TargetResolution, func(enginePercent float64) {
		banded := progressBandLow + enginePercent*(progressBandHigh-progressBandLow)/100
		report(stageProcessing, banded)
	})
	if err != nil {
		return nil, err
	}

	// Uploading.
	report(stageUploading, progressUpload)
	logicalID := fmt.Sprintf("%s/%d/%s.mp4", job.OwnerID, job.TargetResolution, job.ID)
	object, err := p.store.Upload(ctx, outputPath, logicalID)
	if err != nil {
		return nil, err
	}

	// Cleanup: best-effort remote delete, then the deferred local cleanup.
	report(stageCleanup, progressCleanup)
	if job.SourceArtifactID == "" {
		logger.Info("no source artifact to delete, skipping remote cleanup")
	} else if err := p.store.Delete(ctx, job.SourceArtifactID); err != nil {
		logger.Warn("failed to delete source artifact",
			logging.String("artifact_id", job.SourceArtifactID),
			logging.Error(err))
	}
	files.cleanup()

	report(stageCleanup, 100)
	return &queue.Result{URL: object.URL, Resolution: job.TargetResolution}, nil
}

func sourceExt(location string) string {
	ext := filepath.Ext(location)
	if ext == "" || len(ext) > 8 || strings.ContainsAny(ext, "/?&=") {
		return ".mp4"
	}
	return ext
}
