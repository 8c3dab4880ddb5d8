package worker

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"rendition/internal/config"
	"rendition/internal/logging"
	"rendition/internal/queue"
	"rendition/internal/resolution"
	"rendition/internal/services"
	"rendition/internal/storage"
	"rendition/internal/testsupport"
)

type fakeStore struct {
	downloadErr error
	uploadErr   error
	deleteErr   error
	deleted     []string
	uploaded    []string
}

func (f *fakeStore) Download(ctx context.Context, source, destPath string) error {
	if f.downloadErr != nil {
		return f.downloadErr
	}
	return os.WriteFile(destPath, []byte("source-bytes"), 0o644)
}

func (f *fakeStore) Upload(ctx context.Context, localPath, logicalID string) (storage.Object, error) {
	if f.uploadErr != nil {
		return storage.Object{}, f.uploadErr
	}
	if _, err := os.Stat(localPath); err != nil {
		return storage.Object{}, err
	}
	f.uploaded = append(f.uploaded, logicalID)
	return storage.Object{URL: "https://media.example/" + logicalID, ID: logicalID}, nil
}

func (f *fakeStore) Delete(ctx context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return f.deleteErr
}

type fakeEngine struct {
	err      error
	percents []float64
}

func (f *fakeEngine) Convert(ctx context.Context, inputPath, outputPath string, height int, onProgress func(float64)) error {
	if f.err != nil {
		return f.err
	}
	percents := f.percents
	if percents == nil {
		percents = []float64{0, 50, 100}
	}
	for _, p := range percents {
		if onProgress != nil {
			onProgress(p)
		}
	}
	return os.WriteFile(outputPath, []byte("transcoded-bytes"), 0o644)
}

func newTestPool(t *testing.T, store storage.Store, engine Converter) (*Pool, *queue.Broker, *config.Config) {
	t.Helper()
	_, broker := testsupport.NewBroker(t)
	cfg := testsupport.NewConfig(t)
	pool := NewPool(cfg, broker, store, engine, resolution.R480, logging.NewNop())
	return pool, broker, cfg
}

func leaseJob(t *testing.T, broker *queue.Broker, job queue.Job) *queue.Record {
	t.Helper()
	ctx := context.Background()
	policy := queue.Policy{Attempts: 2, Timeout: time.Minute, Backoff: time.Millisecond, LeaseMargin: time.Minute}
	if err := broker.Enqueue(ctx, "transcode:480", job, policy); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	record, err := broker.Lease(ctx, "transcode:480")
	if err != nil || record == nil {
		t.Fatalf("Lease: %v %v", record, err)
	}
	return record
}

func baseJob(id string) queue.Job {
	return queue.Job{
		ID:               id,
		SourceLocation:   "https://media.example/src/" + id + ".mp4",
		TargetResolution: 480,
		OwnerID:          "u1",
		SubmittedAt:      time.Now().UTC(),
	}
}

func assertNoTempFiles(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read temp dir: %v", err)
	}
	if len(entries) != 0 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("temporary files left behind: %v", names)
	}
}

func TestProcessSuccess(t *testing.T) {
	store := &fakeStore{}
	pool, broker, cfg := newTestPool(t, store, &fakeEngine{})
	ctx := context.Background()

	job := baseJob("job-1")
	job.SourceArtifactID = "original-upload-1"
	record := leaseJob(t, broker, job)

	if err := pool.process(ctx, record); err != nil {
		t.Fatalf("process: %v", err)
	}

	final, err := broker.Get(ctx, "transcode:480", "job-1")
	if err != nil || final == nil {
		t.Fatalf("Get: %v %v", final, err)
	}
	if final.State != queue.StateCompleted {
		t.Fatalf("expected completed, got %s", final.State)
	}
	if final.Progress != 100 {
		t.Fatalf("expected final progress 100, got %v", final.Progress)
	}
	if final.Result == nil || final.Result.Resolution != 480 {
		t.Fatalf("unexpected result: %+v", final.Result)
	}
	if len(store.uploaded) != 1 || store.uploaded[0] != "u1/480/job-1.mp4" {
		t.Fatalf("unexpected upload id: %v", store.uploaded)
	}
	if len(store.deleted) != 1 || store.deleted[0] != "original-upload-1" {
		t.Fatalf("expected source artifact deletion, got %v", store.deleted)
	}
	assertNoTempFiles(t, cfg.Paths.TempDir)
}

func TestProcessSkipsRemoteCleanupWithoutArtifactID(t *testing.T) {
	store := &fakeStore{}
	pool, broker, cfg := newTestPool(t, store, &fakeEngine{})

	record := leaseJob(t, broker, baseJob("job-1"))
	if err := pool.process(context.Background(), record); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(store.deleted) != 0 {
		t.Fatalf("unexpected remote delete: %v", store.deleted)
	}
	assertNoTempFiles(t, cfg.Paths.TempDir)
}

func TestProcessRemoteDeleteFailureIsNotFatal(t *testing.T) {
	store := &fakeStore{deleteErr: errors.New("bucket unavailable")}
	pool, broker, _ := newTestPool(t, store, &fakeEngine{})

	job := baseJob("job-1")
	job.SourceArtifactID = "original-upload-1"
	record := leaseJob(t, broker, job)

	if err := pool.process(context.Background(), record); err != nil {
		t.Fatalf("delete failure must not fail the job: %v", err)
	}
	final, _ := broker.Get(context.Background(), "transcode:480", "job-1")
	if final.State != queue.StateCompleted {
		t.Fatalf("expected completed, got %s", final.State)
	}
}

func TestProcessFailureLeavesNoTempFiles(t *testing.T) {
	cases := []struct {
		name   string
		store  *fakeStore
		engine *fakeEngine
	}{
		{"download fails", &fakeStore{downloadErr: services.Wrap(services.ErrTransient, "storage", "download", "", errors.New("dial tcp"))}, &fakeEngine{}},
		{"transcode fails", &fakeStore{}, &fakeEngine{err: services.Wrap(services.ErrExternalTool, "transcode", "convert", "ffmpeg failed", errors.New("exit 1"))}},
		{"upload fails", &fakeStore{uploadErr: services.Wrap(services.ErrTransient, "storage", "upload", "", errors.New("dial tcp"))}, &fakeEngine{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pool, broker, cfg := newTestPool(t, tc.store, tc.engine)
			record := leaseJob(t, broker, baseJob("job-1"))

			if err := pool.process(context.Background(), record); err == nil {
				t.Fatal("expected stage failure")
			}
			assertNoTempFiles(t, cfg.Paths.TempDir)

			final, _ := broker.Get(context.Background(), "transcode:480", "job-1")
			if final.State != queue.StateDelayed {
				t.Fatalf("retryable failure should delay the job, got %s", final.State)
			}
		})
	}
}

func TestProcessNonRetryableFailureIsTerminal(t *testing.T) {
	engine := &fakeEngine{err: services.Wrap(services.ErrValidation, "transcode", "convert", "input file does not exist", nil)}
	pool, broker, _ := newTestPool(t, &fakeStore{}, engine)

	record := leaseJob(t, broker, baseJob("job-1"))
	if err := pool.process(context.Background(), record); err == nil {
		t.Fatal("expected failure")
	}
	final, _ := broker.Get(context.Background(), "transcode:480", "job-1")
	if final.State != queue.StateFailed {
		t.Fatalf("expected terminal failure, got %s", final.State)
	}
	if final.FailureReason == "" {
		t.Fatal("expected a failure reason")
	}
}

func TestProcessMapsEngineProgressIntoBand(t *testing.T) {
	engine := &fakeEngine{percents: []float64{0, 25, 50, 75, 100}}
	pool, broker, _ := newTestPool(t, &fakeStore{}, engine)
	ctx := context.Background()

	sub := broker.Subscribe(ctx, "transcode:480")
	defer sub.Close()
	time.Sleep(50 * time.Millisecond)

	record := leaseJob(t, broker, baseJob("job-1"))
	if err := pool.process(ctx, record); err != nil {
		t.Fatalf("process: %v", err)
	}

	var observed []float64
	deadline := time.After(5 * time.Second)
collect:
	for {
		select {
		case event, ok := <-sub.Events():
			if !ok {
				break collect
			}
			if event.Type == queue.EventProgress {
				observed = append(observed, event.Progress)
			}
			if event.Type == queue.EventCompleted {
				break collect
			}
		case <-deadline:
			t.Fatal("timed out collecting events")
		}
	}

	if len(observed) == 0 {
		t.Fatal("expected progress events")
	}
	for i := 1; i < len(observed); i++ {
		if observed[i] < observed[i-1] {
			t.Fatalf("progress went backwards: %v", observed)
		}
	}
	last := observed[len(observed)-1]
	if last != 100 {
		t.Fatalf("expected final progress 100, got %v", last)
	}
	// Engine 50% maps to the middle of the 10-90 band.
	saw50 := false
	for _, p := range observed {
		if p == 50 {
			saw50 = true
		}
	}
	if !saw50 {
		t.Fatalf("expected banded midpoint 50, got %v", observed)
	}
}
