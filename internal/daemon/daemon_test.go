package daemon_test

import (
	"context"
	"testing"

	"rendition/internal/daemon"
	"rendition/internal/logging"
	"rendition/internal/router"
	"rendition/internal/storage"
	"rendition/internal/testsupport"
)

type nopStore struct{}

func (nopStore) Upload(ctx context.Context, localPath, logicalID string) (storage.Object, error) {
	return storage.Object{ID: logicalID}, nil
}

func (nopStore) Download(ctx context.Context, source, destPath string) error { return nil }

func (nopStore) Delete(ctx context.Context, id string) error { return nil }

func newTestDaemon(t *testing.T) *daemon.Daemon {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	_, client := testsupport.NewRedis(t)
	d, err := daemon.New(cfg, client, nopStore{}, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { d.Stop() })
	return d
}

func TestNewRequiresDependencies(t *testing.T) {
	if _, err := daemon.New(nil, nil, nil, nil); err == nil {
		t.Fatal("expected error for missing dependencies")
	}
}

func TestDaemonLifecycle(t *testing.T) {
	d := newTestDaemon(t)
	ctx := context.Background()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := d.Start(ctx); err == nil {
		t.Fatal("second Start should fail while running")
	}

	if st := d.Status(ctx); !st.Running {
		t.Fatal("expected running status after Start")
	}

	d.Stop()
	d.Stop()

	if st := d.Status(ctx); st.Running {
		t.Fatal("expected stopped status after Stop")
	}
}

func TestDaemonRoutesSubmissionsIntoQueues(t *testing.T) {
	d := newTestDaemon(t)
	ctx := context.Background()

	receipt, err := d.Router().Submit(ctx, router.Request{
		SourceLocation: "https://media.example/in.mp4",
		Resolution:     720,
		OwnerID:        "u1",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if receipt.QueueName != "transcode:720" {
		t.Fatalf("unexpected queue %q", receipt.QueueName)
	}

	st := d.Status(ctx)
	summary, ok := st.Queues["transcode:720"]
	if !ok {
		t.Fatal("missing health summary for transcode:720")
	}
	if summary.Waiting != 1 {
		t.Fatalf("expected 1 waiting job, got %d", summary.Waiting)
	}

	js, err := d.StatusService().GetAny(ctx, receipt.JobID)
	if err != nil {
		t.Fatalf("GetAny: %v", err)
	}
	if js == nil || js.QueueName != "transcode:720" {
		t.Fatalf("unexpected job status: %+v", js)
	}
}
