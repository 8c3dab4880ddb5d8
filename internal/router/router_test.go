package router_test

import (
	"context"
	"errors"
	"testing"

	"rendition/internal/logging"
	"rendition/internal/queue"
	"rendition/internal/resolution"
	"rendition/internal/router"
	"rendition/internal/services"
	"rendition/internal/testsupport"
)

func newRouter(t *testing.T) (*router.Router, *queue.Broker) {
	t.Helper()
	_, broker := testsupport.NewBroker(t)
	cfg := testsupport.NewConfig(t)
	return router.New(cfg, broker, logging.NewNop()), broker
}

func TestSubmitRoutesByResolution(t *testing.T) {
	r, broker := newRouter(t)
	ctx := context.Background()

	receipt, err := r.Submit(ctx, router.Request{
		SourceLocation: "https://media.example/src.mp4",
		OwnerID:        "u1",
		Resolution:     480,
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if receipt.QueueName != "transcode:480" {
		t.Fatalf("unexpected queue %q", receipt.QueueName)
	}
	if receipt.Resolution != resolution.R480 {
		t.Fatalf("unexpected resolution %v", receipt.Resolution)
	}
	if receipt.JobID == "" {
		t.Fatal("expected a job id")
	}

	record, err := broker.Get(ctx, receipt.QueueName, receipt.JobID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if record == nil || record.State != queue.StateWaiting {
		t.Fatalf("expected waiting job, got %+v", record)
	}
	if record.Job.OwnerID != "u1" || record.Job.TargetResolution != 480 {
		t.Fatalf("unexpected job payload: %+v", record.Job)
	}
	if record.Job.SubmittedAt.IsZero() {
		t.Fatal("expected server-assigned submission timestamp")
	}
	if record.Job.Name != "transcode-480-u1" {
		t.Fatalf("unexpected job name %q", record.Job.Name)
	}
}

func TestSubmitQueueNameStableAcrossSubmissions(t *testing.T) {
	r, _ := newRouter(t)
	ctx := context.Background()

	var firstQueue string
	for i := 0; i < 3; i++ {
		receipt, err := r.Submit(ctx, router.Request{SourceLocation: "s", OwnerID: "u1", Resolution: 720})
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
		if firstQueue == "" {
			firstQueue = receipt.QueueName
		}
		if receipt.QueueName != firstQueue {
			t.Fatalf("queue name changed: %q vs %q", receipt.QueueName, firstQueue)
		}
	}
}

func TestSubmitRejectsUnsupportedResolutionWithoutSideEffects(t *testing.T) {
	r, broker := newRouter(t)
	ctx := context.Background()

	_, err := r.Submit(ctx, router.Request{SourceLocation: "s", OwnerID: "u1", Resolution: 999})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	for _, res := range resolution.All() {
		health, err := broker.Health(ctx, res.QueueName())
		if err != nil {
			t.Fatalf("Health: %v", err)
		}
		if health.Total() != 0 {
			t.Fatalf("queue %s touched by invalid submission: %+v", res.QueueName(), health)
		}
	}
}

func TestSubmitCarriesMetadata(t *testing.T) {
	r, broker := newRouter(t)
	ctx := context.Background()

	receipt, err := r.Submit(ctx, router.Request{
		SourceLocation:   "s",
		OwnerID:          "u1",
		Resolution:       360,
		SourceArtifactID: "orig-artifact-7",
		Meta:             map[string]string{"trace": "abc123"},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	record, err := broker.Get(ctx, receipt.QueueName, receipt.JobID)
	if err != nil || record == nil {
		t.Fatalf("Get: %v %v", record, err)
	}
	if record.Job.SourceArtifactID != "orig-artifact-7" {
		t.Fatalf("source artifact lost: %+v", record.Job)
	}
	if record.Job.Meta["trace"] != "abc123" {
		t.Fatalf("metadata lost: %+v", record.Job.Meta)
	}
}
