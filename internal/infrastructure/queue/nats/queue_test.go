package nats

import (
	"context"
	"fmt"
	"testing"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/docsort/internal/core/domain"
)

func TestFileJobRoundTripKeepsOptions(t *testing.T) {
	payload, err := EncodeFileJob(FileJob{FileID: "f1", Options: domain.ProcessingOptions{ExtractText: true}})
	if err != nil {
		t.Fatalf("EncodeFileJob() error = %v", err)
	}
	if string(payload) != `{"file_id":"f1","options":{"extract_text":true,"generate_summary":false,"auto_tag":false}}` {
		t.Fatalf("unexpected payload %s", payload)
	}

	job, err := DecodeFileJob(payload)
	if err != nil {
		t.Fatalf("DecodeFileJob() error = %v", err)
	}
	if job.FileID != "f1" || !job.Options.ExtractText || job.Options.GenerateSummary || job.Options.AutoTag {
		t.Fatalf("unexpected job %+v", job)
	}
}

func TestDecodeFileJobDefaultsMissingOptions(t *testing.T) {
	job, err := DecodeFileJob([]byte(`{"file_id":"f2"}`))
	if err != nil {
		t.Fatalf("DecodeFileJob() error = %v", err)
	}
	if job.Options != domain.DefaultProcessingOptions() {
		t.Fatalf("expected default options, got %+v", job.Options)
	}
}

func TestDecodeFileJobRejectsInvalidPayload(t *testing.T) {
	for _, raw := range []string{"f3", `{"options":{}}`, `{"file_id":""}`} {
		if _, err := DecodeFileJob([]byte(raw)); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestClassifyNATSError(t *testing.T) {
	if !classifyNATSError(fmt.Errorf("publish: %w", nats.ErrConnectionClosed)).Retryable {
		t.Fatalf("closed connection should be retryable")
	}
	if classifyNATSError(nats.ErrBadSubject).Retryable {
		t.Fatalf("bad subject must not be retried")
	}
	if classifyNATSError(context.Canceled).RecordFailure {
		t.Fatalf("cancellation must not count as breaker failure")
	}
}

func TestHandleFileJobRunsAfterSubscriberCancelled(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	cancel()

	var got FileJob
	var handlerErr error
	msg := &nats.Msg{Subject: "files.process", Data: []byte(`{"file_id":"f2"}`)}
	handleFileJob(context.WithoutCancel(parent), msg, func(ctx context.Context, job FileJob) error {
		got = job
		handlerErr = ctx.Err()
		return nil
	})

	if got.FileID != "f2" {
		t.Fatalf("handler not called for drained message, got %+v", got)
	}
	if handlerErr != nil {
		t.Fatalf("handler context error = %v, want nil", handlerErr)
	}
	if !got.Options.ExtractText || !got.Options.GenerateSummary || !got.Options.AutoTag {
		t.Fatalf("expected default options, got %+v", got.Options)
	}
}

func TestHandleFileJobSkipsMalformedPayload(t *testing.T) {
	called := false
	handleFileJob(context.Background(), &nats.Msg{Data: []byte(`{"options":{}}`)}, func(context.Context, FileJob) error {
		called = true
		return nil
	})
	if called {
		t.Fatal("handler called for a job without file id")
	}
}
