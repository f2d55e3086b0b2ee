package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/docsort/internal/core/domain"
	"github.com/kirillkom/docsort/internal/infrastructure/resilience"
)

const QueueGroup = "pipeline-workers"

// FileJob is the wire format of a pipeline request.
type FileJob struct {
	FileID  string                   `json:"file_id"`
	Options domain.ProcessingOptions `json:"options"`
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
}

// Queue publishes file jobs for out-of-process workers and consumes them on the worker side.
type Queue struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
}

func New(url, subject string, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}

	conn, err := nats.Connect(
		url,
		nats.Name("docsort"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:     conn,
		subject:  subject,
		executor: options.ResilienceExecutor,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

// DispatchFile publishes the job and returns once the server has the message buffered.
func (q *Queue) DispatchFile(ctx context.Context, fileID string, options domain.ProcessingOptions) error {
	payload, err := EncodeFileJob(FileJob{FileID: fileID, Options: options})
	if err != nil {
		return err
	}

	err = q.executor.Execute(ctx, "nats.publish", func(context.Context) error {
		if err := q.conn.Publish(q.subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}, classifyNATSError)
	return resilience.WrapTemporary("nats publish", err, classifyNATSError)
}

// SubscribeFileJobs consumes jobs in the shared queue group until ctx is done, then drains.
// Messages delivered during the drain still reach handler, with a context that is no longer cancelled.
func (q *Queue) SubscribeFileJobs(ctx context.Context, handler func(context.Context, FileJob) error) error {
	handlerCtx := context.WithoutCancel(ctx)
	sub, err := q.conn.QueueSubscribe(q.subject, QueueGroup, func(msg *nats.Msg) {
		handleFileJob(handlerCtx, msg, handler)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}
	slog.Info("nats_subscribed", "subject", q.subject, "queue_group", QueueGroup)

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func handleFileJob(ctx context.Context, msg *nats.Msg, handler func(context.Context, FileJob) error) {
	job, err := DecodeFileJob(msg.Data)
	if err != nil {
		slog.Error("file_job_decode_failed", "subject", msg.Subject, "error", err)
		return
	}
	if err := handler(ctx, job); err != nil {
		slog.Error("file_job_handler_failed", "file_id", job.FileID, "error", err)
	}
}

func EncodeFileJob(job FileJob) ([]byte, error) {
	if job.FileID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "encode file job", errors.New("empty file id"))
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("marshal file job: %w", err)
	}
	return payload, nil
}

// DecodeFileJob accepts the JSON envelope; options missing from it default to enabled.
func DecodeFileJob(data []byte) (FileJob, error) {
	job := FileJob{Options: domain.DefaultProcessingOptions()}
	if err := json.Unmarshal(data, &job); err != nil {
		return FileJob{}, fmt.Errorf("unmarshal file job: %w", err)
	}
	if job.FileID == "" {
		return FileJob{}, domain.WrapError(domain.ErrInvalidInput, "decode file job", errors.New("empty file id"))
	}
	return job, nil
}
