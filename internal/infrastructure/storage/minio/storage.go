package minio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/kirillkom/docsort/internal/core/domain"
	"github.com/kirillkom/docsort/internal/infrastructure/resilience"
)

type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Executor  *resilience.Executor
}

// Storage keeps uploaded bytes in an S3-compatible bucket.
type Storage struct {
	client   *minio.Client
	bucket   string
	executor *resilience.Executor
}

func New(ctx context.Context, opts Options) (*Storage, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", opts.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", opts.Bucket, err)
		}
	}

	return &Storage{client: client, bucket: opts.Bucket, executor: opts.Executor}, nil
}

// Save streams the body once; it is not retried because the reader cannot be rewound.
func (s *Storage) Save(ctx context.Context, key string, data io.Reader, size int64, contentType string) error {
	if size <= 0 {
		size = -1
	}
	_, err := s.client.PutObject(ctx, s.bucket, key, data, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return resilience.WrapTemporary("minio put", fmt.Errorf("put object %s: %w", key, err), classifyMinioError)
	}
	return nil
}

func (s *Storage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := resilience.Call(ctx, s.executor, "minio.get", func(callCtx context.Context) (*minio.Object, error) {
		obj, err := s.client.GetObject(callCtx, s.bucket, key, minio.GetObjectOptions{})
		if err != nil {
			return nil, err
		}
		if _, err := obj.Stat(); err != nil {
			_ = obj.Close()
			return nil, err
		}
		return obj, nil
	}, classifyMinioError)
	if err != nil {
		if isNotFound(err) {
			return nil, domain.WrapError(domain.ErrNotFound, "open object", err)
		}
		return nil, resilience.WrapTemporary("minio get", fmt.Errorf("get object %s: %w", key, err), classifyMinioError)
	}
	return obj, nil
}

func (s *Storage) Delete(ctx context.Context, key string) error {
	err := s.executor.Execute(ctx, "minio.remove", func(callCtx context.Context) error {
		return s.client.RemoveObject(callCtx, s.bucket, key, minio.RemoveObjectOptions{})
	}, classifyMinioError)
	if err != nil && !isNotFound(err) {
		return resilience.WrapTemporary("minio remove", fmt.Errorf("remove object %s: %w", key, err), classifyMinioError)
	}
	return nil
}

func isNotFound(err error) bool {
	var resp minio.ErrorResponse
	if !errors.As(err, &resp) {
		return false
	}
	return resp.StatusCode == http.StatusNotFound || resp.Code == "NoSuchKey"
}

func classifyMinioError(err error) resilience.ErrorClassification {
	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		retryable := resilience.RetryableHTTPStatus(resp.StatusCode)
		return resilience.ErrorClassification{Retryable: retryable, RecordFailure: retryable}
	}
	return resilience.ClassifyTransport(err)
}
