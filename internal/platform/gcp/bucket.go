package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/courseloop/courseloop-backend/internal/platform/logger"
)

// ErrObjectNotFound is returned when the requested blob does not exist.
// Callers treat it as a cache/bank miss, not a failure.
var ErrObjectNotFound = errors.New("object not found")

// BucketService is the durable blob store backing the question bank.
type BucketService interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data io.Reader) error
	ListKeys(ctx context.Context, prefix string) ([]string, error)
	Exists(ctx context.Context, key string) (bool, error)
}

type bucketService struct {
	log          *logger.Logger
	client       *storage.Client
	bucketName   string
	emulatorHost string
}

func NewBucketService(log *logger.Logger) (BucketService, error) {
	serviceLog := log.With("service", "BucketService")

	bucketName := strings.TrimSpace(os.Getenv("QUESTION_BANK_GCS_BUCKET_NAME"))
	if bucketName == "" {
		return nil, fmt.Errorf("missing env var QUESTION_BANK_GCS_BUCKET_NAME")
	}

	emulatorHost := strings.TrimSpace(os.Getenv("STORAGE_EMULATOR_HOST"))

	ctx := context.Background()
	var (
		client *storage.Client
		err    error
	)
	if emulatorHost != "" {
		client, err = storage.NewClient(ctx, option.WithoutAuthentication())
	} else {
		client, err = storage.NewClient(ctx, option.WithScopes(storage.ScopeReadWrite))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	serviceLog.Info("Object storage initialized",
		"bucket", bucketName,
		"emulator_host", emulatorHost,
	)

	return &bucketService{
		log:          serviceLog,
		client:       client,
		bucketName:   bucketName,
		emulatorHost: emulatorHost,
	}, nil
}

func (bs *bucketService) Download(ctx context.Context, key string) ([]byte, error) {
	rdr, err := bs.client.Bucket(bs.bucketName).Object(key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ErrObjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open object %q: %w", key, err)
	}
	defer rdr.Close()

	data, err := io.ReadAll(rdr)
	if err != nil {
		return nil, fmt.Errorf("read object %q: %w", key, err)
	}
	return data, nil
}

func (bs *bucketService) Upload(ctx context.Context, key string, data io.Reader) error {
	w := bs.client.Bucket(bs.bucketName).Object(key).NewWriter(ctx)
	w.ContentType = contentTypeForKey(key)
	if _, err := io.Copy(w, data); err != nil {
		_ = w.Close()
		return fmt.Errorf("write object %q: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize object %q: %w", key, err)
	}
	return nil
}

func (bs *bucketService) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	it := bs.client.Bucket(bs.bucketName).Objects(ctx, &storage.Query{Prefix: prefix})
	var keys []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list objects with prefix %q: %w", prefix, err)
		}
		keys = append(keys, attrs.Name)
	}
	return keys, nil
}

func (bs *bucketService) Exists(ctx context.Context, key string) (bool, error) {
	_, err := bs.client.Bucket(bs.bucketName).Object(key).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func contentTypeForKey(key string) string {
	switch {
	case strings.HasSuffix(key, ".csv"):
		return "text/csv; charset=utf-8"
	case strings.HasSuffix(key, ".json"):
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
