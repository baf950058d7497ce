// Package s3 persists catalog records as JSON objects in an S3 bucket,
// using the AWS SDK v2 (Amazon S3 or any compatible endpoint such as MinIO).
//
// Only the catalog side lives here. Account lookups run on every login and
// are far too hot for object storage, so accounts stay in one of the
// embedded backends.
//
// Key design: one object per record under an optional key prefix, named
// "<prefix><filename>.json". The bucket is inspectable with any S3 browser
// and a record can be repaired by hand with a single PutObject.
//
// S3 offers no compare-and-swap, so the duplicate check in CreateRecord is
// a head-then-put pair. Two concurrent uploads of the same new filename can
// race past it and resolve as last-write-wins; the upload contract already
// degrades duplicates gracefully, so this is acceptable.
package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/ybecker/catalogd/pkg/store"
)

const objectSuffix = ".json"

// Config contains the settings for an S3 catalog store.
type Config struct {
	// Client is the configured S3 client
	Client *s3.Client

	// Bucket is the S3 bucket name. It must already exist.
	Bucket string

	// KeyPrefix is an optional prefix for all object keys.
	// Example: "catalog/" results in keys like "catalog/report.txt.json"
	KeyPrefix string
}

// CatalogStore is an S3-backed store.CatalogStore.
//
// Thread safety: the underlying S3 client is safe for concurrent use and the
// store itself holds no mutable state.
type CatalogStore struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
}

// NewCatalogStore creates the store and verifies the bucket is reachable.
func NewCatalogStore(ctx context.Context, cfg Config) (*CatalogStore, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("s3 catalog store: client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 catalog store: bucket is required")
	}

	prefix := cfg.KeyPrefix
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	s := &CatalogStore{
		client:    cfg.Client,
		bucket:    cfg.Bucket,
		keyPrefix: prefix,
	}

	if err := s.HealthCheck(ctx); err != nil {
		return nil, fmt.Errorf("verifying bucket %s: %w", cfg.Bucket, err)
	}
	return s, nil
}

func (s *CatalogStore) objectKey(filename string) string {
	return s.keyPrefix + filename + objectSuffix
}

// filenameFromKey reverses objectKey. Returns false for foreign objects that
// happen to live under the prefix.
func (s *CatalogStore) filenameFromKey(key string) (string, bool) {
	name := strings.TrimPrefix(key, s.keyPrefix)
	if !strings.HasSuffix(name, objectSuffix) {
		return "", false
	}
	return strings.TrimSuffix(name, objectSuffix), true
}

func ioError(op string, err error) *store.StoreError {
	return &store.StoreError{
		Code:    store.ErrIOError,
		Message: fmt.Sprintf("s3 %s: %v", op, err),
	}
}

// isNoSuchKey reports whether err means the object does not exist.
// GetObject surfaces *types.NoSuchKey while HeadObject surfaces *types.NotFound.
func isNoSuchKey(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noSuchKey) || errors.As(err, &notFound)
}

// CreateRecord stores a new record object, failing if one already exists for
// the filename.
func (s *CatalogStore) CreateRecord(ctx context.Context, record store.FileRecord) error {
	key := s.objectKey(record.Filename)

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return store.AlreadyExists("record already exists", record.Filename)
	}
	if !isNoSuchKey(err) {
		return ioError("head", err)
	}

	data, err := json.Marshal(record)
	if err != nil {
		return ioError("marshal record", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return ioError("put", err)
	}
	return nil
}

// FindRecord fetches and decodes the record object for filename.
func (s *CatalogStore) FindRecord(ctx context.Context, filename string) (*store.FileRecord, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(filename)),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, store.NotFound("record not found", filename)
		}
		return nil, ioError("get", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, ioError("read", err)
	}

	var record store.FileRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, ioError("unmarshal record", err)
	}
	return &record, nil
}

// ListRecords fetches every record object under the prefix, sorted by
// filename. Each record costs one GetObject; catalogs are small.
func (s *CatalogStore) ListRecords(ctx context.Context) ([]store.FileRecord, error) {
	records := make([]store.FileRecord, 0)

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.keyPrefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, ioError("list", err)
		}

		for _, object := range page.Contents {
			filename, ok := s.filenameFromKey(aws.ToString(object.Key))
			if !ok {
				continue
			}

			record, err := s.FindRecord(ctx, filename)
			if err != nil {
				if store.IsNotFound(err) {
					// Deleted between the listing and the fetch.
					continue
				}
				return nil, err
			}
			records = append(records, *record)
		}
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Filename < records[j].Filename
	})
	return records, nil
}

// DeleteRecord removes the record object for filename.
func (s *CatalogStore) DeleteRecord(ctx context.Context, filename string) error {
	key := s.objectKey(filename)

	// DeleteObject succeeds on absent keys, so the existence check has to
	// come first to honor the NotFound contract.
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return store.NotFound("record not found", filename)
		}
		return ioError("head", err)
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return ioError("delete", err)
	}
	return nil
}

// UpdateSize rewrites the record object with the new size. Absent records
// are a no-op.
func (s *CatalogStore) UpdateSize(ctx context.Context, filename string, size int64) error {
	record, err := s.FindRecord(ctx, filename)
	if err != nil {
		if store.IsNotFound(err) {
			return nil
		}
		return err
	}

	record.Size = size
	data, err := json.Marshal(record)
	if err != nil {
		return ioError("marshal record", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.objectKey(filename)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return ioError("put", err)
	}
	return nil
}

// HealthCheck verifies the bucket exists and is accessible.
func (s *CatalogStore) HealthCheck(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return ioError("head bucket", err)
	}
	return nil
}

// Close is a no-op; the S3 client holds no resources needing release.
func (s *CatalogStore) Close() error {
	return nil
}
