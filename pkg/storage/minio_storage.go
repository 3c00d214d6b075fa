package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioOptions describes how to reach an S3-compatible endpoint.
type MinioOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	Bucket    string
	UseSSL    bool
}

// MinioStorage is a StorageEngine backed by a single bucket of an
// S3-compatible object store.
type MinioStorage struct {
	client *minio.Client
	bucket string
}

// NewMinioStorage wraps an existing client.
func NewMinioStorage(client *minio.Client, bucket string) *MinioStorage {
	return &MinioStorage{client: client, bucket: bucket}
}

// DialMinio creates a minio client from opts and wraps it. No request is
// made until the storage is first used.
func DialMinio(opts MinioOptions) (*MinioStorage, error) {
	if opts.Bucket == "" {
		return nil, errors.New("bucket name must not be empty")
	}

	region := opts.Region
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure:       opts.UseSSL,
		Region:       region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	return NewMinioStorage(client, opts.Bucket), nil
}

// Bucket returns the name of the bucket this storage reads from.
func (s *MinioStorage) Bucket() string {
	return s.bucket
}

func (s *MinioStorage) ListObjects(ctx context.Context, prefix string, delimiter string) (Listing, error) {
	if err := checkDelimiter(delimiter); err != nil {
		return Listing{}, err
	}

	// Cancelling stops the listing goroutine if we bail out early.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	opts := minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: delimiter == "",
	}

	var listing Listing
	for obj := range s.client.ListObjects(ctx, s.bucket, opts) {
		if obj.Err != nil {
			return Listing{}, fmt.Errorf("failed to list objects in bucket %q: %w", s.bucket, obj.Err)
		}

		// Common prefixes come back as bare entries without a timestamp.
		if delimiter != "" && strings.HasSuffix(obj.Key, delimiter) && obj.LastModified.IsZero() {
			listing.Prefixes = append(listing.Prefixes, obj.Key)
			continue
		}

		// Skip directory marker objects.
		if strings.HasSuffix(obj.Key, "/") {
			continue
		}

		listing.Keys = append(listing.Keys, obj.Key)
	}

	return listing, nil
}

func (s *MinioStorage) GetObject(ctx context.Context, key string) (*Object, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, translateMinioError(key, err)
	}

	// GetObject is lazy; Stat issues the request.
	info, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		return nil, translateMinioError(key, err)
	}

	return &Object{
		Key:                key,
		Body:               obj,
		Size:               info.Size,
		ETag:               strings.Trim(info.ETag, "\""),
		LastModified:       info.LastModified,
		ContentType:        info.ContentType,
		ContentEncoding:    info.Metadata.Get("Content-Encoding"),
		ContentLanguage:    info.Metadata.Get("Content-Language"),
		ContentDisposition: info.Metadata.Get("Content-Disposition"),
		CacheControl:       info.Metadata.Get("Cache-Control"),
	}, nil
}

func (s *MinioStorage) PutObject(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to upload object %q to bucket %q: %w", key, s.bucket, err)
	}
	return nil
}

// EnsureBucket checks if the bucket exists, and creates it if it does not.
func (s *MinioStorage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket %q: %w", s.bucket, err)
		}
	}
	return nil
}

func translateMinioError(key string, err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey":
		return ErrObjectNotFound
	case "NoSuchBucket":
		return fmt.Errorf("bucket does not exist: %w", err)
	}
	return fmt.Errorf("failed to get object %q: %w", key, err)
}
