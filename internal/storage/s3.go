package storage

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// S3Store uploads files to an S3 bucket and returns their public URLs.
type S3Store struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

// NewS3Store loads the default AWS configuration and prepares an
// uploader for the given bucket and key prefix.
func NewS3Store(ctx context.Context, bucket, prefix string) (*S3Store, error) {
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg)
	return &S3Store{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		prefix:   prefix,
	}, nil
}

// Save uploads data under a generated key and returns the object URL.
func (s *S3Store) Save(ctx context.Context, filename, contentType string, data []byte) (string, error) {
	key := s.prefix + uuid.NewString() + filepath.Ext(filename)

	out, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &key,
		Body:        bytes.NewReader(data),
		ContentType: &contentType,
	})
	if err != nil {
		return "", fmt.Errorf("upload to s3: %w", err)
	}
	return out.Location, nil
}

// Delete removes the object behind a URL previously returned by Save.
func (s *S3Store) Delete(ctx context.Context, url string) error {
	idx := strings.Index(url, s.prefix)
	if idx < 0 {
		return fmt.Errorf("url %q is not served by this store", url)
	}
	key := url[idx:]

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	if err != nil {
		return fmt.Errorf("delete from s3: %w", err)
	}
	return nil
}
