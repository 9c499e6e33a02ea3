// Package s3store keeps binary payloads in an S3-compatible bucket.
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sagarc03/remotestore"
)

// Config selects the bucket and how to reach it.
type Config struct {
	// Endpoint overrides the AWS endpoint, e.g. for MinIO. Path-style
	// addressing is used whenever it is set.
	Endpoint string `mapstructure:"endpoint" validate:"omitempty,url"`
	Region   string `mapstructure:"region"`
	Bucket   string `mapstructure:"bucket"`
	// KeyPrefix is prepended to every object key.
	KeyPrefix string `mapstructure:"key_prefix"`
	// AccessKeyID and SecretAccessKey select static credentials. When empty
	// the default AWS credential chain is used.
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	// CreateBucket creates the bucket on startup if it does not exist.
	CreateBucket bool `mapstructure:"create_bucket"`
}

// Store implements remotestore.BlobStore. The payload for (owner, path) is
// the object KeyPrefix + owner + "/" + path.
type Store struct {
	client *s3.Client
	bucket string
	prefix string
}

// New builds an S3 client from cfg and verifies the bucket is reachable.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 store: %w: bucket is required", remotestore.ErrInvalidInput)
	}

	opts := []func(*config.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, "",
		)))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3 store: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	s := &Store{client: client, bucket: cfg.Bucket, prefix: cfg.KeyPrefix}

	if err := s.ensureBucket(ctx, cfg.CreateBucket); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Store) ensureBucket(ctx context.Context, create bool) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return nil
	}

	if !create {
		return fmt.Errorf("s3 store: bucket %s: %w: %w", s.bucket, remotestore.ErrBackingStore, err)
	}

	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		var owned *s3types.BucketAlreadyOwnedByYou
		if errors.As(err, &owned) {
			return nil
		}
		return fmt.Errorf("s3 store: create bucket %s: %w: %w", s.bucket, remotestore.ErrBackingStore, err)
	}
	return nil
}

// Key returns the object key of the payload for (owner, path).
func (s *Store) Key(owner, path string) string {
	return s.prefix + owner + "/" + path
}

func (s *Store) key(owner, path string) (string, error) {
	if !remotestore.IsValidOwner(owner) {
		return "", fmt.Errorf("%w: invalid owner %q", remotestore.ErrInvalidInput, owner)
	}
	if !remotestore.IsValidPath(path) {
		return "", fmt.Errorf("%w: invalid path %q", remotestore.ErrInvalidInput, path)
	}
	return s.Key(owner, path), nil
}

func isNotFound(err error) bool {
	var notFound *s3types.NotFound
	var noKey *s3types.NoSuchKey
	if errors.As(err, &notFound) || errors.As(err, &noKey) {
		return true
	}
	// Some S3 implementations only surface the status code.
	return strings.Contains(err.Error(), "StatusCode: 404")
}

// Get opens a payload for reading. Returns remotestore.ErrNotFound if it does not exist.
func (s *Store) Get(ctx context.Context, owner, path string) (io.ReadCloser, error) {
	key, err := s.key(owner, path)
	if err != nil {
		return nil, fmt.Errorf("get blob: %w", err)
	}

	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, remotestore.ErrNotFound
		}
		return nil, fmt.Errorf("get blob: %w: %w", remotestore.ErrBackingStore, err)
	}

	return resp.Body, nil
}

// Write uploads the payload for (owner, path), replacing any previous one.
// The content is buffered so the request carries a known length.
func (s *Store) Write(ctx context.Context, owner, path string, content io.Reader) (int64, error) {
	key, err := s.key(owner, path)
	if err != nil {
		return 0, fmt.Errorf("write blob: %w", err)
	}

	data, err := io.ReadAll(content)
	if err != nil {
		return 0, fmt.Errorf("write blob: read content: %w", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/octet-stream"),
	})
	if err != nil {
		return 0, fmt.Errorf("write blob: %w: %w", remotestore.ErrBackingStore, err)
	}

	return int64(len(data)), nil
}

// Delete removes a payload. S3 deletes are idempotent, so existence is
// checked first to report remotestore.ErrNotFound.
func (s *Store) Delete(ctx context.Context, owner, path string) error {
	key, err := s.key(owner, path)
	if err != nil {
		return fmt.Errorf("delete blob: %w", err)
	}

	_, err = s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return remotestore.ErrNotFound
		}
		return fmt.Errorf("delete blob: %w: %w", remotestore.ErrBackingStore, err)
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete blob: %w: %w", remotestore.ErrBackingStore, err)
	}
	return nil
}
