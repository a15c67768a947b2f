package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/yusufkarademir/etkinlikqr/internal/tracing"
)

// S3Config holds connection settings for an S3-compatible bucket.
type S3Config struct {
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	// Endpoint is required for non-AWS providers (MinIO, R2, Backblaze).
	Endpoint string
	// Region defaults to "auto".
	Region string
	// PublicBaseURL prefixes keys in PublicURL, e.g. a CDN host.
	PublicBaseURL string
}

// S3Store implements Store on an S3-compatible bucket.
type S3Store struct {
	client        *s3.Client
	presignClient *s3.PresignClient
	bucket        string
	publicBaseURL string
}

// NewS3Store creates an S3Store with static credentials and path-style addressing.
func NewS3Store(cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}
	if cfg.AccessKeyID == "" {
		return nil, errors.New("access key ID is required")
	}
	if cfg.SecretAccessKey == "" {
		return nil, errors.New("secret access key is required")
	}
	if cfg.PublicBaseURL == "" {
		return nil, errors.New("public base URL is required")
	}
	if cfg.Region == "" {
		cfg.Region = "auto"
	}

	opts := s3.Options{
		Region: cfg.Region,
		Credentials: aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	client := s3.New(opts)

	return &S3Store{
		client:        client,
		presignClient: s3.NewPresignClient(client),
		bucket:        cfg.Bucket,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
	}, nil
}

// Put implements Store.
func (s *S3Store) Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (err error) {
	ctx, endSpan := tracing.StartStorageSpan(ctx, "PutObject", s.bucket, 1)
	defer func() { endSpan(err) }()

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

// Stat implements Store.
func (s *S3Store) Stat(ctx context.Context, key string) (_ *ObjectInfo, err error) {
	ctx, endSpan := tracing.StartStorageSpan(ctx, "HeadObject", s.bucket, 1)
	defer func() { endSpan(err) }()

	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && (apiErr.ErrorCode() == "NotFound" || apiErr.ErrorCode() == "NoSuchKey") {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("head object %s: %w", key, err)
	}
	return &ObjectInfo{Size: aws.ToInt64(out.ContentLength), ContentType: aws.ToString(out.ContentType)}, nil
}

// DeleteObjects implements Store. Keys are sent in batches of MaxDeleteBatch; a
// failed request marks its whole batch as failed and processing continues.
func (s *S3Store) DeleteObjects(ctx context.Context, keys []string) (failed []string, err error) {
	ctx, endSpan := tracing.StartStorageSpan(ctx, "DeleteObjects", s.bucket, len(keys))
	defer func() { endSpan(err) }()

	var errs []error
	for start := 0; start < len(keys); start += MaxDeleteBatch {
		batch := keys[start:min(start+MaxDeleteBatch, len(keys))]

		objects := make([]types.ObjectIdentifier, len(batch))
		for i, key := range batch {
			objects[i] = types.ObjectIdentifier{Key: aws.String(key)}
		}
		out, reqErr := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{Objects: objects, Quiet: aws.Bool(true)},
		})
		if reqErr != nil {
			failed = append(failed, batch...)
			errs = append(errs, reqErr)
			continue
		}
		for _, e := range out.Errors {
			if aws.ToString(e.Code) == "NoSuchKey" {
				continue
			}
			failed = append(failed, aws.ToString(e.Key))
		}
	}
	if len(errs) > 0 {
		err = fmt.Errorf("delete objects: %w", errors.Join(errs...))
	}
	return failed, err
}

// PresignPut implements Store.
func (s *S3Store) PresignPut(ctx context.Context, key, contentType string, size int64, expiry time.Duration) (string, error) {
	req, err := s.presignClient.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = expiry
	})
	if err != nil {
		return "", fmt.Errorf("failed to presign request: %w", err)
	}
	return req.URL, nil
}

// PublicURL implements Store.
func (s *S3Store) PublicURL(key string) string {
	return s.publicBaseURL + "/" + key
}

// Bucket returns the bucket name.
func (s *S3Store) Bucket() string {
	return s.bucket
}

// HealthCheck verifies that the bucket exists and the credentials can reach it.
func (s *S3Store) HealthCheck(ctx context.Context) (err error) {
	ctx, endSpan := tracing.StartStorageSpan(ctx, "HeadBucket", s.bucket, 0)
	defer func() { endSpan(err) }()

	if _, err = s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return fmt.Errorf("head bucket %s: %w", s.bucket, err)
	}
	return nil
}
