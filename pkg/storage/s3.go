package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// ObjectAPI is the part of the S3 client the backend uses.
type ObjectAPI interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// S3Storage reads slide sources from and publishes renders to S3 buckets.
type S3Storage struct {
	client ObjectAPI
}

// NewS3Storage builds a client from the AWS default credentials chain. An
// empty region defers to the environment.
func NewS3Storage(ctx context.Context, region string) (*S3Storage, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return NewS3StorageWithClient(s3.NewFromConfig(cfg)), nil
}

func NewS3StorageWithClient(client ObjectAPI) *S3Storage {
	return &S3Storage{client: client}
}

// parseS3URI splits s3://bucket/key into its parts.
func parseS3URI(uri string) (bucket, key string, err error) {
	scheme, p, err := ParseURI(uri)
	if err != nil {
		return "", "", err
	}
	if scheme != "s3" {
		return "", "", fmt.Errorf("S3 storage only supports s3:// URIs, got %s://", scheme)
	}

	bucket, key, _ = strings.Cut(p, "/")
	switch {
	case bucket == "":
		return "", "", fmt.Errorf("invalid S3 URI %q: missing bucket name", uri)
	case key == "":
		return "", "", fmt.Errorf("invalid S3 URI %q: missing object key", uri)
	}
	return bucket, key, nil
}

// contentType picks the Content-Type for an uploaded render.
func contentType(key string) string {
	ext := strings.ToLower(path.Ext(key))
	switch ext {
	case ".mp4":
		return "video/mp4"
	case ".gif":
		return "image/gif"
	case ".mkv":
		return "video/x-matroska"
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}

func (s *S3Storage) Get(ctx context.Context, uri string) (io.ReadCloser, error) {
	bucket, key, err := parseS3URI(uri)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		return nil, fmt.Errorf("s3 get %s: %w", uri, err)
	}
	return out.Body, nil
}

func (s *S3Storage) Put(ctx context.Context, uri string, data io.Reader) error {
	bucket, key, err := parseS3URI(uri)
	if err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        data,
		ContentType: aws.String(contentType(key)),
	})
	if err != nil {
		return fmt.Errorf("s3 put %s: %w", uri, err)
	}
	return nil
}

func (s *S3Storage) Delete(ctx context.Context, uri string) error {
	bucket, key, err := parseS3URI(uri)
	if err != nil {
		return err
	}
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)}); err != nil {
		return fmt.Errorf("s3 delete %s: %w", uri, err)
	}
	return nil
}

func (s *S3Storage) head(ctx context.Context, uri string) (*s3.HeadObjectOutput, error) {
	bucket, key, err := parseS3URI(uri)
	if err != nil {
		return nil, err
	}
	return s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
}

// isNotFound recognises a missing object in the shapes the SDK reports it:
// modeled NotFound or NoSuchKey types, or a bare 404 API error.
func isNotFound(err error) bool {
	var (
		notFound  *types.NotFound
		noSuchKey *types.NoSuchKey
		apiErr    smithy.APIError
	)
	switch {
	case errors.As(err, &notFound), errors.As(err, &noSuchKey):
		return true
	case errors.As(err, &apiErr):
		if apiErr.ErrorCode() == "NotFound" {
			return true
		}
		if sc, ok := apiErr.(interface{ HTTPStatusCode() int }); ok {
			return sc.HTTPStatusCode() == http.StatusNotFound
		}
	}
	return false
}

func (s *S3Storage) Exists(ctx context.Context, uri string) (bool, error) {
	_, err := s.head(ctx, uri)
	switch {
	case err == nil:
		return true, nil
	case isNotFound(err):
		return false, nil
	}
	return false, fmt.Errorf("s3 head %s: %w", uri, err)
}

// Size returns the object's ContentLength.
func (s *S3Storage) Size(ctx context.Context, uri string) (int64, error) {
	out, err := s.head(ctx, uri)
	if err != nil {
		return 0, fmt.Errorf("s3 head %s: %w", uri, err)
	}
	return aws.ToInt64(out.ContentLength), nil
}
