package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ErrInvalidLocator is returned when an S3 locator cannot be mapped back to
// an object key.
var ErrInvalidLocator = errors.New("storage: invalid S3 locator")

// S3Config holds the configuration for S3 storage.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // Optional: for custom S3-compatible endpoints
	AccessKeyID     string // Optional: AWS access key ID
	SecretAccessKey string // Optional: AWS secret access key
}

// S3Store implements Store against an S3 bucket. Temporary files stay on
// local disk through the embedded LocalStore; only blob writes and reads go
// to S3. Locators are https object URLs.
type S3Store struct {
	*LocalStore
	client *s3.Client
	bucket string
	region string
}

// Compile-time check that S3Store implements Store.
var _ Store = (*S3Store)(nil)

// NewS3Store creates a new S3Store. Temporary files are kept under tempDir
// on local disk.
func NewS3Store(tempDir string, cfg S3Config) (*S3Store, error) {
	local, err := NewLocalStore("", tempDir)
	if err != nil {
		return nil, err
	}

	var configOpts []func(*config.LoadOptions) error
	configOpts = append(configOpts, config.WithRegion(cfg.Region))

	// Use static credentials if provided
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		configOpts = append(configOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(), configOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var clientOpts []func(*s3.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, clientOpts...)

	return &S3Store{
		LocalStore: local,
		client:     client,
		bucket:     cfg.Bucket,
		region:     cfg.Region,
	}, nil
}

// Write uploads a named blob to S3 and returns its object URL as the locator.
func (s *S3Store) Write(ctx context.Context, name string, data io.Reader) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
		Body:   data,
	})
	if err != nil {
		return "", fmt.Errorf("upload to S3: %w", err)
	}

	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, name), nil
}

// Read resolves a locator back to an object key and downloads it.
func (s *S3Store) Read(ctx context.Context, locator string) (io.ReadCloser, error) {
	key, err := s.keyFromLocator(locator)
	if err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("download from S3: %w", err)
	}
	return out.Body, nil
}

// keyFromLocator extracts the object key from a locator produced by Write.
func (s *S3Store) keyFromLocator(locator string) (string, error) {
	u, err := url.Parse(locator)
	if err != nil || u.Scheme != "https" {
		return "", fmt.Errorf("%w: %q", ErrInvalidLocator, locator)
	}
	key := strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidLocator, locator)
	}
	return key, nil
}
