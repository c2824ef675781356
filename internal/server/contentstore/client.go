// Package contentstore uploads artifact bytes to an S3-compatible
// content-addressed store and resolves them back. The object key is derived
// from the SHA-256 digest of the payload, so identical bytes always land on
// the identical key and a repeated upload is a no-op. The store knows nothing
// about access policy; every decision happens upstream.
package contentstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/openheritage/memoryvault/internal/common"
)

// Test seams: the AWS SDK entry points used by the client, replaceable in
// unit tests.
var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in, optFns...)
	}
	getObject = func(c *s3.Client, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
		return c.GetObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// Object is the outcome of a successful store: the content hash and a
// resolvable locator for the bytes.
type Object struct {
	ContentHash string
	Locator     string
}

// Client is the content-store boundary consumed by the orchestrator.
type Client interface {
	// Store uploads primary artifact bytes. No side effect on failure: a
	// failed call never surfaces a partial hash.
	Store(ctx context.Context, payload []byte, mimeType string) (*Object, error)

	// StoreMetadata uploads a structured metadata document, distinct from
	// primary content, under the same content-addressing contract.
	StoreMetadata(ctx context.Context, document []byte) (string, error)

	// Fetch resolves stored bytes by their content hash.
	Fetch(ctx context.Context, contentHash string) ([]byte, error)

	// Locator regenerates a resolvable URL for the hash. Regeneration never
	// changes record identity.
	Locator(ctx context.Context, contentHash string) (string, error)
}

// Options configures the S3-backed client.
type Options struct {
	Region          string
	AccessKey       string
	SecretKey       string
	Bucket          string
	BaseEndpoint    string
	LocatorValidity time.Duration
}

// S3Store implements Client against an S3-compatible backend (MinIO, AWS).
type S3Store struct {
	client  *s3.Client
	presign *s3.PresignClient
	opts    Options
}

// NewS3Store builds the client once so it can be injected as an explicit
// dependency rather than reached through a package singleton.
func NewS3Store(ctx context.Context, opts Options) (*S3Store, error) {
	if opts.LocatorValidity <= 0 {
		opts.LocatorValidity = 15 * time.Minute
	}

	cfg, err := loadDefaultAWSConfig(ctx,
		awsconfig.WithRegion(opts.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			opts.AccessKey,
			opts.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(opts.BaseEndpoint)
		o.UsePathStyle = true
	})

	return &S3Store{
		client:  client,
		presign: newS3PresignClient(client),
		opts:    opts,
	}, nil
}

// HashBytes returns the content hash for a payload. Exposed so callers can
// predict the identity of bytes without storing them.
func HashBytes(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func objectKey(contentHash string) string {
	return "objects/" + contentHash
}

func metadataKey(contentHash string) string {
	return "metadata/" + contentHash
}

func (s *S3Store) Store(ctx context.Context, payload []byte, mimeType string) (*Object, error) {
	hash, err := s.put(ctx, objectKey(HashBytes(payload)), payload, mimeType)
	if err != nil {
		return nil, err
	}

	locator, err := s.Locator(ctx, hash)
	if err != nil {
		return nil, err
	}

	return &Object{ContentHash: hash, Locator: locator}, nil
}

func (s *S3Store) StoreMetadata(ctx context.Context, document []byte) (string, error) {
	return s.put(ctx, metadataKey(HashBytes(document)), document, "application/json")
}

func (s *S3Store) put(ctx context.Context, key string, payload []byte, mimeType string) (string, error) {
	if len(payload) == 0 {
		return "", common.ErrEmptyPayload
	}

	_, err := putObject(s.client, ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.opts.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String(mimeType),
	})
	if err != nil {
		return "", mapStoreError(err)
	}

	return HashBytes(payload), nil
}

func (s *S3Store) Fetch(ctx context.Context, contentHash string) ([]byte, error) {
	out, err := getObject(s.client, ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.opts.Bucket),
		Key:    aws.String(objectKey(contentHash)),
	})
	if err != nil {
		return nil, mapFetchError(err)
	}
	defer out.Body.Close()

	payload, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrContentUnavailable, err)
	}
	return payload, nil
}

func (s *S3Store) Locator(ctx context.Context, contentHash string) (string, error) {
	req, err := presignGetObject(s.presign, ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.opts.Bucket),
		Key:    aws.String(objectKey(contentHash)),
	}, s3.WithPresignExpires(s.opts.LocatorValidity))
	if err != nil {
		return "", mapStoreError(err)
	}
	return req.URL, nil
}

func mapStoreError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", common.ErrTimeout, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "QuotaExceeded", "EntityTooLarge", "ServiceQuotaExceededException":
			return fmt.Errorf("%w: %v", common.ErrQuotaExceeded, err)
		}
	}

	return fmt.Errorf("%w: %v", common.ErrUploadFailure, err)
}

func mapFetchError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", common.ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", common.ErrContentUnavailable, err)
}
