// Package s3store implements store.Store on an S3-compatible bucket. Each key
// is one object under prefix/namespace/, the object ETag is the revision, and
// conditional writes (If-None-Match / If-Match) provide compare-and-swap.
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/alfredjeanlab/kvcomments/internal/store"
)

// objectAPI is the subset of *s3.Client used by the store.
type objectAPI interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Config describes the bucket layout.
type Config struct {
	Bucket        string
	Prefix        string // optional object key prefix
	Namespace     string
	Region        string
	Endpoint      string // custom endpoint (MinIO etc.); enables path-style addressing
	MaxValueBytes int
}

// S3Store implements store.Store backed by S3 objects.
type S3Store struct {
	client   objectAPI
	bucket   string
	prefix   string
	maxValue int
}

// Compile-time check that S3Store implements store.Store.
var _ store.Store = (*S3Store)(nil)

// NewClient builds an S3 client from the default AWS credential chain. If
// endpoint is non-empty, path-style addressing is enabled (for MinIO and similar).
func NewClient(ctx context.Context, region, endpoint string) (*s3.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var s3opts []func(*s3.Options)
	if endpoint != "" {
		s3opts = append(s3opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		})
	}
	return s3.NewFromConfig(cfg, s3opts...), nil
}

// Open builds a client and returns a store on cfg.Bucket.
func Open(ctx context.Context, cfg Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3store: bucket is required")
	}
	client, err := NewClient(ctx, cfg.Region, cfg.Endpoint)
	if err != nil {
		return nil, err
	}
	return newWithClient(client, cfg), nil
}

func newWithClient(client objectAPI, cfg Config) *S3Store {
	return &S3Store{
		client:   client,
		bucket:   cfg.Bucket,
		prefix:   path.Join(cfg.Prefix, cfg.Namespace),
		maxValue: cfg.MaxValueBytes,
	}
}

func (s *S3Store) objectKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + key
}

func (s *S3Store) Get(ctx context.Context, key string) (*store.Entry, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, store.ErrKeyNotFound
		}
		return nil, fmt.Errorf("s3 get object %s: %w", key, err)
	}
	defer out.Body.Close()

	value, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3 read object %s: %w", key, err)
	}
	return &store.Entry{Key: key, Value: value, Revision: store.Revision(aws.ToString(out.ETag))}, nil
}

func (s *S3Store) Put(ctx context.Context, key string, value []byte) (store.Revision, error) {
	return s.put(ctx, key, value, nil, nil)
}

func (s *S3Store) Create(ctx context.Context, key string, value []byte) (store.Revision, error) {
	rev, err := s.put(ctx, key, value, aws.String("*"), nil)
	if isPreconditionFailed(err) {
		return "", store.ErrKeyExists
	}
	return rev, err
}

func (s *S3Store) Update(ctx context.Context, key string, value []byte, rev store.Revision) (store.Revision, error) {
	if rev == "" {
		return "", store.ErrRevisionMismatch
	}
	next, err := s.put(ctx, key, value, nil, aws.String(string(rev)))
	if isPreconditionFailed(err) || isNotFound(err) {
		return "", store.ErrRevisionMismatch
	}
	return next, err
}

func (s *S3Store) put(ctx context.Context, key string, value []byte, ifNoneMatch, ifMatch *string) (store.Revision, error) {
	if err := store.CheckSize(value, s.maxValue); err != nil {
		return "", err
	}
	out, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.objectKey(key)),
		Body:        bytes.NewReader(value),
		ContentType: aws.String("application/json"),
		IfNoneMatch: ifNoneMatch,
		IfMatch:     ifMatch,
	})
	if err != nil {
		return "", fmt.Errorf("s3 put object %s: %w", key, err)
	}
	return store.Revision(aws.ToString(out.ETag)), nil
}

// Delete removes key. S3 deletes are idempotent, so existence is checked first.
func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return store.ErrKeyNotFound
		}
		return fmt.Errorf("s3 head object %s: %w", key, err)
	}

	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	}); err != nil {
		return fmt.Errorf("s3 delete object %s: %w", key, err)
	}
	return nil
}

// Close is a no-op; the SDK client holds no resources that need releasing.
func (s *S3Store) Close() error { return nil }

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	if errors.As(err, &nsk) || errors.As(err, &nf) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && (apiErr.ErrorCode() == "NoSuchKey" || apiErr.ErrorCode() == "NotFound")
}

// isPreconditionFailed matches 412 PreconditionFailed and the 409 returned
// when two conditional writes race on the same key.
func isPreconditionFailed(err error) bool {
	if err == nil {
		return false
	}
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "PreconditionFailed", "ConditionalRequestConflict":
		return true
	}
	return false
}
