package awsstore

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3PutAPI is the subset of the S3 client the blob store needs.
type S3PutAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3BlobStore uploads attachment binaries to a bucket.
type S3BlobStore struct {
	Client  S3PutAPI
	Bucket  string
	Prefix  string
	BaseURL string // public URL prefix; empty means the virtual-hosted bucket URL
	Region  string
}

// NewS3BlobStore builds the store from a loaded AWS config. Path-style
// addressing is used when a custom endpoint is set.
func NewS3BlobStore(cfg aws.Config, endpoint, bucket, prefix, baseURL string) *S3BlobStore {
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.UsePathStyle = true
		}
	})
	if baseURL == "" && endpoint != "" {
		baseURL = strings.TrimRight(endpoint, "/") + "/" + bucket
	}
	return &S3BlobStore{
		Client:  client,
		Bucket:  bucket,
		Prefix:  prefix,
		BaseURL: baseURL,
		Region:  cfg.Region,
	}
}

// Put stores data under key and returns its public URL.
func (s *S3BlobStore) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	if s.Bucket == "" {
		return "", fmt.Errorf("put object: no bucket configured")
	}
	objectKey := path.Join(s.Prefix, key)
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(objectKey),
		Body:   bytes.NewReader(data),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := s.Client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("put object %s: %w", objectKey, err)
	}
	return s.objectURL(objectKey), nil
}

func (s *S3BlobStore) objectURL(key string) string {
	escaped := escapeKey(key)
	if s.BaseURL != "" {
		return strings.TrimRight(s.BaseURL, "/") + "/" + escaped
	}
	if s.Region == "" {
		return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", s.Bucket, escaped)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.Bucket, s.Region, escaped)
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
