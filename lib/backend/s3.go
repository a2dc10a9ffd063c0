// Copyright 2026 The Nanodata Authors
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3 serves objects from AWS S3 or any S3-compatible store (MinIO,
// R2). Paths are "<bucket>/<key>". The object ETag serves as the
// content digest proxy: for single-part uploads it is the MD5 of the
// content, for multipart uploads it still changes whenever the content
// does, which is all the fingerprint needs.
type S3 struct {
	client *s3.Client
}

// S3Options configures the S3 backend.
type S3Options struct {
	// Region overrides the region from the default AWS config chain.
	Region string

	// Endpoint points the client at an S3-compatible store. Empty for
	// AWS proper.
	Endpoint string

	// UsePathStyle forces path-style addressing, required by most
	// non-AWS S3 implementations.
	UsePathStyle bool
}

// NewS3 builds an S3 backend using the standard AWS credential chain
// (environment, shared config, instance metadata).
func NewS3(ctx context.Context, options S3Options) (*S3, error) {
	var loadOptions []func(*awsconfig.LoadOptions) error
	if options.Region != "" {
		loadOptions = append(loadOptions, awsconfig.WithRegion(options.Region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOptions...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if options.Endpoint != "" {
			o.BaseEndpoint = aws.String(options.Endpoint)
		}
		o.UsePathStyle = options.UsePathStyle
	})
	return &S3{client: client}, nil
}

// NewS3WithClient wraps an existing client. Used by tests and callers
// with bespoke credential handling.
func NewS3WithClient(client *s3.Client) *S3 {
	return &S3{client: client}
}

// Scheme implements Backend.
func (b *S3) Scheme() string { return "s3" }

func splitBucketKey(path string) (bucket, key string, err error) {
	bucket, key, found := strings.Cut(path, "/")
	if !found || bucket == "" || key == "" {
		return "", "", fmt.Errorf("s3 path %q must be <bucket>/<key>", path)
	}
	return bucket, key, nil
}

// OpenRead implements Backend.
func (b *S3) OpenRead(ctx context.Context, path string) (io.ReadCloser, error) {
	bucket, key, err := splitBucketKey(path)
	if err != nil {
		return nil, unavailable(b.Scheme(), path, err)
	}
	output, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, unavailable(b.Scheme(), path, err)
	}
	return output.Body, nil
}

// Stat implements Backend.
func (b *S3) Stat(ctx context.Context, path string) (StatInfo, error) {
	bucket, key, err := splitBucketKey(path)
	if err != nil {
		return StatInfo{}, unavailable(b.Scheme(), path, err)
	}
	output, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return StatInfo{}, unavailable(b.Scheme(), path, err)
	}

	info := StatInfo{}
	if output.ContentLength != nil {
		info.Size = *output.ContentLength
	}
	if output.LastModified != nil {
		info.ModTime = *output.LastModified
	}
	if output.ETag != nil {
		info.Digest = "etag:" + strings.Trim(*output.ETag, `"`)
	}
	return info, nil
}

// List implements Backend. Lists object keys under
// "<bucket>/<prefix>", paginating through the full result set.
func (b *S3) List(ctx context.Context, prefix string) ([]string, error) {
	bucket, keyPrefix, found := strings.Cut(prefix, "/")
	if bucket == "" {
		return nil, unavailable(b.Scheme(), prefix, fmt.Errorf("s3 prefix %q missing bucket", prefix))
	}
	if !found {
		keyPrefix = ""
	}

	input := &s3.ListObjectsV2Input{Bucket: aws.String(bucket)}
	if keyPrefix != "" {
		input.Prefix = aws.String(keyPrefix)
	}

	var paths []string
	paginator := s3.NewListObjectsV2Paginator(b.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, unavailable(b.Scheme(), prefix, err)
		}
		for _, object := range page.Contents {
			if object.Key != nil {
				paths = append(paths, bucket+"/"+*object.Key)
			}
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// Write implements Backend.
func (b *S3) Write(ctx context.Context, path string, r io.Reader) error {
	bucket, key, err := splitBucketKey(path)
	if err != nil {
		return unavailable(b.Scheme(), path, err)
	}
	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   r,
	})
	if err != nil {
		return unavailable(b.Scheme(), path, err)
	}
	return nil
}
