// Package objectstore uploads raw broker rasters (and, optionally, NetCDF
// mirrors) to an S3-compatible audit bucket via aws-sdk-go-v2.
package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/aeris-platform/aeris/internal/core/observability"
)

// Store uploads and reads objects in one configured bucket.
type Store struct {
	client *s3.Client
	bucket string
}

// Open builds a Store. endpoint may be empty to use AWS's default resolver
// (real S3); non-empty points at an S3-compatible endpoint (e.g. MinIO).
func Open(ctx context.Context, endpoint, region, bucket string) (*Store, error) {
	if bucket == "" {
		return nil, fmt.Errorf("objectstore: bucket is required")
	}

	optFns := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("objectstore: load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	return &Store{client: client, bucket: bucket}, nil
}

// Put uploads data under key, returning the bucket-relative key on success.
func (s *Store) Put(ctx context.Context, key string, data []byte) (string, error) {
	start := time.Now()
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	observability.ObserveDBOp("objectstore_put", err, time.Since(start))
	if err != nil {
		return "", fmt.Errorf("objectstore: put %s/%s: %w", s.bucket, key, err)
	}
	return key, nil
}

// Get downloads the object at key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	observability.ObserveDBOp("objectstore_get", err, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("objectstore: get %s/%s: %w", s.bucket, key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("objectstore: read %s/%s: %w", s.bucket, key, err)
	}
	return data, nil
}

// RasterKey builds the audit-bucket key for a raw broker raster, per §4.C.6:
// audit/geotiff/{YYYY-MM-DD}/{gas}_{HH}.tif
func RasterKey(gas string, hour time.Time) string {
	return fmt.Sprintf("audit/geotiff/%s/%s_%s.tif", hour.Format("2006-01-02"), gas, hour.Format("15"))
}
