// Package export writes segment recipient lists to S3 as CSV.
package export

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ignite/audience-segments/internal/pkg/logger"
)

// Uploader is the subset of the S3 client used for exports.
type Uploader interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Config configures the S3 exporter.
type Config struct {
	Bucket   string
	Prefix   string // e.g. "exports/segments/"
	Region   string
	Compress bool // gzip the CSV and add a .gz suffix
}

// S3Exporter uploads one CSV object per export.
type S3Exporter struct {
	client   Uploader
	bucket   string
	prefix   string
	compress bool
	now      func() time.Time
}

// NewS3Exporter loads the default AWS configuration for cfg.Region.
func NewS3Exporter(ctx context.Context, cfg Config) (*S3Exporter, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("export bucket is required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	logger.Info("S3 export initialized", "bucket", cfg.Bucket, "prefix", cfg.Prefix, "region", region)
	return NewS3ExporterWith(s3.NewFromConfig(awsCfg), cfg), nil
}

// NewS3ExporterWith builds an exporter around an existing client.
func NewS3ExporterWith(client Uploader, cfg Config) *S3Exporter {
	return &S3Exporter{
		client:   client,
		bucket:   cfg.Bucket,
		prefix:   cfg.Prefix,
		compress: cfg.Compress,
		now:      time.Now,
	}
}

// Key returns the object key for an export started at t.
func (e *S3Exporter) Key(sellerID, segmentID string, t time.Time) string {
	key := fmt.Sprintf("%s%s/%s/%s.csv", e.prefix, sellerID, segmentID, t.UTC().Format("20060102T150405Z"))
	if e.compress {
		key += ".gz"
	}
	return key
}

// Export writes an "email" CSV of emails and returns the object key.
func (e *S3Exporter) Export(ctx context.Context, sellerID, segmentID string, emails []string) (string, error) {
	data, err := encodeCSV(emails)
	if err != nil {
		return "", err
	}
	contentType := "text/csv"
	var encoding *string
	if e.compress {
		if data, err = gzipBytes(data); err != nil {
			return "", fmt.Errorf("failed to compress export: %w", err)
		}
		encoding = aws.String("gzip")
	}

	key := e.Key(sellerID, segmentID, e.now())
	_, err = e.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:          aws.String(e.bucket),
		Key:             aws.String(key),
		Body:            bytes.NewReader(data),
		ContentType:     aws.String(contentType),
		ContentEncoding: encoding,
		Metadata: map[string]string{
			"seller_id":  sellerID,
			"segment_id": segmentID,
			"rows":       fmt.Sprintf("%d", len(emails)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload export to S3: %w", err)
	}
	logger.Info("segment export uploaded", "bucket", e.bucket, "key", key, "bytes", len(data))
	return key, nil
}

func encodeCSV(emails []string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"email"}); err != nil {
		return nil, err
	}
	for _, email := range emails {
		if err := w.Write([]string{email}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to encode export: %w", err)
	}
	return buf.Bytes(), nil
}

func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(data); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
