// Package media stores uploaded images in S3-compatible object storage and
// hands back a public URL for each.
package media

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/leafline/internal/common"
	"github.com/dmitrijs2005/leafline/internal/server/config"
	"github.com/google/uuid"
)

type putObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3ImageStore struct {
	client        putObjectAPI
	bucket        string
	publicBaseURL string
	now           func() time.Time
}

// loadAWSConfig is a seam for testing config.LoadDefaultConfig.
var loadAWSConfig = awsconfig.LoadDefaultConfig

// NewS3ImageStore builds a client for the configured endpoint with static
// credentials. Path-style addressing keeps MinIO happy.
func NewS3ImageStore(ctx context.Context, c *config.Config) (*S3ImageStore, error) {
	cfg, err := loadAWSConfig(ctx,
		awsconfig.WithRegion(c.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			c.S3RootUser, c.S3RootPassword, "",
		)))
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if c.S3BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(c.S3BaseEndpoint)
		}
		o.UsePathStyle = true
	})

	return newS3ImageStore(client, c.S3Bucket, c.S3PublicBaseURL), nil
}

func newS3ImageStore(client putObjectAPI, bucket, publicBaseURL string) *S3ImageStore {
	return &S3ImageStore{
		client:        client,
		bucket:        bucket,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		now:           time.Now,
	}
}

// storageKey spreads objects by upload date.
func (s *S3ImageStore) storageKey() string {
	d := s.now().UTC()
	return fmt.Sprintf("images/%d/%02d/%02d/%v", d.Year(), d.Month(), d.Day(), uuid.New())
}

// Put uploads data and returns its public URL.
func (s *S3ImageStore) Put(ctx context.Context, data []byte, contentType string) (string, error) {
	const op = "media.Put"

	if len(data) == 0 {
		return "", common.NewError(op, common.ErrValidation, "empty image")
	}

	key := s.storageKey()
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return "", common.WrapError(op, common.ErrInfrastructure, err)
	}
	return s.publicBaseURL + "/" + key, nil
}
