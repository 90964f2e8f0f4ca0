package uploads

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const defaultRegion = "us-east-1"

// S3Signer presigns PUT and GET requests against one bucket.
type S3Signer struct {
	presign *s3.PresignClient
	bucket  string
	now     func() time.Time
}

// NewS3Signer loads the default AWS credential chain for region.
func NewS3Signer(ctx context.Context, region, bucket string) (*S3Signer, error) {
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, ErrNotConfigured
	}
	region = strings.TrimSpace(region)
	if region == "" {
		region = defaultRegion
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewS3SignerFromClient(s3.NewFromConfig(cfg), bucket), nil
}

// NewS3SignerFromClient wraps an existing client.
func NewS3SignerFromClient(client *s3.Client, bucket string) *S3Signer {
	return &S3Signer{presign: s3.NewPresignClient(client), bucket: bucket, now: time.Now}
}

// Sign presigns for the remaining window; S3 has no start time so start is ignored.
func (s *S3Signer) Sign(ctx context.Context, key string, perm Permission, _, expiry time.Time) (string, error) {
	expires := expiry.Sub(s.now())
	if expires <= 0 {
		return "", fmt.Errorf("presign %s: expiry already passed", key)
	}
	withExpiry := func(opts *s3.PresignOptions) {
		opts.Expires = expires
	}
	if perm == PermWrite {
		out, err := s.presign.PresignPutObject(ctx, putObjectInput(s.bucket, key), withExpiry)
		if err != nil {
			return "", err
		}
		return out.URL, nil
	}
	out, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, withExpiry)
	if err != nil {
		return "", err
	}
	return out.URL, nil
}

func (s *S3Signer) UploadHeaders(contentType string) map[string]string {
	headers := map[string]string{}
	if contentType != "" {
		headers["Content-Type"] = contentType
	}
	return headers
}

func putObjectInput(bucket, key string) *s3.PutObjectInput {
	return &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}
}

var _ Signer = (*S3Signer)(nil)
