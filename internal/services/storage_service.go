// internal/services/storage_service.go
package services

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"

	"github.com/estatechain/ledger-backend/internal/config"
)

// StorageService writes ledger audit reports to S3.
type StorageService struct {
	s3Client s3iface.S3API
	bucket   string
	prefix   string
}

// NewStorageService returns nil when no report bucket is configured, which
// disables archiving.
func NewStorageService(cfg config.AWSConfig) (*StorageService, error) {
	if cfg.ReportBucket == "" {
		return nil, nil
	}

	awsConfig := &aws.Config{Region: aws.String(cfg.Region)}
	// Without static keys the SDK falls back to its default chain
	// (environment, shared profile, instance role).
	if cfg.AccessKeyID != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return NewStorageServiceWithClient(s3.New(sess), cfg.ReportBucket, cfg.ReportPrefix), nil
}

func NewStorageServiceWithClient(client s3iface.S3API, bucket, prefix string) *StorageService {
	return &StorageService{
		s3Client: client,
		bucket:   bucket,
		prefix:   strings.Trim(prefix, "/"),
	}
}

// Archive uploads body under the configured prefix and returns its s3:// URI.
func (s *StorageService) Archive(ctx context.Context, key string, body []byte) (string, error) {
	objectKey := path.Join(s.prefix, key)

	_, err := s.s3Client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(s.bucket),
		Key:                  aws.String(objectKey),
		Body:                 bytes.NewReader(body),
		ContentType:          aws.String("application/json"),
		ContentLength:        aws.Int64(int64(len(body))),
		ServerSideEncryption: aws.String(s3.ServerSideEncryptionAes256),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	return fmt.Sprintf("s3://%s/%s", s.bucket, objectKey), nil
}
