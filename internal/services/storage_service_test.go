package services

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estatechain/ledger-backend/internal/config"
)

type fakeS3 struct {
	s3iface.S3API
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakeS3) PutObjectWithContext(ctx aws.Context, input *s3.PutObjectInput, opts ...request.Option) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.input = input
	body, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}
	f.body = body
	return &s3.PutObjectOutput{}, nil
}

func TestStorageServiceArchive(t *testing.T) {
	client := &fakeS3{}
	storage := NewStorageServiceWithClient(client, "ledger-reports", "/audits/")

	location, err := storage.Archive(context.Background(), "2026/01/02/report.json", []byte(`{"findings":[]}`))
	require.NoError(t, err)

	assert.Equal(t, "s3://ledger-reports/audits/2026/01/02/report.json", location)
	assert.Equal(t, "ledger-reports", aws.StringValue(client.input.Bucket))
	assert.Equal(t, "audits/2026/01/02/report.json", aws.StringValue(client.input.Key))
	assert.Equal(t, "application/json", aws.StringValue(client.input.ContentType))
	assert.Equal(t, int64(15), aws.Int64Value(client.input.ContentLength))
	assert.Equal(t, `{"findings":[]}`, string(client.body))
}

func TestStorageServiceArchiveWithoutPrefix(t *testing.T) {
	storage := NewStorageServiceWithClient(&fakeS3{}, "ledger-reports", "")

	location, err := storage.Archive(context.Background(), "report.json", []byte("{}"))
	require.NoError(t, err)
	assert.Equal(t, "s3://ledger-reports/report.json", location)
}

func TestStorageServiceArchiveError(t *testing.T) {
	storage := NewStorageServiceWithClient(&fakeS3{err: errors.New("AccessDenied")}, "ledger-reports", "")

	_, err := storage.Archive(context.Background(), "report.json", []byte("{}"))
	assert.ErrorContains(t, err, "AccessDenied")
}

func TestNewStorageServiceDisabledWithoutBucket(t *testing.T) {
	storage, err := NewStorageService(config.AWSConfig{Region: "eu-west-1"})
	require.NoError(t, err)
	assert.Nil(t, storage)
}

func TestNewStorageServiceWithBucket(t *testing.T) {
	storage, err := NewStorageService(config.AWSConfig{
		Region:          "eu-west-1",
		AccessKeyID:     "AKIDEXAMPLE",
		SecretAccessKey: "secret",
		ReportBucket:    "ledger-reports",
	})
	require.NoError(t, err)
	require.NotNil(t, storage)
	assert.Equal(t, "ledger-reports", storage.bucket)
}
