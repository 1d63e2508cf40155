package archive

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubSeams(t *testing.T) {
	t.Helper()
	origLoad := loadDefaultAWSConfig
	origNew := newS3ClientFromConfig
	origPut := putObject
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNew
		putObject = origPut
	})
}

func TestNewS3Archiver_AppliesOptions(t *testing.T) {
	stubSeams(t)

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			require.NoError(t, fn(&lo))
		}
		assert.Equal(t, "eu-west-1", lo.Region)
		require.NotNil(t, lo.Credentials)

		creds, err := lo.Credentials.Retrieve(ctx)
		require.NoError(t, err)
		assert.Equal(t, "minio", creds.AccessKeyID)
		assert.Equal(t, "minio-secret", creds.SecretAccessKey)
		return aws.Config{Region: lo.Region}, nil
	}

	var endpoint string
	var pathStyle bool
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		var o s3.Options
		for _, fn := range optFns {
			fn(&o)
		}
		endpoint = aws.ToString(o.BaseEndpoint)
		pathStyle = o.UsePathStyle
		return s3.NewFromConfig(cfg, optFns...)
	}

	a, err := NewS3Archiver(context.Background(), Options{
		Region: "eu-west-1", AccessKey: "minio", SecretKey: "minio-secret",
		Bucket: "exports", BaseEndpoint: "http://127.0.0.1:9000",
	})
	require.NoError(t, err)
	assert.Equal(t, "exports", a.bucket)
	assert.Equal(t, "http://127.0.0.1:9000", endpoint)
	assert.True(t, pathStyle)
}

func TestNewS3Archiver_Errors(t *testing.T) {
	stubSeams(t)

	_, err := NewS3Archiver(context.Background(), Options{Region: "us-east-1"})
	require.Error(t, err)

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("no config")
	}
	_, err = NewS3Archiver(context.Background(), Options{Region: "us-east-1", Bucket: "b"})
	require.ErrorContains(t, err, "no config")
}

func TestPut(t *testing.T) {
	stubSeams(t)

	var gotBucket, gotKey, gotBody string
	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		gotBucket, gotKey = aws.ToString(in.Bucket), aws.ToString(in.Key)
		b, err := io.ReadAll(in.Body)
		require.NoError(t, err)
		gotBody = string(b)
		assert.Equal(t, "application/json", aws.ToString(in.ContentType))
		return &s3.PutObjectOutput{}, nil
	}

	a := &S3Archiver{bucket: "exports"}
	require.NoError(t, a.Put(context.Background(), "transactions/2025/03/01/x.json", []byte(`{"ok":true}`)))
	assert.Equal(t, "exports", gotBucket)
	assert.Equal(t, "transactions/2025/03/01/x.json", gotKey)
	assert.Equal(t, `{"ok":true}`, gotBody)

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return nil, errors.New("access denied")
	}
	err := a.Put(context.Background(), "k", nil)
	require.ErrorContains(t, err, "access denied")
}
