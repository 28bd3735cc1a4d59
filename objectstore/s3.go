package objectstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/bitrise-io/go-utils/v2/log"
)

// S3ClientParams ...
type S3ClientParams struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
}

type s3Store struct {
	client *s3.Client
	bucket string
	region string
	logger log.Logger
}

// NewS3Client creates a Client backed by an S3 bucket. SDK-internal request
// retries are disabled: retry policy is the caller's concern.
func NewS3Client(ctx context.Context, params S3ClientParams, logger log.Logger) (Client, error) {
	if params.Region == "" {
		return nil, fmt.Errorf("region must not be empty")
	}
	if params.Bucket == "" {
		return nil, fmt.Errorf("bucket must not be empty")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(params.Region),
		awsconfig.WithRetryer(func() aws.Retryer { return aws.NopRetryer{} }),
	}
	if params.AccessKeyID != "" && params.SecretAccessKey != "" {
		logger.Debugf("Using static AWS credentials")
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(params.AccessKeyID, params.SecretAccessKey, "")))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &s3Store{
		client: s3.NewFromConfig(cfg),
		bucket: params.Bucket,
		region: params.Region,
		logger: logger,
	}, nil
}

func (s *s3Store) PutObject(ctx context.Context, input PutInput) (PutOutput, error) {
	putInput := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(input.Key),
		Body:          input.Body,
		ContentType:   aws.String(input.ContentType),
		ContentLength: aws.Int64(input.Length),
	}
	if input.ContentEncoding != "" {
		putInput.ContentEncoding = aws.String(input.ContentEncoding)
	}
	if input.CacheControl != "" {
		putInput.CacheControl = aws.String(input.CacheControl)
	}

	resp, err := s.client.PutObject(ctx, putInput)
	if err != nil {
		return PutOutput{}, fmt.Errorf("put object %s: %w", input.Key, err)
	}

	return PutOutput{
		ETag:     aws.ToString(resp.ETag),
		Location: s.objectURL(input.Key),
	}, nil
}

func (s *s3Store) CreateMultipartUpload(ctx context.Context, input CreateInput) (string, error) {
	createInput := &s3.CreateMultipartUploadInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(input.Key),
		ContentType: aws.String(input.ContentType),
	}
	if input.ContentEncoding != "" {
		createInput.ContentEncoding = aws.String(input.ContentEncoding)
	}
	if input.CacheControl != "" {
		createInput.CacheControl = aws.String(input.CacheControl)
	}

	resp, err := s.client.CreateMultipartUpload(ctx, createInput)
	if err != nil {
		return "", fmt.Errorf("create multipart upload for %s: %w", input.Key, err)
	}

	return aws.ToString(resp.UploadId), nil
}

func (s *s3Store) UploadPart(ctx context.Context, input PartInput) (string, error) {
	resp, err := s.client.UploadPart(ctx, &s3.UploadPartInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(input.Key),
		UploadId:      aws.String(input.UploadID),
		PartNumber:    aws.Int32(input.PartNumber),
		Body:          input.Body,
		ContentLength: aws.Int64(input.Length),
	})
	if err != nil {
		return "", fmt.Errorf("upload part %d of %s: %w", input.PartNumber, input.Key, err)
	}

	return aws.ToString(resp.ETag), nil
}

func (s *s3Store) CompleteMultipartUpload(ctx context.Context, input CompleteInput) (CompleteOutput, error) {
	parts := make([]types.CompletedPart, len(input.Parts))
	for i, part := range input.Parts {
		parts[i] = types.CompletedPart{
			PartNumber: aws.Int32(part.PartNumber),
			ETag:       aws.String(part.ETag),
		}
	}

	resp, err := s.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(s.bucket),
		Key:             aws.String(input.Key),
		UploadId:        aws.String(input.UploadID),
		MultipartUpload: &types.CompletedMultipartUpload{Parts: parts},
	})
	if err != nil {
		return CompleteOutput{}, fmt.Errorf("complete multipart upload %s: %w", input.UploadID, err)
	}

	location := aws.ToString(resp.Location)
	if location == "" {
		location = s.objectURL(input.Key)
	}

	return CompleteOutput{
		ETag:     aws.ToString(resp.ETag),
		Location: location,
	}, nil
}

func (s *s3Store) AbortMultipartUpload(ctx context.Context, key, uploadID string) error {
	_, err := s.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	})
	if err != nil {
		return fmt.Errorf("abort multipart upload %s: %w", uploadID, err)
	}
	return nil
}

func (s *s3Store) objectURL(key string) string {
	escaped := (&url.URL{Path: "/" + key}).EscapedPath()
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com%s", s.bucket, s.region, escaped)
}

// IsNoSuchBucket reports whether err is the object store telling us the
// configured bucket does not exist.
func IsNoSuchBucket(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() == "NoSuchBucket"
	}
	return false
}
