// Package storage persists captured signature images in S3-compatible
// object storage. The deal record only ever holds the object key; readers
// get short-lived presigned URLs.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

const presignLifetime = 15 * time.Minute

type S3Config struct {
	Region string
	Bucket string
	// Endpoint overrides the AWS endpoint for minio and friends; empty
	// means real AWS.
	Endpoint  string
	AccessKey string
	SecretKey string
}

type S3SignatureStore struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
}

func NewS3SignatureStore(ctx context.Context, cfg S3Config) (*S3SignatureStore, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3SignatureStore{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.Bucket,
	}, nil
}

func (s *S3SignatureStore) Put(ctx context.Context, dealID string, image []byte) (string, error) {
	key := signatureKey(dealID)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(image),
		ContentType: aws.String("image/png"),
	})
	if err != nil {
		return "", fmt.Errorf("store signature for deal %s: %w", dealID, err)
	}
	return key, nil
}

func (s *S3SignatureStore) PresignGet(ctx context.Context, ref string) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(ref),
	}, s3.WithPresignExpires(presignLifetime))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}

func signatureKey(dealID string) string {
	now := time.Now().UTC()
	return fmt.Sprintf("signatures/%d/%02d/%s/%s.png", now.Year(), now.Month(), dealID, uuid.New())
}
