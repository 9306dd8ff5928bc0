package hosting

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/adforge/core/internal/config"
)

// s3Tier persists objects through the official AWS SDK. It works against AWS
// proper and any S3-compatible store that honors the SDK's signing.
type s3Tier struct {
	name         string
	bucket       string
	prefix       string
	customDomain string
	client       *s3.Client
	publicBase   string
}

func newS3Tier(tc config.TierConfig) (*s3Tier, error) {
	bucket := strings.TrimSpace(tc.Bucket)
	region := strings.TrimSpace(tc.Region)
	accessKey := strings.TrimSpace(tc.AccessKeyID)
	secretKey := strings.TrimSpace(tc.SecretAccessKey)
	if bucket == "" || region == "" || accessKey == "" || secretKey == "" {
		return nil, fmt.Errorf("incomplete s3 config: bucket/region/access_key_id/secret_access_key are required")
	}

	opts := s3.Options{
		Region:       region,
		Credentials:  credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		UsePathStyle: tc.PathStyleAccess,
	}

	endpoint := strings.TrimSpace(tc.Endpoint)
	publicBase := fmt.Sprintf("https://%s.s3.%s.amazonaws.com", bucket, region)
	if endpoint != "" {
		if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
			endpoint = "https://" + endpoint
		}
		endpoint = strings.TrimSuffix(endpoint, "/")
		opts.BaseEndpoint = aws.String(endpoint)
		// Custom endpoints rarely support virtual-hosted addressing.
		opts.UsePathStyle = true
		publicBase = endpoint + "/" + bucket
	}

	return &s3Tier{
		name:         tc.Name,
		bucket:       bucket,
		prefix:       strings.Trim(strings.TrimSpace(tc.Prefix), "/"),
		customDomain: strings.TrimRight(strings.TrimSpace(tc.CustomDomain), "/"),
		client:       s3.New(opts),
		publicBase:   publicBase,
	}, nil
}

func (t *s3Tier) Name() string { return t.name }

func (t *s3Tier) Put(ctx context.Context, objectKey string, payload []byte, contentType string) (string, error) {
	key := t.fullKey(objectKey)
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := t.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(t.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("s3 put: %w", err)
	}
	return t.publicURL(key), nil
}

func (t *s3Tier) PutFromURL(ctx context.Context, objectKey, sourceURL string) (string, error) {
	data, contentType, err := fetchOnce(ctx, sourceURL)
	if err != nil {
		return "", err
	}
	return t.Put(ctx, objectKey, data, contentType)
}

func (t *s3Tier) fullKey(objectKey string) string {
	key := strings.TrimPrefix(strings.TrimSpace(objectKey), "/")
	if t.prefix != "" {
		key = t.prefix + "/" + key
	}
	return key
}

func (t *s3Tier) publicURL(fullKey string) string {
	if t.customDomain != "" {
		return t.customDomain + "/" + fullKey
	}
	return t.publicBase + "/" + fullKey
}
