package internal

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// CaptionPublisher copies a finished caption file somewhere the platform can serve it
type CaptionPublisher interface {
	// Publish uploads the file at localPath under key and returns its location.
	Publish(ctx context.Context, key, localPath string) (string, error)
}

// captionKey is the object key for a caption, e.g. lesson-12/chapter-34-blues-scales.vtt
func captionKey(ref ChapterRef) string {
	p := ArtifactPath("", ref, ArtifactCaption)
	return strings.TrimPrefix(path.Clean(strings.ReplaceAll(p, "\\", "/")), "/")
}

// S3Publisher mirrors caption files into an S3-compatible bucket
type S3Publisher struct {
	client *s3.Client
	bucket string
	prefix string
	logger zerolog.Logger
}

// NewS3Publisher creates a publisher from the s3 section of config. It returns
// nil when no bucket is configured.
func NewS3Publisher(ctx context.Context, config *Config, logger zerolog.Logger) (*S3Publisher, error) {
	if config.S3Bucket == "" {
		return nil, nil
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(config.S3Region),
	}
	if config.S3AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(config.S3AccessKey, config.S3SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if config.S3Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(config.S3Endpoint)
			o.UsePathStyle = true
		})
	}

	return &S3Publisher{
		client: s3.NewFromConfig(awsCfg, s3Opts...),
		bucket: config.S3Bucket,
		prefix: strings.Trim(config.S3Prefix, "/"),
		logger: logger.With().Str("component", "s3-publisher").Logger(),
	}, nil
}

func (p *S3Publisher) objectKey(key string) string {
	if p.prefix == "" {
		return key
	}
	return p.prefix + "/" + key
}

// Publish uploads localPath as text/vtt
func (p *S3Publisher) Publish(ctx context.Context, key, localPath string) (string, error) {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return "", fmt.Errorf("reading caption file: %w", err)
	}

	objKey := p.objectKey(key)
	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(objKey),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("text/vtt"),
	})
	if err != nil {
		return "", fmt.Errorf("uploading s3://%s/%s: %w", p.bucket, objKey, err)
	}

	p.logger.Debug().Str("key", objKey).Int("bytes", len(data)).Msg("caption published")
	return fmt.Sprintf("s3://%s/%s", p.bucket, objKey), nil
}
