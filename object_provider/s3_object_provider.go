package objectprovider

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	transferstrategy "github.com/Octogonapus/StorageRace/transfer_strategy"
	"github.com/alitto/pond"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const (
	defaultPartConcurrency = 5
	defaultMaxConnsPerHost = 256
	deleteConcurrency      = 32
)

type s3ObjectProvider struct {
	name     string
	input    *S3ObjectProviderInput
	s3       *s3.Client
	uploader *manager.Uploader
}

// Works with AWS S3 and any S3-compatible store reachable through Endpoint.
type S3ObjectProviderInput struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Profile         string `mapstructure:"profile"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"accessKeyId"`
	SecretAccessKey string `mapstructure:"secretAccessKey"`
	UsePathStyle    bool   `mapstructure:"usePathStyle"`
	PartConcurrency int    `mapstructure:"partConcurrency"`
	MaxConnsPerHost int    `mapstructure:"maxConnsPerHost"`
}

func init() {
	RegisterProvider("s3", func(ctx context.Context, name string, options map[string]any) (ObjectProvider, error) {
		input := &S3ObjectProviderInput{}
		err := decodeOptions(options, input)
		if err != nil {
			return nil, fmt.Errorf("can't convert options to S3ObjectProviderInput: %w", err)
		}
		return NewS3ObjectProvider(ctx, name, input)
	})
}

func NewS3ObjectProvider(ctx context.Context, name string, input *S3ObjectProviderInput) (ObjectProvider, error) {
	if input.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	if input.PartConcurrency <= 0 {
		input.PartConcurrency = defaultPartConcurrency
	}
	if input.MaxConnsPerHost <= 0 {
		input.MaxConnsPerHost = defaultMaxConnsPerHost
	}

	httpClient, err := newHTTPClient(input.MaxConnsPerHost)
	if err != nil {
		return nil, err
	}

	opts := []func(*config.LoadOptions) error{config.WithHTTPClient(httpClient)}
	if input.Region != "" {
		opts = append(opts, config.WithRegion(input.Region))
	}
	if input.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(input.Profile))
	}
	if input.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(input.AccessKeyID, input.SecretAccessKey, ""),
		))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config failed: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if input.Endpoint != "" {
			o.BaseEndpoint = aws.String(input.Endpoint)
		}
		o.UsePathStyle = input.UsePathStyle
	})

	return &s3ObjectProvider{
		name:  name,
		input: input,
		s3:    client,
		uploader: manager.NewUploader(client, func(u *manager.Uploader) {
			u.Concurrency = input.PartConcurrency
		}),
	}, nil
}

func (o *s3ObjectProvider) Name() string {
	return o.name
}

func (o *s3ObjectProvider) PutObject(ctx context.Context, spec *ObjectSpec, body io.Reader, strategy transferstrategy.Strategy) error {
	if strategy.Mode == transferstrategy.SingleShot {
		_, err := o.s3.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        &o.input.Bucket,
			Key:           &spec.Key,
			Body:          body,
			ContentLength: aws.Int64(spec.SizeBytes),
		})
		if err != nil {
			return fmt.Errorf("PutObject failed: %w", err)
		}
		return nil
	}

	partSize := max(strategy.ChunkSizeBytes, manager.MinUploadPartSize)
	if partSize != strategy.ChunkSizeBytes {
		slog.Debug("raising part size to the S3 minimum",
			slog.String("provider", o.name),
			slog.Int64("requested", strategy.ChunkSizeBytes),
			slog.Int64("used", partSize))
	}
	_, err := o.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: &o.input.Bucket,
		Key:    &spec.Key,
		Body:   body,
	}, func(u *manager.Uploader) {
		u.PartSize = partSize
	})
	if err != nil {
		return fmt.Errorf("multipart upload failed: %w", err)
	}
	return nil
}

func (o *s3ObjectProvider) GetObject(ctx context.Context, key string) (io.ReadCloser, error) {
	resp, err := o.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &o.input.Bucket,
		Key:    &key,
	})
	if err != nil {
		return nil, fmt.Errorf("GetObject failed: %w", err)
	}
	return resp.Body, nil
}

func (o *s3ObjectProvider) DeleteObjects(ctx context.Context, keys []string) error {
	errChan := make(chan error, len(keys))
	pool := pond.New(deleteConcurrency, 0, pond.MinWorkers(deleteConcurrency))
	for _, key := range keys {
		pool.Submit(func() {
			_, err := o.s3.DeleteObject(ctx, &s3.DeleteObjectInput{
				Bucket: &o.input.Bucket,
				Key:    &key,
			})
			if err != nil {
				slog.Error("failed to delete S3 object", slog.String("key", key), slog.String("error", err.Error()))
				errChan <- err
			}
		})
	}
	pool.StopAndWait()

	select {
	case err := <-errChan:
		return fmt.Errorf("some S3 objects failed to delete: %w", err)
	default:
		slog.Info("deleted objects", slog.String("provider", o.name), slog.String("bucket", o.input.Bucket), slog.Int("count", len(keys)))
		return nil
	}
}
