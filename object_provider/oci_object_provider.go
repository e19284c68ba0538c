package objectprovider

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	transferstrategy "github.com/Octogonapus/StorageRace/transfer_strategy"
	"github.com/alitto/pond"
	"github.com/oracle/oci-go-sdk/v65/common"
	"github.com/oracle/oci-go-sdk/v65/objectstorage"
	"github.com/oracle/oci-go-sdk/v65/objectstorage/transfer"
)

type ociObjectProvider struct {
	name      string
	input     *OCIObjectProviderInput
	client    objectstorage.ObjectStorageClient
	uploader  *transfer.UploadManager
	namespace string
}

// Oracle Cloud Infrastructure Object Storage. Namespace is looked up when empty.
type OCIObjectProviderInput struct {
	Bucket          string `mapstructure:"bucket"`
	Namespace       string `mapstructure:"namespace"`
	ConfigFile      string `mapstructure:"configFile"`
	Profile         string `mapstructure:"profile"`
	Host            string `mapstructure:"host"`
	PartConcurrency int    `mapstructure:"partConcurrency"`
	MaxConnsPerHost int    `mapstructure:"maxConnsPerHost"`
}

func init() {
	RegisterProvider("oci", func(ctx context.Context, name string, options map[string]any) (ObjectProvider, error) {
		input := &OCIObjectProviderInput{}
		err := decodeOptions(options, input)
		if err != nil {
			return nil, fmt.Errorf("can't convert options to OCIObjectProviderInput: %w", err)
		}
		return NewOCIObjectProvider(ctx, name, input)
	})
}

func NewOCIObjectProvider(ctx context.Context, name string, input *OCIObjectProviderInput) (ObjectProvider, error) {
	if input.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	if input.PartConcurrency <= 0 {
		input.PartConcurrency = defaultPartConcurrency
	}
	if input.MaxConnsPerHost <= 0 {
		input.MaxConnsPerHost = defaultMaxConnsPerHost
	}

	var provider common.ConfigurationProvider
	if input.ConfigFile != "" {
		profile := input.Profile
		if profile == "" {
			profile = "DEFAULT"
		}
		var err error
		provider, err = common.ConfigurationProviderFromFile(expandHome(input.ConfigFile), profile)
		if err != nil {
			return nil, fmt.Errorf("failed to load OCI config from file: %w", err)
		}
	} else {
		provider = common.DefaultConfigProvider()
	}

	client, err := objectstorage.NewObjectStorageClientWithConfigurationProvider(provider)
	if err != nil {
		return nil, fmt.Errorf("creating object storage client failed: %w", err)
	}
	httpClient, err := newHTTPClient(input.MaxConnsPerHost)
	if err != nil {
		return nil, err
	}
	client.HTTPClient = httpClient
	if input.Host != "" {
		slog.Debug("using custom OCI host", slog.String("provider", name), slog.String("host", input.Host))
		client.Host = input.Host
	}

	namespace := input.Namespace
	if namespace == "" {
		resp, err := client.GetNamespace(ctx, objectstorage.GetNamespaceRequest{})
		if err != nil {
			return nil, fmt.Errorf("fetching namespace failed: %w", err)
		}
		namespace = *resp.Value
		slog.Debug("fetched OCI namespace", slog.String("provider", name), slog.String("namespace", namespace))
	}

	return &ociObjectProvider{
		name:      name,
		input:     input,
		client:    client,
		uploader:  transfer.NewUploadManager(),
		namespace: namespace,
	}, nil
}

func (o *ociObjectProvider) Name() string {
	return o.name
}

func (o *ociObjectProvider) PutObject(ctx context.Context, spec *ObjectSpec, body io.Reader, strategy transferstrategy.Strategy) error {
	if strategy.Mode == transferstrategy.SingleShot {
		_, err := o.client.PutObject(ctx, objectstorage.PutObjectRequest{
			NamespaceName: common.String(o.namespace),
			BucketName:    common.String(o.input.Bucket),
			ObjectName:    common.String(spec.Key),
			ContentLength: common.Int64(spec.SizeBytes),
			PutObjectBody: io.NopCloser(body),
		})
		if err != nil {
			return fmt.Errorf("PutObject failed: %w", err)
		}
		return nil
	}

	_, err := o.uploader.UploadStream(ctx, transfer.UploadStreamRequest{
		UploadRequest: transfer.UploadRequest{
			NamespaceName:       common.String(o.namespace),
			BucketName:          common.String(o.input.Bucket),
			ObjectName:          common.String(spec.Key),
			PartSize:            common.Int64(strategy.ChunkSizeBytes),
			NumberOfGoroutines:  common.Int(o.input.PartConcurrency),
			ObjectStorageClient: &o.client,
		},
		StreamReader: body,
	})
	if err != nil {
		return fmt.Errorf("multipart upload failed: %w", err)
	}
	return nil
}

func (o *ociObjectProvider) GetObject(ctx context.Context, key string) (io.ReadCloser, error) {
	resp, err := o.client.GetObject(ctx, objectstorage.GetObjectRequest{
		NamespaceName: common.String(o.namespace),
		BucketName:    common.String(o.input.Bucket),
		ObjectName:    common.String(key),
	})
	if err != nil {
		if serviceErr, ok := common.IsServiceError(err); ok && serviceErr.GetHTTPStatusCode() == 404 {
			return nil, fmt.Errorf("%s: %w", key, ErrObjectNotFound)
		}
		return nil, fmt.Errorf("GetObject failed: %w", err)
	}
	return resp.Content, nil
}

func (o *ociObjectProvider) DeleteObjects(ctx context.Context, keys []string) error {
	errChan := make(chan error, len(keys))
	pool := pond.New(deleteConcurrency, 0, pond.MinWorkers(deleteConcurrency))
	for _, key := range keys {
		pool.Submit(func() {
			_, err := o.client.DeleteObject(ctx, objectstorage.DeleteObjectRequest{
				NamespaceName: common.String(o.namespace),
				BucketName:    common.String(o.input.Bucket),
				ObjectName:    common.String(key),
			})
			if err != nil {
				slog.Error("failed to delete OCI object", slog.String("key", key), slog.String("error", err.Error()))
				errChan <- err
			}
		})
	}
	pool.StopAndWait()

	select {
	case err := <-errChan:
		return fmt.Errorf("some OCI objects failed to delete: %w", err)
	default:
		slog.Info("deleted objects", slog.String("provider", o.name), slog.String("bucket", o.input.Bucket), slog.Int("count", len(keys)))
		return nil
	}
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
