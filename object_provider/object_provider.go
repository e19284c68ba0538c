package objectprovider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	transferstrategy "github.com/Octogonapus/StorageRace/transfer_strategy"
	"github.com/mitchellh/mapstructure"
)

var ErrObjectNotFound = errors.New("object not found")

type ObjectSpec struct {
	Key       string
	SizeBytes int64
}

// An ObjectProvider is one storage backend taking part in a race. Implementations must be safe
// for concurrent use.
type ObjectProvider interface {
	// A human-friendly name used in results and progress events.
	Name() string

	// Write the object. The strategy says whether the caller wants a single request or a
	// multi-part upload with the given part size; how parts are sent is up to the provider.
	PutObject(ctx context.Context, spec *ObjectSpec, body io.Reader, strategy transferstrategy.Strategy) error

	// Open the object for reading. The caller drains and closes the body.
	GetObject(ctx context.Context, key string) (io.ReadCloser, error)
}

// A Cleaner can delete objects created by a race. Races never clean up after themselves.
type Cleaner interface {
	DeleteObjects(ctx context.Context, keys []string) error
}

type ProviderFactory func(ctx context.Context, name string, options map[string]any) (ObjectProvider, error)

var providers map[string]ProviderFactory

// All provider kinds register themselves at package load time so configuration can refer to
// them by kind.
func RegisterProvider(kind string, f ProviderFactory) {
	if providers == nil {
		providers = map[string]ProviderFactory{}
	}
	providers[kind] = f
}

func NewObjectProvider(ctx context.Context, kind string, name string, options map[string]any) (ObjectProvider, error) {
	factory, ok := providers[kind]
	if !ok {
		return nil, fmt.Errorf("unknown provider type: %s", kind)
	}
	p, err := factory(ctx, name, options)
	if err != nil {
		return nil, fmt.Errorf("creating %s provider %q failed: %w", kind, name, err)
	}
	return p, nil
}

func IsKnownProvider(kind string) bool {
	_, ok := providers[kind]
	return ok
}

func ExplainProviders() string {
	kinds := make([]string, 0, len(providers))
	for kind := range providers {
		kinds = append(kinds, "\""+kind+"\"")
	}
	sort.Strings(kinds)
	return strings.Join(kinds, ", ")
}

func decodeOptions(options map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	err = decoder.Decode(options)
	if err != nil {
		return fmt.Errorf("invalid provider options: %w", err)
	}
	return nil
}
