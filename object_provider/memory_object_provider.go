package objectprovider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	transferstrategy "github.com/Octogonapus/StorageRace/transfer_strategy"
)

type memoryObject struct {
	data     []byte
	strategy transferstrategy.Strategy
}

// MemoryObjectProvider keeps objects in process memory. Useful for dry runs and tests.
type MemoryObjectProvider struct {
	name  string
	input *MemoryObjectProviderInput

	mu      sync.RWMutex
	objects map[string]*memoryObject
	reads   map[string]int
}

type MemoryObjectProviderInput struct {
	// Latency is added to every put and get.
	Latency time.Duration `mapstructure:"latency"`
}

func init() {
	RegisterProvider("memory", func(ctx context.Context, name string, options map[string]any) (ObjectProvider, error) {
		input := &MemoryObjectProviderInput{}
		err := decodeOptions(options, input)
		if err != nil {
			return nil, fmt.Errorf("can't convert options to MemoryObjectProviderInput: %w", err)
		}
		return NewMemoryObjectProvider(name, input), nil
	})
}

func NewMemoryObjectProvider(name string, input *MemoryObjectProviderInput) *MemoryObjectProvider {
	if input == nil {
		input = &MemoryObjectProviderInput{}
	}
	return &MemoryObjectProvider{
		name:    name,
		input:   input,
		objects: map[string]*memoryObject{},
		reads:   map[string]int{},
	}
}

func (o *MemoryObjectProvider) Name() string {
	return o.name
}

func (o *MemoryObjectProvider) PutObject(ctx context.Context, spec *ObjectSpec, body io.Reader, strategy transferstrategy.Strategy) error {
	err := o.wait(ctx)
	if err != nil {
		return err
	}
	buf := bytes.NewBuffer(make([]byte, 0, spec.SizeBytes))
	_, err = buf.ReadFrom(body)
	if err != nil {
		return fmt.Errorf("reading object body failed: %w", err)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.objects[spec.Key] = &memoryObject{data: buf.Bytes(), strategy: strategy}
	return nil
}

func (o *MemoryObjectProvider) GetObject(ctx context.Context, key string) (io.ReadCloser, error) {
	err := o.wait(ctx)
	if err != nil {
		return nil, err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	obj, ok := o.objects[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, ErrObjectNotFound)
	}
	o.reads[key]++
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

func (o *MemoryObjectProvider) DeleteObjects(ctx context.Context, keys []string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, key := range keys {
		delete(o.objects, key)
	}
	return nil
}

// Keys lists stored objects in lexical order.
func (o *MemoryObjectProvider) Keys() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	keys := make([]string, 0, len(o.objects))
	for key := range o.objects {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (o *MemoryObjectProvider) Size(key string) (int, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	obj, ok := o.objects[key]
	if !ok {
		return 0, false
	}
	return len(obj.data), true
}

// Strategy returns the transfer strategy the object was written with.
func (o *MemoryObjectProvider) Strategy(key string) (transferstrategy.Strategy, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	obj, ok := o.objects[key]
	if !ok {
		return transferstrategy.Strategy{}, false
	}
	return obj.strategy, true
}

// Reads returns how many times each key was opened.
func (o *MemoryObjectProvider) Reads() map[string]int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make(map[string]int, len(o.reads))
	for k, v := range o.reads {
		out[k] = v
	}
	return out
}

func (o *MemoryObjectProvider) wait(ctx context.Context) error {
	if o.input.Latency <= 0 {
		return ctx.Err()
	}
	select {
	case <-time.After(o.input.Latency):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
