package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Octogonapus/StorageRace/benchmark"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
providers:
  - name: aws
    type: s3
    options:
      bucket: race-bucket
      region: us-east-1
      secretAccessKey: ${STORAGERACE_TEST_SECRET}
  - name: local
    type: memory
race:
  objectSizeBytes: 4096
  objectCount: 8
  concurrency: 4
  partSizeMB: 16
  passTimeout: 2m
  progressInterval: 50ms
server:
  addr: "127.0.0.1:9000"
`

func TestLoad(t *testing.T) {
	t.Setenv("STORAGERACE_TEST_SECRET", "hunter2")
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Len(t, cfg.Providers, 2)
	aws, err := cfg.Provider("aws")
	require.NoError(t, err)
	assert.Equal(t, "s3", aws.Type)
	assert.Equal(t, "race-bucket", aws.Options["bucket"])
	assert.Equal(t, "hunter2", aws.Options["secretAccessKey"])

	assert.Equal(t, 2*time.Minute, cfg.Race.PassTimeout)
	assert.Equal(t, 50*time.Millisecond, cfg.Race.ProgressInterval)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, benchmark.BenchmarkRequest{
		ObjectSizeBytes: 4096,
		ObjectCount:     8,
		Concurrency:     4,
		KeyPrefix:       "storagerace/",
		PartSizeMB:      16,
	}, cfg.Request())

	_, err = cfg.Provider("gcs")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDefaults(t *testing.T) {
	cfg, err := Parse([]byte("providers: []"))
	require.NoError(t, err)
	assert.Equal(t, int64(1024*1024), cfg.Race.ObjectSizeBytes)
	assert.Equal(t, 100, cfg.Race.ObjectCount)
	assert.Equal(t, 16, cfg.Race.Concurrency)
	assert.Equal(t, benchmark.DefaultPassTimeout, cfg.Race.PassTimeout)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	req := cfg.Request()
	require.NoError(t, req.Validate())
}

func TestValidate(t *testing.T) {
	for name, raw := range map[string]string{
		"duplicate name": "providers: [{name: a, type: memory}, {name: a, type: s3}]",
		"unknown type":   "providers: [{name: a, type: ftp}]",
		"missing name":   "providers: [{type: memory}]",
		"negative":       "race: {passTimeout: -1s}",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(raw))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}

	_, err := Parse([]byte("providers: {"))
	assert.Error(t, err)
}
