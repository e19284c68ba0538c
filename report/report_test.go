package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pass(provider string, op Operation, mbps float64) PassResult {
	return PassResult{Provider: provider, Operation: op, Metrics: PassMetrics{ThroughputMBps: mbps}}
}

func TestRaceResult(t *testing.T) {
	r := NewRaceResult("id", nil,
		pass("a", Upload, 10), pass("b", Upload, 20),
		pass("a", Download, 30), pass("b", Download, 30))

	a, b := r.Providers()
	assert.Equal(t, "a", a)
	assert.Equal(t, "b", b)
	assert.Equal(t, "b", r.Winner(Upload))
	// ties go to the first provider
	assert.Equal(t, "a", r.Winner(Download))

	p, err := r.Pass("b", Download)
	require.NoError(t, err)
	assert.Same(t, &r.Passes[3], p)

	_, err = r.Pass("c", Upload)
	assert.Error(t, err)
}
