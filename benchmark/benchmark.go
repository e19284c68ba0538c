package benchmark

import (
	"errors"
	"fmt"
	"time"

	"github.com/Octogonapus/StorageRace/report"
)

var ErrInvalidRequest = errors.New("invalid benchmark request")

// BenchmarkRequest describes one race. It is copied into each runner and never changed once
// the race starts.
type BenchmarkRequest struct {
	ObjectSizeBytes int64
	ObjectCount     int
	Concurrency     int
	KeyPrefix       string
	PartSizeMB      int // 0 means no hint
}

func (r *BenchmarkRequest) Validate() error {
	if r.ObjectSizeBytes <= 0 {
		return fmt.Errorf("%w: object size must be positive, got %d", ErrInvalidRequest, r.ObjectSizeBytes)
	}
	if r.ObjectCount <= 0 {
		return fmt.Errorf("%w: object count must be positive, got %d", ErrInvalidRequest, r.ObjectCount)
	}
	if r.Concurrency <= 0 {
		return fmt.Errorf("%w: concurrency must be positive, got %d", ErrInvalidRequest, r.Concurrency)
	}
	if r.PartSizeMB < 0 {
		return fmt.Errorf("%w: part size must not be negative, got %d", ErrInvalidRequest, r.PartSizeMB)
	}
	return nil
}

// TransferError is the failure of a single object's write or read.
type TransferError struct {
	Provider  string
	Operation report.Operation
	Key       string
	Err       error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("%s %s of %s failed: %v", e.Provider, e.Operation, e.Key, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// PassError means a pass was aborted because at least one transfer failed or the pass timed out.
type PassError struct {
	Provider  string
	Operation report.Operation
	Failed    int
	Elapsed   time.Duration
	Err       error
}

func (e *PassError) Error() string {
	return fmt.Sprintf("%s %s pass failed after %s (%d failed transfers): %v",
		e.Provider, e.Operation, e.Elapsed.Round(time.Millisecond), e.Failed, e.Err)
}

func (e *PassError) Unwrap() error {
	return e.Err
}
