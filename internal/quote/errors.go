package quote

import (
	"errors"
	"fmt"
)

var (
	// ErrDiscovery marks a fatal failure to determine the upper bound.
	ErrDiscovery = errors.New("discovery failed")
	// ErrExtraction marks markup that could not be turned into a Record.
	ErrExtraction = errors.New("extraction failed")
	// ErrWatermarkNotFound is returned before the first completed run.
	ErrWatermarkNotFound = errors.New("watermark not found")
	// ErrInvalidID rejects identifiers that collide with the watermark key space.
	ErrInvalidID = errors.New("quote id must be > 0")
)

// DiscoveryError wraps the cause of a failed landing page lookup.
type DiscoveryError struct {
	Err error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("discover upper bound: %v", e.Err)
}

func (e *DiscoveryError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrDiscovery) match any DiscoveryError.
func (e *DiscoveryError) Is(target error) bool { return target == ErrDiscovery }

// TransportError is a per-identifier fetch failure other than a redirect.
type TransportError struct {
	ID         int64
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch quote %d: status %d: %v", e.ID, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch quote %d: %v", e.ID, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StoreError reports that at least one write failed during a run.
type StoreError struct {
	Failed int
	Err    error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %d write(s) failed: %v", e.Failed, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
