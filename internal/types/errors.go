package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	ErrInvalidURL = errors.New("invalid URL")
	ErrNotFound   = errors.New("fabric not found")
)

// FetchError wraps errors that occur while fetching a page or image.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
	Retryable  bool
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch error for %s (status %d): %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch error for %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) IsRetryable() bool { return e.Retryable }

// ExtractError reports that a mandatory field could not be extracted.
// The only mandatory field is the product name; every other field
// degrades to its zero value.
type ExtractError struct {
	URL   string
	Field string
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("extraction failed for %s: no %s found", e.URL, e.Field)
}

// ImageError wraps a failed image download. It is soft: the owning
// record proceeds with fewer images.
type ImageError struct {
	URL string
	Err error
}

func (e *ImageError) Error() string {
	return fmt.Sprintf("image download failed for %s: %v", e.URL, e.Err)
}

func (e *ImageError) Unwrap() error { return e.Err }

// StoreError wraps a catalog persistence failure.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store error (%s): %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
