package pipeline

import "fmt"

// SetupError is a whole-run precondition failure: the listing could not be
// fetched or the destination directory could not be created. Unlike per-title
// failures, it aborts the run before any batch work starts.
type SetupError struct {
	Stage string // "listing" or "destination"
	Err   error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("run setup failed during %s: %v", e.Stage, e.Err)
}

func (e *SetupError) Unwrap() error {
	return e.Err
}

// ListingError carries the HTTP detail of a failed listing fetch.
type ListingError struct {
	URL        string
	StatusCode int // 0 for transport-level failures
	Err        error
}

func (e *ListingError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("listing fetch of %s returned HTTP %d", e.URL, e.StatusCode)
	}

	return fmt.Sprintf("listing fetch of %s failed: %v", e.URL, e.Err)
}

func (e *ListingError) Unwrap() error {
	return e.Err
}
