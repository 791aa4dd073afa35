package hash

import "errors"

// Sentinel errors returned by this package, matching spec.md §4.1's error
// taxonomy for the content hasher.
var (
	ErrFileNotFound        = errors.New("file not found")
	ErrIO                  = errors.New("i/o error")
	ErrHashCapacityExceeded = errors.New("hash memo capacity exceeded")
)
