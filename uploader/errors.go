package uploader

import "fmt"

// ValidationError reports a problem with the local file or its metadata,
// detected before any remote call is made.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validate upload: %s", e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// SessionInitError means the remote multipart session could not be created.
// Nothing exists remotely at this point, so there is nothing to clean up.
type SessionInitError struct {
	Err error
}

func (e *SessionInitError) Error() string {
	return fmt.Sprintf("initiate multipart upload: %s", e.Err)
}

func (e *SessionInitError) Unwrap() error {
	return e.Err
}

// PartUploadError carries the first part failure observed during a
// multipart transfer. Parts still in flight at that moment finished, but
// their results were discarded.
type PartUploadError struct {
	PartNumber int32
	Err        error
}

func (e *PartUploadError) Error() string {
	return fmt.Sprintf("upload part %d: %s", e.PartNumber, e.Err)
}

func (e *PartUploadError) Unwrap() error {
	return e.Err
}

// CompletionError means every part uploaded fine but the session could not
// be finalized.
type CompletionError struct {
	Err error
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("complete multipart upload: %s", e.Err)
}

func (e *CompletionError) Unwrap() error {
	return e.Err
}
