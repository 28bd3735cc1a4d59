// Package objectstore abstracts the remote object store consumed by the
// uploader: whole-object writes plus the multipart session commands.
package objectstore

import (
	"context"
	"io"
)

// CompletedPart identifies one successfully uploaded part of a multipart
// session.
type CompletedPart struct {
	PartNumber int32
	ETag       string
}

// PutInput ...
type PutInput struct {
	Key             string
	ContentType     string
	ContentEncoding string
	CacheControl    string
	Body            io.Reader
	Length          int64
}

// PutOutput ...
type PutOutput struct {
	ETag     string
	Location string
}

// CreateInput ...
type CreateInput struct {
	Key             string
	ContentType     string
	ContentEncoding string
	CacheControl    string
}

// PartInput ...
type PartInput struct {
	Key        string
	UploadID   string
	PartNumber int32
	Body       io.Reader
	Length     int64
}

// CompleteInput finalizes a multipart session. Parts must be listed in
// ascending part number order.
type CompleteInput struct {
	Key      string
	UploadID string
	Parts    []CompletedPart
}

// CompleteOutput ...
type CompleteOutput struct {
	ETag     string
	Location string
}

// Client is the object store capability the uploader runs against.
type Client interface {
	PutObject(ctx context.Context, input PutInput) (PutOutput, error)
	CreateMultipartUpload(ctx context.Context, input CreateInput) (string, error)
	UploadPart(ctx context.Context, input PartInput) (string, error)
	CompleteMultipartUpload(ctx context.Context, input CompleteInput) (CompleteOutput, error)
	AbortMultipartUpload(ctx context.Context, key, uploadID string) error
}
