// Package uploader moves a local file into the object store, choosing
// between a single-shot write and a concurrent multipart transfer based on
// file size. Part reads are positioned by explicit offset so concurrent
// tasks never share a file cursor.
package uploader

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/docker/go-units"

	"github.com/blobput/blobput/contenttype"
	"github.com/blobput/blobput/objectstore"
	"github.com/blobput/blobput/taskqueue"
)

// Config holds the transfer tunables. Values come from the caller, the
// uploader reads no environment on its own.
type Config struct {
	// Concurrency caps the number of part uploads in flight at once.
	Concurrency int
	// ChunkSizeBytes is the planned size of one part.
	ChunkSizeBytes int64
	// MultipartThresholdBytes is the file size at which uploads switch from
	// a single PutObject to a multipart session.
	MultipartThresholdBytes int64
}

// UploadParams describe a single upload.
type UploadParams struct {
	FilePath string
	Key      string
	// ContentType is inferred from the file extension when empty.
	ContentType     string
	ContentEncoding string
	CacheControl    string
}

// Result is the terminal artifact of a successful upload.
type Result struct {
	Key       string
	ETag      string
	Location  string
	Parts     int
	SizeBytes int64
}

// Uploader ...
type Uploader struct {
	store  objectstore.Client
	config Config
	logger log.Logger
}

// New ...
func New(store objectstore.Client, config Config, logger log.Logger) *Uploader {
	return &Uploader{
		store:  store,
		config: config,
		logger: logger,
	}
}

// Upload validates the source file and transfers it to the object store
// under params.Key. Failures surface with their original cause attached,
// nothing is retried here.
func (u *Uploader) Upload(ctx context.Context, params UploadParams) (*Result, error) {
	info, err := os.Stat(params.FilePath)
	if err != nil {
		return nil, &ValidationError{Err: fmt.Errorf("stat file: %w", err)}
	}
	if !info.Mode().IsRegular() {
		return nil, &ValidationError{Err: fmt.Errorf("%s is not a regular file", params.FilePath)}
	}
	if info.Size() == 0 {
		return nil, &ValidationError{Err: fmt.Errorf("%s is empty", params.FilePath)}
	}

	if params.ContentType == "" {
		contentType, err := contenttype.ForPath(params.FilePath)
		if err != nil {
			return nil, &ValidationError{Err: err}
		}
		params.ContentType = contentType
	}

	if info.Size() < u.config.MultipartThresholdBytes {
		return u.uploadSingleShot(ctx, params, info.Size())
	}
	return u.uploadMultipart(ctx, params, info.Size())
}

func (u *Uploader) uploadSingleShot(ctx context.Context, params UploadParams, size int64) (*Result, error) {
	u.logger.Debugf("Uploading %s in one shot (%s)", params.Key, units.HumanSize(float64(size)))

	file, err := os.Open(params.FilePath)
	if err != nil {
		return nil, &ValidationError{Err: fmt.Errorf("open file: %w", err)}
	}
	defer file.Close() //nolint:errcheck

	output, err := u.store.PutObject(ctx, objectstore.PutInput{
		Key:             params.Key,
		ContentType:     params.ContentType,
		ContentEncoding: params.ContentEncoding,
		CacheControl:    params.CacheControl,
		Body:            file,
		Length:          size,
	})
	if err != nil {
		return nil, fmt.Errorf("put object: %w", err)
	}

	return &Result{
		Key:       params.Key,
		ETag:      output.ETag,
		Location:  output.Location,
		Parts:     1,
		SizeBytes: size,
	}, nil
}

func (u *Uploader) uploadMultipart(ctx context.Context, params UploadParams, size int64) (*Result, error) {
	parts, err := PlanParts(size, u.config.ChunkSizeBytes)
	if err != nil {
		return nil, fmt.Errorf("plan parts: %w", err)
	}

	file, err := os.Open(params.FilePath)
	if err != nil {
		return nil, &ValidationError{Err: fmt.Errorf("open file: %w", err)}
	}
	defer file.Close() //nolint:errcheck

	uploadID, err := u.store.CreateMultipartUpload(ctx, objectstore.CreateInput{
		Key:             params.Key,
		ContentType:     params.ContentType,
		ContentEncoding: params.ContentEncoding,
		CacheControl:    params.CacheControl,
	})
	if err != nil {
		return nil, &SessionInitError{Err: err}
	}
	u.logger.Debugf("Multipart session %s: %d parts of up to %s, concurrency %d",
		uploadID, len(parts), units.HumanSize(float64(u.config.ChunkSizeBytes)), u.config.Concurrency)

	queue := taskqueue.New[objectstore.CompletedPart](u.config.Concurrency)
	for _, part := range parts {
		part := part
		if err := queue.Add(func(taskCtx context.Context) (objectstore.CompletedPart, error) {
			return u.uploadPart(taskCtx, file, params.Key, uploadID, part, len(parts))
		}); err != nil {
			return nil, fmt.Errorf("queue part %d: %w", part.Number, err)
		}
	}

	completed, err := queue.Execute(ctx)
	if err != nil {
		u.abort(ctx, params.Key, uploadID)
		return nil, err
	}

	// Submission order already matches part numbers, the completion API
	// requires ascending order regardless.
	sort.Slice(completed, func(i, j int) bool {
		return completed[i].PartNumber < completed[j].PartNumber
	})

	output, err := u.store.CompleteMultipartUpload(ctx, objectstore.CompleteInput{
		Key:      params.Key,
		UploadID: uploadID,
		Parts:    completed,
	})
	if err != nil {
		u.abort(ctx, params.Key, uploadID)
		return nil, &CompletionError{Err: err}
	}

	return &Result{
		Key:       params.Key,
		ETag:      output.ETag,
		Location:  output.Location,
		Parts:     len(completed),
		SizeBytes: size,
	}, nil
}

func (u *Uploader) uploadPart(ctx context.Context, file *os.File, key, uploadID string, part Part, totalParts int) (objectstore.CompletedPart, error) {
	u.logger.Debugf("Uploading part %d/%d (%s at offset %d)",
		part.Number, totalParts, units.HumanSize(float64(part.Length)), part.Offset)

	// SectionReader reads via ReadAt, which is safe on a shared *os.File.
	section := io.NewSectionReader(file, part.Offset, part.Length)

	etag, err := u.store.UploadPart(ctx, objectstore.PartInput{
		Key:        key,
		UploadID:   uploadID,
		PartNumber: part.Number,
		Body:       section,
		Length:     part.Length,
	})
	if err != nil {
		return objectstore.CompletedPart{}, &PartUploadError{PartNumber: part.Number, Err: err}
	}

	return objectstore.CompletedPart{PartNumber: part.Number, ETag: etag}, nil
}

// abort is best effort: a failed session would otherwise keep its uploaded
// parts around as billable storage. The original failure is what the caller
// sees either way.
func (u *Uploader) abort(ctx context.Context, key, uploadID string) {
	abortCtx := context.WithoutCancel(ctx)
	if err := u.store.AbortMultipartUpload(abortCtx, key, uploadID); err != nil {
		u.logger.Warnf("Abort multipart upload %s: %s", uploadID, err)
	}
}
