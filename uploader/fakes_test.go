package uploader

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/blobput/blobput/objectstore"
)

// fakeStore records every object store call and serves canned responses.
// Part bodies are read in full so tests can check which bytes ended up in
// which part.
type fakeStore struct {
	mu sync.Mutex

	uploadID    string
	putErr      error
	createErr   error
	completeErr error
	partErr     map[int32]error

	putInputs     []objectstore.PutInput
	putBodies     [][]byte
	createInputs  []objectstore.CreateInput
	partBodies    map[int32][]byte
	completeInput *objectstore.CompleteInput
	abortedIDs    []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		uploadID:   "fake-upload-id",
		partErr:    map[int32]error{},
		partBodies: map[int32][]byte{},
	}
}

func (s *fakeStore) PutObject(ctx context.Context, input objectstore.PutInput) (objectstore.PutOutput, error) {
	body, err := io.ReadAll(input.Body)
	if err != nil {
		return objectstore.PutOutput{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.putInputs = append(s.putInputs, input)
	s.putBodies = append(s.putBodies, body)

	if s.putErr != nil {
		return objectstore.PutOutput{}, s.putErr
	}
	return objectstore.PutOutput{
		ETag:     "put-etag",
		Location: "https://fake-bucket.example.com/" + input.Key,
	}, nil
}

func (s *fakeStore) CreateMultipartUpload(ctx context.Context, input objectstore.CreateInput) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createInputs = append(s.createInputs, input)

	if s.createErr != nil {
		return "", s.createErr
	}
	return s.uploadID, nil
}

func (s *fakeStore) UploadPart(ctx context.Context, input objectstore.PartInput) (string, error) {
	body, err := io.ReadAll(input.Body)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.partErr[input.PartNumber]; err != nil {
		return "", err
	}
	s.partBodies[input.PartNumber] = body
	return fmt.Sprintf("etag-%d", input.PartNumber), nil
}

func (s *fakeStore) CompleteMultipartUpload(ctx context.Context, input objectstore.CompleteInput) (objectstore.CompleteOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completeInput = &input

	if s.completeErr != nil {
		return objectstore.CompleteOutput{}, s.completeErr
	}
	return objectstore.CompleteOutput{
		ETag:     "complete-etag",
		Location: "https://fake-bucket.example.com/" + input.Key,
	}, nil
}

func (s *fakeStore) AbortMultipartUpload(ctx context.Context, key, uploadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.abortedIDs = append(s.abortedIDs, uploadID)
	return nil
}
