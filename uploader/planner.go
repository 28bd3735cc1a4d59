package uploader

import "fmt"

// Part describes one contiguous byte range of the source file, uploaded as
// a single unit of a multipart transfer. Part numbers start at 1 and follow
// file order.
type Part struct {
	Number int32
	Offset int64
	Length int64
}

// PlanParts splits a file of fileSize bytes into parts of at most chunkSize
// bytes. The parts tile the file front to back with no gaps or overlaps,
// the last part carrying the remainder. The result is deterministic for
// identical inputs.
func PlanParts(fileSize, chunkSize int64) ([]Part, error) {
	if fileSize <= 0 {
		return nil, fmt.Errorf("file size must be positive, got %d", fileSize)
	}
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}

	totalParts := (fileSize + chunkSize - 1) / chunkSize
	parts := make([]Part, 0, totalParts)

	var offset int64
	for number := int32(1); offset < fileSize; number++ {
		length := chunkSize
		if remaining := fileSize - offset; remaining < chunkSize {
			length = remaining
		}
		parts = append(parts, Part{Number: number, Offset: offset, Length: length})
		offset += length
	}

	return parts, nil
}
