// Package compression pre-compresses a source file with zstd before upload.
package compression

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/docker/go-units"
	"github.com/klauspost/compress/zstd"
)

// CompressFile writes a zstd-compressed copy of path into a temporary file
// and returns its location. The caller owns the returned file and should
// remove it after the upload.
func CompressFile(path string, logger log.Logger) (string, error) {
	source, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open source file: %w", err)
	}
	defer source.Close() //nolint:errcheck

	target, err := os.CreateTemp("", filepath.Base(path)+"-*.zst")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	zstdWriter, err := zstd.NewWriter(target)
	if err != nil {
		target.Close()           //nolint:errcheck
		os.Remove(target.Name()) //nolint:errcheck
		return "", fmt.Errorf("create zstd writer: %w", err)
	}

	written, err := io.Copy(zstdWriter, source)
	if err == nil {
		err = zstdWriter.Close()
	} else {
		zstdWriter.Close() //nolint:errcheck
	}
	if closeErr := target.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(target.Name()) //nolint:errcheck
		return "", fmt.Errorf("compress %s: %w", path, err)
	}

	info, err := os.Stat(target.Name())
	if err != nil {
		os.Remove(target.Name()) //nolint:errcheck
		return "", fmt.Errorf("stat compressed file: %w", err)
	}
	logger.Debugf("Compressed %s: %s -> %s", path,
		units.HumanSize(float64(written)), units.HumanSize(float64(info.Size())))

	return target.Name(), nil
}
