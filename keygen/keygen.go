// Package keygen generates random object keys for uploaded files.
package keygen

import (
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// RandomKey returns a fresh random object key carrying over the source
// file's extension, so the remote object keeps a recognizable type.
func RandomKey(path string) string {
	return uuid.NewString() + strings.ToLower(filepath.Ext(path))
}
