package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// FileBlobStore writes media payloads under a local directory, one file per
// blob, named by a generated id.
type FileBlobStore struct {
	dir string
}

// NewFileBlobStore creates the media directory if it does not exist.
func NewFileBlobStore(dir string) (*FileBlobStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media dir: %w", err)
	}
	return &FileBlobStore{dir: dir}, nil
}

// Save writes the payload and returns the reference stored in the message
// row. The reference is relative to the media dir so the serving layer can
// prefix it however it likes.
func (b *FileBlobStore) Save(kind string, data []byte, mimeType string) (string, error) {
	name := fmt.Sprintf("%s_%s%s", kind, uuid.NewString(), extension(mimeType))
	if err := os.WriteFile(filepath.Join(b.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("failed to save %s blob: %w", kind, err)
	}
	return name, nil
}

func extension(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "audio/aac":
		return ".aac"
	case "audio/mpeg":
		return ".mp3"
	case "audio/ogg":
		return ".ogg"
	case "audio/wav":
		return ".wav"
	default:
		return ".bin"
	}
}
