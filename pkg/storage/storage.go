package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"go.uber.org/zap"
)

const (
	// MaxMediaFileSize is the maximum accepted upload size (5MB).
	MaxMediaFileSize = 5 * 1024 * 1024
	// FolderMedia is the key prefix for activity media.
	FolderMedia = "media"
)

// ErrObjectNotFound is returned by Open and Delete for missing keys.
var ErrObjectNotFound = errors.New("object not found")

// AllowedImageTypes maps accepted MIME types to the extension objects are stored with.
var AllowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// ObjectStore stores media blobs by key.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	// Open returns the object body and its content type. Caller must close the body.
	Open(ctx context.Context, key string) (io.ReadCloser, string, error)
	Delete(ctx context.Context, key string) error
}

// DetectImageType sniffs the first bytes of an upload and returns the MIME type
// and storage extension, or ok=false when it is not an accepted image.
func DetectImageType(head []byte) (contentType, ext string, ok bool) {
	ct := http.DetectContentType(head)
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	ext, ok = AllowedImageTypes[ct]
	return ct, ext, ok
}

// MediaKey returns the object key for a media item: media/{id}{ext}.
func MediaKey(id, ext string) string {
	return path.Join(FolderMedia, id+ext)
}

// Backends accepted by Open.
const (
	BackendLocal = "local"
	BackendS3    = "s3"
)

// Open returns the object store for backend: a Local rooted at dir or an S3
// bucket described by s3cfg.
func Open(ctx context.Context, backend, dir string, s3cfg S3Config, logger *zap.Logger) (ObjectStore, error) {
	switch backend {
	case BackendLocal, "":
		return NewLocal(dir)
	case BackendS3:
		return NewS3(ctx, s3cfg, logger)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}
