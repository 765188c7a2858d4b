// Package blobstore stores clinic assets (doctor signatures and clinic
// logos). Only object paths are persisted by callers; display URLs are
// signed on demand and expire after SignedURLTTL.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrObjectNotFound     = errors.New("object not found")
	ErrObjectExists       = errors.New("object already exists")
	ErrFileTooLarge       = errors.New("file exceeds maximum allowed size")
	ErrInvalidContentType = errors.New("content type is not allowed")
	ErrInvalidSignature   = errors.New("invalid or expired signature")
)

// SignedURLTTL is the lifetime of every signed URL.
const SignedURLTTL = time.Hour

// MaxImageSize is the largest accepted upload (5 MB).
const MaxImageSize = 5 * 1024 * 1024

// AllowedImageTypes maps accepted upload MIME types to file extensions.
var AllowedImageTypes = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/webp": "webp",
	"image/gif":  "gif",
}

// Kind is the asset folder under a tenant.
type Kind string

const (
	KindSignature Kind = "signatures"
	KindLogo      Kind = "logos"
)

// ObjectPath builds {tenant_id}/{kind}/{unix_millis}.{ext}.
func ObjectPath(tenantID uuid.UUID, kind Kind, at time.Time, ext string) string {
	return fmt.Sprintf("%s/%s/%d.%s", tenantID, kind, at.UnixMilli(), ext)
}

// TenantOf returns the tenant folder of an object path.
func TenantOf(objectPath string) (uuid.UUID, bool) {
	head, _, ok := strings.Cut(objectPath, "/")
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(head)
	return id, err == nil
}

// Extension picks the file extension for an upload: the declared content
// type wins, then the file name.
func Extension(contentType, fileName string) (string, error) {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		if ext, ok := AllowedImageTypes[mt]; ok {
			return ext, nil
		}
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(fileName), "."))
	for mt, e := range AllowedImageTypes {
		if ext == e || (ext == "jpeg" && mt == "image/jpeg") {
			return e, nil
		}
	}
	return "", ErrInvalidContentType
}

// Object is an upload request.
type Object struct {
	Path        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Store is an object storage backend.
type Store interface {
	// Put writes obj. Without upsert an existing object yields ErrObjectExists.
	Put(ctx context.Context, obj Object, upsert bool) error
	Delete(ctx context.Context, objectPath string) error
	// SignedURL returns a URL that grants read access until ttl elapses.
	SignedURL(ctx context.Context, objectPath string, ttl time.Duration) (string, error)
}

// LegacyBucketSegment marks public URLs persisted before paths were stored.
const LegacyBucketSegment = "/clinic-assets/"

// DisplayURL turns a stored reference into a URL for display. Empty input
// yields "". Stored http(s) URLs under the assets bucket are re-signed by
// their object path; any other URL is returned unchanged.
func DisplayURL(ctx context.Context, store Store, stored string) (string, error) {
	if stored == "" {
		return "", nil
	}
	if strings.HasPrefix(stored, "http://") || strings.HasPrefix(stored, "https://") {
		i := strings.Index(stored, LegacyBucketSegment)
		if i < 0 {
			return stored, nil
		}
		stored = stored[i+len(LegacyBucketSegment):]
	}
	return store.SignedURL(ctx, stored, SignedURLTTL)
}
