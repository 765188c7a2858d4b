package blobstore

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

type storedObject struct {
	contentType string
	content     []byte
	hash        string
	createdAt   time.Time
}

// MemoryStore is a thread-safe in-memory Store for development and tests.
// Its signed URLs point at ServeSigned, mounted under /files/.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]*storedObject
	baseURL string
	key     []byte
	now     func() time.Time
}

// NewMemoryStore returns a store whose URLs are rooted at baseURL and
// signed with key.
func NewMemoryStore(baseURL string, key []byte) *MemoryStore {
	return &MemoryStore{
		objects: make(map[string]*storedObject),
		baseURL: strings.TrimRight(baseURL, "/"),
		key:     key,
		now:     time.Now,
	}
}

func (s *MemoryStore) Put(_ context.Context, obj Object, upsert bool) error {
	data, err := io.ReadAll(io.LimitReader(obj.Body, MaxImageSize+1))
	if err != nil {
		return fmt.Errorf("reading content: %w", err)
	}
	if int64(len(data)) > MaxImageSize {
		return ErrFileTooLarge
	}

	h := sha256.Sum256(data)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.objects[obj.Path]; exists && !upsert {
		return ErrObjectExists
	}
	s.objects[obj.Path] = &storedObject{
		contentType: obj.ContentType,
		content:     data,
		hash:        fmt.Sprintf("%x", h),
		createdAt:   s.now().UTC(),
	}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, objectPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.objects[objectPath]; !ok {
		return ErrObjectNotFound
	}
	delete(s.objects, objectPath)
	return nil
}

func (s *MemoryStore) SignedURL(_ context.Context, objectPath string, ttl time.Duration) (string, error) {
	s.mu.RLock()
	_, ok := s.objects[objectPath]
	s.mu.RUnlock()
	if !ok {
		return "", ErrObjectNotFound
	}

	expires := s.now().Add(ttl).Unix()
	q := url.Values{}
	q.Set("expires", strconv.FormatInt(expires, 10))
	q.Set("sig", s.sign(objectPath, expires))
	return s.baseURL + "/files/" + objectPath + "?" + q.Encode(), nil
}

func (s *MemoryStore) sign(objectPath string, expires int64) string {
	mac := hmac.New(sha256.New, s.key)
	fmt.Fprintf(mac, "%s\n%d", objectPath, expires)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a signature produced by SignedURL.
func (s *MemoryStore) Verify(objectPath, expires, sig string) error {
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil || s.now().Unix() >= exp {
		return ErrInvalidSignature
	}
	want := s.sign(objectPath, exp)
	if !hmac.Equal([]byte(want), []byte(sig)) {
		return ErrInvalidSignature
	}
	return nil
}

// Open returns the object's content and content type.
func (s *MemoryStore) Open(objectPath string) (io.ReadCloser, string, error) {
	s.mu.RLock()
	obj, ok := s.objects[objectPath]
	s.mu.RUnlock()
	if !ok {
		return nil, "", ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(obj.content)), obj.contentType, nil
}

// RegisterRoutes mounts the signed download route on e.
func (s *MemoryStore) RegisterRoutes(e *echo.Echo) {
	e.GET("/files/*", s.ServeSigned)
}

// ServeSigned streams an object when the request carries a valid signature.
func (s *MemoryStore) ServeSigned(c echo.Context) error {
	objectPath := c.Param("*")
	if err := s.Verify(objectPath, c.QueryParam("expires"), c.QueryParam("sig")); err != nil {
		return c.JSON(http.StatusForbidden, map[string]string{"error": err.Error()})
	}

	rc, contentType, err := s.Open(objectPath)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	}
	defer rc.Close()

	s.mu.RLock()
	etag := s.objects[objectPath].hash
	s.mu.RUnlock()

	c.Response().Header().Set("ETag", `"`+etag+`"`)
	c.Response().Header().Set("Cache-Control", "private, max-age=3600")
	return c.Stream(http.StatusOK, contentType, rc)
}
