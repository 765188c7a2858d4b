package blobstore

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

var testTenant = uuid.MustParse("11111111-1111-1111-1111-111111111111")

func newTestStore() *MemoryStore {
	return NewMemoryStore("http://localhost:8000/", []byte("test-signing-key"))
}

func seedObject(t *testing.T, store Store, objectPath, content string) {
	t.Helper()
	err := store.Put(context.Background(), Object{
		Path:        objectPath,
		ContentType: "image/png",
		Body:        strings.NewReader(content),
	}, false)
	if err != nil {
		t.Fatalf("seedObject: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Path convention
// ---------------------------------------------------------------------------

func TestObjectPath(t *testing.T) {
	at := time.UnixMilli(1760000000123)
	got := ObjectPath(testTenant, KindSignature, at, "png")
	want := "11111111-1111-1111-1111-111111111111/signatures/1760000000123.png"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	if got := ObjectPath(testTenant, KindLogo, at, "jpg"); !strings.Contains(got, "/logos/") {
		t.Errorf("expected logos folder, got %q", got)
	}
}

func TestTenantOf(t *testing.T) {
	id, ok := TenantOf(ObjectPath(testTenant, KindLogo, time.Now(), "png"))
	if !ok || id != testTenant {
		t.Errorf("expected %s, got %s (%v)", testTenant, id, ok)
	}
	if _, ok := TenantOf("not-a-uuid/logos/1.png"); ok {
		t.Error("expected failure for invalid tenant folder")
	}
	if _, ok := TenantOf("flat.png"); ok {
		t.Error("expected failure for path without folder")
	}
}

func TestExtension(t *testing.T) {
	tests := []struct {
		contentType string
		fileName    string
		want        string
		wantErr     bool
	}{
		{"image/png", "sig.bin", "png", false},
		{"image/jpeg; charset=binary", "", "jpg", false},
		{"application/octet-stream", "logo.JPEG", "jpg", false},
		{"", "logo.webp", "webp", false},
		{"application/pdf", "doc.pdf", "", true},
		{"image/svg+xml", "logo.svg", "", true},
	}
	for _, tt := range tests {
		got, err := Extension(tt.contentType, tt.fileName)
		if (err != nil) != tt.wantErr {
			t.Errorf("Extension(%q, %q) error = %v", tt.contentType, tt.fileName, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Extension(%q, %q) = %q, want %q", tt.contentType, tt.fileName, got, tt.want)
		}
	}
}

// ---------------------------------------------------------------------------
// Memory store
// ---------------------------------------------------------------------------

func TestMemoryStore_PutAndOpen(t *testing.T) {
	store := newTestStore()
	seedObject(t, store, "t/logos/1.png", "png-bytes")

	rc, ct, err := store.Open("t/logos/1.png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer rc.Close()
	if ct != "image/png" {
		t.Errorf("expected image/png, got %s", ct)
	}
}

func TestMemoryStore_PutWithoutUpsert(t *testing.T) {
	store := newTestStore()
	seedObject(t, store, "t/logos/1.png", "a")

	err := store.Put(context.Background(), Object{Path: "t/logos/1.png", Body: strings.NewReader("b")}, false)
	if !errors.Is(err, ErrObjectExists) {
		t.Fatalf("expected ErrObjectExists, got %v", err)
	}
	if err := store.Put(context.Background(), Object{Path: "t/logos/1.png", Body: strings.NewReader("b")}, true); err != nil {
		t.Fatalf("upsert should overwrite: %v", err)
	}
}

func TestMemoryStore_FileTooLarge(t *testing.T) {
	store := newTestStore()
	big := strings.NewReader(strings.Repeat("x", MaxImageSize+1))

	err := store.Put(context.Background(), Object{Path: "t/logos/big.png", Body: big}, false)
	if !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("expected ErrFileTooLarge, got %v", err)
	}
}

func TestMemoryStore_Delete(t *testing.T) {
	store := newTestStore()
	seedObject(t, store, "t/signatures/1.png", "a")

	if err := store.Delete(context.Background(), "t/signatures/1.png"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.Delete(context.Background(), "t/signatures/1.png"); !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestMemoryStore_SignedURL(t *testing.T) {
	store := newTestStore()
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	seedObject(t, store, "t/logos/1.png", "a")

	raw, err := store.SignedURL(context.Background(), "t/logos/1.png", SignedURLTTL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("invalid url: %v", err)
	}
	if u.Path != "/files/t/logos/1.png" {
		t.Errorf("unexpected path %s", u.Path)
	}
	q := u.Query()
	if q.Get("expires") != "1792242000" {
		t.Errorf("expected expiry one hour ahead, got %s", q.Get("expires"))
	}

	if err := store.Verify("t/logos/1.png", q.Get("expires"), q.Get("sig")); err != nil {
		t.Errorf("expected valid signature: %v", err)
	}
	if err := store.Verify("t/logos/2.png", q.Get("expires"), q.Get("sig")); err == nil {
		t.Error("signature must be bound to the path")
	}

	now = now.Add(SignedURLTTL)
	if err := store.Verify("t/logos/1.png", q.Get("expires"), q.Get("sig")); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("expected expiry after one hour, got %v", err)
	}
}

func TestMemoryStore_SignedURLNotFound(t *testing.T) {
	store := newTestStore()
	if _, err := store.SignedURL(context.Background(), "missing.png", time.Hour); !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	store := newTestStore()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := ObjectPath(testTenant, KindSignature, time.UnixMilli(int64(i)), "png")
			_ = store.Put(context.Background(), Object{Path: p, Body: strings.NewReader("x")}, true)
			_, _ = store.SignedURL(context.Background(), p, time.Minute)
		}(i)
	}
	wg.Wait()
}

// ---------------------------------------------------------------------------
// Display URLs
// ---------------------------------------------------------------------------

func TestDisplayURL(t *testing.T) {
	store := newTestStore()
	seedObject(t, store, "t/logos/1.png", "a")
	ctx := context.Background()

	if got, _ := DisplayURL(ctx, store, ""); got != "" {
		t.Errorf("expected empty, got %q", got)
	}

	got, err := DisplayURL(ctx, store, "t/logos/1.png")
	if err != nil || !strings.Contains(got, "/files/t/logos/1.png?") {
		t.Errorf("expected signed url, got %q (%v)", got, err)
	}

	legacy := "https://project.example.co/storage/v1/object/public/clinic-assets/t/logos/1.png"
	got, err = DisplayURL(ctx, store, legacy)
	if err != nil || !strings.Contains(got, "/files/t/logos/1.png?") {
		t.Errorf("expected legacy url to be re-signed, got %q (%v)", got, err)
	}

	external := "https://cdn.example.com/logo.png"
	if got, _ := DisplayURL(ctx, store, external); got != external {
		t.Errorf("expected external url unchanged, got %q", got)
	}
}

// ---------------------------------------------------------------------------
// HTTP handler
// ---------------------------------------------------------------------------

func TestServeSigned(t *testing.T) {
	store := newTestStore()
	seedObject(t, store, "t/logos/1.png", "png-bytes")
	e := echo.New()
	store.RegisterRoutes(e)

	signed, _ := store.SignedURL(context.Background(), "t/logos/1.png", time.Hour)
	u, _ := url.Parse(signed)

	req := httptest.NewRequest(http.MethodGet, u.RequestURI(), nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != "png-bytes" {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
	if rec.Header().Get("Content-Type") != "image/png" {
		t.Errorf("unexpected content type %q", rec.Header().Get("Content-Type"))
	}
	if rec.Header().Get("ETag") == "" {
		t.Error("expected ETag header")
	}
}

func TestServeSigned_BadSignature(t *testing.T) {
	store := newTestStore()
	seedObject(t, store, "t/logos/1.png", "png-bytes")
	e := echo.New()
	store.RegisterRoutes(e)

	req := httptest.NewRequest(http.MethodGet, "/files/t/logos/1.png?expires=9999999999&sig=deadbeef", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
}
