package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/sony/gobreaker/v2"
)

var (
	// ErrRasterizerUnavailable means no rasterizer is configured or its
	// circuit is open.
	ErrRasterizerUnavailable = errors.New("document rasterizer unavailable")
	// ErrRasterize means the document could not be turned into an image,
	// typically because an embedded asset was unreachable.
	ErrRasterize = errors.New("could not rasterize document")
)

// Rasterizer renders an HTML document to a PNG image of the full page.
type Rasterizer interface {
	Rasterize(ctx context.Context, html string) ([]byte, error)
}

// RasterizerOption configures an HTTPRasterizer.
type RasterizerOption func(*HTTPRasterizer)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(c *http.Client) RasterizerOption {
	return func(r *HTTPRasterizer) { r.httpClient = c }
}

// HTTPRasterizer calls a headless-browser screenshot service that accepts
// an index.html upload at /forms/chromium/screenshot/html.
type HTTPRasterizer struct {
	endpoint   string
	width      int
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[[]byte]
}

// NewHTTPRasterizer returns a rasterizer for the service at baseURL.
func NewHTTPRasterizer(baseURL string, opts ...RasterizerOption) *HTTPRasterizer {
	r := &HTTPRasterizer{
		endpoint:   strings.TrimRight(baseURL, "/") + "/forms/chromium/screenshot/html",
		width:      794, // A4 at 96 dpi
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(r)
	}
	r.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "rasterizer",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrRasterize)
		},
	})
	return r
}

func (r *HTTPRasterizer) Rasterize(ctx context.Context, html string) ([]byte, error) {
	img, err := r.breaker.Execute(func() ([]byte, error) {
		return r.call(ctx, html)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrRasterizerUnavailable, err)
	}
	return img, err
}

func (r *HTTPRasterizer) call(ctx context.Context, html string) ([]byte, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("files", "index.html")
	if err != nil {
		return nil, err
	}
	if _, err := io.WriteString(fw, html); err != nil {
		return nil, err
	}
	_ = mw.WriteField("width", fmt.Sprint(r.width))
	_ = mw.WriteField("format", "png")
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rasterizer: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("rasterizer: read response: %w", err)
	}
	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("rasterizer: status %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("%w: status %d: %s", ErrRasterize, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return data, nil
}

// A4 portrait in millimetres.
const (
	pageWidth  = 210.0
	pageHeight = 297.0
)

// PDF renders doc to HTML, rasterizes it and embeds the image as the single
// page of an A4 PDF. Failures leave nothing persisted.
func (r *Renderer) PDF(ctx context.Context, doc Document, lang string) ([]byte, error) {
	if r.rasterizer == nil {
		r.count("pdf", "unavailable")
		return nil, ErrRasterizerUnavailable
	}

	html, err := r.HTML(ctx, doc, lang)
	if err != nil {
		return nil, err
	}

	ctx, span := tracerStart(ctx, "render.pdf")
	defer span.End()

	img, err := r.rasterizer.Rasterize(ctx, html)
	if err != nil {
		r.count("pdf", "error")
		span.RecordError(err)
		if errors.Is(err, ErrRasterizerUnavailable) || errors.Is(err, ErrRasterize) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrRasterize, err)
	}

	out, err := imagePDF(img, "prescription-"+doc.PrescriptionID, doc.IssuedAt)
	if err != nil {
		r.count("pdf", "error")
		span.RecordError(err)
		return nil, err
	}
	r.count("pdf", "ok")
	return out, nil
}

// imagePDF places a PNG on one A4 page, scaled to the page width, or to the
// page height when the image is taller than the page.
func imagePDF(png []byte, title string, created time.Time) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetTitle(title, true)
	pdf.SetCreator("clinic-server", true)
	if !created.IsZero() {
		pdf.SetCreationDate(created)
		pdf.SetModificationDate(created)
	}
	pdf.AddPage()

	opts := fpdf.ImageOptions{ImageType: "PNG"}
	info := pdf.RegisterImageOptionsReader("document", opts, bytes.NewReader(png))
	if pdf.Err() {
		return nil, fmt.Errorf("%w: %v", ErrRasterize, pdf.Error())
	}

	w, h := pageWidth, pageWidth*info.Height()/info.Width()
	x := 0.0
	if h > pageHeight {
		w, h = pageHeight*info.Width()/info.Height(), pageHeight
		x = (pageWidth - w) / 2
	}
	pdf.ImageOptions("document", x, 0, w, h, false, opts, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}
