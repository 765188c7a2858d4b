package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
)

type bearerKey struct{}

// WithBearerToken attaches the caller's access token so RemoteClient can
// forward it to the mail function.
func WithBearerToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, bearerKey{}, token)
}

func bearerFromContext(ctx context.Context) string {
	v, _ := ctx.Value(bearerKey{}).(string)
	return v
}

// RemoteOption configures a RemoteClient.
type RemoteOption func(*RemoteClient)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(c *http.Client) RemoteOption {
	return func(r *RemoteClient) { r.httpClient = c }
}

// RemoteClient calls a mail function at url behind a circuit breaker.
// Rejections (4xx) do not count as failures.
type RemoteClient struct {
	url        string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*SendResult]
}

func NewRemoteClient(url string, opts ...RemoteOption) *RemoteClient {
	r := &RemoteClient{
		url:        url,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, o := range opts {
		o(r)
	}
	r.breaker = gobreaker.NewCircuitBreaker[*SendResult](gobreaker.Settings{
		Name:        "mail-function",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			var reqErr *RequestError
			return err == nil || errors.As(err, &reqErr)
		},
	})
	return r
}

func (r *RemoteClient) SendPrescriptionEmail(ctx context.Context, req PrescriptionEmailRequest) (*SendResult, error) {
	res, err := r.breaker.Execute(func() (*SendResult, error) {
		return r.call(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("mail function unavailable: %w", err)
	}
	return res, err
}

func (r *RemoteClient) call(ctx context.Context, req PrescriptionEmailRequest) (*SendResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if token := bearerFromContext(ctx); token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := r.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("mail function: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("mail function: read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(raw, &e)
		if e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		if resp.StatusCode < 500 {
			return nil, &RequestError{Status: resp.StatusCode, Message: e.Error}
		}
		return nil, fmt.Errorf("mail function: %d %s", resp.StatusCode, e.Error)
	}

	var res SendResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("mail function: decode response: %w", err)
	}
	return &res, nil
}
