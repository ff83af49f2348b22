package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
)

// Interface guard
var _ Store = (*HTTP)(nil)

// HTTP speaks to a remote blob service:
//
//	POST   /upload/{folder}?name=...  → opaque path in the body
//	GET    /download?path=...
//	DELETE /upload?path=...
//
// Calls run through a circuit breaker so a dead blob service sheds load fast
// instead of stacking up request timeouts.
type HTTP struct {
	base    string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

func NewHTTP(baseURL string) *HTTP {
	return &HTTP{
		base:   baseURL,
		client: &http.Client{Timeout: 30 * time.Second},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "blob-http",
			Timeout: 15 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
}

func (h *HTTP) Upload(ctx context.Context, data []byte, name, folder string) (string, error) {
	u := fmt.Sprintf("%s/upload/%s?name=%s", h.base, url.PathEscape(folder), url.QueryEscape(name))
	res, err := h.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/octet-stream")

		resp, err := h.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("blob: upload status %d: %s", resp.StatusCode, body)
		}
		return string(bytes.TrimSpace(body)), nil
	})
	if err != nil {
		return "", fmt.Errorf("blob: upload %s: %w", name, err)
	}
	return res.(string), nil
}

func (h *HTTP) Read(ctx context.Context, path string) ([]byte, error) {
	u := fmt.Sprintf("%s/download?path=%s", h.base, url.QueryEscape(path))
	res, err := h.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		resp, err := h.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("blob: download status %d", resp.StatusCode)
		}
		return io.ReadAll(resp.Body)
	})
	if err != nil {
		return nil, err
	}
	return res.([]byte), nil
}

func (h *HTTP) Delete(ctx context.Context, path string) (bool, error) {
	u := fmt.Sprintf("%s/upload?path=%s", h.base, url.QueryEscape(path))
	res, err := h.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
		if err != nil {
			return nil, err
		}
		resp, err := h.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusNotFound {
			return false, nil
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("blob: delete status %d", resp.StatusCode)
		}
		return true, nil
	})
	if err != nil {
		return false, err
	}
	b, _ := res.(bool)
	return b, nil
}
