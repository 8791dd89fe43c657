package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPStorage fetches slide sources from web servers. It is read-only.
type HTTPStorage struct {
	client *http.Client
}

// NewHTTPStorage returns a backend with a generous timeout for large clips.
func NewHTTPStorage() *HTTPStorage {
	return NewHTTPStorageWithClient(&http.Client{Timeout: 10 * time.Minute})
}

// NewHTTPStorageWithClient uses the given client for all requests.
func NewHTTPStorageWithClient(client *http.Client) *HTTPStorage {
	return &HTTPStorage{client: client}
}

// do issues method against uri. The caller owns the response body.
func (hs *HTTPStorage) do(ctx context.Context, method, uri string) (*http.Response, error) {
	scheme, _, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	if scheme != "http" && scheme != "https" {
		return nil, fmt.Errorf("HTTP storage only supports http:// and https:// URIs, got %s://", scheme)
	}

	req, err := http.NewRequestWithContext(ctx, method, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", method, err)
	}
	return hs.client.Do(req)
}

func (hs *HTTPStorage) Get(ctx context.Context, uri string) (io.ReadCloser, error) {
	resp, err := hs.do(ctx, http.MethodGet, uri)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", uri, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("download %s: HTTP status %d", uri, resp.StatusCode)
	}
	return resp.Body, nil
}

func (hs *HTTPStorage) Put(ctx context.Context, uri string, data io.Reader) error {
	return fmt.Errorf("http put %s: %w", uri, ErrNotSupported)
}

func (hs *HTTPStorage) Delete(ctx context.Context, uri string) error {
	return fmt.Errorf("http delete %s: %w", uri, ErrNotSupported)
}

// Exists sends a HEAD request; anything but 200 counts as absent.
func (hs *HTTPStorage) Exists(ctx context.Context, uri string) (bool, error) {
	resp, err := hs.do(ctx, http.MethodHead, uri)
	if err != nil {
		return false, fmt.Errorf("head %s: %w", uri, err)
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK, nil
}

// Size returns Content-Length from a HEAD request, -1 when the server
// does not send one.
func (hs *HTTPStorage) Size(ctx context.Context, uri string) (int64, error) {
	resp, err := hs.do(ctx, http.MethodHead, uri)
	if err != nil {
		return 0, fmt.Errorf("head %s: %w", uri, err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("head %s: HTTP status %d", uri, resp.StatusCode)
	}
	return resp.ContentLength, nil
}
