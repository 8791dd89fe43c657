package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"slices"
	"strings"
)

// AllowedSchemes is the whitelist of URI schemes a show may reference.
var AllowedSchemes = []string{"https", "http", "s3", "file"}

// ErrNotSupported is returned by read-only backends for write operations.
var ErrNotSupported = errors.New("operation not supported")

// Storage moves slide sources in and finished renders out. Backends are
// selected by URI scheme.
type Storage interface {
	Get(ctx context.Context, uri string) (io.ReadCloser, error)
	Put(ctx context.Context, uri string, data io.Reader) error
	Delete(ctx context.Context, uri string) error
	Exists(ctx context.Context, uri string) (bool, error)
	// Size reports the object size in bytes, or -1 when the backend
	// cannot tell.
	Size(ctx context.Context, uri string) (int64, error)
}

// ParseURI splits uri into scheme and path. A reference without a scheme
// is a local path. For remote schemes the path includes the host or bucket.
func ParseURI(uri string) (scheme, path string, err error) {
	if uri == "" {
		return "", "", errors.New("URI cannot be empty")
	}
	if !strings.Contains(uri, "://") {
		return "file", uri, nil
	}

	u, err := url.Parse(uri)
	if err != nil {
		return "", "", fmt.Errorf("invalid URI: %w", err)
	}
	if u.Scheme == "" {
		return "", "", fmt.Errorf("URI %q has no scheme", uri)
	}

	// file://relative/path puts the first segment in Host.
	if u.Scheme == "file" && (u.Host == "" || u.Host == "localhost") {
		return u.Scheme, u.Path, nil
	}
	return u.Scheme, u.Host + u.Path, nil
}

func IsAllowedScheme(scheme string) bool {
	return slices.Contains(AllowedSchemes, scheme)
}
