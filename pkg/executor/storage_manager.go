package executor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/chicogong/slidegraph/pkg/schemas"
	"github.com/chicogong/slidegraph/pkg/storage"
)

// TempDirPrefix names the per-render working directories.
const TempDirPrefix = "slidegraph-"

// maxParallelDownloads bounds concurrent source fetches per render.
const maxParallelDownloads = 4

// StorageManager routes URIs to storage backends, fetches show sources
// into a working directory and publishes finished renders.
type StorageManager struct {
	mu       sync.RWMutex
	backends map[string]storage.Storage
	logger   *slog.Logger
}

// NewStorageManager creates a storage manager with file and http(s)
// backends. S3 is added when AWS configuration loads; region may be empty.
func NewStorageManager(ctx context.Context, region string, logger *slog.Logger) *StorageManager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	sm := &StorageManager{
		backends: make(map[string]storage.Storage),
		logger:   logger,
	}
	httpStorage := storage.NewHTTPStorage()
	sm.Register("file", storage.NewLocalStorage())
	sm.Register("http", httpStorage)
	sm.Register("https", httpStorage)

	s3Storage, err := storage.NewS3Storage(ctx, region)
	if err != nil {
		logger.Warn("s3 storage unavailable", "error", err)
	} else {
		sm.Register("s3", s3Storage)
	}

	return sm
}

// Register installs or replaces the backend for scheme.
func (sm *StorageManager) Register(scheme string, backend storage.Storage) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.backends[scheme] = backend
}

// Backend returns the storage backend for a URI
func (sm *StorageManager) Backend(uri string) (storage.Storage, error) {
	scheme, _, err := storage.ParseURI(uri)
	if err != nil {
		return nil, err
	}

	sm.mu.RLock()
	defer sm.mu.RUnlock()
	backend, ok := sm.backends[scheme]
	if !ok {
		if scheme == "s3" {
			return nil, fmt.Errorf("S3 storage not initialized (AWS credentials may be missing)")
		}
		return nil, fmt.Errorf("unsupported URI scheme: %s", scheme)
	}
	return backend, nil
}

// localName picks a file name for a downloaded source. The hash prefix
// keeps two sources with the same base name apart.
func localName(uri string) string {
	sum := sha256.Sum256([]byte(uri))
	base := path.Base(strings.SplitN(uri, "?", 2)[0])
	if base == "" || base == "." || base == "/" {
		base = "input"
	}
	return hex.EncodeToString(sum[:6]) + "-" + base
}

// DownloadInput fetches a remote source into tempDir and returns the local
// path. Local sources are returned as they are.
func (sm *StorageManager) DownloadInput(ctx context.Context, uri, tempDir string) (string, error) {
	scheme, p, err := storage.ParseURI(uri)
	if err != nil {
		return "", err
	}
	if scheme == "file" {
		return p, nil
	}

	backend, err := sm.Backend(uri)
	if err != nil {
		return "", err
	}

	reader, err := backend.Get(ctx, uri)
	if err != nil {
		return "", fmt.Errorf("failed to download %s: %w", uri, err)
	}
	defer reader.Close()

	tempPath := filepath.Join(tempDir, localName(uri))
	tempFile, err := os.Create(tempPath)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer tempFile.Close()

	if _, err := io.Copy(tempFile, reader); err != nil {
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}

	return tempPath, nil
}

// PrepareInputs fetches every distinct node source and returns a map of
// source reference to local path.
func (sm *StorageManager) PrepareInputs(ctx context.Context, spec *schemas.ShowSpec, tempDir string) (map[string]string, error) {
	var sources []string
	seen := make(map[string]bool)
	for _, node := range spec.Nodes {
		if !seen[node.Source] {
			seen[node.Source] = true
			sources = append(sources, node.Source)
		}
	}

	var mu sync.Mutex
	inputMap := make(map[string]string, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelDownloads)
	for _, src := range sources {
		g.Go(func() error {
			local, err := sm.DownloadInput(gctx, src, tempDir)
			if err != nil {
				return fmt.Errorf("failed to prepare input %s: %w", src, err)
			}
			mu.Lock()
			inputMap[src] = local
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sm.logger.Debug("inputs prepared", "sources", len(sources), "dir", tempDir)
	return inputMap, nil
}

// UploadOutput publishes a local file to destURI.
func (sm *StorageManager) UploadOutput(ctx context.Context, localPath, destURI string) error {
	backend, err := sm.Backend(destURI)
	if err != nil {
		return err
	}

	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open local file: %w", err)
	}
	defer file.Close()

	if err := backend.Put(ctx, destURI, file); err != nil {
		return fmt.Errorf("failed to upload to %s: %w", destURI, err)
	}
	return nil
}

// CleanupTempDir removes a working directory created by the executor.
func (sm *StorageManager) CleanupTempDir(tempDir string) error {
	if tempDir == "" || tempDir == "/" || tempDir == "." {
		return fmt.Errorf("invalid temp directory: %s", tempDir)
	}

	if !strings.HasPrefix(filepath.Base(tempDir), TempDirPrefix) {
		return fmt.Errorf("refusing to cleanup non-temp directory: %s", tempDir)
	}

	return os.RemoveAll(tempDir)
}
