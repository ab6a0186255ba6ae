package media

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/kmarsden/fabricstash/internal/config"
	"github.com/kmarsden/fabricstash/internal/types"
)

// Acquirer downloads product images into the image store. Filenames are
// derived deterministically from the owning record's name and the source
// URL, so re-ingesting the same image is a no-op.
type Acquirer struct {
	dir     string
	client  *http.Client
	maxSize int64
	workers int
	logger  *slog.Logger
}

// New creates an image acquirer writing into cfg.Dir.
func New(cfg *config.ImagesConfig, logger *slog.Logger) (*Acquirer, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create image dir: %w", err)
	}
	workers := cfg.Concurrency
	if workers < 1 {
		workers = 1
	}
	return &Acquirer{
		dir:     cfg.Dir,
		client:  &http.Client{Timeout: cfg.DownloadTimeout},
		maxSize: cfg.MaxSizeMB * 1024 * 1024,
		workers: workers,
		logger:  logger.With("component", "image_acquirer"),
	}, nil
}

// Acquire downloads one image and returns its relative storage path.
// If the derived filename already exists the network call is skipped.
func (a *Acquirer) Acquire(ctx context.Context, imageURL, recordName string) (string, error) {
	filename := Filename(recordName, imageURL)
	fullPath := filepath.Join(a.dir, filename)

	if _, err := os.Stat(fullPath); err == nil {
		a.logger.Debug("image already stored", "file", filename)
		return filename, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return "", &types.ImageError{URL: imageURL, Err: err}
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return "", &types.ImageError{URL: imageURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &types.ImageError{URL: imageURL, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	if a.maxSize > 0 && resp.ContentLength > a.maxSize {
		return "", &types.ImageError{URL: imageURL, Err: fmt.Errorf("file too large: %d bytes", resp.ContentLength)}
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
		a.logger.Warn("content type is not an image", "url", imageURL, "content_type", ct)
	}

	// Each writer gets its own temp file: concurrent acquisitions of
	// the same URL must never interleave into one inode.
	tmp, err := os.CreateTemp(a.dir, filename+".part*")
	if err != nil {
		return "", &types.ImageError{URL: imageURL, Err: err}
	}

	var reader io.Reader = resp.Body
	if a.maxSize > 0 {
		reader = io.LimitReader(resp.Body, a.maxSize)
	}

	size, err := io.Copy(tmp, reader)
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return "", &types.ImageError{URL: imageURL, Err: err}
	}

	// A concurrent acquisition may have finished first; its file is
	// complete, keep it and drop ours.
	if _, err := os.Stat(fullPath); err == nil {
		os.Remove(tmp.Name())
		return filename, nil
	}
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		os.Remove(tmp.Name())
		return "", &types.ImageError{URL: imageURL, Err: err}
	}

	a.logger.Debug("image downloaded", "url", imageURL, "file", filename, "size", size)
	return filename, nil
}

// AcquireAll downloads a record's images with bounded concurrency.
// Failures are soft: each is logged and the record proceeds with fewer
// images. The returned paths preserve the input order.
func (a *Acquirer) AcquireAll(ctx context.Context, imageURLs []string, recordName string) []string {
	results := make([]string, len(imageURLs))

	sem := make(chan struct{}, a.workers)
	var wg sync.WaitGroup

	for i, imageURL := range imageURLs {
		wg.Add(1)
		go func(i int, imageURL string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			rel, err := a.Acquire(ctx, imageURL, recordName)
			if err != nil {
				a.logger.Warn("image download failed", "url", imageURL, "error", err)
				return
			}
			results[i] = rel
		}(i, imageURL)
	}
	wg.Wait()

	paths := make([]string, 0, len(imageURLs))
	for _, rel := range results {
		if rel != "" {
			paths = append(paths, rel)
		}
	}
	return paths
}

// Remove deletes a stored image by relative path. Used by catalog entry
// deletion.
func (a *Acquirer) Remove(relPath string) error {
	clean := filepath.Clean(relPath)
	if clean == "." || strings.Contains(clean, "..") || filepath.IsAbs(clean) {
		return fmt.Errorf("invalid image path %q", relPath)
	}
	err := os.Remove(filepath.Join(a.dir, clean))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Dir returns the image store root.
func (a *Acquirer) Dir() string { return a.dir }

// Filename derives the stable storage name for an image: a slug of the
// record name, a short hash of the source URL, and the original
// extension (default .jpg). Same source URL, same filename.
func Filename(recordName, imageURL string) string {
	sum := md5.Sum([]byte(imageURL))
	short := hex.EncodeToString(sum[:])[:8]

	slug := Slug(recordName)
	if slug == "" {
		slug = "fabric"
	}

	return slug + "_" + short + extension(imageURL)
}

// Slug sanitizes a record name into a filesystem-safe fragment:
// alphanumerics, dashes, and underscores only, capped at 50 runes.
func Slug(name string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r - 'A' + 'a')
		case r == ' ', r == '-', r == '_':
			b.WriteRune('_')
		}
	}
	slug := strings.Trim(b.String(), "_")
	runes := []rune(slug)
	if len(runes) > 50 {
		slug = string(runes[:50])
	}
	return slug
}

// extension pulls the file extension from the URL path, ignoring query
// strings, with .jpg as the default.
func extension(imageURL string) string {
	u, err := url.Parse(imageURL)
	if err != nil {
		return ".jpg"
	}
	ext := strings.ToLower(path.Ext(u.Path))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp", ".avif", ".bmp", ".tiff":
		return ext
	default:
		return ".jpg"
	}
}
