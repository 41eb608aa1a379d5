// Package media downloads user-sent media and forwards it to its destination.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aretw0/convo/pkg/domain"
	"github.com/aretw0/convo/pkg/ports"
)

// Fetcher implements ports.MediaFetcher for http(s) URLs. Other references
// resolve against an optional base directory and are never removed.
type Fetcher struct {
	http     *http.Client
	tempDir  string
	baseDir  string
	maxBytes int64
	logger   *slog.Logger
}

// DefaultMaxMediaBytes caps a single download unless WithMaxSize says otherwise.
const DefaultMaxMediaBytes = 25 << 20

// ErrMediaTooLarge is returned when a download exceeds the size cap.
var ErrMediaTooLarge = errors.New("media file exceeds size limit")

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithFetchClient replaces the http.Client used for downloads.
func WithFetchClient(c *http.Client) FetcherOption {
	return func(f *Fetcher) {
		f.http = c
	}
}

// WithTempDir sets where downloads are written (os.TempDir by default).
func WithTempDir(dir string) FetcherOption {
	return func(f *Fetcher) {
		f.tempDir = dir
	}
}

// WithBaseDir enables plain references, resolved inside dir.
func WithBaseDir(dir string) FetcherOption {
	return func(f *Fetcher) {
		f.baseDir = dir
	}
}

// WithMaxSize sets the largest download accepted, in bytes.
func WithMaxSize(n int64) FetcherOption {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxBytes = n
		}
	}
}

// WithFetchLogger sets the logger.
func WithFetchLogger(l *slog.Logger) FetcherOption {
	return func(f *Fetcher) {
		f.logger = l
	}
}

// NewFetcher creates a Fetcher.
func NewFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		http:     &http.Client{},
		maxBytes: DefaultMaxMediaBytes,
		logger:   slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads ref into a temp file.
func (f *Fetcher) Fetch(ctx context.Context, ref string) (*ports.MediaHandle, error) {
	u, err := url.Parse(ref)
	if err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return f.download(ctx, u)
	}
	return f.local(ref)
}

func (f *Fetcher) download(ctx context.Context, u *url.URL) (*ports.MediaHandle, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := f.http.Do(req)
	if err != nil {
		return nil, domain.NewCollaboratorError("media fetch", domain.KindTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &domain.CollaboratorError{
			Op: "media fetch", Kind: domain.KindStatus, StatusCode: resp.StatusCode,
			Err: fmt.Errorf("failed to download media: %s", resp.Status),
		}
	}

	name := path.Base(u.Path)
	if name == "/" || name == "." {
		name = "media"
	}
	contentType := resp.Header.Get("Content-Type")
	if filepath.Ext(name) == "" {
		if exts, _ := mime.ExtensionsByType(contentType); len(exts) > 0 {
			name += exts[0]
		}
	}

	tmp, err := os.CreateTemp(f.tempDir, "convo-media-*"+filepath.Ext(name))
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	n, err := io.Copy(tmp, io.LimitReader(resp.Body, f.maxBytes+1))
	if err == nil && n > f.maxBytes {
		err = fmt.Errorf("%w (%d bytes)", ErrMediaTooLarge, f.maxBytes)
	}
	if err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return nil, domain.NewCollaboratorError("media fetch", domain.KindTransport, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return nil, err
	}

	f.logger.Info("Media downloaded", "url", u.String(), "path", tmp.Name())
	return &ports.MediaHandle{Path: tmp.Name(), Name: name, ContentType: contentType}, nil
}

func (f *Fetcher) local(ref string) (*ports.MediaHandle, error) {
	if f.baseDir == "" {
		return nil, fmt.Errorf("unsupported media reference %q", ref)
	}
	clean := filepath.Clean("/" + strings.TrimPrefix(ref, "file://"))
	p := filepath.Join(f.baseDir, clean)
	if _, err := os.Stat(p); err != nil {
		return nil, fmt.Errorf("media not found: %w", err)
	}
	return &ports.MediaHandle{
		Path:        p,
		Name:        filepath.Base(p),
		ContentType: mime.TypeByExtension(filepath.Ext(p)),
	}, nil
}

// Release removes downloaded files. Files under the base directory are kept.
func (f *Fetcher) Release(ctx context.Context, h *ports.MediaHandle) error {
	if h == nil || h.Path == "" {
		return nil
	}
	if f.baseDir != "" && strings.HasPrefix(h.Path, filepath.Clean(f.baseDir)+string(filepath.Separator)) {
		return nil
	}
	if err := os.Remove(h.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
