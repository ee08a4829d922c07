// Package models manages ggml whisper model files: where they live, whether
// they are usable, and downloading them.
package models

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// DefaultModel is used for unknown model names.
const DefaultModel = "large-v3-turbo"

// MinValidBytes guards against partial downloads being treated as usable.
const MinValidBytes = 50 * 1024 * 1024

// DefaultBaseURL hosts the whisper.cpp ggml conversions.
const DefaultBaseURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main"

var known = map[string]bool{
	"tiny":           true,
	"base":           true,
	"small":          true,
	"medium":         true,
	"large-v3":       true,
	"large-v3-turbo": true,
}

// Names returns the supported model names, sorted.
func Names() []string {
	names := make([]string, 0, len(known))
	for n := range known {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Canonical maps unknown names onto DefaultModel.
func Canonical(name string) string {
	if known[name] {
		return name
	}
	return DefaultModel
}

// FileName is the on-disk name of a model.
func FileName(name string) string {
	return "ggml-" + Canonical(name) + ".bin"
}

// Status describes a model file on disk.
type Status struct {
	Name      string `json:"name"`
	Exists    bool   `json:"exists"`
	Path      string `json:"path"`
	SizeBytes int64  `json:"size_bytes"`
}

// Progress is reported while downloading.
type Progress struct {
	Name       string `json:"name"`
	Percent    int    `json:"percent"`
	TotalBytes int64  `json:"total_bytes"`
}

// Registry resolves model names inside a models directory.
type Registry struct {
	dir     string
	baseURL string
	client  *resty.Client
	logger  *zap.SugaredLogger
}

// Option configures a Registry.
type Option func(*Registry)

// WithBaseURL overrides the download host.
func WithBaseURL(u string) Option {
	return func(r *Registry) { r.baseURL = u }
}

// WithClient replaces the HTTP client.
func WithClient(c *resty.Client) Option {
	return func(r *Registry) { r.client = c }
}

func WithLogger(l *zap.SugaredLogger) Option {
	return func(r *Registry) { r.logger = l }
}

// NewRegistry returns a Registry rooted at dir.
func NewRegistry(dir string, opts ...Option) *Registry {
	r := &Registry{
		dir:     dir,
		baseURL: DefaultBaseURL,
		logger:  zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.client == nil {
		r.client = resty.New().SetRetryCount(0)
	}
	return r
}

// Dir returns the models directory.
func (r *Registry) Dir() string {
	return r.dir
}

// Path returns where the model file lives, whether or not it exists.
func (r *Registry) Path(name string) string {
	return filepath.Join(r.dir, FileName(name))
}

// URL returns the download location of a model.
func (r *Registry) URL(name string) string {
	return r.baseURL + "/" + FileName(name)
}

// Status reports whether a usable model file is present.
func (r *Registry) Status(name string) Status {
	st := Status{Name: Canonical(name), Path: r.Path(name)}
	info, err := os.Stat(st.Path)
	if err != nil {
		return st
	}
	st.SizeBytes = info.Size()
	st.Exists = info.Mode().IsRegular() && info.Size() > MinValidBytes
	return st
}

// Download fetches a model into <path>.tmp and renames it into place once
// complete. progress, if non-nil, is called each time the integer percentage
// increases.
func (r *Registry) Download(ctx context.Context, name string, progress func(Progress)) (string, error) {
	name = Canonical(name)
	dest := r.Path(name)
	tmp := dest + ".tmp"

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", fmt.Errorf("create models directory: %w", err)
	}

	resp, err := r.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(r.URL(name))
	if err != nil {
		return "", fmt.Errorf("download %s: %w", name, err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("download %s: unexpected status %s", name, resp.Status())
	}

	f, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	total := resp.RawResponse.ContentLength
	w := &progressWriter{name: name, total: total, last: -1, report: progress}
	if _, err := io.Copy(f, io.TeeReader(body, w)); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("download %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("write %s: %w", tmp, err)
	}

	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("install %s: %w", dest, err)
	}
	r.logger.Infof("downloaded model %s (%d bytes) to %s", name, w.written, dest)
	return dest, nil
}

// progressWriter counts bytes and reports each new integer percentage. Without
// a Content-Length nothing is reported.
type progressWriter struct {
	name    string
	total   int64
	written int64
	last    int
	report  func(Progress)
}

func (w *progressWriter) Write(p []byte) (int, error) {
	w.written += int64(len(p))
	if w.report == nil || w.total <= 0 {
		return len(p), nil
	}
	pct := int(w.written * 100 / w.total)
	if pct > w.last {
		w.last = pct
		w.report(Progress{Name: w.name, Percent: pct, TotalBytes: w.total})
	}
	return len(p), nil
}
