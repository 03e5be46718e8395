// Package objstore copies temporary generated images into durable object
// storage and returns permanent public URLs.
//
// Defines an Uploader interface with a Google Cloud Storage implementation
// and an in-memory implementation for tests.
package objstore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"unicode"

	gcs "cloud.google.com/go/storage"
)

// Uploader copies the image at a temporary URL into durable storage under a
// name derived from label, returning the permanent URL.
type Uploader interface {
	Upload(ctx context.Context, temporaryURL, label string) (string, error)
}

// maxObjectBytes caps how much of a temporary image is copied into storage.
const maxObjectBytes = 32 << 20

// GCS uploads images to a Google Cloud Storage bucket.
type GCS struct {
	client     *gcs.Client
	bucket     string
	prefix     string
	httpClient *http.Client
}

// NewGCS creates an uploader writing into the given bucket. Objects are named
// <prefix>/<label>.png and served from the bucket's public URL.
func NewGCS(ctx context.Context, bucket, prefix string) (*GCS, error) {
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("objstore: create storage client: %w", err)
	}
	return &GCS{
		client:     client,
		bucket:     bucket,
		prefix:     strings.Trim(prefix, "/"),
		httpClient: &http.Client{},
	}, nil
}

// Upload fetches the temporary URL and streams the bytes into the bucket.
func (g *GCS) Upload(ctx context.Context, temporaryURL, label string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, temporaryURL, nil)
	if err != nil {
		return "", fmt.Errorf("objstore: create fetch request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("objstore: fetch temporary image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("objstore: fetch temporary image: unexpected status %d", resp.StatusCode)
	}

	name := g.objectName(label)
	w := g.client.Bucket(g.bucket).Object(name).NewWriter(ctx)
	w.ContentType = resp.Header.Get("Content-Type")
	if w.ContentType == "" {
		w.ContentType = "image/png"
	}

	if _, err := io.Copy(w, io.LimitReader(resp.Body, maxObjectBytes)); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("objstore: write object %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("objstore: finalize object %s: %w", name, err)
	}

	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", g.bucket, name), nil
}

// Close releases the underlying storage client.
func (g *GCS) Close() error {
	return g.client.Close()
}

func (g *GCS) objectName(label string) string {
	name := sanitizeLabel(label) + ".png"
	if g.prefix != "" {
		return g.prefix + "/" + name
	}
	return name
}

// sanitizeLabel lowercases the label and collapses anything outside
// [a-z0-9-] into single hyphens, so recipe names become stable object keys.
func sanitizeLabel(label string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(label) {
		switch {
		case unicode.IsLower(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastHyphen = false
		case !lastHyphen:
			b.WriteByte('-')
			lastHyphen = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// Memory is an in-process Uploader for tests. It records every upload and can
// be programmed to fail.
type Memory struct {
	BaseURL string
	FailFor map[string]error // label -> error

	mu      sync.Mutex
	uploads []MemoryUpload
}

// MemoryUpload is one recorded upload.
type MemoryUpload struct {
	TemporaryURL string
	Label        string
}

// NewMemory creates an in-memory uploader serving from a fake base URL.
func NewMemory() *Memory {
	return &Memory{BaseURL: "https://storage.test/bucket"}
}

// Upload records the call and returns a deterministic permanent URL.
func (m *Memory) Upload(_ context.Context, temporaryURL, label string) (string, error) {
	if err := m.FailFor[label]; err != nil {
		return "", err
	}
	m.mu.Lock()
	m.uploads = append(m.uploads, MemoryUpload{TemporaryURL: temporaryURL, Label: label})
	m.mu.Unlock()
	return m.BaseURL + "/" + sanitizeLabel(label) + ".png", nil
}

// Uploads returns a copy of all recorded uploads.
func (m *Memory) Uploads() []MemoryUpload {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MemoryUpload, len(m.uploads))
	copy(out, m.uploads)
	return out
}
