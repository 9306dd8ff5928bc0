package hosting

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/adforge/core/internal/config"
)

// LocalTier is the last-resort backend: bytes land on the service's own disk
// and are served from /objects/. A cron job later promotes them to a durable
// tier, so nothing here is considered permanent storage.
type LocalTier struct {
	name          string
	dir           string
	publicBaseURL string
}

func newLocalTier(tc config.TierConfig, publicBaseURL string) (*LocalTier, error) {
	dir := strings.TrimSpace(tc.Dir)
	if dir == "" {
		dir = "./static/objects"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create local storage dir: %w", err)
	}
	return &LocalTier{
		name:          tc.Name,
		dir:           dir,
		publicBaseURL: strings.TrimRight(strings.TrimSpace(publicBaseURL), "/"),
	}, nil
}

func (t *LocalTier) Name() string { return t.name }

func (t *LocalTier) Put(_ context.Context, objectKey string, payload []byte, _ string) (string, error) {
	key := normalizeObjectKey(objectKey)
	if key == "" || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid object key")
	}

	path := filepath.Join(t.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return "", err
	}
	return t.publicBaseURL + "/objects/" + key, nil
}

func (t *LocalTier) PutFromURL(ctx context.Context, objectKey, sourceURL string) (string, error) {
	data, contentType, err := fetchOnce(ctx, sourceURL)
	if err != nil {
		return "", err
	}
	return t.Put(ctx, objectKey, data, contentType)
}

// Open reads a stored object back, for promotion to a stronger tier.
func (t *LocalTier) Open(objectKey string) ([]byte, string, error) {
	key := normalizeObjectKey(objectKey)
	if key == "" || strings.Contains(key, "..") {
		return nil, "", fmt.Errorf("invalid object key")
	}
	data, err := os.ReadFile(filepath.Join(t.dir, filepath.FromSlash(key)))
	if err != nil {
		return nil, "", err
	}
	return data, http.DetectContentType(data), nil
}

// Remove deletes a stored object after successful promotion.
func (t *LocalTier) Remove(objectKey string) error {
	key := normalizeObjectKey(objectKey)
	if key == "" || strings.Contains(key, "..") {
		return fmt.Errorf("invalid object key")
	}
	return os.Remove(filepath.Join(t.dir, filepath.FromSlash(key)))
}

// Dir exposes the backing directory so the router can serve it statically.
func (t *LocalTier) Dir() string { return t.dir }
