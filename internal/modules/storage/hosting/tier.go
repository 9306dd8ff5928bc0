package hosting

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/adforge/core/internal/config"
)

// Tier is one byte-persistence backend in the durability chain. Put stores a
// buffer and returns the permanent public URL; PutFromURL is the degraded path
// that fetches the source itself when the pipeline could not capture bytes.
type Tier interface {
	Name() string
	Put(ctx context.Context, objectKey string, payload []byte, contentType string) (string, error)
	PutFromURL(ctx context.Context, objectKey, sourceURL string) (string, error)
}

// BuildTiers constructs the ordered tier chain from config. Order encodes
// durability preference; the first tier that accepts a write wins.
func BuildTiers(cfg config.StorageConfig, publicBaseURL string) ([]Tier, error) {
	tiers := make([]Tier, 0, len(cfg.Tiers))
	for _, tc := range cfg.Tiers {
		switch strings.ToLower(strings.TrimSpace(tc.Kind)) {
		case "s3":
			t, err := newS3Tier(tc)
			if err != nil {
				return nil, fmt.Errorf("storage tier %s: %w", tc.Name, err)
			}
			tiers = append(tiers, t)
		case "sigv4":
			t, err := newSigV4Tier(tc)
			if err != nil {
				return nil, fmt.Errorf("storage tier %s: %w", tc.Name, err)
			}
			tiers = append(tiers, t)
		case "local":
			t, err := newLocalTier(tc, publicBaseURL)
			if err != nil {
				return nil, fmt.Errorf("storage tier %s: %w", tc.Name, err)
			}
			tiers = append(tiers, t)
		default:
			return nil, fmt.Errorf("storage tier %s: unknown kind %q", tc.Name, tc.Kind)
		}
	}
	if len(tiers) == 0 {
		return nil, fmt.Errorf("storage: at least one tier is required")
	}
	return tiers, nil
}

// fetchOnce downloads a source URL in a single attempt, for tiers serving a
// PutFromURL fallback. The retry policy for captures lives in the pipeline,
// not here.
func fetchOnce(ctx context.Context, sourceURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, "", err
	}

	client := &http.Client{Timeout: 45 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("fetch source: status=%d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return data, contentType, nil
}
