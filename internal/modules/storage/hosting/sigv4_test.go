package hosting

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/adforge/core/internal/config"
)

func sigv4TestConfig(endpoint string) config.TierConfig {
	return config.TierConfig{
		Name:            "secondary",
		Kind:            "sigv4",
		Bucket:          "assets",
		Region:          "us-east-1",
		AccessKeyID:     "AKIATEST",
		SecretAccessKey: "secret",
		Endpoint:        endpoint,
	}
}

func TestSigV4Put_SignsAndUploads(t *testing.T) {
	var got *http.Request
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tier, err := newSigV4Tier(sigv4TestConfig(srv.URL))
	require.NoError(t, err)

	url, err := tier.Put(context.Background(), "image/2026/08/a.png", []byte("payload"), "image/png")
	require.NoError(t, err)
	require.Contains(t, url, "/assets/image/2026/08/a.png")

	require.Equal(t, http.MethodPut, got.Method)
	require.Equal(t, "/assets/image/2026/08/a.png", got.URL.Path)
	require.Equal(t, []byte("payload"), body)
	require.Equal(t, "image/png", got.Header.Get("Content-Type"))
	require.NotEmpty(t, got.Header.Get("x-amz-content-sha256"))

	auth := got.Header.Get("Authorization")
	require.True(t, strings.HasPrefix(auth, "AWS4-HMAC-SHA256 Credential=AKIATEST/"))
	require.Contains(t, auth, "SignedHeaders=content-length;content-type;host;x-amz-content-sha256;x-amz-date")
	require.Contains(t, auth, "Signature=")
}

func TestSigV4Put_RejectedStatusSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("slow down"))
	}))
	defer srv.Close()

	tier, err := newSigV4Tier(sigv4TestConfig(srv.URL))
	require.NoError(t, err)

	_, err = tier.Put(context.Background(), "image/a.png", []byte("x"), "image/png")
	require.Error(t, err)
	require.Contains(t, err.Error(), "status=503")
}

func TestSigV4Tier_CustomDomainWins(t *testing.T) {
	cfg := sigv4TestConfig("")
	cfg.CustomDomain = "https://cdn.example.com"

	tier, err := newSigV4Tier(cfg)
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example.com/image/a.png", tier.publicURL("image/a.png"))
}

func TestSigV4Tier_IncompleteConfigFails(t *testing.T) {
	cfg := sigv4TestConfig("")
	cfg.SecretAccessKey = ""
	_, err := newSigV4Tier(cfg)
	require.Error(t, err)
}

func TestLocalTier_PutOpenRoundTrip(t *testing.T) {
	tier, err := newLocalTier(config.TierConfig{Name: "fallback", Kind: "local", Dir: t.TempDir()}, "https://core.example.com/")
	require.NoError(t, err)

	url, err := tier.Put(context.Background(), "image/2026/08/a.png", []byte{0x89, 'P', 'N', 'G'}, "image/png")
	require.NoError(t, err)
	require.Equal(t, "https://core.example.com/objects/image/2026/08/a.png", url)

	data, _, err := tier.Open("image/2026/08/a.png")
	require.NoError(t, err)
	require.Equal(t, []byte{0x89, 'P', 'N', 'G'}, data)

	require.NoError(t, tier.Remove("image/2026/08/a.png"))
	_, _, err = tier.Open("image/2026/08/a.png")
	require.Error(t, err)
}

func TestLocalTier_RejectsTraversal(t *testing.T) {
	tier, err := newLocalTier(config.TierConfig{Name: "fallback", Kind: "local", Dir: t.TempDir()}, "https://core.example.com")
	require.NoError(t, err)

	_, err = tier.Put(context.Background(), "../escape.png", []byte("x"), "image/png")
	require.Error(t, err)
}
