package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/adforge/core/internal/config"
)

// Kind is the media kind a provider produces.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

// VendorType is the closed set of supported vendor integrations. The
// orchestrator never branches on raw strings; each type is bound to a Provider
// implementation at startup.
type VendorType string

const (
	VendorOpenAI           VendorType = "openai"
	VendorAnthropic        VendorType = "anthropic"
	VendorOpenAICompatible VendorType = "openai-compatible"
	VendorOpenAIImage      VendorType = "openai-image"
	VendorHTTPURL          VendorType = "http-url"
	VendorHTTPBase64       VendorType = "http-base64"
	VendorHTTPPoll         VendorType = "http-poll"
)

// Request carries the prompt material passed uniformly to every provider in a
// chain. Providers that do not support a reference asset ignore it.
type Request struct {
	SystemPrompt string
	Prompt       string
	Style        string
	ReferenceURL string
}

// Output is a raw generation result. Exactly one of Text, URL, or Bytes is
// set; URLs may expire within hours and must be captured immediately.
type Output struct {
	ProviderID  string
	Text        string
	URL         string
	Bytes       []byte
	ContentType string
}

// Provider abstracts one external generation vendor.
type Provider interface {
	ID() string
	Kind() Kind
	Submit(ctx context.Context, req Request) (*Output, error)
}

// Chains holds the ordered fallback chain per media kind.
type Chains map[Kind][]Provider

// BuildChains constructs providers from config, preserving list order.
// Disabled entries are skipped; an unknown type is a startup error rather than
// a runtime fallback.
func BuildChains(cfg config.ProvidersConfig, timeouts config.TimeoutsConfig) (Chains, error) {
	chains := Chains{}
	pollCeiling := time.Duration(timeouts.VideoCeilingSeconds) * time.Second
	for _, group := range []struct {
		kind Kind
		list []config.ProviderConfig
	}{
		{KindText, cfg.Text},
		{KindImage, cfg.Image},
		{KindVideo, cfg.Video},
	} {
		for _, pc := range group.list {
			if pc.Disabled {
				continue
			}
			p, err := newProvider(group.kind, pc, pollCeiling)
			if err != nil {
				return nil, fmt.Errorf("providers.%s: %w", group.kind, err)
			}
			chains[group.kind] = append(chains[group.kind], p)
		}
	}
	return chains, nil
}

func newProvider(kind Kind, pc config.ProviderConfig, pollCeiling time.Duration) (Provider, error) {
	vt := VendorType(normalizeVendorType(pc.Type))
	switch vt {
	case VendorOpenAI, VendorAnthropic, VendorOpenAICompatible:
		if kind != KindText {
			return nil, fmt.Errorf("provider %s: type %s generates text, not %s", pc.ID, vt, kind)
		}
		return newTextProvider(vt, pc)
	case VendorOpenAIImage:
		if kind != KindImage {
			return nil, fmt.Errorf("provider %s: type %s generates images, not %s", pc.ID, vt, kind)
		}
		return newOpenAIImageProvider(pc), nil
	case VendorHTTPURL, VendorHTTPBase64:
		if kind != KindImage {
			return nil, fmt.Errorf("provider %s: type %s generates images, not %s", pc.ID, vt, kind)
		}
		return newHTTPImageProvider(vt, pc), nil
	case VendorHTTPPoll:
		if kind != KindVideo {
			return nil, fmt.Errorf("provider %s: type %s generates video, not %s", pc.ID, vt, kind)
		}
		return newHTTPPollProvider(pc, pollCeiling), nil
	default:
		return nil, fmt.Errorf("provider %s: unknown type %q", pc.ID, pc.Type)
	}
}

func normalizeVendorType(raw string) string {
	t := strings.ToLower(strings.TrimSpace(raw))
	t = strings.ReplaceAll(t, "_", "-")
	t = strings.ReplaceAll(t, " ", "")
	if t == "openaicompatible" {
		t = "openai-compatible"
	}
	return t
}
