package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	openaiclient "github.com/openai/openai-go/v2"
	openaioption "github.com/openai/openai-go/v2/option"

	"github.com/adforge/core/internal/config"
)

// openaiImageProvider generates images through the OpenAI Images API. The
// response is requested as base64 so bytes reach the hosting pipeline without
// a second fetch against an expiring URL.
type openaiImageProvider struct {
	id     string
	model  string
	client openaiclient.Client
}

func newOpenAIImageProvider(pc config.ProviderConfig) Provider {
	model := strings.TrimSpace(pc.Model)
	if model == "" {
		model = "dall-e-3"
	}
	opts := []openaioption.RequestOption{
		openaioption.WithAPIKey(strings.TrimSpace(pc.APIKey)),
		openaioption.WithMaxRetries(0),
	}
	if normalized := normalizeOpenAIBaseURL(pc.Endpoint); normalized != "" {
		opts = append(opts, openaioption.WithBaseURL(normalized))
	}
	return &openaiImageProvider{
		id:     pc.ID,
		model:  model,
		client: openaiclient.NewClient(opts...),
	}
}

func (p *openaiImageProvider) ID() string { return p.id }

func (p *openaiImageProvider) Kind() Kind { return KindImage }

func (p *openaiImageProvider) Submit(ctx context.Context, req Request) (*Output, error) {
	res, err := p.client.Images.Generate(ctx, openaiclient.ImageGenerateParams{
		Prompt:         composeUserPrompt(req),
		Model:          openaiclient.ImageModel(p.model),
		N:              openaiclient.Int(1),
		ResponseFormat: openaiclient.ImageGenerateParamsResponseFormatB64JSON,
	})
	if err != nil {
		return nil, err
	}
	if res == nil || len(res.Data) == 0 {
		return nil, errors.New("empty response from model")
	}

	item := res.Data[0]
	if item.B64JSON != "" {
		raw, err := base64.StdEncoding.DecodeString(item.B64JSON)
		if err != nil {
			return nil, fmt.Errorf("decode image payload: %w", err)
		}
		return &Output{ProviderID: p.id, Bytes: raw, ContentType: "image/png"}, nil
	}
	if item.URL != "" {
		return &Output{ProviderID: p.id, URL: item.URL, ContentType: "image/png"}, nil
	}
	return nil, errors.New("empty response from model")
}

// httpImageProvider speaks a minimal vendor-neutral contract: POST the prompt,
// get back either a short-lived URL or inline base64 depending on vendor type.
type httpImageProvider struct {
	id       string
	vendor   VendorType
	apiKey   string
	endpoint string
	model    string
	client   *http.Client
}

func newHTTPImageProvider(vt VendorType, pc config.ProviderConfig) Provider {
	return &httpImageProvider{
		id:       pc.ID,
		vendor:   vt,
		apiKey:   strings.TrimSpace(pc.APIKey),
		endpoint: strings.TrimRight(strings.TrimSpace(pc.Endpoint), "/"),
		model:    strings.TrimSpace(pc.Model),
		client:   &http.Client{},
	}
}

func (p *httpImageProvider) ID() string { return p.id }

func (p *httpImageProvider) Kind() Kind { return KindImage }

func (p *httpImageProvider) Submit(ctx context.Context, req Request) (*Output, error) {
	payload := map[string]interface{}{
		"prompt": req.Prompt,
	}
	if p.model != "" {
		payload["model"] = p.model
	}
	if strings.TrimSpace(req.Style) != "" {
		payload["style"] = req.Style
	}
	if strings.TrimSpace(req.ReferenceURL) != "" {
		payload["reference_url"] = req.ReferenceURL
	}

	body, _ := json.Marshal(payload)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint+"/generate", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("image provider error: %s", strings.TrimSpace(string(respBody)))
	}

	var result struct {
		URL         string `json:"url"`
		ImageBase64 string `json:"image_base64"`
		ContentType string `json:"content_type"`
		Error       string `json:"error"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, err
	}
	if strings.TrimSpace(result.Error) != "" {
		return nil, fmt.Errorf("image provider error: %s", result.Error)
	}

	contentType := result.ContentType
	if contentType == "" {
		contentType = "image/png"
	}

	switch p.vendor {
	case VendorHTTPBase64:
		if result.ImageBase64 == "" {
			return nil, errors.New("image provider returned no payload")
		}
		raw, err := base64.StdEncoding.DecodeString(result.ImageBase64)
		if err != nil {
			return nil, fmt.Errorf("decode image payload: %w", err)
		}
		return &Output{ProviderID: p.id, Bytes: raw, ContentType: contentType}, nil
	default:
		if result.URL == "" {
			return nil, errors.New("image provider returned no url")
		}
		return &Output{ProviderID: p.id, URL: result.URL, ContentType: contentType}, nil
	}
}
