package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"strings"

	anthropicclient "github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	openaiclient "github.com/openai/openai-go/v2"
	openaioption "github.com/openai/openai-go/v2/option"
	jetai "go.jetify.com/ai"
	jetapi "go.jetify.com/ai/api"
	jetanthropic "go.jetify.com/ai/provider/anthropic"
	jetopenai "go.jetify.com/ai/provider/openai"

	"github.com/adforge/core/internal/config"
)

const textMaxOutputTokens = 1024

// textProvider generates ad copy through a jetify language model. OpenAI and
// Anthropic share this implementation; only model construction differs.
type textProvider struct {
	id    string
	model jetapi.LanguageModel
}

func newTextProvider(vt VendorType, pc config.ProviderConfig) (Provider, error) {
	if vt == VendorOpenAICompatible {
		return newCompatibleTextProvider(pc)
	}
	model, err := buildLanguageModel(vt, pc)
	if err != nil {
		return nil, err
	}
	return &textProvider{id: pc.ID, model: model}, nil
}

func (p *textProvider) ID() string { return p.id }

func (p *textProvider) Kind() Kind { return KindText }

func (p *textProvider) Submit(ctx context.Context, req Request) (*Output, error) {
	resp, err := jetai.GenerateText(
		ctx,
		buildPromptMessages(req.SystemPrompt, composeUserPrompt(req)),
		jetai.WithModel(p.model),
		jetai.WithMaxOutputTokens(textMaxOutputTokens),
	)
	if err != nil {
		return nil, err
	}
	text, err := extractTextFromResponse(resp)
	if err != nil {
		return nil, err
	}
	return &Output{ProviderID: p.id, Text: text}, nil
}

func buildLanguageModel(vt VendorType, pc config.ProviderConfig) (jetapi.LanguageModel, error) {
	apiKey := strings.TrimSpace(pc.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("provider %s: api key is empty", pc.ID)
	}

	modelID := strings.TrimSpace(pc.Model)
	endpoint := strings.TrimSpace(pc.Endpoint)

	if vt == VendorAnthropic {
		if modelID == "" {
			modelID = "claude-haiku-4-5-20251001"
		}
		opts := []anthropicoption.RequestOption{
			anthropicoption.WithAPIKey(apiKey),
			anthropicoption.WithMaxRetries(0),
		}
		if endpoint != "" {
			opts = append(opts, anthropicoption.WithBaseURL(strings.TrimRight(endpoint, "/")))
		}
		client := anthropicclient.NewClient(opts...)
		return jetanthropic.NewLanguageModel(modelID, jetanthropic.WithClient(client)), nil
	}

	if modelID == "" {
		modelID = "gpt-4o-mini"
	}
	opts := []openaioption.RequestOption{
		openaioption.WithAPIKey(apiKey),
		openaioption.WithMaxRetries(0),
	}
	if normalized := normalizeOpenAIBaseURL(endpoint); normalized != "" {
		opts = append(opts, openaioption.WithBaseURL(normalized))
	}
	client := openaiclient.NewClient(opts...)
	return jetopenai.NewLanguageModel(modelID, jetopenai.WithClient(client)), nil
}

// compatibleTextProvider speaks raw chat-completions HTTP for vendors that
// claim OpenAI compatibility but choke on the official SDK.
type compatibleTextProvider struct {
	id       string
	apiKey   string
	endpoint string
	model    string
	client   *http.Client
}

func newCompatibleTextProvider(pc config.ProviderConfig) (Provider, error) {
	if strings.TrimSpace(pc.APIKey) == "" {
		return nil, fmt.Errorf("provider %s: api key is empty", pc.ID)
	}
	model := strings.TrimSpace(pc.Model)
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &compatibleTextProvider{
		id:       pc.ID,
		apiKey:   strings.TrimSpace(pc.APIKey),
		endpoint: normalizeCompatibleEndpoint(pc.Endpoint),
		model:    model,
		client:   &http.Client{},
	}, nil
}

func (p *compatibleTextProvider) ID() string { return p.id }

func (p *compatibleTextProvider) Kind() Kind { return KindText }

func (p *compatibleTextProvider) Submit(ctx context.Context, req Request) (*Output, error) {
	messages := make([]map[string]string, 0, 2)
	if strings.TrimSpace(req.SystemPrompt) != "" {
		messages = append(messages, map[string]string{
			"role":    "system",
			"content": req.SystemPrompt,
		})
	}
	messages = append(messages, map[string]string{
		"role":    "user",
		"content": composeUserPrompt(req),
	})

	body, _ := json.Marshal(map[string]interface{}{
		"model":      p.model,
		"messages":   messages,
		"max_tokens": textMaxOutputTokens,
	})

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
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
		return nil, fmt.Errorf("chat completions error: %s", strings.TrimSpace(string(respBody)))
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, err
	}
	if result.Error != nil && strings.TrimSpace(result.Error.Message) != "" {
		return nil, fmt.Errorf("chat completions error: %s", result.Error.Message)
	}
	if strings.TrimSpace(result.Message) != "" && len(result.Choices) == 0 {
		return nil, fmt.Errorf("chat completions error: %s", result.Message)
	}
	if len(result.Choices) == 0 {
		return nil, errors.New("empty response from model")
	}
	return &Output{ProviderID: p.id, Text: result.Choices[0].Message.Content}, nil
}

func composeUserPrompt(req Request) string {
	if strings.TrimSpace(req.Style) == "" {
		return req.Prompt
	}
	return req.Prompt + "\n\nStyle: " + req.Style
}

func buildPromptMessages(systemPrompt, prompt string) []jetapi.Message {
	messages := make([]jetapi.Message, 0, 2)
	if strings.TrimSpace(systemPrompt) != "" {
		messages = append(messages, &jetapi.SystemMessage{Content: systemPrompt})
	}
	messages = append(messages, &jetapi.UserMessage{Content: jetapi.ContentFromText(prompt)})
	return messages
}

func extractTextFromResponse(resp *jetapi.Response) (string, error) {
	if resp == nil {
		return "", errors.New("empty response from model")
	}

	var full strings.Builder
	for _, block := range resp.Content {
		textBlock, ok := block.(*jetapi.TextBlock)
		if !ok || textBlock.Text == "" {
			continue
		}
		full.WriteString(textBlock.Text)
	}

	text := full.String()
	if strings.TrimSpace(text) == "" {
		return "", errors.New("empty response from model")
	}
	return text, nil
}

// UnmarshalModelJSON parses a JSON object out of a model reply, tolerating
// markdown fences and leading prose.
func UnmarshalModelJSON(raw string, out interface{}) error {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```JSON")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	if err := json.Unmarshal([]byte(cleaned), out); err == nil {
		return nil
	}

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(cleaned[start:end+1]), out); err == nil {
			return nil
		}
	}

	return errors.New("invalid JSON response from model")
}

func normalizeOpenAIBaseURL(raw string) string {
	base := strings.TrimSpace(raw)
	if base == "" {
		return ""
	}
	parsed, err := neturl.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return strings.TrimRight(base, "/")
	}

	path := strings.TrimRight(parsed.Path, "/")
	if !strings.HasSuffix(path, "/v1") {
		if path == "" {
			path = "/v1"
		} else {
			path += "/v1"
		}
	}
	parsed.Path = path
	return strings.TrimRight(parsed.String(), "/")
}

func normalizeCompatibleEndpoint(raw string) string {
	base := strings.TrimSpace(raw)
	if base == "" {
		return "https://api.openai.com"
	}

	parsed, err := neturl.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		cleaned := strings.TrimRight(base, "/")
		cleaned = strings.TrimSuffix(cleaned, "/v1")
		return cleaned
	}

	path := strings.TrimRight(parsed.Path, "/")
	path = strings.TrimSuffix(path, "/v1")
	parsed.Path = path
	return strings.TrimRight(parsed.String(), "/")
}
