package performance

import (
	"context"
	"regexp"
	"strings"
	"unicode"

	"github.com/adforge/core/internal/models"
	"github.com/adforge/core/internal/modules/generation/provider"
)

var (
	hashtagPattern  = regexp.MustCompile(`(^|\s)#[\p{L}\p{N}_]+`)
	listLinePattern = regexp.MustCompile(`(?m)^\s*(?:[-*•]|\d+[.)])\s+`)
)

var ctaPhrases = []string{
	"buy now", "shop now", "sign up", "learn more", "get started",
	"try it", "order now", "subscribe", "download", "click here",
	"join", "discover", "don't miss", "limited time", "book now",
}

var positiveWords = []string{
	"love", "great", "amazing", "best", "beautiful", "perfect",
	"exclusive", "free", "new", "win", "enjoy", "easy", "save",
}

var negativeWords = []string{
	"tired", "struggle", "worst", "hate", "problem", "pain",
	"never", "stop", "avoid", "fail", "stuck",
}

// extractor produces content features, possibly via an AI provider.
type extractor interface {
	Extract(ctx context.Context, content string) (models.ContentFeatures, error)
}

// heuristicExtractor is the always-available fallback: cheap lexical rules
// that never fail. The AI extractor only refines what this one guesses.
type heuristicExtractor struct{}

func (heuristicExtractor) Extract(_ context.Context, content string) (models.ContentFeatures, error) {
	return extractHeuristics(content), nil
}

func extractHeuristics(content string) models.ContentFeatures {
	trimmed := strings.TrimSpace(content)
	lower := strings.ToLower(trimmed)
	length := len([]rune(trimmed))

	f := models.ContentFeatures{
		Length:       length,
		LengthBucket: lengthBucket(length),
		HasEmoji:     containsEmoji(trimmed),
		HasHashtag:   hashtagPattern.MatchString(trimmed),
		HasQuestion:  strings.ContainsAny(trimmed, "?？"),
	}

	for _, phrase := range ctaPhrases {
		if strings.Contains(lower, phrase) {
			f.HasCallToAction = true
			break
		}
	}

	f.Sentiment = detectSentiment(lower)
	f.Structure = detectStructure(trimmed, f.HasQuestion)
	return f
}

func lengthBucket(length int) string {
	switch {
	case length < 80:
		return "short"
	case length < 280:
		return "medium"
	default:
		return "long"
	}
}

func containsEmoji(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.So, r) || (r >= 0x1F000 && r <= 0x1FAFF) {
			return true
		}
	}
	return false
}

func detectSentiment(lower string) string {
	score := 0
	for _, w := range positiveWords {
		if strings.Contains(lower, w) {
			score++
		}
	}
	for _, w := range negativeWords {
		if strings.Contains(lower, w) {
			score--
		}
	}
	switch {
	case score > 0:
		return "positive"
	case score < 0:
		return "negative"
	default:
		return "neutral"
	}
}

func detectStructure(content string, hasQuestion bool) string {
	if listLinePattern.MatchString(content) {
		return "list"
	}
	firstSentence := content
	for _, sep := range []string{". ", "! ", "\n"} {
		if idx := strings.Index(firstSentence, sep); idx >= 0 {
			firstSentence = firstSentence[:idx+1]
		}
	}
	if hasQuestion && strings.ContainsAny(firstSentence, "?？") {
		return "question-led"
	}
	if len([]rune(content)) >= 280 && strings.Count(content, "\n") >= 2 {
		return "story"
	}
	return "statement"
}

// aiExtractor asks a text provider to classify content, falling back to the
// heuristics when the model misbehaves. Callers check the returned degraded
// flag; learning still proceeds either way.
type aiExtractor struct {
	provider provider.Provider
}

const extractionSystemPrompt = `You analyze marketing copy. Reply with only a JSON object:
{"length_bucket":"short|medium|long","sentiment":"positive|neutral|negative","has_emoji":bool,"has_hashtag":bool,"has_question":bool,"has_call_to_action":bool,"structure":"question-led|list|story|statement"}`

func (e *aiExtractor) Extract(ctx context.Context, content string) (models.ContentFeatures, error) {
	out, err := e.provider.Submit(ctx, provider.Request{
		SystemPrompt: extractionSystemPrompt,
		Prompt:       content,
	})
	if err != nil {
		return models.ContentFeatures{}, err
	}

	var parsed struct {
		LengthBucket    string `json:"length_bucket"`
		Sentiment       string `json:"sentiment"`
		HasEmoji        bool   `json:"has_emoji"`
		HasHashtag      bool   `json:"has_hashtag"`
		HasQuestion     bool   `json:"has_question"`
		HasCallToAction bool   `json:"has_call_to_action"`
		Structure       string `json:"structure"`
	}
	if err := provider.UnmarshalModelJSON(out.Text, &parsed); err != nil {
		return models.ContentFeatures{}, err
	}

	length := len([]rune(strings.TrimSpace(content)))
	f := models.ContentFeatures{
		Length:          length,
		LengthBucket:    parsed.LengthBucket,
		Sentiment:       parsed.Sentiment,
		HasEmoji:        parsed.HasEmoji,
		HasHashtag:      parsed.HasHashtag,
		HasQuestion:     parsed.HasQuestion,
		HasCallToAction: parsed.HasCallToAction,
		Structure:       parsed.Structure,
	}
	if f.LengthBucket == "" {
		f.LengthBucket = lengthBucket(length)
	}
	if f.Sentiment == "" || f.Structure == "" {
		return models.ContentFeatures{}, ErrIncompleteExtraction
	}
	return f, nil
}
