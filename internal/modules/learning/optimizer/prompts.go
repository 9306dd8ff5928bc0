package optimizer

import (
	"fmt"
	"strings"

	"github.com/adforge/core/internal/models"
)

func buildSystemPrompt(platform, language, contentType string, patterns []models.LearningPatternModel) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are an expert marketing copywriter. Write %s ad content for %s.\n", contentType, platform)
	fmt.Fprintf(&b, "Write in %s.\n", languageName(language))
	b.WriteString("Keep the copy on-brand, specific, and free of filler phrases.\n")

	if len(patterns) == 0 {
		b.WriteString("Aim for a clear hook in the first line and a single call to action.")
		return b.String()
	}

	b.WriteString("\nContent with these characteristics has performed best for this audience:\n")
	for _, p := range patterns {
		fmt.Fprintf(&b, "- %s (avg score %d over %d uses)\n",
			describePattern(p), p.AvgPerformanceScore, p.UsageCount)
	}
	b.WriteString("Apply these characteristics where they fit naturally; never force all of them into one piece.")

	return b.String()
}

func describePattern(p models.LearningPatternModel) string {
	switch p.PatternType {
	case "structure":
		return fmt.Sprintf("%s structure", p.PatternData)
	case "sentiment":
		return fmt.Sprintf("%s tone", p.PatternData)
	case "length":
		return fmt.Sprintf("%s length", p.PatternData)
	case "feature-flags":
		if p.PatternData == "none" {
			return "plain copy without emoji, hashtags, or explicit CTA"
		}
		return fmt.Sprintf("using %s", strings.ReplaceAll(p.PatternData, "+", ", "))
	default:
		return fmt.Sprintf("%s: %s", p.PatternType, p.PatternData)
	}
}

func languageName(code string) string {
	switch strings.ToLower(strings.TrimSpace(code)) {
	case "en", "en-us", "en-gb":
		return "English"
	case "de":
		return "German"
	case "fr":
		return "French"
	case "es":
		return "Spanish"
	case "pt", "pt-br":
		return "Portuguese"
	case "ja":
		return "Japanese"
	case "zh", "zh-cn":
		return "Simplified Chinese"
	default:
		return code
	}
}
