package performance

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm/clause"

	"github.com/adforge/core/internal/config"
)

func scoringService() *Service {
	return &Service{cfg: config.LearningConfig{
		MinPatternScore: 70,
		ScoreWeights:    config.ScoreWeights{Engagement: 40, ClickThrough: 30, Conversion: 30},
	}}
}

func TestMetrics_DerivedRates(t *testing.T) {
	m := Metrics{Views: 1000, Likes: 60, Comments: 25, Shares: 15, Clicks: 200, Conversions: 30}

	// (60+25+15)/1000, 200/1000, 30/200 as percentages.
	require.InDelta(t, 10.0, m.EngagementRate(), 0.001)
	require.InDelta(t, 20.0, m.ClickThroughRate(), 0.001)
	require.InDelta(t, 15.0, m.ConversionRate(), 0.001)
}

func TestMetrics_RatesCappedAtHundred(t *testing.T) {
	// A viral post can collect more reactions than views; the rate still
	// contributes at most its full weight.
	m := Metrics{Views: 100, Likes: 5000, Clicks: 100, Conversions: 100}
	require.Equal(t, 100.0, m.EngagementRate())
	require.Equal(t, 100.0, m.ClickThroughRate())
	require.Equal(t, 100.0, m.ConversionRate())
}

func TestMetrics_ZeroDenominators(t *testing.T) {
	require.Equal(t, 0.0, Metrics{Likes: 50}.EngagementRate())
	require.Equal(t, 0.0, Metrics{Views: 100}.ClickThroughRate())
	// No clicks means no conversion rate, whatever was reported.
	require.Equal(t, 0.0, Metrics{Views: 100, Conversions: 10}.ConversionRate())
}

func TestComputeScore_Blend(t *testing.T) {
	svc := scoringService()

	require.Equal(t, 0, svc.ComputeScore(Metrics{}))

	// Rates 10/20/15 → 10*0.4 + 20*0.3 + 15*0.3 = 14.5, rounded to 15.
	m := Metrics{Views: 1000, Likes: 60, Comments: 25, Shares: 15, Clicks: 200, Conversions: 30}
	require.Equal(t, 15, svc.ComputeScore(m))

	// All three rates at their cap yields a perfect score.
	perfect := Metrics{Views: 100, Likes: 100, Clicks: 100, Conversions: 100}
	require.Equal(t, 100, svc.ComputeScore(perfect))

	// A capped engagement rate alone cannot exceed its 40-point share.
	viral := Metrics{Views: 10, Likes: 9000}
	require.Equal(t, 40, svc.ComputeScore(viral))
}

func TestExtractHeuristics_CallToActionAndHashtag(t *testing.T) {
	f := extractHeuristics("Love our new collection? Shop now and save 20% #summer #sale")

	require.Equal(t, "short", f.LengthBucket)
	require.True(t, f.HasHashtag)
	require.True(t, f.HasQuestion)
	require.True(t, f.HasCallToAction)
	require.Equal(t, "positive", f.Sentiment)
	require.Equal(t, "question-led", f.Structure)
}

func TestExtractHeuristics_ListStructure(t *testing.T) {
	content := "Why customers pick us:\n- free shipping\n- easy returns\n- 24/7 support"
	f := extractHeuristics(content)

	require.Equal(t, "list", f.Structure)
	require.False(t, f.HasEmoji)
}

func TestExtractHeuristics_PlainStatement(t *testing.T) {
	f := extractHeuristics("Our boots are made from recycled rubber.")

	require.Equal(t, "statement", f.Structure)
	require.Equal(t, "neutral", f.Sentiment)
	require.False(t, f.HasCallToAction)
	require.False(t, f.HasHashtag)
}

func TestExtractHeuristics_Emoji(t *testing.T) {
	f := extractHeuristics("New drop is here 🔥")
	require.True(t, f.HasEmoji)
}

func TestPatternsOf_FlattensFeatures(t *testing.T) {
	f := extractHeuristics("Love our new collection? Shop now #sale")
	patterns := patternsOf(f)

	require.Equal(t, "question-led", patterns["structure"])
	require.Equal(t, "positive", patterns["sentiment"])
	require.Equal(t, "short", patterns["length"])
	require.Equal(t, "hashtag+question+cta", patterns["feature-flags"])
}

func TestPatternsOf_NoFlags(t *testing.T) {
	f := extractHeuristics("Our boots are made from recycled rubber.")
	require.Equal(t, "none", patternsOf(f)["feature-flags"])
}

func TestPatternHash_StableAndSegmented(t *testing.T) {
	h1 := patternHash("instagram", "en", "text", "structure", "question-led")
	h2 := patternHash("instagram", "en", "text", "structure", "question-led")
	h3 := patternHash("tiktok", "en", "text", "structure", "question-led")

	require.Equal(t, h1, h2)
	require.NotEqual(t, h1, h3)
	require.Len(t, h1, 64)
}

func TestHeuristicExtractor_NeverFails(t *testing.T) {
	var e extractor = heuristicExtractor{}
	f, err := e.Extract(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, "short", f.LengthBucket)
}

func TestPatternUpdateAssignments_AverageAssignedBeforeCount(t *testing.T) {
	now := time.Now()
	set := patternUpdateAssignments(88, now)

	require.Len(t, set, 3)
	require.Equal(t, "avg_performance_score", set[0].Column.Name)
	require.Equal(t, clause.Expr{
		SQL:  "ROUND((avg_performance_score * usage_count + ?) / (usage_count + 1))",
		Vars: []interface{}{88},
	}, set[0].Value)
	require.Equal(t, "usage_count", set[1].Column.Name)
	require.Equal(t, clause.Expr{SQL: "usage_count + 1"}, set[1].Value)
	require.Equal(t, "last_used_at", set[2].Column.Name)
	require.Equal(t, now, set[2].Value)
}

// replayAverage applies the conflict-update recurrence the way MySQL executes
// it, row state carried between reports.
func replayAverage(scores []int) (avg int, count int64) {
	for i, score := range scores {
		if i == 0 {
			avg, count = score, 1
			continue
		}
		avg = int(math.Round((float64(avg)*float64(count) + float64(score)) / float64(count+1)))
		count++
	}
	return avg, count
}

func TestRunningAverage_MatchesMean(t *testing.T) {
	avg, count := replayAverage([]int{80, 90})
	require.Equal(t, 85, avg)
	require.Equal(t, int64(2), count)

	avg, count = replayAverage([]int{70, 80, 90})
	require.Equal(t, 80, avg)
	require.Equal(t, int64(3), count)

	avg, _ = replayAverage([]int{75, 75, 75, 75})
	require.Equal(t, 75, avg)
}

func TestRunningAverage_RoundingDriftStaysBounded(t *testing.T) {
	scores := []int{71, 88, 93, 77, 84, 91, 72, 95, 86, 79}

	sum := 0
	for _, s := range scores {
		sum += s
	}
	mean := float64(sum) / float64(len(scores))

	avg, count := replayAverage(scores)
	require.Equal(t, int64(len(scores)), count)
	require.InDelta(t, mean, float64(avg), 1.0)
}
