package performance

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/adforge/core/internal/config"
	"github.com/adforge/core/internal/models"
	"github.com/adforge/core/internal/modules/generation/provider"
)

// ErrIncompleteExtraction is returned when the AI extractor replies with
// something structurally valid but missing required classifications.
var ErrIncompleteExtraction = errors.New("incomplete feature extraction")

// Metrics are the raw engagement counts reported back by the publishing
// platform. Rates are derived here, not by the caller.
type Metrics struct {
	Views       int64 `json:"views"`
	Likes       int64 `json:"likes"`
	Comments    int64 `json:"comments"`
	Shares      int64 `json:"shares"`
	Clicks      int64 `json:"clicks"`
	Conversions int64 `json:"conversions"`
}

// EngagementRate is (likes+comments+shares)/views as a percentage, capped at
// 100.
func (m Metrics) EngagementRate() float64 {
	return cappedRate(m.Likes+m.Comments+m.Shares, m.Views)
}

// ClickThroughRate is clicks/views as a percentage, capped at 100.
func (m Metrics) ClickThroughRate() float64 {
	return cappedRate(m.Clicks, m.Views)
}

// ConversionRate is conversions/clicks as a percentage, capped at 100.
func (m Metrics) ConversionRate() float64 {
	return cappedRate(m.Conversions, m.Clicks)
}

func cappedRate(part, whole int64) float64 {
	if part <= 0 || whole <= 0 {
		return 0
	}
	rate := float64(part) / float64(whole) * 100
	if rate > 100 {
		return 100
	}
	return rate
}

// RecordInput describes one performance report for a published content piece.
type RecordInput struct {
	ContentID   string
	UserID      string
	Platform    string
	Language    string
	ContentType string
	Content     string
	Metrics     Metrics
	RawMetrics  map[string]interface{}
}

// Service turns performance reports into append-only records and aggregated
// learning patterns that feed the prompt optimizer.
type Service struct {
	db        *gorm.DB
	cfg       config.LearningConfig
	ai        extractor
	heuristic extractor
	logger    *zap.Logger
}

func NewService(db *gorm.DB, cfg config.LearningConfig, chains provider.Chains, logger *zap.Logger) *Service {
	s := &Service{
		db:        db,
		cfg:       cfg,
		heuristic: heuristicExtractor{},
		logger:    logger,
	}
	if id := strings.TrimSpace(cfg.ExtractionProvider); id != "" {
		for _, p := range chains[provider.KindText] {
			if p.ID() == id {
				s.ai = &aiExtractor{provider: p}
				break
			}
		}
		if s.ai == nil {
			logger.Warn("extraction provider not found in text chain, using heuristics only",
				zap.String("provider", id))
		}
	}
	return s
}

// ComputeScore blends the three derived rates into one 0-100 score using the
// configured weights. Each rate is capped before weighting so a single
// runaway metric cannot dominate the blend.
func (s *Service) ComputeScore(m Metrics) int {
	w := s.cfg.ScoreWeights
	blended := m.EngagementRate()*float64(w.Engagement) +
		m.ClickThroughRate()*float64(w.ClickThrough) +
		m.ConversionRate()*float64(w.Conversion)
	return int(math.Round(blended / 100))
}

// Record persists one performance report and, when the content performed well
// enough, folds its features into the aggregated patterns. Feature extraction
// never fails the report: the heuristic path always produces something.
func (s *Service) Record(ctx context.Context, in RecordInput) (*models.ContentPerformanceRecordModel, error) {
	features, degraded := s.extractFeatures(ctx, in.Content)
	score := s.ComputeScore(in.Metrics)

	record := &models.ContentPerformanceRecordModel{
		ContentID:        in.ContentID,
		UserID:           in.UserID,
		Platform:         in.Platform,
		Language:         in.Language,
		ContentType:      in.ContentType,
		Features:         features,
		PerformanceScore: score,
		RawMetrics:       in.RawMetrics,
		DegradedFeatures: degraded,
	}
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return nil, fmt.Errorf("create performance record: %w", err)
	}

	if score > s.cfg.MinPatternScore {
		if err := s.upsertPatterns(ctx, in, features, score); err != nil {
			// Pattern aggregation is best-effort; the record is already
			// durable.
			s.logger.Error("upsert learning patterns", zap.Error(err))
		}
	}
	return record, nil
}

func (s *Service) extractFeatures(ctx context.Context, content string) (models.ContentFeatures, bool) {
	if s.ai != nil {
		features, err := s.ai.Extract(ctx, content)
		if err == nil {
			return features, false
		}
		s.logger.Warn("ai feature extraction failed, falling back to heuristics", zap.Error(err))
	}
	features, _ := s.heuristic.Extract(ctx, content)
	return features, s.ai != nil
}

// patternsOf flattens the feature set into the four aggregated dimensions.
func patternsOf(f models.ContentFeatures) map[string]string {
	flags := make([]string, 0, 4)
	if f.HasEmoji {
		flags = append(flags, "emoji")
	}
	if f.HasHashtag {
		flags = append(flags, "hashtag")
	}
	if f.HasQuestion {
		flags = append(flags, "question")
	}
	if f.HasCallToAction {
		flags = append(flags, "cta")
	}
	flagData := "none"
	if len(flags) > 0 {
		flagData = strings.Join(flags, "+")
	}

	return map[string]string{
		"structure":     f.Structure,
		"sentiment":     f.Sentiment,
		"length":        f.LengthBucket,
		"feature-flags": flagData,
	}
}

func (s *Service) upsertPatterns(ctx context.Context, in RecordInput, features models.ContentFeatures, score int) error {
	now := time.Now()
	for patternType, patternData := range patternsOf(features) {
		if patternData == "" {
			continue
		}
		pattern := models.LearningPatternModel{
			Hash:                patternHash(in.Platform, in.Language, in.ContentType, patternType, patternData),
			Platform:            in.Platform,
			Language:            in.Language,
			ContentType:         in.ContentType,
			PatternType:         patternType,
			PatternData:         patternData,
			AvgPerformanceScore: score,
			UsageCount:          1,
			LastUsedAt:          now,
		}

		err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "hash"}},
			DoUpdates: patternUpdateAssignments(score, now),
		}).Create(&pattern).Error
		if err != nil {
			return err
		}
	}
	return nil
}

// patternUpdateAssignments builds the conflict-update list for an existing
// pattern row: newAvg = round((oldAvg*oldCount + score) / (oldCount+1)).
// Order matters: the average must read usage_count before it increments,
// and MySQL applies DO UPDATE assignments left to right.
func patternUpdateAssignments(score int, now time.Time) clause.Set {
	return clause.Set{
		{
			Column: clause.Column{Name: "avg_performance_score"},
			Value: gorm.Expr(
				"ROUND((avg_performance_score * usage_count + ?) / (usage_count + 1))", score),
		},
		{Column: clause.Column{Name: "usage_count"}, Value: gorm.Expr("usage_count + 1")},
		{Column: clause.Column{Name: "last_used_at"}, Value: now},
	}
}

func patternHash(platform, language, contentType, patternType, patternData string) string {
	raw := strings.Join([]string{platform, language, contentType, patternType, patternData}, "|")
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
