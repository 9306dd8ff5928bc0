package optimizer

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/adforge/core/internal/config"
	"github.com/adforge/core/internal/models"
)

// Service enriches generation prompts with the best-performing patterns seen
// for a (platform, language, contentType) segment. With no history it falls
// back to a baseline prompt, so generation never waits on learning data.
type Service struct {
	db     *gorm.DB
	cfg    config.LearningConfig
	logger *zap.Logger
}

func NewService(db *gorm.DB, cfg config.LearningConfig, logger *zap.Logger) *Service {
	return &Service{db: db, cfg: cfg, logger: logger}
}

// Optimize returns the system prompt for a text generation. The result is
// deterministic for a given pattern state: the query orders by score, usage,
// then hash, so repeated calls compose the same prompt.
func (s *Service) Optimize(ctx context.Context, platform, language, contentType string) (string, []models.LearningPatternModel, error) {
	limit := s.cfg.TopPatterns
	if limit <= 0 {
		limit = 5
	}

	var patterns []models.LearningPatternModel
	err := s.db.WithContext(ctx).
		Where("platform = ? AND language = ? AND content_type = ?", platform, language, contentType).
		Order("avg_performance_score DESC, usage_count DESC, hash ASC").
		Limit(limit).
		Find(&patterns).Error
	if err != nil {
		// Degrade to the baseline prompt rather than failing the generation.
		s.logger.Warn("pattern lookup failed, using baseline prompt", zap.Error(err))
		return buildSystemPrompt(platform, language, contentType, nil), nil, nil
	}

	return buildSystemPrompt(platform, language, contentType, patterns), patterns, nil
}
