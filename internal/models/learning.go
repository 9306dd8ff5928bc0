package models

import "time"

// ContentFeatures is the structured feature set extracted from a piece of
// content when engagement metrics are reported back.
type ContentFeatures struct {
	Length          int    `json:"length"`
	LengthBucket    string `json:"length_bucket"` // short | medium | long
	Sentiment       string `json:"sentiment"`     // positive | neutral | negative
	HasEmoji        bool   `json:"has_emoji"`
	HasHashtag      bool   `json:"has_hashtag"`
	HasQuestion     bool   `json:"has_question"`
	HasCallToAction bool   `json:"has_call_to_action"`
	Structure       string `json:"structure"` // question-led | list | story | statement
}

// ContentPerformanceRecordModel is an append-only record created when external
// engagement metrics are reported for a published piece of content.
type ContentPerformanceRecordModel struct {
	Base
	ContentID        string                 `json:"content_id"        gorm:"index;not null"`
	UserID           string                 `json:"user_id"           gorm:"index;not null"`
	Platform         string                 `json:"platform"          gorm:"index;not null"`
	Language         string                 `json:"language"          gorm:"not null"`
	ContentType      string                 `json:"content_type"      gorm:"not null"`
	Features         ContentFeatures        `json:"features"          gorm:"type:longtext;serializer:json"`
	PerformanceScore int                    `json:"performance_score" gorm:"not null"`
	RawMetrics       map[string]interface{} `json:"raw_metrics"       gorm:"type:longtext;serializer:json"`
	DegradedFeatures bool                   `json:"degraded_features"` // heuristic extractor used
}

func (ContentPerformanceRecordModel) TableName() string { return "content_performance_records" }

// LearningPatternModel aggregates how a content characteristic performs within
// a (platform, language, contentType) segment. Hash is sha256 over the full
// five-part key so the running-average upsert is a single ON CONFLICT
// statement. Rows are never deleted; UsageCount only increases.
type LearningPatternModel struct {
	Base
	Hash                string    `json:"hash"                  gorm:"uniqueIndex;not null"`
	Platform            string    `json:"platform"              gorm:"index;not null"`
	Language            string    `json:"language"              gorm:"index;not null"`
	ContentType         string    `json:"content_type"          gorm:"index;not null"`
	PatternType         string    `json:"pattern_type"          gorm:"not null"` // structure | sentiment | length | feature-flags
	PatternData         string    `json:"pattern_data"          gorm:"not null"`
	AvgPerformanceScore int       `json:"avg_performance_score" gorm:"not null"`
	UsageCount          int64     `json:"usage_count"           gorm:"not null;default:1"`
	LastUsedAt          time.Time `json:"last_used_at"`
}

func (LearningPatternModel) TableName() string { return "learning_patterns" }
