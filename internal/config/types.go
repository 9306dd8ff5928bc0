package config

// AppConfig holds runtime startup configuration loaded from YAML.
type AppConfig struct {
	Port           int            `yaml:"port"`
	Env            string         `yaml:"env"` // "development" | "production"
	DSN            string         `yaml:"dsn"` // MySQL DSN
	Database       DatabaseConfig `yaml:"database"`
	RedisURL       string         `yaml:"redis_url"`
	JWTSecret      string         `yaml:"jwt_secret"`
	AllowedOrigins []string       `yaml:"allowed_origins"`
	PublicBaseURL  string         `yaml:"public_base_url"` // external URL of this service, used for local-tier asset URLs

	Providers ProvidersConfig `yaml:"providers"`
	Timeouts  TimeoutsConfig  `yaml:"timeouts"`
	Storage   StorageConfig   `yaml:"storage"`
	Credits   CreditsConfig   `yaml:"credits"`
	Learning  LearningConfig  `yaml:"learning"`
}

type DatabaseConfig struct {
	DSN      string `yaml:"dsn"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	Charset  string `yaml:"charset"`
}

// ProvidersConfig lists the ordered fallback chain per media kind. Order is
// deliberate: cheapest and most reliable first, most fragile last.
type ProvidersConfig struct {
	Text  []ProviderConfig `yaml:"text"`
	Image []ProviderConfig `yaml:"image"`
	Video []ProviderConfig `yaml:"video"`
}

// ProviderConfig describes one external generation vendor.
type ProviderConfig struct {
	ID       string `yaml:"id"`
	Type     string `yaml:"type"` // openai | anthropic | openai-compatible | openai-image | http-url | http-base64 | http-poll
	APIKey   string `yaml:"api_key"`
	Endpoint string `yaml:"endpoint,omitempty"`
	Model    string `yaml:"model,omitempty"`
	Disabled bool   `yaml:"disabled,omitempty"`

	// http-poll only.
	PollIntervalSeconds int `yaml:"poll_interval_seconds,omitempty"`
}

type TimeoutsConfig struct {
	TextSeconds         int `yaml:"text_seconds"`
	ImageSeconds        int `yaml:"image_seconds"`
	VideoSeconds        int `yaml:"video_seconds"`
	VideoCeilingSeconds int `yaml:"video_ceiling_seconds"` // wall clock for submit+poll providers
}

// StorageConfig lists the ordered persistence tiers. The first tier that
// accepts a write wins; order encodes durability preference.
type StorageConfig struct {
	Tiers []TierConfig `yaml:"tiers"`
}

// TierConfig describes one byte-persistence backend.
type TierConfig struct {
	Name            string `yaml:"name"`
	Kind            string `yaml:"kind"` // s3 | sigv4 | local
	Bucket          string `yaml:"bucket,omitempty"`
	Region          string `yaml:"region,omitempty"`
	AccessKeyID     string `yaml:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty"`
	Endpoint        string `yaml:"endpoint,omitempty"`
	CustomDomain    string `yaml:"custom_domain,omitempty"`
	PathStyleAccess bool   `yaml:"path_style_access,omitempty"`
	Prefix          string `yaml:"prefix,omitempty"`

	// local only.
	Dir string `yaml:"dir,omitempty"`
}

// CreditsConfig is the externally configured cost model. Costs never adapt to
// provider pricing at runtime.
type CreditsConfig struct {
	DefaultLimit int64            `yaml:"default_limit"`
	Costs        map[string]int64 `yaml:"costs"` // media kind -> credits
}

// LearningConfig tunes the performance-learning loop.
type LearningConfig struct {
	TopPatterns        int           `yaml:"top_patterns"`
	MinPatternScore    int           `yaml:"min_pattern_score"`
	ScoreWeights       ScoreWeights  `yaml:"score_weights"`
	ExtractionProvider string        `yaml:"extraction_provider,omitempty"` // text provider id for AI feature extraction
}

// ScoreWeights blends engagement/click/conversion into one 0-100 score. The
// split is a business rule, so it lives in configuration; weights must sum to
// 100.
type ScoreWeights struct {
	Engagement   int `yaml:"engagement"`
	ClickThrough int `yaml:"click_through"`
	Conversion   int `yaml:"conversion"`
}
