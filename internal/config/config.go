package config

import (
	"fmt"
	"os"
	"strings"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is where the server looks for its YAML config.
const DefaultConfigPath = "config.yml"

const (
	defaultPort         = 3700
	defaultDBHost       = "127.0.0.1"
	defaultDBPort       = 3306
	defaultDBUser       = "adforge"
	defaultDBName       = "adforge"
	defaultDBCharset    = "utf8mb4"
	defaultRedisURL     = "redis://127.0.0.1:6379/0"
	defaultCreditsLimit = 100
)

// Load reads, normalizes, and validates the config file at path.
func Load(path string) (*AppConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg AppConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IsDev reports whether the app runs in development mode.
func (c *AppConfig) IsDev() bool {
	env := strings.TrimSpace(strings.ToLower(c.Env))
	if env == "" {
		env = strings.TrimSpace(strings.ToLower(os.Getenv("ADFORGE_ENV")))
	}
	return env == "development" || env == "dev"
}

func (c *AppConfig) applyDefaults() {
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if c.RedisURL == "" {
		c.RedisURL = defaultRedisURL
	}
	if c.PublicBaseURL == "" {
		c.PublicBaseURL = fmt.Sprintf("http://localhost:%d", c.Port)
	}
	if c.DSN == "" {
		c.DSN = c.Database.DSNValue()
	}

	if c.Timeouts.TextSeconds <= 0 {
		c.Timeouts.TextSeconds = 30
	}
	if c.Timeouts.ImageSeconds <= 0 {
		c.Timeouts.ImageSeconds = 60
	}
	if c.Timeouts.VideoSeconds <= 0 {
		c.Timeouts.VideoSeconds = 180
	}
	if c.Timeouts.VideoCeilingSeconds <= 0 {
		c.Timeouts.VideoCeilingSeconds = 300
	}

	if c.Credits.DefaultLimit <= 0 {
		c.Credits.DefaultLimit = defaultCreditsLimit
	}
	if c.Credits.Costs == nil {
		c.Credits.Costs = map[string]int64{}
	}
	if _, ok := c.Credits.Costs["text"]; !ok {
		c.Credits.Costs["text"] = 1
	}
	if _, ok := c.Credits.Costs["image"]; !ok {
		c.Credits.Costs["image"] = 5
	}
	if _, ok := c.Credits.Costs["video"]; !ok {
		c.Credits.Costs["video"] = 15
	}

	if c.Learning.TopPatterns <= 0 {
		c.Learning.TopPatterns = 5
	}
	if c.Learning.MinPatternScore <= 0 {
		c.Learning.MinPatternScore = 70
	}
	w := &c.Learning.ScoreWeights
	if w.Engagement == 0 && w.ClickThrough == 0 && w.Conversion == 0 {
		w.Engagement, w.ClickThrough, w.Conversion = 40, 30, 30
	}
}

func (c *AppConfig) validate() error {
	if strings.TrimSpace(c.DSN) == "" {
		return fmt.Errorf("database DSN is required (dsn or database.* keys)")
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("jwt_secret is required")
	}

	w := c.Learning.ScoreWeights
	if w.Engagement+w.ClickThrough+w.Conversion != 100 {
		return fmt.Errorf("learning.score_weights must sum to 100, got %d",
			w.Engagement+w.ClickThrough+w.Conversion)
	}

	if len(c.Storage.Tiers) == 0 {
		return fmt.Errorf("storage.tiers must list at least one tier")
	}
	seen := map[string]struct{}{}
	for i, tier := range c.Storage.Tiers {
		name := strings.TrimSpace(tier.Name)
		if name == "" {
			return fmt.Errorf("storage.tiers[%d]: name is required", i)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("storage.tiers: duplicate tier name %q", name)
		}
		seen[name] = struct{}{}
		switch tier.Kind {
		case "s3", "sigv4":
			if tier.Bucket == "" || tier.Region == "" || tier.AccessKeyID == "" || tier.SecretAccessKey == "" {
				return fmt.Errorf("storage.tiers[%d] (%s): bucket/region/access_key_id/secret_access_key are required", i, name)
			}
		case "local":
			// dir defaults at tier construction
		default:
			return fmt.Errorf("storage.tiers[%d]: unknown kind %q", i, tier.Kind)
		}
	}

	for _, chain := range []struct {
		kind string
		list []ProviderConfig
	}{
		{"text", c.Providers.Text},
		{"image", c.Providers.Image},
		{"video", c.Providers.Video},
	} {
		for i, p := range chain.list {
			if strings.TrimSpace(p.ID) == "" {
				return fmt.Errorf("providers.%s[%d]: id is required", chain.kind, i)
			}
			if strings.TrimSpace(p.Type) == "" {
				return fmt.Errorf("providers.%s[%d]: type is required", chain.kind, i)
			}
		}
	}

	return nil
}

// DSNValue assembles a MySQL DSN from the component fields when no literal DSN
// was provided.
func (d DatabaseConfig) DSNValue() string {
	if v := strings.TrimSpace(d.DSN); v != "" {
		return v
	}
	if strings.TrimSpace(d.Host) == "" && strings.TrimSpace(d.Name) == "" {
		return ""
	}

	host := strings.TrimSpace(d.Host)
	if host == "" {
		host = defaultDBHost
	}
	port := d.Port
	if port == 0 {
		port = defaultDBPort
	}
	user := strings.TrimSpace(d.User)
	if user == "" {
		user = defaultDBUser
	}
	name := strings.TrimSpace(d.Name)
	if name == "" {
		name = defaultDBName
	}
	charset := strings.TrimSpace(d.Charset)
	if charset == "" {
		charset = defaultDBCharset
	}

	mc := mysqldriver.NewConfig()
	mc.User = user
	mc.Passwd = d.Password
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%d", host, port)
	mc.DBName = name
	mc.ParseTime = true
	mc.Params = map[string]string{"charset": charset}
	return mc.FormatDSN()
}
