package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const minimalConfig = `
dsn: "adforge:pw@tcp(127.0.0.1:3306)/adforge?parseTime=true"
jwt_secret: "test-secret"
storage:
  tiers:
    - name: fallback
      kind: local
`

func TestLoad_AppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	require.Equal(t, 3700, cfg.Port)
	require.Equal(t, "redis://127.0.0.1:6379/0", cfg.RedisURL)
	require.Equal(t, "http://localhost:3700", cfg.PublicBaseURL)

	require.Equal(t, 30, cfg.Timeouts.TextSeconds)
	require.Equal(t, 60, cfg.Timeouts.ImageSeconds)
	require.Equal(t, 180, cfg.Timeouts.VideoSeconds)
	require.Equal(t, 300, cfg.Timeouts.VideoCeilingSeconds)

	require.Equal(t, int64(100), cfg.Credits.DefaultLimit)
	require.Equal(t, int64(1), cfg.Credits.Costs["text"])
	require.Equal(t, int64(5), cfg.Credits.Costs["image"])
	require.Equal(t, int64(15), cfg.Credits.Costs["video"])

	require.Equal(t, 5, cfg.Learning.TopPatterns)
	require.Equal(t, 70, cfg.Learning.MinPatternScore)
	require.Equal(t, ScoreWeights{Engagement: 40, ClickThrough: 30, Conversion: 30}, cfg.Learning.ScoreWeights)
}

func TestLoad_ExplicitValuesWin(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
port: 8080
dsn: "adforge:pw@tcp(db:3306)/adforge"
jwt_secret: "s"
public_base_url: "https://ads.example.com"
credits:
  costs:
    video: 25
learning:
  score_weights:
    engagement: 50
    click_through: 25
    conversion: 25
storage:
  tiers:
    - name: fallback
      kind: local
`))
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, "https://ads.example.com", cfg.PublicBaseURL)
	require.Equal(t, int64(25), cfg.Credits.Costs["video"])
	require.Equal(t, int64(1), cfg.Credits.Costs["text"])
	require.Equal(t, 50, cfg.Learning.ScoreWeights.Engagement)
}

func TestLoad_MissingDSNFails(t *testing.T) {
	_, err := Load(writeConfig(t, `
jwt_secret: "s"
storage:
  tiers:
    - name: fallback
      kind: local
`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "DSN")
}

func TestLoad_MissingJWTSecretFails(t *testing.T) {
	_, err := Load(writeConfig(t, `
dsn: "adforge:pw@tcp(127.0.0.1:3306)/adforge"
storage:
  tiers:
    - name: fallback
      kind: local
`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "jwt_secret")
}

func TestLoad_WeightsMustSumToHundred(t *testing.T) {
	_, err := Load(writeConfig(t, `
dsn: "adforge:pw@tcp(127.0.0.1:3306)/adforge"
jwt_secret: "s"
learning:
  score_weights:
    engagement: 50
    click_through: 40
    conversion: 30
storage:
  tiers:
    - name: fallback
      kind: local
`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "sum to 100")
}

func TestLoad_TierValidation(t *testing.T) {
	_, err := Load(writeConfig(t, `
dsn: "adforge:pw@tcp(127.0.0.1:3306)/adforge"
jwt_secret: "s"
storage:
  tiers: []
`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "at least one tier")

	_, err = Load(writeConfig(t, `
dsn: "adforge:pw@tcp(127.0.0.1:3306)/adforge"
jwt_secret: "s"
storage:
  tiers:
    - name: a
      kind: local
    - name: a
      kind: local
`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "duplicate tier name")

	_, err = Load(writeConfig(t, `
dsn: "adforge:pw@tcp(127.0.0.1:3306)/adforge"
jwt_secret: "s"
storage:
  tiers:
    - name: primary
      kind: s3
      bucket: assets
`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "access_key_id")

	_, err = Load(writeConfig(t, `
dsn: "adforge:pw@tcp(127.0.0.1:3306)/adforge"
jwt_secret: "s"
storage:
  tiers:
    - name: weird
      kind: ftp
`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown kind")
}

func TestLoad_ProviderValidation(t *testing.T) {
	_, err := Load(writeConfig(t, `
dsn: "adforge:pw@tcp(127.0.0.1:3306)/adforge"
jwt_secret: "s"
storage:
  tiers:
    - name: fallback
      kind: local
providers:
  text:
    - type: openai
      api_key: k
`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "id is required")

	_, err = Load(writeConfig(t, `
dsn: "adforge:pw@tcp(127.0.0.1:3306)/adforge"
jwt_secret: "s"
storage:
  tiers:
    - name: fallback
      kind: local
providers:
  image:
    - id: img
      api_key: k
`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "type is required")
}

func TestLoad_MissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	require.Error(t, err)
}

func TestDatabaseConfig_DSNValue(t *testing.T) {
	require.Equal(t, "", DatabaseConfig{}.DSNValue())

	literal := DatabaseConfig{DSN: "user:pw@tcp(db:3306)/app"}
	require.Equal(t, "user:pw@tcp(db:3306)/app", literal.DSNValue())

	assembled := DatabaseConfig{Host: "db.internal", Name: "adforge", Password: "pw"}.DSNValue()
	require.Contains(t, assembled, "adforge:pw@tcp(db.internal:3306)/adforge")
	require.Contains(t, assembled, "parseTime=true")
	require.Contains(t, assembled, "charset=utf8mb4")
}
