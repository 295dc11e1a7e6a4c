package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/noah-isme/gema-exam-grader/internal/grading"
)

// Config holds runtime configuration values for the grading service.
type Config struct {
	AppName          string
	AppEnv           string
	AppPort          string
	DatabaseURL      string
	RedisURL         string
	NATSURL          string
	JWTSecret        string
	JWTRefreshSecret string

	LogLevel      string
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int

	NotificationChannel string

	GradingPolicy      grading.Policy
	CodeReviewEnabled  bool
	CodeReviewFallback grading.FallbackMode
	GradingStaleAfter  time.Duration
	SweepInterval      time.Duration
	SweepBatchSize     int
	SweepLockTTL       time.Duration

	AIProvider    string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	AIModel       string
	AIMaxTokens   int
	AITimeout     time.Duration

	SendGridAPIKey    string
	SendGridFromName  string
	SendGridFromEmail string
	SendGridTimeout   time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// EmailEnabled reports whether grade e-mails can be sent.
func (c Config) EmailEnabled() bool {
	return c.SendGridAPIKey != "" && c.SendGridFromEmail != ""
}

// SweepLockKey is the Redis key guarding regrade sweeps.
func (c Config) SweepLockKey() string {
	return c.NotificationChannel + ":grading:sweep-lock"
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("GEMA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	return fromViper(v, true)
}

// LoadWorker reads configuration for processes that do not serve authenticated HTTP traffic.
func LoadWorker() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("GEMA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	return fromViper(v, false)
}

func setDefaults(v *viper.Viper) {
	defaults := grading.DefaultPolicy()

	v.SetDefault("app.name", "GEMA Exam Grader")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.max_size_mb", 50)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 14)
	v.SetDefault("notifications.channel", "gema")

	v.SetDefault("grading.code_review_enabled", false)
	v.SetDefault("grading.code_review_fallback", string(grading.FallbackHeuristic))
	v.SetDefault("grading.stale_after", "10m")
	v.SetDefault("grading.sweep_interval", "500ms")
	v.SetDefault("grading.sweep_batch_size", 100)
	v.SetDefault("grading.sweep_lock_ttl", "10m")
	v.SetDefault("grading.coding_line_threshold", defaults.CodingLineThreshold)
	v.SetDefault("grading.coding_structured_percent", defaults.CodingStructuredPercent)
	v.SetDefault("grading.coding_basic_percent", defaults.CodingBasicPercent)
	v.SetDefault("grading.flowchart_structured_percent", defaults.FlowchartStructuredPercent)
	v.SetDefault("grading.flowchart_scalar_percent", defaults.FlowchartScalarPercent)
	v.SetDefault("grading.short_answer_word_threshold", defaults.ShortAnswerWordThreshold)
	v.SetDefault("grading.short_answer_detailed_percent", defaults.ShortAnswerDetailedPercent)
	v.SetDefault("grading.short_answer_brief_percent", defaults.ShortAnswerBriefPercent)

	v.SetDefault("ai.provider", "openai")
	v.SetDefault("ai.model", "gpt-4o-mini")
	v.SetDefault("ai.max_tokens", 512)
	v.SetDefault("ai.timeout", "20s")

	v.SetDefault("sendgrid.from_name", "GEMA")
	v.SetDefault("sendgrid.timeout", "10s")
}

func fromViper(v *viper.Viper, requireJWT bool) (Config, error) {
	durations := map[string]time.Duration{}
	for _, key := range []string{"grading.stale_after", "grading.sweep_interval", "grading.sweep_lock_ttl", "ai.timeout", "sendgrid.timeout"} {
		d, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", key, err)
		}
		durations[key] = d
	}

	fallback, err := grading.ParseFallbackMode(v.GetString("grading.code_review_fallback"))
	if err != nil {
		return Config{}, err
	}

	policy := grading.Policy{
		CodingLineThreshold:        v.GetInt("grading.coding_line_threshold"),
		CodingStructuredPercent:    v.GetInt("grading.coding_structured_percent"),
		CodingBasicPercent:         v.GetInt("grading.coding_basic_percent"),
		FlowchartStructuredPercent: v.GetInt("grading.flowchart_structured_percent"),
		FlowchartScalarPercent:     v.GetInt("grading.flowchart_scalar_percent"),
		ShortAnswerWordThreshold:   v.GetInt("grading.short_answer_word_threshold"),
		ShortAnswerDetailedPercent: v.GetInt("grading.short_answer_detailed_percent"),
		ShortAnswerBriefPercent:    v.GetInt("grading.short_answer_brief_percent"),
	}
	if err := policy.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid grading policy: %w", err)
	}

	openAIKey := v.GetString("ai.openai_api_key")
	if openAIKey == "" {
		openAIKey = v.GetString("openai_api_key")
	}

	cfg := Config{
		AppName:          v.GetString("app.name"),
		AppEnv:           v.GetString("app.env"),
		AppPort:          v.GetString("app.port"),
		DatabaseURL:      v.GetString("database.url"),
		RedisURL:         v.GetString("redis.url"),
		NATSURL:          v.GetString("nats.url"),
		JWTSecret:        v.GetString("jwt.secret"),
		JWTRefreshSecret: v.GetString("jwt.refresh_secret"),

		LogLevel:      strings.ToLower(v.GetString("log.level")),
		LogFile:       v.GetString("log.file"),
		LogMaxSizeMB:  v.GetInt("log.max_size_mb"),
		LogMaxBackups: v.GetInt("log.max_backups"),
		LogMaxAgeDays: v.GetInt("log.max_age_days"),

		NotificationChannel: v.GetString("notifications.channel"),

		GradingPolicy:      policy,
		CodeReviewEnabled:  v.GetBool("grading.code_review_enabled"),
		CodeReviewFallback: fallback,
		GradingStaleAfter:  durations["grading.stale_after"],
		SweepInterval:      durations["grading.sweep_interval"],
		SweepBatchSize:     v.GetInt("grading.sweep_batch_size"),
		SweepLockTTL:       durations["grading.sweep_lock_ttl"],

		AIProvider:    strings.ToLower(v.GetString("ai.provider")),
		OpenAIAPIKey:  openAIKey,
		OpenAIBaseURL: v.GetString("ai.base_url"),
		AIModel:       v.GetString("ai.model"),
		AIMaxTokens:   v.GetInt("ai.max_tokens"),
		AITimeout:     durations["ai.timeout"],

		SendGridAPIKey:    v.GetString("sendgrid.api_key"),
		SendGridFromName:  v.GetString("sendgrid.from_name"),
		SendGridFromEmail: v.GetString("sendgrid.from_email"),
		SendGridTimeout:   durations["sendgrid.timeout"],
	}

	if requireJWT && (cfg.JWTSecret == "" || cfg.JWTRefreshSecret == "") {
		return Config{}, fmt.Errorf("jwt secrets must be provided")
	}

	if cfg.CodeReviewEnabled && cfg.AIProvider != "openai" {
		return Config{}, fmt.Errorf("unsupported ai provider %q", cfg.AIProvider)
	}

	if cfg.SweepBatchSize <= 0 {
		cfg.SweepBatchSize = 100
	}

	return cfg, nil
}
