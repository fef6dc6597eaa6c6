package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port               string
	Env                string
	LogLevel           string
	PublicBaseURL      string
	RelayAnonKey       string
	CORSAllowedOrigins []string
	FormVariant        string
	DefaultLocale      string

	// Lead relay email delivery
	LeadRecipientEmail string
	EmailProvider      string
	EmailFromAddress   string
	EmailFromName      string
	ResendAPIKey       string
	ResendBaseURL      string
	SendGridAPIKey     string

	// AWS (SES email, Bedrock chat)
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Bot verification
	TurnstileSecretKey string
	TurnstileSiteKey   string
	TurnstileVerifyURL string
	CaptchaAllowBypass bool
	CaptchaFailOpen    bool

	// Rate limiting
	RateLimitBackend string
	RateLimitMax     int
	RateLimitWindow  time.Duration
	ChatRateLimitMax int
	RedisAddr        string
	RedisPassword    string
	RedisTLS         bool

	// Chat relay upstream
	ChatProvider        string
	ChatGatewayURL      string
	ChatGatewayAPIKey   string
	ChatModel           string
	GeminiAPIKey        string
	GeminiModel         string
	BedrockModelID      string
	ChatUpstreamTimeout time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		PublicBaseURL:      strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		RelayAnonKey:       getEnv("RELAY_ANON_KEY", ""),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		FormVariant:        getEnv("FORM_VARIANT", "usa-interests"),
		DefaultLocale:      getEnv("DEFAULT_LOCALE", "pt-BR"),

		LeadRecipientEmail: getEnv("LEAD_RECIPIENT_EMAIL", "helenaexplora@hmpedro.com"),
		EmailProvider:      strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "resend"))),
		EmailFromAddress:   getEnv("EMAIL_FROM_ADDRESS", "ola@helenaexplora.hmpedro.com"),
		EmailFromName:      getEnv("EMAIL_FROM_NAME", "Helena Explora"),
		ResendAPIKey:       getEnv("RESEND_API_KEY", ""),
		ResendBaseURL:      getEnv("RESEND_BASE_URL", "https://api.resend.com"),
		SendGridAPIKey:     getEnv("SENDGRID_API_KEY", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		TurnstileSecretKey: getEnv("TURNSTILE_SECRET_KEY", ""),
		TurnstileSiteKey:   getEnv("TURNSTILE_SITE_KEY", ""),
		TurnstileVerifyURL: getEnv("TURNSTILE_VERIFY_URL", "https://challenges.cloudflare.com/turnstile/v0/siteverify"),
		CaptchaAllowBypass: getEnvAsBool("CAPTCHA_ALLOW_BYPASS", true),
		CaptchaFailOpen:    getEnvAsBool("CAPTCHA_FAIL_OPEN", false),

		RateLimitBackend: strings.ToLower(strings.TrimSpace(getEnv("RATE_LIMIT_BACKEND", "memory"))),
		RateLimitMax:     getEnvAsInt("RATE_LIMIT_MAX", 5),
		RateLimitWindow:  getEnvAsDuration("RATE_LIMIT_WINDOW", time.Minute),
		ChatRateLimitMax: getEnvAsInt("CHAT_RATE_LIMIT_MAX", 20),
		RedisAddr:        getEnv("REDIS_ADDR", ""),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisTLS:         getEnvAsBool("REDIS_TLS", false),

		ChatProvider:        strings.ToLower(strings.TrimSpace(getEnv("CHAT_PROVIDER", "gateway"))),
		ChatGatewayURL:      strings.TrimRight(getEnv("CHAT_GATEWAY_URL", "https://ai.gateway.lovable.dev/v1"), "/"),
		ChatGatewayAPIKey:   getEnv("CHAT_GATEWAY_API_KEY", ""),
		ChatModel:           getEnv("CHAT_MODEL", "google/gemini-2.5-flash"),
		GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),
		GeminiModel:         getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		BedrockModelID:      getEnv("BEDROCK_MODEL_ID", ""),
		ChatUpstreamTimeout: getEnvAsDuration("CHAT_UPSTREAM_TIMEOUT", 2*time.Minute),
	}
}

// IsProduction reports whether the service runs with production safeguards.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated variable, dropping empty entries.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
