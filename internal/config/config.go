package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// DatabaseURL selects the store. postgres:// and postgresql:// DSNs use
	// the Postgres driver; anything else is treated as a SQLite path or DSN.
	DatabaseURL string

	// AgentAPIURL is the base URL of the browser-automation agent API.
	AgentAPIURL string
	// AgentAPIKey is sent as X-API-Key on every agent request. Empty sends no header.
	AgentAPIKey string

	// AgentTimeoutSeconds caps one submit-and-poll cycle per task (default 300).
	AgentTimeoutSeconds int
	// AgentPollSeconds is the task status poll interval (default 3).
	AgentPollSeconds int
	// AgentMaxRPS caps outbound requests per second to the agent API (default 1).
	AgentMaxRPS int

	// LogLevel is trace|debug|info|warn|error (default info).
	LogLevel string
	// LogFormat is "console" (default) or "json" for cron captures.
	LogFormat string

	// SlackWebhookURL enables failure notifications when set.
	SlackWebhookURL string
	// PushgatewayURL enables a metrics push after each run when set.
	PushgatewayURL string

	// StubAddr and StubFixtures configure the stub agent server only.
	StubAddr     string
	StubFixtures string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; missing files are not an error.
// Required variables are validated by the command that needs them.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		DatabaseURL: getEnv("DATABASE_URL", ""),

		AgentAPIURL: getEnv("AGENT_API_URL", ""),
		AgentAPIKey: getEnv("AGENT_API_KEY", ""),

		AgentTimeoutSeconds: getEnvInt("AGENT_TIMEOUT_SECONDS", 300),
		AgentPollSeconds:    getEnvInt("AGENT_POLL_SECONDS", 3),
		AgentMaxRPS:         getEnvInt("AGENT_MAX_RPS", 1),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),

		SlackWebhookURL: getEnv("SLACK_WEBHOOK_URL", ""),
		PushgatewayURL:  getEnv("PUSHGATEWAY_URL", ""),

		StubAddr:     getEnv("STUB_ADDR", ":8700"),
		StubFixtures: getEnv("STUB_FIXTURES", ""),
	}
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
