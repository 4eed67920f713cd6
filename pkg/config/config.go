package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all client configuration
type Config struct {
	// Chat backend connection
	Chat struct {
		Endpoint         string
		HandshakeTimeout time.Duration
		RequestTimeout   time.Duration
		WriteWait        time.Duration
		PongWait         time.Duration
		MaxMessageSize   int64
		SendQueueSize    int
		RoomsPageSize    int
		HistoryPageSize  int
		SendRate         float64
		SendBurst        int
		UploadURL        string
		UploadTimeout    time.Duration
	}

	// Credential source
	Credential struct {
		Key   string
		Token string
	}

	// Vault configuration for the credential source
	Vault struct {
		Enabled     bool
		Address     string
		Token       string
		Namespace   string
		SecretsPath string
		Timeout     time.Duration
		MaxRetries  int
	}

	// Local control API
	Server struct {
		Addr           string
		Env            string
		RateLimit      float64
		RateLimitBurst int
		TrustedProxies []string
	}

	// Logging configuration
	Logging struct {
		Level  string
		Format string
	}

	// Snapshot persistence
	Snapshot struct {
		RedisURL  string
		KeyPrefix string
		TTL       time.Duration
	}

	// Observability
	Observability struct {
		ServiceName   string
		EnableTracing bool
	}
}

// Load reads configuration from the environment, after an optional .env file
func Load() *Config {
	// Load .env file if exists
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.Chat.Endpoint = getEnvString("CHAT_ENDPOINT", "ws://localhost:3000/chat")
	cfg.Chat.HandshakeTimeout = getEnvDuration("CHAT_HANDSHAKE_TIMEOUT", 10*time.Second)
	cfg.Chat.RequestTimeout = getEnvDuration("CHAT_REQUEST_TIMEOUT", 10*time.Second)
	cfg.Chat.WriteWait = getEnvDuration("CHAT_WRITE_WAIT", 10*time.Second)
	cfg.Chat.PongWait = getEnvDuration("CHAT_PONG_WAIT", 60*time.Second)
	cfg.Chat.MaxMessageSize = getEnvInt64("CHAT_MAX_MESSAGE_SIZE", 512*1024)
	cfg.Chat.SendQueueSize = getEnvInt("CHAT_SEND_QUEUE_SIZE", 256)
	cfg.Chat.RoomsPageSize = getEnvInt("CHAT_ROOMS_PAGE_SIZE", 10)
	cfg.Chat.HistoryPageSize = getEnvInt("CHAT_HISTORY_PAGE_SIZE", 100)
	cfg.Chat.SendRate = getEnvFloat("CHAT_SEND_RATE", 5)
	cfg.Chat.SendBurst = getEnvInt("CHAT_SEND_BURST", 10)
	cfg.Chat.UploadURL = getEnvString("CHAT_UPLOAD_URL", "http://localhost:3000/file/image")
	cfg.Chat.UploadTimeout = getEnvDuration("CHAT_UPLOAD_TIMEOUT", 60*time.Second)

	cfg.Credential.Key = getEnvString("CHAT_CREDENTIAL_KEY", "chat-token")
	cfg.Credential.Token = getEnvString("CHAT_TOKEN", "")

	cfg.Vault.Enabled = getEnvBool("VAULT_ENABLED", false)
	cfg.Vault.Address = getEnvString("VAULT_ADDR", "")
	cfg.Vault.Token = getEnvString("VAULT_TOKEN", "")
	cfg.Vault.Namespace = getEnvString("VAULT_NAMESPACE", "")
	cfg.Vault.SecretsPath = getEnvString("VAULT_SECRETS_PATH", "chat-client")
	cfg.Vault.Timeout = getEnvDuration("VAULT_TIMEOUT", 10*time.Second)
	cfg.Vault.MaxRetries = getEnvInt("VAULT_MAX_RETRIES", 3)

	cfg.Server.Addr = getEnvString("CONTROL_ADDR", "127.0.0.1:8089")
	cfg.Server.Env = getEnvString("APP_ENV", "development")
	cfg.Server.RateLimit = getEnvFloat("CONTROL_RATE_LIMIT", 20)
	cfg.Server.RateLimitBurst = getEnvInt("CONTROL_RATE_LIMIT_BURST", 40)
	cfg.Server.TrustedProxies = getEnvStringSlice("CONTROL_TRUSTED_PROXIES", []string{"127.0.0.1"})

	cfg.Logging.Level = getEnvString("LOG_LEVEL", "info")
	cfg.Logging.Format = getEnvString("LOG_FORMAT", "json")

	cfg.Snapshot.RedisURL = getEnvString("REDIS_URL", "")
	cfg.Snapshot.KeyPrefix = getEnvString("SNAPSHOT_KEY_PREFIX", "chat-client")
	cfg.Snapshot.TTL = getEnvDuration("SNAPSHOT_TTL", 24*time.Hour)

	cfg.Observability.ServiceName = getEnvString("OTEL_SERVICE_NAME", "chat-client")
	cfg.Observability.EnableTracing = getEnvBool("ENABLE_TRACING", false)

	return cfg
}

// Helper functions to read environment variables with default values

func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
