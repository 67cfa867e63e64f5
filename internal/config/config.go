package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Ledger    LedgerConfig
	Collab    CollabConfig
	Sync      SyncConfig
	Proposals ProposalConfig
	Keys      KeyConfig
	JWT       JWTConfig
	WebSocket WebSocketConfig
	CORS      CORSConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Port string
	Host string
	Env  string
}

// LedgerConfig points at the CouchDB instance backing the ledger store and
// the user registry.
type LedgerConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

// CollabConfig points at the collaboration store's HTTP API.
type CollabConfig struct {
	BaseURL string
	Enabled bool
}

type SyncConfig struct {
	Enabled       bool
	LiveInterval  time.Duration
	SweepInterval time.Duration
}

type ProposalConfig struct {
	DefaultMinApprovals int
}

// KeyConfig holds the master secret the key splitter derives per-note
// secrets from. The default is for development only.
type KeyConfig struct {
	MasterSecret string
}

type JWTConfig struct {
	Secret                 string
	Expiration             time.Duration
	RefreshTokenExpiration time.Duration
}

type WebSocketConfig struct {
	ReadBufferSize  int
	WriteBufferSize int
	MaxMessageSize  int64
	WriteWait       time.Duration
	PongWait        time.Duration
	PingPeriod      time.Duration
	MaxConnPerUser  int
}

type CORSConfig struct {
	AllowedOrigins string
	AllowedMethods string
	AllowedHeaders string
}

type LoggingConfig struct {
	Level string
}

func Load() (*Config, error) {
	godotenv.Load()

	jwtExp, err := time.ParseDuration(getEnv("JWT_EXPIRATION", "15m"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRATION: %w", err)
	}

	refreshExp, err := time.ParseDuration(getEnv("REFRESH_TOKEN_EXPIRATION", "168h"))
	if err != nil {
		return nil, fmt.Errorf("invalid REFRESH_TOKEN_EXPIRATION: %w", err)
	}

	liveInterval, err := time.ParseDuration(getEnv("SYNC_LIVE_INTERVAL", "5s"))
	if err != nil {
		return nil, fmt.Errorf("invalid SYNC_LIVE_INTERVAL: %w", err)
	}

	sweepInterval, err := time.ParseDuration(getEnv("SYNC_SWEEP_INTERVAL", "300s"))
	if err != nil {
		return nil, fmt.Errorf("invalid SYNC_SWEEP_INTERVAL: %w", err)
	}

	return &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Host: getEnv("HOST", "0.0.0.0"),
			Env:  getEnv("ENV", "development"),
		},
		Ledger: LedgerConfig{
			Host:     getEnv("LEDGER_DB_HOST", "localhost"),
			Port:     getEnv("LEDGER_DB_PORT", "5984"),
			User:     getEnv("LEDGER_DB_USER", "admin"),
			Password: getEnv("LEDGER_DB_PASSWORD", "password"),
			Name:     getEnv("LEDGER_DB_NAME", "whisperrnote"),
		},
		Collab: CollabConfig{
			BaseURL: getEnv("COLLAB_BASE_URL", "http://localhost:9090"),
			Enabled: getEnvAsBool("COLLAB_ENABLED", true),
		},
		Sync: SyncConfig{
			Enabled:       getEnvAsBool("SYNC_ENABLED", true),
			LiveInterval:  liveInterval,
			SweepInterval: sweepInterval,
		},
		Proposals: ProposalConfig{
			DefaultMinApprovals: getEnvAsInt("PROPOSAL_MIN_APPROVALS", 2),
		},
		Keys: KeyConfig{
			MasterSecret: getEnv("KEY_MASTER_SECRET", "dev-master-secret-change-in-production"),
		},
		JWT: JWTConfig{
			Secret:                 getEnv("JWT_SECRET", "dev-secret-change-in-production"),
			Expiration:             jwtExp,
			RefreshTokenExpiration: refreshExp,
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  getEnvAsInt("WS_READ_BUFFER_SIZE", 4096),
			WriteBufferSize: getEnvAsInt("WS_WRITE_BUFFER_SIZE", 4096),
			MaxMessageSize:  int64(getEnvAsInt("WS_MAX_MESSAGE_SIZE", 10485760)),
			WriteWait:       10 * time.Second,
			PongWait:        60 * time.Second,
			PingPeriod:      54 * time.Second,
			MaxConnPerUser:  getEnvAsInt("WS_MAX_CONN_PER_USER", 5),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			AllowedMethods: getEnv("CORS_ALLOWED_METHODS", "GET,POST,PUT,DELETE,OPTIONS"),
			AllowedHeaders: getEnv("CORS_ALLOWED_HEADERS", "Content-Type,Authorization"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}
