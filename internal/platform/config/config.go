package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr              string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
	// AdminToken guards /admin. Empty disables the admin API.
	AdminToken string
	LogLevel   string
}

// JWT configures the session cookie signer.
type JWT struct {
	SigningKey string
	Issuer     string
	TTL        time.Duration
}

// RedisConfig configures the optional Redis option store.
type RedisConfig struct {
	URL          string
	Hash         string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// PostgresConfig configures the optional durable option store.
type PostgresConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
}

// KafkaConfig configures the optional audit sink.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// Captcha configures the gate outside of its stored options.
type Captcha struct {
	// FixedFile is a YAML file whose values are defined in code and cannot be
	// changed through the admin API.
	FixedFile      string
	VerifyEndpoint string
	VerifyTimeout  time.Duration
	// SendRemoteIP controls whether the client address goes to the scoring
	// service as remoteip.
	SendRemoteIP bool
}

// Tracing configures OTLP span export.
type Tracing struct {
	Endpoint    string
	SampleRatio float64
}

type Config struct {
	Server      Server
	Tracing     Tracing
	JWT         JWT
	Redis       RedisConfig
	Postgres    PostgresConfig
	Kafka       KafkaConfig
	Captcha     Captcha
	AuditBuffer int
}

// FromEnv builds the configuration from environment variables so main stays lean.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr:              getEnv("SPAMGATE_ADDR", ":8080"),
			ReadHeaderTimeout: getDuration("SPAMGATE_READ_HEADER_TIMEOUT", 5*time.Second),
			ShutdownTimeout:   getDuration("SPAMGATE_SHUTDOWN_TIMEOUT", 10*time.Second),
			AdminToken:        os.Getenv("SPAMGATE_ADMIN_TOKEN"),
			LogLevel:          getEnv("LOG_LEVEL", "info"),
		},
		JWT: JWT{
			// Use a default for development - should be overridden in production
			SigningKey: getEnv("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			Issuer:     getEnv("JWT_ISSUER", "spamgate"),
			TTL:        getDuration("JWT_TTL", 12*time.Hour),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			Hash:         getEnv("REDIS_OPTIONS_HASH", "spamgate:options"),
			PoolSize:     getInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Postgres: PostgresConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: getInt("DATABASE_MAX_OPEN_CONNS", 10),
			MaxIdleConns: getInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(os.Getenv("KAFKA_BROKERS")),
			Topic:   getEnv("KAFKA_AUDIT_TOPIC", "spamgate.audit"),
		},
		Captcha: Captcha{
			FixedFile:      os.Getenv("CAPTCHA_FIXED_FILE"),
			VerifyEndpoint: os.Getenv("CAPTCHA_VERIFY_ENDPOINT"),
			VerifyTimeout:  getDuration("CAPTCHA_VERIFY_TIMEOUT", 0),
			SendRemoteIP:   getBool("CAPTCHA_SEND_REMOTE_IP", true),
		},
		Tracing: Tracing{
			Endpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
			SampleRatio: getFloat("OTEL_SAMPLE_RATIO", 1),
		},
		AuditBuffer: getInt("AUDIT_BUFFER", 1000),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getFloat(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return fallback
	}
	return v
}

func getBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
