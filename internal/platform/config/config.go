// Package config builds the runtime configuration from environment
// variables so main stays lean. Every variable carries the QUORUM_
// prefix and falls back to a development default.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"quorum/pkg/domain"
	pstrings "quorum/pkg/platform/strings"
)

// Config is the full service configuration.
type Config struct {
	Server    Server
	Postgres  Postgres
	Redis     RedisConfig
	Kafka     Kafka
	Relay     Relay
	Evidence  Evidence
	Policy    Policy
	Geography Upstream
	Payments  Upstream
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr           string
	RequestTimeout time.Duration
}

// Postgres captures the database connection settings.
type Postgres struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig captures the Redis connection settings. An empty URL
// means Redis is not configured and in-memory fallbacks are used.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Kafka captures the event bus settings. Empty brokers mean the
// in-memory bus is used instead.
type Kafka struct {
	Brokers    []string
	Topic      string
	Partitions int32
}

// Relay captures the outbound event relay retry policy.
type Relay struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	InboxSize   int
}

// Evidence bounds the parallel evidence gathering phase of a command.
type Evidence struct {
	Timeout time.Duration
}

// Policy carries the tenant-level membership rules.
type Policy struct {
	MinimumApprovalLevel          domain.GeoLevel
	MinimumDues                   map[string]int64
	RequireGeographyForActivation bool
}

// Upstream points at an external evidence service.
type Upstream struct {
	BaseURL  string
	CacheTTL time.Duration
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr:           getenv("QUORUM_ADDR", ":8080"),
			RequestTimeout: duration("QUORUM_REQUEST_TIMEOUT", 30*time.Second),
		},
		Postgres: Postgres{
			DSN:             os.Getenv("QUORUM_POSTGRES_DSN"),
			MaxOpenConns:    integer("QUORUM_POSTGRES_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    integer("QUORUM_POSTGRES_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: duration("QUORUM_POSTGRES_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("QUORUM_REDIS_URL"),
			PoolSize:     integer("QUORUM_REDIS_POOL_SIZE", 10),
			MinIdleConns: integer("QUORUM_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  duration("QUORUM_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  duration("QUORUM_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: duration("QUORUM_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: Kafka{
			Brokers:    pstrings.DedupeAndTrim(strings.Split(os.Getenv("QUORUM_KAFKA_BROKERS"), ",")),
			Topic:      getenv("QUORUM_KAFKA_TOPIC", "membership.lifecycle"),
			Partitions: int32(integer("QUORUM_KAFKA_PARTITIONS", 6)),
		},
		Relay: Relay{
			MaxAttempts: integer("QUORUM_RELAY_MAX_ATTEMPTS", 5),
			BaseBackoff: duration("QUORUM_RELAY_BASE_BACKOFF", 100*time.Millisecond),
			MaxBackoff:  duration("QUORUM_RELAY_MAX_BACKOFF", 10*time.Second),
			InboxSize:   integer("QUORUM_RELAY_INBOX_SIZE", 1024),
		},
		Evidence: Evidence{
			Timeout: duration("QUORUM_EVIDENCE_TIMEOUT", 3*time.Second),
		},
		Policy: Policy{
			MinimumApprovalLevel:          approvalLevel("QUORUM_MINIMUM_APPROVAL_LEVEL"),
			MinimumDues:                   dues("QUORUM_MINIMUM_DUES"),
			RequireGeographyForActivation: boolean("QUORUM_REQUIRE_LEAF_GEOGRAPHY", true),
		},
		Geography: Upstream{
			BaseURL:  os.Getenv("QUORUM_GEOGRAPHY_URL"),
			CacheTTL: duration("QUORUM_GEOGRAPHY_CACHE_TTL", 5*time.Minute),
		},
		Payments: Upstream{
			BaseURL: os.Getenv("QUORUM_PAYMENTS_URL"),
		},
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func duration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func integer(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func boolean(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func approvalLevel(key string) domain.GeoLevel {
	level := domain.GeoLevel(strings.ToLower(os.Getenv(key)))
	if !level.Known() {
		return domain.GeoLevelConstituency
	}
	return level
}

// dues parses "ORD=500,STU=100" into a type-code keyed amount map.
func dues(key string) map[string]int64 {
	out := map[string]int64{}
	for _, pair := range pstrings.DedupeAndTrim(strings.Split(os.Getenv(key), ",")) {
		code, amount, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(strings.TrimSpace(amount), 10, 64)
		if err != nil || n < 0 {
			continue
		}
		out[strings.ToUpper(strings.TrimSpace(code))] = n
	}
	return out
}
