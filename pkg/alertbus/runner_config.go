package alertbus

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config controls the dispatch bus producer and consumer-group runner.
type Config struct {
	Enabled bool

	Brokers []string
	Topic   string
	GroupID string

	SessionTimeout   time.Duration
	Heartbeat        time.Duration
	RebalanceTimeout time.Duration
	InitialOldest    bool

	// WebhookURL is the outbound endpoint the runner POSTs batches to.
	WebhookURL string
	// MaxRetries bounds the runner's own POST retry/backoff loop.
	MaxRetries int
}

// FromEnv builds a Config from environment variables, defaulting to values
// suitable for a single-broker local Kafka.
func FromEnv() Config {
	return Config{
		Enabled:          getbool("ALERTBUS_ENABLED", true),
		Brokers:          split(getenv("ALERTBUS_BROKERS", "localhost:9092")),
		Topic:            getenv("ALERTBUS_TOPIC", "aeris.alerts.dispatch"),
		GroupID:          getenv("ALERTBUS_GROUP_ID", "aeris-alertbus"),
		SessionTimeout:   getduration("ALERTBUS_SESSION_TIMEOUT", 10*time.Second),
		Heartbeat:        getduration("ALERTBUS_HEARTBEAT", 3*time.Second),
		RebalanceTimeout: getduration("ALERTBUS_REBALANCE_TIMEOUT", 60*time.Second),
		InitialOldest:    getbool("ALERTBUS_INITIAL_OLDEST", true),
		WebhookURL:       getenv("ALERTBUS_WEBHOOK_URL", ""),
		MaxRetries:       getint("ALERTBUS_MAX_RETRIES", 5),
	}
}

func split(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getbool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getint(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getduration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
