package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr     string
	PostgresDSN  string
	RedisAddr    string
	KafkaBrokers []string
	ServiceName  string
	InstanceID   string

	Timezone     string
	PollInterval time.Duration

	JWTSecret       string
	ManagerPassword string
	OwnerPassword   string

	ErrorLogPath string
	LogLevel     slog.Level

	// Seed values for store settings that were never saved.
	StoreURL               string
	StoreConsumerKey       string
	StoreConsumerSecret    string
	StorePreferredCategory string
	WebhookURL             string

	StoreSocket bool
}

// Empty POSTGRES_DSN, REDIS_ADDR or KAFKA_BROKERS turn that backend off.
func Load() Config {
	host, _ := os.Hostname()
	return Config{
		HTTPAddr:     getenv("HTTP_ADDR", ":8081"),
		PostgresDSN:  os.Getenv("POSTGRES_DSN"),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		KafkaBrokers: splitCSV(os.Getenv("KAFKA_BROKERS")),
		ServiceName:  getenv("SERVICE_NAME", "staff-api"),
		InstanceID:   getenv("INSTANCE_ID", host),

		Timezone:     getenv("TIMEZONE", "Europe/Warsaw"),
		PollInterval: getduration("POLL_INTERVAL", 15*time.Second),

		JWTSecret:       os.Getenv("JWT_SECRET"),
		ManagerPassword: os.Getenv("MANAGER_PASSWORD"),
		OwnerPassword:   os.Getenv("OWNER_PASSWORD"),

		ErrorLogPath: os.Getenv("ERROR_LOG_PATH"),
		LogLevel:     getlevel("LOG_LEVEL", slog.LevelInfo),

		StoreURL:               os.Getenv("STORE_URL"),
		StoreConsumerKey:       os.Getenv("STORE_CONSUMER_KEY"),
		StoreConsumerSecret:    os.Getenv("STORE_CONSUMER_SECRET"),
		StorePreferredCategory: os.Getenv("STORE_PREFERRED_CATEGORY"),
		WebhookURL:             os.Getenv("WEBHOOK_URL"),

		StoreSocket: getbool("STORE_SOCKET", false),
	}
}

// Producer identifies this process in event envelopes.
func (c Config) Producer() string {
	if c.InstanceID == "" {
		return c.ServiceName
	}
	return c.ServiceName + "/" + c.InstanceID
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(k))
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func getbool(k string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(k))) {
	case "on", "yes":
		return true
	case "off", "no":
		return false
	}
	b, err := strconv.ParseBool(os.Getenv(k))
	if err != nil {
		return def
	}
	return b
}

func getlevel(k string, def slog.Level) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(os.Getenv(k))); err != nil {
		return def
	}
	return l
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
