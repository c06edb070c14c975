package ratelimit

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// LoadConfig reads RATE_LIMIT_* environment variables.
func LoadConfig() *Config {
	if !getEnvBool("RATE_LIMIT_ENABLED", true) {
		return &Config{Enabled: false}
	}
	return &Config{
		Enabled:         true,
		DefaultLimit:    getEnvInt("RATE_LIMIT_DEFAULT_LIMIT", 600),
		DefaultWindow:   getEnvDuration("RATE_LIMIT_DEFAULT_WINDOW", time.Minute),
		CleanupInterval: getEnvDuration("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute),
		Whitelist:       parseIPList(os.Getenv("RATE_LIMIT_WHITELIST")),
		Blacklist:       parseIPList(os.Getenv("RATE_LIMIT_BLACKLIST")),
		Rules:           DefaultRules(getEnvInt("RATE_LIMIT_CYCLES_PER_HOUR", 6)),
	}
}

// DefaultRules limits cycle triggers to cyclesPerHour per client and keeps
// the other mutating endpoints moderate. Reads fall through to the default.
func DefaultRules(cyclesPerHour int) []Rule {
	return []Rule{
		{Name: "cycles", Method: "POST", Path: "/cycles", Limit: cyclesPerHour, Window: time.Hour, Burst: 2},
		{Name: "reload", Method: "POST", Path: "/config/reload", Limit: 30, Window: time.Hour, Burst: 5},
		{Name: "flags", Method: "PATCH", Path: "/postings/", Limit: 120, Window: time.Minute, Burst: 20},
	}
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func parseIPList(list string) map[string]bool {
	out := make(map[string]bool)
	for _, ip := range strings.Split(list, ",") {
		if ip = strings.TrimSpace(ip); ip != "" {
			out[ip] = true
		}
	}
	return out
}
