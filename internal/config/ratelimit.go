package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// RateLimitConfig drives the Redis token-bucket middleware. Scoped
// configs (auth, chatbot, orders) share the mechanism but carry their own
// capacities and key prefixes.
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
	KeyStrategy    string
	Prefix         string
	Debug          bool
}

// LoadRateLimitConfig builds the general limiter applied to every route.
func LoadRateLimitConfig() RateLimitConfig {
	return scoped("", 100, 9*time.Second)
}

// LoadAuthRateLimit is the tight limiter on login/register/refresh:
// credential stuffing protection, not throughput shaping.
func LoadAuthRateLimit() RateLimitConfig {
	return scoped("AUTH", 5, 3*time.Minute)
}

// LoadChatbotRateLimit bounds upstream model spend per user.
func LoadChatbotRateLimit() RateLimitConfig {
	return scoped("CHATBOT", 10, 6*time.Second)
}

// LoadOrderRateLimit bounds order creation bursts.
func LoadOrderRateLimit() RateLimitConfig {
	return scoped("ORDERS", 20, 3*time.Second)
}

// scoped reads RATE_LIMIT_<SCOPE>_* variables with the given defaults.
// An empty scope reads the unprefixed RATE_LIMIT_* variables.
func scoped(scope string, capacity int, refillEvery time.Duration) RateLimitConfig {
	env := func(suffix string) string {
		if scope == "" {
			return "RATE_LIMIT_" + suffix
		}
		return "RATE_LIMIT_" + scope + "_" + suffix
	}
	prefix := "rl"
	if scope != "" {
		prefix = "rl:" + strings.ToLower(scope)
	}
	cfg := RateLimitConfig{
		Enabled:        envBool(env("ENABLED"), true),
		Capacity:       envInt(env("CAPACITY"), capacity),
		RefillTokens:   envInt(env("REFILL_TOKENS"), 1),
		RefillInterval: envDur(env("REFILL_INTERVAL"), refillEvery),
		TTL:            envDur(env("TTL"), 10*time.Minute),
		KeyStrategy:    envStr(env("KEY_STRATEGY"), "ip_user_route"),
		Prefix:         envStr(env("PREFIX"), prefix),
		Debug:          envBool(env("DEBUG"), false),
	}
	if cfg.Capacity < 1 {
		cfg.Capacity = 1
	}
	if cfg.RefillTokens < 1 {
		cfg.RefillTokens = 1
	}
	if cfg.RefillInterval <= 0 {
		cfg.RefillInterval = time.Second
	}
	if minTTL := 5 * cfg.RefillInterval; cfg.TTL < minTTL {
		cfg.TTL = minTTL
	}
	return cfg
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
