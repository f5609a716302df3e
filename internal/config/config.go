package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s
	RequestTimeout  time.Duration // chi per-request timeout, must cover a full check

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	// Checking
	PlatformFile         string        // platform catalog yaml (empty = embedded default catalog)
	ReloadInterval       time.Duration // interval to reload the platform catalog (default: 24h)
	DefaultPriority      int           // priority used when a caller omits it (1-10)
	BatchMaxConcurrent   int           // usernames checked at once in batch mode
	IDScheme             string        // "legacy" | "uuid"
	HistoryRetention     time.Duration // 0 = keep every check in memory
	HistoryGCInterval    time.Duration // how often the history collector runs
	ProbeTimeout         time.Duration // default timeout of a single HTTP probe
	UserAgent            string        // default probe User-Agent
	RequestsPerSecond    float64       // per-client refill rate on check endpoints
	ProxyList            []string      // static proxies (empty = no proxy provider)
	ProxyCountry         string        // preferred proxy country (empty = any)
	APIKeys              map[string]string
	ExpandCatalogHeaders bool // expand ${VAR} in catalog headers from the environment

	// Redis (optional, empty addr = persistence disabled)
	RedisAddr           string        // ex: "localhost:6379"
	RedisUser           string        // optional
	RedisPassword       string        // optional
	RedisDB             int           // Redis DB number
	RedisDT             time.Duration // Redis dial timeout (ex: 5s)
	RedisRT             time.Duration // Redis read timeout (ex: 3s)
	RedisWT             time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait        time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout    time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize       int           // Redis connection pool size
	RedisConnectTimeout time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval  time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold  int           // warn after this many attempts
	ResultTTL           time.Duration // TTL of persisted check results

	// Kafka (optional, no brokers = publishing disabled)
	KafkaBrokers []string
	KafkaTopic   string

	AllowedHosts []string // optional, restrict access to specific Host headers
	AllowedCIDRS []string // optional, restrict access to specific IP (e.g. "1.2.3.4, 5.6.7.8")
	TrustProxy   bool     // true => trust X-Forwarded-For headers (e.g. cloudflared)
	CORSOrigins  []string // optional, origins allowed for browser clients ("*" = any)
	RateBurst    int      // check endpoint burst per client
	BatchMaxSize int      // max usernames per batch request
}

// apiKeyPlatforms are the platforms whose {NAME}_API_KEY variable is read.
var apiKeyPlatforms = []string{"INSTAGRAM", "TWITTER", "GITHUB", "REDDIT"}

func Load() *Config {
	loadEnvFile(getenv("USERCHECK_ENV_FILE", ".env"))

	cfg := &Config{
		// Server settings
		ListenPort:      getenv("USERCHECK_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("USERCHECK_SHUTDOWN_TIMEOUT", 5*time.Second),
		RequestTimeout:  mustDuration("USERCHECK_REQUEST_TIMEOUT", 2*time.Minute),

		// Logging
		LogLevel:  getenv("USERCHECK_LOG_LEVEL", "info"),
		PrettyLog: mustBool("USERCHECK_PRETTY_LOG", true),

		// Checking
		PlatformFile:         getenv("USERCHECK_PLATFORM_FILE", ""),
		ReloadInterval:       mustDuration("USERCHECK_RELOAD_INTERVAL", 24*time.Hour),
		DefaultPriority:      getenvInt("USERCHECK_DEFAULT_PRIORITY", 1),
		BatchMaxConcurrent:   getenvInt("USERCHECK_BATCH_MAX_CONCURRENT", 5),
		IDScheme:             mustOneOf("USERCHECK_ID_SCHEME", "legacy", "legacy", "uuid"),
		HistoryRetention:     mustDuration("USERCHECK_HISTORY_RETENTION", 0),
		HistoryGCInterval:    mustDuration("USERCHECK_HISTORY_GC_INTERVAL", time.Hour),
		ProbeTimeout:         mustDuration("USERCHECK_PROBE_TIMEOUT", 10*time.Second),
		UserAgent:            getenv("USERCHECK_USER_AGENT", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"),
		RequestsPerSecond:    getenvFloat("REQUESTS_PER_SECOND", 0.5),
		ProxyList:            splitAndTrim(getenv("PROXY_LIST", "")),
		ProxyCountry:         strings.ToLower(getenv("USERCHECK_PROXY_COUNTRY", "")),
		APIKeys:              loadAPIKeys(),
		ExpandCatalogHeaders: mustBool("USERCHECK_EXPAND_CATALOG_HEADERS", true),

		// Redis settings
		RedisAddr:           getenv("USERCHECK_REDIS_ADDR", ""),
		RedisUser:           getenv("USERCHECK_REDIS_USERNAME", "default"),
		RedisPassword:       getenv("USERCHECK_REDIS_PASSWORD", ""),
		RedisDB:             getenvInt("USERCHECK_REDIS_DB", 0),
		RedisDT:             mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:             mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:             mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:        mustDuration("REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:    mustDuration("REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:       getenvInt("REDIS_POOL_SIZE", 10),
		RedisConnectTimeout: mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:  mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:  getenvInt("REDIS_WARN_THRESHOLD", 3),
		ResultTTL:           mustDuration("USERCHECK_RESULT_TTL", 7*24*time.Hour),

		// Kafka settings
		KafkaBrokers: splitAndTrim(getenv("USERCHECK_KAFKA_BROKERS", "")),
		KafkaTopic:   getenv("USERCHECK_KAFKA_TOPIC", "usercheck-results"),

		// Access restrictions
		AllowedHosts: splitAndTrim(getenv("USERCHECK_ALLOWED_HOSTS", "")),
		AllowedCIDRS: parseAllowedIPs(getenv("USERCHECK_ALLOWED_CIDRS", "")),
		TrustProxy:   mustBool("USERCHECK_TRUST_PROXY", true),
		CORSOrigins:  splitAndTrim(getenv("USERCHECK_CORS_ORIGINS", "")),
		RateBurst:    getenvInt("USERCHECK_RATE_BURST", 5),
		BatchMaxSize: getenvInt("USERCHECK_BATCH_MAX_SIZE", 100),
	}

	if cfg.DefaultPriority < 1 || cfg.DefaultPriority > 10 {
		panic(fmt.Sprintf("❌ FATAL: USERCHECK_DEFAULT_PRIORITY must be within 1-10, got %d", cfg.DefaultPriority))
	}
	if cfg.BatchMaxConcurrent < 1 {
		panic(fmt.Sprintf("❌ FATAL: USERCHECK_BATCH_MAX_CONCURRENT must be >= 1, got %d", cfg.BatchMaxConcurrent))
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		cfgCopy.RedisPassword = "***REDACTED***"
		if cfg.RedisUser != "" {
			cfgCopy.RedisUser = "***REDACTED***"
		}
		cfgCopy.APIKeys = redactKeys(cfg.APIKeys)
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

// RedisEnabled reports whether result persistence is configured.
func (c *Config) RedisEnabled() bool { return c.RedisAddr != "" }

// KafkaEnabled reports whether result publishing is configured.
func (c *Config) KafkaEnabled() bool { return len(c.KafkaBrokers) > 0 }

// loadEnvFile loads a dotenv file if present. Variables already set in the
// process environment win.
func loadEnvFile(path string) {
	if path == "" {
		return
	}
	if _, err := os.Stat(path); err != nil {
		return
	}
	if err := godotenv.Load(path); err != nil {
		log.Printf("[WARN] failed to load env file %s: %v\n", path, err)
	}
}

func loadAPIKeys() map[string]string {
	keys := make(map[string]string)
	for _, name := range apiKeyPlatforms {
		if v := os.Getenv(name + "_API_KEY"); v != "" {
			keys[strings.ToLower(name)] = v
		}
	}
	return keys
}

func redactKeys(keys map[string]string) map[string]string {
	out := make(map[string]string, len(keys))
	for k := range keys {
		out[k] = "***REDACTED***"
	}
	return out
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			return f
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// mustOneOf panics when the variable is set to a value outside allowed.
func mustOneOf(key, def string, allowed ...string) string {
	v := strings.ToLower(getenv(key, def))
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	panic(fmt.Sprintf("❌ FATAL: Invalid value for %s: %s (allowed: %s)", key, v, strings.Join(allowed, ", ")))
}

func parseAllowedIPs(allowed string) []string {
	if allowed == "" {
		return nil
	}
	ips := make([]string, 0, 4)
	for _, ip := range splitAndTrim(allowed) {
		if ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
