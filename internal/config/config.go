package config

import (
	"os"
	"strconv"

	commoncfg "astra-monitor/internal/common/config"
)

// Source modes for the monitor reading source.
const (
	SourceModeScript    = "script"
	SourceModeHTTP      = "http"
	SourceModeSynthetic = "synthetic"
)

// Config holds the astra-monitor runtime configuration.
type Config struct {
	Database commoncfg.DatabaseConfig
	Redis    commoncfg.RedisConfig
	MQTT     commoncfg.MQTTConfig

	Monitor struct {
		// Path to the YAML payload/metric registry file.
		RegistryPath string
		// Seconds between scheduled monitoring cycles.
		PollInterval int
		// One of "script", "http", "synthetic".
		SourceMode string
		// Directory containing sample_<metric>_monitor executables.
		ScriptPath string
		// Seconds before an external monitor script is killed.
		ScriptTimeout int
		// Base URL of the instrument gateway for the HTTP source.
		HTTPAddress string
		// Seconds before an instrument gateway request times out.
		HTTPTimeout int
		// Probability that the synthetic source includes a NORMAL reading.
		NormalSampleRate float64
	}

	Cache struct {
		Enabled   bool
		KeyPrefix string
		TTL       int // seconds
	}

	Notify struct {
		Enabled     bool
		TopicPrefix string
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load reads configuration from environment variables with defaults.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = parseInt(getEnv("DB_PORT", "5432"), 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "astra")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = parseInt(getEnv("DB_MAX_CONNS", "10"), 10)
	cfg.Database.MaxIdle = parseInt(getEnv("DB_MAX_IDLE", "5"), 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = parseInt(getEnv("REDIS_DB", "0"), 0)

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "astra-monitor")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.QoS = byte(parseInt(getEnv("MQTT_QOS", "1"), 1))

	cfg.Monitor.RegistryPath = getEnv("REGISTRY_PATH", "config/registry.yaml")
	cfg.Monitor.PollInterval = parseInt(getEnv("POLL_INTERVAL", "600"), 600)
	cfg.Monitor.SourceMode = getEnv("SOURCE_MODE", SourceModeScript)
	cfg.Monitor.ScriptPath = getEnv("SCRIPT_PATH", "./monitor_scripts")
	cfg.Monitor.ScriptTimeout = parseInt(getEnv("SCRIPT_TIMEOUT", "60"), 60)
	cfg.Monitor.HTTPAddress = getEnv("SOURCE_HTTP_ADDRESS", "http://localhost:9090")
	cfg.Monitor.HTTPTimeout = parseInt(getEnv("SOURCE_HTTP_TIMEOUT", "30"), 30)
	cfg.Monitor.NormalSampleRate = parseFloat(getEnv("NORMAL_SAMPLE_RATE", "0.3"), 0.3)

	cfg.Cache.Enabled = getEnv("CACHE_ENABLED", "false") == "true"
	cfg.Cache.KeyPrefix = getEnv("CACHE_KEY_PREFIX", "astra:query:")
	cfg.Cache.TTL = parseInt(getEnv("CACHE_TTL", "300"), 300)

	cfg.Notify.Enabled = getEnv("NOTIFY_ENABLED", "false") == "true"
	cfg.Notify.TopicPrefix = getEnv("NOTIFY_TOPIC_PREFIX", "astra/breach")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func parseFloat(s string, def float64) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return f
}
