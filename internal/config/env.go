package config

import (
	"os"
	"strconv"
	"time"
)

func Load() *Config {
	return &Config{
		Service: &ServiceConfig{
			Name: getEnv("SERVICE_NAME", "hublifetime"),
			Env:  getEnv("SERVICE_ENV", "development"),
			Addr: getEnv("SERVICE_ADDR", ":8080"),
		},
		Bus: &BusConfig{
			URL:          getEnv("BUS_URL", "redis://localhost:6379"),
			DialTimeout:  getEnvDuration("BUS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("BUS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("BUS_WRITE_TIMEOUT", 3*time.Second),
			PoolSize:     getEnvInt("BUS_POOL_SIZE", 10),
			MinIdleConns: getEnvInt("BUS_MIN_IDLE", 2),
			PingTimeout:  getEnvDuration("BUS_PING_TIMEOUT", 2*time.Second),
		},
		Hub: &HubConfig{
			Name:     getEnv("HUB_NAME", "chat"),
			ServerID: getEnv("HUB_SERVER_ID", ""),
		},
		Ack: &AckConfig{
			Timeout: getEnvDuration("ACK_TIMEOUT", 10*time.Second),
		},
		Tracer: &TracerConfig{
			Address:  getEnv("TRACER_ADDRESS", "localhost:4317"),
			Insecure: getEnvBool("TRACER_INSECURE", true),
		},
		Logger: &LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		SecretToken: getEnv("JWT_SECRET", ""),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
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

func getEnvDuration(key string, fallback time.Duration) time.Duration {
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

func getEnvBool(key string, fallback bool) bool {
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
