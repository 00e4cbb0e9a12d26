package config

import "time"

type Config struct {
	Service     *ServiceConfig
	Bus         *BusConfig
	Hub         *HubConfig
	Ack         *AckConfig
	Tracer      *TracerConfig
	Logger      *LoggerConfig
	SecretToken string
}

type ServiceConfig struct {
	Name string
	Env  string
	Addr string
}

// BusConfig configures the Redis connection the distributed manager
// publishes and subscribes on.
type BusConfig struct {
	URL          string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	MinIdleConns int
	PingTimeout  time.Duration
}

// HubConfig names the hub whose topics this process serves and, if set,
// pins its server identity instead of generating one at startup.
type HubConfig struct {
	Name     string
	ServerID string
}

// AckConfig bounds how long a cross-server group mutation waits for its
// ack before completing successfully on timeout.
type AckConfig struct {
	Timeout time.Duration
}

type TracerConfig struct {
	Address  string
	Insecure bool
}

type LoggerConfig struct {
	Level  string
	Format string
}
