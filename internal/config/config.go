package config

import "time"

type Config struct {
	Service *ServiceConfig
	Relay   *RelayConfig
	Redis   *RedisConfig
	Logger  *LoggerConfig
	Tracer  *TracerConfig
}

type ServiceConfig struct {
	Name string
	Env  string
	Addr string
}

// RelayConfig bounds the websocket surface. AllowedOrigins is the explicit
// CORS allow-list; its first entry doubles as the fallback origin returned
// to everyone not on the list.
type RelayConfig struct {
	AllowedOrigins []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// RedisConfig is optional: an empty URL disables the presence store and the
// relay keeps working without it.
type RedisConfig struct {
	URL          string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	MinIdleConns int
	PingTimeout  time.Duration
}

type LoggerConfig struct {
	Level  string
	Format string
}

type TracerConfig struct {
	Address string
}
