package config

import "time"

type Config struct {
	Server    ServerConfig
	Transport TransportConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Address string
	Auth    AuthConfig
	// Origin patterns accepted during the websocket handshake. Empty means
	// same-origin only; a single "*" disables the check entirely.
	AllowedOrigins []string `mapstructure:"allowedOrigins"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwtSecret"`
}

type TransportConfig struct {
	// Maximum time to wait for any client frame before the connection is
	// considered idle and dropped. Zero disables the idle cutoff; liveness
	// is still covered by the ping loop.
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	PingInterval time.Duration `mapstructure:"pingInterval"`
	SendBuffer   int           `mapstructure:"sendBuffer"`
}

type LoggingConfig struct {
	Level string
}
