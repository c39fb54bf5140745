package config

import "fmt"

type ServerConfig struct {
	HTTP HTTPConfig `yaml:"http"`
	GRPC GRPCConfig `yaml:"grpc"`
}

type HTTPConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// AllowOrigins is the CORS allow-list for the JSON API.
	AllowOrigins []string `yaml:"allow_origins"`
}

type GRPCConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c GRPCConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	// Channel receives link lifecycle events.
	Channel string `yaml:"channel"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTP: HTTPConfig{Host: "0.0.0.0", Port: 8000, AllowOrigins: []string{"*"}},
		GRPC: GRPCConfig{Enabled: true, Host: "0.0.0.0", Port: 9000},
	}
}

func defaultRedisConfig() RedisConfig {
	return RedisConfig{
		Host:    "localhost",
		Port:    6379,
		Channel: "paylink.link-events",
	}
}
