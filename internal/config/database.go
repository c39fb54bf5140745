package config

import (
	"fmt"
	"time"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	// Driver is one of sqlite, postgres or memory.
	Driver string `yaml:"driver"`
	// Path is the SQLite database file.
	Path string `yaml:"path"`
	// DSN overrides the host/port fields for postgres when set.
	DSN      string `yaml:"dsn"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`

	// Connection pool settings
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`

	SlowQueryThreshold time.Duration `yaml:"slow_query_threshold"`
}

func defaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:             DriverSQLite,
		Path:               "./payments.db",
		Port:               5432,
		SSLMode:            "disable",
		MaxOpenConns:       10,
		MaxIdleConns:       5,
		ConnMaxLifetime:    30 * time.Minute,
		ConnMaxIdleTime:    5 * time.Minute,
		SlowQueryThreshold: 200 * time.Millisecond,
	}
}

// PostgresDSN returns the postgres connection string
func (c *DatabaseConfig) PostgresDSN() string {
	if c.DSN != "" {
		return c.DSN
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// SQLiteDSN returns the sqlite file DSN with a busy timeout so concurrent
// writers wait instead of failing with "database is locked".
func (c *DatabaseConfig) SQLiteDSN() string {
	return fmt.Sprintf("%s?_busy_timeout=5000&_foreign_keys=on", c.Path)
}

func (c *DatabaseConfig) Validate() error {
	switch c.Driver {
	case DriverSQLite:
		if c.Path == "" {
			return fmt.Errorf("database.path is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.DSN == "" && (c.Host == "" || c.Name == "") {
			return fmt.Errorf("database.dsn or database.host and database.name are required for postgres")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unsupported database driver: %q", c.Driver)
	}
	return nil
}
