package model

import "time"

// StoreConfig describes the physical store that holds uploaded tables.
// csvdeck manages exactly one store per process.
type StoreConfig struct {
	Driver         string     `json:"driver" yaml:"driver"` // sqlite, postgres, mysql, mssql, snowflake, oracle
	DSN            string     `json:"-" yaml:"dsn"`
	PrivateKeyPath string     `json:"-" yaml:"private_key_path"`
	Schema         string     `json:"schema,omitempty" yaml:"schema"`
	Pool           PoolConfig `json:"pool" yaml:"pool"`
}

// PoolConfig controls the database connection pool behavior for the store.
type PoolConfig struct {
	MaxOpenConns    int           `yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" json:"conn_max_idle_time"`
}

// DefaultPoolConfig returns sensible defaults for a database connection pool.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 1 * time.Minute,
	}
}
