package config

import "time"

// Storage driver names accepted in configuration.
const (
	DriverSQLite   = "sqlite"
	DriverSnapshot = "snapshot"
)

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`

	// StorageDriver picks the persistence backend: "sqlite" (default) or
	// "snapshot" (single JSON document rewritten atomically on mutation).
	StorageDriver string `mapstructure:"storage_driver" yaml:"storage_driver"`
	SQLitePath    string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	SnapshotPath  string `mapstructure:"snapshot_path" yaml:"snapshot_path"`

	// AdminSecretHash is the bcrypt hash of the shared admin secret checked
	// on admin endpoints. Generate one with `roomchat hash-secret`.
	AdminSecretHash string `mapstructure:"admin_secret_hash" yaml:"admin_secret_hash"`

	// AutoCreateOnSend makes the send endpoint create the room on first
	// message instead of rejecting unknown codes.
	AutoCreateOnSend bool `mapstructure:"auto_create_on_send" yaml:"auto_create_on_send"`

	// BlockedWords are masked with asterisks before a message is stored.
	BlockedWords []string `mapstructure:"blocked_words" yaml:"blocked_words"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		StorageDriver:     DriverSQLite,
		SQLitePath:        "./data/roomchat.db",
		SnapshotPath:      "./data/rooms.json",
	}
}
