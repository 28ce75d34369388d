// Package config loads the process-wide Config from environment variables
// and a mappings JSON file. Out of scope for the core per spec.md §1 ("the
// core never reads environment variables"); this package is the one
// external collaborator that does, grounded on the teacher's
// cmd/audicia/main.go loadConfig/envString/envInt/envBool/envDuration
// helpers.
package config

import (
	"time"
)

// Config is the process-wide configuration spec.md §6 lists as "recognized
// options; all supplied by the external loader, never read from
// environment by the core".
type Config struct {
	// MaxBatchSize is the default max events per batch (spec.md §6).
	MaxBatchSize int `env:"EVSNOW_MAX_BATCH_SIZE" envDefault:"500"`
	// MaxWait is the default max time from first event to forced flush.
	MaxWait time.Duration `env:"EVSNOW_MAX_WAIT" envDefault:"5s"`
	// Prefetch is the default broker-side prefetch / max events per poll.
	Prefetch int `env:"EVSNOW_PREFETCH" envDefault:"1000"`
	// StartPosition is "earliest" or "latest" when no checkpoint exists.
	StartPosition string `env:"EVSNOW_START_POSITION" envDefault:"latest"`

	// RetryMaxAttempts is the default retry policy's attempt cap.
	RetryMaxAttempts int `env:"EVSNOW_RETRY_MAX_ATTEMPTS" envDefault:"8"`
	// RetryBaseDelay and RetryMaxDelay bound the backoff curve.
	RetryBaseDelay time.Duration `env:"EVSNOW_RETRY_BASE_DELAY" envDefault:"500ms"`
	RetryMaxDelay  time.Duration `env:"EVSNOW_RETRY_MAX_DELAY" envDefault:"30s"`
	// ClassifierTimeout bounds a pluggable RetryPolicy's classify call.
	ClassifierTimeout time.Duration `env:"EVSNOW_RETRY_CLASSIFIER_TIMEOUT" envDefault:"10s"`

	// DrainDeadline bounds graceful shutdown (spec.md §4.6).
	DrainDeadline time.Duration `env:"EVSNOW_DRAIN_DEADLINE" envDefault:"30s"`
	// AckTimeout bounds a durable-ack wait (spec.md §5).
	AckTimeout time.Duration `env:"EVSNOW_ACK_TIMEOUT" envDefault:"60s"`
	// CheckpointSaveTimeout bounds a checkpoint save call.
	CheckpointSaveTimeout time.Duration `env:"EVSNOW_CHECKPOINT_SAVE_TIMEOUT" envDefault:"10s"`

	// MappingsFile is the path to the mappings JSON file (spec.md §6).
	MappingsFile string `env:"EVSNOW_MAPPINGS_FILE" envDefault:"mappings.json"`

	LogLevel int  `env:"EVSNOW_LOG_LEVEL" envDefault:"0"`
	DevMode  bool `env:"EVSNOW_DEV_MODE" envDefault:"false"`

	MetricsBindAddress string `env:"EVSNOW_METRICS_BIND_ADDRESS" envDefault:":8080"`

	StartupMaxRetries int `env:"EVSNOW_STARTUP_MAX_RETRIES" envDefault:"5"`

	ConnectionProfile ConnectionProfile
}

// ConnectionProfile is the opaque auth descriptor spec.md §6 calls
// connection_profile, consumed by CheckpointStore and IngestClient.
type ConnectionProfile struct {
	// Snowflake connection.
	Account   string `env:"EVSNOW_SNOWFLAKE_ACCOUNT"`
	User      string `env:"EVSNOW_SNOWFLAKE_USER"`
	Role      string `env:"EVSNOW_SNOWFLAKE_ROLE"`
	Warehouse string `env:"EVSNOW_SNOWFLAKE_WAREHOUSE"`
	Database  string `env:"EVSNOW_SNOWFLAKE_DATABASE"`
	Schema    string `env:"EVSNOW_SNOWFLAKE_SCHEMA"`

	PrivateKeyPath       string `env:"EVSNOW_SNOWFLAKE_PRIVATE_KEY_PATH"`
	PrivateKeyPassphrase string `env:"EVSNOW_SNOWFLAKE_PRIVATE_KEY_PASSPHRASE"`

	// Event Hubs connection: either a managed-identity namespace, or a
	// plain connection string (local/dev use).
	EventHubNamespace     string `env:"EVSNOW_EVENTHUB_NAMESPACE"`
	EventHubConnectionStr string `env:"EVSNOW_EVENTHUB_CONNECTION_STRING"`
}

// Load reads Config from the environment, the way the teacher's
// cmd/audicia/main.go loadConfig does.
func Load() Config {
	return Config{
		MaxBatchSize:      envInt("EVSNOW_MAX_BATCH_SIZE", 500),
		MaxWait:           envDuration("EVSNOW_MAX_WAIT", 5*time.Second),
		Prefetch:          envInt("EVSNOW_PREFETCH", 1000),
		StartPosition:     envString("EVSNOW_START_POSITION", "latest"),
		RetryMaxAttempts:  envInt("EVSNOW_RETRY_MAX_ATTEMPTS", 8),
		RetryBaseDelay:    envDuration("EVSNOW_RETRY_BASE_DELAY", 500*time.Millisecond),
		RetryMaxDelay:     envDuration("EVSNOW_RETRY_MAX_DELAY", 30*time.Second),
		ClassifierTimeout: envDuration("EVSNOW_RETRY_CLASSIFIER_TIMEOUT", 10*time.Second),

		DrainDeadline:         envDuration("EVSNOW_DRAIN_DEADLINE", 30*time.Second),
		AckTimeout:            envDuration("EVSNOW_ACK_TIMEOUT", 60*time.Second),
		CheckpointSaveTimeout: envDuration("EVSNOW_CHECKPOINT_SAVE_TIMEOUT", 10*time.Second),

		MappingsFile: envString("EVSNOW_MAPPINGS_FILE", "mappings.json"),

		LogLevel: envInt("EVSNOW_LOG_LEVEL", 0),
		DevMode:  envBool("EVSNOW_DEV_MODE", false),

		MetricsBindAddress: envString("EVSNOW_METRICS_BIND_ADDRESS", ":8080"),
		StartupMaxRetries:  envInt("EVSNOW_STARTUP_MAX_RETRIES", 5),

		ConnectionProfile: ConnectionProfile{
			Account:               envString("EVSNOW_SNOWFLAKE_ACCOUNT", ""),
			User:                  envString("EVSNOW_SNOWFLAKE_USER", ""),
			Role:                  envString("EVSNOW_SNOWFLAKE_ROLE", ""),
			Warehouse:             envString("EVSNOW_SNOWFLAKE_WAREHOUSE", ""),
			Database:              envString("EVSNOW_SNOWFLAKE_DATABASE", ""),
			Schema:                envString("EVSNOW_SNOWFLAKE_SCHEMA", ""),
			PrivateKeyPath:        envString("EVSNOW_SNOWFLAKE_PRIVATE_KEY_PATH", ""),
			PrivateKeyPassphrase:  envString("EVSNOW_SNOWFLAKE_PRIVATE_KEY_PASSPHRASE", ""),
			EventHubNamespace:     envString("EVSNOW_EVENTHUB_NAMESPACE", ""),
			EventHubConnectionStr: envString("EVSNOW_EVENTHUB_CONNECTION_STRING", ""),
		},
	}
}
