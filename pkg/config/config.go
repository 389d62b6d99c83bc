// Package config holds the configuration for a restage run.
//
// All tunables are collected into a single struct that is loaded once at
// process start and passed into component constructors. Components never
// read the environment themselves.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config configures a restage run. Zero values are filled in by Default;
// Validate must pass before the config is handed to any component.
type Config struct {
	// ChunkSizeBytes is the fixed transfer chunk size used when planning
	// how a retrieved archive will be split downstream.
	ChunkSizeBytes int64

	// RetrievalTier is the Glacier retrieval tier ("Bulk", "Standard",
	// "Expedited").
	RetrievalTier string

	// PollInterval is the delay between Athena query status checks.
	PollInterval time.Duration

	// MaxQueryWait bounds how long a single query execution may be polled
	// before the partition fails. Zero means no ceiling.
	MaxQueryWait time.Duration

	// Database and Table identify the Athena inventory table.
	Database string
	Table    string

	// Workgroup is the Athena workgroup. Optional; empty uses the account
	// default.
	Workgroup string

	// StagingBucket and StagingPrefix locate the query result objects.
	// Results for query q land at s3://{StagingBucket}/{StagingPrefix}{q}.csv.
	StagingBucket string
	StagingPrefix string

	// VaultName is the Glacier vault holding the archives.
	VaultName string

	// SNSTopicARN receives the asynchronous job-completion notifications.
	SNSTopicARN string

	// StatusTable is the DynamoDB table holding retrieval status records.
	StatusTable string
}

// Default returns the baseline configuration: 1 GiB chunks, Bulk retrieval,
// 1s polling with a 15 minute ceiling.
func Default() Config {
	return Config{
		ChunkSizeBytes: 1 << 30,
		RetrievalTier:  "Bulk",
		PollInterval:   time.Second,
		MaxQueryWait:   15 * time.Minute,
	}
}

// envPrefix namespaces the environment variables read by FromEnv.
const envPrefix = "RESTAGER_"

// FromEnv returns Default overlaid with any RESTAGER_* environment variables.
// Malformed numeric values are ignored in favor of the default.
func FromEnv() Config {
	cfg := Default()

	if v := os.Getenv(envPrefix + "CHUNK_SIZE_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.ChunkSizeBytes = n
		}
	}
	if v := os.Getenv(envPrefix + "RETRIEVAL_TIER"); v != "" {
		cfg.RetrievalTier = v
	}
	if v := os.Getenv(envPrefix + "POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.PollInterval = d
		}
	}
	if v := os.Getenv(envPrefix + "MAX_QUERY_WAIT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.MaxQueryWait = d
		}
	}

	cfg.Database = os.Getenv(envPrefix + "DATABASE")
	cfg.Table = os.Getenv(envPrefix + "TABLE")
	cfg.Workgroup = os.Getenv(envPrefix + "WORKGROUP")
	cfg.StagingBucket = os.Getenv(envPrefix + "STAGING_BUCKET")
	cfg.StagingPrefix = os.Getenv(envPrefix + "STAGING_PREFIX")
	cfg.VaultName = os.Getenv(envPrefix + "VAULT_NAME")
	cfg.SNSTopicARN = os.Getenv(envPrefix + "SNS_TOPIC_ARN")
	cfg.StatusTable = os.Getenv(envPrefix + "STATUS_TABLE")

	return cfg
}

// Validate checks that the configuration is complete enough to run against
// real AWS services.
func (c Config) Validate() error {
	if c.ChunkSizeBytes <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.ChunkSizeBytes)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %v", c.PollInterval)
	}
	if c.MaxQueryWait < 0 {
		return fmt.Errorf("max query wait must not be negative, got %v", c.MaxQueryWait)
	}

	switch c.RetrievalTier {
	case "Bulk", "Standard", "Expedited":
	default:
		return fmt.Errorf("unknown retrieval tier %q", c.RetrievalTier)
	}

	var missing []string
	for _, f := range []struct{ name, value string }{
		{"database", c.Database},
		{"table", c.Table},
		{"staging bucket", c.StagingBucket},
		{"vault name", c.VaultName},
		{"sns topic arn", c.SNSTopicARN},
		{"status table", c.StatusTable},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return errors.New("missing required config: " + strings.Join(missing, ", "))
	}

	return nil
}

// StagingURI returns the s3:// URI Athena writes query results under.
func (c Config) StagingURI() string {
	uri := "s3://" + c.StagingBucket
	if c.StagingPrefix != "" {
		uri += "/" + strings.TrimSuffix(c.StagingPrefix, "/")
	}
	return uri
}
