// Package config loads node configuration with defaults suitable for a
// validator. Values can be overridden by a YAML file or environment
// variables prefixed with ORBIT_.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"
)

// ProtocolLimits bound the transaction payload of a block. A limit of 0
// disables the corresponding check. These are protocol-level values: all
// authorities of an epoch must agree on them.
type ProtocolLimits struct {
	MaxTransactionSizeBytes     uint64 `mapstructure:"max-transaction-size-bytes"`
	MaxNumTransactionsInBlock   uint64 `mapstructure:"max-num-transactions-in-block"`
	MaxTransactionsInBlockBytes uint64 `mapstructure:"max-transactions-in-block-bytes"`
}

// ConsensusConfig tunes the commit rule component.
type ConsensusConfig struct {
	// GCDepth is the number of rounds below the last committed round kept in
	// the in-memory DAG.
	GCDepth uint32 `mapstructure:"gc-depth"`
	// PendingQueueWarnThreshold triggers a warning log when the unprocessed
	// block queue grows past it.
	PendingQueueWarnThreshold int `mapstructure:"pending-queue-warn-threshold"`
}

// ExecutorConfig tunes the checkpoint executor component.
type ExecutorConfig struct {
	// TasksPerCore scales the number of concurrently executing checkpoints
	// with the machine size: the pool holds TasksPerCore * NumCPU tasks.
	TasksPerCore int `mapstructure:"tasks-per-core"`
	// LocalExecutionTimeout is the soft deadline for a checkpoint's effects
	// to become durable; on expiry the executor logs progress and keeps
	// waiting.
	LocalExecutionTimeout time.Duration `mapstructure:"local-execution-timeout"`
	// RetryDelay is the fixed backoff between attempts of a failing
	// checkpoint execution. Retries continue until the epoch ends.
	RetryDelay time.Duration `mapstructure:"retry-delay"`
	// SyncBufferSize is the per-subscription buffer of the checkpoint sync
	// broadcast. Overflow marks the subscription lagged.
	SyncBufferSize int `mapstructure:"sync-buffer-size"`
}

type Config struct {
	Limits    ProtocolLimits  `mapstructure:"limits"`
	Consensus ConsensusConfig `mapstructure:"consensus"`
	Executor  ExecutorConfig  `mapstructure:"executor"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Limits: ProtocolLimits{
			MaxTransactionSizeBytes:     256 * 1024,
			MaxNumTransactionsInBlock:   512,
			MaxTransactionsInBlockBytes: 512 * 1024,
		},
		Consensus: ConsensusConfig{
			GCDepth:                   50,
			PendingQueueWarnThreshold: 1000,
		},
		Executor: ExecutorConfig{
			TasksPerCore:          2,
			LocalExecutionTimeout: 10 * time.Second,
			RetryDelay:            time.Second,
			SyncBufferSize:        128,
		},
	}
}

// Load reads configuration from the given file (optional, "" skips it) over
// the defaults, with ORBIT_-prefixed environment variables taking highest
// precedence.
func Load(path string) (Config, error) {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("limits.max-transaction-size-bytes", defaults.Limits.MaxTransactionSizeBytes)
	v.SetDefault("limits.max-num-transactions-in-block", defaults.Limits.MaxNumTransactionsInBlock)
	v.SetDefault("limits.max-transactions-in-block-bytes", defaults.Limits.MaxTransactionsInBlockBytes)
	v.SetDefault("consensus.gc-depth", defaults.Consensus.GCDepth)
	v.SetDefault("consensus.pending-queue-warn-threshold", defaults.Consensus.PendingQueueWarnThreshold)
	v.SetDefault("executor.tasks-per-core", defaults.Executor.TasksPerCore)
	v.SetDefault("executor.local-execution-timeout", defaults.Executor.LocalExecutionTimeout)
	v.SetDefault("executor.retry-delay", defaults.Executor.RetryDelay)
	v.SetDefault("executor.sync-buffer-size", defaults.Executor.SyncBufferSize)

	v.SetEnvPrefix("orbit")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("could not read config file %s: %w", path, err)
		}
	}

	var conf Config
	if err := v.Unmarshal(&conf); err != nil {
		return Config{}, fmt.Errorf("could not unmarshal config: %w", err)
	}
	if err := conf.Validate(); err != nil {
		return Config{}, err
	}
	return conf, nil
}

// Validate rejects values that would stall or break the components. All
// violations are reported at once.
func (c Config) Validate() error {
	var result *multierror.Error
	if c.Executor.TasksPerCore < 1 {
		result = multierror.Append(result, fmt.Errorf("executor.tasks-per-core must be at least 1, got %d", c.Executor.TasksPerCore))
	}
	if c.Executor.RetryDelay <= 0 {
		result = multierror.Append(result, fmt.Errorf("executor.retry-delay must be positive, got %s", c.Executor.RetryDelay))
	}
	if c.Executor.SyncBufferSize < 1 {
		result = multierror.Append(result, fmt.Errorf("executor.sync-buffer-size must be at least 1, got %d", c.Executor.SyncBufferSize))
	}
	if c.Consensus.GCDepth < 1 {
		result = multierror.Append(result, fmt.Errorf("consensus.gc-depth must be at least 1, got %d", c.Consensus.GCDepth))
	}
	return result.ErrorOrNil()
}
