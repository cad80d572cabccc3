package config

import (
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// WatchConfig holds configuration for the contract event watcher.
type WatchConfig struct {
	Config

	FromBlock         uint64
	ToBlock           uint64
	Addresses         []string
	Topic0            []string
	BatchSize         uint64
	Follow            bool
	WithTimestamps    bool
	Out               string
	Errors            string
	Checkpoint        string
	CheckpointEnabled bool
	CheckpointName    string
	MaxRetries        int
	RetryBackoff      time.Duration
	RetryMaxDelay     time.Duration
}

// LoadWatch merges config file, environment variables, and flags into WatchConfig.
func LoadWatch(cfgFile string, flags *pflag.FlagSet) (WatchConfig, error) {
	v, err := newViper(cfgFile, flags, func(v *viper.Viper) {
		setCommonDefaults(v)
		v.SetDefault("batch-size", uint64(2000))
		v.SetDefault("out", "./data/events.jsonl")
		v.SetDefault("errors", "./data/decode_errors.jsonl")
		v.SetDefault("checkpoint", "./data/checkpoint.json")
		v.SetDefault("checkpoint-enabled", true)
		v.SetDefault("checkpoint-name", "watcher")
		v.SetDefault("max-retries", 5)
		v.SetDefault("retry-backoff", 500*time.Millisecond)
		v.SetDefault("retry-max-delay", 10*time.Second)
		v.SetDefault("with-timestamps", true)
	})
	if err != nil {
		return WatchConfig{}, err
	}

	return WatchConfig{
		Config:            commonConfig(v),
		FromBlock:         v.GetUint64("from"),
		ToBlock:           v.GetUint64("to"),
		Addresses:         getStringSlice(v, "address"),
		Topic0:            getStringSlice(v, "topic0"),
		BatchSize:         v.GetUint64("batch-size"),
		Follow:            v.GetBool("follow"),
		WithTimestamps:    v.GetBool("with-timestamps"),
		Out:               v.GetString("out"),
		Errors:            v.GetString("errors"),
		Checkpoint:        v.GetString("checkpoint"),
		CheckpointEnabled: v.GetBool("checkpoint-enabled"),
		CheckpointName:    v.GetString("checkpoint-name"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		RetryMaxDelay:     v.GetDuration("retry-max-delay"),
	}, nil
}
