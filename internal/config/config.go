package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. DAPP_WALLET.
const EnvPrefix = "DAPP"

// Config holds the settings shared by every command.
type Config struct {
	Wallet           string
	WalletVendor     string
	NetworksFile     string
	PollingInterval  time.Duration
	LogLevel         string
	Account          string
	Tokens           []string
	Wait             bool
	AwaitInterval    time.Duration
	AwaitMaxInterval time.Duration
	SnapshotOut      string
	PGDSN            string
	FaucetURL        string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v, err := newViper(cfgFile, flags, setCommonDefaults)
	if err != nil {
		return Config{}, err
	}
	return commonConfig(v), nil
}

func setCommonDefaults(v *viper.Viper) {
	v.SetDefault("wallet-vendor", "auto")
	v.SetDefault("polling-interval", 15000*time.Millisecond)
	v.SetDefault("log-level", "info")
	v.SetDefault("wait", true)
	v.SetDefault("await-interval", time.Second)
	v.SetDefault("await-max-interval", 15*time.Second)
}

func commonConfig(v *viper.Viper) Config {
	return Config{
		Wallet:           strings.TrimSpace(v.GetString("wallet")),
		WalletVendor:     v.GetString("wallet-vendor"),
		NetworksFile:     v.GetString("networks-file"),
		PollingInterval:  v.GetDuration("polling-interval"),
		LogLevel:         v.GetString("log-level"),
		Account:          strings.TrimSpace(v.GetString("account")),
		Tokens:           getStringSlice(v, "token"),
		Wait:             v.GetBool("wait"),
		AwaitInterval:    v.GetDuration("await-interval"),
		AwaitMaxInterval: v.GetDuration("await-max-interval"),
		SnapshotOut:      v.GetString("snapshot-out"),
		PGDSN:            v.GetString("pg-dsn"),
		FaucetURL:        strings.TrimSpace(v.GetString("faucet-url")),
	}
}

func newViper(cfgFile string, flags *pflag.FlagSet, defaults func(*viper.Viper)) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	defaults(v)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("dapp")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	return cleanStrings(strings.Split(input, ","))
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
