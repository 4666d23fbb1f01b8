package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "FARM"

// QuoteConfig holds configuration for on-chain quotes.
type QuoteConfig struct {
	RPCURL       string
	Factory      string
	Stable       string
	RewardToken  string
	Routes       []string
	Pair         string
	LPAmount     string
	Stake        string
	FeeBps       uint64
	MaxRetries   int
	RetryBackoff time.Duration
	LogLevel     string
}

// Overrides replace scenario parameters when set.
type Overrides struct {
	RewardsDuration uint64
	Lockup          uint64
	LockPolicy      string
	FeeBps          *uint64
}

// SimulateConfig holds configuration for scenario runs.
type SimulateConfig struct {
	Scenario  string
	Out       string
	StateFile string
	PGDSN     string
	Report    bool
	Overrides Overrides
	LogLevel  string
}

// ServeConfig holds configuration for the read-only HTTP API.
type ServeConfig struct {
	SimulateConfig
	Listen string
}

// LoadQuote merges config file, environment variables, and flags into QuoteConfig.
func LoadQuote(cfgFile string, flags *pflag.FlagSet) (QuoteConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"fee-bps":       uint64(30),
		"lp-amount":     "1000000000000000000",
		"max-retries":   5,
		"retry-backoff": 500 * time.Millisecond,
		"log-level":     "info",
	})
	if err != nil {
		return QuoteConfig{}, err
	}

	cfg := QuoteConfig{
		RPCURL:       v.GetString("rpc"),
		Factory:      v.GetString("factory"),
		Stable:       v.GetString("stable"),
		RewardToken:  v.GetString("reward-token"),
		Routes:       getStringSlice(v, "route"),
		Pair:         v.GetString("pair"),
		LPAmount:     v.GetString("lp-amount"),
		Stake:        v.GetString("stake"),
		FeeBps:       v.GetUint64("fee-bps"),
		MaxRetries:   v.GetInt("max-retries"),
		RetryBackoff: v.GetDuration("retry-backoff"),
		LogLevel:     v.GetString("log-level"),
	}
	return cfg, nil
}

// LoadSimulate merges config file, environment variables, and flags into SimulateConfig.
func LoadSimulate(cfgFile string, flags *pflag.FlagSet) (SimulateConfig, error) {
	v, err := newViper(cfgFile, flags, simulateDefaults())
	if err != nil {
		return SimulateConfig{}, err
	}
	return simulateFrom(v)
}

// LoadServe merges config file, environment variables, and flags into ServeConfig.
func LoadServe(cfgFile string, flags *pflag.FlagSet) (ServeConfig, error) {
	defaults := simulateDefaults()
	defaults["listen"] = ":8080"
	v, err := newViper(cfgFile, flags, defaults)
	if err != nil {
		return ServeConfig{}, err
	}
	sim, err := simulateFrom(v)
	if err != nil {
		return ServeConfig{}, err
	}
	return ServeConfig{SimulateConfig: sim, Listen: v.GetString("listen")}, nil
}

func simulateDefaults() map[string]interface{} {
	return map[string]interface{}{
		"out":       "./data/journal.jsonl",
		"log-level": "info",
	}
}

func simulateFrom(v *viper.Viper) (SimulateConfig, error) {
	rewardsDuration, err := ParseSeconds(v.GetString("rewards-duration"))
	if err != nil {
		return SimulateConfig{}, fmt.Errorf("parse rewards-duration: %w", err)
	}
	lockup, err := ParseSeconds(v.GetString("lockup"))
	if err != nil {
		return SimulateConfig{}, fmt.Errorf("parse lockup: %w", err)
	}

	cfg := SimulateConfig{
		Scenario:  v.GetString("scenario"),
		Out:       v.GetString("out"),
		StateFile: v.GetString("state-file"),
		PGDSN:     v.GetString("pg-dsn"),
		Report:    v.GetBool("report"),
		Overrides: Overrides{
			RewardsDuration: rewardsDuration,
			Lockup:          lockup,
			LockPolicy:      v.GetString("lock-policy"),
		},
		LogLevel: v.GetString("log-level"),
	}
	if v.IsSet("fee-bps") {
		fee := v.GetUint64("fee-bps")
		cfg.Overrides.FeeBps = &fee
	}
	return cfg, nil
}

func newViper(cfgFile string, flags *pflag.FlagSet, defaults map[string]interface{}) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

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
		v.SetConfigName("config")
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
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
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
