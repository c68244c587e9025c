// Package config loads process configuration from a .env file, the
// environment and command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Keys. Each maps to the upper-cased environment variable (host_api → HOST_API).
const (
	KeyHostAPI      = "host_api"
	KeyListenAddr   = "listen_addr"
	KeyFetchTimeout = "fetch_timeout"
	KeyLogLevel     = "log_level"
	KeyLogFormat    = "log_format"
	KeyRateLimit    = "rate_limit"
)

// DefaultEnvFile is read at startup if present.
const DefaultEnvFile = ".env"

type Config struct {
	HostAPI      string
	ListenAddr   string
	FetchTimeout time.Duration
	LogLevel     string
	LogFormat    string
	RateLimit    float64
}

// Defaults mirror what an unconfigured process runs with.
func Defaults() Config {
	return Config{
		ListenAddr:   ":8080",
		FetchTimeout: 30 * time.Second,
		LogLevel:     "info",
		LogFormat:    "json",
		RateLimit:    20,
	}
}

// RegisterFlags adds the configuration flags to flags.
func RegisterFlags(flags *pflag.FlagSet) {
	d := Defaults()
	flags.String(flagName(KeyHostAPI), "", "base URL of the console series data service (env HOST_API)")
	flags.String(flagName(KeyListenAddr), d.ListenAddr, "address the dashboard listens on")
	flags.Duration(flagName(KeyFetchTimeout), d.FetchTimeout, "timeout for one dataset fetch")
	flags.String(flagName(KeyLogLevel), d.LogLevel, "log level: debug, info, warn, error")
	flags.String(flagName(KeyLogFormat), d.LogFormat, "log format: json or text")
	flags.Float64(flagName(KeyRateLimit), d.RateLimit, "requests per second allowed per client")
}

func flagName(key string) string { return strings.ReplaceAll(key, "_", "-") }

// Load reads envFile (a missing file is not an error), then the environment,
// then any flags that were explicitly set.
func Load(envFile string, flags *pflag.FlagSet) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	v := viper.New()
	d := Defaults()
	v.SetDefault(KeyHostAPI, "")
	v.SetDefault(KeyListenAddr, d.ListenAddr)
	v.SetDefault(KeyFetchTimeout, d.FetchTimeout)
	v.SetDefault(KeyLogLevel, d.LogLevel)
	v.SetDefault(KeyLogFormat, d.LogFormat)
	v.SetDefault(KeyRateLimit, d.RateLimit)
	v.AutomaticEnv()

	if flags != nil {
		for _, key := range []string{KeyHostAPI, KeyListenAddr, KeyFetchTimeout, KeyLogLevel, KeyLogFormat, KeyRateLimit} {
			if f := flags.Lookup(flagName(key)); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", f.Name, err)
				}
			}
		}
	}

	cfg := &Config{
		HostAPI:      strings.TrimSpace(v.GetString(KeyHostAPI)),
		ListenAddr:   v.GetString(KeyListenAddr),
		FetchTimeout: v.GetDuration(KeyFetchTimeout),
		LogLevel:     v.GetString(KeyLogLevel),
		LogFormat:    v.GetString(KeyLogFormat),
		RateLimit:    v.GetFloat64(KeyRateLimit),
	}
	return cfg, nil
}

// Validate reports configuration the dashboard cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.HostAPI == "" {
		errs = append(errs, errors.New("HOST_API is required"))
	} else if !strings.HasPrefix(c.HostAPI, "http://") && !strings.HasPrefix(c.HostAPI, "https://") {
		errs = append(errs, fmt.Errorf("HOST_API %q must be an http(s) URL", c.HostAPI))
	}
	if c.FetchTimeout <= 0 {
		errs = append(errs, fmt.Errorf("fetch timeout must be positive, got %s", c.FetchTimeout))
	}
	if c.RateLimit <= 0 {
		errs = append(errs, fmt.Errorf("rate limit must be positive, got %v", c.RateLimit))
	}
	return errors.Join(errs...)
}
