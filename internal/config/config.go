package config

import (
	"errors"
	"net/url"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	RPCList        []string `mapstructure:"rpc_list"`
	DataAPIURL     string   `mapstructure:"data_api_url"`
	DataAPIKey     string   `mapstructure:"data_api_key"`
	PriceAPIURL    string   `mapstructure:"price_api_url"`
	PriceAPIKey    string   `mapstructure:"price_api_key"`
	RequestTimeout int      `mapstructure:"request_timeout"` // seconds
	Retries        int      `mapstructure:"retries"`
	Workers        int      `mapstructure:"workers"`
	TxFetchLimit   int      `mapstructure:"tx_fetch_limit"`
	ExportDir      string   `mapstructure:"export_dir"`
	DebugLogging   bool     `mapstructure:"debug_logging"`
}

const (
	DefaultRequestTimeout = 30
	DefaultRetries        = 3
	DefaultWorkers        = 5
	DefaultTxFetchLimit   = 100
	DefaultPriceAPIURL    = "https://api.coingecko.com/api/v3"
	DefaultExportDir      = "exports"
)

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	defaults := map[string]interface{}{
		"request_timeout": DefaultRequestTimeout,
		"retries":         DefaultRetries,
		"workers":         DefaultWorkers,
		"tx_fetch_limit":  DefaultTxFetchLimit,
		"price_api_url":   DefaultPriceAPIURL,
		"export_dir":      DefaultExportDir,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	loadEnvironmentVariables(v, &cfg)

	return &cfg, validateConfig(&cfg)
}

func loadEnvironmentVariables(v *viper.Viper, cfg *Config) {
	v.SetEnvPrefix("LPA")
	v.AutomaticEnv()

	if key := v.GetString("DATA_API_KEY"); key != "" {
		cfg.DataAPIKey = key
	}
	if key := v.GetString("PRICE_API_KEY"); key != "" {
		cfg.PriceAPIKey = key
	}
}

func validateConfig(cfg *Config) error {
	if len(cfg.RPCList) == 0 {
		return errors.New("rpc_list is empty")
	}
	for _, rpcURL := range cfg.RPCList {
		if err := validateURL(rpcURL, "http"); err != nil {
			return errors.New("invalid RPC URL protocol")
		}
	}
	if cfg.DataAPIURL == "" {
		return errors.New("missing data_api_url in configuration")
	}
	if err := validateURL(cfg.DataAPIURL, "http"); err != nil {
		return errors.New("invalid data API URL protocol")
	}
	if err := validateURL(cfg.PriceAPIURL, "http"); err != nil {
		return errors.New("invalid price API URL protocol")
	}
	return validateNumericParams(cfg)
}

func validateNumericParams(cfg *Config) error {
	if cfg.RequestTimeout <= 0 {
		return errors.New("invalid request_timeout")
	}
	if cfg.Retries < 0 {
		return errors.New("invalid retries count")
	}
	if cfg.Workers <= 0 {
		return errors.New("invalid workers count")
	}
	if cfg.TxFetchLimit <= 0 {
		return errors.New("invalid tx_fetch_limit")
	}
	return nil
}

func validateURL(rawURL, protocol string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) {
		return errors.New("unexpected URL scheme")
	}
	return nil
}
