package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host string
	Port int
}

type DBConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime string
}

type AuthConfig struct {
	AccessSecret string
}

type ChainConfig struct {
	RESTEndpoint    string
	ContractAddress string
	Denom           string
}

type TreasuryConfig struct {
	Address              string
	MinBalance           int64
	MaxGasSubsidy        int64
	WhitelistedContracts []string
}

type EngineConfig struct {
	// DefaultTrustScore is used when no external trust provider is
	// wired (the chain contract does the same).
	DefaultTrustScore int
	// PendingExpiry bounds how long a transaction record may stay
	// pending before the sweep fails it. Zero disables the sweep.
	PendingExpiry time.Duration
}

type Config struct {
	Environment string
	HTTP        HTTPConfig
	DB          DBConfig
	Auth        AuthConfig
	Chain       ChainConfig
	Treasury    TreasuryConfig
	Engine      EngineConfig
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./deploy")
	v.AddConfigPath("./internal/config")
	v.AutomaticEnv()

	_ = v.ReadInConfig()

	cfg := &Config{
		Environment: v.GetString("APP_ENV"),
		HTTP: HTTPConfig{
			Host: v.GetString("HTTP_HOST"),
			Port: v.GetInt("HTTP_PORT"),
		},
		DB: DBConfig{
			DSN:             v.GetString("DB_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetString("DB_CONN_MAX_LIFETIME"),
		},
		Auth: AuthConfig{
			AccessSecret: v.GetString("JWT_ACCESS_SECRET"),
		},
		Chain: ChainConfig{
			RESTEndpoint:    v.GetString("CHAIN_REST_ENDPOINT"),
			ContractAddress: v.GetString("CHAIN_CONTRACT_ADDRESS"),
			Denom:           v.GetString("CHAIN_DENOM"),
		},
		Treasury: TreasuryConfig{
			Address:              v.GetString("TREASURY_ADDRESS"),
			MinBalance:           v.GetInt64("TREASURY_MIN_BALANCE"),
			MaxGasSubsidy:        v.GetInt64("TREASURY_MAX_GAS_SUBSIDY"),
			WhitelistedContracts: parseList(v.GetString("TREASURY_WHITELISTED_CONTRACTS")),
		},
		Engine: EngineConfig{
			DefaultTrustScore: v.GetInt("ENGINE_DEFAULT_TRUST_SCORE"),
			PendingExpiry:     v.GetDuration("ENGINE_PENDING_EXPIRY"),
		},
	}

	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.HTTP.Host == "" {
		cfg.HTTP.Host = "0.0.0.0"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 7090
	}
	if cfg.Chain.Denom == "" {
		cfg.Chain.Denom = "uxion"
	}
	if cfg.Treasury.MinBalance == 0 {
		cfg.Treasury.MinBalance = 1_000_000
	}
	if cfg.Treasury.MaxGasSubsidy == 0 {
		cfg.Treasury.MaxGasSubsidy = 500_000
	}
	if cfg.Engine.DefaultTrustScore == 0 {
		cfg.Engine.DefaultTrustScore = 50
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.Auth.AccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.DB.DSN == "" && cfg.Environment != "development" {
		return fmt.Errorf("DB_DSN is required outside development")
	}
	return nil
}

func parseList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	items := strings.Split(raw, ",")
	result := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item != "" {
			result = append(result, item)
		}
	}
	return result
}
