package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the agent.
type Config struct {
	Solana   Solana   `mapstructure:"solana"`
	Wallet   Wallet   `mapstructure:"wallet"`
	Trading  Trading  `mapstructure:"trading"`
	Logger   Logger   `mapstructure:"logger"`
	Server   Server   `mapstructure:"server"`
	Database Database `mapstructure:"database"`
}

// Solana holds endpoints and limits for the upstream services.
type Solana struct {
	RPCURL         string  `mapstructure:"rpc_url"`
	WalletAPIURL   string  `mapstructure:"wallet_api_url"`
	JupiterAPIURL  string  `mapstructure:"jupiter_api_url"`
	PriceAPIURL    string  `mapstructure:"price_api_url"`
	SocialAPIURL   string  `mapstructure:"social_api_url"`
	WalletAPIKey   string  `mapstructure:"wallet_api_key"`
	PriceAPIKey    string  `mapstructure:"price_api_key"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// Wallet identifies the agent's wallet owner.
type Wallet struct {
	OwnerAddress string `mapstructure:"owner_address"`
}

// Trading holds the defaults applied to execution cycles.
type Trading struct {
	SlippageBps        int     `mapstructure:"slippage_bps"`
	MaxRetries         int     `mapstructure:"max_retries"`
	MinimumSOLReserve  float64 `mapstructure:"minimum_sol_reserve"`
	ConfirmTransaction bool    `mapstructure:"confirm_transaction"`
	PriorityFee        string  `mapstructure:"priority_fee"`
}

// Server holds the configuration for the status API server.
type Server struct {
	Port int `mapstructure:"port"`
}

// Database holds the configuration for the trade journal.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Defaults matching the upstream service behaviour. Exposed so the trader
// package and tests share the same values.
const (
	DefaultSlippageBps       = 150
	DefaultMaxRetries        = 3
	DefaultMinimumSOLReserve = 0.005
	DefaultBalancePollDelay  = 60 * time.Second
	DefaultConditionPollRate = 30 * time.Second
	DefaultConditionMaxWait  = 24 * time.Hour
)

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("yml")

	// Allow environment variables to override config file
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("solana.rpc_url", "https://api.mainnet-beta.solana.com")
	viper.SetDefault("solana.jupiter_api_url", "https://quote-api.jup.ag/v6")
	viper.SetDefault("solana.price_api_url", "https://api.mobula.io/api/1")
	viper.SetDefault("solana.rate_limit", 10) // requests per second
	viper.SetDefault("solana.rate_limit_burst", 5)
	viper.SetDefault("trading.slippage_bps", DefaultSlippageBps)
	viper.SetDefault("trading.max_retries", DefaultMaxRetries)
	viper.SetDefault("trading.minimum_sol_reserve", DefaultMinimumSOLReserve)
	viper.SetDefault("trading.confirm_transaction", true)
	viper.SetDefault("trading.priority_fee", "auto")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("database.dsn", "agent.db")
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.format", "console")

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}
