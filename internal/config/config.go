package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"xsushi-ratio-tracker/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Sushi     SushiConfig     `mapstructure:"sushi"`
	Ethereum  EthereumConfig  `mapstructure:"ethereum"`
	Treasury  TreasuryConfig  `mapstructure:"treasury"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// SchedulerConfig governs the detection cadence.
type SchedulerConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	AlignToHour  bool          `mapstructure:"align_to_hour"`
	StartupDelay time.Duration `mapstructure:"startup_delay"`
}

// SushiConfig points at the Sushi data GraphQL endpoint.
type SushiConfig struct {
	GraphQLURL     string        `mapstructure:"graphql_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// EthereumConfig covers the optional on-chain fallback source.
type EthereumConfig struct {
	RPCURL         string        `mapstructure:"rpc_url"`
	BarAddress     string        `mapstructure:"bar_address"`
	SushiAddress   string        `mapstructure:"sushi_address"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// TreasuryConfig captures the treasury holdings endpoint and cache policy.
type TreasuryConfig struct {
	APIURL         string        `mapstructure:"api_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`
	WrappedSymbol  string        `mapstructure:"wrapped_symbol"`
}

// TelegramConfig 描述订阅通知的 Telegram 参数。
type TelegramConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	BotToken        string        `mapstructure:"bot_token"`
	PollTimeout     time.Duration `mapstructure:"poll_timeout"`
	SendInterval    time.Duration `mapstructure:"send_interval"`
	DeliveryTimeout time.Duration `mapstructure:"delivery_timeout"`
}

// HTTPConfig configures the API and static frontend server.
type HTTPConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Listen    string `mapstructure:"listen"`
	StaticDir string `mapstructure:"static_dir"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("XSUSHIWATCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "xsushiwatcher")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("scheduler.interval", "1h")
	v.SetDefault("scheduler.align_to_hour", true)
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("sushi.graphql_url", "https://production.data-gcp.sushi.com/graphql")
	v.SetDefault("sushi.request_timeout", "10s")
	v.SetDefault("sushi.user_agent", "xsushiwatcher/1.0")

	v.SetDefault("ethereum.request_timeout", "10s")
	v.SetDefault("ethereum.bar_address", "0x8798249c2E607446EfB7Ad49eC89dD1865Ff4272")
	v.SetDefault("ethereum.sushi_address", "0x6B3595068778DD592e39A122f4f5a5cF09C90fE2")

	v.SetDefault("treasury.request_timeout", "10s")
	v.SetDefault("treasury.cache_ttl", "30m")
	v.SetDefault("treasury.wrapped_symbol", "WETH")

	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.poll_timeout", "10s")
	v.SetDefault("telegram.send_interval", "1s")
	v.SetDefault("telegram.delivery_timeout", "10s")

	v.SetDefault("http.enabled", true)
	v.SetDefault("http.listen", ":8080")
	v.SetDefault("http.static_dir", "static")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Sushi.GraphQLURL == "" {
		return fmt.Errorf("sushi.graphql_url must not be empty")
	}
	if c.Treasury.CacheTTL <= 0 {
		return fmt.Errorf("treasury.cache_ttl must be greater than zero")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token 必须配置")
		}
		if c.Telegram.SendInterval <= 0 {
			return fmt.Errorf("telegram.send_interval must be greater than zero")
		}
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
