package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App    AppConfig    `mapstructure:"app"`
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
	DB     DBConfig     `mapstructure:"db"`
	Cron   CronConfig   `mapstructure:"cron"`

	Oracle       OracleConfig       `mapstructure:"oracle"`
	PriceService PriceServiceConfig `mapstructure:"price_service"`
	Token        TokenConfig        `mapstructure:"token"`
	Lottery      LotteryConfig      `mapstructure:"lottery"`
	Prediction   PredictionConfig   `mapstructure:"prediction"`
}

type AppConfig struct {
	Env          string `mapstructure:"env"`
	OwnerAddress string `mapstructure:"owner_address"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type CronConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	OracleRefresh string `mapstructure:"oracle_refresh"`
}

// OracleConfig configures the price oracle adapter: which publisher key is
// trusted, what an update costs, and how stale a cached price may be before
// round transitions refuse to use it.
type OracleConfig struct {
	FeedID           string        `mapstructure:"feed_id"`
	PublisherAddress string        `mapstructure:"publisher_address"`
	UpdateFee        int64         `mapstructure:"update_fee"`
	UpdateAllowance  time.Duration `mapstructure:"update_allowance"`
}

type PriceServiceConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	StreamURL string        `mapstructure:"stream_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type TokenConfig struct {
	TreasuryAddress string `mapstructure:"treasury_address"`
}

type LotteryConfig struct {
	PoolAddress    string        `mapstructure:"pool_address"`
	MinRoundLength time.Duration `mapstructure:"min_round_length"`
	MaxRoundLength time.Duration `mapstructure:"max_round_length"`
	MinTicketPrice int64         `mapstructure:"min_ticket_price"`
	MaxTicketPrice int64         `mapstructure:"max_ticket_price"`
	MaxBuyBatch    int           `mapstructure:"max_buy_batch"`
	MaxTreasuryFee uint32        `mapstructure:"max_treasury_fee_bp"`
	RolloverPolicy string        `mapstructure:"rollover_policy"`
}

type PredictionConfig struct {
	PoolAddress     string        `mapstructure:"pool_address"`
	IntervalSeconds int64         `mapstructure:"interval_seconds"`
	BufferSeconds   int64         `mapstructure:"buffer_seconds"`
	MinBetAmount    int64         `mapstructure:"min_bet_amount"`
	TreasuryFeeBp   uint32        `mapstructure:"treasury_fee_bp"`
	FeedID          string        `mapstructure:"feed_id"`
	OracleAllowance time.Duration `mapstructure:"oracle_allowance"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("GF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	v.SetDefault("app.env", "dev")
	v.SetDefault("app.owner_address", "")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.oracle_refresh", "@every 30s")

	v.SetDefault("oracle.feed_id", "btc-usd")
	v.SetDefault("oracle.publisher_address", "")
	v.SetDefault("oracle.update_fee", 1)
	v.SetDefault("oracle.update_allowance", "60s")

	v.SetDefault("price_service.base_url", "https://hermes.pyth.network")
	v.SetDefault("price_service.stream_url", "")
	v.SetDefault("price_service.timeout", "15s")

	v.SetDefault("token.treasury_address", "0xfee0000000000000000000000000000000000001")

	v.SetDefault("lottery.pool_address", "0x1070000000000000000000000000000000000001")
	v.SetDefault("lottery.min_round_length", "4h")
	v.SetDefault("lottery.max_round_length", "96h")
	// Smallest-unit amounts carry 8 decimal places: 0.005 to 50 tokens.
	v.SetDefault("lottery.min_ticket_price", 500_000)
	v.SetDefault("lottery.max_ticket_price", 5_000_000_000)
	v.SetDefault("lottery.max_buy_batch", 100)
	v.SetDefault("lottery.max_treasury_fee_bp", 3000)
	v.SetDefault("lottery.rollover_policy", "rollover")

	v.SetDefault("prediction.pool_address", "0x9ed0000000000000000000000000000000000001")
	v.SetDefault("prediction.interval_seconds", 900)
	v.SetDefault("prediction.buffer_seconds", 30)
	v.SetDefault("prediction.min_bet_amount", 10_000_000)
	v.SetDefault("prediction.treasury_fee_bp", 200)
	v.SetDefault("prediction.feed_id", "btc-usd")
	v.SetDefault("prediction.oracle_allowance", "60s")

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
