package config

import (
	"errors"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Market   Market   `mapstructure:"market"`
	Stocks   []Stock  `mapstructure:"stocks"`
	Logger   Logger   `mapstructure:"logger"`
	Server   Server   `mapstructure:"server"`
	Database Database `mapstructure:"database"`
	Notify   Notify   `mapstructure:"notify"`
	Redis    Redis    `mapstructure:"redis"`
}

// Market holds the tuning constants of the price simulation.
// Drift and volatility are expressed per simulated second.
type Market struct {
	TickSeconds float64 `mapstructure:"tick_seconds"`
	Seed        int64   `mapstructure:"seed"`
	// KeepAlive is a cron spec for the background catch-up, e.g. "@every 1m". Empty disables it.
	KeepAlive string `mapstructure:"keep_alive"`

	BaseDrift      float64 `mapstructure:"base_drift"`
	BaseVolatility float64 `mapstructure:"base_volatility"`
	BaseVolume     float64 `mapstructure:"base_volume"`

	MinPrice      float64 `mapstructure:"min_price"`
	MaxDrift      float64 `mapstructure:"max_drift"`
	MinVolatility float64 `mapstructure:"min_volatility"`
	MaxVolatility float64 `mapstructure:"max_volatility"`
	MaxLogStep    float64 `mapstructure:"max_log_step"`

	PriceImpact       float64 `mapstructure:"price_impact"`
	MaxPriceImpact    float64 `mapstructure:"max_price_impact"`
	DriftImpact       float64 `mapstructure:"drift_impact"`
	VolatilityImpact  float64 `mapstructure:"volatility_impact"`
	VolumeAlpha       float64 `mapstructure:"volume_alpha"`
	LiquidityExponent float64 `mapstructure:"liquidity_exponent"`
	DecayFactor       float64 `mapstructure:"decay_factor"`

	BaseSpread             float64 `mapstructure:"base_spread"`
	MaxSpread              float64 `mapstructure:"max_spread"`
	SpreadVolatilityFactor float64 `mapstructure:"spread_volatility_factor"`
	SpreadLiquidityFactor  float64 `mapstructure:"spread_liquidity_factor"`
	SpreadVolumeExponent   float64 `mapstructure:"spread_volume_exponent"`

	ActorsPerTick         int     `mapstructure:"actors_per_tick"`
	ActorOrderSize        float64 `mapstructure:"actor_order_size"`
	ActorPull             float64 `mapstructure:"actor_pull"`
	ActorRetargetTicks    int     `mapstructure:"actor_retarget_ticks"`
	ActorTargetVolatility float64 `mapstructure:"actor_target_volatility"`
	ActorTargetReversion  float64 `mapstructure:"actor_target_reversion"`
	ActorSoftRange        float64 `mapstructure:"actor_soft_range"`
}

// Stock defines an instrument seeded at database initialization.
type Stock struct {
	Code  string  `mapstructure:"code"`
	Name  string  `mapstructure:"name"`
	Price float64 `mapstructure:"price"`
}

// Server holds the configuration for the web server.
type Server struct {
	Port           int     `mapstructure:"port"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// Database holds the configuration for the database.
type Database struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// Notify holds where user-facing market messages are relayed.
type Notify struct {
	WebhookURL     string  `mapstructure:"webhook_url"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
	RedisStream    string  `mapstructure:"redis_stream"`
}

// Redis holds the connection settings for the notification stream.
type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// DefaultMarket returns the reference tuning of the market.
func DefaultMarket() Market {
	return Market{
		TickSeconds: 5,

		BaseDrift:      0,
		BaseVolatility: 0.0005,
		BaseVolume:     100,

		MinPrice:      0.01,
		MaxDrift:      0.0001,
		MinVolatility: 0.0001,
		MaxVolatility: 1.0,
		MaxLogStep:    0.25,

		PriceImpact:       0.005,
		MaxPriceImpact:    0.5,
		DriftImpact:       0.00001,
		VolatilityImpact:  0.0001,
		VolumeAlpha:       0.1,
		LiquidityExponent: 0.5,
		DecayFactor:       0.9,

		BaseSpread:             0.001,
		MaxSpread:              0.10,
		SpreadVolatilityFactor: 1.0,
		SpreadLiquidityFactor:  0.01,
		SpreadVolumeExponent:   0.5,

		ActorsPerTick:         5,
		ActorOrderSize:        10,
		ActorPull:             20,
		ActorRetargetTicks:    180,
		ActorTargetVolatility: 0.05,
		ActorTargetReversion:  0.9,
		ActorSoftRange:        3,
	}
}

// DefaultStocks returns the instruments the exchange opens with.
func DefaultStocks() []Stock {
	const basePrice = 300
	return []Stock{
		{Code: "JGD", Name: "JackpotGeniusDeluxe", Price: basePrice},
		{Code: "BCM", Name: "BingoCommunity", Price: basePrice},
		{Code: "STW", Name: "StarWheel", Price: basePrice},
		{Code: "SVF", Name: "SavannahFrenzy", Price: basePrice},
		{Code: "CMC", Name: "CheekyMonkeyCommunity", Price: basePrice},
		{Code: "WDC", Name: "WildDevilsCommunity", Price: basePrice},
		{Code: "CSH", Name: "Crusher", Price: basePrice},
	}
}

// LoadConfig reads configuration from file or environment variables.
// A missing config file is not an error; defaults are used instead.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config") // name of config file (without extension)
	v.SetConfigType("yml")

	// Allow environment variables to override config file
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit", 1)       // orders per second per user
	v.SetDefault("server.rate_limit_burst", 5) // burst size
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "data/storage.db")
	v.SetDefault("notify.rate_limit", 2)
	v.SetDefault("notify.rate_limit_burst", 5)
	v.SetDefault("market.keep_alive", "@every 1m")

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return
		}
		err = nil
	}

	config.Market = DefaultMarket()
	if err = v.Unmarshal(&config); err != nil {
		return
	}
	if len(config.Stocks) == 0 {
		config.Stocks = DefaultStocks()
	}
	return
}
