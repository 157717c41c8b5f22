package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Payment  PaymentConfig
	PayPal   PayPalConfig
	Stripe   StripeConfig
	Coinbase CoinbaseConfig
	Pricing  PricingConfig
}

type ServerConfig struct {
	Port         string        `env:"SERVER_PORT" envDefault:"8080"`
	Env          string        `env:"APP_ENV" envDefault:"development"`
	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"10s"`
	FrontendURL  string        `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`
}

type DatabaseConfig struct {
	DSN             string        `env:"DATABASE_DSN" envDefault:"vexchange:vexchange@tcp(localhost:3306)/vexchange?charset=utf8mb4&parseTime=True&loc=Local"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"100"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"1h"`
}

type JWTConfig struct {
	Secret string        `env:"JWT_SECRET" envDefault:"change-me-in-production"`
	Expiry time.Duration `env:"JWT_EXPIRY" envDefault:"24h"`
	Issuer string        `env:"JWT_ISSUER" envDefault:"vexchange"`
}

// PaymentConfig holds the generic webhook secret and manual deposit addresses.
type PaymentConfig struct {
	WebhookSecret      string `env:"PAYMENT_WEBHOOK_SECRET"`
	DepositBTCAddress  string `env:"DEPOSIT_BTC_ADDRESS"`
	DepositETHAddress  string `env:"DEPOSIT_ETH_ADDRESS"`
	DepositUSDTAddress string `env:"DEPOSIT_USDT_ADDRESS"`
}

type PayPalConfig struct {
	ClientID     string `env:"PAYPAL_CLIENT_ID"`
	ClientSecret string `env:"PAYPAL_CLIENT_SECRET"`
	Mode         string `env:"PAYPAL_MODE" envDefault:"sandbox"`
}

type StripeConfig struct {
	SecretKey     string `env:"STRIPE_SECRET_KEY"`
	WebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`
}

type CoinbaseConfig struct {
	APIKey        string `env:"COINBASE_COMMERCE_API_KEY"`
	WebhookSecret string `env:"COINBASE_COMMERCE_WEBHOOK_SECRET"`
}

type PricingConfig struct {
	BaseURL        string        `env:"COINGECKO_BASE_URL" envDefault:"https://api.coingecko.com/api/v3"`
	RequestTimeout time.Duration `env:"PRICING_REQUEST_TIMEOUT" envDefault:"15s"`
	TickerInterval time.Duration `env:"PRICE_TICKER_INTERVAL" envDefault:"15s"`
}

func Load() (*Config, error) {
	// .env is optional; deployments normally set the environment directly.
	_ = godotenv.Load()
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
