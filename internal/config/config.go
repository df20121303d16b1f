package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig   `envPrefix:"SERVER_"`
	Postgres PostgresConfig `envPrefix:"POSTGRES_"`
	Redis    RedisConfig    `envPrefix:"REDIS_"`
	AMQP     AMQPConfig     `envPrefix:"AMQP_"`
	Auth     AuthConfig     `envPrefix:"AUTH_"`
	Booking  BookingConfig  `envPrefix:"BOOKING_"`
	Reaper   ReaperConfig   `envPrefix:"REAPER_"`
	Gateway  GatewayConfig  `envPrefix:"RAZORPAY_"`
	Webhook  WebhookConfig  `envPrefix:"WEBHOOK_"`
}

type ServerConfig struct {
	Host            string        `env:"HOST" envDefault:"localhost"`
	Port            int           `env:"PORT" envDefault:"8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	CORSOrigins     []string      `env:"CORS_ORIGINS" envSeparator:","`
}

type PostgresConfig struct {
	User     string `env:"USER,required,notEmpty"`
	Password string `env:"PASSWORD,required,notEmpty"`
	Name     string `env:"DB,required,notEmpty"`
	Host     string `env:"HOST" envDefault:"localhost"`
	Port     int    `env:"PORT" envDefault:"5432"`
	SSLMode  string `env:"SSLMODE" envDefault:"disable"`
	MaxConns int32  `env:"MAX_CONNS" envDefault:"20"`
	Migrate  bool   `env:"MIGRATE" envDefault:"true"`
}

// DSN renders the pgx connection URL.
func (c PostgresConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     c.Name,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}

type RedisConfig struct {
	Addr     string `env:"ADDR" envDefault:"localhost:6379"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
	// Disabled runs without Redis: no cache, rate limit, idempotency or
	// cross-replica reaper lock.
	Disabled bool `env:"DISABLED" envDefault:"false"`
}

// AMQPConfig leaves lifecycle events unpublished when URL is empty.
type AMQPConfig struct {
	URL      string `env:"URL"`
	Exchange string `env:"EXCHANGE" envDefault:"cinehold.bookings"`
}

type AuthConfig struct {
	JWTSecret string `env:"JWT_SECRET,required,notEmpty"`
}

type BookingConfig struct {
	HoldDuration    time.Duration `env:"HOLD_DURATION" envDefault:"10m"`
	Currency        string        `env:"CURRENCY" envDefault:"INR"`
	StandardPrice   int64         `env:"PRICE_STANDARD" envDefault:"20000"`
	PremiumPrice    int64         `env:"PRICE_PREMIUM" envDefault:"30000"`
	RateLimit       int64         `env:"RATE_LIMIT" envDefault:"10"`
	RateLimitWindow time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`
	IdempotencyTTL  time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"2h"`
	ShowCacheTTL    time.Duration `env:"SHOW_CACHE_TTL" envDefault:"60s"`
}

type ReaperConfig struct {
	Interval  time.Duration `env:"INTERVAL" envDefault:"60s"`
	BatchSize int           `env:"BATCH_SIZE" envDefault:"500"`
	LockTTL   time.Duration `env:"LOCK_TTL" envDefault:"50s"`
}

type GatewayConfig struct {
	BaseURL          string        `env:"BASE_URL" envDefault:"https://api.razorpay.com/v1"`
	KeyID            string        `env:"KEY_ID,required,notEmpty"`
	KeySecret        string        `env:"KEY_SECRET,required,notEmpty"`
	Timeout          time.Duration `env:"TIMEOUT" envDefault:"10s"`
	BreakerThreshold int64         `env:"BREAKER_THRESHOLD" envDefault:"5"`
}

type WebhookConfig struct {
	Secret   string `env:"SECRET,required,notEmpty"`
	MaxBytes int64  `env:"MAX_BYTES" envDefault:"1048576"`
}

// New loads .env when present and parses the environment.
func New() (*Config, error) {
	const op = "config.New"

	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if cfg.Booking.HoldDuration <= 0 {
		return nil, fmt.Errorf("%s: BOOKING_HOLD_DURATION must be positive", op)
	}

	if cfg.Booking.StandardPrice <= 0 || cfg.Booking.PremiumPrice <= 0 {
		return nil, fmt.Errorf("%s: seat prices must be positive", op)
	}

	return &cfg, nil
}
