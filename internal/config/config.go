package config

import "time"

type Config struct {
	Environment Environment
	Log         Log
	HTTP        HTTPServer
	Webhook     Webhook

	MyFatoorah  MyFatoorah  `envPrefix:"MYFATOORAH_"`
	Shopify     Shopify     `envPrefix:"SHOPIFY_"`
	Idempotency Idempotency `envPrefix:"IDEMPOTENCY_"`
}

type MyFatoorah struct {
	BaseApiURL  string        `env:"BASE_API_URL" envDefault:"https://api.myfatoorah.com"`
	APIToken    string        `env:"API_TOKEN"`
	Currency    string        `env:"CURRENCY" envDefault:"KWD"`
	CallbackURL string        `env:"CALLBACK_URL"`
	ErrorURL    string        `env:"ERROR_URL"`
	Language    string        `env:"LANGUAGE" envDefault:"en"`
	Timeout     time.Duration `env:"TIMEOUT" envDefault:"30s"`
}

// Configured reports whether payment requests can be sent to the gateway.
func (m *MyFatoorah) Configured() bool {
	return m.APIToken != "" && m.BaseApiURL != ""
}

type Shopify struct {
	AccessToken string        `env:"ACCESS_TOKEN"`
	StoreDomain string        `env:"STORE_DOMAIN"`
	APIVersion  string        `env:"API_VERSION" envDefault:"2024-01"`
	Timeout     time.Duration `env:"TIMEOUT" envDefault:"30s"`
}

func (s *Shopify) Configured() bool {
	return s.AccessToken != "" && s.StoreDomain != ""
}

// Idempotency selects where reconciliation claims are kept.
// Store is one of: memory, sqlite, mysql, redis, none.
type Idempotency struct {
	Store         string        `env:"STORE" envDefault:"memory"`
	DatabaseURL   string        `env:"DATABASE_URL" envDefault:"relay.db"`
	RedisAddr     string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	ClaimTimeout  time.Duration `env:"CLAIM_TIMEOUT" envDefault:"2m"`
	Retention     time.Duration `env:"RETENTION" envDefault:"168h"`
}

type Webhook struct {
	TaskTimeout time.Duration `env:"WEBHOOK_TASK_TIMEOUT" envDefault:"60s"`
}

type Environment struct {
	Name string `env:"ENVIRONMENT" envDefault:"development"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type HTTPServer struct {
	Host            string        `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port            string        `env:"HTTP_PORT" envDefault:"8080"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
}
