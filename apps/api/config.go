package main

import (
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type config struct {
	Port            string        `env:"PORT" envDefault:"3000"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv          string        `env:"APP_ENV" envDefault:"production"` // production | staging | development | local

	DatabaseURL    string        `env:"DATABASE_URL,required"`
	DBMaxConns     int32         `env:"DB_MAX_CONNS" envDefault:"20"`
	DBMinConns     int32         `env:"DB_MIN_CONNS" envDefault:"2"`
	DBAcquireWait  time.Duration `env:"DB_ACQUIRE_TIMEOUT" envDefault:"5s"`
	SharedSchema   string        `env:"SHARED_SCHEMA" envDefault:"public"`
	CacheTTL       time.Duration `env:"TENANT_CACHE_TTL" envDefault:"5m"`
	CacheMaxKeys   int64         `env:"TENANT_CACHE_MAX_ENTRIES" envDefault:"10000"`
	Reserved       []string      `env:"RESERVED_SUBDOMAINS" envDefault:"www,api,admin,platform,app" envSeparator:","`
	DevHeader      string        `env:"DEV_TENANT_HEADER" envDefault:"X-School-Subdomain"`
	DevQueryParam  string        `env:"DEV_TENANT_QUERY" envDefault:"school"`
	TrustClaims    bool          `env:"TRUST_SESSION_CLAIMS" envDefault:"false"`
	AllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	AuthProvider    string `env:"AUTH_PROVIDER" envDefault:"firebase"` // firebase | hmac | dev
	AuthHMACSecret  string `env:"AUTH_HMAC_SECRET"`
	FirebaseCreds   string `env:"FIREBASE_CREDENTIALS_FILE"`

	RedisURL     string `env:"REDIS_URL"`
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure bool   `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"false"`
}

// developmentLike reports whether dev-only conveniences may be enabled.
func (c config) developmentLike() bool {
	return c.AppEnv == "development" || c.AppEnv == "local"
}

// loadConfig reads an optional .env file outside production, then the process
// environment.
func loadConfig() (config, error) {
	if appEnv := os.Getenv("APP_ENV"); appEnv != "" && appEnv != "production" {
		_ = godotenv.Load()
	}

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return config{}, err
	}
	return cfg, nil
}
