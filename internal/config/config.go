package config

import (
	"bufio"
	"fmt"
	"net"
	neturl "net/url"
	"os"
	"strings"
	"time"

	"accounts/backend/internal/usecase/auth"

	"github.com/caarlos0/env/v11"
)

// Config centralises runtime configuration.
type Config struct {
	HTTPPort        string        `env:"HTTP_PORT"`
	Port            string        `env:"PORT" envDefault:"8080"`
	DatabaseURL     string        `env:"DATABASE_URL"`
	MigrateOnStart  bool          `env:"MIGRATE_ON_START" envDefault:"true"`
	AllowedOrigins  []string      `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"15s"`
	IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	LogFormat       string        `env:"LOG_FORMAT" envDefault:"json"`

	SecretKey        string        `env:"SECRET_KEY"`
	Algorithm        string        `env:"ALGORITHM" envDefault:"HS256"`
	TokenTTL         time.Duration `env:"TOKEN_TTL" envDefault:"4m"`
	TokenLeeway      time.Duration `env:"TOKEN_LEEWAY" envDefault:"0s"`
	BearerHeader     bool          `env:"AUTH_BEARER_HEADER" envDefault:"false"`
	CookieSecure     bool          `env:"COOKIE_SECURE" envDefault:"false"`
	Argon2MemoryKiB  uint32        `env:"ARGON2_MEMORY_KIB" envDefault:"65536"`
	Argon2Iterations uint32        `env:"ARGON2_ITERATIONS" envDefault:"1"`
	Argon2Threads    uint8         `env:"ARGON2_PARALLELISM" envDefault:"4"`
	HashConcurrency  int           `env:"HASH_CONCURRENCY" envDefault:"4"`
}

// Load reads configuration from environment variables, after an optional .env file.
// It fails when the database or the authentication settings are unusable.
// Token settings come back resolved, so a zero TOKEN_TTL reads as the default lifetime.
func Load() (Config, error) {
	cfg, err := LoadDatabase()
	if err != nil {
		return Config{}, err
	}
	authCfg, err := cfg.Auth()
	if err != nil {
		return Config{}, err
	}
	cfg.Algorithm = authCfg.Algorithm
	cfg.TokenTTL = authCfg.DefaultTTL
	return cfg, nil
}

// LoadDatabase is Load without the authentication checks, for tooling such as migrations.
func LoadDatabase() (Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, fmt.Errorf("loading .env: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.HTTPPort == "" {
		cfg.HTTPPort = cfg.Port
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = resolveDatabaseURL()
	} else {
		cfg.DatabaseURL = normalisePostgresScheme(strings.TrimSpace(cfg.DatabaseURL))
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("database configuration missing: provide DATABASE_URL or PG* env vars")
	}
	return cfg, nil
}

// Auth builds the validated configuration for the authentication core.
func (c Config) Auth() (auth.Config, error) {
	return auth.NewConfig(c.SecretKey, c.Algorithm, c.TokenTTL, c.TokenLeeway, auth.HashCost{
		MemoryKiB:   c.Argon2MemoryKiB,
		Iterations:  c.Argon2Iterations,
		Parallelism: c.Argon2Threads,
		Concurrency: c.HashConcurrency,
	})
}

// resolveDatabaseURL assembles a DSN from POSTGRES_URL or the libpq PG* variables.
func resolveDatabaseURL() string {
	if url := strings.TrimSpace(os.Getenv("POSTGRES_URL")); url != "" {
		return normalisePostgresScheme(url)
	}

	host := firstNonEmpty(os.Getenv("PGHOST"), os.Getenv("POSTGRES_HOST"))
	user := firstNonEmpty(os.Getenv("PGUSER"), os.Getenv("POSTGRES_USER"))
	if host == "" || user == "" {
		return ""
	}
	password := firstNonEmpty(os.Getenv("PGPASSWORD"), os.Getenv("POSTGRES_PASSWORD"))
	database := firstNonEmpty(os.Getenv("PGDATABASE"), os.Getenv("POSTGRES_DB"), user)
	port := firstNonEmpty(os.Getenv("PGPORT"), os.Getenv("POSTGRES_PORT"), "5432")
	sslMode := firstNonEmpty(os.Getenv("PGSSLMODE"), "require")

	dsn := &neturl.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(host, port),
		Path:   "/" + database,
		User:   neturl.User(user),
	}
	if password != "" {
		dsn.User = neturl.UserPassword(user, password)
	}
	query := dsn.Query()
	query.Set("sslmode", sslMode)
	dsn.RawQuery = query.Encode()
	return dsn.String()
}

func normalisePostgresScheme(url string) string {
	if rest, ok := strings.CutPrefix(url, "postgresql://"); ok {
		return "postgres://" + rest
	}
	return url
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// loadDotEnv exports KEY=VALUE lines from path. Variables already set win.
func loadDotEnv(path string) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf(".env line %d: missing '='", lineNum)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" {
			return fmt.Errorf(".env line %d: empty key", lineNum)
		}
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') || (value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}

		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return fmt.Errorf(".env line %d: %w", lineNum, err)
		}
	}
	return scanner.Err()
}
