package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Postgres struct {
	Host     string
	Port     string
	User     string
	Password string
	DB       string
}

func (p Postgres) ConnString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", p.User, p.Password, p.Host, p.Port, p.DB)
}

type Webhook struct {
	Workers   int
	QueueSize int
	Attempts  uint
	Backoff   time.Duration
	Timeout   time.Duration
}

type Config struct {
	HTTPAddr         string
	Postgres         Postgres
	JWTSecret        string
	AllowedOrigins   []string
	Webhook          Webhook
	OfflineAfter     time.Duration
	SchedulerEnabled bool
	ProbeInterval    time.Duration
}

// New builds a viper instance reading POSTGRES_HOST style variables for
// postgres.host style keys.
func New() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("http.addr", "0.0.0.0:8080")
	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", "5432")
	v.SetDefault("cors.allowed_origins", "")
	v.SetDefault("webhook.workers", 2)
	v.SetDefault("webhook.queue_size", 256)
	v.SetDefault("webhook.attempts", 3)
	v.SetDefault("webhook.backoff", "30s")
	v.SetDefault("webhook.timeout", "10s")
	v.SetDefault("offline.after", "3m")
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("probe.interval", "1m")
	return v
}

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromViper(New())
}

func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		HTTPAddr: v.GetString("http.addr"),
		Postgres: Postgres{
			Host:     v.GetString("postgres.host"),
			Port:     v.GetString("postgres.port"),
			User:     v.GetString("postgres.user"),
			Password: v.GetString("postgres.password"),
			DB:       v.GetString("postgres.db"),
		},
		JWTSecret:      v.GetString("jwt.secret"),
		AllowedOrigins: splitList(v.GetString("cors.allowed_origins")),
		Webhook: Webhook{
			Workers:   v.GetInt("webhook.workers"),
			QueueSize: v.GetInt("webhook.queue_size"),
			Attempts:  v.GetUint("webhook.attempts"),
			Backoff:   v.GetDuration("webhook.backoff"),
			Timeout:   v.GetDuration("webhook.timeout"),
		},
		OfflineAfter:     v.GetDuration("offline.after"),
		SchedulerEnabled: v.GetBool("scheduler.enabled"),
		ProbeInterval:    v.GetDuration("probe.interval"),
	}

	if cfg.Webhook.Workers < 1 {
		return nil, fmt.Errorf("webhook.workers must be at least 1, got %d", cfg.Webhook.Workers)
	}
	if cfg.Webhook.Attempts < 1 {
		return nil, fmt.Errorf("webhook.attempts must be at least 1, got %d", cfg.Webhook.Attempts)
	}
	if cfg.OfflineAfter <= 0 {
		return nil, fmt.Errorf("offline.after must be positive, got %s", cfg.OfflineAfter)
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
