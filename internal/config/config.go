package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type TokenBackend string

const (
	TokenBackendFile     TokenBackend = "file"
	TokenBackendSQLite   TokenBackend = "sqlite"
	TokenBackendPostgres TokenBackend = "postgres"
)

type CacheBackend string

const (
	CacheBackendFS     CacheBackend = "fs"
	CacheBackendRedis  CacheBackend = "redis"
	CacheBackendMemory CacheBackend = "memory"
)

type Strava struct {
	ClientID     string        `env:"CLIENT_ID,required"`
	ClientSecret string        `env:"CLIENT_SECRET,required"`
	RedirectURL  string        `env:"REDIRECT_URI" envDefault:"http://localhost:8080/auth/callback"`
	Timeout      time.Duration `env:"TIMEOUT" envDefault:"15s"`
}

// TTL holds the per-call-site cache lifetimes. Activity detail entries
// outlive list entries: past activities rarely change while the list
// grows with every new activity.
type TTL struct {
	ActivityList   time.Duration `env:"ACTIVITY_LIST_TTL" envDefault:"5m"`
	ActivityDetail time.Duration `env:"ACTIVITY_DETAIL_TTL" envDefault:"30m"`
	Stats          time.Duration `env:"STATS_TTL" envDefault:"5m"`
}

type Config struct {
	Port         string       `env:"PORT" envDefault:"8080"`
	DataDir      string       `env:"DATA_DIR" envDefault:"./data"`
	TokenBackend TokenBackend `env:"TOKEN_BACKEND" envDefault:"file"`
	CacheBackend CacheBackend `env:"CACHE_BACKEND" envDefault:"fs"`
	DatabaseURL  string       `env:"DATABASE_URL"`
	RedisURL     string       `env:"REDIS_URL"`

	Strava Strava `envPrefix:"STRAVA_"`
	Cache  TTL    `envPrefix:"CACHE_"`
}

func Read() (Config, error) {
	return env.ParseAs[Config]()
}
