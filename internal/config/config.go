package config // application configuration from environment variables

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds the core runtime configuration.  Every field maps to one
// environment variable; required ones are enforced by must() at startup.
type Config struct {
	Env            string // "dev", "test" or "prod"
	Port           string // HTTP port to listen on
	DBUser         string
	DBPass         string // optional
	DBHost         string
	DBPort         string
	DBName         string
	JWTSecret      string // HS256 signing secret
	AccessTTLMin   int    // access token TTL in minutes
	RefreshTTLDays int    // refresh token TTL in days
	BcryptCost     int
	MarketTZ       string // IANA zone showing schedules are interpreted in
}

// Load reads the environment and returns a Config.  Missing required
// variables are fatal; a server with half a config should not start.
func Load() Config {
	return Config{
		Env:            must("APP_ENV"),
		Port:           must("APP_PORT"),
		DBUser:         must("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"),
		DBHost:         must("DB_HOST"),
		DBPort:         must("DB_PORT"),
		DBName:         must("DB_NAME"),
		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:     mustInt("BCRYPT_COST"),
		MarketTZ:       getenv("MARKET_TZ", "Local"),
	}
}

// Location resolves MarketTZ.  Lock-code availability is computed in
// this zone because showing times are stored without an offset.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.MarketTZ)
	if err != nil {
		log.Printf("invalid MARKET_TZ %q, falling back to Local: %v", c.MarketTZ, err)
		return time.Local
	}
	return loc
}

func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
