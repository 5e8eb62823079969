package config // loads application configuration from environment variables

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration values.  Each field maps to
// one environment variable; required variables are enforced by must()
// and missing values abort startup.
type Config struct {
	Env            string        // application environment (e.g. "dev", "prod")
	Port           string        // HTTP port to listen on
	DBUser         string        // database username
	DBPass         string        // database password (optional)
	DBHost         string        // database host address
	DBPort         string        // database port number
	DBName         string        // database name
	DBMaxOpenConns int           // connection pool ceiling
	DBMaxIdleConns int           // idle connections kept in the pool
	DBConnLifetime time.Duration // recycle connections after this age
	DBPingTimeout  time.Duration // startup connectivity check bound
	JWTSecret      string        // secret used to sign JWTs
	AccessTTLMin   int           // access token time-to-live in minutes
	RefreshTTLDays int           // refresh token time-to-live in days
	BcryptCost     int           // bcrypt cost for password hashing
	PaymentSecret  string        // shared secret for the payment gateway callback
	StoreTimeout   time.Duration // upper bound on any reservation store round-trip
	CancelCutoff   time.Duration // window before rental start that flags late cancellation
	SweepInterval  time.Duration // how often the schedule sweep runs
	SweepLockTTL   time.Duration // lifetime of the sweep leader lock
}

// Load reads configuration from the environment.
func Load() Config {
	return Config{
		Env:            must("APP_ENV"),
		Port:           must("APP_PORT"),
		DBUser:         must("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"),
		DBHost:         must("DB_HOST"),
		DBPort:         must("DB_PORT"),
		DBName:         must("DB_NAME"),
		DBMaxOpenConns: envInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns: envInt("DB_MAX_IDLE_CONNS", 25),
		DBConnLifetime: envDur("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		DBPingTimeout:  envDur("DB_PING_TIMEOUT", 5*time.Second),
		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:     mustInt("BCRYPT_COST"),
		PaymentSecret:  must("PAYMENT_CALLBACK_SECRET"),
		StoreTimeout:   envDur("STORE_TIMEOUT", 5*time.Second),
		CancelCutoff:   envDur("CANCELLATION_CUTOFF", 48*time.Hour),
		SweepInterval:  envDur("SWEEP_INTERVAL", time.Minute),
		SweepLockTTL:   envDur("SWEEP_LOCK_TTL", time.Minute),
	}
}

// must retrieves a required environment variable or exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the value to an integer.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
