// Package config holds the application configuration, loaded from the
// environment with optional .env overrides.
package config

import (
	"time"
)

type Server struct {
	Scheme string `envconfig:"SCHEME" default:"http"`
	Host   string `envconfig:"HOST" default:"localhost"`
	Port   int    `envconfig:"PORT" default:"8000"`
}

type Log struct {
	Level      int    `envconfig:"LEVEL" default:"0"`
	Format     string `envconfig:"FORMAT" default:"text"`
	TimeFormat string `envconfig:"TIME_FORMAT" default:"2006-01-02 15:04:05"`
	Prefix     string `envconfig:"PREFIX" default:"[ambag]"`
}

type DB struct {
	// Url is a postgres connection string. When empty, File is opened
	// with the sqlite driver instead.
	Url  string `envconfig:"URL"`
	File string `envconfig:"FILE" default:"ambag.db"`
}

// RateLimit configures the per-client request limiter.
type RateLimit struct {
	MaxRequests int           `envconfig:"MAX_REQUESTS" default:"100"`
	Window      time.Duration `envconfig:"WINDOW" default:"1m"`
}

// Monitor configures the goal monitoring scheduler.
type Monitor struct {
	Interval   time.Duration `envconfig:"INTERVAL" default:"30m"`
	BatchSize  int           `envconfig:"BATCH_SIZE" default:"5"`
	BatchPause time.Duration `envconfig:"BATCH_PAUSE" default:"1s"`
	MaxRetries int           `envconfig:"MAX_RETRIES" default:"3"`
	OpTimeout  time.Duration `envconfig:"OP_TIMEOUT" default:"30s"`
}

// Notify configures the notification dispatch worker pool.
type Notify struct {
	Workers     int           `envconfig:"WORKERS" default:"4"`
	QueueSize   int           `envconfig:"QUEUE_SIZE" default:"256"`
	SendTimeout time.Duration `envconfig:"SEND_TIMEOUT" default:"10s"`
	MaxAttempts int           `envconfig:"MAX_ATTEMPTS" default:"3"`
}

type App struct {
	Env       string     `envconfig:"APP_ENV" default:"development"`
	Server    *Server    `envconfig:"SERVER"`
	Log       *Log       `envconfig:"LOG"`
	DB        *DB        `envconfig:"DATABASE"`
	Monitor   *Monitor   `envconfig:"MONITOR"`
	Notify    *Notify    `envconfig:"NOTIFY"`
	RateLimit *RateLimit `envconfig:"RATE_LIMIT"`
}
