package main

import "time"

type Config struct {
	BufferSize        int           `env:"BUFFER_SIZE,default=64"`
	SessionTimeout    time.Duration `env:"SESSION_TIMEOUT,required=true"`
	SweepInterval     time.Duration `env:"SWEEP_INTERVAL,required=true"`
	TelemetryInterval time.Duration `env:"TELEMETRY_INTERVAL,default=30s"`
	HistoryPageLimit  int           `env:"HISTORY_PAGE_LIMIT,default=100"`
	AuthSecret        string        `env:"AUTH_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`
	BadgerFilepath    string        `env:"BADGER_FILEPATH,required=true"`
	LogLevel          string        `env:"LOG_LEVEL,required=true"`
	Host              string        `env:"HOST,default=localhost"`
	Port              int           `env:"PORT,default=8080"`
}
