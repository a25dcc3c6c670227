package ratelimiter

import "time"

type Limiter interface {
	Allow(key string) (bool, time.Duration)
}

type Config struct {
	RequestsPerTimeFrame int           `envconfig:"REQUESTS_COUNT" default:"20"`
	TimeFrame            time.Duration `envconfig:"TIME_FRAME" default:"5s"`
	Enabled              bool          `envconfig:"ENABLED" default:"true"`
}
