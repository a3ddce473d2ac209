package runsearch

import (
	"time"

	"lead-pipeline/internal/common/config"
)

// MaxPlacesCeiling bounds an all-pages walk requested from a process.
const MaxPlacesCeiling = 200

type Config struct {
	Enabled       bool
	MaxJobsActive int
	Timeout       time.Duration
	MaxPlaces     int
}

func LoadConfig(appCfg *config.Config) *Config {
	wc := config.GetWorkerConfig(appCfg, TaskType)
	return &Config{
		Enabled:       wc.Enabled,
		MaxJobsActive: wc.MaxJobsActive,
		Timeout:       config.GetDuration(wc.Timeout),
		MaxPlaces:     MaxPlacesCeiling,
	}
}
