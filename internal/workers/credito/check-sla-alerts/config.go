// internal/workers/credito/check-sla-alerts/config.go
package checkslaalerts

import (
	"time"

	"motocredito-workers/internal/common/config"
)

type Config struct {
	Timeout     time.Duration
	BatchLimit  int
	Concurrency int
}

func LoadConfig(wcfg config.WorkerConfig) *Config {
	timeout := config.GetDuration(wcfg.Timeout)
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Config{Timeout: timeout, BatchLimit: 200, Concurrency: 4}
}
