package config

import "time"

// defaults is merged into a loaded Config for every field the YAML file
// left at its zero value (see mergeDefaults in loader.go). Mirrors the
// teacher's pattern of a single struct-literal defaults source applied
// via dario.cat/mergo rather than scattered if-zero checks.
var defaults = Config{
	HTTP: HTTPConfig{
		Addr: ":8080",
	},
	Database: DatabaseConfig{
		Port:            5432,
		SSLMode:         "disable",
		MaxOpenConns:    20,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
	},
	Redis: RedisConfig{
		Addr: "localhost:6379",
	},
	Queue: QueueConfig{
		EstimatorWorkers: 2,
		SelectorWorkers:  4,
		LookbackWindow:   5 * time.Minute,  // spec.md §4.C step 3
		RateLimitWindow:  30 * time.Minute, // spec.md §4.D step 8
		RateLimitMax:     3,                // spec.md §4.D step 8
		OnboardingWindow: 5 * time.Minute,  // spec.md §4.E step 3
	},
	Tracing: TracingConfig{
		ServiceName: "shift-pipeline",
	},
}
