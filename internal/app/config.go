package app

import "errors"

// Config holds everything an App instance needs to run.
type Config struct {
	ProgramPath string // .aro file or directory
	ConfigPath  string // optional host configuration (HCL)

	LogFormat string
	LogLevel  string
	Workers   int // overrides the host configuration when > 0
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.ProgramPath == "" {
		return nil, errors.New("ProgramPath is a required configuration field and cannot be empty")
	}
	return &cfg, nil
}
