package core

import (
	"fmt"
	"strings"
	"time"
)

type SchedulerConfig struct {
	Interval time.Duration `koanf:"interval" mapstructure:"interval"`
	Workers  int           `koanf:"workers" mapstructure:"workers"`
}

type WorkflowConfig struct {
	MaturityDelay     time.Duration `koanf:"maturity_delay" mapstructure:"maturity_delay"`
	ReminderThreshold time.Duration `koanf:"reminder_threshold" mapstructure:"reminder_threshold"`
	InitialLookback   time.Duration `koanf:"initial_lookback" mapstructure:"initial_lookback"`
	CheckpointOverlap time.Duration `koanf:"checkpoint_overlap" mapstructure:"checkpoint_overlap"`
}

type Config struct {
	ServiceName string          `koanf:"service_name" mapstructure:"service_name"`
	Scheduler   SchedulerConfig `koanf:"scheduler" mapstructure:"scheduler"`
	Workflow    WorkflowConfig  `koanf:"workflow" mapstructure:"workflow"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "onboarding",
		Scheduler: SchedulerConfig{
			Interval: 5 * time.Minute,
			Workers:  10,
		},
		Workflow: WorkflowConfig{
			MaturityDelay:     5 * time.Minute,
			ReminderThreshold: 24 * time.Hour,
			InitialLookback:   24 * time.Hour,
			CheckpointOverlap: 30 * time.Second,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Scheduler.Interval < 0 {
		return fmt.Errorf("core: scheduler interval must not be negative")
	}
	if c.Scheduler.Workers < 0 {
		return fmt.Errorf("core: scheduler workers must not be negative")
	}
	if c.Workflow.MaturityDelay < 0 {
		return fmt.Errorf("core: workflow maturity_delay must not be negative")
	}
	if c.Workflow.ReminderThreshold < 0 {
		return fmt.Errorf("core: workflow reminder_threshold must not be negative")
	}
	return nil
}

// MaturityDelayFor resolves the effective maturity delay for a configuration,
// preferring the per-workflow override.
func (c Config) MaturityDelayFor(cfg WorkflowConfiguration) time.Duration {
	if cfg.MaturityDelay > 0 {
		return cfg.MaturityDelay
	}
	return c.Workflow.MaturityDelay
}

// ReminderThresholdFor resolves the effective reminder threshold for a
// configuration, preferring the per-workflow override.
func (c Config) ReminderThresholdFor(cfg WorkflowConfiguration) time.Duration {
	if cfg.ReminderThreshold > 0 {
		return cfg.ReminderThreshold
	}
	return c.Workflow.ReminderThreshold
}

// InitialLookbackFor resolves how far back the first mailbox scan reaches for
// a configuration that has no checkpoint yet.
func (c Config) InitialLookbackFor(cfg WorkflowConfiguration) time.Duration {
	if cfg.InitialLookback > 0 {
		return cfg.InitialLookback
	}
	return c.Workflow.InitialLookback
}
