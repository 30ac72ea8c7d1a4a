package config

import "time"

// CronConfig configures internal/cron's scheduler: a list of named jobs,
// each firing on its own schedule and dispatching a message, webhook, or
// custom handler. BioAgent's own retrieval-index rebuild / artifact GC job
// (see internal/memory/scheduler.go) is registered alongside any
// deployment-defined jobs here.
type CronConfig struct {
	Enabled bool            `yaml:"enabled"`
	Jobs    []CronJobConfig `yaml:"jobs"`
}

// CronJobConfig describes a single scheduled job. Exactly one of Message,
// Webhook, or Custom should be set; which one depends on Type.
type CronJobConfig struct {
	ID       string             `yaml:"id"`
	Name     string             `yaml:"name"`
	Type     string             `yaml:"type"`
	Enabled  bool               `yaml:"enabled"`
	Schedule CronScheduleConfig `yaml:"schedule"`
	Message  *CronMessageConfig `yaml:"message"`
	Webhook  *CronWebhookConfig `yaml:"webhook"`
	Custom   *CronCustomConfig  `yaml:"custom"`
	Retry    CronRetryConfig    `yaml:"retry"`
}

// CronScheduleConfig is a job's trigger: exactly one of Cron, Every, or At
// should be set.
type CronScheduleConfig struct {
	Cron     string        `yaml:"cron"`
	Every    time.Duration `yaml:"every"`
	At       string        `yaml:"at"`
	Timezone string        `yaml:"timezone"`
}

// CronMessageConfig sends a rendered message through a configured sender
// (e.g. a chat integration) on the job's schedule.
type CronMessageConfig struct {
	Channel   string         `yaml:"channel"`
	ChannelID string         `yaml:"channel_id"`
	Content   string         `yaml:"content"`
	Template  string         `yaml:"template"`
	Data      map[string]any `yaml:"data"`
	Tools     []string       `yaml:"tools"`
}

// CronWebhookConfig calls an HTTP endpoint on the job's schedule.
type CronWebhookConfig struct {
	URL     string            `yaml:"url"`
	Method  string            `yaml:"method"`
	Headers map[string]string `yaml:"headers"`
	Body    string            `yaml:"body"`
	Timeout time.Duration     `yaml:"timeout"`
	Auth    *CronWebhookAuth  `yaml:"auth"`
}

// CronWebhookAuth configures the Authorization header applied to a webhook
// job's request.
type CronWebhookAuth struct {
	Type   string `yaml:"type"`
	Token  string `yaml:"token"`
	User   string `yaml:"user"`
	Pass   string `yaml:"pass"`
	Header string `yaml:"header"`
}

// CronCustomConfig invokes an in-process handler registered by name (see
// internal/memory/scheduler.go's retrieval-index rebuild / artifact GC
// handlers) rather than a message or webhook.
type CronCustomConfig struct {
	Handler string         `yaml:"handler"`
	Args    map[string]any `yaml:"args"`
}

// CronRetryConfig bounds a job's retry attempts on failure.
type CronRetryConfig struct {
	MaxRetries int           `yaml:"max_retries"`
	Backoff    time.Duration `yaml:"backoff"`
	MaxBackoff time.Duration `yaml:"max_backoff"`
}
