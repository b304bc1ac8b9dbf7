package config

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`
	Storage  StorageConfig  `json:"storage"`
	Scanner  ScannerConfig  `json:"scanner"`
	Dispatch DispatchConfig `json:"dispatch"`

	// Posts binds schedule ids to channel targets and post bodies.
	Posts map[string]PostConfig `json:"posts"`
}

type TelegramConfig struct {
	Token      string `json:"token"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
	ParseMode  string `json:"parse_mode,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig selects the schedule store driver.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./postbot.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// ScannerConfig controls the due-schedule scanner.
//
// All durations are Go duration strings (e.g. "30s", "1m").
type ScannerConfig struct {
	Interval string `json:"interval,omitempty"` // default "1m"
}

// DispatchConfig controls the delivery worker pool and its retry policy.
//
// All durations are Go duration strings. Defaults (when omitted/zero):
//   - workers: 2
//   - queue_size: 64
//   - exec_timeout: "2m"
//   - max_attempts: 3
//   - initial_delay: "60s"
//   - backoff_multiplier: 2
//   - max_delay: "1h"
type DispatchConfig struct {
	Workers           int     `json:"workers,omitempty"`
	QueueSize         int     `json:"queue_size,omitempty"`
	ExecTimeout       string  `json:"exec_timeout,omitempty"`
	MaxAttempts       int     `json:"max_attempts,omitempty"`
	InitialDelay      string  `json:"initial_delay,omitempty"`
	BackoffMultiplier float64 `json:"backoff_multiplier,omitempty"`
	MaxDelay          string  `json:"max_delay,omitempty"`
}

// PostConfig is the channel binding for one schedule.
type PostConfig struct {
	ChatID         int64  `json:"chat_id"`
	Text           string `json:"text"`
	DisablePreview bool   `json:"disable_preview,omitempty"`
}
