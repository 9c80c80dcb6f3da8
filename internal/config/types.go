package config

// Config is the root of the bot configuration file (YAML or JSON).
//
// All durations are Go duration strings (e.g. "500ms", "10s", "24h").
type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`
	Storage  StorageConfig  `json:"storage"`
	Reminder ReminderConfig `json:"reminder,omitempty"`
	Digest   DigestConfig   `json:"digest,omitempty"`
}

type TelegramConfig struct {
	Token       string `json:"token"`
	PollTimeout string `json:"poll_timeout,omitempty"` // default "10s"
}

type LoggingConfig struct {
	Level   string        `json:"level,omitempty"` // TRACE/DEBUG/INFO/WARN/ERROR
	Console bool          `json:"console"`
	File    FileLogConfig `json:"file,omitempty"`
}

type FileLogConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// StorageConfig controls the SQLite task store.
type StorageConfig struct {
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // default "5s"
}

// ReminderConfig controls the reminder scheduler.
//
// Offset is how long before a task's deadline the reminder fires
// (default "24h", "tomorrow is the last day").
type ReminderConfig struct {
	Offset     string `json:"offset,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"` // outbound send rate, default 3
}

// DigestConfig controls the optional daily open-task summary.
//
// Spec is a standard 5-field cron expression (default "0 8 * * *").
type DigestConfig struct {
	Enabled  bool   `json:"enabled"`
	Spec     string `json:"spec,omitempty"`
	Timezone string `json:"timezone,omitempty"` // IANA TZ, e.g. "Europe/Moscow"
}
