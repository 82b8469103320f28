package config

// Config is the root configuration of the dispatcher daemon.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`
	Storage  StorageConfig  `json:"storage"`
	Dispatch DispatchConfig `json:"dispatch"`
	Match    MatchConfig    `json:"match,omitempty"`
	Jobs     JobsConfig     `json:"jobs,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// AdminChatID receives operational notifications. Numeric id or "@username".
	AdminChatID string `json:"admin_chat_id,omitempty"`
	// HTTPTimeout bounds one Bot API call.
	HTTPTimeout string `json:"http_timeout,omitempty"`
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

type StorageConfig struct {
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// DispatchConfig controls the scheduler loop and the delivery pipeline.
//
// Defaults (when fields are omitted/zero):
//   - interval: "1m"
//   - pace_delay: "1m"
//   - retry_max: 5
//   - retry_base: "5s"
//   - rate_per_sec: 1
type DispatchConfig struct {
	Enabled    bool   `json:"enabled"`
	Interval   string `json:"interval,omitempty"`
	PaceDelay  string `json:"pace_delay,omitempty"`
	RetryMax   int    `json:"retry_max,omitempty"`
	RetryBase  string `json:"retry_base,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

// MatchConfig tunes the filter rule set of the matching engine.
type MatchConfig struct {
	// UAHRate is the fixed UAH→USD conversion rate. 0 keeps the default.
	UAHRate float64 `json:"uah_rate,omitempty"`
	// CityAnchor is the token "city" channels look for in the location text.
	CityAnchor string `json:"city_anchor,omitempty"`
}

type JobsConfig struct {
	Digest    JobSpec `json:"digest,omitempty"`
	Relevance JobSpec `json:"relevance,omitempty"`
	Orders    JobSpec `json:"orders,omitempty"`
	// RelevanceWindow is how far back a scrape still counts as recent.
	RelevanceWindow string `json:"relevance_window,omitempty"`
}

type JobSpec struct {
	Enabled bool `json:"enabled"`
	// Spec is a cron expression; empty uses the job's default schedule.
	Spec string `json:"spec,omitempty"`
}
