package config

import "time"

// HTTP holds web-server settings.
type HTTP struct {
	ListenAddr string `koanf:"listen_addr" validate:"required,hostname_port"`
	APIToken   string `koanf:"api_token"`
}

// Database locates the SQLite file.
type Database struct {
	Path string `koanf:"path" validate:"required"`
}

// Backup controls database snapshots.
type Backup struct {
	Dir        string `koanf:"dir" validate:"required"`
	MaxBackups int    `koanf:"max_backups" validate:"min=1"`
}

// TMDB holds API credentials. An empty key only disables fetching.
type TMDB struct {
	APIKey   string `koanf:"api_key"`
	Language string `koanf:"language" validate:"required"`
}

// Telegram holds notifier credentials. Both are needed to send reports.
type Telegram struct {
	BotToken string `koanf:"bot_token" validate:"required_with=ChatID"`
	ChatID   string `koanf:"chat_id" validate:"required_with=BotToken"`
	// TimeZone is used to render air times in reports and to read schedule.report_time.
	TimeZone string `koanf:"timezone" validate:"omitempty,timezone"`
}

// Schedule holds background job timing.
type Schedule struct {
	ReportTime      string        `koanf:"report_time" validate:"required,datetime=15:04"`
	RefreshInterval time.Duration `koanf:"refresh_interval" validate:"required"`
	RefreshMaxAge   time.Duration `koanf:"refresh_max_age" validate:"required"`
	RefreshWorkers  int           `koanf:"refresh_workers" validate:"min=1,max=32"`
}

// Log controls the file logger.
type Log struct {
	Dir string `koanf:"dir"`
	Tee bool   `koanf:"tee"`
}

// Config is the merged configuration tree.
type Config struct {
	HTTP     HTTP     `koanf:"http"`
	Database Database `koanf:"database"`
	Backup   Backup   `koanf:"backup"`
	TMDB     TMDB     `koanf:"tmdb"`
	Telegram Telegram `koanf:"telegram"`
	Schedule Schedule `koanf:"schedule"`
	Log      Log      `koanf:"log"`
}

// Default returns the configuration used for keys no layer sets.
func Default() Config {
	return Config{
		HTTP:     HTTP{ListenAddr: "127.0.0.1:8080"},
		Database: Database{Path: "showshelf.db"},
		Backup:   Backup{Dir: "backups", MaxBackups: 4},
		TMDB:     TMDB{Language: "en-US"},
		Schedule: Schedule{
			ReportTime:      "08:00",
			RefreshInterval: time.Hour,
			RefreshMaxAge:   24 * time.Hour,
			RefreshWorkers:  4,
		},
		Log: Log{Dir: "logs", Tee: true},
	}
}

// TelegramEnabled reports whether reports can be sent.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}

// ReportLocation resolves the report time zone, falling back to local time.
func (c *Config) ReportLocation() *time.Location {
	if c.Telegram.TimeZone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Telegram.TimeZone)
	if err != nil {
		return time.Local
	}
	return loc
}
