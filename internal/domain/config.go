package domain

import "time"

// Restart policies applied when Start is called while a job is active
const (
	RestartReject  = "reject"
	RestartReplace = "replace"
)

// Config represents the application configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server" yaml:"server"`
	Polling      PollingConfig      `mapstructure:"polling" yaml:"polling"`
	Lifecycle    LifecycleConfig    `mapstructure:"lifecycle" yaml:"lifecycle"`
	Output       OutputConfig       `mapstructure:"output" yaml:"output"`
	Notification NotificationConfig `mapstructure:"notification" yaml:"notification"`
	Logging      LoggingConfig      `mapstructure:"logging" yaml:"logging"`
}

// ServerConfig describes the download backend
type ServerConfig struct {
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	// RequestTimeout bounds each request; zero leaves it to the transport
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
}

// PollingConfig controls the delay between status requests
type PollingConfig struct {
	Interval    time.Duration `mapstructure:"interval" yaml:"interval"`
	MaxInterval time.Duration `mapstructure:"max_interval" yaml:"max_interval"`
	Multiplier  float64       `mapstructure:"multiplier" yaml:"multiplier"`
}

// LifecycleConfig contains controller behaviour settings
type LifecycleConfig struct {
	RestartPolicy   string `mapstructure:"restart_policy" yaml:"restart_policy"`
	DefaultFilename string `mapstructure:"default_filename" yaml:"default_filename"`
}

// OutputConfig describes where saved artifacts go
type OutputConfig struct {
	Dir       string `mapstructure:"dir" yaml:"dir"`
	BucketURL string `mapstructure:"bucket_url" yaml:"bucket_url"` // gocloud URL, overrides Dir
}

// NotificationConfig contains desktop notification settings
type NotificationConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Method  string `mapstructure:"method" yaml:"method"` // osascript, notify-send
}

// LoggingConfig contains logging-related configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`             // debug, info, warn, error
	Format     string `mapstructure:"format" yaml:"format"`           // json, console
	OutputPath string `mapstructure:"output_path" yaml:"output_path"` // stdout, stderr, or file path
	LogsDir    string `mapstructure:"logs_dir" yaml:"logs_dir"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			BaseURL: "http://localhost:8000",
		},
		Polling: PollingConfig{
			Interval:    time.Second,
			MaxInterval: time.Second,
			Multiplier:  1,
		},
		Lifecycle: LifecycleConfig{
			RestartPolicy:   RestartReject,
			DefaultFilename: "download",
		},
		Output: OutputConfig{
			Dir: "$HOME/Downloads/dl-client",
		},
		Notification: NotificationConfig{
			Enabled: false,
			Method:  "notify-send",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			OutputPath: "stderr",
			LogsDir:    "$HOME/.dl-client/logs",
		},
	}
}
