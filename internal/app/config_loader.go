package app

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"github.com/yourusername/dl-client/internal/domain"
)

// LoadConfig loads configuration from file and environment
func LoadConfig(configPath string) (*domain.Config, error) {
	// Start with default config
	config := domain.DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.dl-client")
		v.AddConfigPath("/etc/dl-client")
	}

	// Environment variables like DLCLIENT_SERVER_BASE_URL
	v.SetEnvPrefix("DLCLIENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only sees keys viper knows about
	setDefaults(v, config)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config = expandPaths(config)

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func setDefaults(v *viper.Viper, config *domain.Config) {
	v.SetDefault("server.base_url", config.Server.BaseURL)
	v.SetDefault("server.request_timeout", config.Server.RequestTimeout)
	v.SetDefault("polling.interval", config.Polling.Interval)
	v.SetDefault("polling.max_interval", config.Polling.MaxInterval)
	v.SetDefault("polling.multiplier", config.Polling.Multiplier)
	v.SetDefault("lifecycle.restart_policy", config.Lifecycle.RestartPolicy)
	v.SetDefault("lifecycle.default_filename", config.Lifecycle.DefaultFilename)
	v.SetDefault("output.dir", config.Output.Dir)
	v.SetDefault("output.bucket_url", config.Output.BucketURL)
	v.SetDefault("notification.enabled", config.Notification.Enabled)
	v.SetDefault("notification.method", config.Notification.Method)
	v.SetDefault("logging.level", config.Logging.Level)
	v.SetDefault("logging.format", config.Logging.Format)
	v.SetDefault("logging.output_path", config.Logging.OutputPath)
	v.SetDefault("logging.logs_dir", config.Logging.LogsDir)
}

// expandPaths expands environment variables in path configurations
func expandPaths(config *domain.Config) *domain.Config {
	config.Output.Dir = expandPath(config.Output.Dir)
	config.Logging.LogsDir = expandPath(config.Logging.LogsDir)

	if config.Logging.OutputPath != "stdout" && config.Logging.OutputPath != "stderr" {
		config.Logging.OutputPath = expandPath(config.Logging.OutputPath)
	}

	return config
}

// expandPath expands environment variables and ~ in paths
func expandPath(path string) string {
	if path == "" {
		return path
	}

	// Expand home directory first, os.ExpandEnv drops an unset $HOME
	if strings.HasPrefix(path, "~/") || strings.Contains(path, "$HOME") {
		if home, err := os.UserHomeDir(); err == nil {
			if strings.HasPrefix(path, "~/") {
				path = filepath.Join(home, path[2:])
			}
			path = strings.ReplaceAll(path, "$HOME", home)
		}
	}

	return os.ExpandEnv(path)
}

// validateConfig validates the configuration
func validateConfig(config *domain.Config) error {
	u, err := url.Parse(config.Server.BaseURL)
	if err != nil || config.Server.BaseURL == "" {
		return fmt.Errorf("invalid server base url: %q", config.Server.BaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("server base url must use http or https: %q", config.Server.BaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("server base url has no host: %q", config.Server.BaseURL)
	}

	if config.Server.RequestTimeout < 0 {
		return fmt.Errorf("request timeout cannot be negative")
	}

	if config.Polling.Interval < 0 || config.Polling.MaxInterval < 0 {
		return fmt.Errorf("polling intervals cannot be negative")
	}

	if config.Polling.Multiplier < 0 {
		return fmt.Errorf("polling multiplier cannot be negative")
	}

	switch config.Lifecycle.RestartPolicy {
	case domain.RestartReject, domain.RestartReplace:
	case "":
		config.Lifecycle.RestartPolicy = domain.RestartReject
	default:
		return fmt.Errorf("unknown restart policy: %q", config.Lifecycle.RestartPolicy)
	}

	if strings.TrimSpace(config.Lifecycle.DefaultFilename) == "" {
		return fmt.Errorf("default filename not configured")
	}

	if config.Output.Dir == "" && config.Output.BucketURL == "" {
		return fmt.Errorf("output directory not configured")
	}

	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}

	return nil
}

// SaveConfig saves configuration to file
func SaveConfig(config *domain.Config, path string) error {
	v := viper.New()
	v.SetConfigType("yaml")

	v.Set("server.base_url", config.Server.BaseURL)
	v.Set("server.request_timeout", config.Server.RequestTimeout.String())
	v.Set("polling.interval", config.Polling.Interval.String())
	v.Set("polling.max_interval", config.Polling.MaxInterval.String())
	v.Set("polling.multiplier", config.Polling.Multiplier)
	v.Set("lifecycle.restart_policy", config.Lifecycle.RestartPolicy)
	v.Set("lifecycle.default_filename", config.Lifecycle.DefaultFilename)
	v.Set("output.dir", config.Output.Dir)
	v.Set("output.bucket_url", config.Output.BucketURL)
	v.Set("notification.enabled", config.Notification.Enabled)
	v.Set("notification.method", config.Notification.Method)
	v.Set("logging.level", config.Logging.Level)
	v.Set("logging.format", config.Logging.Format)
	v.Set("logging.output_path", config.Logging.OutputPath)
	v.Set("logging.logs_dir", config.Logging.LogsDir)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
