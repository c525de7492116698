package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/Geo-fs/NeroAI/internal/appdir"
)

// InitViper initializes Viper with the configuration file and
// environment variables. If configFile is empty, nero.yaml/.yml is
// searched in the working directory and the data root. The search
// requires an explicit YAML extension so the binary itself is never
// matched.
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		// Nothing found; ReadInConfig will report ConfigFileNotFound,
		// which LoadConfig treats as env-only mode.
		viper.SetConfigName("nero")
		viper.SetConfigType("yaml")
	}

	// Environment variable support: NERO_SERVER_ADDR etc.
	viper.SetEnvPrefix("NERO")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	bindNestedEnvKeys()
}

// findConfigFile searches the working directory and the data root for
// nero.yaml or nero.yml.
func findConfigFile() string {
	paths := []string{"."}
	if root := os.Getenv(appdir.EnvHome); root != "" {
		paths = append(paths, root)
	} else if cfg, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(cfg, "nero"))
	}
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, "nero"+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// bindNestedEnvKeys binds nested keys so single env vars can override
// them, e.g. NERO_LOGGING_LEVEL overrides logging.level.
func bindNestedEnvKeys() {
	_ = viper.BindEnv("server.addr")
	_ = viper.BindEnv("data.dir")
	_ = viper.BindEnv("logging.level")
	_ = viper.BindEnv("logging.format")
	_ = viper.BindEnv("audit.channel_size")
	_ = viper.BindEnv("audit.batch_size")
	_ = viper.BindEnv("audit.flush_ms")
	_ = viper.BindEnv("audit.send_timeout_ms")
	_ = viper.BindEnv("telemetry.enabled")
	_ = viper.BindEnv("telemetry.interval_seconds")
}

// LoadConfig reads the configuration file, applies environment
// overrides and defaults, and validates the result. A missing config
// file is not an error; the process runs on env vars and defaults.
func LoadConfig() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// ConfigFileUsed returns the loaded config file path, or empty in
// env-only mode.
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}
