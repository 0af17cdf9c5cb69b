package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/mesh-intelligence/tabula/internal/paths"
	"github.com/mesh-intelligence/tabula/pkg/types"
)

// Config keys, shared by config.yaml and the TABULA_ environment.
const (
	cfgKeyDataDir           = "data_dir"
	cfgKeyBasePath          = "base_path"
	cfgKeyMaxHistory        = "max_history"
	cfgKeyValidationTimeout = "validation_timeout"
	cfgKeyLogLevel          = "log_level"
	cfgKeyLogFormat         = "log_format"

	envPrefix = "TABULA"
)

// defaultConfigYAML is written to config.yaml on first run.
const defaultConfigYAML = `# tabula configuration

# Data directory (optional; overridable by --data-dir)
# data_dir:

# Undo history depth
max_history: 100

# Upper bound for file existence checks during validation
validation_timeout: 2s

log_level: info
log_format: console
`

// loadConfig reads config.yaml from the resolved config directory,
// applies TABULA_ environment overrides and the global flags, and
// resolves the data directory. A missing config.yaml is not an error.
func loadConfig(flags *rootFlags) (types.Config, error) {
	configDir, err := paths.ConfigDir(flags.configDir)
	if err != nil {
		return types.Config{}, fmt.Errorf("resolve config dir: %w", err)
	}
	if err := ensureDefaultConfigFile(configDir.Path); err != nil {
		return types.Config{}, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	def := types.DefaultConfig()
	v.SetDefault(cfgKeyMaxHistory, def.MaxHistory)
	v.SetDefault(cfgKeyValidationTimeout, def.ValidationTimeout)
	v.SetDefault(cfgKeyLogLevel, def.LogLevel)
	v.SetDefault(cfgKeyLogFormat, def.LogFormat)
	v.SetDefault(cfgKeyBasePath, "")
	v.SetDefault(cfgKeyDataDir, "")
	v.SetConfigFile(paths.ConfigFile(configDir.Path))
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return types.Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return types.Config{}, fmt.Errorf("decode config: %w", err)
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	// TABULA_DATA_DIR is applied by paths below the config file value.
	fileDataDir := ""
	if v.InConfig(cfgKeyDataDir) {
		fileDataDir = v.GetString(cfgKeyDataDir)
	}
	dataDir, err := paths.DataDir(flags.dataDir, fileDataDir)
	if err != nil {
		return types.Config{}, fmt.Errorf("resolve data dir: %w", err)
	}
	cfg.DataDir = dataDir.Path
	if err := cfg.Validate(); err != nil {
		return types.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ensureDefaultConfigFile creates configDir and a default config.yaml
// when the file does not exist yet.
func ensureDefaultConfigFile(configDir string) error {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return err
	}
	path := paths.ConfigFile(configDir)
	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}
