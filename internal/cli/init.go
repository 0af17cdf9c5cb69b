package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/tabula/internal/paths"
	"github.com/mesh-intelligence/tabula/pkg/sqlite"
	"github.com/mesh-intelligence/tabula/pkg/types"
)

func newInitCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize tabula storage",
		Long:  "Create the configuration and data directories, write config.yaml and create the database.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, err := paths.ConfigDir(flags.configDir)
			if err != nil {
				return sysError(fmt.Errorf("resolve config dir: %w", err))
			}
			dataDir, err := paths.DataDir(flags.dataDir, "")
			if err != nil {
				return sysError(fmt.Errorf("resolve data dir: %w", err))
			}
			if err := os.MkdirAll(configDir.Path, 0o755); err != nil {
				return sysError(fmt.Errorf("create config directory: %w", err))
			}

			cfg := types.DefaultConfig()
			cfg.DataDir = dataDir.Path
			if err := writeConfigIfMissing(paths.ConfigFile(configDir.Path), cfg); err != nil {
				return sysError(fmt.Errorf("write config: %w", err))
			}

			// The configured values win over the ones init would write.
			cfg, err = loadConfig(flags)
			if err != nil {
				return sysError(err)
			}
			store, err := sqlite.Open(cfg, nil)
			if err != nil {
				return sysError(fmt.Errorf("initialize storage: %w", err))
			}
			if err := store.Detach(); err != nil {
				return sysError(fmt.Errorf("finalize storage: %w", err))
			}

			fmt.Fprintf(cmd.OutOrStdout(), "tabula initialized in %s\n", cfg.DataDir)
			fmt.Fprintf(cmd.OutOrStdout(), "config: %s\n", configDir)
			return nil
		},
	}
}

// writeConfigIfMissing writes cfg to path unless the file exists.
func writeConfigIfMissing(path string, cfg types.Config) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
