// Package paths locates tabula's config.yaml and its database directory.
//
// Each directory is the first non-empty link of a precedence chain:
//
//	config dir: --config-dir > TABULA_CONFIG_DIR > <user config dir>/tabula
//	data dir:   --data-dir > config.yaml data_dir > TABULA_DATA_DIR > ./.tabula-db
//
// Every resolved path is absolute.
package paths

import (
	"os"
	"path/filepath"
)

const (
	// DataDirName is the data directory created under the working
	// directory when nothing else names one.
	DataDirName = ".tabula-db"
	// ConfigFileName is the config file inside the config directory.
	ConfigFileName = "config.yaml"

	EnvConfigDir = "TABULA_CONFIG_DIR"
	EnvDataDir   = "TABULA_DATA_DIR"

	configSubdir = "tabula"
)

// Origin names the link of the chain a directory came from.
type Origin string

const (
	FromFlag    Origin = "flag"
	FromConfig  Origin = "config.yaml"
	FromEnv     Origin = "environment"
	FromDefault Origin = "default"
)

// Dir is a resolved directory and where it came from.
type Dir struct {
	Path   string
	Origin Origin
}

func (d Dir) String() string { return d.Path + " (" + string(d.Origin) + ")" }

// Swapped in tests.
var (
	userConfigDir = os.UserConfigDir
	workingDir    = os.Getwd
)

type link struct {
	value  string
	origin Origin
}

// resolve returns the first non-empty link made absolute, or the
// fallback when every link is empty.
func resolve(chain []link, fallback func() (string, error)) (Dir, error) {
	for _, l := range chain {
		if l.value == "" {
			continue
		}
		abs, err := filepath.Abs(l.value)
		if err != nil {
			return Dir{}, err
		}
		return Dir{Path: abs, Origin: l.origin}, nil
	}
	p, err := fallback()
	if err != nil {
		return Dir{}, err
	}
	return Dir{Path: p, Origin: FromDefault}, nil
}

// ConfigDir resolves the config directory from the --config-dir flag
// value and the environment.
func ConfigDir(flag string) (Dir, error) {
	return resolve([]link{
		{flag, FromFlag},
		{os.Getenv(EnvConfigDir), FromEnv},
	}, func() (string, error) {
		base, err := userConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(base, configSubdir), nil
	})
}

// DataDir resolves the data directory from the --data-dir flag value,
// the data_dir value read from config.yaml and the environment.
func DataDir(flag, configValue string) (Dir, error) {
	return resolve([]link{
		{flag, FromFlag},
		{configValue, FromConfig},
		{os.Getenv(EnvDataDir), FromEnv},
	}, func() (string, error) {
		wd, err := workingDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(wd, DataDirName), nil
	})
}

// ConfigFile returns the config.yaml path inside the config directory.
func ConfigFile(configDir string) string {
	return filepath.Join(configDir, ConfigFileName)
}
