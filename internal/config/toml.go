// Package config provides configuration helpers and TOML parsing.
package config

import (
	"os"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Annotate AnnotateConfig `toml:"annotate"`
}

// AnnotateConfig maps annotation settings. Unset keys stay nil.
type AnnotateConfig struct {
	Labels       *string `toml:"labels"`
	ScreenHeight *int    `toml:"screen-height"`
	Crop         *bool   `toml:"crop"`
	SaveDir      *string `toml:"save-dir"`
	Auto         *bool   `toml:"auto"`
	Precision    *int    `toml:"precision"`
	CropQuality  *int    `toml:"crop-quality"`
	LogFile      *string `toml:"log-file"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, errors.New("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, errors.Wrap(err, "failed to stat config")
	}
	var cfg FileConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, errors.Wrap(err, "failed to decode config")
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, errors.WithHintf(
			errors.Newf("unknown config key %q", undecoded[0].String()),
			"see %s for the supported keys", "boxlabel config")
	}
	return cfg, nil
}
