package config

import (
	"os"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load reads and validates a configuration file. Settings absent from
// the file keep their defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, NewConfigError("failed to load config from %q: %v", path, err)
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, NewConfigError("failed to parse config from %q: %v", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOptional loads a configuration file when it exists and falls
// back to the defaults when it does not. An empty path means the
// default file name in the working directory.
func LoadOptional(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultFileName
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if explicit {
			return nil, NewConfigError("config file %q does not exist", path)
		}
		return Default(), nil
	}
	return Load(path)
}
