package main

import (
	"os"

	"gopkg.in/yaml.v3"
)

// config holds the CLI's persistent settings, loadable from a YAML file and
// overridable by flags (teacher style: config file provides defaults, CLI
// flags win).
type config struct {
	path string `yaml:"-"`

	SchemaPath   string `yaml:"schema_path"`
	MacroDir     string `yaml:"macro_dir"`
	OutputFormat string `yaml:"output_format"`
}

// loadConfig reads path as YAML if it exists; a missing config file is not
// an error, since every setting can also arrive via flags.
func loadConfig(path string) (*config, error) {
	cfg := &config{path: path, OutputFormat: "text"}
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.path = path
	return cfg, nil
}
