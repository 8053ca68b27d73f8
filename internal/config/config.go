// Public domain.

// Package config reads the environment and YAML files configuring the
// dc2cat commands.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// ErrUnset is returned for a required but empty setting.
var ErrUnset = errors.New("not set")

// Env holds the environment settings.
type Env struct {
	CatalogConfigDir string `env:"DC2_CATALOG_CONFIG_DIR"`
	SEDLibraryDir    string `env:"SIMS_SED_LIBRARY_DIR"`
	ThroughputsDir   string `env:"THROUGHPUTS_DIR"`
	TwinklesDir      string `env:"TWINKLES_DIR"`
	Scratch          string `env:"SCRATCH"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// ReadEnv returns the settings of the process environment.
func ReadEnv() (*Env, error) {
	var e Env
	return &e, ParseEnv(&e)
}

// EnvFromMap returns the settings of environment m.
func EnvFromMap(m map[string]string) (*Env, error) {
	var e Env
	if err := env.ParseWithOptions(&e, env.Options{Environment: m}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &e, nil
}

func need(v, name string) (string, error) {
	if v == "" {
		return "", fmt.Errorf("%s %w", name, ErrUnset)
	}
	return v, nil
}

// CatalogDir returns the catalog config directory.
func (e *Env) CatalogDir() (string, error) {
	return need(e.CatalogConfigDir, "DC2_CATALOG_CONFIG_DIR")
}

// SEDDir returns the SED library directory.
func (e *Env) SEDDir() (string, error) {
	return need(e.SEDLibraryDir, "SIMS_SED_LIBRARY_DIR")
}

// BandpassDir returns the directory of the LSST baseline throughputs.
func (e *Env) BandpassDir() (string, error) {
	d, err := need(e.ThroughputsDir, "THROUGHPUTS_DIR")
	if err != nil {
		return "", err
	}
	return filepath.Join(d, "baseline"), nil
}

// Twinkles returns the Twinkles directory.
func (e *Env) Twinkles() (string, error) {
	return need(e.TwinklesDir, "TWINKLES_DIR")
}

// ScratchDir returns the scratch directory, or the working directory when
// SCRATCH is unset.
func (e *Env) ScratchDir() string {
	if e.Scratch == "" {
		return "."
	}
	return e.Scratch
}

// File is a YAML file of command settings.  Flags override it.
type File struct {
	// Catalog names the truth catalog config.
	Catalog string `yaml:"catalog"`
	// OpSim is the path of the OpSim database.
	OpSim string `yaml:"opsim"`
	// Sensors lists camera or detector names to trim.
	Sensors []string `yaml:"sensors"`
	// FOV is a field of view radius in degrees.
	FOV float64 `yaml:"fov"`
	// Tolerance is the flux validation tolerance in mag.
	Tolerance float64 `yaml:"tolerance"`
}

// ReadYAML decodes the YAML file at path into v.  Unknown fields are an
// error.
func ReadYAML(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	d := yaml.NewDecoder(f)
	d.KnownFields(true)
	if err := d.Decode(v); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// ReadFile reads a settings file.
func ReadFile(path string) (*File, error) {
	var f File
	if err := ReadYAML(path, &f); err != nil {
		return nil, err
	}
	return &f, nil
}
