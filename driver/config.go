package driver

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"

	"github.com/gnolang/cprop/internal/analysis/constprop"
)

// DefaultConfigPath is where the CLI looks for its configuration.
const DefaultConfigPath = ".cprop.yaml"

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Config is the content of a configuration file.
type Config struct {
	Name    string        `yaml:"name"`
	Options OptionsConfig `yaml:"options"`
	Output  OutputConfig  `yaml:"output"`
	// Ignore lists functions that are never analysed.
	Ignore []string `yaml:"ignore,omitempty"`
}

type OptionsConfig struct {
	DivisionByZero  string `yaml:"division_by_zero"`
	Cleanup         bool   `yaml:"cleanup"`
	OptimisticEntry bool   `yaml:"optimistic_entry"`
	Workers         int    `yaml:"workers"`
}

type OutputConfig struct {
	Format string `yaml:"format"`
}

func DefaultConfig() Config {
	return Config{
		Name: "cprop",
		Options: OptionsConfig{
			DivisionByZero: constprop.DivZeroFold.String(),
		},
		Output: OutputConfig{Format: FormatText},
	}
}

// LoadConfig reads the configuration at path. Fields left out keep their
// default value, and a missing file yields DefaultConfig.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()
	if path == "" {
		return config, nil
	}

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return config, nil
	}
	if err != nil {
		return config, fmt.Errorf("error opening configuration: %w", err)
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	if err := decoder.Decode(&config); err != nil && !errors.Is(err, io.EOF) {
		return config, fmt.Errorf("error parsing configuration %s: %w", path, err)
	}

	return config, config.Validate()
}

// Validate checks the option values.
func (c Config) Validate() error {
	var errs []error
	if _, err := constprop.ParseDivZeroPolicy(c.Options.DivisionByZero); err != nil {
		errs = append(errs, err)
	}
	switch c.Output.Format {
	case "", FormatText, FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("unknown output format %q (want %s or %s)", c.Output.Format, FormatText, FormatJSON))
	}
	if c.Options.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative, got %d", c.Options.Workers))
	}
	return errors.Join(errs...)
}

// PassOptions converts the configuration into pass options.
func (c Config) PassOptions() (constprop.Options, error) {
	policy, err := constprop.ParseDivZeroPolicy(c.Options.DivisionByZero)
	if err != nil {
		return constprop.Options{}, err
	}
	return constprop.Options{
		DivisionByZero:  policy,
		OptimisticEntry: c.Options.OptimisticEntry,
		Cleanup:         c.Options.Cleanup,
	}, nil
}

func (c Config) workers() int {
	if c.Options.Workers > 0 {
		return c.Options.Workers
	}
	return runtime.NumCPU()
}

// WriteConfig writes config to path, refusing to overwrite an existing file.
func WriteConfig(path string, config Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration file already exists: %s", path)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("error marshaling configuration: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("error writing configuration: %w", err)
	}
	return nil
}
