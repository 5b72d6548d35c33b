package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"regexp"

	validator "github.com/go-playground/validator/v10"
	yaml "gopkg.in/yaml.v3"

	"github.com/rupor-github/gencfg"
)

//go:embed config.yaml.tmpl
var ConfigTmpl []byte

type (
	TemplateFieldName string

	TranspilerConfig struct {
		Theme         string `yaml:"theme" validate:"required"`
		SpacingUnit   string `yaml:"spacing_unit"`
		MixinProperty string `yaml:"mixin_property" validate:"required,startswith=-"`
		Verify        bool   `yaml:"verify"`
		Minify        bool   `yaml:"minify"`
	}

	OutputConfig struct {
		SourceExt             string `yaml:"source_ext" validate:"required,startswith=."`
		OutputExt             string `yaml:"output_ext" validate:"required,startswith=."`
		OutputNameTemplate    string `yaml:"output_name_template"`
		FileNameTransliterate bool   `yaml:"file_name_transliterate"`
		Workers               int    `yaml:"workers" validate:"gte=0"`
	}

	BundleConfig struct {
		Filter    string `yaml:"filter" validate:"required"`
		CacheSize int    `yaml:"cache_size" validate:"min=1"`
	}

	Config struct {
		Version    int              `yaml:"version" validate:"eq=1"`
		Transpiler TranspilerConfig `yaml:"transpiler"`
		Output     OutputConfig     `yaml:"output"`
		Bundle     BundleConfig     `yaml:"bundle"`
		Logging    LoggingConfig    `yaml:"logging"`
		Reporting  ReporterConfig   `yaml:"reporting"`
	}
)

const (
	// NOTE: must match yaml field name above
	OutputNameTemplateFieldName TemplateFieldName = "output_name_template"
)

var requiredOptions = append([]func(*gencfg.ProcessingOptions){},
	gencfg.WithDoNotExpandField(string(OutputNameTemplateFieldName)),
)

var jsIdentifier = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// additionalChecks covers what could not be expressed with validate tags.
func additionalChecks(sl validator.StructLevel) {
	var cfg Config
	switch v := sl.Current().Interface().(type) {
	case Config:
		cfg = v
	case *Config:
		cfg = *v
	default:
		return
	}
	if !jsIdentifier.MatchString(cfg.Transpiler.Theme) {
		sl.ReportError(cfg.Transpiler.Theme, "Theme", "theme", "js_identifier", "")
	}
	if _, err := regexp.Compile(cfg.Bundle.Filter); err != nil {
		sl.ReportError(cfg.Bundle.Filter, "Filter", "filter", "regexp", "")
	}
}

func unmarshalConfig(data []byte, cfg *Config, process bool) (*Config, error) {
	// We want to use only fields we defined so we cannot use yaml.Unmarshal
	// directly here
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration data: %w", err)
	}
	if process {
		if err := gencfg.Sanitize(cfg); err != nil {
			return nil, err
		}
		if err := gencfg.Validate(cfg, gencfg.WithAdditionalChecks(additionalChecks)); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
	}
	return cfg, nil
}

// LoadConfiguration reads the configuration from the file at the given path,
// superimposes its values on top of expanded configuration template to
// provide sane defaults and performs validation.
func LoadConfiguration(path string, options ...func(*gencfg.ProcessingOptions)) (*Config, error) {
	haveFile := len(path) > 0

	data, err := gencfg.Process(ConfigTmpl, append(requiredOptions, options...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	cfg, err := unmarshalConfig(data, &Config{}, !haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	if !haveFile {
		return cfg, nil
	}

	data, err = os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err = unmarshalConfig(data, cfg, haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration file: %w", err)
	}
	return cfg, nil
}

// Prepare generates configuration file from template and returns it as a byte
// slice.
func Prepare() ([]byte, error) {
	return gencfg.Process(ConfigTmpl, requiredOptions...)
}

func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(*cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to yaml: %w", err)
	}
	return data, nil
}
