package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "comictl"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "COMICTL"
)

// Loader handles loading configuration from various sources.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader on the global viper instance so cobra flag
// bindings participate in precedence.
func NewLoader() *Loader {
	return &Loader{v: viper.GetViper()}
}

// NewIsolatedLoader creates a loader with a private viper instance (tests).
func NewIsolatedLoader() *Loader {
	return &Loader{v: viper.New()}
}

// Load reads configuration files, environment variables and defaults,
// unmarshals them and validates the result.
func (l *Loader) Load() (*Config, error) {
	l.v.SetConfigName(ConfigFileName)
	l.v.SetConfigType("yaml")

	l.addConfigPaths()
	l.setupEnvironment()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults and env vars apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration invalid: %w", err)
	}
	return &cfg, nil
}

// SetConfigFile points the loader at an explicit config file path.
func (l *Loader) SetConfigFile(path string) {
	if path != "" {
		l.v.SetConfigFile(path)
	}
}

func (l *Loader) addConfigPaths() {
	l.v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		l.v.AddConfigPath(home)
		l.v.AddConfigPath(filepath.Join(home, ".config", "comictl"))
	}
	l.v.AddConfigPath("/etc/comictl")
}

func (l *Loader) setupEnvironment() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()
}

func (l *Loader) setDefaults() {
	def := Default()

	l.v.SetDefault("log_level", def.LogLevel)
	l.v.SetDefault("verbose", def.Verbose)

	l.v.SetDefault("languages.source", def.Languages.Source)
	l.v.SetDefault("languages.target", def.Languages.Target)

	l.v.SetDefault("tools.detector", def.Tools.Detector)
	l.v.SetDefault("tools.detector_model_path", def.Tools.DetectorModelPath)
	l.v.SetDefault("tools.inpainter", def.Tools.Inpainter)
	l.v.SetDefault("tools.ocr_model_path", def.Tools.OCRModelPath)
	l.v.SetDefault("tools.ocr_dict_path", def.Tools.OCRDictPath)
	l.v.SetDefault("tools.use_gpu", def.Tools.UseGPU)

	l.v.SetDefault("translator.model", def.Translator.Model)
	l.v.SetDefault("translator.base_url", def.Translator.BaseURL)
	l.v.SetDefault("translator.api_key_env", def.Translator.APIKeyEnv)
	l.v.SetDefault("translator.extra_context", def.Translator.ExtraContext)
	l.v.SetDefault("translator.send_image", def.Translator.SendImage)
	l.v.SetDefault("translator.timeout", def.Translator.Timeout)
	l.v.SetDefault("translator.max_retries", def.Translator.MaxRetries)

	l.v.SetDefault("batch.size", def.Batch.Size)

	l.v.SetDefault("export.raw_text", def.Export.RawText)
	l.v.SetDefault("export.translated_text", def.Export.TranslatedText)
	l.v.SetDefault("export.cleaned_images", def.Export.CleanedImages)
	l.v.SetDefault("export.save_as", def.Export.SaveAs)

	l.v.SetDefault("render.font_family", def.Render.FontFamily)
	l.v.SetDefault("render.font_file", def.Render.FontFile)
	l.v.SetDefault("render.min_font_size", def.Render.MinFontSize)
	l.v.SetDefault("render.max_font_size", def.Render.MaxFontSize)
	l.v.SetDefault("render.line_spacing", def.Render.LineSpacing)
	l.v.SetDefault("render.color", def.Render.Color)
	l.v.SetDefault("render.outline", def.Render.Outline)
	l.v.SetDefault("render.outline_color", def.Render.OutlineColor)
	l.v.SetDefault("render.outline_width", def.Render.OutlineWidth)
	l.v.SetDefault("render.bold", def.Render.Bold)
	l.v.SetDefault("render.italic", def.Render.Italic)
	l.v.SetDefault("render.underline", def.Render.Underline)
	l.v.SetDefault("render.alignment", def.Render.Alignment)
	l.v.SetDefault("render.direction", def.Render.Direction)
	l.v.SetDefault("render.upper_case", def.Render.UpperCase)

	l.v.SetDefault("events.addr", def.Events.Addr)
}
