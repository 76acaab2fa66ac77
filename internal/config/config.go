// Package config loads and validates the comictl configuration from files,
// environment variables and defaults.
package config

import (
	"fmt"
	"time"
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Languages: LanguagesConfig{
			Source: "Japanese",
			Target: "English",
		},
		Tools: ToolsConfig{
			Detector:  "dbnet",
			Inpainter: "blur",
		},
		Translator: TranslatorConfig{
			Model:      "gpt-4o",
			BaseURL:    "https://api.openai.com/v1",
			APIKeyEnv:  "OPENAI_API_KEY",
			SendImage:  true,
			Timeout:    120 * time.Second,
			MaxRetries: 2,
		},
		Batch: BatchConfig{Size: 10},
		Export: ExportConfig{
			SaveAs: map[string]string{
				".cbz": ".cbz",
				".zip": ".cbz",
			},
		},
		Render: RenderConfig{
			FontFamily:   "Comic Sans MS",
			MinFontSize:  9,
			MaxFontSize:  40,
			LineSpacing:  1.0,
			Color:        "#000000",
			OutlineColor: "#FFFFFF",
			OutlineWidth: 1.2,
			Outline:      true,
			Alignment:    "center",
			Direction:    "ltr",
		},
	}
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	if c.Languages.Source == "" || c.Languages.Target == "" {
		return fmt.Errorf("languages.source and languages.target must be set")
	}
	if c.Tools.Detector == "" {
		return fmt.Errorf("tools.detector must be set")
	}
	if c.Tools.Inpainter == "" {
		return fmt.Errorf("tools.inpainter must be set")
	}
	if c.Batch.Size <= 0 {
		return fmt.Errorf("batch.size must be positive, got %d", c.Batch.Size)
	}
	if c.Render.MinFontSize <= 0 || c.Render.MaxFontSize < c.Render.MinFontSize {
		return fmt.Errorf("render font size range [%d,%d] is invalid",
			c.Render.MinFontSize, c.Render.MaxFontSize)
	}
	if c.Render.LineSpacing <= 0 {
		return fmt.Errorf("render.line_spacing must be positive")
	}
	switch c.Render.Alignment {
	case "left", "center", "right":
	default:
		return fmt.Errorf("invalid render.alignment %q", c.Render.Alignment)
	}
	for ext, out := range c.Export.SaveAs {
		if ext == "" || ext[0] != '.' || out == "" || out[0] != '.' {
			return fmt.Errorf("export.save_as entries must map .ext to .ext, got %q: %q", ext, out)
		}
	}
	if c.Translator.MaxRetries < 0 {
		return fmt.Errorf("translator.max_retries must be >= 0")
	}
	return nil
}
