package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 10, cfg.Batch.Size)
	assert.Equal(t, "dbnet", cfg.Tools.Detector)
	assert.Equal(t, "cpu", cfg.Tools.Device())
}

func TestDevice(t *testing.T) {
	tools := ToolsConfig{UseGPU: true}
	assert.Equal(t, "cuda", tools.Device())
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
		{"empty source lang", func(c *Config) { c.Languages.Source = "" }},
		{"empty detector", func(c *Config) { c.Tools.Detector = "" }},
		{"empty inpainter", func(c *Config) { c.Tools.Inpainter = "" }},
		{"zero batch size", func(c *Config) { c.Batch.Size = 0 }},
		{"negative batch size", func(c *Config) { c.Batch.Size = -3 }},
		{"inverted font range", func(c *Config) { c.Render.MaxFontSize = c.Render.MinFontSize - 1 }},
		{"zero line spacing", func(c *Config) { c.Render.LineSpacing = 0 }},
		{"bad alignment", func(c *Config) { c.Render.Alignment = "justify" }},
		{"bad save_as key", func(c *Config) { c.Export.SaveAs = map[string]string{"cbz": ".cbz"} }},
		{"bad save_as value", func(c *Config) { c.Export.SaveAs = map[string]string{".cbz": "pdf"} }},
		{"negative retries", func(c *Config) { c.Translator.MaxRetries = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoaderDefaults(t *testing.T) {
	l := NewIsolatedLoader()
	// Point at an empty dir so no stray comictl.yaml is picked up.
	l.v.AddConfigPath(t.TempDir())

	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, "Japanese", cfg.Languages.Source)
	assert.Equal(t, "English", cfg.Languages.Target)
	assert.Equal(t, "gpt-4o", cfg.Translator.Model)
	assert.Equal(t, ".cbz", cfg.Export.SaveAs[".zip"])
}

func TestLoaderReadsFile(t *testing.T) {
	dir := t.TempDir()
	yaml := `
languages:
  source: Korean
  target: German
batch:
  size: 4
tools:
  inpainter: solid
render:
  upper_case: true
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "comictl.yaml"), []byte(yaml), 0o600))

	l := NewIsolatedLoader()
	l.SetConfigFile(filepath.Join(dir, "comictl.yaml"))

	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, "Korean", cfg.Languages.Source)
	assert.Equal(t, "German", cfg.Languages.Target)
	assert.Equal(t, 4, cfg.Batch.Size)
	assert.Equal(t, "solid", cfg.Tools.Inpainter)
	assert.True(t, cfg.Render.UpperCase)
	// Untouched values still come from defaults.
	assert.Equal(t, "dbnet", cfg.Tools.Detector)
}

func TestLoaderRejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	yaml := "batch:\n  size: -1\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "comictl.yaml"), []byte(yaml), 0o600))

	l := NewIsolatedLoader()
	l.SetConfigFile(filepath.Join(dir, "comictl.yaml"))

	_, err := l.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch.size")
}
