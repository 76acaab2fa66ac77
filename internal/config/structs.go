package config

import "time"

// Config is the complete configuration for a comictl run. Values come from
// the config file, COMICTL_* environment variables, CLI flags and defaults,
// in viper's usual precedence order.
type Config struct {
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	Languages  LanguagesConfig  `mapstructure:"languages" yaml:"languages" json:"languages"`
	Tools      ToolsConfig      `mapstructure:"tools" yaml:"tools" json:"tools"`
	Translator TranslatorConfig `mapstructure:"translator" yaml:"translator" json:"translator"`
	Batch      BatchConfig      `mapstructure:"batch" yaml:"batch" json:"batch"`
	Export     ExportConfig     `mapstructure:"export" yaml:"export" json:"export"`
	Render     RenderConfig     `mapstructure:"render" yaml:"render" json:"render"`
	Events     EventsConfig     `mapstructure:"events" yaml:"events" json:"events"`
}

// LanguagesConfig holds the run-level default language pair. Hosts may
// override the pair per image through the pipeline API.
type LanguagesConfig struct {
	Source string `mapstructure:"source" yaml:"source" json:"source"`
	Target string `mapstructure:"target" yaml:"target" json:"target"`
}

// ToolsConfig selects the detector/inpainter implementations, the OCR
// model files and the device.
type ToolsConfig struct {
	Detector          string `mapstructure:"detector" yaml:"detector" json:"detector"`
	DetectorModelPath string `mapstructure:"detector_model_path" yaml:"detector_model_path" json:"detector_model_path"`
	Inpainter         string `mapstructure:"inpainter" yaml:"inpainter" json:"inpainter"`
	OCRModelPath      string `mapstructure:"ocr_model_path" yaml:"ocr_model_path" json:"ocr_model_path"`
	OCRDictPath       string `mapstructure:"ocr_dict_path" yaml:"ocr_dict_path" json:"ocr_dict_path"`
	UseGPU            bool   `mapstructure:"use_gpu" yaml:"use_gpu" json:"use_gpu"`
}

// Device returns the device identifier derived from the GPU toggle.
func (t ToolsConfig) Device() string {
	if t.UseGPU {
		return "cuda"
	}
	return "cpu"
}

// TranslatorConfig configures the LLM translation backend.
type TranslatorConfig struct {
	Model        string        `mapstructure:"model" yaml:"model" json:"model"`
	BaseURL      string        `mapstructure:"base_url" yaml:"base_url" json:"base_url"`
	APIKeyEnv    string        `mapstructure:"api_key_env" yaml:"api_key_env" json:"api_key_env"`
	ExtraContext string        `mapstructure:"extra_context" yaml:"extra_context" json:"extra_context"`
	SendImage    bool          `mapstructure:"send_image" yaml:"send_image" json:"send_image"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
	MaxRetries   int           `mapstructure:"max_retries" yaml:"max_retries" json:"max_retries"`
}

// BatchConfig controls translation batching.
type BatchConfig struct {
	// Size is the number of images merged into one translation call.
	Size int `mapstructure:"size" yaml:"size" json:"size"`
}

// ExportConfig toggles the optional per-run export artifacts and maps
// archive input extensions to output container extensions.
type ExportConfig struct {
	RawText        bool              `mapstructure:"raw_text" yaml:"raw_text" json:"raw_text"`
	TranslatedText bool              `mapstructure:"translated_text" yaml:"translated_text" json:"translated_text"`
	CleanedImages  bool              `mapstructure:"cleaned_images" yaml:"cleaned_images" json:"cleaned_images"`
	SaveAs         map[string]string `mapstructure:"save_as" yaml:"save_as" json:"save_as"`
}

// RenderConfig holds the text re-rendering style.
type RenderConfig struct {
	FontFamily   string  `mapstructure:"font_family" yaml:"font_family" json:"font_family"`
	FontFile     string  `mapstructure:"font_file" yaml:"font_file" json:"font_file"`
	MinFontSize  int     `mapstructure:"min_font_size" yaml:"min_font_size" json:"min_font_size"`
	MaxFontSize  int     `mapstructure:"max_font_size" yaml:"max_font_size" json:"max_font_size"`
	LineSpacing  float64 `mapstructure:"line_spacing" yaml:"line_spacing" json:"line_spacing"`
	Color        string  `mapstructure:"color" yaml:"color" json:"color"`
	Outline      bool    `mapstructure:"outline" yaml:"outline" json:"outline"`
	OutlineColor string  `mapstructure:"outline_color" yaml:"outline_color" json:"outline_color"`
	OutlineWidth float64 `mapstructure:"outline_width" yaml:"outline_width" json:"outline_width"`
	Bold         bool    `mapstructure:"bold" yaml:"bold" json:"bold"`
	Italic       bool    `mapstructure:"italic" yaml:"italic" json:"italic"`
	Underline    bool    `mapstructure:"underline" yaml:"underline" json:"underline"`
	Alignment    string  `mapstructure:"alignment" yaml:"alignment" json:"alignment"`
	Direction    string  `mapstructure:"direction" yaml:"direction" json:"direction"`
	UpperCase    bool    `mapstructure:"upper_case" yaml:"upper_case" json:"upper_case"`
}

// EventsConfig configures the optional websocket progress broadcaster.
type EventsConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr" json:"addr"`
}
