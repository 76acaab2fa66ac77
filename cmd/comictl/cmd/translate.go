package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/comictl/comictl/internal/archive"
	"github.com/comictl/comictl/internal/detect"
	"github.com/comictl/comictl/internal/events"
	"github.com/comictl/comictl/internal/imgutil"
	"github.com/comictl/comictl/internal/inpaint"
	"github.com/comictl/comictl/internal/ocr"
	"github.com/comictl/comictl/internal/pipeline"
	"github.com/comictl/comictl/internal/stage"
	"github.com/comictl/comictl/internal/translate"
)

// translateCmd represents the translate command.
var translateCmd = &cobra.Command{
	Use:   "translate [paths...]",
	Short: "Translate comic pages, directories or archives",
	Long: `Translate one or more inputs through the full pipeline: detect text
blocks, recognize the source text, inpaint it away, translate in batches and
render the result into a timestamped output directory.

Inputs may be image files, directories of images, or CBZ/ZIP/PDF archives.
Archive pages are repacked into <name>_translated.<ext> next to the original.

Examples:
  comictl translate page.png --source Japanese --target English
  comictl translate chapters/ --batch-size 5
  comictl translate volume1.cbz --gpu --events-addr :8090`,
	Args:         cobra.ArbitraryArgs,
	SilenceUsage: true,
	RunE:         runTranslate,
}

func runTranslate(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return errors.New("no inputs provided")
	}

	cfg, err := GetConfig()
	if err != nil {
		return err
	}

	outputDir, _ := cmd.Flags().GetString("output-dir")
	quiet, _ := cmd.Flags().GetBool("quiet")

	apiKey := os.Getenv(cfg.Translator.APIKeyEnv)
	if apiKey == "" {
		return fmt.Errorf("translator API key not found: set %s", cfg.Translator.APIKeyEnv)
	}

	inputs, err := expandInputs(args)
	if err != nil {
		return err
	}
	if inputs.workRoot != "" {
		defer func() { _ = os.RemoveAll(inputs.workRoot) }()
	}

	registry := stage.NewRegistry()
	detCfg := detect.DefaultConfig()
	detCfg.ModelPath = cfg.Tools.DetectorModelPath
	detect.Register(registry, detCfg)
	inpaint.Register(registry)

	ocrCfg := ocr.DefaultConfig()
	ocrCfg.ModelPath = cfg.Tools.OCRModelPath
	ocrCfg.DictPath = cfg.Tools.OCRDictPath
	engine, err := ocr.New(ocrCfg, cfg.Tools.Device())
	if err != nil {
		return fmt.Errorf("initialize OCR engine: %w", err)
	}
	defer func() { _ = engine.Close() }()

	translator := translate.New(translate.Options{
		APIKey:     apiKey,
		Model:      cfg.Translator.Model,
		BaseURL:    cfg.Translator.BaseURL,
		SendImage:  cfg.Translator.SendImage,
		Timeout:    cfg.Translator.Timeout,
		MaxRetries: cfg.Translator.MaxRetries,
	})

	reporter := pipeline.NewMultiReporter(pipeline.NewLogReporter(nil, slog.LevelInfo))
	if !quiet {
		reporter.Add(pipeline.NewConsoleReporter(cmd.OutOrStdout()))
	}
	if cfg.Events.Addr != "" {
		hub := events.NewHub()
		hub.Start(cfg.Events.Addr)
		defer func() { _ = hub.Close() }()
		reporter.Add(hub)
	}

	rc := &pipeline.RunContext{
		Config:   *cfg,
		Root:     pipeline.NewRunRoot(outputDir),
		Reporter: reporter,
		Registry: registry,
		OCR:      engine,
		TranslatorFor: func(srcLang, dstLang string) stage.Translator {
			return translator.ForLanguages(srcLang, dstLang)
		},
		Archives: inputs.archives,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orch, err := pipeline.New(rc)
	if err != nil {
		return err
	}
	sum, err := orch.Run(ctx, inputs.paths)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "\nProcessed %d of %d image(s), %d skipped\n",
		sum.Processed, sum.Total, sum.Skipped)
	if sum.Cancelled {
		_, _ = fmt.Fprintln(out, "Run cancelled; finished images were kept")
	}
	for _, msg := range sum.ArchiveErrors {
		_, _ = fmt.Fprintf(out, "archive error: %s\n", msg)
	}
	_, _ = fmt.Fprintf(out, "Output: %s\n", rc.Root)

	return nil
}

// runInputs is the expanded form of the positional arguments: the flat list
// of image paths to process plus a descriptor per unpacked archive.
type runInputs struct {
	paths    []string
	archives []archive.Descriptor
	workRoot string
}

// expandInputs resolves files, directories and archives into concrete image
// paths. Archive pages are extracted into a shared temporary work root.
func expandInputs(args []string) (*runInputs, error) {
	in := &runInputs{}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("input %s: %w", arg, err)
		}

		switch {
		case info.IsDir():
			if err := in.addDir(arg); err != nil {
				return nil, err
			}
		case archive.IsArchive(arg):
			if err := in.addArchive(arg); err != nil {
				return nil, err
			}
		case imgutil.IsSupported(arg):
			in.paths = append(in.paths, arg)
		default:
			return nil, fmt.Errorf("unsupported input: %s", arg)
		}
	}

	if len(in.paths) == 0 {
		return nil, errors.New("no images found in the given inputs")
	}

	return in, nil
}

// addDir appends the directory's images and unpacks its archives. Entries
// come back from ReadDir sorted, which fixes the processing order.
func (in *runInputs) addDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		switch {
		case archive.IsArchive(path):
			if err := in.addArchive(path); err != nil {
				return err
			}
		case imgutil.IsSupported(path):
			in.paths = append(in.paths, path)
		}
	}

	return nil
}

func (in *runInputs) addArchive(path string) error {
	if in.workRoot == "" {
		root, err := os.MkdirTemp("", "comictl-unpack-")
		if err != nil {
			return fmt.Errorf("create work directory: %w", err)
		}
		in.workRoot = root
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	workDir := filepath.Join(in.workRoot, base)

	images, err := archive.Unpack(path, workDir)
	if err != nil {
		return fmt.Errorf("unpack %s: %w", path, err)
	}
	if len(images) == 0 {
		return fmt.Errorf("archive %s contains no images", path)
	}

	in.archives = append(in.archives, archive.Descriptor{Path: path, WorkDir: workDir, Images: images})
	in.paths = append(in.paths, images...)

	return nil
}

func addTranslateFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("source", "s", "Japanese", "source language")
	cmd.Flags().StringP("target", "t", "English", "target language")
	cmd.Flags().StringP("output-dir", "o", ".", "directory to create the run output root in")
	cmd.Flags().Int("batch-size", 10, "images per translation call")
	cmd.Flags().Bool("quiet", false, "disable the console progress bar")

	cmd.Flags().Bool("gpu", false, "run ONNX models on CUDA")
	cmd.Flags().String("detector-model", "", "path to the ONNX detection model")
	cmd.Flags().String("inpainter", "blur", "inpainter implementation")
	cmd.Flags().String("ocr-model", "", "path to the ONNX recognition model")
	cmd.Flags().String("ocr-dict", "", "path to the recognition dictionary")

	cmd.Flags().String("model", "gpt-4o", "translation model name")
	cmd.Flags().String("base-url", "", "translation API base URL")
	cmd.Flags().String("extra-context", "", "extra context passed to the translator")
	cmd.Flags().Bool("send-image", true, "attach the page image to translation requests")

	cmd.Flags().Bool("save-raw-text", false, "export recognized source text per image")
	cmd.Flags().Bool("save-translated-text", false, "export translated text per image")
	cmd.Flags().Bool("save-cleaned", false, "export inpainted images before rendering")

	cmd.Flags().String("font-file", "", "TTF/OTF font file used for rendering")
	cmd.Flags().Bool("upper-case", false, "render translations in upper case")

	cmd.Flags().String("events-addr", "", "listen address for the websocket progress feed (empty = off)")
}

func bindTranslateFlags(cmd *cobra.Command) {
	bindings := []struct {
		key  string
		flag string
	}{
		{"languages.source", "source"},
		{"languages.target", "target"},
		{"batch.size", "batch-size"},
		{"tools.use_gpu", "gpu"},
		{"tools.detector_model_path", "detector-model"},
		{"tools.inpainter", "inpainter"},
		{"tools.ocr_model_path", "ocr-model"},
		{"tools.ocr_dict_path", "ocr-dict"},
		{"translator.model", "model"},
		{"translator.base_url", "base-url"},
		{"translator.extra_context", "extra-context"},
		{"translator.send_image", "send-image"},
		{"export.raw_text", "save-raw-text"},
		{"export.translated_text", "save-translated-text"},
		{"export.cleaned_images", "save-cleaned"},
		{"render.font_file", "font-file"},
		{"render.upper_case", "upper-case"},
		{"events.addr", "events-addr"},
	}

	for _, b := range bindings {
		if err := viper.BindPFlag(b.key, cmd.Flags().Lookup(b.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", b.flag, err))
		}
	}
}

func init() {
	rootCmd.AddCommand(translateCmd)

	addTranslateFlags(translateCmd)
	bindTranslateFlags(translateCmd)
}
