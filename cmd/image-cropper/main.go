package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"golang.org/x/sync/errgroup"

	imagecropper "github.com/menta2k/image-cropper"
	"github.com/menta2k/image-cropper/internal/config"
	"github.com/menta2k/image-cropper/internal/logging"
	"github.com/menta2k/image-cropper/internal/script"
	"github.com/menta2k/image-cropper/internal/server"
	"github.com/menta2k/image-cropper/internal/utils"
	"github.com/menta2k/image-cropper/pkg/client"
	"github.com/menta2k/image-cropper/pkg/detection"
	"github.com/menta2k/image-cropper/pkg/llamacpp"
	"github.com/menta2k/image-cropper/pkg/ollama"
	"github.com/menta2k/image-cropper/pkg/processing"
	"github.com/menta2k/image-cropper/pkg/suggest"
)

type options struct {
	in, outDir  string
	target      string
	keepRatio   string
	crop        string
	display     string
	scriptPath  string
	suggest     string
	model, url  string
	ext         string
	quality     int
	lossless    bool
	resize      string
	debug       bool
	configPath  string
	serve       bool
	verbose     bool
	concurrency int
}

func main() {
	var o options
	flag.StringVar(&o.in, "in", "", "input image path, URL or directory (jpg/png/webp)")
	flag.StringVar(&o.outDir, "out", "", "output directory (default from config)")
	flag.StringVar(&o.target, "target", "", "target size WxH, W, xH or a preset (square, portrait, landscape, widescreen, instagram, story)")
	flag.StringVar(&o.keepRatio, "keep-ratio", "default", "ratio lock override: default|on|off")
	flag.StringVar(&o.crop, "crop", "", "initial crop in natural pixels: WxH+X+Y[@scale]")
	flag.StringVar(&o.display, "display", "", "max displayed size WxH (default from config)")
	flag.StringVar(&o.scriptPath, "script", "", "JSON script of drag/zoom/resize/target steps to replay")
	flag.StringVar(&o.suggest, "suggest", "", "initial crop suggestion: smart|ollama|llamacpp (default from config)")
	flag.StringVar(&o.model, "model", "", "vision model name for -suggest ollama|llamacpp")
	flag.StringVar(&o.url, "url", "", "vision server URL")
	flag.StringVar(&o.ext, "ext", "", "output format: jpg|png|webp (default from config)")
	flag.IntVar(&o.quality, "quality", 0, "JPEG/WebP output quality (1-100)")
	flag.BoolVar(&o.lossless, "lossless", false, "WebP output lossless mode")
	flag.StringVar(&o.resize, "resize", "", "resize the crop to WxH, W or xH")
	flag.BoolVar(&o.debug, "debug", false, "write a debug overlay with the crop box")
	flag.StringVar(&o.configPath, "config", "", "config file (default "+config.GetConfigPath()+" when present)")
	flag.BoolVar(&o.serve, "serve", false, "run the crop server")
	flag.BoolVar(&o.verbose, "v", false, "debug logging")
	flag.IntVar(&o.concurrency, "j", runtime.NumCPU(), "images processed in parallel for a directory input")
	flag.Parse()

	if err := run(o); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(o options) error {
	cfg, err := loadConfig(o)
	if err != nil {
		return err
	}

	logger, closer, err := logging.Open(cfg.Log)
	if err != nil {
		return err
	}
	defer closer.Close()
	slog.SetDefault(logger)

	tr, err := cfg.Translator()
	if err != nil {
		return fmt.Errorf("messages: %w", err)
	}
	reg := imagecropper.NewRegistry(tr, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if o.serve {
		return server.New(reg, cfg.Server, cfg.CropConfig(), logger).ListenAndServe(ctx)
	}
	if o.in == "" {
		return fmt.Errorf("usage: %s -in input.jpg|URL|dir [-target 1200x675] [-crop WxH+X+Y] [-script steps.json] [-suggest smart] [-out dir] | -serve",
			filepath.Base(os.Args[0]))
	}

	job, err := newJob(o, cfg, reg, logger)
	if err != nil {
		return err
	}

	inputs := []string{o.in}
	if utils.DirExists(o.in) {
		if inputs, err = utils.ListImageFiles(o.in); err != nil {
			return err
		}
		if len(inputs) == 0 {
			return fmt.Errorf("no images in %s", o.in)
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(o.concurrency, 1))
	for _, in := range inputs {
		g.Go(func() error {
			if err := job.process(ctx, in); err != nil {
				return fmt.Errorf("%s: %w", in, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func loadConfig(o options) (*config.Config, error) {
	path := o.configPath
	if path == "" && utils.FileExists(config.GetConfigPath()) {
		path = config.GetConfigPath()
	}

	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.LoadFromFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	if o.outDir != "" {
		cfg.Output.OutputDir = o.outDir
	}
	if o.ext != "" {
		cfg.Output.DefaultFormat = o.ext
	}
	if o.quality > 0 {
		cfg.Output.Quality = o.quality
	}
	if o.lossless {
		cfg.Output.Lossless = true
	}
	if o.suggest != "" {
		cfg.Suggest.Provider = o.suggest
	}
	if o.model != "" {
		cfg.Suggest.Model = o.model
	}
	if o.display != "" {
		w, h, err := parseSize(o.display)
		if err != nil {
			return nil, fmt.Errorf("-display: %w", err)
		}
		cfg.Cropper.DisplayWidth, cfg.Cropper.DisplayHeight = w, h
	}
	if o.verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newSuggester builds the initial crop suggester selected by the configuration.
// It returns nil when suggestions are off.
func newSuggester(cfg config.SuggestConfig, urlOverride string, p *processing.Processor, logger *slog.Logger) (suggest.Suggester, error) {
	var vc client.VisionClient
	switch cfg.Provider {
	case "", "none":
		return nil, nil
	case "smart":
		return suggest.NewSmart(), nil
	case "ollama":
		url := cfg.OllamaURL
		if urlOverride != "" {
			url = urlOverride
		}
		c, err := ollama.NewClient(url, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create Ollama client: %w", err)
		}
		vc = c
	case "llamacpp":
		url := cfg.LlamaCppURL
		if urlOverride != "" {
			url = urlOverride
		}
		vc = llamacpp.NewClient(url, nil)
	default:
		return nil, errors.New("unknown suggestion provider: " + cfg.Provider)
	}

	d := detection.NewDetector(vc, cfg.Model)
	d.SetLogger(logger)
	v := suggest.NewVision(d, p)
	v.SetLogger(logger)
	if cfg.MaxDim > 0 {
		v.MaxDim = cfg.MaxDim
	}
	if cfg.Zoom > 0 {
		v.Zoom = cfg.Zoom
	}
	return v, nil
}

func loadScript(path string) (*script.Script, error) {
	if path == "" {
		return nil, nil
	}
	return script.Load(path)
}
