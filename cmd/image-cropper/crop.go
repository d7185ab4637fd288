package main

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"

	imagecropper "github.com/menta2k/image-cropper"
	"github.com/menta2k/image-cropper/internal/config"
	"github.com/menta2k/image-cropper/internal/script"
	"github.com/menta2k/image-cropper/internal/utils"
	"github.com/menta2k/image-cropper/pkg/analyzer"
	"github.com/menta2k/image-cropper/pkg/cropper"
	"github.com/menta2k/image-cropper/pkg/frame"
	"github.com/menta2k/image-cropper/pkg/messages"
	"github.com/menta2k/image-cropper/pkg/processing"
	"github.com/menta2k/image-cropper/pkg/ratio"
	"github.com/menta2k/image-cropper/pkg/suggest"
	"github.com/menta2k/image-cropper/pkg/types"
)

// job crops every input with the same settings.
type job struct {
	cfg       *config.Config
	base      cropper.Config
	registry  *imagecropper.Registry
	analyzer  *analyzer.ImageAnalyzer
	processor *processing.Processor
	suggester suggest.Suggester
	script    *script.Script
	resizeW   int
	resizeH   int
	debug     bool
	logger    *slog.Logger
}

// report is written next to the crop as JSON.
type report struct {
	Input    string             `json:"input"`
	Output   types.Output       `json:"output"`
	Visual   types.Rect         `json:"visual"`
	Frame    frame.Frame        `json:"frame"`
	Policy   ratio.Policy       `json:"policy"`
	Messages []messages.Message `json:"messages"`
	Files    []string           `json:"files"`
}

func newJob(o options, cfg *config.Config, reg *imagecropper.Registry, logger *slog.Logger) (*job, error) {
	base := cfg.CropConfig()
	var err error
	if base.Target, err = parseTarget(o.target); err != nil {
		return nil, fmt.Errorf("-target: %w", err)
	}
	if o.keepRatio != "" && o.keepRatio != "default" {
		if base.KeepRatio, err = parseKeep(o.keepRatio); err != nil {
			return nil, fmt.Errorf("-keep-ratio: %w", err)
		}
	}
	if base.Crop, err = parseCrop(o.crop); err != nil {
		return nil, fmt.Errorf("-crop: %w", err)
	}

	j := &job{
		cfg:       cfg,
		base:      base,
		registry:  reg,
		analyzer:  analyzer.New(),
		processor: processing.NewProcessor(),
		debug:     o.debug,
		logger:    logger,
	}
	if o.resize != "" {
		if j.resizeW, j.resizeH, err = parseSize(o.resize); err != nil {
			return nil, fmt.Errorf("-resize: %w", err)
		}
	}
	if base.Crop == nil {
		if j.suggester, err = newSuggester(cfg.Suggest, o.url, j.processor, logger); err != nil {
			return nil, err
		}
	}
	if j.script, err = loadScript(o.scriptPath); err != nil {
		return nil, err
	}
	return j, nil
}

func (j *job) process(ctx context.Context, in string) error {
	img, err := j.processor.LoadImageSmart(ctx, in)
	if err != nil {
		return err
	}
	info := j.analyzer.GetImageInfo(img)
	if err := j.analyzer.ValidateInfo(info); err != nil {
		return err
	}

	cc := j.base
	cc.ID = ""
	if cc.Crop == nil && j.suggester != nil {
		var t types.Target
		if cc.Target != nil {
			t = *cc.Target
		}
		out, err := j.suggester.Suggest(ctx, img, t)
		if err != nil {
			return fmt.Errorf("suggesting crop: %w", err)
		}
		j.logger.Info("initial crop suggested", "input", in, "crop", out)
		cc.Crop = &out
	}

	c, _ := j.registry.Create(cc)
	defer c.Destroy()

	if err := imagecropper.LoadFitted(c, info, j.cfg.Cropper.DisplayWidth, j.cfg.Cropper.DisplayHeight); err != nil {
		return err
	}

	var out types.Output
	if j.script != nil {
		if out, err = script.Run(ctx, c, j.script, j.logger); err != nil {
			return err
		}
	} else if out, err = c.Data(); err != nil {
		return err
	}

	rep := report{
		Input:    in,
		Output:   out,
		Visual:   c.Visual(),
		Frame:    c.Frame(),
		Policy:   c.Policy(),
		Messages: []messages.Message{},
	}
	if b, ok := c.Messenger().(*messages.Board); ok {
		rep.Messages = b.Messages()
	}
	for _, m := range rep.Messages {
		j.logger.Warn(m.Text, "input", in, "key", m.Key)
	}
	return j.write(img, rep)
}

// write renders and stores the crop, the optional debug overlay and the report concurrently.
func (j *job) write(img image.Image, rep report) error {
	oc := j.cfg.Output
	if err := utils.EnsureDir(oc.OutputDir); err != nil {
		return err
	}
	name := func(tag, format string) string {
		return utils.GenerateOutputFilename(rep.Input, oc.OutputDir, oc.Prefix, oc.Suffix, tag, format)
	}

	cropPath := name("", oc.DefaultFormat)
	debugPath := name("debug", "png")
	reportPath := name("", "json")
	rep.Files = []string{cropPath, reportPath}
	if j.debug {
		rep.Files = append(rep.Files, debugPath)
	}

	var g errgroup.Group
	g.Go(func() error {
		cropped, err := j.processor.ApplyOutput(img, rep.Output, j.resizeW, j.resizeH)
		if err != nil {
			return err
		}
		if err := j.processor.SaveImage(cropped, cropPath, oc.DefaultFormat, oc.Quality, oc.Lossless); err != nil {
			return fmt.Errorf("save %s failed: %w", cropPath, err)
		}
		j.logWritten(cropPath)
		return nil
	})
	if j.debug {
		g.Go(func() error {
			overlay := j.processor.CreateDebugOverlay(img, rep.Frame, rep.Visual, rep.Output.Scale)
			if err := j.processor.SaveImage(overlay, debugPath, "png", 0, false); err != nil {
				return fmt.Errorf("debug save %s failed: %w", debugPath, err)
			}
			j.logWritten(debugPath)
			return nil
		})
	}
	g.Go(func() error {
		js, err := json.MarshalIndent(rep, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(reportPath, js, 0o644); err != nil {
			return err
		}
		j.logWritten(reportPath)
		return nil
	})
	return g.Wait()
}

func (j *job) logWritten(path string) {
	size := "?"
	if fi, err := os.Stat(path); err == nil {
		size = utils.FormatFileSize(fi.Size())
	}
	j.logger.Info("wrote "+path, "size", size, "format", utils.GetFileExtension(path))
}
