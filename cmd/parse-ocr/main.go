// Command parse-ocr runs the store-ops extractors on local files and prints the result as JSON.
//
//	parse-ocr bulletin --day 2025-11-14 page1.txt page2.txt
//	parse-ocr returns --vision scan1.jpg scan2.jpg
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/alexflint/go-arg"
	"go.uber.org/zap"

	"github.com/garyjia/store-ops/internal/application/port"
	"github.com/garyjia/store-ops/internal/config"
	"github.com/garyjia/store-ops/internal/infrastructure/external/openai"
	"github.com/garyjia/store-ops/pkg/logging"
)

type bulletinCmd struct {
	Day   string   `arg:"--day" help:"day of the bulletin (YYYY-MM-DD), default today"`
	Files []string `arg:"positional,required" help:"text or image pages in order"`
}

type returnsCmd struct {
	PreserveOrder bool     `arg:"--preserve-order" help:"keep original item sequence inside each manifest"`
	Files         []string `arg:"positional,required" help:"text or image pages in order"`
}

type args struct {
	Bulletin *bulletinCmd `arg:"subcommand:bulletin" help:"extract daily info blocks"`
	Returns  *returnsCmd  `arg:"subcommand:returns" help:"extract returns line items"`

	Config   string   `arg:"-c,--config" help:"config file used by --vision"`
	Vision   bool     `arg:"--vision" help:"send image files to the vision model"`
	Noise    []string `arg:"--noise,separate" help:"extra noise token to drop (repeatable)"`
	Audience string   `arg:"--audience" help:"audience for blocks that name none"`
	Verbose  bool     `arg:"-v,--verbose" help:"debug logging to stderr"`
}

func (args) Description() string {
	return "parse-ocr extracts bulletin blocks or returns line items from OCR text and photos"
}

func main() {
	var a args
	p := arg.MustParse(&a)
	if p.Subcommand() == nil {
		p.Fail("missing subcommand: bulletin or returns")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, a, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "parse-ocr: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, a args, out io.Writer) error {
	level := "warn"
	if a.Verbose {
		level = "debug"
	}
	logger, err := logging.New(logging.Config{Level: level, OutputPath: "stderr", Format: "console"})
	if err != nil {
		return err
	}
	defer logger.Sync()

	vision, err := visionFor(a, logger)
	if err != nil {
		return err
	}
	prs := newParser(a.Noise, a.Audience, vision, logger)

	var result interface{}
	switch {
	case a.Bulletin != nil:
		day := time.Now()
		if a.Bulletin.Day != "" {
			if day, err = time.Parse("2006-01-02", a.Bulletin.Day); err != nil {
				return fmt.Errorf("invalid --day: %w", err)
			}
		}
		inputs, err := readInputs(a.Bulletin.Files)
		if err != nil {
			return err
		}
		doc, usage, err := prs.Bulletin(ctx, day, inputs)
		if err != nil {
			return err
		}
		result = map[string]interface{}{"document": doc, "usage": usage}
	case a.Returns != nil:
		inputs, err := readInputs(a.Returns.Files)
		if err != nil {
			return err
		}
		if result, err = prs.Returns(ctx, inputs, a.Returns.PreserveOrder); err != nil {
			return err
		}
	default:
		return fmt.Errorf("missing subcommand")
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func visionFor(a args, logger *zap.Logger) (port.VisionExtractor, error) {
	if !a.Vision {
		return nil, nil
	}
	cfg, err := config.Load(a.Config)
	if err != nil {
		return nil, err
	}
	prompts, err := openai.LoadPrompts(cfg.Vision.PromptsPath)
	if err != nil {
		return nil, err
	}
	return openai.NewVisionClient(openai.Config{
		APIKey:         cfg.Vision.APIKey,
		BaseURL:        cfg.Vision.BaseURL,
		Model:          cfg.Vision.Model,
		MaxTokens:      cfg.Vision.MaxTokens,
		RequestTimeout: cfg.Vision.RequestTimeout,
		MaxAttempts:    cfg.Vision.MaxAttempts,
		BaseBackoff:    cfg.Vision.BaseBackoff,
		MaxBackoff:     cfg.Vision.MaxBackoff,
	}, prompts, openai.PromptData{
		DefaultAudience: cfg.Extraction.DefaultAudience,
		NoiseTokens:     cfg.Extraction.NoiseTokens,
	}, logger), nil
}

func readInputs(paths []string) ([]input, error) {
	inputs := make([]input, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		inputs = append(inputs, input{Name: path, Data: data})
	}
	return inputs, nil
}
