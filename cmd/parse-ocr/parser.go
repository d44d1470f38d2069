package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/store-ops/internal/application/port"
	"github.com/garyjia/store-ops/internal/domain/entity"
	"github.com/garyjia/store-ops/internal/extraction"
	"github.com/garyjia/store-ops/internal/infrastructure/document"
	"github.com/garyjia/store-ops/internal/merge"
)

// input is one file given on the command line
type input struct {
	Name string
	Data []byte
}

// returnsOutput is what the returns subcommand prints
type returnsOutput struct {
	Manifests entity.PageResult              `json:"manifests"`
	Items     int                            `json:"items"`
	Warnings  []extraction.ValidationWarning `json:"warnings,omitempty"`
	Usage     extraction.Usage               `json:"usage"`
}

// parser runs the extractors over local files. vision is nil when image input is disabled.
type parser struct {
	bulletins *extraction.BulletinExtractor
	items     *extraction.LineItemExtractor
	vision    port.VisionExtractor
	logger    *zap.Logger
}

func newParser(noiseTokens []string, defaultAudience string, vision port.VisionExtractor, logger *zap.Logger) *parser {
	classifier := extraction.NewClassifier(noiseTokens)
	return &parser{
		bulletins: extraction.NewBulletinExtractor(classifier, defaultAudience),
		items:     extraction.NewLineItemExtractor(classifier),
		vision:    vision,
		logger:    logger,
	}
}

func (p *parser) sniff(in input) (*port.Upload, error) {
	up, err := document.Sniff(in.Data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", in.Name, err)
	}
	switch up.Kind {
	case port.KindText:
		return up, nil
	case port.KindImage:
		if p.vision == nil {
			return nil, fmt.Errorf("%s: image input requires --vision", in.Name)
		}
		return up, nil
	}
	return nil, fmt.Errorf("%s: unsupported input kind %s", in.Name, up.Kind)
}

// Bulletin builds one day's Document, one page per input in order
func (p *parser) Bulletin(ctx context.Context, day time.Time, inputs []input) (*entity.Document, extraction.Usage, error) {
	var usage extraction.Usage
	name := ""
	if len(inputs) > 0 {
		name = inputs[0].Name
	}
	doc := entity.NewDocument(day, name)

	for _, in := range inputs {
		up, err := p.sniff(in)
		if err != nil {
			return nil, usage, err
		}

		var blocks []entity.BulletinBlock
		if up.Kind == port.KindText {
			blocks = p.bulletins.ExtractText(string(up.Data))
		} else {
			res, err := p.vision.ExtractBulletin(ctx, up.Data, up.MimeType)
			if err != nil {
				return nil, usage, fmt.Errorf("%s: %w", in.Name, err)
			}
			usage.Add(res.Usage)
			blocks = p.bulletins.FromVision(res.Blocks)
		}

		if len(blocks) == 0 {
			p.logger.Warn("No blocks recognized", zap.String("file", in.Name))
			continue
		}
		page := merge.AppendBulletinPage(doc, blocks)
		p.logger.Debug("Page parsed",
			zap.String("file", in.Name),
			zap.Int("page", page),
			zap.Int("blocks", len(blocks)))
	}
	return doc, usage, nil
}

// Returns extracts line items from every input and merges them by manifest number
func (p *parser) Returns(ctx context.Context, inputs []input, preserveOrder bool) (*returnsOutput, error) {
	out := &returnsOutput{}
	pages := make([]entity.PageResult, 0, len(inputs))
	seq := 0

	for _, in := range inputs {
		up, err := p.sniff(in)
		if err != nil {
			return nil, err
		}

		var result entity.PageResult
		if up.Kind == port.KindText {
			result, seq = p.items.ExtractLines(extraction.SplitLines(string(up.Data)), seq)
		} else {
			res, err := p.vision.ExtractManifest(ctx, up.Data, up.MimeType)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", in.Name, err)
			}
			out.Usage.Add(res.Usage)
			var warnings []extraction.ValidationWarning
			result, warnings, seq = p.items.FromVision(res.Items, seq)
			for _, w := range warnings {
				p.logger.Warn("Line item validation warning",
					zap.String("file", in.Name),
					zap.Int("index", w.Index),
					zap.String("field", w.Field),
					zap.String("message", w.Message))
			}
			out.Warnings = append(out.Warnings, warnings...)
		}
		pages = append(pages, result)
	}

	out.Manifests = merge.LineItems(pages, preserveOrder)
	out.Items = out.Manifests.ItemTotal()
	return out, nil
}
