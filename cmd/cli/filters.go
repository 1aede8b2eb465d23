package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/yurifrl/coinbook/pkg/config"
	"github.com/yurifrl/coinbook/pkg/csv"
	"github.com/yurifrl/coinbook/pkg/dataset"
	"github.com/yurifrl/coinbook/pkg/filter"
	"github.com/yurifrl/coinbook/pkg/importer"
	"github.com/yurifrl/coinbook/pkg/models"
	"github.com/yurifrl/coinbook/pkg/plan"
	"github.com/yurifrl/coinbook/pkg/progress"
	"github.com/yurifrl/coinbook/pkg/service"
	"github.com/yurifrl/coinbook/pkg/xlsx"
)

type filters struct {
	search   string
	currency string
	status   string
	page     int
}

func (f *filters) criteria() filter.Criteria {
	return filter.Criteria{Search: f.search, Currency: f.currency, Status: f.status}
}

type FileProcessor struct {
	logger    *log.Logger
	config    *config.Config
	importer  *importer.Importer
	processor *service.Processor
	filters   *filters
	now       func() time.Time
}

func NewFileProcessor(logger *log.Logger, cfg *config.Config, filters *filters) *FileProcessor {
	return &FileProcessor{
		logger:    logger,
		config:    cfg,
		importer:  importer.New(cfg, logger),
		processor: service.NewProcessor(cfg, logger),
		filters:   filters,
		now:       time.Now,
	}
}

// Open loads a JSON file into a store with the command line filters and
// page applied.
func (p *FileProcessor) Open(ctx context.Context, path string) (*dataset.Store, *dataset.LoadReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", importer.ErrRead, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", importer.ErrRead, err)
	}

	store := dataset.New(p.config.PageSize, p.importer, p.processor)
	report, err := store.Load(ctx, dataset.Source{
		Name:   filepath.Base(path),
		Size:   info.Size(),
		Reader: f,
	}, p.progressSink())
	if err != nil {
		return nil, nil, err
	}
	p.logger.Info("loaded dataset", "file", report.Name, "size", report.HumanSize, "items", report.Count, "skipped", report.Stats.Skipped)

	if err := store.ApplyFilters(p.filters.criteria()); err != nil {
		return nil, nil, err
	}
	if p.filters.page > 1 {
		store.SetPage(p.filters.page)
	}
	return store, report, nil
}

func (p *FileProcessor) progressSink() progress.Sink {
	logProgress := progress.Func(func(percent float64, status string) {
		p.logger.Debug("progress", "percent", fmt.Sprintf("%.0f", percent), "status", status)
	})
	return progress.Throttle(logProgress, rate.NewLimiter(rate.Limit(p.config.Server.ProgressRate), 1))
}

func (p *FileProcessor) ProcessDirectory(ctx context.Context, inputDir, outputDir, format string) error {
	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return fmt.Errorf("failed to read directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".json") {
			continue
		}

		if _, err := p.ProcessFile(ctx, filepath.Join(inputDir, entry.Name()), outputDir, format); err != nil {
			p.logger.Warn("error processing file", "error", err, "file", entry.Name())
		}
	}

	return nil
}

// ProcessFile exports the filtered items of one input file into outputDir,
// or next to the input when outputDir is empty, and returns the written path.
func (p *FileProcessor) ProcessFile(ctx context.Context, inputPath, outputDir, format string) (string, error) {
	store, _, err := p.Open(ctx, inputPath)
	if err != nil {
		return "", fmt.Errorf("failed to process file: %w", err)
	}

	if outputDir == "" {
		outputDir = filepath.Dir(inputPath)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	stem := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	out := filepath.Join(outputDir, stem+"_"+p.exportName(format))
	if err := writeExport(out, format, store.Filtered()); err != nil {
		return "", err
	}
	p.logger.Info("exported", "file", out)
	return out, nil
}

func (p *FileProcessor) exportName(format string) string {
	if format == plan.FormatXLSX {
		return xlsx.FileName(p.config.ExportLabel, p.now())
	}
	return csv.FileName(p.config.ExportLabel, p.now())
}

func writeExport(path, format string, items []models.Item) error {
	switch format {
	case plan.FormatXLSX:
		return xlsx.WriteFile(path, items)
	case plan.FormatCSV:
		return csv.WriteFile(path, items)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
