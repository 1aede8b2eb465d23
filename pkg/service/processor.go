package service

import (
	"context"
	"encoding/json"
	"errors"
	"runtime"
	"sort"
	"time"

	"github.com/charmbracelet/log"

	"github.com/yurifrl/coinbook/pkg/config"
	"github.com/yurifrl/coinbook/pkg/models"
	"github.com/yurifrl/coinbook/pkg/parser"
	"github.com/yurifrl/coinbook/pkg/progress"
)

// ErrNoValidData is returned when not a single record could be decoded.
var ErrNoValidData = errors.New("no valid records found")

// YieldFunc runs between chunks. It gives other goroutines a chance to run
// before the next chunk starts.
type YieldFunc func()

// Result is the outcome of one processing pass.
type Result struct {
	Items      []models.Item
	Currencies []string
	Statuses   []string
	Stats      Stats
}

type Stats struct {
	Total    int
	Accepted int
	Skipped  int
	Chunks   int
	Elapsed  time.Duration
}

type Processor struct {
	config *config.Config
	logger *log.Logger
	parser *parser.Parser
	yield  YieldFunc
}

func NewProcessor(config *config.Config, logger *log.Logger) *Processor {
	return &Processor{
		config: config,
		logger: logger,
		parser: parser.New(logger),
		yield:  runtime.Gosched,
	}
}

// WithYield replaces the hook run after every chunk.
func (p *Processor) WithYield(fn YieldFunc) *Processor {
	p.yield = fn
	return p
}

// Process decodes raw elements chunk by chunk on the calling goroutine.
// Items keep the index of their source element as ID and come out in input
// order. After each chunk progress is reported on the 50..100 half of the
// scale and the yield hook runs. The context is checked between chunks.
func (p *Processor) Process(ctx context.Context, raws []json.RawMessage, sink progress.Sink) (*Result, error) {
	if sink == nil {
		sink = progress.Discard
	}
	start := time.Now()
	total := len(raws)
	chunkSize := p.config.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 1000
	}

	items := make([]models.Item, 0, total)
	currencies := make(map[string]struct{})
	statuses := make(map[string]struct{})
	res := &Result{}

	for i := 0; i < total; i += chunkSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := i + chunkSize
		if end > total {
			end = total
		}

		for idx := i; idx < end; idx++ {
			raw, ok := models.ParseRawRecord(raws[idx])
			if !ok {
				p.logger.Debug("skipping element without code", "index", idx)
				continue
			}
			decoded, ok := p.parser.Decode(raw.Code)
			if !ok {
				continue
			}
			items = append(items, models.NewItem(idx, raw, decoded))
			currencies[decoded.Currency] = struct{}{}
			statuses[decoded.Status] = struct{}{}
		}

		res.Stats.Chunks++
		sink.Report(progress.ReadShare+progress.ReadShare*float64(end)/float64(total), progress.StatusProcessing(end, total))
		if p.yield != nil {
			p.yield()
		}
	}

	res.Items = items
	res.Currencies = sortedKeys(currencies)
	res.Statuses = sortedKeys(statuses)
	res.Stats.Total = total
	res.Stats.Accepted = len(items)
	res.Stats.Skipped = total - len(items)
	res.Stats.Elapsed = time.Since(start)

	p.logger.Debug("processed records", "total", total, "accepted", res.Stats.Accepted, "skipped", res.Stats.Skipped, "chunks", res.Stats.Chunks)

	if len(items) == 0 {
		return res, ErrNoValidData
	}
	return res, nil
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
