package executors

import (
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/yurifrl/coinbook/pkg/config"
	"github.com/yurifrl/coinbook/pkg/importer"
	"github.com/yurifrl/coinbook/pkg/service"
)

type Executor struct {
	logger    *log.Logger
	config    *config.Config
	importer  *importer.Importer
	processor *service.Processor
	out       io.Writer
	now       func() time.Time
}

func New(logger *log.Logger, config *config.Config) *Executor {
	return &Executor{
		logger:    logger,
		config:    config,
		importer:  importer.New(config, logger),
		processor: service.NewProcessor(config, logger),
		out:       os.Stdout,
		now:       time.Now,
	}
}

// WithOutput redirects the plan preview and apply summary.
func (e *Executor) WithOutput(w io.Writer) *Executor {
	e.out = w
	return e
}
