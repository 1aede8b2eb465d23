package plan

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yurifrl/coinbook/pkg/filter"
)

const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// Plan is a batch of exports described in YAML:
//
//	label: coins
//	exports:
//	  - input: data/2024.json
//	    currency: اليورو
//	    format: xlsx
//	  - input: data/2024.json
//	    search: star
//	    output: out/stars.csv
type Plan struct {
	Label   string   `yaml:"label"`
	Exports []Export `yaml:"exports"`

	// directory of the plan file; relative paths resolve against it
	dir string
}

type Export struct {
	Input           string `yaml:"input"`
	Output          string `yaml:"output"`
	Format          string `yaml:"format"`
	filter.Criteria `yaml:",inline"`
}

func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}

	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}

	if len(p.Exports) == 0 {
		return nil, fmt.Errorf("plan has no exports")
	}
	for i := range p.Exports {
		e := &p.Exports[i]
		if e.Input == "" {
			return nil, fmt.Errorf("export %d has no input", i+1)
		}
		e.Format = strings.ToLower(e.Format)
		if e.Format == "" {
			e.Format = formatFromOutput(e.Output)
		}
		if e.Format != FormatCSV && e.Format != FormatXLSX {
			return nil, fmt.Errorf("export %d has unknown format %q", i+1, e.Format)
		}
	}
	p.dir = filepath.Dir(path)
	return &p, nil
}

// Resolve makes a path from the plan absolute against the plan's directory.
func (p *Plan) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(p.dir, path)
}

func (p *Plan) Print() {
	if p.Label != "" {
		fmt.Printf("label: %s\n", p.Label)
	}
	for i, e := range p.Exports {
		fmt.Printf("[%d] input=%s format=%s output=%s search=%q currency=%q status=%q\n",
			i+1, e.Input, e.Format, e.Output, e.Search, e.Currency, e.Status)
	}
}

func formatFromOutput(output string) string {
	if strings.EqualFold(filepath.Ext(output), ".xlsx") {
		return FormatXLSX
	}
	return FormatCSV
}
