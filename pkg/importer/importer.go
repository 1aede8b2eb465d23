package importer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/PaesslerAG/jsonpath"
	"github.com/charmbracelet/log"
	"github.com/xeipuuv/gojsonschema"

	"github.com/yurifrl/coinbook/pkg/config"
	"github.com/yurifrl/coinbook/pkg/progress"
)

var (
	ErrExtension     = errors.New("file must have a .json extension")
	ErrTooLarge      = errors.New("file is too large")
	ErrEmptyFile     = errors.New("file is empty")
	ErrMalformedJSON = errors.New("malformed json")
	ErrNotArray      = errors.New("records must be a json array")
	ErrEmptyArray    = errors.New("records array is empty")
	ErrRead          = errors.New("failed to read file")
)

// LimitError reports a file over the configured size limit.
type LimitError struct {
	Size  int64
	Limit int64
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%s: %d bytes, limit is %d", ErrTooLarge, e.Size, e.Limit)
}

func (e *LimitError) Unwrap() error { return ErrTooLarge }

const recordsSchema = `{"type": "array", "minItems": 1}`

var utf8BOM = []byte("\ufeff")

// Importer turns uploaded bytes into the raw elements of the record array.
// It is shared by the CLI and the HTTP server.
type Importer struct {
	cfg    *config.Config
	logger *log.Logger
	schema gojsonschema.JSONLoader
}

// New returns a new Importer instance.
func New(cfg *config.Config, logger *log.Logger) *Importer {
	return &Importer{
		cfg:    cfg,
		logger: logger,
		schema: gojsonschema.NewStringLoader(recordsSchema),
	}
}

// ValidateFile runs the checks that need only the name and size.
func (i *Importer) ValidateFile(name string, size int64) error {
	if !strings.EqualFold(filepath.Ext(name), ".json") {
		return fmt.Errorf("%w: %s", ErrExtension, name)
	}
	if size > i.cfg.MaxFileSize {
		return &LimitError{Size: size, Limit: i.cfg.MaxFileSize}
	}
	if size == 0 {
		return ErrEmptyFile
	}
	return nil
}

// Read validates name and size, consumes r while reporting the reading phase
// and parses the result.
func (i *Importer) Read(r io.Reader, name string, size int64, sink progress.Sink) ([]json.RawMessage, error) {
	if err := i.ValidateFile(name, size); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(progress.NewReader(r, size, sink))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRead, err)
	}
	i.logger.Debug("read file", "name", name, "bytes", len(data))

	return i.Parse(data)
}

// ReadFile is Read for a file on disk.
func (i *Importer) ReadFile(path string, sink progress.Sink) ([]json.RawMessage, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRead, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrRead, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRead, err)
	}
	defer f.Close()

	return i.Read(f, filepath.Base(path), info.Size(), sink)
}

// Parse decodes a JSON document and returns the elements of its record array.
// When a records path is configured the array is selected from inside the
// document, otherwise the document itself must be the array.
func (i *Importer) Parse(data []byte) ([]json.RawMessage, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if len(bytes.TrimSpace(data)) == 0 || !json.Valid(data) {
		return nil, ErrMalformedJSON
	}

	if path := i.cfg.RecordsPath; path != "" {
		selected, err := selectRecords(data, path)
		if err != nil {
			return nil, err
		}
		data = selected
	}

	if err := i.checkShape(data); err != nil {
		return nil, err
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedJSON, err)
	}
	i.logger.Debug("parsed records", "count", len(elems))
	return elems, nil
}

func (i *Importer) checkShape(data []byte) error {
	result, err := gojsonschema.Validate(i.schema, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedJSON, err)
	}
	if result.Valid() {
		return nil
	}
	for _, e := range result.Errors() {
		i.logger.Debug("records shape", "type", e.Type(), "detail", e.String())
		switch e.Type() {
		case "invalid_type":
			return ErrNotArray
		case "array_min_items":
			return ErrEmptyArray
		}
	}
	return ErrNotArray
}

// selectRecords evaluates a JSONPath expression and re-encodes its result.
func selectRecords(data []byte, path string) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedJSON, err)
	}

	val, err := jsonpath.Get(path, doc)
	if err != nil {
		return nil, fmt.Errorf("%w: records path %q: %v", ErrNotArray, path, err)
	}
	// wildcard paths wrap a single match in a list
	if list, ok := val.([]any); ok && len(list) == 1 {
		if inner, ok := list[0].([]any); ok {
			val = inner
		}
	}

	out, err := json.Marshal(val)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedJSON, err)
	}
	return out, nil
}
