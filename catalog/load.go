package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format names a dataset encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ErrEmptyDataset is returned when a dataset decodes to zero records.
var ErrEmptyDataset = errors.New("catalog: dataset has no records")

// LoadError reports a dataset that is missing or cannot be decoded. Nothing
// can be resolved without a catalog, so callers treat it as fatal.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("load catalog: %v", e.Err)
	}
	return fmt.Sprintf("load catalog %q: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// FormatFromPath picks the dataset format from the file extension. Anything
// that is not .yaml or .yml is read as JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// LoadFile reads the dataset at path and builds a Catalog from it.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	defer f.Close()

	c, err := Load(f, FormatFromPath(path))
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.Path = path
		}
		return nil, err
	}
	return c, nil
}

// Load decodes an ordered list of records from r and builds a Catalog.
func Load(r io.Reader, format Format) (*Catalog, error) {
	records, err := decode(r, format)
	if err != nil {
		return nil, &LoadError{Err: err}
	}
	if len(records) == 0 {
		return nil, &LoadError{Err: ErrEmptyDataset}
	}
	return New(records), nil
}

func decode(r io.Reader, format Format) ([]Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}

	var records []Record
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("decode yaml dataset: %w", err)
		}
	case FormatJSON, "":
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("decode json dataset: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported dataset format %q", format)
	}
	return records, nil
}
