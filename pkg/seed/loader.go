package seed

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/getmockd/odatad/pkg/entity"
)

// fileContent is the on-disk layout of a seed file. It matches the output
// of Dataset.Records.
type fileContent struct {
	Customers []map[string]any `json:"Customers" yaml:"Customers"`
	Orders    []map[string]any `json:"Orders" yaml:"Orders"`
}

// LoadFiles reads every seed file matched by patterns and merges them, in
// pattern order and then path order, into one dataset. Relative patterns are
// resolved against baseDir. Patterns support ** via doublestar; a pattern
// without glob characters must name an existing file.
func LoadFiles(patterns []string, baseDir string) (Dataset, error) {
	var ds Dataset
	seen := make(map[string]bool)
	for _, pattern := range patterns {
		files, err := expandPattern(pattern, baseDir)
		if err != nil {
			return Dataset{}, err
		}
		for _, file := range files {
			if seen[file] {
				continue
			}
			seen[file] = true
			part, err := LoadFile(file)
			if err != nil {
				return Dataset{}, err
			}
			ds.Customers = append(ds.Customers, part.Customers...)
			ds.Orders = append(ds.Orders, part.Orders...)
		}
	}
	return ds, nil
}

func expandPattern(pattern, baseDir string) ([]string, error) {
	if !filepath.IsAbs(pattern) && baseDir != "" {
		pattern = filepath.Join(baseDir, pattern)
	}
	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("expanding glob pattern %q: %w", pattern, err)
	}
	if len(matches) == 0 && !hasMeta(pattern) {
		return nil, fmt.Errorf("seed file not found: %s", pattern)
	}
	// Sort matches for deterministic ordering
	sort.Strings(matches)
	return matches, nil
}

func hasMeta(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{")
}

// LoadFile reads a single YAML or JSON seed file. Files ending in .yaml or
// .yml are parsed as YAML, everything else as JSON.
func LoadFile(path string) (Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Dataset{}, fmt.Errorf("file not found: %s", path)
		}
		return Dataset{}, fmt.Errorf("reading seed file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return Dataset{}, fmt.Errorf("file is empty: %s", path)
	}

	var content fileContent
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &content); err != nil {
			return Dataset{}, fmt.Errorf("parsing YAML %s: %w", path, err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&content); err != nil {
			return Dataset{}, fmt.Errorf("parsing JSON %s: %w", path, err)
		}
	}

	ds, err := content.decode()
	if err != nil {
		return Dataset{}, fmt.Errorf("%s: %w", path, err)
	}
	return ds, nil
}

func (c fileContent) decode() (Dataset, error) {
	var ds Dataset
	for i, raw := range c.Customers {
		e, err := decodeRecord(entity.SetCustomers, i, raw)
		if err != nil {
			return Dataset{}, err
		}
		ds.Customers = append(ds.Customers, e.(entity.Customer))
	}
	for i, raw := range c.Orders {
		e, err := decodeRecord(entity.SetOrders, i, raw)
		if err != nil {
			return Dataset{}, err
		}
		ds.Orders = append(ds.Orders, e.(entity.Order))
	}
	return ds, nil
}

func decodeRecord(set string, i int, raw map[string]any) (entity.Entity, error) {
	e, err := entity.Decode(set, raw)
	if err != nil {
		return nil, fmt.Errorf("%s[%d]: %w", set, i, err)
	}
	if e.Key() <= 0 {
		return nil, fmt.Errorf("%s[%d]: %w", set, i, entity.Invalidf(entity.KeyProperty, "must be a positive integer"))
	}
	return e, nil
}
