// Package layoutfile reads factory layouts and production flows from YAML
// or JSON files.
package layoutfile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/factoryccu/core/flows"
	"github.com/kilianp07/factoryccu/core/routing"
)

// LoadLayout reads a layout file and checks that it forms a valid graph.
func LoadLayout(path string) (routing.Layout, error) {
	l, err := load[routing.Layout](path)
	if err != nil {
		return l, err
	}
	if _, err := l.Graph(); err != nil {
		return routing.Layout{}, fmt.Errorf("layout %s: %w", path, err)
	}
	return l, nil
}

// DecodeLayout reads a layout in the given format ("yaml" or "json").
func DecodeLayout(r io.Reader, format string) (routing.Layout, error) {
	l, err := decode[routing.Layout](r, format)
	if err != nil {
		return l, err
	}
	if _, err := l.Graph(); err != nil {
		return routing.Layout{}, err
	}
	return l, nil
}

// LoadFlows reads and validates a flow definition file.
func LoadFlows(path string) (flows.Set, error) {
	s, err := load[flows.Set](path)
	if err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("flows %s: %w", path, err)
	}
	return s, nil
}

// DecodeFlows reads flow definitions in the given format.
func DecodeFlows(r io.Reader, format string) (flows.Set, error) {
	s, err := decode[flows.Set](r, format)
	if err != nil {
		return nil, err
	}
	return s, s.Validate()
}

// DecodePayload decodes a bus payload, which is JSON unless it does not
// start with '{' or '['.
func DecodePayload[T any](payload []byte) (T, error) {
	format := "yaml"
	if t := bytes.TrimSpace(payload); len(t) > 0 && (t[0] == '{' || t[0] == '[') {
		format = "json"
	}
	return decode[T](bytes.NewReader(payload), format)
}

func load[T any](path string) (T, error) {
	var zero T
	f, err := os.Open(path)
	if err != nil {
		return zero, err
	}
	defer f.Close()
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	return decode[T](f, ext)
}

func decode[T any](r io.Reader, format string) (T, error) {
	var v T
	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.NewDecoder(r).Decode(&v); err != nil {
			return v, err
		}
	case "json":
		if err := json.NewDecoder(r).Decode(&v); err != nil {
			return v, err
		}
	default:
		return v, fmt.Errorf("unsupported format: %s", format)
	}
	return v, nil
}
