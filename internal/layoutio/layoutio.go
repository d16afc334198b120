// Package layoutio reads and writes Layout Maps as JSON, YAML or TOML
// files. Every format carries the same document: the persisted map keyed
// by position, with unknown keys preserved.
package layoutio

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"storefront/internal/domain"
	"storefront/internal/layout"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// ParseFormat accepts a format name as given on the command line.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "toml":
		return FormatTOML, nil
	}
	return "", fmt.Errorf("unknown layout format %q (want json, yaml or toml)", s)
}

// FormatFor picks the format from a file extension.
func FormatFor(path string) (Format, error) {
	ext := filepath.Ext(path)
	if ext == "" {
		return "", fmt.Errorf("%s: no file extension to pick a format from", path)
	}
	return ParseFormat(ext)
}

// Marshal renders m in format f.
func Marshal(m domain.LayoutMap, f Format) ([]byte, error) {
	raw, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode layout: %w", err)
	}
	if f == FormatJSON {
		return append(raw, '\n'), nil
	}

	// YAML and TOML go through a generic tree so unknown keys survive.
	tree, err := jsonTree(raw)
	if err != nil {
		return nil, err
	}
	switch f {
	case FormatYAML:
		out, err := yaml.Marshal(tree)
		if err != nil {
			return nil, fmt.Errorf("encode yaml: %w", err)
		}
		return out, nil
	case FormatTOML:
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(tree); err != nil {
			return nil, fmt.Errorf("encode toml: %w", err)
		}
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("unknown layout format %q", f)
}

// Unmarshal parses data in format f. Unlike the store's lenient decoder
// it fails on malformed input.
func Unmarshal(data []byte, f Format) (domain.LayoutMap, error) {
	raw := data
	switch f {
	case FormatJSON:
	case FormatYAML:
		var tree any
		if err := yaml.Unmarshal(data, &tree); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
		b, err := json.Marshal(stringKeys(tree))
		if err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
		raw = b
	case FormatTOML:
		var tree map[string]any
		if _, err := toml.Decode(string(data), &tree); err != nil {
			return nil, fmt.Errorf("parse toml: %w", err)
		}
		b, err := json.Marshal(tree)
		if err != nil {
			return nil, fmt.Errorf("parse toml: %w", err)
		}
		raw = b
	default:
		return nil, fmt.Errorf("unknown layout format %q", f)
	}

	m := domain.LayoutMap{}
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return m, nil
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}
	return m, nil
}

// WriteFile exports m to path, choosing the format from its extension.
// The file is replaced atomically.
func WriteFile(path string, m domain.LayoutMap) error {
	f, err := FormatFor(path)
	if err != nil {
		return err
	}
	content, err := Marshal(m, f)
	if err != nil {
		return err
	}
	return atomicWrite(path, content)
}

// ReadFile imports the layout at path and validates it strictly.
func ReadFile(path string) (domain.LayoutMap, error) {
	f, err := FormatFor(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read layout: %w", err)
	}
	m, err := Unmarshal(data, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := layout.Validate(m); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

func atomicWrite(path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".storefront-tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("atomic rename: %w", err)
	}
	return nil
}

// jsonTree decodes raw into maps and slices with integral numbers kept as
// int64, so TOML does not turn positions into floats.
func jsonTree(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, fmt.Errorf("encode layout: %w", err)
	}
	return numbers(tree), nil
}

func numbers(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = numbers(e)
		}
	case []any:
		for i, e := range t {
			t[i] = numbers(e)
		}
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n
		}
		f, _ := t.Float64()
		return f
	}
	return v
}

// stringKeys rewrites the map[any]any yaml produces for unquoted numeric
// keys into map[string]any.
func stringKeys(v any) any {
	switch t := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[fmt.Sprint(k)] = stringKeys(e)
		}
		return out
	case map[string]any:
		for k, e := range t {
			t[k] = stringKeys(e)
		}
	case []any:
		for i, e := range t {
			t[i] = stringKeys(e)
		}
	}
	return v
}
