// Package flowfile reads and writes flow snapshots as YAML or JSON files.
package flowfile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/chatflow/pkg/domain"
	"gopkg.in/yaml.v3"
)

// Format is a flow file encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatOf picks the format from a file extension, defaulting to YAML.
func FormatOf(path string) Format {
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		return FormatJSON
	}
	return FormatYAML
}

// Load reads a flow file, choosing the decoder from its extension.
func Load(path string) (domain.Flow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Flow{}, fmt.Errorf("failed to read flow file: %w", err)
	}
	flow, err := Decode(bytes.NewReader(data), FormatOf(path))
	if err != nil {
		return domain.Flow{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return flow, nil
}

// Decode reads a flow snapshot in the given format.
func Decode(r io.Reader, format Format) (domain.Flow, error) {
	var raw domain.RawFlow
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(r)
		if err := dec.Decode(&raw); err != nil && err != io.EOF {
			return domain.Flow{}, fmt.Errorf("failed to parse JSON flow: %w", err)
		}
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&raw); err != nil && err != io.EOF {
			return domain.Flow{}, fmt.Errorf("failed to parse YAML flow: %w", err)
		}
	default:
		return domain.Flow{}, fmt.Errorf("unsupported flow format %q", format)
	}
	return raw.Decode()
}

// Encode writes a flow snapshot in the given format.
func Encode(w io.Writer, flow domain.Flow, format Format) error {
	raw, err := flow.Raw()
	if err != nil {
		return err
	}
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(raw)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(raw); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported flow format %q", format)
	}
}

// Save writes a flow file, choosing the encoder from its extension.
func Save(path string, flow domain.Flow) error {
	var buf bytes.Buffer
	if err := Encode(&buf, flow, FormatOf(path)); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write flow file: %w", err)
	}
	return nil
}

// DirSaver returns a save function that writes each flow to <dir>/<id>.<format>.
// Ids containing slashes land in subdirectories, as the flow library reads them.
func DirSaver(dir string, format Format) func(ctx context.Context, id string, flow domain.Flow) error {
	return func(_ context.Context, id string, flow domain.Flow) error {
		path := filepath.Join(dir, filepath.FromSlash(id)+"."+string(format))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("failed to create flow directory: %w", err)
		}
		return Save(path, flow)
	}
}
