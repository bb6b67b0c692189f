// Package transfer reads and writes snippet export documents.
package transfer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/snipd/internal/ir"
)

// MaxImportSize is the largest document Read accepts.
const MaxImportSize = 10 << 20

// DateLayout is the export_date format.
const DateLayout = "2006-01-02 15:04:05"

// ErrTooLarge is returned for documents over MaxImportSize.
var ErrTooLarge = errors.New("import file exceeds 10 MiB")

// ErrNoSnippets is returned for documents without a snippets list.
var ErrNoSnippets = errors.New("document has no snippets")

// Format is a document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Document is the export file layout.
type Document struct {
	Version    string       `json:"version" yaml:"version"`
	ExportDate string       `json:"export_date" yaml:"export_date"`
	Snippets   []ir.Snippet `json:"snippets" yaml:"snippets"`
}

// NewDocument wraps snippets for export at now.
func NewDocument(snippets []ir.Snippet, now time.Time) Document {
	if snippets == nil {
		snippets = []ir.Snippet{}
	}
	return Document{
		Version:    ir.ExportVersion,
		ExportDate: now.UTC().Format(DateLayout),
		Snippets:   snippets,
	}
}

// FormatFor picks the format from a file extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported file type %q: use .json, .yaml or .yml", filepath.Ext(path))
	}
}

// Write encodes doc to w.
func Write(w io.Writer, doc Document, format Format) error {
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "    ")
		enc.SetEscapeHTML(false)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return nil
	}
}

// Read decodes a document, refusing anything over MaxImportSize.
func Read(r io.Reader, format Format) (Document, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxImportSize+1))
	if err != nil {
		return Document{}, fmt.Errorf("read import: %w", err)
	}
	if len(data) > MaxImportSize {
		return Document{}, ErrTooLarge
	}
	return Decode(data, format)
}

// Decode parses a document held in memory.
func Decode(data []byte, format Format) (Document, error) {
	var doc struct {
		Version    string        `json:"version" yaml:"version"`
		ExportDate string        `json:"export_date" yaml:"export_date"`
		Snippets   *[]ir.Snippet `json:"snippets" yaml:"snippets"`
	}

	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return Document{}, fmt.Errorf("decode yaml: %w", err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		if err := dec.Decode(&doc); err != nil {
			return Document{}, fmt.Errorf("decode json: %w", err)
		}
	}
	if doc.Snippets == nil {
		return Document{}, ErrNoSnippets
	}
	return Document{Version: doc.Version, ExportDate: doc.ExportDate, Snippets: *doc.Snippets}, nil
}

// ReadFile reads a document, choosing the format by extension.
func ReadFile(path string) (Document, error) {
	format, err := FormatFor(path)
	if err != nil {
		return Document{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return Document{}, err
	}
	if info.Size() > MaxImportSize {
		return Document{}, ErrTooLarge
	}
	f, err := os.Open(path)
	if err != nil {
		return Document{}, err
	}
	defer f.Close()
	return Read(f, format)
}

// WriteFile writes a document, choosing the format by extension.
func WriteFile(path string, doc Document) error {
	format, err := FormatFor(path)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := Write(&buf, doc, format); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Filename suggests a file name for exporting snippets at now.
func Filename(snippets []ir.Snippet, now time.Time, format Format) string {
	date := now.UTC().Format("2006-01-02")
	ext := string(format)
	if ext == "" {
		ext = string(FormatJSON)
	}
	if len(snippets) == 1 {
		slug := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(snippets[0].Name), "-"), "-")
		if slug == "" {
			slug = "untitled"
		}
		return fmt.Sprintf("snippet-%s-%s.%s", slug, date, ext)
	}
	return fmt.Sprintf("snipd-export-%s.%s", date, ext)
}
