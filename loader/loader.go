// Package loader reads source documents from a data directory.
//
// Two kinds of files are recognised. JSON files holding a single
// {"id", "title", "body"} object, by default under docs/, and PDF files,
// by default directly in the data directory. A PDF's file name is used as
// both its ID and title.
package loader

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/ledongthuc/pdf"
	"github.com/poiesic/groundwork/core"
)

const (
	DefaultJSONPattern = "docs/*.json"
	DefaultPDFPattern  = "*.pdf"

	// UntitledTitle is used for JSON documents without a title.
	UntitledTitle = "Untitled"
)

var (
	ErrRootRequired = errors.New("loader: data directory required")
	ErrMissingID    = errors.New("loader: document has no id")
	ErrEmptyPDF     = errors.New("loader: pdf contains no text")
)

type Loader struct {
	root        string
	jsonPattern string
	pdfPattern  string
	logger      *slog.Logger
}

type Option func(*Loader) error

// WithJSONPattern sets the doublestar pattern, relative to the data
// directory, selecting JSON documents.
func WithJSONPattern(pattern string) Option {
	return func(l *Loader) error {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("loader: invalid json pattern %q", pattern)
		}
		l.jsonPattern = pattern
		return nil
	}
}

// WithPDFPattern sets the doublestar pattern selecting PDF documents.
func WithPDFPattern(pattern string) Option {
	return func(l *Loader) error {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("loader: invalid pdf pattern %q", pattern)
		}
		l.pdfPattern = pattern
		return nil
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) error {
		if logger == nil {
			logger = slog.Default()
		}
		l.logger = logger
		return nil
	}
}

func New(root string, opts ...Option) (*Loader, error) {
	if root == "" {
		return nil, ErrRootRequired
	}
	l := &Loader{
		root:        root,
		jsonPattern: DefaultJSONPattern,
		pdfPattern:  DefaultPDFPattern,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(l); err != nil {
			return nil, err
		}
	}
	l.logger = l.logger.With("component", "loader", "root", root)
	return l, nil
}

// Root returns the data directory.
func (l *Loader) Root() string {
	return l.root
}

// Matches reports whether a path relative to the data directory would be
// loaded.
func (l *Loader) Matches(rel string) bool {
	rel = filepath.ToSlash(rel)
	for _, pattern := range []string{l.jsonPattern, l.pdfPattern} {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// Load reads every matching file. JSON documents come first, then PDFs,
// each group in path order. Files that cannot be read are reported in the
// failures and skipped. A missing data directory yields no documents.
func (l *Loader) Load(ctx context.Context) ([]core.Document, []error) {
	fsys := os.DirFS(l.root)
	var docs []core.Document
	var failures []error

	for _, kind := range []struct {
		pattern string
		read    func(path string) (core.Document, error)
	}{
		{l.jsonPattern, l.readJSON},
		{l.pdfPattern, l.readPDF},
	} {
		paths, err := doublestar.Glob(fsys, kind.pattern)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				failures = append(failures, fmt.Errorf("loader: glob %q: %w", kind.pattern, err))
			}
			continue
		}
		sort.Strings(paths)

		for _, rel := range paths {
			if err := ctx.Err(); err != nil {
				return docs, append(failures, err)
			}
			doc, err := kind.read(filepath.Join(l.root, filepath.FromSlash(rel)))
			if err != nil {
				l.logger.Warn("skipping document", "path", rel, "err", err)
				failures = append(failures, fmt.Errorf("%s: %w", rel, err))
				continue
			}
			l.logger.Debug("loaded document", "path", rel, "id", doc.ID)
			docs = append(docs, doc)
		}
	}

	l.logger.Info("documents loaded", "documents", len(docs), "failures", len(failures))
	return docs, failures
}

type jsonDocument struct {
	ID    json.RawMessage `json:"id"`
	Title *string         `json:"title"`
	Body  string          `json:"body"`
}

func (l *Loader) readJSON(path string) (core.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return core.Document{}, err
	}
	return ParseJSON(data)
}

// ParseJSON decodes one JSON document. The id may be a string or a number.
func ParseJSON(data []byte) (core.Document, error) {
	var raw jsonDocument
	if err := json.Unmarshal(data, &raw); err != nil {
		return core.Document{}, fmt.Errorf("loader: decode json: %w", err)
	}

	id, err := decodeID(raw.ID)
	if err != nil {
		return core.Document{}, err
	}
	title := UntitledTitle
	if raw.Title != nil {
		title = *raw.Title
	}
	return core.Document{ID: id, Title: title, Body: raw.Body}, nil
}

func decodeID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", ErrMissingID
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return "", ErrMissingID
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("loader: id must be a string or number: %w", err)
	}
	return n.String(), nil
}

func (l *Loader) readPDF(path string) (doc core.Document, err error) {
	// The pdf parser panics on some malformed files.
	defer func() {
		if p := recover(); p != nil {
			doc, err = core.Document{}, fmt.Errorf("loader: malformed pdf: %v", p)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return core.Document{}, fmt.Errorf("loader: open pdf: %w", err)
	}
	defer f.Close()

	text, err := r.GetPlainText()
	if err != nil {
		return core.Document{}, fmt.Errorf("loader: extract pdf text: %w", err)
	}
	var body strings.Builder
	if _, err := io.Copy(&body, text); err != nil {
		return core.Document{}, fmt.Errorf("loader: read pdf text: %w", err)
	}
	if strings.TrimSpace(body.String()) == "" {
		return core.Document{}, ErrEmptyPDF
	}

	name := filepath.Base(path)
	return core.Document{ID: name, Title: name, Body: body.String()}, nil
}
