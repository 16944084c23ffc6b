// Package loader turns files and in-memory strings into domain documents.
package loader

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"ragqa/internal/domain"
)

type readFunc func(path string) ([]domain.Document, error)

var readers = map[string]readFunc{
	".txt":   readText,
	".md":    readText,
	".pdf":   readPDF,
	".html":  readHTML,
	".htm":   readHTML,
	".xlsx":  readXLSX,
	".jsonl": readJSONL,
	".csv":   readCSV,
}

// Supported reports whether files with the extension of path can be loaded.
func Supported(path string) bool {
	_, ok := readers[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Loader reads documents from disk.
type Loader struct {
	logger *zap.Logger
}

// New creates a loader. A nil logger discards output.
func New(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{logger: logger}
}

// Load expands globs in paths and reads every supported file.
// Unsupported files are skipped; finding no documents at all is an error.
func (l *Loader) Load(paths []string) ([]domain.Document, error) {
	var docs []domain.Document
	for _, p := range paths {
		matches, err := filepath.Glob(p)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", p, err)
		}
		if matches == nil {
			matches = []string{p}
		}
		for _, m := range matches {
			read, ok := readers[strings.ToLower(filepath.Ext(m))]
			if !ok {
				l.logger.Debug("skipping unsupported file", zap.String("path", m))
				continue
			}
			got, err := read(m)
			if err != nil {
				return nil, fmt.Errorf("loading %s: %w", m, err)
			}
			l.logger.Debug("loaded file", zap.String("path", m), zap.Int("documents", len(got)))
			docs = append(docs, got...)
		}
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: no supported documents found in %v", domain.ErrNoDocuments, paths)
	}
	return docs, nil
}

// FromStrings builds an in-memory corpus with IDs doc-0, doc-1, ...
func FromStrings(texts []string) []domain.Document {
	docs := make([]domain.Document, len(texts))
	for i, t := range texts {
		docs[i] = domain.Document{ID: "doc-" + strconv.Itoa(i), Content: t}
	}
	return docs
}

func readText(path string) ([]domain.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return []domain.Document{fileDocument(path, "", string(data))}, nil
}

func fileDocument(path, title, content string) domain.Document {
	if title == "" {
		title = filepath.Base(path)
	}
	return domain.Document{ID: hashString(path), Title: title, Path: path, Content: content}
}

// contentKeys lists the fields read as document text, in order of preference.
var contentKeys = []string{"content", "text", "context"}

// rowDocument maps a record onto a document. id, title and the first present
// content key are recognised; every other field becomes metadata.
func rowDocument(path string, row int, fields map[string]string) (domain.Document, bool) {
	doc := domain.Document{Path: path, Metadata: map[string]string{}}
	byKey := make(map[string]string, len(fields))
	for k := range fields {
		byKey[strings.ToLower(strings.TrimSpace(k))] = k
	}
	contentField := ""
	for _, key := range contentKeys {
		if orig, ok := byKey[key]; ok && strings.TrimSpace(fields[orig]) != "" {
			contentField = orig
			break
		}
	}
	if contentField == "" {
		return doc, false
	}
	for k, v := range fields {
		switch {
		case k == contentField:
			doc.Content = v
		case strings.EqualFold(strings.TrimSpace(k), "id"):
			doc.ID = v
		case strings.EqualFold(strings.TrimSpace(k), "title"):
			doc.Title = v
		default:
			doc.Metadata[k] = v
		}
	}
	if doc.ID == "" {
		doc.ID = hashString(path + "#" + strconv.Itoa(row))
	}
	return doc, true
}

func hashString(s string) string {
	h := sha1.Sum([]byte(s))
	return hex.EncodeToString(h[:8])
}
