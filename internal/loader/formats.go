package loader

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"

	"ragqa/internal/domain"
)

var blankLines = regexp.MustCompile(`\n{3,}`)

func readPDF(path string) ([]domain.Document, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	plain, err := r.GetPlainText()
	if err != nil {
		return nil, fmt.Errorf("extracting text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return nil, err
	}
	return []domain.Document{fileDocument(path, "", buf.String())}, nil
}

const (
	contentRoots = "main, article"
	textBlocks   = "h1,h2,h3,h4,p,li,td"
)

func readHTML(path string) ([]domain.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return nil, err
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())

	sel := doc.Find(contentRoots).FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.ParentsFiltered(contentRoots).Length() == 0
	})
	if sel.Length() == 0 {
		sel = doc.Selection
	}
	var parts []string
	sel.Find(textBlocks).Each(func(_ int, s *goquery.Selection) {
		// a nested block is part of its outermost match's text
		if s.ParentsFiltered(textBlocks).Length() > 0 {
			return
		}
		if t := strings.TrimSpace(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	text := blankLines.ReplaceAllString(strings.Join(parts, "\n"), "\n\n")
	return []domain.Document{fileDocument(path, title, text)}, nil
}

// readXLSX returns one document per row of the first sheet; the header row names the columns.
func readXLSX(path string) ([]domain.Document, error) {
	x, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer x.Close()
	sheets := x.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	rows, err := x.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}
	return tableDocuments(path, rows), nil
}

func readCSV(path string) ([]domain.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	return tableDocuments(path, rows), nil
}

func tableDocuments(path string, rows [][]string) []domain.Document {
	if len(rows) < 2 {
		return nil
	}
	header := rows[0]
	var docs []domain.Document
	for i, row := range rows[1:] {
		fields := make(map[string]string, len(header))
		for c, name := range header {
			if c < len(row) {
				fields[name] = row[c]
			}
		}
		if doc, ok := rowDocument(path, i, fields); ok {
			docs = append(docs, doc)
		}
	}
	return docs
}

func readJSONL(path string) ([]domain.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var docs []domain.Document
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		raw := bytes.TrimSpace(sc.Bytes())
		line++
		if len(raw) == 0 {
			continue
		}
		var rec map[string]any
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		fields := make(map[string]string, len(rec))
		for k, v := range rec {
			switch t := v.(type) {
			case string:
				fields[k] = t
			case nil:
			default:
				b, _ := json.Marshal(t)
				fields[k] = string(b)
			}
		}
		if doc, ok := rowDocument(path, line-1, fields); ok {
			docs = append(docs, doc)
		}
	}
	return docs, sc.Err()
}
