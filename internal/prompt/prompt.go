// Package prompt renders the query and retrieved passages into a single prompt.
package prompt

import (
	"fmt"
	"strings"
	"text/template"

	"ragqa/internal/domain"
)

const qaTemplate = `Answer the question using only the context below. If the context does not contain the answer, say you don't know.

Context:
{{range $i, $d := .Documents}}[{{inc $i}}] {{$d}}
{{end}}
Question: {{.Query}}
Answer:`

const seq2seqTemplate = `question: {{.Query}} context: {{join .Documents " "}}`

var builtins = map[string]string{
	"qa":      qaTemplate,
	"seq2seq": seq2seqTemplate,
}

var funcs = template.FuncMap{
	"inc":  func(i int) int { return i + 1 },
	"join": strings.Join,
}

// Data is what a template is executed with.
type Data struct {
	Query     string
	Documents []string
}

// Assembler renders a fixed template. Documents are inserted in retrieval
// order and never truncated.
type Assembler struct {
	name string
	tmpl *template.Template
}

// New returns the built-in template name ("qa" or "seq2seq"), or parses
// custom when it is non-empty.
func New(name, custom string) (*Assembler, error) {
	text := custom
	if custom == "" {
		if name == "" {
			name = "qa"
		}
		var ok bool
		if text, ok = builtins[name]; !ok {
			return nil, fmt.Errorf("%w: unknown prompt template %q", domain.ErrInvalidConfig, name)
		}
	} else {
		name = "custom"
	}
	tmpl, err := template.New(name).Funcs(funcs).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing prompt template: %v", domain.ErrInvalidConfig, err)
	}
	return &Assembler{name: name, tmpl: tmpl}, nil
}

// Name identifies the template in use.
func (a *Assembler) Name() string { return a.name }

// Assemble renders the prompt for query and documents.
func (a *Assembler) Assemble(query string, documents []string) (string, error) {
	var b strings.Builder
	if err := a.tmpl.Execute(&b, Data{Query: query, Documents: documents}); err != nil {
		return "", fmt.Errorf("rendering prompt: %w", err)
	}
	return b.String(), nil
}
