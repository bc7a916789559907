package docs

import (
	"fmt"
	"strings"

	"github.com/wehubfusion/Severn/pkg/config"
	"github.com/wehubfusion/Severn/pkg/pipeline"
)

// Stemmer reduces tokens to their stems.
type Stemmer interface {
	Stem(token string) string
}

// truncatingStemmer is a language-independent stand-in used when no
// real stemmer is wired for a language.
type truncatingStemmer struct{ length int }

// Stem truncates by runes so multibyte tokens are never cut mid-rune.
func (s *truncatingStemmer) Stem(token string) string {
	runes := []rune(token)
	if len(runes) <= s.length {
		return token
	}
	return string(runes[:s.length])
}

// NewStemmer returns the stemmer registered under a name. The registry
// is closed; unknown names are errors.
func NewStemmer(name string) (Stemmer, error) {
	switch name {
	case "mock", "truncate":
		return &truncatingStemmer{length: 5}, nil
	}
	return nil, fmt.Errorf("unknown stemmer '%s'", name)
}

// Processor normalizes document text. Oversized documents are dropped
// with a per-item error so the run continues.
type Processor struct {
	conf    config.TextProcessConfig
	stemmer Stemmer
}

// NewProcessor builds the document processor from its configuration.
func NewProcessor(conf config.TextProcessConfig) (*Processor, error) {
	p := &Processor{conf: conf}
	if conf.Stem != "" {
		stemmer, err := NewStemmer(conf.Stem)
		if err != nil {
			return nil, err
		}
		p.stemmer = stemmer
	}
	return p, nil
}

// Name identifies the task in logs and timing.
func (p *Processor) Name() string { return "documents" }

// Begin implements pipeline.Task.
func (p *Processor) Begin() error { return nil }

// End implements pipeline.Task.
func (p *Processor) End() error { return nil }

// Process normalizes one document, preserving the original text for
// the document store.
func (p *Processor) Process(item interface{}) (interface{}, error) {
	doc, ok := item.(*Doc)
	if !ok {
		return nil, fmt.Errorf("documents processor received %T", item)
	}
	if p.conf.MaxLen > 0 && len(doc.Text) > p.conf.MaxLen {
		return nil, pipeline.NewProcessingError(doc.ID,
			fmt.Sprintf("document exceeds maximum length %d", p.conf.MaxLen), nil)
	}
	doc.OriginalText = doc.Text
	text := NormalizeText(doc.Text)
	if p.conf.Normalize.Lowercase {
		text = strings.ToLower(text)
	}
	if p.stemmer != nil {
		tokens := strings.Fields(text)
		for i, token := range tokens {
			tokens[i] = p.stemmer.Stem(token)
		}
		text = strings.Join(tokens, " ")
	}
	doc.Text = text
	return doc, nil
}
