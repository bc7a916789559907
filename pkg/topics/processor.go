package topics

import (
	"fmt"
	"strings"

	"github.com/wehubfusion/Severn/pkg/config"
	"github.com/wehubfusion/Severn/pkg/docs"
)

// Processor normalizes query text the same way documents are
// normalized so retrieval sees matching terms. Only the Query field is
// rewritten; Text keeps the unprocessed form.
type Processor struct {
	conf    config.TextProcessConfig
	stemmer docs.Stemmer
}

// NewProcessor builds the query processor from its configuration.
func NewProcessor(conf config.TextProcessConfig) (*Processor, error) {
	p := &Processor{conf: conf}
	if conf.Stem != "" {
		stemmer, err := docs.NewStemmer(conf.Stem)
		if err != nil {
			return nil, err
		}
		p.stemmer = stemmer
	}
	return p, nil
}

// Name identifies the task in logs and timing.
func (p *Processor) Name() string { return "queries" }

// Begin implements pipeline.Task.
func (p *Processor) Begin() error { return nil }

// End implements pipeline.Task.
func (p *Processor) End() error { return nil }

// Process normalizes one query.
func (p *Processor) Process(item interface{}) (interface{}, error) {
	query, ok := item.(*Query)
	if !ok {
		return nil, fmt.Errorf("query processor received %T", item)
	}
	text := docs.NormalizeText(query.Query)
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
	query.Query = text
	return query, nil
}
