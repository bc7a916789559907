package topics

import (
	"fmt"
	"strings"

	"github.com/wehubfusion/Severn/pkg/config"
)

// Extractor turns topics into queries using the configured topic
// fields. Topic id prefixes (such as "EN-") are stripped when
// configured.
type Extractor struct {
	fields string
	prefix string
}

// NewExtractor builds the topic to query task.
func NewExtractor(conf *config.TopicsConfig) *Extractor {
	return &Extractor{fields: conf.Fields, prefix: conf.Input.Prefix}
}

// Name identifies the task in logs and timing.
func (e *Extractor) Name() string { return "topics" }

// Begin implements pipeline.Task.
func (e *Extractor) Begin() error { return nil }

// End implements pipeline.Task.
func (e *Extractor) End() error { return nil }

// Process converts one topic into a query.
func (e *Extractor) Process(item interface{}) (interface{}, error) {
	topic, ok := item.(*Topic)
	if !ok {
		return nil, fmt.Errorf("topic extractor received %T", item)
	}
	var text string
	switch e.fields {
	case "", "title":
		text = topic.Title
	case "desc":
		text = topic.Desc
	case "title+desc":
		text = strings.TrimSpace(topic.Title + " " + topic.Desc)
	default:
		return nil, fmt.Errorf("unknown topic fields selection '%s'", e.fields)
	}
	id := topic.ID
	if e.prefix != "" {
		id = strings.TrimPrefix(id, e.prefix)
	}
	return &Query{
		ID:    id,
		Lang:  topic.Lang,
		Query: text,
		Text:  text,
	}, nil
}
