package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Document is a submitted test set: nine ordered collections of rows.
type Document struct {
	TestForms    []TestForm    `json:"test_forms"`
	Sections     []Section     `json:"sections"`
	Parts        []Part        `json:"parts"`
	PassageSets  []PassageSet  `json:"passage_sets"`
	Passages     []Passage     `json:"passages"`
	Questions    []Question    `json:"questions"`
	Choices      []Choice      `json:"choices"`
	Tags         []Tag         `json:"tags"`
	QuestionTags []QuestionTag `json:"question_tags"`
}

// DecodeDocument reads a JSON test set. A leading UTF-8 BOM and unknown
// fields are ignored. Malformed JSON is reported as a *ValidationError.
func DecodeDocument(r io.Reader) (*Document, error) {
	cr := &countingReader{r: r}
	var doc Document
	if err := json.NewDecoder(skipBOM(cr)).Decode(&doc); err != nil {
		return nil, &ValidationError{Err: fmt.Errorf("decode document at byte %d: %w", decodeOffset(err, cr.n), err)}
	}
	return &doc, nil
}

// decodeOffset returns the input offset json reports for err. Errors without
// one, such as a truncated document, happen after everything read.
func decodeOffset(err error, read int64) int64 {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return syntaxErr.Offset
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return typeErr.Offset
	}
	return read
}

// Validate checks the only structural requirement of a document: the root
// test form must be present.
func Validate(doc *Document) error {
	if doc == nil || len(doc.TestForms) == 0 {
		return &ValidationError{Err: ErrMissingRoot}
	}
	return nil
}

// Entities returns the rows of kind in input order. A submission has a single
// test form, so only the first one is returned for KindTestForm.
func (d *Document) Entities(kind Kind) []Entity {
	if d == nil {
		return nil
	}
	switch kind {
	case KindTestForm:
		if len(d.TestForms) == 0 {
			return nil
		}
		return []Entity{d.TestForms[0]}
	case KindSection:
		return entities(d.Sections)
	case KindPart:
		return entities(d.Parts)
	case KindPassageSet:
		return entities(d.PassageSets)
	case KindPassage:
		return entities(d.Passages)
	case KindQuestion:
		return entities(d.Questions)
	case KindChoice:
		return entities(d.Choices)
	case KindTag:
		return entities(d.Tags)
	case KindQuestionTag:
		return entities(d.QuestionTags)
	}
	return nil
}

// RowCount returns the number of rows a full run would write.
func (d *Document) RowCount() int {
	n := 0
	for _, k := range AllKinds() {
		n += len(d.Entities(k))
	}
	return n
}

func entities[E Entity](rows []E) []Entity {
	out := make([]Entity, len(rows))
	for i, r := range rows {
		out[i] = r
	}
	return out
}
