package core

import "fmt"

// NaturalKey is a comparable business key that identifies a row before its
// surrogate id is known. Implementations are plain structs so they can be
// used directly as map keys.
type NaturalKey interface {
	Kind() Kind
	String() string
}

// FormKey identifies the single test form of a submission.
type FormKey struct{}

// SectionKey identifies a section by label.
type SectionKey struct {
	Label string
}

// PartKey identifies a part by label.
type PartKey struct {
	Label string
}

// PassageSetKey identifies a passage set within a part.
type PassageSetKey struct {
	PartID  int64
	OrderNo int
}

// PassageKey identifies a passage within a passage set.
type PassageKey struct {
	PassageSetID int64
	OrderNo      int
}

// QuestionKey identifies a question within a part. It is the question
// idempotency key.
type QuestionKey struct {
	PartID int64
	Number int
}

// ChoiceKey identifies a choice within a question. It is the choice
// idempotency key.
type ChoiceKey struct {
	QuestionID int64
	Label      string
}

// TagKey identifies a tag by its three levels. Missing levels are empty.
type TagKey struct {
	Level1 string `json:"level1"`
	Level2 string `json:"level2,omitempty"`
	Level3 string `json:"level3,omitempty"`
}

// QuestionTagKey identifies a question/tag link.
type QuestionTagKey struct {
	QuestionID int64
	TagID      int64
}

func (FormKey) Kind() Kind        { return KindTestForm }
func (SectionKey) Kind() Kind     { return KindSection }
func (PartKey) Kind() Kind        { return KindPart }
func (PassageSetKey) Kind() Kind  { return KindPassageSet }
func (PassageKey) Kind() Kind     { return KindPassage }
func (QuestionKey) Kind() Kind    { return KindQuestion }
func (ChoiceKey) Kind() Kind      { return KindChoice }
func (TagKey) Kind() Kind         { return KindTag }
func (QuestionTagKey) Kind() Kind { return KindQuestionTag }

func (FormKey) String() string      { return "test_form" }
func (k SectionKey) String() string { return fmt.Sprintf("section %q", k.Label) }
func (k PartKey) String() string    { return fmt.Sprintf("part %q", k.Label) }
func (k PassageSetKey) String() string {
	return fmt.Sprintf("passage_set (part_id=%d, order_no=%d)", k.PartID, k.OrderNo)
}
func (k PassageKey) String() string {
	return fmt.Sprintf("passage (passage_set_id=%d, order_no=%d)", k.PassageSetID, k.OrderNo)
}
func (k QuestionKey) String() string {
	return fmt.Sprintf("question (part_id=%d, number=%d)", k.PartID, k.Number)
}
func (k ChoiceKey) String() string {
	return fmt.Sprintf("choice (question_id=%d, label=%q)", k.QuestionID, k.Label)
}
func (k TagKey) String() string {
	return fmt.Sprintf("tag (%q, %q, %q)", k.Level1, k.Level2, k.Level3)
}
func (k QuestionTagKey) String() string {
	return fmt.Sprintf("question_tag (question_id=%d, tag_id=%d)", k.QuestionID, k.TagID)
}

// Resolver maps natural keys to surrogate ids for one submission.
//
// It is owned by a single pipeline run and is not safe for concurrent use.
type Resolver struct {
	ids map[Kind]map[NaturalKey]int64
}

// NewResolver returns an empty resolver.
func NewResolver() *Resolver {
	return &Resolver{ids: make(map[Kind]map[NaturalKey]int64)}
}

// Record stores the id assigned to key. A later record for the same key
// replaces the earlier one.
func (r *Resolver) Record(key NaturalKey, id int64) {
	m, ok := r.ids[key.Kind()]
	if !ok {
		m = make(map[NaturalKey]int64)
		r.ids[key.Kind()] = m
	}
	m[key] = id
}

// Resolve returns the id recorded for key, or an *UnresolvedReferenceError.
func (r *Resolver) Resolve(key NaturalKey) (int64, error) {
	if id, ok := r.ids[key.Kind()][key]; ok {
		return id, nil
	}
	return 0, &UnresolvedReferenceError{Parent: key.Kind(), Key: key}
}

// Len returns the number of keys recorded for kind.
func (r *Resolver) Len(kind Kind) int {
	return len(r.ids[kind])
}
