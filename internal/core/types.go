package core

import (
	"context"
	"errors"
)

// Kind identifies one of the nine entity kinds of a test set.
type Kind int

const (
	KindTestForm Kind = iota
	KindSection
	KindPart
	KindPassageSet
	KindPassage
	KindQuestion
	KindChoice
	KindTag
	KindQuestionTag
)

// kindSpec describes how a kind is stored and what it references.
type kindSpec struct {
	name     string   // singular, for messages: "question"
	table    string   // table name: "questions"
	phase    Phase    // pipeline state while this kind is staged
	conflict []string // conflict target, nil for primary-key default
	deps     []Kind   // kinds this kind can reference
}

var kindSpecs = [...]kindSpec{
	KindTestForm: {name: "test_form", table: "test_forms", phase: PhaseForms},
	KindSection: {name: "section", table: "sections", phase: PhaseSections,
		deps: []Kind{KindTestForm}},
	KindPart: {name: "part", table: "parts", phase: PhaseParts,
		deps: []Kind{KindSection}},
	KindPassageSet: {name: "passage_set", table: "passage_sets", phase: PhasePassageSets,
		deps: []Kind{KindPart}},
	KindPassage: {name: "passage", table: "passages", phase: PhasePassages,
		deps: []Kind{KindPassageSet}},
	KindQuestion: {name: "question", table: "questions", phase: PhaseQuestions,
		conflict: []string{"part_id", "number"},
		deps:     []Kind{KindPart, KindPassageSet}},
	KindChoice: {name: "choice", table: "choices", phase: PhaseChoices,
		conflict: []string{"question_id", "label"},
		deps:     []Kind{KindQuestion}},
	KindTag: {name: "tag", table: "tags", phase: PhaseTags},
	KindQuestionTag: {name: "question_tag", table: "question_tags", phase: PhaseQuestionTags,
		deps: []Kind{KindQuestion, KindTag}},
}

// AllKinds returns every kind in declaration order.
func AllKinds() []Kind {
	kinds := make([]Kind, len(kindSpecs))
	for i := range kindSpecs {
		kinds[i] = Kind(i)
	}
	return kinds
}

func (k Kind) valid() bool { return k >= 0 && int(k) < len(kindSpecs) }

// String returns the singular name of the kind.
func (k Kind) String() string {
	if !k.valid() {
		return "unknown"
	}
	return kindSpecs[k].name
}

// Table returns the table the kind is persisted to.
func (k Kind) Table() string {
	if !k.valid() {
		return ""
	}
	return kindSpecs[k].table
}

// ConflictTarget returns the columns the store upserts on, or nil when the
// store's primary-key default applies.
func (k Kind) ConflictTarget() []string {
	if !k.valid() || kindSpecs[k].conflict == nil {
		return nil
	}
	return append([]string(nil), kindSpecs[k].conflict...)
}

// Dependencies returns the kinds k can reference.
func (k Kind) Dependencies() []Kind {
	if !k.valid() {
		return nil
	}
	return append([]Kind(nil), kindSpecs[k].deps...)
}

// Phase returns the pipeline state used while k is staged.
func (k Kind) Phase() Phase {
	if !k.valid() {
		return PhaseFailed
	}
	return kindSpecs[k].phase
}

// Phase is a state of the pipeline state machine.
type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhaseValidating   Phase = "validating"
	PhaseForms        Phase = "forms"
	PhaseSections     Phase = "sections"
	PhaseParts        Phase = "parts"
	PhasePassageSets  Phase = "passage_sets"
	PhasePassages     Phase = "passages"
	PhaseQuestions    Phase = "questions"
	PhaseChoices      Phase = "choices"
	PhaseTags         Phase = "tags"
	PhaseQuestionTags Phase = "question_tags"
	PhaseSuccess      Phase = "success"
	PhaseFailed       Phase = "failed"
)

// Progress is reported on every state transition of a pipeline run.
type Progress struct {
	Phase        Phase
	RowsUpserted int // rows committed so far
	StageRows    int // rows in the stage being entered, zero for non-stage phases
}

// ProgressCallback receives state transitions.
type ProgressCallback func(Progress)

// Field is one column value of a row sent to the store.
type Field struct {
	Column string
	Value  any
}

// UpsertRequest is a single-row write.
type UpsertRequest struct {
	Table          string
	Fields         []Field
	ConflictTarget []string // empty: insert, or update by "id" when present
}

// Value returns the value of column, if present.
func (r UpsertRequest) Value(column string) (any, bool) {
	for _, f := range r.Fields {
		if f.Column == column {
			return f.Value, true
		}
	}
	return nil, false
}

// Columns returns the column names in field order.
func (r UpsertRequest) Columns() []string {
	cols := make([]string, len(r.Fields))
	for i, f := range r.Fields {
		cols[i] = f.Column
	}
	return cols
}

// Persisted is the row returned by the store after an upsert.
type Persisted struct {
	ID     int64
	Fields map[string]any
}

// Store is the relational store the pipeline writes to.
//
// Upsert writes one row and returns it with its store-assigned id. Failures
// that are worth retrying must satisfy [IsTransient].
type Store interface {
	Upsert(ctx context.Context, req UpsertRequest) (Persisted, error)
}

// Connector obtains a configured store. A failure is reported to the caller
// as a [ConfigurationError] before any row is processed.
type Connector func(ctx context.Context) (Store, error)

// StaticConnector returns a Connector that always yields s.
func StaticConnector(s Store) Connector {
	return func(context.Context) (Store, error) { return s, nil }
}

// temporary is satisfied by errors that know whether a retry can help.
type temporary interface {
	Temporary() bool
}

// IsTransient reports whether err is a connectivity, timeout or busy class
// failure that a retry may clear. Context cancellation is never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var t temporary
	return errors.As(err, &t) && t.Temporary()
}

type transientError struct {
	err error
}

func (e *transientError) Error() string   { return e.err.Error() }
func (e *transientError) Unwrap() error   { return e.err }
func (e *transientError) Temporary() bool { return true }

// MarkTransient wraps err so that [IsTransient] reports true for it.
func MarkTransient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}
