package core

// model.go defines the nine entity kinds of a test set.
//
// Each entity can name its parent either by explicit id (section_id,
// part_id, ...) or by a natural-key reference (section_label, part_label,
// passage_set_key, ...). Before a row is written it is projected: parent
// references are resolved against ids assigned by earlier stages and a new
// field list is built with the foreign keys filled in. Entities themselves
// are never modified.

// Entity is a row of one of the nine kinds.
type Entity interface {
	Kind() Kind
	project(r *Resolver) (projection, error)
}

// projection is a row ready to be written plus the key its id is recorded under.
type projection struct {
	fields []Field
	key    NaturalKey
}

// PassageSetRef names a passage set by its part and order number.
// Exactly one of PartID or PartLabel identifies the part.
type PassageSetRef struct {
	PartID    *int64 `json:"part_id,omitempty"`
	PartLabel string `json:"part_label,omitempty"`
	OrderNo   int    `json:"order_no"`
}

// QuestionRef names a question by its part and number.
type QuestionRef struct {
	PartID    *int64 `json:"part_id,omitempty"`
	PartLabel string `json:"part_label,omitempty"`
	Number    int    `json:"number"`
}

type TestForm struct {
	ID   *int64  `json:"id,omitempty"`
	Name *string `json:"name,omitempty"`
}

type Section struct {
	ID      *int64 `json:"id,omitempty"`
	TestID  *int64 `json:"test_id,omitempty"`
	Label   string `json:"label"`
	OrderNo *int   `json:"order_no,omitempty"`
}

type Part struct {
	ID             *int64  `json:"id,omitempty"`
	SectionID      *int64  `json:"section_id,omitempty"`
	SectionLabel   string  `json:"section_label,omitempty"`
	Label          string  `json:"label"`
	QuestionFormat *string `json:"question_format,omitempty"`
	OrderNo        *int    `json:"order_no,omitempty"`
	Instructions   *string `json:"instructions,omitempty"`
}

type PassageSet struct {
	ID            *int64  `json:"id,omitempty"`
	PartID        *int64  `json:"part_id,omitempty"`
	PartLabel     string  `json:"part_label,omitempty"`
	OrderNo       int     `json:"order_no"`
	QuestionRange *string `json:"question_range,omitempty"`
}

type Passage struct {
	ID            *int64         `json:"id,omitempty"`
	PassageSetID  *int64         `json:"passage_set_id,omitempty"`
	PassageSetKey *PassageSetRef `json:"passage_set_key,omitempty"`
	OrderNo       int            `json:"order_no"`
	Body          *string        `json:"body,omitempty"`
	ImageURL      *string        `json:"image_url,omitempty"`
}

type Question struct {
	ID            *int64         `json:"id,omitempty"`
	PartID        *int64         `json:"part_id,omitempty"`
	PartLabel     string         `json:"part_label,omitempty"`
	PassageSetID  *int64         `json:"passage_set_id,omitempty"`
	PassageSetKey *PassageSetRef `json:"passage_set_key,omitempty"`
	Number        int            `json:"number"`
	Stem          *string        `json:"stem,omitempty"`
	Explanation   *string        `json:"explanation,omitempty"`
}

type Choice struct {
	ID          *int64       `json:"id,omitempty"`
	QuestionID  *int64       `json:"question_id,omitempty"`
	QuestionKey *QuestionRef `json:"question_key,omitempty"`
	Label       string       `json:"label"`
	Content     *string      `json:"content,omitempty"`
	IsCorrect   *bool        `json:"is_correct,omitempty"`
}

type Tag struct {
	ID     *int64 `json:"id,omitempty"`
	Level1 string `json:"level1"`
	Level2 string `json:"level2,omitempty"`
	Level3 string `json:"level3,omitempty"`
}

type QuestionTag struct {
	ID          *int64       `json:"id,omitempty"`
	QuestionID  *int64       `json:"question_id,omitempty"`
	QuestionKey *QuestionRef `json:"question_key,omitempty"`
	TagID       *int64       `json:"tag_id,omitempty"`
	TagKey      *TagKey      `json:"tag_key,omitempty"`
}

func (TestForm) Kind() Kind    { return KindTestForm }
func (Section) Kind() Kind     { return KindSection }
func (Part) Kind() Kind        { return KindPart }
func (PassageSet) Kind() Kind  { return KindPassageSet }
func (Passage) Kind() Kind     { return KindPassage }
func (Question) Kind() Kind    { return KindQuestion }
func (Choice) Kind() Kind      { return KindChoice }
func (Tag) Kind() Kind         { return KindTag }
func (QuestionTag) Kind() Kind { return KindQuestionTag }

// row accumulates fields, skipping absent optional values so that an update
// never overwrites a column the document did not mention.
type row []Field

func (r *row) set(column string, v any) {
	*r = append(*r, Field{Column: column, Value: v})
}

func setOpt[T any](r *row, column string, v *T) {
	if v != nil {
		r.set(column, *v)
	}
}

func (r *row) setNonEmpty(column, v string) {
	if v != "" {
		r.set(column, v)
	}
}

// resolvePart returns the part id named by an explicit id or a label.
func resolvePart(r *Resolver, id *int64, label string) (int64, error) {
	switch {
	case id != nil:
		return *id, nil
	case label != "":
		return r.Resolve(PartKey{Label: label})
	default:
		return 0, &UnresolvedReferenceError{Parent: KindPart}
	}
}

func (ref PassageSetRef) resolve(r *Resolver) (int64, error) {
	partID, err := resolvePart(r, ref.PartID, ref.PartLabel)
	if err != nil {
		return 0, err
	}
	return r.Resolve(PassageSetKey{PartID: partID, OrderNo: ref.OrderNo})
}

func (ref QuestionRef) resolve(r *Resolver) (int64, error) {
	partID, err := resolvePart(r, ref.PartID, ref.PartLabel)
	if err != nil {
		return 0, err
	}
	return r.Resolve(QuestionKey{PartID: partID, Number: ref.Number})
}

func resolveQuestion(r *Resolver, id *int64, ref *QuestionRef) (int64, error) {
	switch {
	case id != nil:
		return *id, nil
	case ref != nil:
		return ref.resolve(r)
	default:
		return 0, &UnresolvedReferenceError{Parent: KindQuestion}
	}
}

func (e TestForm) project(*Resolver) (projection, error) {
	var f row
	setOpt(&f, "id", e.ID)
	setOpt(&f, "name", e.Name)
	return projection{fields: f, key: FormKey{}}, nil
}

func (e Section) project(r *Resolver) (projection, error) {
	testID, err := r.Resolve(FormKey{})
	if e.TestID != nil {
		testID, err = *e.TestID, nil
	}
	if err != nil {
		return projection{}, err
	}

	var f row
	setOpt(&f, "id", e.ID)
	f.set("test_id", testID)
	f.set("label", e.Label)
	setOpt(&f, "order_no", e.OrderNo)
	return projection{fields: f, key: SectionKey{Label: e.Label}}, nil
}

func (e Part) project(r *Resolver) (projection, error) {
	var sectionID int64
	switch {
	case e.SectionID != nil:
		sectionID = *e.SectionID
	case e.SectionLabel != "":
		id, err := r.Resolve(SectionKey{Label: e.SectionLabel})
		if err != nil {
			return projection{}, err
		}
		sectionID = id
	default:
		return projection{}, &UnresolvedReferenceError{Parent: KindSection}
	}

	var f row
	setOpt(&f, "id", e.ID)
	f.set("section_id", sectionID)
	f.set("label", e.Label)
	setOpt(&f, "question_format", e.QuestionFormat)
	setOpt(&f, "order_no", e.OrderNo)
	setOpt(&f, "instructions", e.Instructions)
	return projection{fields: f, key: PartKey{Label: e.Label}}, nil
}

func (e PassageSet) project(r *Resolver) (projection, error) {
	partID, err := resolvePart(r, e.PartID, e.PartLabel)
	if err != nil {
		return projection{}, err
	}

	var f row
	setOpt(&f, "id", e.ID)
	f.set("part_id", partID)
	f.set("order_no", e.OrderNo)
	setOpt(&f, "question_range", e.QuestionRange)
	return projection{fields: f, key: PassageSetKey{PartID: partID, OrderNo: e.OrderNo}}, nil
}

func (e Passage) project(r *Resolver) (projection, error) {
	var setID int64
	switch {
	case e.PassageSetID != nil:
		setID = *e.PassageSetID
	case e.PassageSetKey != nil:
		id, err := e.PassageSetKey.resolve(r)
		if err != nil {
			return projection{}, err
		}
		setID = id
	default:
		return projection{}, &UnresolvedReferenceError{Parent: KindPassageSet}
	}

	var f row
	setOpt(&f, "id", e.ID)
	f.set("passage_set_id", setID)
	f.set("order_no", e.OrderNo)
	setOpt(&f, "body", e.Body)
	setOpt(&f, "image_url", e.ImageURL)
	return projection{fields: f, key: PassageKey{PassageSetID: setID, OrderNo: e.OrderNo}}, nil
}

func (e Question) project(r *Resolver) (projection, error) {
	partID, err := resolvePart(r, e.PartID, e.PartLabel)
	if err != nil {
		return projection{}, err
	}

	// The passage set is optional; a question without one is standalone.
	var setID *int64
	switch {
	case e.PassageSetID != nil:
		setID = e.PassageSetID
	case e.PassageSetKey != nil:
		id, err := e.PassageSetKey.resolve(r)
		if err != nil {
			return projection{}, err
		}
		setID = &id
	}

	var f row
	setOpt(&f, "id", e.ID)
	f.set("part_id", partID)
	setOpt(&f, "passage_set_id", setID)
	f.set("number", e.Number)
	setOpt(&f, "stem", e.Stem)
	setOpt(&f, "explanation", e.Explanation)
	return projection{fields: f, key: QuestionKey{PartID: partID, Number: e.Number}}, nil
}

func (e Choice) project(r *Resolver) (projection, error) {
	questionID, err := resolveQuestion(r, e.QuestionID, e.QuestionKey)
	if err != nil {
		return projection{}, err
	}

	var f row
	setOpt(&f, "id", e.ID)
	f.set("question_id", questionID)
	f.set("label", e.Label)
	setOpt(&f, "content", e.Content)
	setOpt(&f, "is_correct", e.IsCorrect)
	return projection{fields: f, key: ChoiceKey{QuestionID: questionID, Label: e.Label}}, nil
}

func (e Tag) project(*Resolver) (projection, error) {
	var f row
	setOpt(&f, "id", e.ID)
	f.set("level1", e.Level1)
	f.setNonEmpty("level2", e.Level2)
	f.setNonEmpty("level3", e.Level3)
	return projection{fields: f, key: TagKey{Level1: e.Level1, Level2: e.Level2, Level3: e.Level3}}, nil
}

func (e QuestionTag) project(r *Resolver) (projection, error) {
	questionID, err := resolveQuestion(r, e.QuestionID, e.QuestionKey)
	if err != nil {
		return projection{}, err
	}

	var tagID int64
	switch {
	case e.TagID != nil:
		tagID = *e.TagID
	case e.TagKey != nil:
		id, err := r.Resolve(*e.TagKey)
		if err != nil {
			return projection{}, err
		}
		tagID = id
	default:
		return projection{}, &UnresolvedReferenceError{Parent: KindTag}
	}

	var f row
	setOpt(&f, "id", e.ID)
	f.set("question_id", questionID)
	f.set("tag_id", tagID)
	return projection{fields: f, key: QuestionTagKey{QuestionID: questionID, TagID: tagID}}, nil
}
