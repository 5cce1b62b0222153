package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeDocument(t *testing.T) {
	doc, err := DecodeDocument(strings.NewReader(`{
		"test_forms": [{"name": "Mock"}],
		"questions": [{"part_label": "Part 5", "number": 101, "unknown": true}],
		"question_tags": [{"question_key": {"part_id": 4, "number": 101}, "tag_key": {"level1": "Grammar"}}],
		"extra_collection": []
	}`))
	require.NoError(t, err)

	require.Len(t, doc.TestForms, 1)
	assert.Equal(t, "Mock", *doc.TestForms[0].Name)
	assert.Equal(t, "Part 5", doc.Questions[0].PartLabel)
	require.NotNil(t, doc.QuestionTags[0].QuestionKey)
	assert.Equal(t, int64(4), *doc.QuestionTags[0].QuestionKey.PartID)
	assert.Equal(t, &TagKey{Level1: "Grammar"}, doc.QuestionTags[0].TagKey)
	assert.Equal(t, 3, doc.RowCount())
}

func TestDecodeDocument_Malformed(t *testing.T) {
	_, err := DecodeDocument(strings.NewReader(`{"test_forms": [`))
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.NotErrorIs(t, err, ErrMissingRoot)
	assert.Equal(t, "VAL002", MapError(err).Code)
}

func TestValidate(t *testing.T) {
	assert.ErrorIs(t, Validate(nil), ErrMissingRoot)
	assert.ErrorIs(t, Validate(&Document{}), ErrMissingRoot)
	assert.NoError(t, Validate(&Document{TestForms: []TestForm{{}}}))
}

func TestEntities_FirstFormOnly(t *testing.T) {
	a, b := "A", "B"
	doc := &Document{TestForms: []TestForm{{Name: &a}, {Name: &b}}}

	forms := doc.Entities(KindTestForm)
	require.Len(t, forms, 1)
	assert.Equal(t, &a, forms[0].(TestForm).Name)
	assert.Nil(t, (*Document)(nil).Entities(KindPart))
}

func fieldMap(fields []Field) map[string]any {
	m := make(map[string]any, len(fields))
	for _, f := range fields {
		m[f.Column] = f.Value
	}
	return m
}

func TestProject_StripsPlaceholders(t *testing.T) {
	r := NewResolver()
	r.Record(PartKey{Label: "Part 7"}, 5)
	r.Record(PassageSetKey{PartID: 5, OrderNo: 2}, 8)

	q := Question{
		PartLabel:     "Part 7",
		PassageSetKey: &PassageSetRef{PartLabel: "Part 7", OrderNo: 2},
		Number:        150,
	}
	proj, err := q.project(r)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"part_id":        int64(5),
		"passage_set_id": int64(8),
		"number":         150,
	}, fieldMap(proj.fields))
	assert.Equal(t, QuestionKey{PartID: 5, Number: 150}, proj.key)
}

func TestProject_ExplicitIDWins(t *testing.T) {
	id := int64(12)
	p := Part{SectionID: &id, SectionLabel: "ignored", Label: "Part 1"}

	proj, err := p.project(NewResolver())
	require.NoError(t, err)
	assert.Equal(t, int64(12), fieldMap(proj.fields)["section_id"])
}

func TestProject_SectionDefaultsToForm(t *testing.T) {
	r := NewResolver()
	_, err := Section{Label: "Reading"}.project(r)
	var ref *UnresolvedReferenceError
	require.ErrorAs(t, err, &ref)
	assert.Equal(t, KindTestForm, ref.Parent)

	r.Record(FormKey{}, 3)
	proj, err := Section{Label: "Reading"}.project(r)
	require.NoError(t, err)
	assert.Equal(t, int64(3), fieldMap(proj.fields)["test_id"])
}

func TestProject_TagOmitsEmptyLevels(t *testing.T) {
	proj, err := Tag{Level1: "Grammar"}.project(NewResolver())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"level1": "Grammar"}, fieldMap(proj.fields))
	assert.Equal(t, TagKey{Level1: "Grammar"}, proj.key)
}

func TestProject_QuestionTagNeedsTag(t *testing.T) {
	qid := int64(1)
	_, err := QuestionTag{QuestionID: &qid}.project(NewResolver())
	var ref *UnresolvedReferenceError
	require.ErrorAs(t, err, &ref)
	assert.Equal(t, KindTag, ref.Parent)
	assert.Nil(t, ref.Key)
}
