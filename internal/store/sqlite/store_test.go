package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/testsets/internal/core"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "testsets.db"))
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func field(col string, v any) core.Field { return core.Field{Column: col, Value: v} }

func upsert(t *testing.T, s *Store, kind core.Kind, fields ...core.Field) core.Persisted {
	t.Helper()
	p, err := s.Upsert(context.Background(), core.UpsertRequest{
		Table:          kind.Table(),
		Fields:         fields,
		ConflictTarget: kind.ConflictTarget(),
	})
	require.NoError(t, err)
	return p
}

func seedPart(t *testing.T, s *Store) int64 {
	t.Helper()
	form := upsert(t, s, core.KindTestForm, field("name", "Mock 1"))
	section := upsert(t, s, core.KindSection, field("test_id", form.ID), field("label", "Reading"))
	part := upsert(t, s, core.KindPart, field("section_id", section.ID), field("label", "Part 5"))
	return part.ID
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open("")
	assert.ErrorContains(t, err, "SQLITE_PATH")
}

func TestMigrate_Idempotent(t *testing.T) {
	s := openStore(t)
	require.NoError(t, s.Migrate(context.Background()))

	for _, k := range core.AllKinds() {
		n, err := s.Count(context.Background(), k.Table())
		require.NoError(t, err, k.Table())
		assert.Zero(t, n)
	}
}

func TestUpsert_AssignsIDs(t *testing.T) {
	s := openStore(t)

	a := upsert(t, s, core.KindTag, field("level1", "Grammar"))
	b := upsert(t, s, core.KindTag, field("level1", "Vocabulary"), field("level2", "Idioms"))

	assert.Equal(t, int64(1), a.ID)
	assert.Equal(t, int64(2), b.ID)
	assert.Equal(t, "Idioms", b.Fields["level2"])
}

func TestUpsert_FieldlessRowUsesDefaults(t *testing.T) {
	s := openStore(t)

	form := upsert(t, s, core.KindTestForm)
	assert.Equal(t, int64(1), form.ID)
	assert.Nil(t, form.Fields["name"])
}

func TestPipeline_FieldlessTestForm(t *testing.T) {
	s := openStore(t)
	doc := &core.Document{
		TestForms: []core.TestForm{{}},
		Sections:  []core.Section{{Label: "Reading"}},
	}

	res := core.NewPipeline(s).Run(context.Background(), doc)
	require.True(t, res.Succeeded(), res.Message)
	assert.Equal(t, 2, res.RowsUpserted)

	n, err := s.Count(context.Background(), "test_forms")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestUpsert_QuestionConflictUpdatesInPlace(t *testing.T) {
	s := openStore(t)
	partID := seedPart(t, s)

	first := upsert(t, s, core.KindQuestion,
		field("part_id", partID), field("number", 101), field("stem", "Old"))
	second := upsert(t, s, core.KindQuestion,
		field("part_id", partID), field("number", 101), field("stem", "New"))

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "New", second.Fields["stem"])

	n, err := s.Count(context.Background(), "questions")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestUpsert_ChoiceConflictOverwrites(t *testing.T) {
	s := openStore(t)
	partID := seedPart(t, s)
	q := upsert(t, s, core.KindQuestion, field("part_id", partID), field("number", 1))

	first := upsert(t, s, core.KindChoice,
		field("question_id", q.ID), field("label", "A"), field("content", "cat"), field("is_correct", false))
	second := upsert(t, s, core.KindChoice,
		field("question_id", q.ID), field("label", "A"), field("content", "dog"), field("is_correct", true))

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "dog", second.Fields["content"])
	assert.EqualValues(t, 1, second.Fields["is_correct"])
}

func TestUpsert_ExplicitIDUpdates(t *testing.T) {
	s := openStore(t)

	upsert(t, s, core.KindTestForm, field("id", int64(7)), field("name", "Draft"))
	p := upsert(t, s, core.KindTestForm, field("id", int64(7)), field("name", "Final"))

	assert.Equal(t, int64(7), p.ID)
	assert.Equal(t, "Final", p.Fields["name"])
	n, err := s.Count(context.Background(), "test_forms")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestUpsert_ForeignKeyEnforced(t *testing.T) {
	s := openStore(t)

	_, err := s.Upsert(context.Background(), core.UpsertRequest{
		Table:  "sections",
		Fields: []core.Field{field("test_id", int64(99)), field("label", "Orphan")},
	})
	require.Error(t, err)
	assert.False(t, core.IsTransient(err))
	assert.Equal(t, "DB003", core.MapError(&core.RemoteWriteError{Err: err}).Code)
}

func TestClassify_PassesThroughOtherErrors(t *testing.T) {
	err := errors.New("boom")
	assert.Same(t, err, classify(err))
	assert.False(t, core.IsTransient(classify(err)))
}
