package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolver_RecordAndResolve(t *testing.T) {
	r := NewResolver()
	r.Record(PartKey{Label: "Part 5"}, 3)
	r.Record(QuestionKey{PartID: 3, Number: 101}, 9)

	id, err := r.Resolve(PartKey{Label: "Part 5"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), id)

	id, err = r.Resolve(QuestionKey{PartID: 3, Number: 101})
	require.NoError(t, err)
	assert.Equal(t, int64(9), id)

	assert.Equal(t, 1, r.Len(KindPart))
	assert.Zero(t, r.Len(KindChoice))
}

func TestResolver_LastWriteWins(t *testing.T) {
	r := NewResolver()
	r.Record(SectionKey{Label: "Reading"}, 1)
	r.Record(SectionKey{Label: "Reading"}, 2)

	id, err := r.Resolve(SectionKey{Label: "Reading"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), id)
}

func TestResolver_KeysAreTyped(t *testing.T) {
	r := NewResolver()
	r.Record(SectionKey{Label: "X"}, 1)

	_, err := r.Resolve(PartKey{Label: "X"})
	var ref *UnresolvedReferenceError
	require.ErrorAs(t, err, &ref)
	assert.Equal(t, KindPart, ref.Parent)
	assert.Equal(t, PartKey{Label: "X"}, ref.Key)
}

func TestResolver_TagLevels(t *testing.T) {
	r := NewResolver()
	r.Record(TagKey{Level1: "Grammar"}, 1)
	r.Record(TagKey{Level1: "Grammar", Level2: "Tenses"}, 2)

	id, err := r.Resolve(TagKey{Level1: "Grammar", Level2: "Tenses"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), id)

	_, err = r.Resolve(TagKey{Level1: "Grammar", Level2: "Tenses", Level3: "Past"})
	assert.Error(t, err)
}
