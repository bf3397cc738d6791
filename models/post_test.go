package models

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPost() *Post {
	return NewPost(1, "Dana", "Gentle Robin412", "hello world", nil, false)
}

func TestApplyReactionAddAndIndex(t *testing.T) {
	p := newTestPost()

	got, err := p.ApplyReaction(7, "Quiet Ash101", "heart")
	require.NoError(t, err)
	assert.Equal(t, "heart", got)
	assert.Equal(t, map[string]int{"heart": 1}, p.ReactionCounts())
	assert.Equal(t, "heart", p.UserReaction(7))

	members := p.Reactions["heart"]
	require.Len(t, members, 1)
	assert.Equal(t, uint(7), members[0].UserID)
	assert.Equal(t, "Quiet Ash101", members[0].Pseudonym)
}

func TestApplyReactionToggleOff(t *testing.T) {
	p := newTestPost()

	_, err := p.ApplyReaction(7, "Quiet Ash101", "heart")
	require.NoError(t, err)
	got, err := p.ApplyReaction(7, "Quiet Ash101", "heart")
	require.NoError(t, err)

	assert.Equal(t, "", got)
	assert.Empty(t, p.ReactionCounts())
	assert.Equal(t, "", p.UserReaction(7))
	assert.NotContains(t, p.Reactions, "heart", "zero-count keys must be evicted")
}

func TestApplyReactionSwitch(t *testing.T) {
	p := newTestPost()

	_, err := p.ApplyReaction(7, "Quiet Ash101", "heart")
	require.NoError(t, err)
	got, err := p.ApplyReaction(7, "Quiet Ash101", "clap")
	require.NoError(t, err)

	assert.Equal(t, "clap", got)
	assert.Equal(t, map[string]int{"clap": 1}, p.ReactionCounts())
	assert.NotContains(t, p.Reactions, "heart")
	assert.Equal(t, "clap", p.UserReaction(7))
}

func TestApplyReactionExplicitUnreact(t *testing.T) {
	p := newTestPost()

	_, err := p.ApplyReaction(7, "Quiet Ash101", "heart")
	require.NoError(t, err)
	got, err := p.ApplyReaction(7, "Quiet Ash101", "")
	require.NoError(t, err)

	assert.Equal(t, "", got)
	assert.Empty(t, p.ReactionCounts())
}

func TestApplyReactionExclusivityAcrossSequence(t *testing.T) {
	p := newTestPost()
	keys := []string{"heart", "clap", "heart", "fire", "fire", "star"}

	for _, k := range keys {
		_, err := p.ApplyReaction(7, "Quiet Ash101", k)
		require.NoError(t, err)

		appearances := 0
		for _, members := range p.Reactions {
			for _, m := range members {
				if m.UserID == 7 {
					appearances++
				}
			}
		}
		assert.LessOrEqual(t, appearances, 1, "user must hold at most one reaction")
	}
	assert.Equal(t, "star", p.UserReaction(7))
}

func TestApplyReactionManyUsersDerivedCounts(t *testing.T) {
	p := newTestPost()

	for i := 1; i <= 5; i++ {
		_, err := p.ApplyReaction(uint(i), fmt.Sprintf("Reader%d", i), "heart")
		require.NoError(t, err)
	}
	_, err := p.ApplyReaction(6, "Reader6", "clap")
	require.NoError(t, err)

	counts := p.ReactionCounts()
	assert.Equal(t, 5, counts["heart"])
	assert.Equal(t, 1, counts["clap"])

	for key, members := range p.Reactions {
		assert.Equal(t, counts[key], len(members), "counts must derive from member sets")
	}
}

func TestApplyReactionKeyTooLong(t *testing.T) {
	p := newTestPost()
	long := make([]byte, 0, MaxReactionKeyLen+1)
	for i := 0; i <= MaxReactionKeyLen; i++ {
		long = append(long, 'x')
	}
	_, err := p.ApplyReaction(7, "Quiet Ash101", string(long))
	assert.ErrorIs(t, err, ErrBadReaction)
}

func TestNormalizeRebuildsIndexFromMembership(t *testing.T) {
	p := newTestPost()
	p.Reactions = ReactionMap{
		"heart": {{UserID: 7, Reaction: "heart", Pseudonym: "A"}},
		"clap":  {{UserID: 8, Reaction: "clap", Pseudonym: "B"}},
	}
	// Stale index: user 7 recorded under the wrong key, user 8 missing.
	p.UserReactions = UserReactionIndex{7: "clap"}

	p.Normalize()

	assert.Equal(t, "heart", p.UserReaction(7))
	assert.Equal(t, "clap", p.UserReaction(8))
}

func TestNormalizeResolvesDuplicateMembership(t *testing.T) {
	p := newTestPost()
	// User 7 illegally present under two keys after a partial write.
	p.Reactions = ReactionMap{
		"clap":  {{UserID: 7, Reaction: "clap", Pseudonym: "A"}},
		"heart": {{UserID: 7, Reaction: "heart", Pseudonym: "A"}},
	}
	p.UserReactions = UserReactionIndex{}

	p.Normalize()

	total := 0
	for _, members := range p.Reactions {
		total += len(members)
	}
	assert.Equal(t, 1, total)
	// Sorted key order makes the survivor deterministic.
	assert.Equal(t, "clap", p.UserReaction(7))
	assert.NotContains(t, p.Reactions, "heart")
}

func TestReactionMapScanCoercesCorruptedEntries(t *testing.T) {
	// Historical rows stored booleans or bare counts as map values; those
	// must load as empty sets instead of failing the aggregate.
	raw := `{"heart": true, "clap": 3, "fire": [{"user_id": 9, "reaction": "fire", "pseudonym": "C"}], "junk": "x"}`

	var m ReactionMap
	require.NoError(t, m.Scan([]byte(raw)))

	assert.NotContains(t, m, "heart")
	assert.NotContains(t, m, "clap")
	assert.NotContains(t, m, "junk")
	require.Contains(t, m, "fire")
	assert.Equal(t, uint(9), m["fire"][0].UserID)
}

func TestReactionMapScanWhollyMalformed(t *testing.T) {
	var m ReactionMap
	require.NoError(t, m.Scan([]byte(`[1,2,3]`)))
	assert.Empty(t, m)
}

func TestMutationAfterCorruptedLoad(t *testing.T) {
	p := newTestPost()
	require.NoError(t, p.Reactions.Scan([]byte(`{"heart": false}`)))
	p.UserReactions = nil

	got, err := p.ApplyReaction(7, "Quiet Ash101", "heart")
	require.NoError(t, err)
	assert.Equal(t, "heart", got)
	assert.Equal(t, map[string]int{"heart": 1}, p.ReactionCounts())
}

func TestMarkReadWindow(t *testing.T) {
	p := newTestPost()

	for _, r := range []string{"Alice", "Bob", "Cara", "Dee", "Eve"} {
		p.MarkRead(r)
	}
	assert.Equal(t, ReadByList{"Bob", "Cara", "Dee", "Eve"}, p.ReadBy)

	// Re-marking an existing reader is a no-op.
	p.MarkRead("Cara")
	assert.Equal(t, ReadByList{"Bob", "Cara", "Dee", "Eve"}, p.ReadBy)
}

func TestAddCommentAppendOnly(t *testing.T) {
	p := newTestPost()

	first, err := p.AddComment(7, "Quiet Ash101", "hello", "")
	require.NoError(t, err)
	require.Len(t, p.Comments, 1)

	second, err := p.AddComment(8, "Warm Moss202", "hi back", first.ID)
	require.NoError(t, err)
	require.Len(t, p.Comments, 2)

	assert.Equal(t, first.ID, p.Comments[0].ID)
	assert.Equal(t, second.ID, p.Comments[1].ID)
	assert.Equal(t, first.ID, p.Comments[1].ParentID)
	assert.Equal(t, "hello", p.Comments[0].Text, "prior comments must not change")
	assert.NotEmpty(t, second.ID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Empty(t, second.Reactions)
}

func TestAddCommentValidation(t *testing.T) {
	p := newTestPost()

	_, err := p.AddComment(7, "Quiet Ash101", "   ", "")
	assert.ErrorIs(t, err, ErrEmptyText)

	long := make([]rune, MaxCommentTextLen+1)
	for i := range long {
		long[i] = '字'
	}
	_, err = p.AddComment(7, "Quiet Ash101", string(long), "")
	assert.ErrorIs(t, err, ErrTextTooLong)
}

func TestAddCommentRejectsCyclicParentChain(t *testing.T) {
	p := newTestPost()
	// Two comments forged into a parent cycle (only possible via external
	// writes, but the walk must not loop forever).
	p.Comments = CommentList{
		{ID: "a", ParentID: "b", Text: "x"},
		{ID: "b", ParentID: "a", Text: "y"},
	}

	_, err := p.AddComment(7, "Quiet Ash101", "reply", "a")
	assert.ErrorIs(t, err, ErrCyclicParent)
}

func TestAddCommentMissingParentAllowed(t *testing.T) {
	p := newTestPost()
	_, err := p.AddComment(7, "Quiet Ash101", "reply", "nonexistent")
	assert.NoError(t, err)
}

func TestCommentApplyReactionSharesInvariants(t *testing.T) {
	c := NewComment(7, "Quiet Ash101", "hello", "")

	assert.Equal(t, "heart", c.ApplyReaction(9, "Warm Moss202", "heart"))
	assert.Equal(t, "clap", c.ApplyReaction(9, "Warm Moss202", "clap"))
	assert.NotContains(t, c.Reactions, "heart")
	assert.Equal(t, "", c.ApplyReaction(9, "Warm Moss202", "clap"))
	assert.Empty(t, c.Reactions.Counts())
}

func TestAggregateColumnsRoundTrip(t *testing.T) {
	p := newTestPost()
	_, err := p.ApplyReaction(7, "Quiet Ash101", "heart")
	require.NoError(t, err)
	_, err = p.AddComment(8, "Warm Moss202", "hi", "")
	require.NoError(t, err)
	p.MarkRead("Quiet Ash101")

	val, err := p.Reactions.Value()
	require.NoError(t, err)
	var loaded ReactionMap
	require.NoError(t, loaded.Scan(val))
	assert.Equal(t, p.Reactions.Counts(), loaded.Counts())

	cval, err := p.Comments.Value()
	require.NoError(t, err)
	var comments CommentList
	require.NoError(t, comments.Scan(cval))
	require.Len(t, comments, 1)
	assert.Equal(t, "hi", comments[0].Text)
}

func TestMemberPseudonyms(t *testing.T) {
	p := newTestPost()
	_, _ = p.ApplyReaction(1, "Reader1", "heart")
	_, _ = p.ApplyReaction(2, "Reader2", "heart")

	names := p.Reactions.MemberPseudonyms()
	require.Contains(t, names, "heart")
	assert.ElementsMatch(t, []string{"Reader1", "Reader2"}, names["heart"])
}

func TestNormalizeDeduplicatesReadBy(t *testing.T) {
	p := newTestPost()
	p.ReadBy = ReadByList{"Alice", "Bob", "Alice", "Cara"}

	p.Normalize()

	assert.Equal(t, ReadByList{"Alice", "Bob", "Cara"}, p.ReadBy)
}

func TestNormalizeCapsOversizedReadBy(t *testing.T) {
	p := newTestPost()
	p.ReadBy = ReadByList{"A", "B", "A", "C", "D", "E", "F"}

	p.Normalize()

	assert.Equal(t, ReadByList{"C", "D", "E", "F"}, p.ReadBy)
}

func TestAnonymousPostUsesPseudonym(t *testing.T) {
	p := NewPost(1, "Dana", "Gentle Robin412", "hi", nil, true)
	assert.Equal(t, "Gentle Robin412", p.AuthorName)

	b, err := json.Marshal(p)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, "Gentle Robin412", out["author"])
	assert.NotContains(t, out, "UserID")
}
