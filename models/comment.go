package models

import (
	"database/sql/driver"
	"time"

	"github.com/google/uuid"
)

// MaxCommentTextLen bounds comment text length in runes.
const MaxCommentTextLen = 300

// Comment is an immutable reply embedded in a post aggregate. A non-empty
// ParentID makes it a threaded reply. Comments carry their own reaction
// state with the same shape and invariants as the post's.
type Comment struct {
	ID            string            `json:"id"`
	UserID        uint              `json:"user_id"`
	Pseudonym     string            `json:"pseudonym"`
	Text          string            `json:"text"`
	ParentID      string            `json:"parent_id,omitempty"`
	Reactions     ReactionMap       `json:"reactions"`
	UserReactions UserReactionIndex `json:"user_reactions,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// CommentList persists as a JSON column inside the post row.
type CommentList []Comment

// NewComment assigns a fresh id, snapshots the pseudonym, and starts with
// an empty reaction map.
func NewComment(userID uint, pseudonym, text, parentID string) *Comment {
	return &Comment{
		ID:            uuid.NewString(),
		UserID:        userID,
		Pseudonym:     pseudonym,
		Text:          text,
		ParentID:      parentID,
		Reactions:     ReactionMap{},
		UserReactions: UserReactionIndex{},
		CreatedAt:     time.Now(),
	}
}

// ApplyReaction runs the shared reaction transition scoped to this comment.
func (c *Comment) ApplyReaction(userID uint, pseudonym, key string) string {
	if c.Reactions == nil {
		c.Reactions = ReactionMap{}
	}
	if c.UserReactions == nil {
		c.UserReactions = UserReactionIndex{}
	}
	normalizeReactions(c.Reactions, c.UserReactions)
	return applyReaction(c.Reactions, c.UserReactions, userID, pseudonym, key)
}

// Scan implements sql.Scanner.
func (l *CommentList) Scan(src interface{}) error { return scanJSON(l, src) }

// Value implements driver.Valuer.
func (l CommentList) Value() (driver.Value, error) {
	if l == nil {
		l = CommentList{}
	}
	return valueJSON(l)
}
