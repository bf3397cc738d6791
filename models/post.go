package models

import (
	"database/sql/driver"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"
)

const (
	// MaxPostContentLen bounds post content length in runes.
	MaxPostContentLen = 500
	// MaxReactionKeyLen bounds the free-form reaction key.
	MaxReactionKeyLen = 64
	// ReadByLimit caps the read-receipt list to the most recent readers.
	ReadByLimit = 4
	// MaxPostMetaLen bounds the free-form type and mood labels.
	MaxPostMetaLen = 32
)

// Media is one attachment on a post: a retrievable URL plus its kind.
type Media struct {
	URL  string `json:"url"`
	Kind string `json:"kind"` // "image" or "video"
}

// MediaList persists as a JSON column.
type MediaList []Media

// ReadByList is the ordered set of reader pseudonyms, newest last.
type ReadByList []string

// Post is the aggregate root: reactions, comments, and read receipts are
// embedded and the whole row is read and written as one unit.
type Post struct {
	ID            uint              `gorm:"primaryKey" json:"id"`
	UserID        uint              `gorm:"index;not null" json:"-"`
	AuthorName    string            `gorm:"size:64" json:"author"`
	Pseudonym     string            `gorm:"size:64" json:"pseudonym"`
	Anonymous     bool              `json:"anonymous"`
	Content       string            `gorm:"size:500" json:"content"`
	Type          string            `gorm:"size:32" json:"type,omitempty"`
	Mood          string            `gorm:"size:32" json:"mood,omitempty"`
	Media         MediaList         `gorm:"type:text" json:"media"`
	Reactions     ReactionMap       `gorm:"type:text" json:"reactions"`
	UserReactions UserReactionIndex `gorm:"type:text" json:"-"`
	Comments      CommentList       `gorm:"type:text" json:"comments"`
	ReadBy        ReadByList        `gorm:"type:text" json:"read_by"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// NewPost builds a post with initialized aggregate state. The outward
// author name is the pseudonym when the post is anonymous.
func NewPost(userID uint, displayName, pseudonym, content string, media []Media, anonymous bool) *Post {
	author := displayName
	if anonymous || author == "" {
		author = pseudonym
	}
	return &Post{
		UserID:        userID,
		AuthorName:    author,
		Pseudonym:     pseudonym,
		Anonymous:     anonymous,
		Content:       content,
		Media:         media,
		Reactions:     ReactionMap{},
		UserReactions: UserReactionIndex{},
		Comments:      CommentList{},
		ReadBy:        ReadByList{},
	}
}

// BeforeCreate mirrors the timestamp discipline used on User.
func (p *Post) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	return nil
}

// BeforeUpdate refreshes UpdatedAt on every aggregate save.
func (p *Post) BeforeUpdate(tx *gorm.DB) error {
	p.UpdatedAt = time.Now()
	return nil
}

// Normalize repairs aggregate state loaded from storage: nil sub-structures
// become empty, malformed reaction entries have already been coerced away
// during scan, the user-reaction index is re-derived from membership so the
// one-reaction-per-user invariant holds before any mutation runs, and the
// read-by list is restored to a capped set.
func (p *Post) Normalize() {
	if p.Reactions == nil {
		p.Reactions = ReactionMap{}
	}
	if p.UserReactions == nil {
		p.UserReactions = UserReactionIndex{}
	}
	if p.Comments == nil {
		p.Comments = CommentList{}
	}
	if p.ReadBy == nil {
		p.ReadBy = ReadByList{}
	}
	normalizeReactions(p.Reactions, p.UserReactions)

	if len(p.ReadBy) > 1 {
		seen := make(map[string]bool, len(p.ReadBy))
		kept := p.ReadBy[:0]
		for _, r := range p.ReadBy {
			if seen[r] {
				continue
			}
			seen[r] = true
			kept = append(kept, r)
		}
		p.ReadBy = kept
	}
	if len(p.ReadBy) > ReadByLimit {
		p.ReadBy = p.ReadBy[len(p.ReadBy)-ReadByLimit:]
	}
}

// ApplyReaction applies, switches, or toggles off the caller's reaction.
// An empty key is an explicit un-react; reacting twice with the same key
// clears it. Returns the key held afterwards, or "" when none.
func (p *Post) ApplyReaction(userID uint, pseudonym, key string) (string, error) {
	key = strings.TrimSpace(key)
	if utf8.RuneCountInString(key) > MaxReactionKeyLen {
		return "", ErrBadReaction
	}
	p.Normalize()
	return applyReaction(p.Reactions, p.UserReactions, userID, pseudonym, key), nil
}

// ReactionCounts derives the canonical per-key counts view.
func (p *Post) ReactionCounts() map[string]int {
	return p.Reactions.Counts()
}

// UserReaction returns the key the given user currently holds, or "".
func (p *Post) UserReaction(userID uint) string {
	if p.UserReactions == nil {
		return ""
	}
	return p.UserReactions[userID]
}

// AddComment validates and appends a new comment. Comments are immutable
// once created; ordering is insertion order. The parent id is not required
// to exist, but a self-referencing or cyclic parent chain is rejected.
func (p *Post) AddComment(userID uint, pseudonym, text, parentID string) (*Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}
	if utf8.RuneCountInString(text) > MaxCommentTextLen {
		return nil, ErrTextTooLong
	}
	if parentID != "" {
		if err := p.checkParentChain(parentID); err != nil {
			return nil, err
		}
	}
	p.Normalize()
	comment := NewComment(userID, pseudonym, text, parentID)
	p.Comments = append(p.Comments, *comment)
	return comment, nil
}

// checkParentChain walks parent references from parentID and fails if the
// chain revisits a comment. A missing parent terminates the walk normally.
func (p *Post) checkParentChain(parentID string) error {
	byID := make(map[string]string, len(p.Comments))
	for _, c := range p.Comments {
		byID[c.ID] = c.ParentID
	}
	visited := map[string]bool{}
	for id := parentID; id != ""; {
		if visited[id] {
			return ErrCyclicParent
		}
		visited[id] = true
		next, ok := byID[id]
		if !ok {
			break
		}
		id = next
	}
	return nil
}

// MarkRead records a reader pseudonym. Re-marking an existing reader is a
// no-op; otherwise the pseudonym is appended and the list truncated from
// the front to the last ReadByLimit distinct entries.
func (p *Post) MarkRead(pseudonym string) ReadByList {
	for _, r := range p.ReadBy {
		if r == pseudonym {
			return p.ReadBy
		}
	}
	p.ReadBy = append(p.ReadBy, pseudonym)
	if len(p.ReadBy) > ReadByLimit {
		p.ReadBy = p.ReadBy[len(p.ReadBy)-ReadByLimit:]
	}
	return p.ReadBy
}

// Scan implements sql.Scanner.
func (l *MediaList) Scan(src interface{}) error { return scanJSON(l, src) }

// Value implements driver.Valuer.
func (l MediaList) Value() (driver.Value, error) {
	if l == nil {
		l = MediaList{}
	}
	return valueJSON(l)
}

// Scan implements sql.Scanner.
func (l *ReadByList) Scan(src interface{}) error { return scanJSON(l, src) }

// Value implements driver.Valuer.
func (l ReadByList) Value() (driver.Value, error) {
	if l == nil {
		l = ReadByList{}
	}
	return valueJSON(l)
}
