package models

import "errors"

// Engine-level failures. Controllers translate these into HTTP envelope
// codes; nothing below this package inspects error text.
var (
	ErrEmptyText    = errors.New("text cannot be empty")
	ErrTextTooLong  = errors.New("text exceeds maximum length")
	ErrBadReaction  = errors.New("reaction key is not valid")
	ErrCyclicParent = errors.New("comment parent chain is cyclic")
)
