package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
)

// ReactionMember records one user's current reaction on an aggregate.
type ReactionMember struct {
	UserID    uint   `json:"user_id"`
	Reaction  string `json:"reaction"`
	Pseudonym string `json:"pseudonym"`
}

// ReactionMap maps a reaction key to the set of members currently holding
// that key. Keys with no members must not be present. Counts are always
// derived from member-set cardinality, never stored.
type ReactionMap map[string][]ReactionMember

// UserReactionIndex maps a user id to the single reaction key that user
// currently holds. It is a cache over ReactionMap membership and is
// re-derived whenever the two disagree.
type UserReactionIndex map[uint]string

// UnmarshalJSON tolerates historical schema drift: entries whose value is
// not a member list (booleans, numbers, bare counts) are coerced to an
// empty set and dropped rather than failing the whole aggregate load.
func (m *ReactionMap) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		// Whole field malformed: self-heal to empty.
		*m = ReactionMap{}
		return nil
	}
	out := make(ReactionMap, len(raw))
	for key, val := range raw {
		var members []ReactionMember
		if err := json.Unmarshal(val, &members); err != nil || len(members) == 0 {
			continue
		}
		out[key] = members
	}
	*m = out
	return nil
}

// Scan implements sql.Scanner so the map persists as a JSON column.
func (m *ReactionMap) Scan(src interface{}) error {
	return scanJSON(m, src)
}

// Value implements driver.Valuer.
func (m ReactionMap) Value() (driver.Value, error) {
	if m == nil {
		m = ReactionMap{}
	}
	return valueJSON(m)
}

// Scan implements sql.Scanner.
func (idx *UserReactionIndex) Scan(src interface{}) error {
	return scanJSON(idx, src)
}

// Value implements driver.Valuer.
func (idx UserReactionIndex) Value() (driver.Value, error) {
	if idx == nil {
		idx = UserReactionIndex{}
	}
	return valueJSON(idx)
}

// Counts derives the per-key member counts.
func (m ReactionMap) Counts() map[string]int {
	counts := make(map[string]int, len(m))
	for key, members := range m {
		if len(members) > 0 {
			counts[key] = len(members)
		}
	}
	return counts
}

// MemberPseudonyms returns the per-key pseudonym lists, used by fanout when
// the deployment opts into member-level broadcast payloads.
func (m ReactionMap) MemberPseudonyms() map[string][]string {
	out := make(map[string][]string, len(m))
	for key, members := range m {
		names := make([]string, 0, len(members))
		for _, mb := range members {
			names = append(names, mb.Pseudonym)
		}
		out[key] = names
	}
	return out
}

// removeMember drops userID from key's member set, evicting the key
// entirely when its set becomes empty.
func (m ReactionMap) removeMember(key string, userID uint) {
	members := m[key]
	kept := members[:0]
	for _, mb := range members {
		if mb.UserID != userID {
			kept = append(kept, mb)
		}
	}
	if len(kept) == 0 {
		delete(m, key)
	} else {
		m[key] = kept
	}
}

// applyReaction runs the reaction state transition on a reaction map and
// its user index. An empty key means explicit un-react; requesting the key
// the user already holds toggles it off. Returns the key the user holds
// after the transition, or "" when none.
func applyReaction(reactions ReactionMap, index UserReactionIndex, userID uint, pseudonym, key string) string {
	current, had := index[userID]
	if had {
		reactions.removeMember(current, userID)
		delete(index, userID)
	}
	if key != "" && key != current {
		reactions[key] = append(reactions[key], ReactionMember{
			UserID:    userID,
			Reaction:  key,
			Pseudonym: pseudonym,
		})
		index[userID] = key
		return key
	}
	return ""
}

// normalizeReactions repairs an aggregate's reaction state in place:
// member records are forced onto their containing key, users appearing
// under several keys keep only their first (by sorted key order), empty
// sets are evicted, and the user index is re-derived from membership.
func normalizeReactions(reactions ReactionMap, index UserReactionIndex) {
	keys := make([]string, 0, len(reactions))
	for key := range reactions {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	seen := make(map[uint]string, len(index))
	for _, key := range keys {
		members := reactions[key]
		kept := members[:0]
		for _, mb := range members {
			if _, dup := seen[mb.UserID]; dup {
				continue
			}
			mb.Reaction = key
			seen[mb.UserID] = key
			kept = append(kept, mb)
		}
		if len(kept) == 0 {
			delete(reactions, key)
		} else {
			reactions[key] = kept
		}
	}

	for uid := range index {
		delete(index, uid)
	}
	for uid, key := range seen {
		index[uid] = key
	}
}

func scanJSON(dest interface{}, src interface{}) error {
	switch s := src.(type) {
	case nil:
		return nil
	case []byte:
		if len(s) == 0 {
			return nil
		}
		return json.Unmarshal(s, dest)
	case string:
		if s == "" {
			return nil
		}
		return json.Unmarshal([]byte(s), dest)
	default:
		return fmt.Errorf("unsupported column type %T", src)
	}
}

func valueJSON(v interface{}) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
