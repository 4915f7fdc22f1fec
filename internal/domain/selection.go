package domain

import (
	"bytes"
	"encoding/json"
)

// SelectionKind tags the shape of a per-question answer.
type SelectionKind int

const (
	NoSelection SelectionKind = iota
	SingleSelection
	MultipleSelection
)

// Selection is what a submitter picked for one question.
type Selection struct {
	Kind SelectionKind
	IDs  []string
}

func None() Selection { return Selection{Kind: NoSelection} }

func Single(id string) Selection {
	return Selection{Kind: SingleSelection, IDs: []string{id}}
}

func Multiple(ids ...string) Selection {
	return Selection{Kind: MultipleSelection, IDs: append([]string(nil), ids...)}
}

// Set collapses the selection into a set of tokens. Duplicates merge.
func (s Selection) Set() map[string]struct{} {
	set := make(map[string]struct{}, len(s.IDs))
	if s.Kind == NoSelection {
		return set
	}
	for _, id := range s.IDs {
		set[id] = struct{}{}
	}
	return set
}

// UnmarshalJSON accepts null, a string or an array of strings. Anything
// else is treated as no selection rather than a decode failure.
func (s *Selection) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*s = None()
	if len(data) == 0 {
		return nil
	}
	switch data[0] {
	case '"':
		var id string
		if err := json.Unmarshal(data, &id); err == nil {
			*s = Single(id)
		}
	case '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil
		}
		ids := make([]string, 0, len(raw))
		for _, item := range raw {
			var id string
			if err := json.Unmarshal(item, &id); err == nil {
				ids = append(ids, id)
			}
		}
		*s = Multiple(ids...)
	}
	return nil
}

func (s Selection) MarshalJSON() ([]byte, error) {
	switch s.Kind {
	case SingleSelection:
		if len(s.IDs) == 1 {
			return json.Marshal(s.IDs[0])
		}
	case MultipleSelection:
		if s.IDs == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(s.IDs)
	}
	return []byte("null"), nil
}
