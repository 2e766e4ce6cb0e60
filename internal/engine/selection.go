package engine

import (
	"slices"
	"sort"
)

// Selection is the set of currently selected object ids. A single selection
// enables resize handles; a multi-selection enables group move.
type Selection struct {
	ids map[string]struct{}
}

// NewSelection creates an empty selection.
func NewSelection() *Selection {
	return &Selection{ids: make(map[string]struct{})}
}

// Has reports membership.
func (s *Selection) Has(id string) bool {
	_, ok := s.ids[id]
	return ok
}

// Len returns the number of selected objects.
func (s *Selection) Len() int {
	return len(s.ids)
}

// Single returns the sole selected id, or false when the selection is not
// exactly one object.
func (s *Selection) Single() (string, bool) {
	if len(s.ids) != 1 {
		return "", false
	}
	for id := range s.ids {
		return id, true
	}
	return "", false
}

// IDs returns the selected ids in stable (sorted) order.
func (s *Selection) IDs() []string {
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Replace makes id the only selected object.
func (s *Selection) Replace(id string) {
	s.ids = map[string]struct{}{id: {}}
}

// ReplaceAll sets the selection to exactly the given ids.
func (s *Selection) ReplaceAll(ids []string) {
	s.ids = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
}

// Toggle flips membership of id (shift-click behavior).
func (s *Selection) Toggle(id string) {
	if s.Has(id) {
		delete(s.ids, id)
	} else {
		s.ids[id] = struct{}{}
	}
}

// Clear empties the selection.
func (s *Selection) Clear() {
	s.ids = make(map[string]struct{})
}

// Prune drops ids not present in the given live set.
func (s *Selection) Prune(live []string) {
	for id := range s.ids {
		if !slices.Contains(live, id) {
			delete(s.ids, id)
		}
	}
}
