// Package collections provides small generic containers used by the widget
// registry.
package collections

// OrderedSet is a list of unique values that keeps insertion order and
// supports moving elements. The zero value is ready to use.
//
// OrderedSet is not safe for concurrent use.
type OrderedSet[T comparable] struct {
	items []T
	index map[T]int
}

// NewOrderedSet creates a set from values, dropping duplicates after their first occurrence
func NewOrderedSet[T comparable](values ...T) *OrderedSet[T] {
	s := &OrderedSet[T]{}
	for _, v := range values {
		s.Add(v)
	}
	return s
}

func (s *OrderedSet[T]) reindex(from int) {
	if s.index == nil {
		s.index = make(map[T]int, len(s.items))
	}
	for i := from; i < len(s.items); i++ {
		s.index[s.items[i]] = i
	}
}

// Add appends v if it is not already present. It reports whether v was added.
func (s *OrderedSet[T]) Add(v T) bool {
	if s.Contains(v) {
		return false
	}
	s.items = append(s.items, v)
	s.reindex(len(s.items) - 1)
	return true
}

// Remove deletes v. It reports whether v was present.
func (s *OrderedSet[T]) Remove(v T) bool {
	i, ok := s.index[v]
	if !ok {
		return false
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	delete(s.index, v)
	s.reindex(i)
	return true
}

// Toggle removes v when present and appends it otherwise.
// It returns true when v is present afterwards.
func (s *OrderedSet[T]) Toggle(v T) bool {
	if s.Remove(v) {
		return false
	}
	s.Add(v)
	return true
}

// Contains reports whether v is in the set
func (s *OrderedSet[T]) Contains(v T) bool {
	_, ok := s.index[v]
	return ok
}

// IndexOf returns the position of v, or -1
func (s *OrderedSet[T]) IndexOf(v T) int {
	if i, ok := s.index[v]; ok {
		return i
	}
	return -1
}

// Move shifts v by delta positions, clamped to the bounds of the set.
// It reports whether the position changed.
func (s *OrderedSet[T]) Move(v T, delta int) bool {
	i, ok := s.index[v]
	if !ok || delta == 0 {
		return false
	}
	j := i + delta
	if j < 0 {
		j = 0
	}
	if j > len(s.items)-1 {
		j = len(s.items) - 1
	}
	if j == i {
		return false
	}
	if j < i {
		copy(s.items[j+1:i+1], s.items[j:i])
		s.items[j] = v
		s.reindex(j)
	} else {
		copy(s.items[i:j], s.items[i+1:j+1])
		s.items[j] = v
		s.reindex(i)
	}
	return true
}

// MoveUp swaps v with its predecessor
func (s *OrderedSet[T]) MoveUp(v T) bool { return s.Move(v, -1) }

// MoveDown swaps v with its successor
func (s *OrderedSet[T]) MoveDown(v T) bool { return s.Move(v, 1) }

// Items returns a copy of the elements in order
func (s *OrderedSet[T]) Items() []T {
	out := make([]T, len(s.items))
	copy(out, s.items)
	return out
}

// Len returns the number of elements
func (s *OrderedSet[T]) Len() int {
	return len(s.items)
}

// Clear removes every element
func (s *OrderedSet[T]) Clear() {
	s.items = nil
	s.index = nil
}

// Clone returns an independent copy of s
func (s *OrderedSet[T]) Clone() *OrderedSet[T] {
	return NewOrderedSet(s.items...)
}
