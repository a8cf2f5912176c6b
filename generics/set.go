package generics

import "golang.org/x/exp/maps"

// Set is a map[T]struct{}-backed unique set of items. It is not safe for
// concurrent use; callers hold their own lock.
type Set[T comparable] map[T]struct{}

// NewSet returns a new Set with elements `es`.
func NewSet[T comparable](es ...T) Set[T] {
	s := make(Set[T], len(es))
	s.Add(es...)
	return s
}

// Add adds elements `es` to the Set.
func (s Set[T]) Add(es ...T) {
	for _, e := range es {
		s[e] = struct{}{}
	}
}

func (s Set[T]) Remove(es ...T) {
	for _, e := range es {
		delete(s, e)
	}
}

// TryAdd adds `e` and reports whether it was absent before.
func (s Set[T]) TryAdd(e T) bool {
	if _, ok := s[e]; ok {
		return false
	}
	s[e] = struct{}{}
	return true
}

// TryRemove removes `e` and reports whether it was present.
func (s Set[T]) TryRemove(e T) bool {
	if _, ok := s[e]; !ok {
		return false
	}
	delete(s, e)
	return true
}

// Contains returns true if the Set contains `e`.
func (s Set[T]) Contains(e T) bool {
	_, ok := s[e]
	return ok
}

func (s Set[T]) Len() int {
	return len(s)
}

// Members returns the unique elements of the Set in indeterminate order.
func (s Set[T]) Members() []T {
	return maps.Keys(s)
}
