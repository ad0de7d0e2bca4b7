/*
history.go - Versioned configuration with point-in-time lookup

PURPOSE:
  Configuration attached to an entity changes over time (an employee moves
  to another working schedule, a policy gets replaced). Past days must be
  evaluated against the value that was active THEN, not the current one.

  History keeps an ordered sequence of (effective day, value) versions and
  answers point-in-time questions by scanning it. No global state, no
  mutation during lookup.

ORDERING:
  Versions are kept in ascending EffectiveAt order. Versions sharing the
  same day keep their insertion order, so callers control tie-breaks by
  the order in which they Add.

LOOKUP:
  FirstAfter(day) returns the FIRST version whose effective day is strictly
  after day. For audit trails that record "before this date, the old value
  applied", that version carries the value that was in force on day.

EXAMPLE:
  h := generic.NewHistory[string]()
  h.Add(generic.NewTimePoint(2025, time.March, 1), "calendar-40h")
  h.Add(generic.NewTimePoint(2025, time.June, 1), "calendar-32h")

  v, ok := h.FirstAfter(generic.NewTimePoint(2025, time.April, 10))
  // ok == true, v.Value == "calendar-32h"

SEE ALSO:
  - attendance/resolver.go: Schedule resolution on top of History
*/
package generic

import "sort"

// Version is one value of a History together with the day it took effect.
type Version[T any] struct {
	EffectiveAt TimePoint
	Value       T
}

// History is an ordered sequence of versions. The zero value is empty and usable.
type History[T any] struct {
	versions []Version[T]
}

func NewHistory[T any]() *History[T] {
	return &History[T]{}
}

// Add inserts a version, keeping ascending order. A version dated the same
// day as existing ones is placed after them.
func (h *History[T]) Add(at TimePoint, value T) {
	i := sort.Search(len(h.versions), func(i int) bool {
		return h.versions[i].EffectiveAt.After(at)
	})

	h.versions = append(h.versions, Version[T]{})
	copy(h.versions[i+1:], h.versions[i:])
	h.versions[i] = Version[T]{EffectiveAt: at, Value: value}
}

// FirstAfter returns the earliest version effective strictly after day.
func (h *History[T]) FirstAfter(day TimePoint) (Version[T], bool) {
	if h == nil {
		return Version[T]{}, false
	}
	i := sort.Search(len(h.versions), func(i int) bool {
		return h.versions[i].EffectiveAt.After(day)
	})
	if i == len(h.versions) {
		return Version[T]{}, false
	}
	return h.versions[i], true
}

func (h *History[T]) Len() int {
	if h == nil {
		return 0
	}
	return len(h.versions)
}
