package binser

import (
	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
)

// List is an ordered collection written with the LIST wire type.
type List[E any] struct {
	Items []E
}

// Queue is a first-in first-out collection written with the QUEUE wire type.
type Queue[E any] struct {
	Items []E
}

// Set is an insertion-ordered collection of distinct elements written with
// the SET wire type.
type Set[E comparable] struct {
	items []E
	index map[E]struct{}
}

var (
	_ Container = (*List[int])(nil)
	_ Container = (*Queue[int])(nil)
	_ Container = (*Set[int])(nil)
)

func NewList[E any](items ...E) *List[E] { return &List[E]{Items: items} }

func (l *List[E]) Len() int                { return len(l.Items) }
func (l *List[E]) Append(items ...E)       { l.Items = append(l.Items, items...) }
func (*List[E]) ContainerType() WireType   { return TypeList }
func (l *List[E]) Elements() any           { return l.Items }
func (l *List[E]) SetElements(elems any) error {
	items, err := elementsAs[E](elems)
	l.Items = items
	return err
}

func NewQueue[E any](items ...E) *Queue[E] { return &Queue[E]{Items: items} }

func (q *Queue[E]) Len() int      { return len(q.Items) }
func (q *Queue[E]) Push(items ...E) { q.Items = append(q.Items, items...) }

// Pop removes and returns the oldest element.
func (q *Queue[E]) Pop() (E, bool) {
	var zero E
	if len(q.Items) == 0 {
		return zero, false
	}
	head := q.Items[0]
	q.Items = q.Items[1:]
	return head, true
}

func (*Queue[E]) ContainerType() WireType { return TypeQueue }
func (q *Queue[E]) Elements() any         { return q.Items }
func (q *Queue[E]) SetElements(elems any) error {
	items, err := elementsAs[E](elems)
	q.Items = items
	return err
}

func NewSet[E comparable](items ...E) *Set[E] {
	s := &Set[E]{}
	s.Add(items...)
	return s
}

// Add inserts the elements not yet present.
func (s *Set[E]) Add(items ...E) {
	if s.index == nil {
		s.index = make(map[E]struct{}, len(items))
	}
	for _, it := range items {
		if _, ok := s.index[it]; ok {
			continue
		}
		s.index[it] = struct{}{}
		s.items = append(s.items, it)
	}
}

func (s *Set[E]) Contains(item E) bool {
	_, ok := s.index[item]
	return ok
}

func (s *Set[E]) Len() int { return len(s.items) }

// Values returns the elements in insertion order.
func (s *Set[E]) Values() []E { return s.items }

func (*Set[E]) ContainerType() WireType { return TypeSet }
func (s *Set[E]) Elements() any         { return s.items }
func (s *Set[E]) SetElements(elems any) error {
	items, err := elementsAs[E](elems)
	if err != nil {
		return err
	}
	s.items, s.index = nil, nil
	s.Add(lo.Uniq(items)...)
	return nil
}

func elementsAs[E any](elems any) ([]E, error) {
	if elems == nil {
		return nil, nil
	}
	items, ok := elems.([]E)
	if !ok {
		return nil, errors.Wrapf(ErrTypeMismatch, "elements %T, want []%T", elems, *new(E))
	}
	return items, nil
}
