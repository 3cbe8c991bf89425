package todo

import (
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// MaxTextLen caps task text (in runes) so a task always fits in one
// notification.
const MaxTextLen = 500

// Owner identifies the end user; every task is partitioned by it.
type Owner int64

// Task is a short text item. ID is unique per owner and never reused.
type Task struct {
	Owner     Owner
	ID        uint64
	Text      string
	CreatedAt time.Time
}

// Ref addresses a task either by its 1-based display position or by its
// stable id.
type Ref struct {
	pos int
	id  uint64
}

func ByPosition(n int) Ref { return Ref{pos: n} }
func ByID(id uint64) Ref   { return Ref{id: id} }

func (r Ref) String() string {
	if r.id != 0 {
		return fmt.Sprintf("id %d", r.id)
	}
	return fmt.Sprintf("#%d", r.pos)
}

type ownerTasks struct {
	mu     sync.Mutex
	nextID uint64
	tasks  []Task
}

// Store owns every owner's ordered task list.
//
// Mutations for one owner are serialized by that owner's mutex; the store
// mutex only guards the owner map.
type Store struct {
	mu     sync.Mutex
	owners map[Owner]*ownerTasks

	now func() time.Time
}

func NewStore() *Store {
	return &Store{owners: map[Owner]*ownerTasks{}, now: time.Now}
}

func (s *Store) owner(o Owner, create bool) *ownerTasks {
	s.mu.Lock()
	defer s.mu.Unlock()
	ot := s.owners[o]
	if ot == nil && create {
		ot = &ownerTasks{}
		s.owners[o] = ot
	}
	return ot
}

// Add appends a task and returns it with a freshly minted id.
func (s *Store) Add(o Owner, text string) (Task, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Task{}, fmt.Errorf("task text is empty: %w", ErrValidation)
	}
	if utf8.RuneCountInString(text) > MaxTextLen {
		return Task{}, fmt.Errorf("%d characters allowed: %w", MaxTextLen, ErrTooLong)
	}

	ot := s.owner(o, true)
	ot.mu.Lock()
	defer ot.mu.Unlock()
	ot.nextID++
	t := Task{Owner: o, ID: ot.nextID, Text: text, CreatedAt: s.now()}
	ot.tasks = append(ot.tasks, t)
	return t, nil
}

// List returns a copy of the owner's tasks in insertion order.
func (s *Store) List(o Owner) []Task {
	ot := s.owner(o, false)
	if ot == nil {
		return []Task{}
	}
	ot.mu.Lock()
	defer ot.mu.Unlock()
	return append([]Task{}, ot.tasks...)
}

// Count returns the number of tasks the owner has.
func (s *Store) Count(o Owner) int {
	ot := s.owner(o, false)
	if ot == nil {
		return 0
	}
	ot.mu.Lock()
	defer ot.mu.Unlock()
	return len(ot.tasks)
}

// At returns the task shown at 1-based display position n.
func (s *Store) At(o Owner, n int) (Task, error) {
	ot := s.owner(o, false)
	if ot == nil {
		return Task{}, fmt.Errorf("%s: %w", ByPosition(n), ErrNotFound)
	}
	ot.mu.Lock()
	defer ot.mu.Unlock()
	i := ot.indexLocked(ByPosition(n))
	if i < 0 {
		return Task{}, fmt.Errorf("%s: %w", ByPosition(n), ErrNotFound)
	}
	return ot.tasks[i], nil
}

// Delete removes the referenced task. The list is untouched when the
// reference does not resolve.
func (s *Store) Delete(o Owner, ref Ref) (Task, error) {
	ot := s.owner(o, false)
	if ot == nil {
		return Task{}, fmt.Errorf("%s: %w", ref, ErrNotFound)
	}
	ot.mu.Lock()
	defer ot.mu.Unlock()
	i := ot.indexLocked(ref)
	if i < 0 {
		return Task{}, fmt.Errorf("%s: %w", ref, ErrNotFound)
	}
	t := ot.tasks[i]
	ot.tasks = append(ot.tasks[:i], ot.tasks[i+1:]...)
	return t, nil
}

// Resolve looks a task up by stable id. A missing task is a normal outcome.
func (s *Store) Resolve(o Owner, id uint64) (Task, bool) {
	ot := s.owner(o, false)
	if ot == nil {
		return Task{}, false
	}
	ot.mu.Lock()
	defer ot.mu.Unlock()
	i := ot.indexLocked(ByID(id))
	if i < 0 {
		return Task{}, false
	}
	return ot.tasks[i], true
}

func (ot *ownerTasks) indexLocked(ref Ref) int {
	if ref.id != 0 {
		for i := range ot.tasks {
			if ot.tasks[i].ID == ref.id {
				return i
			}
		}
		return -1
	}
	if ref.pos < 1 || ref.pos > len(ot.tasks) {
		return -1
	}
	return ref.pos - 1
}
