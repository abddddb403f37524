package runtime

import (
	"fmt"
	"slices"
	"sync"

	"github.com/aretw0/detent/pkg/domain"
)

// stack owns the parent/child tables for live sheets.
// It only deals in IDs, so it never takes a node lock.
type stack struct {
	mu       sync.Mutex
	order    []string // presentation order, oldest first
	parent   map[string]string
	children map[string][]string
	closing  map[string]bool
}

func newStack() *stack {
	return &stack{
		parent:   make(map[string]string),
		children: make(map[string][]string),
		closing:  make(map[string]bool),
	}
}

// attach records id as presented on top of the topmost live sheet that is
// not itself dismissing. It returns the chosen parent ("" for a root).
func (s *stack) attach(id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if slices.Contains(s.order, id) {
		return s.parent[id], nil
	}

	parent := ""
	for i := len(s.order) - 1; i >= 0; i-- {
		if !s.closing[s.order[i]] {
			parent = s.order[i]
			break
		}
	}

	seen := make(map[string]bool)
	for p := parent; p != ""; p = s.parent[p] {
		if p == id {
			return "", fmt.Errorf("%w: %s is an ancestor of itself", domain.ErrCyclicPresentation, id)
		}
		if seen[p] {
			return "", fmt.Errorf("%w: %s is its own ancestor", domain.ErrCyclicPresentation, p)
		}
		seen[p] = true
	}

	s.order = append(s.order, id)
	if parent != "" {
		s.parent[id] = parent
		s.children[parent] = append(s.children[parent], id)
	}
	return parent, nil
}

// detach forgets id. Its children become roots.
func (s *stack) detach(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.order = slices.DeleteFunc(s.order, func(v string) bool { return v == id })

	if p, ok := s.parent[id]; ok {
		s.children[p] = slices.DeleteFunc(s.children[p], func(v string) bool { return v == id })
		if len(s.children[p]) == 0 {
			delete(s.children, p)
		}
		delete(s.parent, id)
	}
	for _, c := range s.children[id] {
		delete(s.parent, c)
	}
	delete(s.children, id)
	delete(s.closing, id)
}

// descendants returns every transitive child of id, most recently presented first.
func (s *stack) descendants(id string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.descendantsLocked(id)
}

func (s *stack) descendantsLocked(id string) []string {
	var out []string
	seen := map[string]bool{id: true}
	queue := slices.Clone(s.children[id])
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
		queue = append(queue, s.children[c]...)
	}

	pos := make(map[string]int, len(s.order))
	for i, v := range s.order {
		pos[v] = i
	}
	slices.SortFunc(out, func(a, b string) int { return pos[b] - pos[a] })
	return out
}

// beginClosing marks id as dismissing if it has no descendants left.
// Otherwise it returns them and leaves id open, so the caller can cascade and retry.
// Doing both under one lock keeps a late child from attaching to a closing parent.
func (s *stack) beginClosing(id string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if kids := s.descendantsLocked(id); len(kids) > 0 {
		return kids
	}
	s.closing[id] = true
	return nil
}

// reopen undoes beginClosing after a failed dismissal.
func (s *stack) reopen(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.closing, id)
}

func (s *stack) parentOf(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.parent[id]
}

func (s *stack) childrenOf(id string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.children[id])
}

// roots returns sheets with no parent, most recently presented first.
func (s *stack) roots() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []string
	for i := len(s.order) - 1; i >= 0; i-- {
		if _, ok := s.parent[s.order[i]]; !ok {
			out = append(out, s.order[i])
		}
	}
	return out
}

// topmost returns the most recently presented live sheet.
func (s *stack) topmost() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.order) == 0 {
		return ""
	}
	return s.order[len(s.order)-1]
}
