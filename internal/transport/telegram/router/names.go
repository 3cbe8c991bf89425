package router

import (
	"sync"

	"remindbot/internal/todo"
)

// Names remembers the first name each owner last wrote with. Reminders use it
// for the greeting.
type Names struct {
	mu sync.RWMutex
	m  map[todo.Owner]string
}

func NewNames() *Names { return &Names{m: map[todo.Owner]string{}} }

func (n *Names) Remember(owner todo.Owner, name string) {
	if name == "" {
		return
	}
	n.mu.Lock()
	n.m[owner] = name
	n.mu.Unlock()
}

func (n *Names) DisplayName(owner todo.Owner) string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.m[owner]
}
