// Package pending tracks delivered reminder notifications until the user
// answers them.
//
// A token is minted before the notification is sent and is the only handle a
// button press carries. A token that is not in the registry is expired, no
// matter why it left.
package pending

import (
	"encoding/hex"
	"sync"
	"time"

	"github.com/google/uuid"

	"remindbot/internal/todo"
)

// TokenLen is the length of a rendered token.
const TokenLen = 32

type Token string

type Status int

const (
	Delivered Status = iota + 1
	AwaitingSnooze
	Resolved
)

func (s Status) String() string {
	switch s {
	case Delivered:
		return "delivered"
	case AwaitingSnooze:
		return "awaiting_snooze"
	case Resolved:
		return "resolved"
	default:
		return "unknown"
	}
}

// Notification is one outstanding reminder. TaskText is a display snapshot;
// the task is always looked up again by TaskID.
type Notification struct {
	Token     Token
	Owner     todo.Owner
	TaskID    uint64
	TaskText  string
	CreatedAt time.Time
	Status    Status
}

type Registry struct {
	mu      sync.Mutex
	entries map[Token]Notification

	now      func() time.Time
	newToken func() Token
}

func NewRegistry() *Registry {
	return &Registry{
		entries:  map[Token]Notification{},
		now:      time.Now,
		newToken: randomToken,
	}
}

func randomToken() Token {
	u := uuid.New()
	return Token(hex.EncodeToString(u[:]))
}

// ValidToken reports whether s has the shape of a token (32 lowercase hex
// characters). It says nothing about whether the token is still live.
func ValidToken(s string) bool {
	if len(s) != TokenLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// Create registers a freshly delivered notification and returns its token.
func (r *Registry) Create(owner todo.Owner, taskID uint64, text string) Token {
	r.mu.Lock()
	defer r.mu.Unlock()
	tok := r.newToken()
	for {
		if _, taken := r.entries[tok]; !taken {
			break
		}
		tok = r.newToken()
	}
	r.entries[tok] = Notification{
		Token:     tok,
		Owner:     owner,
		TaskID:    taskID,
		TaskText:  text,
		CreatedAt: r.now(),
		Status:    Delivered,
	}
	return tok
}

func (r *Registry) Resolve(tok Token) (Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.entries[tok]
	return n, ok
}

// Take removes the entry and returns it. Of several concurrent callers with
// the same token exactly one gets ok=true.
func (r *Registry) Take(tok Token) (Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.entries[tok]
	if ok {
		delete(r.entries, tok)
		n.Status = Resolved
	}
	return n, ok
}

// Remove drops the entry. Removing an absent token is a no-op.
func (r *Registry) Remove(tok Token) {
	r.mu.Lock()
	delete(r.entries, tok)
	r.mu.Unlock()
}

// SetStatus updates a live entry; it returns false when the token is absent.
func (r *Registry) SetStatus(tok Token, st Status) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.entries[tok]
	if !ok {
		return false
	}
	n.Status = st
	r.entries[tok] = n
	return true
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// CountFor returns the owner's outstanding notifications.
func (r *Registry) CountFor(owner todo.Owner) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.entries {
		if e.Owner == owner {
			n++
		}
	}
	return n
}

// Prune drops entries created more than maxAge before now and returns how
// many were removed. maxAge <= 0 disables pruning.
func (r *Registry) Prune(now time.Time, maxAge time.Duration) int {
	if maxAge <= 0 {
		return 0
	}
	cutoff := now.Add(-maxAge)
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for tok, e := range r.entries {
		if e.CreatedAt.Before(cutoff) {
			delete(r.entries, tok)
			n++
		}
	}
	return n
}
