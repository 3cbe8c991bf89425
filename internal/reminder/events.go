package reminder

import (
	"time"

	"remindbot/internal/eventbus"
	"remindbot/internal/todo"
)

// Event types published on the bus.
const (
	EventTaskAdded       = "task.added"
	EventTaskDeleted     = "task.deleted"
	EventScheduled       = "reminder.scheduled"
	EventFired           = "reminder.fired"
	EventCompleted       = "reminder.completed"
	EventDeferred        = "reminder.deferred"
	EventSnoozed         = "reminder.snoozed"
	EventExpired         = "reminder.expired"
	EventOrphaned        = "reminder.orphaned"
	EventDeliveryFailed  = "reminder.delivery_failed"
	EventCompleteMissing = "reminder.task_missing"
)

// Record is the payload of every event above.
type Record struct {
	Owner   todo.Owner `json:"owner"`
	TaskID  uint64     `json:"task_id,omitempty"`
	Text    string     `json:"text,omitempty"`
	Token   string     `json:"token,omitempty"`
	FireAt  time.Time  `json:"fire_at,omitzero"`
	Minutes int        `json:"minutes,omitempty"`
	Error   string     `json:"error,omitempty"`
}

func (e *Engine) publish(typ string, r Record) {
	e.bus.Publish(eventbus.Event{Type: typ, Time: e.now(), Data: r})
}
