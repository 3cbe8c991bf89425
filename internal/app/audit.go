package app

import (
	"context"
	"time"

	"remindbot/internal/eventbus"
	"remindbot/internal/reminder"
	"remindbot/internal/storage"
	logx "remindbot/pkg/logx"
)

// auditEntry maps a bus event onto a storage row. Events without a
// reminder.Record payload are skipped.
func auditEntry(e eventbus.Event) (storage.Entry, bool) {
	r, ok := e.Data.(reminder.Record)
	if !ok {
		return storage.Entry{}, false
	}
	return storage.Entry{
		At:      e.Time,
		Type:    e.Type,
		Owner:   int64(r.Owner),
		TaskID:  r.TaskID,
		Text:    r.Text,
		Token:   r.Token,
		FireAt:  r.FireAt,
		Minutes: r.Minutes,
		Error:   r.Error,
	}, true
}

// auditLoop writes every reminder event to the store until ctx ends or the
// subscription closes. Events already buffered at shutdown are still written.
func (a *App) auditLoop(ctx context.Context, events <-chan eventbus.Event) {
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case e, ok := <-events:
					if !ok {
						return
					}
					a.writeAudit(context.Background(), e)
				default:
					return
				}
			}
		case e, ok := <-events:
			if !ok {
				return
			}
			a.writeAudit(ctx, e)
		}
	}
}

func (a *App) writeAudit(ctx context.Context, e eventbus.Event) {
	a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
	entry, ok := auditEntry(e)
	if !ok {
		return
	}
	wctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := a.store.Append(wctx, entry); err != nil {
		a.log.Warn("audit append failed", logx.String("type", e.Type), logx.Err(err))
	}
}
