// Package router turns Telegram updates into commands and button presses and
// runs their handlers on a bounded worker pool.
package router

import (
	"context"
	"strings"
	"time"

	"remindbot/internal/todo"
	kit "remindbot/internal/transport"
	logx "remindbot/pkg/logx"
)

// Route binds a command verb ("/add") to its handler.
type Route struct {
	Verb        string
	Aliases     []string
	Description string
	Usage       string
	Hidden      bool // left out of the Telegram command menu
	Timeout     time.Duration
	Handle      HandlerFunc
}

// CallbackRoute handles inline button presses whose data starts with
// "<Scope>:".
type CallbackRoute struct {
	Scope   string
	Timeout time.Duration
	Handle  HandlerFunc
}

// Command is a parsed text command.
type Command struct {
	Verb  string
	Owner todo.Owner
	Args  []string
	// Text is everything after the verb, whitespace preserved except at the
	// ends. /add uses it so task text keeps its inner spacing.
	Text string
}

// Request is passed to every handler. Exactly one of Command and Callback is
// set.
type Request struct {
	Owner    todo.Owner
	Chat     kit.ChatTarget
	Command  *Command
	Callback *kit.Callback
	ReqID    string
	Log      logx.Logger

	reply Replier
}

// Replier sends a plain reply. The notifier implements it so command replies
// share the outbound rate limit.
type Replier interface {
	Reply(ctx context.Context, chatID int64, text string) error
}

// NewRequest builds a request for owner writing in chat. The router fills in
// the command or callback.
func NewRequest(owner todo.Owner, chatID int64, reply Replier, log logx.Logger) *Request {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Request{Owner: owner, Chat: kit.ChatTarget{ChatID: chatID}, Log: log, reply: reply}
}

// Reply answers in the chat the request came from.
func (r *Request) Reply(ctx context.Context, text string) error {
	return r.reply.Reply(ctx, r.Chat.ChatID, text)
}

// MessageRef points at the message a button was pressed on.
func (r *Request) MessageRef() kit.MessageRef {
	if r.Callback == nil {
		return kit.MessageRef{}
	}
	return kit.MessageRef{ChatID: r.Callback.ChatID, MessageID: r.Callback.MessageID}
}

// ParseCommand splits "/verb@bot args..." into a Command. ok is false for
// text that is not a command.
func ParseCommand(owner todo.Owner, text string) (Command, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") || len(text) == 1 {
		return Command{}, false
	}
	head, rest, _ := strings.Cut(text[1:], " ")
	if i := strings.IndexAny(head, "\n\t"); i >= 0 {
		rest = head[i:] + " " + rest
		head = head[:i]
	}
	if i := strings.IndexByte(head, '@'); i >= 0 {
		head = head[:i]
	}
	verb := strings.ToLower(head)
	if verb == "" {
		return Command{}, false
	}
	rest = strings.TrimSpace(rest)
	return Command{Verb: verb, Owner: owner, Args: strings.Fields(rest), Text: rest}, true
}
