package tgui

import "html"

// H is text already escaped for Telegram's HTML parse mode.
type H string

func (h H) String() string { return string(h) }

// Esc escapes text for Telegram's HTML parse mode.
func Esc(s string) H { return H(html.EscapeString(s)) }
