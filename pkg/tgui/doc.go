// Package tgui holds the Telegram UI helpers shared by the notifier and the
// command handlers:
//   - inline keyboard builders
//   - callback data helpers ("scope:action:payload")
//   - HTML escaping and a small message builder
package tgui
