package sms

import "strings"

// Command is a recognized SMS keyword from a sitter.
type Command int

const (
	CommandNone Command = iota
	CommandAccept
	CommandDecline
)

// ParseCommand matches the accept/decline grammar: case-insensitive,
// trimmed. YES/Y accept; NO/N/STOP decline. Anything else is a regular
// message.
func ParseCommand(body string) Command {
	switch strings.ToUpper(strings.TrimSpace(body)) {
	case "YES", "Y":
		return CommandAccept
	case "NO", "N", "STOP":
		return CommandDecline
	default:
		return CommandNone
	}
}
