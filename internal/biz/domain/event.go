package domain

import (
	"strings"
	"time"
)

// DefaultCommandPrefixes are the characters that mark a message as a command.
const DefaultCommandPrefixes = ".!/#"

// Event is the canonical inbound envelope produced by the transport adapter.
// The core never looks at transport-level addressing beyond these fields; Raw
// carries the native payload untouched for plugins that need platform detail.
type Event struct {
	MsgID      string
	ChatID     string
	SenderID   string
	SenderName string
	IsGroup    bool
	FromSelf   bool
	Body       string
	MsgType    string // text, image, post, etc.
	ReplyToID  string // message ID this event replies to, if any
	CreateTime time.Time
	Raw        any
}

// Command is the parsed command form of a text event.
type Command struct {
	Name string
	Args []string
}

// ParseCommand classifies a message body against a prefix set. A body is a
// command iff, after trimming, its first rune is one of the prefix characters.
// The command name is the first whitespace-delimited token, case-folded; the
// remaining tokens are arguments.
func ParseCommand(body, prefixes string) (Command, bool) {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" || !strings.ContainsRune(prefixes, rune(trimmed[0])) {
		return Command{}, false
	}
	parts := strings.Fields(strings.TrimSpace(trimmed[1:]))
	if len(parts) == 0 {
		return Command{}, false
	}
	return Command{
		Name: strings.ToLower(parts[0]),
		Args: parts[1:],
	}, true
}
