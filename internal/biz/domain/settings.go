package domain

import "strconv"

// Settings is the process-wide configuration document. Values are read
// through immutable snapshots so a dispatch never observes a partial update.
type Settings struct {
	GroupMode    bool              `json:"groupMode"`
	PrivateMode  bool              `json:"privateMode"`
	SelfNotify   bool              `json:"selfNotify"`
	NotifyChatID string            `json:"notifyChatId,omitempty"`
	Extra        map[string]string `json:"extra,omitempty"`
}

// DefaultSettings returns the documented startup defaults.
func DefaultSettings() Settings {
	return Settings{
		GroupMode:   true,
		PrivateMode: true,
		SelfNotify:  true,
	}
}

// With returns a copy with one key updated. Unknown keys land in Extra so
// plugins can carry their own toggles. The second result is false when a
// boolean key receives an unparsable value.
func (s Settings) With(key, value string) (Settings, bool) {
	next := s
	if s.Extra != nil {
		next.Extra = make(map[string]string, len(s.Extra))
		for k, v := range s.Extra {
			next.Extra[k] = v
		}
	}
	switch key {
	case "groupMode", "privateMode", "selfNotify":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return s, false
		}
		switch key {
		case "groupMode":
			next.GroupMode = b
		case "privateMode":
			next.PrivateMode = b
		case "selfNotify":
			next.SelfNotify = b
		}
	case "notifyChatId":
		next.NotifyChatID = value
	default:
		if next.Extra == nil {
			next.Extra = make(map[string]string, 1)
		}
		next.Extra[key] = value
	}
	return next, true
}
