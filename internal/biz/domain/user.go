package domain

import (
	"strings"
	"time"
)

// Role is a user's privilege level.
type Role string

const (
	RoleMember Role = "member"
	RoleOwner  Role = "owner"
	RoleBot    Role = "bot"
)

// PipelineState is free-form moderation sub-state kept on a user record,
// keyed by pipeline name. Used for daily rolling counters.
type PipelineState struct {
	Date  string `json:"date"` // YYYY-MM-DD marker for daily windows
	Count int    `json:"count"`
}

// User is the durable record for one sender identity.
type User struct {
	ID           string                    `json:"id"`
	Name         string                    `json:"name"`
	Role         Role                      `json:"role"`
	Credits      int                       `json:"credits"`
	Interactions int64                     `json:"interactions"`
	CreatedAt    time.Time                 `json:"created_at"`
	LastSeen     time.Time                 `json:"last_seen"`
	Moderation   map[string]*PipelineState `json:"moderation,omitempty"`
}

// IsOwner reports whether the user holds the owner role.
func (u *User) IsOwner() bool { return u.Role == RoleOwner }

// RoleParams carries the configured identities consulted during role
// resolution.
type RoleParams struct {
	SuperOwner string
	OwnerIDs   []string
}

// ResolveRole applies the role precedence policy to an existing role:
//  1. exact super-owner match
//  2. trunk-prefix/country-code equivalence against the super owner
//  3. self-originated event -> bot
//  4. owner allow-list (never downgrades an existing owner)
//  5. otherwise unchanged
//
// Roles only ever move upward; a resolved owner is never demoted.
func ResolveRole(current Role, senderID string, fromSelf bool, p RoleParams) Role {
	if current == RoleOwner {
		return RoleOwner
	}
	if p.SuperOwner != "" {
		owner := digits(p.SuperOwner)
		incoming := digits(senderID)
		if owner != "" && (owner == incoming || trunkEquivalent(incoming, owner)) {
			return RoleOwner
		}
	}
	if fromSelf {
		return RoleBot
	}
	for _, id := range p.OwnerIDs {
		if id != "" && id == senderID {
			return RoleOwner
		}
	}
	return current
}

// trunkEquivalent reports whether two digit strings name the same number
// under leading trunk-prefix/country-code substitution: a number written
// with the "0" trunk digit is equivalent to the same number written with
// the "62" country calling code. Known limitation: the rule is specific to
// the Indonesian numbering plan; identities from other plans only match on
// exact equality.
func trunkEquivalent(a, b string) bool {
	if strings.HasPrefix(a, "62") && strings.HasPrefix(b, "0") && a[2:] == b[1:] {
		return true
	}
	if strings.HasPrefix(a, "0") && strings.HasPrefix(b, "62") && a[1:] == b[2:] {
		return true
	}
	return false
}

// digits strips every non-digit rune from an identity.
func digits(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
