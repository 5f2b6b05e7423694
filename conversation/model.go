// ABOUTME: Conversation domain model: threads with session tokens and ordered messages.
// ABOUTME: Message content is raw text, a classified result, or an error payload, discriminated by role and fields.
package conversation

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/2389-research/kicksight/classify"
)

// titleLimit is the maximum rune length of an auto-derived thread title.
const titleLimit = 30

// defaultTitle is used until the first user message names the thread.
const defaultTitle = "New conversation"

// Role tags who a message belongs to and whether it is final.
type Role string

const (
	RoleUser       Role = "user"
	RoleAssistant  Role = "assistant"
	RoleInProgress Role = "in_progress"
)

// Message is one conversation entry. User messages carry Text; final
// assistant messages carry either Result or ErrText; in-progress messages are
// transient placeholders whose Progress mirrors the live reducer output.
type Message struct {
	ID        string
	Role      Role
	Text      string
	Result    *classify.Result
	ErrText   string
	Progress  []string // in-progress placeholder only, never persisted
	Icon      string   // in-progress placeholder only
	CreatedAt time.Time
}

// Thread is one conversation: an identity, a display title, the opaque
// backend session token (distinct from the thread id), and its messages.
type Thread struct {
	ID           string
	Title        string
	SessionToken string
	CreatedAt    time.Time
}

// NewID generates a ULID using crypto/rand entropy.
func NewID() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}

// DeriveTitle builds a thread title from the first user message, truncated to
// titleLimit runes with an ellipsis when longer.
func DeriveTitle(text string) string {
	runes := []rune(text)
	if len(runes) <= titleLimit {
		return text
	}
	return string(runes[:titleLimit]) + "..."
}
