// Package session holds per-conversation state: the chat history the
// host replays to the model and the briefing slots the tool reads and
// writes. Stores persist sessions; the Manager serializes access so a
// session handles one request at a time.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/scipunch/newsbrief/briefing"
)

// History roles. They match the model API's wire roles so history can
// be replayed directly.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Message is one turn of conversation history.
type Message struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Session is everything remembered about one conversation.
type Session struct {
	ID       string         `json:"id"`
	History  []Message      `json:"history,omitempty"`
	Briefing briefing.State `json:"briefing"`
}

// Clone returns a deep copy sharing nothing with the original.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := &Session{
		ID:       s.ID,
		Briefing: s.Briefing.Clone(),
	}
	if s.History != nil {
		c.History = append([]Message(nil), s.History...)
	}
	return c
}

// ErrNotFound is returned by Store.Get for unknown session IDs.
var ErrNotFound = errors.New("session not found")

// Stats describes a store's contents.
type Stats struct {
	Sessions int
	Oldest   time.Time
}

// Store persists sessions. Implementations must tolerate concurrent
// calls; callers own higher-level read-modify-write atomicity (see
// Manager).
type Store interface {
	// Get returns the session with the given ID, or ErrNotFound.
	Get(ctx context.Context, id string) (*Session, error)
	// Put stores the session, replacing any previous version.
	Put(ctx context.Context, s *Session) error
	// Clear removes all sessions.
	Clear(ctx context.Context) error
	// Stats reports how many sessions the store holds.
	Stats(ctx context.Context) (Stats, error)
	// Close releases store resources.
	Close() error
}
