// Package registry indexes live sessions so operators can see who is playing.
// Entries expire; nothing here is used to resume a game.
package registry

import (
	"context"
	"time"
)

// State is the lifecycle of an indexed session.
type State string

const (
	StateActive   State = "ACTIVE"
	StateFinished State = "FINISHED"
	StateAborted  State = "ABORTED"
)

// SessionMeta is stored as JSON under sess:<id>.
type SessionMeta struct {
	ID    string `json:"id"`
	State State  `json:"state"`

	WhiteRemote string `json:"white_remote"`
	BlackRemote string `json:"black_remote"`

	Turn     string `json:"turn"`
	Plies    int    `json:"plies"`
	LastMove string `json:"last_move,omitempty"`

	Winner string `json:"winner,omitempty"`
	Reason string `json:"reason,omitempty"`
	PGN    string `json:"pgn,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store saves and lists session metadata.
type Store interface {
	// Save upserts meta and keeps the active index in step with meta.State.
	Save(ctx context.Context, meta *SessionMeta) error
	// Load returns nil, nil when the session is unknown or expired.
	Load(ctx context.Context, id string) (*SessionMeta, error)
	// ListActive returns active sessions, oldest first.
	ListActive(ctx context.Context) ([]*SessionMeta, error)
	Close() error
}

type staticErr string

func (e staticErr) Error() string { return string(e) }

var (
	ErrInvalidArgs = staticErr("invalid arguments")
)
