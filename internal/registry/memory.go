package registry

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// memoryStore is the in-process registry used when no REDIS_URL is configured.
// Entries never expire.
type memoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*SessionMeta
}

func NewMemoryStore() Store {
	return &memoryStore{sessions: make(map[string]*SessionMeta)}
}

func (m *memoryStore) Save(ctx context.Context, meta *SessionMeta) error {
	if meta == nil || strings.TrimSpace(meta.ID) == "" {
		return ErrInvalidArgs
	}
	cp := *meta
	m.mu.Lock()
	m.sessions[cp.ID] = &cp
	m.mu.Unlock()
	return nil
}

func (m *memoryStore) Load(ctx context.Context, id string) (*SessionMeta, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[strings.TrimSpace(id)]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *memoryStore) ListActive(ctx context.Context) ([]*SessionMeta, error) {
	m.mu.RLock()
	out := make([]*SessionMeta, 0, len(m.sessions))
	for _, s := range m.sessions {
		if s.State != StateActive {
			continue
		}
		cp := *s
		out = append(out, &cp)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memoryStore) Close() error { return nil }
