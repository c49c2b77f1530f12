// Package matchmaker admits connections through the opening handshake, keeps
// them in a FIFO lobby and starts a session for every pair.
package matchmaker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/park285/cheese-arbiter/internal/obslog"
	"github.com/park285/cheese-arbiter/internal/registry"
	"github.com/park285/cheese-arbiter/internal/session"
	"github.com/park285/cheese-arbiter/internal/transport"
	"github.com/park285/cheese-arbiter/internal/wire"
	"go.uber.org/zap"
)

const DefaultHandshakeTimeout = 10 * time.Second

var ErrHandshake = errors.New("handshake mismatch")

type Options struct {
	HandshakeTimeout time.Duration
	Reasons          wire.Reasons
	Registry         registry.Store
	// OnResult, when set, is called after each session ends.
	OnResult func(id string, res session.Result)
}

type Manager struct {
	ctx  context.Context
	opts Options

	mu      sync.Mutex
	waiting []transport.Conn
	active  int

	wg sync.WaitGroup
}

// New returns a Manager whose sessions stop when ctx is cancelled.
func New(ctx context.Context, opts Options) *Manager {
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = DefaultHandshakeTimeout
	}
	return &Manager{ctx: ctx, opts: opts}
}

// Handle is a transport.Handler. It reads the handshake line and enqueues the
// connection on success; any failure closes it without a reply.
func (m *Manager) Handle(conn transport.Conn) {
	remote := conn.RemoteAddr()
	if err := conn.SetReadDeadline(time.Now().Add(m.opts.HandshakeTimeout)); err != nil {
		obslog.L().Debug("handshake_deadline_error", zap.String("remote", remote), zap.Error(err))
	}
	line, err := conn.ReadLine()
	if err == nil && strings.TrimSpace(line) != wire.HandshakeToken {
		err = ErrHandshake
	}
	if err != nil {
		obslog.L().Info("handshake_rejected", zap.String("remote", remote), zap.Error(err))
		_ = conn.Close()
		return
	}
	// sessions read without a deadline
	_ = conn.SetReadDeadline(time.Time{})
	obslog.L().Info("handshake_ok", zap.String("remote", remote))
	m.Enqueue(conn)
}

// Enqueue appends conn to the lobby. When two connections are waiting the
// older becomes White and a session starts in its own goroutine.
func (m *Manager) Enqueue(conn transport.Conn) {
	m.mu.Lock()
	if m.ctx.Err() != nil {
		m.mu.Unlock()
		_ = conn.Close()
		return
	}
	m.waiting = append(m.waiting, conn)
	if len(m.waiting) < 2 {
		m.mu.Unlock()
		obslog.L().Info("lobby_wait", zap.String("remote", conn.RemoteAddr()))
		return
	}
	white, black := m.waiting[0], m.waiting[1]
	m.waiting = append(m.waiting[:0], m.waiting[2:]...)
	m.active++
	m.wg.Add(1)
	m.mu.Unlock()

	s := session.New(white, black, session.Config{Reasons: m.opts.Reasons, Registry: m.opts.Registry})
	obslog.L().Info("lobby_pair",
		zap.String("session_id", s.ID()),
		zap.String("white", white.RemoteAddr()),
		zap.String("black", black.RemoteAddr()),
	)
	go m.run(s)
}

func (m *Manager) run(s *session.Session) {
	defer m.wg.Done()
	res := s.Run(m.ctx)
	m.mu.Lock()
	m.active--
	m.mu.Unlock()
	if m.opts.OnResult != nil {
		m.opts.OnResult(s.ID(), res)
	}
}

// Waiting reports how many handshaken connections are unpaired.
func (m *Manager) Waiting() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.waiting)
}

// Active reports how many sessions are running.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Shutdown closes every unpaired connection and waits for running sessions,
// which end once the Manager's context is cancelled.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	waiting := m.waiting
	m.waiting = nil
	m.mu.Unlock()
	for _, c := range waiting {
		_ = c.Close()
	}
	m.Wait()
}

// Wait blocks until every started session has returned.
func (m *Manager) Wait() { m.wg.Wait() }
