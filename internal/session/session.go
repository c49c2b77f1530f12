// Package session referees one paired game: it owns the board and both player
// connections and runs the turn loop until a terminal position or a disconnect.
package session

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/park285/cheese-arbiter/internal/chess"
	"github.com/park285/cheese-arbiter/internal/obslog"
	"github.com/park285/cheese-arbiter/internal/record"
	"github.com/park285/cheese-arbiter/internal/registry"
	"github.com/park285/cheese-arbiter/internal/transport"
	"github.com/park285/cheese-arbiter/internal/wire"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Termination methods reported in Result.Method.
const (
	MethodNoLegalMoves = "no legal moves"
	MethodDisconnect   = "disconnect"
	MethodShutdown     = "shutdown"
	MethodInternal     = "internal error"
)

const registryTimeout = 2 * time.Second

// Config carries the optional collaborators of a session.
type Config struct {
	Reasons  wire.Reasons
	Registry registry.Store
}

// Result describes how a session ended. Winner is NoColor when nobody won.
type Result struct {
	Winner chess.Color
	Method string
	Plies  int
	Moves  []string
}

type player struct {
	color chess.Color
	conn  transport.Conn
	lines chan string
	gone  chan struct{}
	err   error // valid once gone is closed
}

type Session struct {
	id      string
	board   *chess.Board
	white   *player
	black   *player
	turn    chess.Color
	reasons wire.Reasons
	store   registry.Store
	moves   []string
	started time.Time
	log     *zap.Logger
	done    chan struct{}
}

// New pairs white and black into a session with the standard initial position.
func New(white, black transport.Conn, cfg Config) *Session {
	reasons := cfg.Reasons
	if reasons == (wire.Reasons{}) {
		reasons = wire.DefaultReasons()
	}
	id := uuid.NewString()
	return &Session{
		id:      id,
		board:   chess.NewBoard(),
		white:   newPlayer(chess.White, white),
		black:   newPlayer(chess.Black, black),
		turn:    chess.White,
		reasons: reasons,
		store:   cfg.Registry,
		started: time.Now(),
		log:     obslog.L().With(zap.String("session_id", id)),
		done:    make(chan struct{}),
	}
}

func newPlayer(c chess.Color, conn transport.Conn) *player {
	return &player{color: c, conn: conn, lines: make(chan string, 8), gone: make(chan struct{})}
}

func (s *Session) ID() string { return s.id }

func (s *Session) player(c chess.Color) *player {
	if c == chess.White {
		return s.white
	}
	return s.black
}

// Run drives the game to completion. Both connections are closed when it
// returns; a panic inside the loop is recovered and ends only this session.
func (s *Session) Run(ctx context.Context) (res Result) {
	defer s.teardown()
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("session_panic", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			res = s.result(chess.NoColor, MethodInternal)
			s.publish(registry.StateAborted, res)
		}
	}()

	s.log.Info("session_start",
		zap.String("white", s.white.conn.RemoteAddr()),
		zap.String("black", s.black.conn.RemoteAddr()),
	)
	s.publish(registry.StateActive, Result{})

	go s.pump(s.white)
	go s.pump(s.black)

	res = s.loop(ctx)

	state := registry.StateFinished
	if res.Winner == chess.NoColor {
		state = registry.StateAborted
	}
	s.publish(state, res)
	s.log.Info("session_end",
		zap.String("winner", res.Winner.String()),
		zap.String("method", res.Method),
		zap.Int("plies", res.Plies),
	)
	return res
}

func (s *Session) loop(ctx context.Context) Result {
	for _, p := range []*player{s.white, s.black} {
		if err := p.conn.WriteLine(wire.ColorMessage(p.color).Encode()); err != nil {
			return s.forfeit(p, err)
		}
	}

	for {
		mover, other := s.player(s.turn), s.player(s.turn.Opponent())
		if loser, err := s.broadcast(wire.BoardMessage(s.board)); err != nil {
			return s.forfeit(loser, err)
		}
		if err := mover.conn.WriteLine(wire.YourTurn().Encode()); err != nil {
			return s.forfeit(mover, err)
		}
		if err := other.conn.WriteLine(wire.Wait().Encode()); err != nil {
			return s.forfeit(other, err)
		}

		res, done := s.awaitMove(ctx, mover, other)
		if done {
			return res
		}
	}
}

// awaitMove reads lines from mover until one is accepted. It reports done when
// the game ended while waiting.
func (s *Session) awaitMove(ctx context.Context, mover, other *player) (Result, bool) {
	for {
		var line string
		select {
		case line = <-mover.lines:
		case <-mover.gone:
			// lines read before the stream failed are still played
			select {
			case line = <-mover.lines:
			default:
				return s.forfeit(mover, mover.err), true
			}
		case <-other.gone:
			return s.forfeit(other, other.err), true
		case <-ctx.Done():
			s.log.Info("session_shutdown")
			return s.result(chess.NoColor, MethodShutdown), true
		}

		if strings.TrimSpace(line) == "" {
			return s.forfeit(mover, fmt.Errorf("empty line")), true
		}

		reason, ok := s.tryMove(mover, line)
		if !ok {
			s.log.Debug("move_rejected", zap.String("color", mover.color.String()), zap.String("line", line), zap.String("reason", reason))
			if err := mover.conn.WriteLine(wire.ErrorMessage(reason).Encode()); err != nil {
				return s.forfeit(mover, err), true
			}
			continue
		}

		// turn has passed; a side without legal moves loses to the previous mover
		if s.board.HasNoLegalMoves(s.turn) {
			s.announce(mover.color)
			return s.result(mover.color, MethodNoLegalMoves), true
		}
		s.publish(registry.StateActive, Result{})
		return Result{}, false
	}
}

// tryMove validates and applies one move line. On rejection it returns the
// ERROR reason and leaves the board and turn untouched.
func (s *Session) tryMove(mover *player, line string) (string, bool) {
	m, err := wire.ParseMove(line)
	if err != nil {
		return s.reasons.BadFormat, false
	}
	piece, ok := s.board.Get(m.From)
	if !ok || piece.Color != mover.color {
		return s.reasons.NotYourPiece, false
	}
	if !chess.IsLegal(m, s.board, piece) {
		return s.reasons.IllegalMove, false
	}
	s.board.Apply(m)
	s.moves = append(s.moves, m.UCI())
	s.turn = s.turn.Opponent()
	s.log.Info("move",
		zap.String("color", mover.color.String()),
		zap.String("move", m.UCI()),
		zap.Int("ply", len(s.moves)),
	)
	return "", true
}

// forfeit ends the game because loser's stream failed; the remaining player is
// told once and wins.
func (s *Session) forfeit(loser *player, cause error) Result {
	winner := s.player(loser.color.Opponent())
	s.log.Info("player_disconnected", zap.String("color", loser.color.String()), zap.Error(cause))
	if err := winner.conn.WriteLine(wire.WinMessage(s.reasons.OpponentDisconnected).Encode()); err != nil {
		s.log.Debug("win_notice_failed", zap.Error(err))
	}
	return s.result(winner.color, MethodDisconnect)
}

// announce sends the final board and WIN line to each player independently; a
// failed write to one player does not hide the result from the other.
func (s *Session) announce(winner chess.Color) {
	board := wire.BoardMessage(s.board).Encode()
	win := wire.WinMessage(winner.String()).Encode()
	for _, p := range []*player{s.white, s.black} {
		err := p.conn.WriteLine(board)
		if err == nil {
			err = p.conn.WriteLine(win)
		}
		if err != nil {
			s.log.Debug("win_notice_failed", zap.String("color", p.color.String()), zap.Error(err))
		}
	}
}

// broadcast writes msg to White then Black and returns the first player whose
// write failed.
func (s *Session) broadcast(msg wire.Message) (*player, error) {
	line := msg.Encode()
	for _, p := range []*player{s.white, s.black} {
		if err := p.conn.WriteLine(line); err != nil {
			return p, err
		}
	}
	return nil, nil
}

func (s *Session) pump(p *player) {
	for {
		line, err := p.conn.ReadLine()
		if err != nil {
			p.err = err
			close(p.gone)
			return
		}
		select {
		case p.lines <- line:
		case <-s.done:
			return
		}
	}
}

func (s *Session) result(winner chess.Color, method string) Result {
	return Result{
		Winner: winner,
		Method: method,
		Plies:  len(s.moves),
		Moves:  append([]string(nil), s.moves...),
	}
}

func (s *Session) teardown() {
	close(s.done)
	if err := multierr.Append(s.white.conn.Close(), s.black.conn.Close()); err != nil {
		s.log.Debug("session_close_error", zap.Error(err))
	}
}

// publish mirrors the session into the registry. Failures are logged only.
func (s *Session) publish(state registry.State, res Result) {
	if s.store == nil {
		return
	}
	meta := &registry.SessionMeta{
		ID:          s.id,
		State:       state,
		WhiteRemote: s.white.conn.RemoteAddr(),
		BlackRemote: s.black.conn.RemoteAddr(),
		Turn:        s.turn.String(),
		Plies:       len(s.moves),
		CreatedAt:   s.started,
		UpdatedAt:   time.Now(),
	}
	if n := len(s.moves); n > 0 {
		meta.LastMove = s.moves[n-1]
	}
	if state != registry.StateActive {
		rec := s.Record(res)
		meta.Winner = winnerName(res.Winner)
		meta.Reason = res.Method
		meta.PGN = rec.PGN()
		s.log.Info("session_pgn", zap.String("pgn", meta.PGN))
	}

	ctx, cancel := context.WithTimeout(context.Background(), registryTimeout)
	defer cancel()
	if err := s.store.Save(ctx, meta); err != nil {
		s.log.Warn("registry_save_error", zap.String("state", string(state)), zap.Error(err))
	}
}

// Record builds the move history summary for res.
func (s *Session) Record(res Result) *record.Game {
	return &record.Game{
		ID:        s.id,
		White:     s.white.conn.RemoteAddr(),
		Black:     s.black.conn.RemoteAddr(),
		MovesUCI:  append([]string(nil), s.moves...),
		StartedAt: s.started,
		EndedAt:   time.Now(),
		Winner:    winnerName(res.Winner),
		Method:    res.Method,
	}
}

func winnerName(c chess.Color) string {
	if c == chess.NoColor {
		return ""
	}
	return c.String()
}
