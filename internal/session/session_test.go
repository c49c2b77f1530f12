package session

import (
	"context"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/park285/cheese-arbiter/internal/chess"
	"github.com/park285/cheese-arbiter/internal/registry"
	"github.com/park285/cheese-arbiter/internal/transport"
	"github.com/park285/cheese-arbiter/internal/wire"
)

const waitFor = 2 * time.Second

// fakeConn is an in-memory transport.Conn. Lines written by the session land
// in out; lines the test sends are read from in.
type fakeConn struct {
	addr      string
	in        chan string
	out       chan string
	closed    chan struct{}
	once      sync.Once
	panicOnWr bool
	failWr    atomic.Bool
}

func newFakeConn(addr string) *fakeConn {
	return &fakeConn{addr: addr, in: make(chan string, 16), out: make(chan string, 256), closed: make(chan struct{})}
}

func (c *fakeConn) ReadLine() (string, error) {
	select {
	case l, ok := <-c.in:
		if !ok {
			return "", io.EOF
		}
		return l, nil
	case <-c.closed:
		return "", transport.ErrClosed
	}
}

func (c *fakeConn) WriteLine(line string) error {
	if c.panicOnWr {
		panic("write exploded")
	}
	if c.failWr.Load() {
		return io.ErrClosedPipe
	}
	select {
	case <-c.closed:
		return transport.ErrClosed
	default:
	}
	c.out <- line
	return nil
}

func (c *fakeConn) SetReadDeadline(time.Time) error { return nil }
func (c *fakeConn) RemoteAddr() string              { return c.addr }
func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) send(line string) { c.in <- line }
func (c *fakeConn) hangup()          { close(c.in) }

func (c *fakeConn) next(t *testing.T) string {
	t.Helper()
	select {
	case l := <-c.out:
		return l
	case <-time.After(waitFor):
		t.Fatalf("%s: timed out waiting for a line", c.addr)
		return ""
	}
}

func (c *fakeConn) expect(t *testing.T, want string) {
	t.Helper()
	if got := c.next(t); got != want {
		t.Fatalf("%s: got %q want %q", c.addr, got, want)
	}
}

func (c *fakeConn) expectBoard(t *testing.T) *chess.Board {
	t.Helper()
	line := c.next(t)
	msg, err := wire.Decode(line)
	if err != nil || msg.Kind != wire.KindBoard {
		t.Fatalf("%s: expected BOARD, got %q (%v)", c.addr, line, err)
	}
	b, err := wire.DecodeBoard(msg.Payload)
	if err != nil {
		t.Fatalf("%s: decode board: %v", c.addr, err)
	}
	return b
}

func (c *fakeConn) expectClosed(t *testing.T) {
	t.Helper()
	select {
	case <-c.closed:
	case <-time.After(waitFor):
		t.Fatalf("%s: connection not closed", c.addr)
	}
}

func (c *fakeConn) expectSilent(t *testing.T) {
	t.Helper()
	select {
	case l := <-c.out:
		t.Fatalf("%s: unexpected line %q", c.addr, l)
	default:
	}
}

type harness struct {
	white, black *fakeConn
	sess         *Session
	store        registry.Store
	done         chan Result
	cancel       context.CancelFunc
}

func start(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		white: newFakeConn("white:1"),
		black: newFakeConn("black:2"),
		store: registry.NewMemoryStore(),
		done:  make(chan Result, 1),
	}
	h.sess = New(h.white, h.black, Config{Registry: h.store})
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	t.Cleanup(cancel)
	go func() { h.done <- h.sess.Run(ctx) }()
	return h
}

func (h *harness) result(t *testing.T) Result {
	t.Helper()
	select {
	case r := <-h.done:
		return r
	case <-time.After(waitFor):
		t.Fatalf("session did not finish")
		return Result{}
	}
}

// prompt consumes the BOARD/YOURTURN/WAIT triple that opens every turn.
func (h *harness) prompt(t *testing.T, mover chess.Color) *chess.Board {
	t.Helper()
	b := h.white.expectBoard(t)
	if got := h.black.expectBoard(t); !got.Equal(b) {
		t.Fatalf("players received different boards")
	}
	m, o := h.white, h.black
	if mover == chess.Black {
		m, o = o, m
	}
	m.expect(t, "YOURTURN")
	o.expect(t, "WAIT")
	return b
}

func (h *harness) opening(t *testing.T) {
	t.Helper()
	h.white.expect(t, "COLOR:White")
	h.black.expect(t, "COLOR:Black")
	b := h.prompt(t, chess.White)
	if !b.Equal(chess.NewBoard()) {
		t.Fatalf("first board is not the initial position:\n%s", b)
	}
}

func TestOpeningMoveAccepted(t *testing.T) {
	h := start(t)
	h.opening(t)

	h.white.send("e2 e4")
	b := h.prompt(t, chess.Black)
	if p, _ := b.Get(pos(t, "e4")); p != (chess.Piece{Color: chess.White, Type: chess.Pawn}) {
		t.Fatalf("e4 holds %+v", p)
	}
	if p, _ := b.Get(pos(t, "e2")); !p.IsEmpty() {
		t.Fatalf("e2 not vacated")
	}
}

func TestIllegalMoveRejectedOnlyToMover(t *testing.T) {
	h := start(t)
	h.opening(t)

	h.white.send("e2 e5")
	h.white.expect(t, "ERROR:Illegal move")
	h.black.expectSilent(t)

	// no re-prompt: the next line after a rejection belongs to the accepted move
	h.white.send("e2 e4")
	h.prompt(t, chess.Black)
}

func TestNotYourPieceAndBadFormat(t *testing.T) {
	h := start(t)
	h.opening(t)
	h.white.send("e2 e4")
	h.prompt(t, chess.Black)

	h.black.send("e4 e5")
	h.black.expect(t, "ERROR:Not your piece")
	h.black.send("e6 e5")
	h.black.expect(t, "ERROR:Not your piece")
	h.black.send("hello")
	h.black.expect(t, "ERROR:Invalid move format")
	h.black.send("e7 e5 e4")
	h.black.expect(t, "ERROR:Invalid move format")
	h.white.expectSilent(t)

	h.black.send("e7 e5")
	h.prompt(t, chess.White)
}

func TestMoverDisconnectForfeits(t *testing.T) {
	h := start(t)
	h.opening(t)

	h.white.hangup()
	h.black.expect(t, "WIN:Opponent disconnected")
	h.black.expectClosed(t)
	h.black.expectSilent(t)
	h.white.expectClosed(t)

	res := h.result(t)
	if res.Winner != chess.Black || res.Method != MethodDisconnect {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestWaitingPlayerDisconnectForfeits(t *testing.T) {
	h := start(t)
	h.opening(t)

	h.black.hangup()
	h.white.expect(t, "WIN:Opponent disconnected")
	h.white.expectClosed(t)
	h.white.expectSilent(t)

	if res := h.result(t); res.Winner != chess.White {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestEmptyLineIsDisconnect(t *testing.T) {
	h := start(t)
	h.opening(t)

	h.white.send("")
	h.black.expect(t, "WIN:Opponent disconnected")
	if res := h.result(t); res.Winner != chess.Black || res.Method != MethodDisconnect {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestFoolsMateEndsGame(t *testing.T) {
	h := start(t)
	h.opening(t)

	moves := []string{"f2 f3", "e7 e5", "g2 g4"}
	mover := chess.White
	for _, mv := range moves {
		h.player(mover).send(mv)
		mover = mover.Opponent()
		h.prompt(t, mover)
	}

	h.black.send("d8 h4")
	final := h.white.expectBoard(t)
	h.black.expectBoard(t)
	if p, _ := final.Get(pos(t, "h4")); p != (chess.Piece{Color: chess.Black, Type: chess.Queen}) {
		t.Fatalf("queen not on h4:\n%s", final)
	}
	h.white.expect(t, "WIN:Black")
	h.black.expect(t, "WIN:Black")
	h.white.expectClosed(t)
	h.black.expectClosed(t)

	res := h.result(t)
	if res.Winner != chess.Black || res.Method != MethodNoLegalMoves || res.Plies != 4 {
		t.Fatalf("unexpected result %+v", res)
	}

	meta, err := h.store.Load(context.Background(), h.sess.ID())
	if err != nil || meta == nil {
		t.Fatalf("registry entry missing: %v", err)
	}
	if meta.State != registry.StateFinished || meta.Winner != "Black" || meta.LastMove != "d8h4" {
		t.Fatalf("unexpected registry entry %+v", meta)
	}
	if !strings.Contains(meta.PGN, "1. f3 e5 2. g4 Qh4# 0-1") {
		t.Fatalf("unexpected PGN:\n%s", meta.PGN)
	}
}

func TestFinalResultReachesBothDespiteWriteFailure(t *testing.T) {
	h := start(t)
	h.opening(t)

	mover := chess.White
	for _, mv := range []string{"f2 f3", "e7 e5", "g2 g4"} {
		h.player(mover).send(mv)
		mover = mover.Opponent()
		h.prompt(t, mover)
	}

	h.white.failWr.Store(true)
	h.black.send("d8 h4")
	h.black.expectBoard(t)
	h.black.expect(t, "WIN:Black")
	h.black.expectClosed(t)

	res := h.result(t)
	if res.Winner != chess.Black || res.Method != MethodNoLegalMoves {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestMoveSentBeforeHangupIsPlayed(t *testing.T) {
	for i := 0; i < 20; i++ {
		white, black := newFakeConn("white:1"), newFakeConn("black:2")
		white.send("e2 e4")
		white.hangup()

		res := New(white, black, Config{}).Run(context.Background())
		if res.Plies != 1 || res.Moves[0] != "e2e4" {
			t.Fatalf("run %d: buffered move dropped: %+v", i, res)
		}
		if res.Winner != chess.Black || res.Method != MethodDisconnect {
			t.Fatalf("run %d: unexpected result %+v", i, res)
		}

		black.expect(t, "COLOR:Black")
		black.expectBoard(t)
		black.expect(t, "WAIT")
		b := black.expectBoard(t)
		if p, _ := b.Get(pos(t, "e4")); p != (chess.Piece{Color: chess.White, Type: chess.Pawn}) {
			t.Fatalf("run %d: e4 holds %+v", i, p)
		}
		black.expect(t, "YOURTURN")
		black.expect(t, "WIN:Opponent disconnected")
		black.expectSilent(t)
	}
}

func TestRegistryTracksActiveSession(t *testing.T) {
	h := start(t)
	h.opening(t)
	h.white.send("d2 d4")
	h.prompt(t, chess.Black)

	list, err := h.store.ListActive(context.Background())
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(list) != 1 || list[0].ID != h.sess.ID() || list[0].Plies != 1 || list[0].Turn != "Black" {
		t.Fatalf("unexpected active list %+v", list)
	}

	h.cancel()
	res := h.result(t)
	if res.Winner != chess.NoColor || res.Method != MethodShutdown {
		t.Fatalf("unexpected result %+v", res)
	}
	h.white.expectClosed(t)
	h.black.expectClosed(t)
	meta, _ := h.store.Load(context.Background(), h.sess.ID())
	if meta == nil || meta.State != registry.StateAborted {
		t.Fatalf("expected aborted entry, got %+v", meta)
	}
}

func TestPanicIsContained(t *testing.T) {
	white, black := newFakeConn("white:1"), newFakeConn("black:2")
	white.panicOnWr = true
	res := New(white, black, Config{}).Run(context.Background())
	if res.Method != MethodInternal {
		t.Fatalf("unexpected result %+v", res)
	}
	white.expectClosed(t)
	black.expectClosed(t)
}

func TestTurnAlternatesOverRandomGame(t *testing.T) {
	h := start(t)
	h.opening(t)

	board := chess.NewBoard()
	mover := chess.White
	for ply := 0; ply < 20; ply++ {
		legal := board.LegalMoves(mover)
		if len(legal) == 0 {
			t.Fatalf("unexpected terminal position at ply %d", ply)
		}
		m := legal[(ply*7)%len(legal)]
		board.Apply(m)
		h.player(mover).send(wire.FormatMove(m))
		mover = mover.Opponent()
		if board.HasNoLegalMoves(mover) {
			return
		}
		got := h.prompt(t, mover)
		if !got.Equal(board) {
			t.Fatalf("ply %d: board mismatch\n got:\n%s\nwant:\n%s", ply, got, board)
		}
	}
}

func (h *harness) player(c chess.Color) *fakeConn {
	if c == chess.White {
		return h.white
	}
	return h.black
}

func pos(t *testing.T, s string) chess.Position {
	t.Helper()
	p, err := chess.ParseSquare(s)
	if err != nil {
		t.Fatalf("ParseSquare(%q): %v", s, err)
	}
	return p
}
