package chess

import "strings"

// Board is the 64-slot game grid. It is owned by a single session goroutine and
// carries no locking.
type Board struct {
	squares [64]Piece
}

var backRank = [8]PieceType{Rook, Knight, Bishop, Queen, King, Bishop, Knight, Rook}

// NewBoard returns a board in the standard initial position.
func NewBoard() *Board {
	b := &Board{}
	for col, t := range backRank {
		b.Set(Position{Row: 0, Col: col}, Piece{Color: Black, Type: t})
		b.Set(Position{Row: 1, Col: col}, Piece{Color: Black, Type: Pawn})
		b.Set(Position{Row: 6, Col: col}, Piece{Color: White, Type: Pawn})
		b.Set(Position{Row: 7, Col: col}, Piece{Color: White, Type: t})
	}
	return b
}

// EmptyBoard returns a board with no pieces.
func EmptyBoard() *Board { return &Board{} }

// Get returns the occupant of pos and whether the slot is occupied.
func (b *Board) Get(pos Position) (Piece, bool) {
	p := b.squares[pos.index()]
	return p, !p.IsEmpty()
}

// Set places piece on pos. Setting NoPiece clears the slot.
func (b *Board) Set(pos Position, piece Piece) { b.squares[pos.index()] = piece }

// Clear empties pos.
func (b *Board) Clear(pos Position) { b.squares[pos.index()] = NoPiece }

// Squares returns a copy of the 64 slots in row-major order.
func (b *Board) Squares() [64]Piece { return b.squares }

// Clone returns an independent copy.
func (b *Board) Clone() *Board {
	c := *b
	return &c
}

// Equal reports whether both boards hold the same pieces on the same squares.
func (b *Board) Equal(other *Board) bool { return b.squares == other.squares }

// Apply moves the piece on m.From to m.To and clears the source. The destination
// occupant, if any, is captured. Pawns reaching the last rank stay pawns.
func (b *Board) Apply(m Move) {
	p := b.squares[m.From.index()]
	b.squares[m.To.index()] = p
	b.squares[m.From.index()] = NoPiece
}

// IsPathClear walks unit steps from `from` to `to`, both exclusive, and reports
// whether every intermediate slot is empty. Only defined for squares on a shared
// rank, file or diagonal.
func (b *Board) IsPathClear(from, to Position) bool {
	stepRow, stepCol := sign(to.Row-from.Row), sign(to.Col-from.Col)
	cur := Position{Row: from.Row + stepRow, Col: from.Col + stepCol}
	for cur != to {
		if !cur.Valid() {
			return false
		}
		if _, ok := b.Get(cur); ok {
			return false
		}
		cur = Position{Row: cur.Row + stepRow, Col: cur.Col + stepCol}
	}
	return true
}

// KingPosition locates the king of color.
func (b *Board) KingPosition(color Color) (Position, bool) {
	want := Piece{Color: color, Type: King}
	for i, p := range b.squares {
		if p == want {
			return Position{Row: i / 8, Col: i % 8}, true
		}
	}
	return Position{}, false
}

// IsInCheck reports whether any opposing piece can reach the king of color under
// its movement geometry. The attacker's own king safety is not considered.
func (b *Board) IsInCheck(color Color) bool {
	king, ok := b.KingPosition(color)
	if !ok {
		return false
	}
	enemy := color.Opponent()
	for i, p := range b.squares {
		if p.IsEmpty() || p.Color != enemy {
			continue
		}
		from := Position{Row: i / 8, Col: i % 8}
		if IsPseudoLegal(Move{From: from, To: king}, b, p) {
			return true
		}
	}
	return false
}

// WouldBeInCheckAfter applies m, checks piece's side for check and restores both
// touched squares before returning. The board is unchanged after the call.
func (b *Board) WouldBeInCheckAfter(piece Piece, m Move) bool {
	fromPrev := b.squares[m.From.index()]
	toPrev := b.squares[m.To.index()]
	defer func() {
		b.squares[m.From.index()] = fromPrev
		b.squares[m.To.index()] = toPrev
	}()

	b.squares[m.To.index()] = piece
	b.squares[m.From.index()] = NoPiece
	return b.IsInCheck(piece.Color)
}

// HasNoLegalMoves tries every piece of color against all 64 targets and reports
// whether none is legal. It does not distinguish checkmate from stalemate.
func (b *Board) HasNoLegalMoves(color Color) bool {
	found := false
	b.eachLegalMove(color, func(Move) bool {
		found = true
		return false
	})
	return !found
}

// LegalMoves enumerates every legal move for color in board order.
func (b *Board) LegalMoves(color Color) []Move {
	var out []Move
	b.eachLegalMove(color, func(m Move) bool {
		out = append(out, m)
		return true
	})
	return out
}

func (b *Board) eachLegalMove(color Color, fn func(Move) bool) {
	for i := 0; i < 64; i++ {
		p := b.squares[i]
		if p.IsEmpty() || p.Color != color {
			continue
		}
		from := Position{Row: i / 8, Col: i % 8}
		for j := 0; j < 64; j++ {
			m := Move{From: from, To: Position{Row: j / 8, Col: j % 8}}
			if !IsPseudoLegal(m, b, p) || b.WouldBeInCheckAfter(p, m) {
				continue
			}
			if !fn(m) {
				return
			}
		}
	}
}

// String draws the board from White's side, rank 8 first. Used in logs and tests.
func (b *Board) String() string {
	var sb strings.Builder
	for row := 0; row < 8; row++ {
		for col := 0; col < 8; col++ {
			p, ok := b.Get(Position{Row: row, Col: col})
			if !ok {
				sb.WriteByte('.')
				continue
			}
			sb.WriteByte(letter(p))
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func letter(p Piece) byte {
	var c byte
	switch p.Type {
	case Pawn:
		c = 'p'
	case Knight:
		c = 'n'
	case Bishop:
		c = 'b'
	case Rook:
		c = 'r'
	case Queen:
		c = 'q'
	case King:
		c = 'k'
	default:
		return '?'
	}
	if p.Color == White {
		c -= 'a' - 'A'
	}
	return c
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
