// Package chess implements the referee's rules engine: an 8x8 board of optional
// pieces, per-piece movement geometry, check detection and the "no legal moves"
// terminal condition.
//
// Castling, en passant and promotion are not part of the rules.
package chess

// Color identifies a side.
type Color uint8

const (
	NoColor Color = iota
	White
	Black
)

// Opponent returns the other side.
func (c Color) Opponent() Color {
	switch c {
	case White:
		return Black
	case Black:
		return White
	default:
		return NoColor
	}
}

func (c Color) String() string {
	switch c {
	case White:
		return "White"
	case Black:
		return "Black"
	default:
		return "None"
	}
}

// PieceType is the kind of a piece.
type PieceType uint8

const (
	NoPieceType PieceType = iota
	Pawn
	Knight
	Bishop
	Rook
	Queen
	King
)

func (t PieceType) String() string {
	switch t {
	case Pawn:
		return "Pawn"
	case Knight:
		return "Knight"
	case Bishop:
		return "Bishop"
	case Rook:
		return "Rook"
	case Queen:
		return "Queen"
	case King:
		return "King"
	default:
		return "None"
	}
}

// Piece is an immutable (color, type) pair. The zero value is an empty slot.
type Piece struct {
	Color Color
	Type  PieceType
}

// NoPiece is the empty slot.
var NoPiece = Piece{}

// IsEmpty reports whether p is the empty slot.
func (p Piece) IsEmpty() bool { return p.Type == NoPieceType }

func (p Piece) String() string {
	if p.IsEmpty() {
		return "empty"
	}
	return p.Color.String() + " " + p.Type.String()
}
