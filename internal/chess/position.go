package chess

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidSquare = errors.New("invalid square")
)

// Position is a board coordinate. Row 0 is rank 8, row 7 is rank 1; column 0 is file a.
type Position struct {
	Row int
	Col int
}

// Valid reports whether both coordinates are in [0,7].
func (p Position) Valid() bool {
	return p.Row >= 0 && p.Row < 8 && p.Col >= 0 && p.Col < 8
}

func (p Position) index() int { return p.Row*8 + p.Col }

// String renders the square in algebraic form, e.g. "e2".
func (p Position) String() string {
	if !p.Valid() {
		return "??"
	}
	return string([]byte{byte('a' + p.Col), byte('8' - p.Row)})
}

// ParseSquare parses a lowercase algebraic square such as "e4".
func ParseSquare(s string) (Position, error) {
	if len(s) != 2 {
		return Position{}, fmt.Errorf("%w: %q", ErrInvalidSquare, s)
	}
	file, rank := s[0], s[1]
	if file < 'a' || file > 'h' || rank < '1' || rank > '8' {
		return Position{}, fmt.Errorf("%w: %q", ErrInvalidSquare, s)
	}
	return Position{Row: int('8' - rank), Col: int(file - 'a')}, nil
}

// Move is a from/to pair.
type Move struct {
	From Position
	To   Position
}

// UCI renders the move as concatenated squares ("e2e4").
func (m Move) UCI() string { return m.From.String() + m.To.String() }

func (m Move) String() string { return m.From.String() + " " + m.To.String() }
