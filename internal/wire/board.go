package wire

import (
	"errors"
	"fmt"
	"strings"

	"github.com/park285/cheese-arbiter/internal/chess"
)

var ErrInvalidBoard = errors.New("invalid board state")

const emptyToken = "_"

// Fixed code tables. Encoder and decoder both derive from these.
var (
	colorCodes = map[chess.Color]byte{
		chess.White: 'W',
		chess.Black: 'B',
	}
	typeCodes = map[chess.PieceType]byte{
		chess.Pawn:   'P',
		chess.Knight: 'N',
		chess.Bishop: 'B',
		chess.Rook:   'R',
		chess.Queen:  'Q',
		chess.King:   'K',
	}
	colorByCode = invert(colorCodes)
	typeByCode  = invert(typeCodes)
)

func invert[K comparable](m map[K]byte) map[byte]K {
	out := make(map[byte]K, len(m))
	for k, v := range m {
		out[v] = k
	}
	return out
}

// PieceToken returns the two-character wire token of p, or "_" for an empty slot.
func PieceToken(p chess.Piece) string {
	if p.IsEmpty() {
		return emptyToken
	}
	return string([]byte{colorCodes[p.Color], typeCodes[p.Type]})
}

// ParsePieceToken is the inverse of PieceToken.
func ParsePieceToken(tok string) (chess.Piece, error) {
	if tok == emptyToken {
		return chess.NoPiece, nil
	}
	if len(tok) != 2 {
		return chess.NoPiece, fmt.Errorf("%w: token %q", ErrInvalidBoard, tok)
	}
	c, ok := colorByCode[tok[0]]
	if !ok {
		return chess.NoPiece, fmt.Errorf("%w: color %q", ErrInvalidBoard, tok[0])
	}
	t, ok := typeByCode[tok[1]]
	if !ok {
		return chess.NoPiece, fmt.Errorf("%w: type %q", ErrInvalidBoard, tok[1])
	}
	return chess.Piece{Color: c, Type: t}, nil
}

// EncodeBoard renders 64 comma-separated tokens from a8 through h1.
func EncodeBoard(b *chess.Board) string {
	squares := b.Squares()
	toks := make([]string, len(squares))
	for i, p := range squares {
		toks[i] = PieceToken(p)
	}
	return strings.Join(toks, ",")
}

// DecodeBoard parses the payload of a BOARD message.
func DecodeBoard(state string) (*chess.Board, error) {
	toks := strings.Split(state, ",")
	if len(toks) != 64 {
		return nil, fmt.Errorf("%w: %d tokens", ErrInvalidBoard, len(toks))
	}
	b := chess.EmptyBoard()
	for i, tok := range toks {
		p, err := ParsePieceToken(tok)
		if err != nil {
			return nil, fmt.Errorf("square %d: %w", i, err)
		}
		b.Set(chess.Position{Row: i / 8, Col: i % 8}, p)
	}
	return b, nil
}
