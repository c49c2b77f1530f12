package chess

// IsLegal is the full legality gate: piece geometry, destination ownership and the
// self-check filter. It fails closed on an empty piece.
func IsLegal(m Move, b *Board, piece Piece) bool {
	if !IsPseudoLegal(m, b, piece) {
		return false
	}
	return !b.WouldBeInCheckAfter(piece, m)
}

// IsPseudoLegal checks movement geometry, path and capture constraints while
// ignoring whether the mover's own king is left in check.
func IsPseudoLegal(m Move, b *Board, piece Piece) bool {
	if piece.IsEmpty() || !m.From.Valid() || !m.To.Valid() {
		return false
	}
	if dst, ok := b.Get(m.To); ok && dst.Color == piece.Color {
		return false
	}
	dy, dx := m.To.Row-m.From.Row, m.To.Col-m.From.Col
	switch piece.Type {
	case King:
		return max(abs(dx), abs(dy)) <= 1
	case Knight:
		ady, adx := abs(dy), abs(dx)
		return (ady == 1 && adx == 2) || (ady == 2 && adx == 1)
	case Rook:
		return rookRule(m, b, dy, dx)
	case Bishop:
		return bishopRule(m, b, dy, dx)
	case Queen:
		return rookRule(m, b, dy, dx) || bishopRule(m, b, dy, dx)
	case Pawn:
		return pawnRule(m, b, piece.Color, dy, dx)
	default:
		return false
	}
}

func rookRule(m Move, b *Board, dy, dx int) bool {
	if (dx == 0) == (dy == 0) {
		return false
	}
	return b.IsPathClear(m.From, m.To)
}

func bishopRule(m Move, b *Board, dy, dx int) bool {
	if dx == 0 || abs(dx) != abs(dy) {
		return false
	}
	return b.IsPathClear(m.From, m.To)
}

// PawnDirection is the row delta of a forward pawn step: -1 for White, +1 for Black.
func PawnDirection(c Color) int {
	if c == White {
		return -1
	}
	return 1
}

// PawnStartRow is the row a color's pawns start on.
func PawnStartRow(c Color) int {
	if c == White {
		return 6
	}
	return 1
}

func pawnRule(m Move, b *Board, color Color, dy, dx int) bool {
	dir := PawnDirection(color)
	dst, occupied := b.Get(m.To)
	switch {
	case dx == 0 && dy == dir:
		return !occupied
	case dx == 0 && dy == 2*dir:
		return m.From.Row == PawnStartRow(color) && !occupied && b.IsPathClear(m.From, m.To)
	case abs(dx) == 1 && dy == dir:
		return occupied && dst.Color == color.Opponent()
	default:
		return false
	}
}
