// Package record turns a finished session's move list into a PGN summary for
// logs and the session registry.
package record

import (
	"fmt"
	"strings"
	"time"

	nchess "github.com/corentings/chess/v2"
)

// Game is the move history of one session.
type Game struct {
	ID        string
	White     string
	Black     string
	MovesUCI  []string
	StartedAt time.Time
	EndedAt   time.Time
	Winner    string // "White", "Black" or "" when unresolved
	Method    string // termination, e.g. "no legal moves", "disconnect"
}

// SAN converts the UCI history into standard algebraic notation. Conversion
// stops at the first move the standard rules cannot express (a pawn reaching
// the last rank without promoting); complete reports whether every move was
// converted.
func (g *Game) SAN() (san []string, complete bool) {
	game := nchess.NewGame()
	san = make([]string, 0, len(g.MovesUCI))
	for _, uci := range g.MovesUCI {
		pos := game.Position()
		mv, err := nchess.UCINotation{}.Decode(pos, uci)
		if err != nil {
			return san, false
		}
		if err := game.PushNotationMove(uci, nchess.UCINotation{}, nil); err != nil {
			return san, false
		}
		san = append(san, nchess.AlgebraicNotation{}.Encode(pos, mv))
	}
	return san, true
}

// Result is the PGN result token.
func (g *Game) Result() string {
	switch g.Winner {
	case "White":
		return "1-0"
	case "Black":
		return "0-1"
	default:
		return "*"
	}
}

// PGN renders headers and movetext. When SAN conversion is incomplete the
// remaining moves are appended as a comment in UCI form.
func (g *Game) PGN() string {
	var b strings.Builder
	date := g.EndedAt
	if date.IsZero() {
		date = time.Now()
	}
	result := g.Result()
	b.WriteString("[Event \"Cheese Arbiter\"]\n")
	fmt.Fprintf(&b, "[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day())
	fmt.Fprintf(&b, "[White \"%s\"]\n", sanitizePGN(g.White))
	fmt.Fprintf(&b, "[Black \"%s\"]\n", sanitizePGN(g.Black))
	if strings.TrimSpace(g.Method) != "" {
		fmt.Fprintf(&b, "[Termination \"%s\"]\n", sanitizePGN(g.Method))
	}
	fmt.Fprintf(&b, "[Result \"%s\"]\n\n", result)

	san, complete := g.SAN()
	for i := 0; i < len(san); i += 2 {
		fmt.Fprintf(&b, "%d. %s ", i/2+1, san[i])
		if i+1 < len(san) {
			b.WriteString(san[i+1])
			b.WriteString(" ")
		}
	}
	if !complete {
		fmt.Fprintf(&b, "{ %s } ", strings.Join(g.MovesUCI[len(san):], " "))
	}
	b.WriteString(result)
	return b.String()
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
