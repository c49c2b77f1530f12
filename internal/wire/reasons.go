package wire

import "strings"

// Reasons holds the human-readable texts carried by ERROR and WIN lines.
type Reasons struct {
	NotYourPiece         string
	IllegalMove          string
	BadFormat            string
	OpponentDisconnected string
}

// DefaultReasons returns the protocol's built-in texts.
func DefaultReasons() Reasons {
	return Reasons{
		NotYourPiece:         "Not your piece",
		IllegalMove:          "Illegal move",
		BadFormat:            "Invalid move format",
		OpponentDisconnected: "Opponent disconnected",
	}
}

// Renderer resolves a catalog key to text.
type Renderer interface {
	Render(key string, data any) (string, error)
}

// Catalog keys for LoadReasons.
const (
	KeyNotYourPiece         = "error.not_your_piece"
	KeyIllegalMove          = "error.illegal_move"
	KeyBadFormat            = "error.bad_format"
	KeyOpponentDisconnected = "win.opponent_disconnected"
)

// LoadReasons fills Reasons from r, keeping the default text for any key that is
// missing, blank or would break the line framing.
func LoadReasons(r Renderer) Reasons {
	out := DefaultReasons()
	if r == nil {
		return out
	}
	pick := func(key string, dst *string) {
		s, err := r.Render(key, nil)
		if err != nil {
			return
		}
		s = strings.TrimSpace(s)
		if s == "" || strings.ContainsAny(s, "\r\n") {
			return
		}
		*dst = s
	}
	pick(KeyNotYourPiece, &out.NotYourPiece)
	pick(KeyIllegalMove, &out.IllegalMove)
	pick(KeyBadFormat, &out.BadFormat)
	pick(KeyOpponentDisconnected, &out.OpponentDisconnected)
	return out
}
