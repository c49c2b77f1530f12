// Package wire is the line protocol shared by the server and its two players.
// Every message is one newline-terminated UTF-8 line of the form KIND or
// KIND:payload.
package wire

import (
	"errors"
	"fmt"
	"strings"

	"github.com/park285/cheese-arbiter/internal/chess"
)

// HandshakeToken is the first line a client must send after connecting.
const HandshakeToken = "CHESS_V1_START"

// Kind is the message tag before the colon.
type Kind string

const (
	KindColor    Kind = "COLOR"
	KindBoard    Kind = "BOARD"
	KindYourTurn Kind = "YOURTURN"
	KindWait     Kind = "WAIT"
	KindError    Kind = "ERROR"
	KindWin      Kind = "WIN"
)

var (
	ErrUnknownMessage = errors.New("unknown message")
	ErrInvalidMove    = errors.New("invalid move format")
)

// Message is a decoded server-to-client line.
type Message struct {
	Kind    Kind
	Payload string
}

func hasPayload(k Kind) bool {
	switch k {
	case KindColor, KindBoard, KindError, KindWin:
		return true
	default:
		return false
	}
}

// Encode renders the message without the trailing newline.
func (m Message) Encode() string {
	if !hasPayload(m.Kind) {
		return string(m.Kind)
	}
	return string(m.Kind) + ":" + m.Payload
}

func (m Message) String() string { return m.Encode() }

// Decode parses one line produced by Encode.
func Decode(line string) (Message, error) {
	line = strings.TrimRight(line, "\r\n")
	kind, payload, found := strings.Cut(line, ":")
	k := Kind(kind)
	switch k {
	case KindYourTurn, KindWait:
		if found {
			return Message{}, fmt.Errorf("%w: %q", ErrUnknownMessage, line)
		}
		return Message{Kind: k}, nil
	case KindColor, KindBoard, KindError, KindWin:
		if !found {
			return Message{}, fmt.Errorf("%w: %q", ErrUnknownMessage, line)
		}
		return Message{Kind: k, Payload: payload}, nil
	default:
		return Message{}, fmt.Errorf("%w: %q", ErrUnknownMessage, line)
	}
}

func ColorMessage(c chess.Color) Message { return Message{Kind: KindColor, Payload: c.String()} }

func BoardMessage(b *chess.Board) Message { return Message{Kind: KindBoard, Payload: EncodeBoard(b)} }

func YourTurn() Message { return Message{Kind: KindYourTurn} }

func Wait() Message { return Message{Kind: KindWait} }

func ErrorMessage(reason string) Message { return Message{Kind: KindError, Payload: reason} }

// WinMessage carries either the winner's color name or a termination reason.
func WinMessage(text string) Message { return Message{Kind: KindWin, Payload: text} }

// ParseMove parses "<from> <to>" such as "e2 e4".
func ParseMove(line string) (chess.Move, error) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return chess.Move{}, fmt.Errorf("%w: %q", ErrInvalidMove, line)
	}
	from, err := chess.ParseSquare(fields[0])
	if err != nil {
		return chess.Move{}, fmt.Errorf("%w: %v", ErrInvalidMove, err)
	}
	to, err := chess.ParseSquare(fields[1])
	if err != nil {
		return chess.Move{}, fmt.Errorf("%w: %v", ErrInvalidMove, err)
	}
	return chess.Move{From: from, To: to}, nil
}

// FormatMove is the client-side inverse of ParseMove.
func FormatMove(m chess.Move) string { return m.String() }
