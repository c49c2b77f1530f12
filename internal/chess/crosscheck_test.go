package chess

import (
	"math/rand"
	"sort"
	"testing"

	nchess "github.com/corentings/chess/v2"
)

// The legal move set must match a full chess implementation once castling, en
// passant and the promotion piece choice are set aside.
func TestLegalMovesAgreeWithReferenceEngine(t *testing.T) {
	for seed := int64(1); seed <= 12; seed++ {
		rng := rand.New(rand.NewSource(seed))
		game := nchess.NewGame()
		b := NewBoard()
		turn := White

		for ply := 0; ply < 80; ply++ {
			if game.Outcome() != nchess.NoOutcome {
				break
			}
			ours := b.LegalMoves(turn)
			want := referenceMoves(game)
			got := make([]string, 0, len(ours))
			for _, m := range ours {
				got = append(got, m.UCI())
			}
			sort.Strings(got)
			if !equalStrings(got, want) {
				t.Fatalf("seed %d ply %d: move sets differ\nours:  %v\ntheirs: %v\n%s", seed, ply, got, want, b)
			}

			candidates := ours[:0:0]
			for _, m := range ours {
				p, _ := b.Get(m.From)
				if p.Type == Pawn && (m.To.Row == 0 || m.To.Row == 7) {
					continue
				}
				candidates = append(candidates, m)
			}
			if len(candidates) == 0 {
				break
			}
			m := candidates[rng.Intn(len(candidates))]
			if err := game.PushNotationMove(m.UCI(), nchess.UCINotation{}, nil); err != nil {
				t.Fatalf("seed %d ply %d: reference rejected %s: %v", seed, ply, m.UCI(), err)
			}
			b.Apply(m)
			turn = turn.Opponent()
		}
	}
}

func referenceMoves(game *nchess.Game) []string {
	seen := map[string]struct{}{}
	for _, mv := range game.ValidMoves() {
		if mv.HasTag(nchess.KingSideCastle) || mv.HasTag(nchess.QueenSideCastle) || mv.HasTag(nchess.EnPassant) {
			continue
		}
		seen[mv.S1().String()+mv.S2().String()] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
