package board

import (
	"errors"
	"testing"
)

func mustFEN(t *testing.T, fen string) *Position {
	t.Helper()
	pos, err := ParseFEN(fen)
	if err != nil {
		t.Fatalf("ParseFEN(%q): %v", fen, err)
	}
	return pos
}

func TestOpeningMobility(t *testing.T) {
	pos := NewPosition()
	moves := pos.LegalMoves()
	if moves.Len() != 20 {
		t.Fatalf("start position has %d legal moves, want 20: %v", moves.Len(), moves.Strings())
	}

	// Origin squares ascend from a8 to h1, so the a-pawn comes first and the
	// g1 knight last.
	want := []string{"a2a3", "a2a4", "b2b3", "b2b4"}
	got := moves.Strings()
	for i, w := range want {
		if got[i] != w {
			t.Errorf("move %d = %s, want %s (all: %v)", i, got[i], w, got)
		}
	}
	if last := got[len(got)-1]; last != "g1h3" {
		t.Errorf("last move = %s, want g1h3", last)
	}
}

func TestLegalMovesDeterministic(t *testing.T) {
	pos := mustFEN(t, "r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1")
	before := pos.FEN()
	hash := pos.Hash

	first := pos.LegalMoves().Strings()
	second := pos.LegalMoves().Strings()
	if len(first) != len(second) {
		t.Fatalf("move count changed between calls: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("move %d differs: %s vs %s", i, first[i], second[i])
		}
	}

	if pos.FEN() != before || pos.Hash != hash {
		t.Error("generating legal moves mutated the position")
	}
	if len(pos.Repetitions) != 1 {
		t.Errorf("generating legal moves touched the repetition table: %v", pos.Repetitions)
	}
}

func TestLegalityClosure(t *testing.T) {
	fens := []string{
		StartFEN,
		"r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1",
		"8/2p5/3p4/KP5r/1R3p1k/8/4P1P1/8 w - - 0 1",
		"8/8/8/8/k2Pp2R/8/8/4K3 b - d3 0 1",
		"r3k2r/Pppp1ppp/1b3nbN/nP6/BBP1P3/q4N2/Pp1P2PP/R2Q1RK1 w kq - 0 1",
	}

	for _, fen := range fens {
		t.Run(fen, func(t *testing.T) {
			pos := mustFEN(t, fen)
			us := pos.SideToMove
			legal := pos.LegalMoves()
			pseudo := pos.PseudoLegalMoves()

			for i := 0; i < pseudo.Len(); i++ {
				m := pseudo.Get(i)
				next, err := pos.simulate(m)
				if err != nil {
					t.Fatalf("simulate(%s): %v", m, err)
				}
				exposed := next.kingAttacked(us)
				if legal.Contains(m) == exposed {
					t.Errorf("%s: legal=%v but leaves king attacked=%v", m, legal.Contains(m), exposed)
				}
			}
		})
	}
}

func TestEnPassant(t *testing.T) {
	pos := NewPosition()
	for _, text := range []string{"e2e4", "a7a6", "e4e5", "d7d5"} {
		playMove(t, pos, text)
	}

	if ep, ok := pos.EnPassantTarget(); !ok || ep != D6 {
		t.Fatalf("en passant target = %v (set=%v), want d6", ep, ok)
	}

	ep := NewMove(E5, D6)
	if !pos.LegalMoves().Contains(ep) {
		t.Fatalf("e5d6 missing from legal moves: %v", pos.LegalMoves().Strings())
	}
	if err := pos.MakeMove(ep); err != nil {
		t.Fatalf("MakeMove(e5d6): %v", err)
	}

	if pos.PieceAt(D5) != NoPiece {
		t.Errorf("captured pawn still on d5: %s", pos.PieceAt(D5))
	}
	if pos.PieceAt(D6) != WhitePawn {
		t.Errorf("d6 = %s, want white pawn", pos.PieceAt(D6))
	}
	if pos.PieceAt(E5) != NoPiece {
		t.Errorf("e5 should be empty, got %s", pos.PieceAt(E5))
	}
	if _, ok := pos.EnPassantTarget(); ok {
		t.Error("en passant target should be cleared after the capture")
	}
	if pos.HalfMoveClock != 0 {
		t.Errorf("half-move clock = %d, want 0", pos.HalfMoveClock)
	}
}

func TestEnPassantTargetExpires(t *testing.T) {
	pos := NewPosition()
	for _, text := range []string{"e2e4", "a7a6", "e4e5", "d7d5", "g1f3", "a6a5"} {
		playMove(t, pos, text)
	}
	if pos.LegalMoves().Contains(NewMove(E5, D6)) {
		t.Error("en passant must only be available on the move right after the double push")
	}
}

func TestEnPassantCorruptState(t *testing.T) {
	pos := mustFEN(t, "rnbqkbnr/1pp1pppp/p7/3pP3/8/8/PPPP1PPP/RNBQKBNR w KQkq d6 0 3")
	pos.Squares[D5] = NoPiece
	before := pos.FEN()
	hash := pos.Hash

	err := pos.MakeMove(NewMove(E5, D6))
	if !errors.Is(err, ErrCorruptState) {
		t.Fatalf("MakeMove error = %v, want ErrCorruptState", err)
	}
	if pos.FEN() != before || pos.Hash != hash {
		t.Error("failed move mutated the position")
	}
	if pos.LegalMoves().Contains(NewMove(E5, D6)) {
		t.Error("a move whose simulation fails must not be listed as legal")
	}
}

func TestPromotion(t *testing.T) {
	pos := mustFEN(t, "8/P6k/8/8/8/8/8/K7 w - - 7 40")

	var promos []string
	moves := pos.LegalMoves()
	for i := 0; i < moves.Len(); i++ {
		if m := moves.Get(i); m.From() == A7 {
			promos = append(promos, m.String())
		}
	}
	want := []string{"a7a8q", "a7a8r", "a7a8b", "a7a8n"}
	if len(promos) != len(want) {
		t.Fatalf("promotions = %v, want %v", promos, want)
	}
	for i := range want {
		if promos[i] != want[i] {
			t.Errorf("promotion %d = %s, want %s", i, promos[i], want[i])
		}
	}

	playMove(t, pos, "a7a8n")
	if pos.PieceAt(A8) != WhiteKnight {
		t.Errorf("a8 = %s, want white knight", pos.PieceAt(A8))
	}
	if pos.HalfMoveClock != 0 {
		t.Errorf("half-move clock = %d, want 0", pos.HalfMoveClock)
	}
}

func TestCastling(t *testing.T) {
	pos := mustFEN(t, "r3k2r/8/8/8/8/8/8/R3K2R w KQkq - 0 1")
	moves := pos.LegalMoves()
	for _, text := range []string{"e1g1", "e1c1"} {
		m, _ := ParseMove(text)
		if !moves.Contains(m) {
			t.Errorf("%s missing from legal moves: %v", text, moves.Strings())
		}
	}

	playMove(t, pos, "e1g1")
	if pos.PieceAt(G1) != WhiteKing || pos.PieceAt(F1) != WhiteRook {
		t.Errorf("after e1g1: g1=%s f1=%s", pos.PieceAt(G1), pos.PieceAt(F1))
	}
	if pos.PieceAt(H1) != NoPiece || pos.PieceAt(E1) != NoPiece {
		t.Error("e1 and h1 must be empty after kingside castling")
	}
	if pos.CastlingRights != BlackKingSideCastle|BlackQueenSideCastle {
		t.Errorf("castling rights = %s, want kq", pos.CastlingRights)
	}

	playMove(t, pos, "e8c8")
	if pos.PieceAt(C8) != BlackKing || pos.PieceAt(D8) != BlackRook || pos.PieceAt(A8) != NoPiece {
		t.Errorf("after e8c8: c8=%s d8=%s a8=%s", pos.PieceAt(C8), pos.PieceAt(D8), pos.PieceAt(A8))
	}
	if pos.CastlingRights != NoCastling {
		t.Errorf("castling rights = %s, want -", pos.CastlingRights)
	}
	if pos.HalfMoveClock != 2 {
		t.Errorf("half-move clock = %d, want 2", pos.HalfMoveClock)
	}
}

func TestCastlingBlockedByAttack(t *testing.T) {
	tests := []struct {
		name    string
		fen     string
		allowed []string
		denied  []string
	}{
		{
			name:    "transit square attacked",
			fen:     "r3k2r/8/8/8/8/5r2/8/R3K2R w KQkq - 0 1",
			allowed: []string{"e1c1"},
			denied:  []string{"e1g1"},
		},
		{
			name:   "king in check",
			fen:    "r3k2r/8/8/8/8/4r3/8/R3K2R w KQkq - 0 1",
			denied: []string{"e1g1", "e1c1"},
		},
		{
			name:    "b-file attacked does not matter",
			fen:     "r3k2r/8/8/8/8/1r6/8/R3K2R w KQkq - 0 1",
			allowed: []string{"e1c1", "e1g1"},
		},
		{
			name:    "piece between king and rook",
			fen:     "r3k2r/8/8/8/8/8/8/RN2K2R w KQkq - 0 1",
			allowed: []string{"e1g1"},
			denied:  []string{"e1c1"},
		},
		{
			name:   "rook gone from corner",
			fen:    "r3k2r/8/8/8/8/8/8/4K3 w KQkq - 0 1",
			denied: []string{"e1g1", "e1c1"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			pos := mustFEN(t, tc.fen)
			moves := pos.LegalMoves()
			for _, text := range tc.allowed {
				m, _ := ParseMove(text)
				if !moves.Contains(m) {
					t.Errorf("%s should be legal, got %v", text, moves.Strings())
				}
			}
			for _, text := range tc.denied {
				m, _ := ParseMove(text)
				if moves.Contains(m) {
					t.Errorf("%s should not be legal", text)
				}
			}
		})
	}
}

func TestCastlingRightsNotRestored(t *testing.T) {
	pos := mustFEN(t, "r3k2r/8/8/8/8/8/8/R3K2R w KQkq - 0 1")
	for _, text := range []string{"h1g1", "a8b8", "g1h1", "b8a8"} {
		playMove(t, pos, text)
	}

	if pos.CastlingRights != WhiteQueenSideCastle|BlackKingSideCastle {
		t.Errorf("castling rights = %s, want Qk", pos.CastlingRights)
	}
	if pos.IsLegal(NewMove(E1, G1)) {
		t.Error("kingside castling must stay lost after the rook returns")
	}
	if !pos.IsLegal(NewMove(E1, C1)) {
		t.Error("queenside castling should still be available")
	}
}

func TestCastlingRightLostWhenRookCaptured(t *testing.T) {
	pos := mustFEN(t, "r3k2r/8/8/8/8/8/8/R3K2R w KQkq - 0 1")
	playMove(t, pos, "a1a8")
	if pos.CastlingRights != WhiteKingSideCastle|BlackKingSideCastle {
		t.Errorf("castling rights = %s, want Kk", pos.CastlingRights)
	}
}

func TestThreefoldRepetition(t *testing.T) {
	pos := mustFEN(t, "7k/8/8/8/8/8/8/KR6 w - - 0 1")
	shuffle := []string{"a1a2", "h8g8", "a2a1", "g8h8"}

	if pos.RepetitionCount() != 1 {
		t.Fatalf("initial repetition count = %d, want 1", pos.RepetitionCount())
	}

	ply := 0
	for round := 1; round <= 2; round++ {
		for _, text := range shuffle {
			if pos.IsThreefoldRepetition() {
				t.Fatalf("threefold reported early at ply %d", ply)
			}
			playMove(t, pos, text)
			ply++
			if pos.HalfMoveClock != ply {
				t.Errorf("half-move clock = %d after %d plies", pos.HalfMoveClock, ply)
			}
		}
		if got := pos.RepetitionCount(); got != round+1 {
			t.Errorf("after round %d repetition count = %d, want %d", round, got, round+1)
		}
	}

	if !pos.IsThreefoldRepetition() {
		t.Error("expected threefold repetition after two full shuffles")
	}
	if got := pos.Status(); got != ThreefoldRepetition {
		t.Errorf("Status() = %v, want %v", got, ThreefoldRepetition)
	}
}

func TestFiftyMoveRule(t *testing.T) {
	pos := mustFEN(t, "7k/8/8/8/8/8/8/KR6 w - - 99 80")
	if pos.IsFiftyMoveRule() {
		t.Fatal("fifty-move rule triggered at 99 plies")
	}
	playMove(t, pos, "b1b2")
	if !pos.IsFiftyMoveRule() {
		t.Errorf("fifty-move rule not triggered at %d plies", pos.HalfMoveClock)
	}
	if got := pos.Status(); got != FiftyMoveRule {
		t.Errorf("Status() = %v, want %v", got, FiftyMoveRule)
	}

	playMove(t, pos, "h8g8")
	if pos.HalfMoveClock != 101 {
		t.Errorf("half-move clock = %d, want 101", pos.HalfMoveClock)
	}
}

func TestInsufficientMaterial(t *testing.T) {
	tests := []struct {
		name string
		fen  string
		want bool
	}{
		{"bare kings", "4k3/8/8/8/8/8/8/4K3 w - - 0 1", true},
		{"knight vs king", "4k3/8/8/8/8/8/8/4KN2 w - - 0 1", true},
		{"bishop vs king", "4k3/8/8/8/8/8/8/2B1K3 b - - 0 1", true},
		{"king vs black bishop", "2b1k3/8/8/8/8/8/8/4K3 w - - 0 1", true},
		{"same coloured bishops", "4kb2/8/8/8/8/8/8/2B1K3 w - - 0 1", true},
		{"opposite coloured bishops", "2b1k3/8/8/8/8/8/8/2B1K3 w - - 0 1", false},
		{"rook", "4k3/8/8/8/8/8/8/4KR2 w - - 0 1", false},
		{"pawn", "4k3/8/8/8/8/8/4P3/4K3 w - - 0 1", false},
		{"two knights", "4k3/8/8/8/8/8/8/3NKN2 w - - 0 1", false},
		{"knight vs knight", "4kn2/8/8/8/8/8/8/4KN2 w - - 0 1", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			pos := mustFEN(t, tc.fen)
			if got := pos.IsInsufficientMaterial(); got != tc.want {
				t.Errorf("IsInsufficientMaterial() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestMakeMoveRejectsWrongSide(t *testing.T) {
	pos := NewPosition()
	err := pos.MakeMove(NewMove(E7, E5))
	if !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("MakeMove(e7e5) error = %v, want ErrIllegalMove", err)
	}
	if pos.FEN() != StartFEN {
		t.Errorf("position changed: %s", pos.FEN())
	}
}

func TestKingNeverStepsIntoAttack(t *testing.T) {
	// The d-file is covered by the black rook
	pos := mustFEN(t, "3rk3/8/8/8/8/8/8/4K3 w - - 0 1")
	pseudo := pos.PseudoLegalMoves()
	for _, to := range []Square{D1, D2} {
		if pseudo.Contains(NewMove(E1, to)) {
			t.Errorf("king move e1%s onto an attacked square was generated", to)
		}
	}
	if !pseudo.Contains(NewMove(E1, F1)) {
		t.Errorf("e1f1 missing: %v", pseudo.Strings())
	}
}

func TestUnreachableMaterialRejected(t *testing.T) {
	tests := []struct {
		name string
		fen  string
	}{
		{"crowded queens", "1Q4Qk/Q2Q3Q/Q1Q2Q1Q/Q6Q/1Q5Q/Q6Q/Q6Q/KQQQQ1QQ w - - 0 1"},
		{"nine pawns", "4k3/8/8/8/8/P7/PPPPPPPP/4K3 w - - 0 1"},
		{"promotion without a missing pawn", "4k3/8/8/8/8/8/PPPPPPPP/QQ2K3 w - - 0 1"},
		{"black extra rooks", "rrr1k3/pppppppp/8/8/8/8/8/4K3 b - - 0 1"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseFEN(tc.fen)
			if !errors.Is(err, ErrInvalidFEN) {
				t.Errorf("ParseFEN error = %v, want ErrInvalidFEN", err)
			}
		})
	}
}

func TestFullyPromotedSideGeneratesMoves(t *testing.T) {
	// nine white queens: every pawn promoted
	pos := mustFEN(t, "7k/6pp/8/8/8/8/QQQQQ3/KQQQQ3 w - - 0 1")
	moves := pos.LegalMoves()
	if moves.Len() == 0 {
		t.Fatal("no legal moves for a side with nine queens")
	}
	for i := 0; i < moves.Len(); i++ {
		if _, err := pos.simulate(moves.Get(i)); err != nil {
			t.Errorf("simulate(%s): %v", moves.Get(i), err)
		}
	}
}
