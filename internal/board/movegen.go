package board

import "golang.org/x/exp/constraints"

// castlingPath describes one castling move of one color.
type castlingPath struct {
	right    CastlingRights
	king     Square   // king origin
	kingTo   Square   // king destination
	rook     Square   // rook corner
	rookTo   Square   // rook destination
	between  []Square // must be empty
	transits []Square // must not be attacked, king square included
}

var castlingPaths = [2][2]castlingPath{
	White: {
		{WhiteKingSideCastle, E1, G1, H1, F1, []Square{F1, G1}, []Square{E1, F1, G1}},
		{WhiteQueenSideCastle, E1, C1, A1, D1, []Square{B1, C1, D1}, []Square{E1, D1, C1}},
	},
	Black: {
		{BlackKingSideCastle, E8, G8, H8, F8, []Square{F8, G8}, []Square{E8, F8, G8}},
		{BlackQueenSideCastle, E8, C8, A8, D8, []Square{B8, C8, D8}, []Square{E8, D8, C8}},
	},
}

// LegalMoves generates all legal moves for the position, ordered by origin
// square and then by generation order within each piece.
func (p *Position) LegalMoves() *MoveList {
	return p.filterLegalMoves(p.PseudoLegalMoves())
}

// PseudoLegalMoves generates all pseudo-legal moves (may leave king in check).
// King steps onto attacked squares are already excluded.
func (p *Position) PseudoLegalMoves() *MoveList {
	ml := NewMoveList()
	p.generateAllMoves(ml)
	return ml
}

// generateAllMoves generates all pseudo-legal moves.
func (p *Position) generateAllMoves(ml *MoveList) {
	us := p.SideToMove
	attacked := p.AttackMap()

	for i, piece := range p.Squares {
		if piece == NoPiece || piece.Color() != us {
			continue
		}
		from := Square(i)

		switch piece.Type() {
		case Pawn:
			p.generatePawnMoves(ml, from, us)
		case Knight:
			p.addTargets(ml, from, knightAttacks[from])
		case Bishop:
			p.addTargets(ml, from, p.slidingAttacks(from, bishopDirs))
		case Rook:
			p.addTargets(ml, from, p.slidingAttacks(from, rookDirs))
		case Queen:
			p.addTargets(ml, from, p.slidingAttacks(from, queenDirs))
		case King:
			p.addTargets(ml, from, kingAttacks[from]&^attacked)
			p.generateCastlingMoves(ml, us, attacked)
		}
	}
}

// addTargets adds a move to every target square not held by the mover.
func (p *Position) addTargets(ml *MoveList, from Square, targets Bitboard) {
	us := p.SideToMove
	for targets != 0 {
		to := targets.PopLSB()
		if occupant := p.Squares[to]; occupant != NoPiece && occupant.Color() == us {
			continue
		}
		ml.Add(NewMove(from, to))
	}
}

// generatePawnMoves generates the pushes and captures of the pawn on from.
func (p *Position) generatePawnMoves(ml *MoveList, from Square, us Color) {
	dir := us.forward()

	// Single push, then double push from the starting row
	if one, ok := from.offset(0, dir); ok && p.Squares[one] == NoPiece {
		addPawnMove(ml, from, one, us)

		startRow := 6
		if us == Black {
			startRow = 1
		}
		if from.Row() == startRow {
			if two, ok := from.offset(0, 2*dir); ok && p.Squares[two] == NoPiece {
				ml.Add(NewMove(from, two))
			}
		}
	}

	// Diagonal captures, including en passant
	for _, df := range [2]int{-1, 1} {
		to, ok := from.offset(df, dir)
		if !ok {
			continue
		}
		target := p.Squares[to]
		if target != NoPiece && target.Color() != us {
			addPawnMove(ml, from, to, us)
		} else if target == NoPiece && to == p.EnPassant {
			ml.Add(NewMove(from, to))
		}
	}
}

// addPawnMove adds a pawn move, or all four promotions when it reaches the
// last rank.
func addPawnMove(ml *MoveList, from, to Square, us Color) {
	lastRow := 0
	if us == Black {
		lastRow = 7
	}
	if to.Row() != lastRow {
		ml.Add(NewMove(from, to))
		return
	}
	for _, promo := range promotionTypes {
		ml.Add(NewPromotion(from, to, promo))
	}
}

// generateCastlingMoves generates castling moves, kingside first.
func (p *Position) generateCastlingMoves(ml *MoveList, us Color, attacked Bitboard) {
	for _, cp := range castlingPaths[us] {
		if p.canCastle(cp, us, attacked) {
			ml.Add(NewMove(cp.king, cp.kingTo))
		}
	}
}

func (p *Position) canCastle(cp castlingPath, us Color, attacked Bitboard) bool {
	if p.CastlingRights&cp.right == 0 {
		return false
	}
	if p.Squares[cp.king] != NewPiece(King, us) || p.Squares[cp.rook] != NewPiece(Rook, us) {
		return false
	}
	for _, sq := range cp.between {
		if p.Squares[sq] != NoPiece {
			return false
		}
	}
	for _, sq := range cp.transits {
		if attacked.IsSet(sq) {
			return false
		}
	}
	return true
}

// filterLegalMoves keeps the moves that do not leave the mover's king
// attacked. Each move is tried on a scratch copy; the position itself is
// never modified.
func (p *Position) filterLegalMoves(ml *MoveList) *MoveList {
	result := NewMoveList()
	us := p.SideToMove

	for i := 0; i < ml.Len(); i++ {
		m := ml.Get(i)
		next, err := p.simulate(m)
		if err != nil {
			continue
		}
		if !next.kingAttacked(us) {
			result.Add(m)
		}
	}

	return result
}

// IsLegal returns true if the move is in the legal move list.
func (p *Position) IsLegal(m Move) bool {
	return p.LegalMoves().Contains(m)
}

// HasLegalMoves returns true if the side to move has any legal moves.
func (p *Position) HasLegalMoves() bool {
	return p.LegalMoves().Len() > 0
}

// Perft counts the number of leaf nodes at the given depth.
func (p *Position) Perft(depth int) int64 {
	if depth == 0 {
		return 1
	}

	moves := p.LegalMoves()
	if depth == 1 {
		return int64(moves.Len())
	}

	var nodes int64
	for i := 0; i < moves.Len(); i++ {
		next, err := p.simulate(moves.Get(i))
		if err != nil {
			continue
		}
		nodes += next.Perft(depth - 1)
	}
	return nodes
}

func abs[T constraints.Signed](x T) T {
	if x < 0 {
		return -x
	}
	return x
}
