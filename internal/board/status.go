package board

// Status is the first terminal fact that holds for a position. The engine
// only reports facts; deciding the game result is up to the caller.
type Status uint8

const (
	Ongoing Status = iota
	Checkmate
	Stalemate
	InsufficientMaterial
	FiftyMoveRule
	ThreefoldRepetition
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case Ongoing:
		return "ongoing"
	case Checkmate:
		return "checkmate"
	case Stalemate:
		return "stalemate"
	case InsufficientMaterial:
		return "insufficient_material"
	case FiftyMoveRule:
		return "fifty_move_rule"
	case ThreefoldRepetition:
		return "threefold_repetition"
	default:
		return "unknown"
	}
}

// IsCheckmate returns true if the side to move is in check with no legal move.
func (p *Position) IsCheckmate() bool {
	return p.InCheck() && !p.HasLegalMoves()
}

// IsStalemate returns true if the side to move is not in check but has no
// legal move.
func (p *Position) IsStalemate() bool {
	return !p.InCheck() && !p.HasLegalMoves()
}

// IsFiftyMoveRule returns true once 100 plies have passed without a pawn
// move or capture.
func (p *Position) IsFiftyMoveRule() bool {
	return p.HalfMoveClock >= 100
}

// IsThreefoldRepetition returns true if the current position has occurred
// at least three times.
func (p *Position) IsThreefoldRepetition() bool {
	return p.RepetitionCount() >= 3
}

// IsInsufficientMaterial returns true for K vs K, K+minor vs K, and
// K+B vs K+B with both bishops on the same square colour.
func (p *Position) IsInsufficientMaterial() bool {
	var white, black []Square
	for i, piece := range p.Squares {
		if piece == NoPiece || piece.Type() == King {
			continue
		}
		if piece.Color() == White {
			white = append(white, Square(i))
		} else {
			black = append(black, Square(i))
		}
	}

	// K vs K
	if len(white) == 0 && len(black) == 0 {
		return true
	}

	// K+minor vs K
	if len(white) == 1 && len(black) == 0 && p.isMinor(white[0]) {
		return true
	}
	if len(black) == 1 && len(white) == 0 && p.isMinor(black[0]) {
		return true
	}

	// K+B vs K+B, same coloured bishops
	if len(white) == 1 && len(black) == 1 &&
		p.Squares[white[0]].Type() == Bishop && p.Squares[black[0]].Type() == Bishop {
		return white[0].Shade() == black[0].Shade()
	}

	return false
}

func (p *Position) isMinor(sq Square) bool {
	pt := p.Squares[sq].Type()
	return pt == Knight || pt == Bishop
}

// Status reports the first terminal fact that holds, checked in the order
// checkmate, stalemate, insufficient material, fifty-move rule, threefold
// repetition.
func (p *Position) Status() Status {
	hasMoves := p.HasLegalMoves()
	switch {
	case !hasMoves && p.InCheck():
		return Checkmate
	case !hasMoves:
		return Stalemate
	case p.IsInsufficientMaterial():
		return InsufficientMaterial
	case p.IsFiftyMoveRule():
		return FiftyMoveRule
	case p.IsThreefoldRepetition():
		return ThreefoldRepetition
	}
	return Ongoing
}
