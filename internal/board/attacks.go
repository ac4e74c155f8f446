package board

// direction is a (file, row) step on the board.
type direction struct {
	df, dr int
}

var (
	knightOffsets = [8]direction{{-2, -1}, {-2, 1}, {-1, -2}, {-1, 2}, {1, -2}, {1, 2}, {2, -1}, {2, 1}}
	kingOffsets   = [8]direction{{-1, -1}, {-1, 1}, {1, -1}, {1, 1}, {-1, 0}, {1, 0}, {0, -1}, {0, 1}}
	bishopDirs    = []direction{{-1, -1}, {-1, 1}, {1, -1}, {1, 1}}
	rookDirs      = []direction{{-1, 0}, {1, 0}, {0, -1}, {0, 1}}
	queenDirs     = append(append([]direction{}, bishopDirs...), rookDirs...)
)

// Pre-computed attack tables for non-sliding pieces
var (
	knightAttacks [64]Bitboard
	kingAttacks   [64]Bitboard
	pawnAttacks   [2][64]Bitboard // [Color][Square]
)

func init() {
	initLeaperAttacks()
	initPawnAttacks()
}

func initLeaperAttacks() {
	for sq := A8; sq <= H1; sq++ {
		for _, d := range knightOffsets {
			if to, ok := sq.offset(d.df, d.dr); ok {
				knightAttacks[sq] = knightAttacks[sq].Set(to)
			}
		}
		for _, d := range kingOffsets {
			if to, ok := sq.offset(d.df, d.dr); ok {
				kingAttacks[sq] = kingAttacks[sq].Set(to)
			}
		}
	}
}

func initPawnAttacks() {
	for sq := A8; sq <= H1; sq++ {
		for _, c := range [2]Color{White, Black} {
			for _, df := range [2]int{-1, 1} {
				if to, ok := sq.offset(df, c.forward()); ok {
					pawnAttacks[c][sq] = pawnAttacks[c][sq].Set(to)
				}
			}
		}
	}
}

// KnightAttacks returns the knight attack set for a square.
func KnightAttacks(sq Square) Bitboard {
	return knightAttacks[sq]
}

// KingAttacks returns the king attack set for a square.
func KingAttacks(sq Square) Bitboard {
	return kingAttacks[sq]
}

// PawnAttacks returns the diagonal squares a pawn of the given color
// attacks from sq.
func PawnAttacks(sq Square, c Color) Bitboard {
	return pawnAttacks[c][sq]
}

// slidingAttacks ray-casts from sq along each direction. Each ray includes
// the first occupied square it reaches and stops there.
func (p *Position) slidingAttacks(sq Square, dirs []direction) Bitboard {
	var attacks Bitboard
	for _, d := range dirs {
		to, ok := sq.offset(d.df, d.dr)
		for ok {
			attacks = attacks.Set(to)
			if p.Squares[to] != NoPiece {
				break
			}
			to, ok = to.offset(d.df, d.dr)
		}
	}
	return attacks
}

// pieceAttacks returns the squares the piece on sq attacks.
func (p *Position) pieceAttacks(sq Square, piece Piece) Bitboard {
	switch piece.Type() {
	case Pawn:
		return pawnAttacks[piece.Color()][sq]
	case Knight:
		return knightAttacks[sq]
	case Bishop:
		return p.slidingAttacks(sq, bishopDirs)
	case Rook:
		return p.slidingAttacks(sq, rookDirs)
	case Queen:
		return p.slidingAttacks(sq, queenDirs)
	case King:
		return kingAttacks[sq]
	}
	return Empty
}

// AttacksBy returns every square the given color attacks, ignoring pins and
// the occupant of the attacked square.
func (p *Position) AttacksBy(c Color) Bitboard {
	var attacks Bitboard
	for sq, piece := range p.Squares {
		if piece != NoPiece && piece.Color() == c {
			attacks |= p.pieceAttacks(Square(sq), piece)
		}
	}
	return attacks
}

// AttackMap returns the squares attacked by the side not to move.
func (p *Position) AttackMap() Bitboard {
	return p.AttacksBy(p.SideToMove.Other())
}

// IsSquareAttacked returns true if the square is attacked by the side not
// to move.
func (p *Position) IsSquareAttacked(sq Square) bool {
	return p.AttackMap().IsSet(sq)
}

// kingAttacked reports whether the king of color c is attacked by the
// opposite color. A missing king is never attacked.
func (p *Position) kingAttacked(c Color) bool {
	ksq := p.KingSquare(c)
	if ksq == NoSquare {
		return false
	}
	return p.AttacksBy(c.Other()).IsSet(ksq)
}

// InCheck returns true if the side to move is in check.
func (p *Position) InCheck() bool {
	return p.kingAttacked(p.SideToMove)
}
