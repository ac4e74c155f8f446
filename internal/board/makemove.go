package board

import "fmt"

// MakeMove applies a move to the position, updating the hash incrementally
// and counting the resulting position in the repetition table.
//
// The move is not checked for legality; callers that accept outside input
// should check IsLegal first. On error the position is left unchanged.
func (p *Position) MakeMove(m Move) error {
	next := *p
	if err := next.apply(m, true); err != nil {
		return err
	}
	*p = next
	p.Repetitions[p.Hash]++
	return nil
}

// simulate applies a move to a scratch copy of the position. The copy's hash
// is left stale and the repetition table is not touched.
func (p *Position) simulate(m Move) (Position, error) {
	next := *p
	err := next.apply(m, false)
	return next, err
}

// apply performs the board mutation for m. When hashing is set, every key
// whose condition changes is toggled into p.Hash.
//
// Castling rights are revoked when the mover's king or rook leaves its home
// square, and also when a rook is captured on its home corner. The second
// rule goes beyond revocation on departure alone: a rook that later lands
// on that corner no longer restores the right, and the hash reflects the
// reduced rights.
func (p *Position) apply(m Move, hashing bool) error {
	k := p.keys
	toggle := func(key uint64) {
		if hashing {
			p.Hash ^= key
		}
	}

	us := p.SideToMove
	them := us.Other()
	from, to := m.From(), m.To()
	if !from.IsValid() || !to.IsValid() {
		return fmt.Errorf("%w: %s", ErrMalformedMove, m)
	}

	piece := p.Squares[from]
	if piece == NoPiece || piece.Color() != us {
		return fmt.Errorf("%w: %s: no %s piece on %s", ErrIllegalMove, m, us, from)
	}
	pt := piece.Type()
	captured := p.Squares[to]
	oldRights := p.CastlingRights

	if pt == King && abs(int(to)-int(from)) == 2 {
		// Castling: the king moves two squares, the rook jumps next to it
		var rookFrom, rookTo Square
		if to > from {
			rookFrom, rookTo = to+1, to-1
		} else {
			rookFrom, rookTo = to-2, to+1
		}
		rook := p.Squares[rookFrom]
		if rook != NewPiece(Rook, us) {
			return fmt.Errorf("%w: castling %s without a rook on %s", ErrCorruptState, m, rookFrom)
		}

		p.Squares[from] = NoPiece
		p.Squares[to] = piece
		p.Squares[rookFrom] = NoPiece
		p.Squares[rookTo] = rook
		toggle(k.Piece[piece][from] ^ k.Piece[piece][to])
		toggle(k.Piece[rook][rookFrom] ^ k.Piece[rook][rookTo])
	} else {
		if pt == Pawn && to == p.EnPassant {
			// En passant: the captured pawn sits one row behind the target
			capSq, _ := to.offset(0, -us.forward())
			if p.Squares[capSq] != NewPiece(Pawn, them) {
				return fmt.Errorf("%w: en passant %s: no pawn to capture on %s", ErrCorruptState, m, capSq)
			}
			captured = p.Squares[capSq]
			p.Squares[capSq] = NoPiece
			toggle(k.Piece[captured][capSq])
		} else if captured != NoPiece {
			if captured.Color() == us {
				return fmt.Errorf("%w: %s captures own piece", ErrIllegalMove, m)
			}
			toggle(k.Piece[captured][to])
		}

		placed := piece
		if promo := m.Promotion(); promo != NoPieceType {
			if pt != Pawn {
				return fmt.Errorf("%w: %s promotes a %s", ErrIllegalMove, m, pt)
			}
			placed = NewPiece(promo, us)
		}

		p.Squares[from] = NoPiece
		p.Squares[to] = placed
		toggle(k.Piece[piece][from] ^ k.Piece[placed][to])
	}

	// Castling rights: king moves clear both, a rook leaving its corner
	// clears that side, and a rook captured on its corner clears the
	// opponent's right for that side.
	if pt == King {
		p.CastlingRights &^= bothRights(us)
	}
	if pt == Rook {
		p.CastlingRights &^= cornerRight(from) & bothRights(us)
	}
	if captured.Type() == Rook {
		p.CastlingRights &^= cornerRight(to) & bothRights(them)
	}
	toggle(k.castling(oldRights ^ p.CastlingRights))

	// En passant target: set only by a double pawn push
	oldEP := p.EnPassant
	p.EnPassant = NoSquare
	if pt == Pawn && abs(from.Row()-to.Row()) == 2 {
		p.EnPassant = NewSquare(from.File(), (from.Row()+to.Row())/2)
	}
	toggle(k.enPassant(oldEP) ^ k.enPassant(p.EnPassant))

	// Update half-move clock
	if pt == Pawn || captured != NoPiece || m.IsPromotion() {
		p.HalfMoveClock = 0
	} else {
		p.HalfMoveClock++
	}

	// Update full-move number
	if us == Black {
		p.FullMoveNumber++
	}

	p.SideToMove = them
	toggle(k.WhiteToMove)

	return nil
}
