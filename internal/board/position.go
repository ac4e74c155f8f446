package board

import (
	"fmt"
	"strings"

	"golang.org/x/exp/maps"
)

// CastlingRights represents the available castling options.
// The four rights are independent bits and are only ever cleared.
type CastlingRights uint8

const (
	WhiteKingSideCastle  CastlingRights = 1 << iota // K
	WhiteQueenSideCastle                            // Q
	BlackKingSideCastle                             // k
	BlackQueenSideCastle                            // q
	NoCastling           CastlingRights = 0
	AllCastling          CastlingRights = WhiteKingSideCastle | WhiteQueenSideCastle | BlackKingSideCastle | BlackQueenSideCastle
)

// String returns the FEN castling rights string.
func (cr CastlingRights) String() string {
	if cr == NoCastling {
		return "-"
	}
	s := ""
	if cr&WhiteKingSideCastle != 0 {
		s += "K"
	}
	if cr&WhiteQueenSideCastle != 0 {
		s += "Q"
	}
	if cr&BlackKingSideCastle != 0 {
		s += "k"
	}
	if cr&BlackQueenSideCastle != 0 {
		s += "q"
	}
	return s
}

// CanCastle returns true if the right for the given side and direction is held.
func (cr CastlingRights) CanCastle(c Color, kingSide bool) bool {
	return cr&castleRight(c, kingSide) != 0
}

func castleRight(c Color, kingSide bool) CastlingRights {
	if c == White {
		if kingSide {
			return WhiteKingSideCastle
		}
		return WhiteQueenSideCastle
	}
	if kingSide {
		return BlackKingSideCastle
	}
	return BlackQueenSideCastle
}

// bothRights returns the two castling rights of a color.
func bothRights(c Color) CastlingRights {
	if c == White {
		return WhiteKingSideCastle | WhiteQueenSideCastle
	}
	return BlackKingSideCastle | BlackQueenSideCastle
}

// cornerRight returns the castling right tied to a rook corner square.
func cornerRight(sq Square) CastlingRights {
	switch sq {
	case H1:
		return WhiteKingSideCastle
	case A1:
		return WhiteQueenSideCastle
	case H8:
		return BlackKingSideCastle
	case A8:
		return BlackQueenSideCastle
	}
	return NoCastling
}

// Position represents a complete chess position together with the
// repetition history of the game that reached it.
type Position struct {
	Squares [64]Piece

	// Game state
	SideToMove     Color
	CastlingRights CastlingRights
	EnPassant      Square // Square passed over by a double pawn push, NoSquare if none
	HalfMoveClock  int    // Plies since last pawn move or capture (for 50-move rule)
	FullMoveNumber int    // Full move counter, starts at 1; not part of the hash

	// Zobrist hash, maintained incrementally
	Hash uint64

	// Occurrences of each hash over the game, including the current position
	Repetitions map[uint64]int

	keys *ZobristKeys
}

var startSquares = [64]Piece{
	BlackRook, BlackKnight, BlackBishop, BlackQueen, BlackKing, BlackBishop, BlackKnight, BlackRook,
	BlackPawn, BlackPawn, BlackPawn, BlackPawn, BlackPawn, BlackPawn, BlackPawn, BlackPawn,
	NoPiece, NoPiece, NoPiece, NoPiece, NoPiece, NoPiece, NoPiece, NoPiece,
	NoPiece, NoPiece, NoPiece, NoPiece, NoPiece, NoPiece, NoPiece, NoPiece,
	NoPiece, NoPiece, NoPiece, NoPiece, NoPiece, NoPiece, NoPiece, NoPiece,
	NoPiece, NoPiece, NoPiece, NoPiece, NoPiece, NoPiece, NoPiece, NoPiece,
	WhitePawn, WhitePawn, WhitePawn, WhitePawn, WhitePawn, WhitePawn, WhitePawn, WhitePawn,
	WhiteRook, WhiteKnight, WhiteBishop, WhiteQueen, WhiteKing, WhiteBishop, WhiteKnight, WhiteRook,
}

// NewPosition creates the starting position.
func NewPosition() *Position {
	p := &Position{
		Squares:        startSquares,
		SideToMove:     White,
		CastlingRights: AllCastling,
		EnPassant:      NoSquare,
		FullMoveNumber: 1,
		keys:           DefaultKeys(),
	}
	p.resetHistory()
	return p
}

// emptyPosition returns a cleared board with no rights and no history.
func emptyPosition() *Position {
	p := &Position{
		EnPassant:      NoSquare,
		FullMoveNumber: 1,
		keys:           DefaultKeys(),
	}
	for sq := range p.Squares {
		p.Squares[sq] = NoPiece
	}
	return p
}

// resetHistory computes the hash from scratch and starts a new repetition
// table containing only the current position.
func (p *Position) resetHistory() {
	p.Hash = p.ComputeHash()
	p.Repetitions = map[uint64]int{p.Hash: 1}
}

// Copy creates a deep copy of the position, including its repetition table.
func (p *Position) Copy() *Position {
	newPos := *p
	newPos.Repetitions = make(map[uint64]int, len(p.Repetitions))
	maps.Copy(newPos.Repetitions, p.Repetitions)
	return &newPos
}

// Keys returns the Zobrist key table the position is hashed with.
func (p *Position) Keys() *ZobristKeys {
	return p.keys
}

// PieceAt returns the piece at the given square, or NoPiece if empty.
func (p *Position) PieceAt(sq Square) Piece {
	if !sq.IsValid() {
		return NoPiece
	}
	return p.Squares[sq]
}

// IsEmpty returns true if the square is empty.
func (p *Position) IsEmpty(sq Square) bool {
	return p.PieceAt(sq) == NoPiece
}

// EnPassantTarget returns the en passant target square, if one is set.
func (p *Position) EnPassantTarget() (Square, bool) {
	return p.EnPassant, p.EnPassant != NoSquare
}

// KingSquare returns the square of the given color's king, or NoSquare
// when that king is not on the board.
func (p *Position) KingSquare(c Color) Square {
	king := NewPiece(King, c)
	for sq, piece := range p.Squares {
		if piece == king {
			return Square(sq)
		}
	}
	return NoSquare
}

// RepetitionCount returns how often the current position has occurred.
func (p *Position) RepetitionCount() int {
	return p.Repetitions[p.Hash]
}

// count returns the number of pieces of the given type and color.
func (p *Position) count(pt PieceType, c Color) int {
	n := 0
	piece := NewPiece(pt, c)
	for _, sq := range p.Squares {
		if sq == piece {
			n++
		}
	}
	return n
}

// String returns a visual representation of the position.
func (p *Position) String() string {
	var sb strings.Builder
	sb.WriteString("\n")
	for row := 0; row < 8; row++ {
		fmt.Fprintf(&sb, "%d  ", 8-row)
		for file := 0; file < 8; file++ {
			piece := p.Squares[NewSquare(file, row)]
			if piece == NoPiece {
				sb.WriteString(". ")
			} else {
				sb.WriteString(piece.String() + " ")
			}
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n   a b c d e f g h\n\n")
	fmt.Fprintf(&sb, "Side to move: %s\n", p.SideToMove)
	fmt.Fprintf(&sb, "Castling: %s\n", p.CastlingRights)
	fmt.Fprintf(&sb, "En passant: %s\n", p.EnPassant)
	fmt.Fprintf(&sb, "Half-move clock: %d\n", p.HalfMoveClock)
	fmt.Fprintf(&sb, "Full move: %d\n", p.FullMoveNumber)
	fmt.Fprintf(&sb, "Hash: %016x\n", p.Hash)
	fmt.Fprintf(&sb, "Repetitions: %d\n", p.RepetitionCount())
	return sb.String()
}

// Validate checks the structural invariants the move generator relies on.
func (p *Position) Validate() error {
	if p.SideToMove != White && p.SideToMove != Black {
		return fmt.Errorf("%w: invalid side to move", ErrCorruptState)
	}

	// Check that each side has exactly one king
	if n := p.count(King, White); n != 1 {
		return fmt.Errorf("%w: white must have exactly one king, found %d", ErrCorruptState, n)
	}
	if n := p.count(King, Black); n != 1 {
		return fmt.Errorf("%w: black must have exactly one king, found %d", ErrCorruptState, n)
	}

	if err := p.validateMaterial(White); err != nil {
		return err
	}
	if err := p.validateMaterial(Black); err != nil {
		return err
	}

	// Check that pawns are not on rank 1 or 8
	for sq, piece := range p.Squares {
		row := Square(sq).Row()
		if piece.Type() == Pawn && (row == 0 || row == 7) {
			return fmt.Errorf("%w: pawn on %s", ErrCorruptState, Square(sq))
		}
	}

	if p.EnPassant != NoSquare {
		if err := p.validateEnPassant(); err != nil {
			return err
		}
	}

	if p.HalfMoveClock < 0 {
		return fmt.Errorf("%w: negative half-move clock", ErrCorruptState)
	}

	return nil
}

// validateMaterial rejects piece counts no game can reach: at most eight
// pawns, and every piece beyond the initial set must be a promoted pawn.
func (p *Position) validateMaterial(c Color) error {
	pawns := p.count(Pawn, c)
	if pawns > 8 {
		return fmt.Errorf("%w: %s has %d pawns", ErrCorruptState, c, pawns)
	}
	promoted := 0
	for _, pt := range [...]PieceType{Knight, Bishop, Rook, Queen} {
		initial := 2
		if pt == Queen {
			initial = 1
		}
		if n := p.count(pt, c); n > initial {
			promoted += n - initial
		}
	}
	if promoted > 8-pawns {
		return fmt.Errorf("%w: %s has %d promoted pieces with %d pawns left", ErrCorruptState, c, promoted, pawns)
	}
	return nil
}

// validateEnPassant checks that the target lies behind a pawn that has just
// double-stepped: rank 3 after a white push, rank 6 after a black push.
func (p *Position) validateEnPassant() error {
	ep := p.EnPassant
	if !ep.IsValid() {
		return fmt.Errorf("%w: en passant target out of range", ErrCorruptState)
	}
	mover := p.SideToMove.Other()
	wantRank := 3
	if mover == Black {
		wantRank = 6
	}
	if ep.Rank() != wantRank {
		return fmt.Errorf("%w: en passant target %s not on rank %d", ErrCorruptState, ep, wantRank)
	}
	pawnSq, _ := ep.offset(0, mover.forward())
	if p.Squares[pawnSq] != NewPiece(Pawn, mover) {
		return fmt.Errorf("%w: no pawn behind en passant target %s", ErrCorruptState, ep)
	}
	return nil
}
