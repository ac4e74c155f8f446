package board

import (
	"encoding/json"
	"fmt"
	"io"
)

// CastlingFlags is the persisted form of the four castling rights.
type CastlingFlags struct {
	WhiteKingSide  bool `json:"white_kingside"`
	WhiteQueenSide bool `json:"white_queenside"`
	BlackKingSide  bool `json:"black_kingside"`
	BlackQueenSide bool `json:"black_queenside"`
}

// Snapshot is the persisted form of a Position. Squares holds one FEN
// letter per square, index 0 = a8, with " " for an empty square.
type Snapshot struct {
	KeyVersion       int            `json:"key_version"`
	Squares          [64]string     `json:"squares"`
	SideToMove       string         `json:"side_to_move"`
	Castling         CastlingFlags  `json:"castling"`
	EnPassant        string         `json:"en_passant,omitempty"`
	HalfMoveClock    int            `json:"half_move_clock"`
	FullMoveNumber   int            `json:"full_move_number"`
	PositionHash     uint64         `json:"position_hash"`
	RepetitionCounts map[uint64]int `json:"repetition_counts"`
}

// Snapshot captures the position, its hash and its repetition table.
func (p *Position) Snapshot() Snapshot {
	s := Snapshot{
		KeyVersion:     p.keys.Version,
		SideToMove:     "w",
		HalfMoveClock:  p.HalfMoveClock,
		FullMoveNumber: p.FullMoveNumber,
		PositionHash:   p.Hash,
		Castling: CastlingFlags{
			WhiteKingSide:  p.CastlingRights&WhiteKingSideCastle != 0,
			WhiteQueenSide: p.CastlingRights&WhiteQueenSideCastle != 0,
			BlackKingSide:  p.CastlingRights&BlackKingSideCastle != 0,
			BlackQueenSide: p.CastlingRights&BlackQueenSideCastle != 0,
		},
		RepetitionCounts: p.Copy().Repetitions,
	}
	for sq, piece := range p.Squares {
		s.Squares[sq] = piece.String()
	}
	if p.SideToMove == Black {
		s.SideToMove = "b"
	}
	if p.EnPassant != NoSquare {
		s.EnPassant = p.EnPassant.String()
	}
	return s
}

// FromSnapshot restores a position. The hash and repetition table are taken
// as stored and are not re-derived from the board.
func FromSnapshot(s Snapshot) (*Position, error) {
	if s.KeyVersion != KeyTableVersion {
		return nil, fmt.Errorf("%w: key table version %d, want %d", ErrInvalidSnapshot, s.KeyVersion, KeyTableVersion)
	}

	pos := emptyPosition()

	for sq, letter := range s.Squares {
		switch {
		case letter == " " || letter == "":
			pos.Squares[sq] = NoPiece
		case len(letter) == 1 && PieceFromChar(letter[0]) != NoPiece:
			pos.Squares[sq] = PieceFromChar(letter[0])
		default:
			return nil, fmt.Errorf("%w: bad piece %q on %s", ErrInvalidSnapshot, letter, Square(sq))
		}
	}

	switch s.SideToMove {
	case "w":
		pos.SideToMove = White
	case "b":
		pos.SideToMove = Black
	default:
		return nil, fmt.Errorf("%w: invalid side to move %q", ErrInvalidSnapshot, s.SideToMove)
	}

	if s.Castling.WhiteKingSide {
		pos.CastlingRights |= WhiteKingSideCastle
	}
	if s.Castling.WhiteQueenSide {
		pos.CastlingRights |= WhiteQueenSideCastle
	}
	if s.Castling.BlackKingSide {
		pos.CastlingRights |= BlackKingSideCastle
	}
	if s.Castling.BlackQueenSide {
		pos.CastlingRights |= BlackQueenSideCastle
	}

	if s.EnPassant != "" {
		sq, err := ParseSquare(s.EnPassant)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
		}
		pos.EnPassant = sq
	}

	pos.HalfMoveClock = s.HalfMoveClock
	if s.FullMoveNumber > 0 {
		pos.FullMoveNumber = s.FullMoveNumber
	}

	if err := pos.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}

	pos.Hash = s.PositionHash
	pos.Repetitions = make(map[uint64]int, len(s.RepetitionCounts))
	for h, n := range s.RepetitionCounts {
		if n < 0 {
			return nil, fmt.Errorf("%w: negative repetition count for %016x", ErrInvalidSnapshot, h)
		}
		pos.Repetitions[h] = n
	}

	return pos, nil
}

// Save writes the position snapshot as JSON.
func Save(w io.Writer, p *Position) error {
	if p == nil {
		return ErrUninitialized
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(p.Snapshot())
}

// Load reads a JSON snapshot written by Save.
func Load(r io.Reader) (*Position, error) {
	var s Snapshot
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	return FromSnapshot(s)
}
