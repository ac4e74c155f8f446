// Package game wraps a board.Position in the operations a host program
// needs: applying checked moves, querying terminal conditions and saving
// or restoring the game.
//
// A Game is not safe for concurrent use; hosts serialize access.
package game

import (
	"fmt"
	"io"

	"github.com/hailam/chessrules/internal/board"
)

// Game is a chess game in progress. The zero value is uninitialized and
// every operation on it returns board.ErrUninitialized.
type Game struct {
	pos     *board.Position
	history []board.Move
}

// Report collects every fact about the current position in one value.
type Report struct {
	FEN                  string   `json:"fen"`
	SideToMove           string   `json:"side_to_move"`
	Status               string   `json:"status"`
	Check                bool     `json:"check"`
	Checkmate            bool     `json:"checkmate"`
	Stalemate            bool     `json:"stalemate"`
	InsufficientMaterial bool     `json:"insufficient_material"`
	FiftyMoveRule        bool     `json:"fifty_move_rule"`
	ThreefoldRepetition  bool     `json:"threefold_repetition"`
	LegalMoves           []string `json:"legal_moves"`
	Hash                 string   `json:"hash"`
	HalfMoveClock        int      `json:"half_move_clock"`
	FullMoveNumber       int      `json:"full_move_number"`
	RepetitionCount      int      `json:"repetition_count"`
	EnPassantTarget      string   `json:"en_passant,omitempty"`
	CastlingRights       string   `json:"castling"`
	MovesPlayed          int      `json:"moves_played"`
}

// New starts a game from the standard initial position.
func New() *Game {
	return &Game{pos: board.NewPosition()}
}

// FromFEN starts a game from a FEN string with a fresh repetition history.
func FromFEN(fen string) (*Game, error) {
	pos, err := board.ParseFEN(fen)
	if err != nil {
		return nil, err
	}
	return &Game{pos: pos}, nil
}

// FromSnapshot restores a game from a snapshot.
func FromSnapshot(s board.Snapshot) (*Game, error) {
	pos, err := board.FromSnapshot(s)
	if err != nil {
		return nil, err
	}
	return &Game{pos: pos}, nil
}

// FromSnapshotWithHistory restores a game and the moves that led to it.
// The moves are kept as the game record only; the position comes from s.
func FromSnapshotWithHistory(s board.Snapshot, moves []string) (*Game, error) {
	g, err := FromSnapshot(s)
	if err != nil {
		return nil, err
	}
	for _, text := range moves {
		m, err := board.ParseMove(text)
		if err != nil {
			return nil, fmt.Errorf("%w: history: %w", board.ErrInvalidSnapshot, err)
		}
		g.history = append(g.history, m)
	}
	return g, nil
}

// Load restores a game from a JSON snapshot.
func Load(r io.Reader) (*Game, error) {
	pos, err := board.Load(r)
	if err != nil {
		return nil, err
	}
	return &Game{pos: pos}, nil
}

// Save writes the game as a JSON snapshot.
func (g *Game) Save(w io.Writer) error {
	if err := g.check(); err != nil {
		return err
	}
	return board.Save(w, g.pos)
}

// Snapshot returns the persisted form of the game.
func (g *Game) Snapshot() (board.Snapshot, error) {
	if err := g.check(); err != nil {
		return board.Snapshot{}, err
	}
	return g.pos.Snapshot(), nil
}

func (g *Game) check() error {
	if g == nil || g.pos == nil {
		return board.ErrUninitialized
	}
	return nil
}

// Position returns a deep copy of the current position.
func (g *Game) Position() (*board.Position, error) {
	if err := g.check(); err != nil {
		return nil, err
	}
	return g.pos.Copy(), nil
}

// LegalMoves returns the legal moves in generation order.
func (g *Game) LegalMoves() ([]board.Move, error) {
	if err := g.check(); err != nil {
		return nil, err
	}
	return g.pos.LegalMoves().Slice(), nil
}

// Apply plays m if it is legal. An illegal move returns an error wrapping
// board.ErrIllegalMove and leaves the game unchanged.
func (g *Game) Apply(m board.Move) error {
	if err := g.check(); err != nil {
		return err
	}
	if !g.pos.IsLegal(m) {
		return fmt.Errorf("%w: %s", board.ErrIllegalMove, m)
	}
	if err := g.pos.MakeMove(m); err != nil {
		return err
	}
	g.history = append(g.history, m)
	return nil
}

// ApplyText parses move text such as "e2e4" or "e7e8q" and plays it.
func (g *Game) ApplyText(text string) error {
	if err := g.check(); err != nil {
		return err
	}
	m, err := board.ParseMove(text)
	if err != nil {
		return err
	}
	return g.Apply(m)
}

// History returns the moves played since the game was created or loaded.
func (g *Game) History() []board.Move {
	if g == nil {
		return nil
	}
	out := make([]board.Move, len(g.history))
	copy(out, g.history)
	return out
}

// IsCheck reports whether the side to move is in check.
func (g *Game) IsCheck() (bool, error) {
	if err := g.check(); err != nil {
		return false, err
	}
	return g.pos.InCheck(), nil
}

// IsCheckmate reports whether the side to move is checkmated.
func (g *Game) IsCheckmate() (bool, error) {
	if err := g.check(); err != nil {
		return false, err
	}
	return g.pos.IsCheckmate(), nil
}

// IsStalemate reports whether the side to move is stalemated.
func (g *Game) IsStalemate() (bool, error) {
	if err := g.check(); err != nil {
		return false, err
	}
	return g.pos.IsStalemate(), nil
}

// HasInsufficientMaterial reports whether neither side can mate.
func (g *Game) HasInsufficientMaterial() (bool, error) {
	if err := g.check(); err != nil {
		return false, err
	}
	return g.pos.IsInsufficientMaterial(), nil
}

// FiftyMoveRuleTriggered reports whether 100 plies have passed without a
// pawn move or capture.
func (g *Game) FiftyMoveRuleTriggered() (bool, error) {
	if err := g.check(); err != nil {
		return false, err
	}
	return g.pos.IsFiftyMoveRule(), nil
}

// IsThreefoldRepetition reports whether the current position has occurred
// three or more times.
func (g *Game) IsThreefoldRepetition() (bool, error) {
	if err := g.check(); err != nil {
		return false, err
	}
	return g.pos.IsThreefoldRepetition(), nil
}

// Status gathers the current facts into a Report.
func (g *Game) Status() (Report, error) {
	if err := g.check(); err != nil {
		return Report{}, err
	}
	p := g.pos

	moves := p.LegalMoves()
	inCheck := p.InCheck()
	r := Report{
		FEN:                  p.FEN(),
		SideToMove:           "white",
		Status:               p.Status().String(),
		Check:                inCheck,
		Checkmate:            inCheck && moves.Len() == 0,
		Stalemate:            !inCheck && moves.Len() == 0,
		InsufficientMaterial: p.IsInsufficientMaterial(),
		FiftyMoveRule:        p.IsFiftyMoveRule(),
		ThreefoldRepetition:  p.IsThreefoldRepetition(),
		LegalMoves:           moves.Strings(),
		Hash:                 fmt.Sprintf("%016x", p.Hash),
		HalfMoveClock:        p.HalfMoveClock,
		FullMoveNumber:       p.FullMoveNumber,
		RepetitionCount:      p.RepetitionCount(),
		CastlingRights:       p.CastlingRights.String(),
		MovesPlayed:          len(g.history),
	}
	if p.SideToMove == board.Black {
		r.SideToMove = "black"
	}
	if ep, ok := p.EnPassantTarget(); ok {
		r.EnPassantTarget = ep.String()
	}
	return r, nil
}

// Perft counts leaf nodes of the legal move tree to the given depth.
func (g *Game) Perft(depth int) (int64, error) {
	if err := g.check(); err != nil {
		return 0, err
	}
	return g.pos.Perft(depth), nil
}

// String returns a text diagram of the position.
func (g *Game) String() string {
	if g.check() != nil {
		return "<uninitialized game>"
	}
	return g.pos.String()
}
