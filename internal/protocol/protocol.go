// Package protocol implements a line-oriented text protocol for driving a
// game from a terminal or another process.
package protocol

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hailam/chessrules/internal/board"
	"github.com/hailam/chessrules/internal/game"
	"github.com/hailam/chessrules/internal/render"
	"github.com/hailam/chessrules/internal/storage"
)

// errUsage marks a command given the wrong arguments.
var errUsage = errors.New("usage")

// Session reads commands from in and writes replies to out. A session owns
// its game; it is not safe for concurrent use.
type Session struct {
	in    io.Reader
	out   io.Writer
	game  *game.Game
	store *storage.Store
}

// New creates a session on the standard starting position. store may be
// nil, in which case store and restore report an error.
func New(in io.Reader, out io.Writer, store *storage.Store) *Session {
	return &Session{
		in:    in,
		out:   out,
		game:  game.New(),
		store: store,
	}
}

// Game returns the session's current game.
func (s *Session) Game() *game.Game {
	return s.game
}

// Run reads commands until quit or end of input. A bad command is reported
// on its own line and never ends the loop.
func (s *Session) Run() error {
	scanner := bufio.NewScanner(s.in)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Fields(line)
		cmd := parts[0]
		args := parts[1:]

		if cmd == "quit" {
			return nil
		}
		if err := s.dispatch(cmd, args); err != nil {
			s.printf("error %s: %v\n", errorKind(err), err)
		}
	}

	return scanner.Err()
}

func (s *Session) dispatch(cmd string, args []string) error {
	switch cmd {
	case "new":
		s.game = game.New()
		s.println("ok")
	case "fen":
		return s.handleFEN(args)
	case "position":
		return s.handlePosition(args)
	case "moves":
		return s.handleMoves()
	case "move":
		return s.handleMove(args)
	case "status":
		return s.handleStatus()
	case "d":
		s.println(s.game.String())
	case "perft":
		return s.handlePerft(args)
	case "history":
		return s.handleHistory()
	case "save":
		return s.handleSave(args)
	case "load":
		return s.handleLoad(args)
	case "store":
		return s.handleStore(args)
	case "restore":
		return s.handleRestore(args)
	case "png":
		return s.handlePNG(args)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
	return nil
}

// handleFEN replaces the game with the given position.
func (s *Session) handleFEN(args []string) error {
	if len(args) == 0 {
		r, err := s.game.Status()
		if err != nil {
			return err
		}
		s.println(r.FEN)
		return nil
	}
	g, err := game.FromFEN(strings.Join(args, " "))
	if err != nil {
		return err
	}
	s.game = g
	s.println("ok")
	return nil
}

// handlePosition parses and sets up a position.
// Formats:
//   - position startpos
//   - position startpos moves e2e4 e7e5
//   - position fen <fen>
//   - position fen <fen> moves e2e4
func (s *Session) handlePosition(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: position startpos|fen <fen> [moves ...]", errUsage)
	}

	// Find "moves" keyword
	movesAt := len(args)
	for i, arg := range args {
		if arg == "moves" {
			movesAt = i
			break
		}
	}

	var g *game.Game
	switch args[0] {
	case "startpos":
		g = game.New()
	case "fen":
		var err error
		g, err = game.FromFEN(strings.Join(args[1:movesAt], " "))
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: position startpos|fen <fen> [moves ...]", errUsage)
	}

	if movesAt < len(args) {
		for _, text := range args[movesAt+1:] {
			if err := g.ApplyText(text); err != nil {
				return err
			}
		}
	}

	s.game = g
	s.println("ok")
	return nil
}

func (s *Session) handleMoves() error {
	moves, err := s.game.LegalMoves()
	if err != nil {
		return err
	}
	texts := make([]string, len(moves))
	for i, m := range moves {
		texts[i] = m.String()
	}
	s.println(strings.Join(texts, " "))
	return nil
}

// handleMove plays each move in turn, stopping at the first failure.
func (s *Session) handleMove(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: move <move>...", errUsage)
	}
	for _, text := range args {
		if err := s.game.ApplyText(text); err != nil {
			return err
		}
	}
	r, err := s.game.Status()
	if err != nil {
		return err
	}
	s.printf("ok %s\n", r.Status)
	return nil
}

func (s *Session) handleStatus() error {
	r, err := s.game.Status()
	if err != nil {
		return err
	}
	s.printf("fen %s\n", r.FEN)
	s.printf("side %s\n", r.SideToMove)
	s.printf("status %s\n", r.Status)
	s.printf("check %t\n", r.Check)
	s.printf("hash %s\n", r.Hash)
	s.printf("halfmove %d\n", r.HalfMoveClock)
	s.printf("repetitions %d\n", r.RepetitionCount)
	s.printf("legal %d\n", len(r.LegalMoves))
	return nil
}

// maxPerftDepth is the deepest perft the loop accepts.
const maxPerftDepth = 7

// handlePerft runs a perft test.
func (s *Session) handlePerft(args []string) error {
	depth := 3
	if len(args) > 0 {
		d, err := strconv.Atoi(args[0])
		if err != nil || d < 0 || d > maxPerftDepth {
			return fmt.Errorf("%w: perft <depth 0-%d>", errUsage, maxPerftDepth)
		}
		depth = d
	}

	start := time.Now()
	nodes, err := s.game.Perft(depth)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	s.printf("Nodes: %d\n", nodes)
	s.printf("Time: %v\n", elapsed)
	if elapsed > 0 {
		nps := float64(nodes) / elapsed.Seconds()
		s.printf("NPS: %.0f\n", nps)
	}
	return nil
}

func (s *Session) handleHistory() error {
	moves := s.game.History()
	texts := make([]string, len(moves))
	for i, m := range moves {
		texts[i] = m.String()
	}
	s.println(strings.Join(texts, " "))
	return nil
}

func (s *Session) handleSave(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: save <file>", errUsage)
	}
	f, err := os.Create(args[0])
	if err != nil {
		return err
	}
	if err := s.game.Save(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	s.println("ok")
	return nil
}

func (s *Session) handleLoad(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: load <file>", errUsage)
	}
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	g, err := game.Load(f)
	if err != nil {
		return err
	}
	s.game = g
	s.println("ok")
	return nil
}

func (s *Session) handleStore(args []string) error {
	if s.store == nil {
		return errors.New("no database configured")
	}
	id := storage.NewGameID()
	if len(args) > 0 {
		id = args[0]
	}
	if err := s.store.SaveGame(id, s.game); err != nil {
		return err
	}
	s.printf("ok %s\n", id)
	return nil
}

func (s *Session) handleRestore(args []string) error {
	if s.store == nil {
		return errors.New("no database configured")
	}
	if len(args) != 1 {
		return fmt.Errorf("%w: restore <id>", errUsage)
	}
	g, err := s.store.LoadGame(args[0])
	if err != nil {
		return err
	}
	s.game = g
	s.println("ok")
	return nil
}

// handlePNG writes a diagram: png <file> [size] [flip].
func (s *Session) handlePNG(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: png <file> [size] [flip]", errUsage)
	}
	opts := render.Options{Coords: true}
	for _, arg := range args[1:] {
		if arg == "flip" {
			opts.Flip = true
			continue
		}
		size, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("%w: png <file> [size] [flip]", errUsage)
		}
		opts.SquareSize = size
	}

	pos, err := s.game.Position()
	if err != nil {
		return err
	}
	data, err := render.PNG(pos, opts)
	if err != nil {
		return err
	}
	if err := os.WriteFile(args[0], data, 0644); err != nil {
		return err
	}
	s.println("ok")
	return nil
}

func (s *Session) println(a ...any) {
	fmt.Fprintln(s.out, a...)
}

func (s *Session) printf(format string, a ...any) {
	fmt.Fprintf(s.out, format, a...)
}

// errorKind names the class of err for the reply line.
func errorKind(err error) string {
	switch {
	case errors.Is(err, board.ErrIllegalMove):
		return "illegal_move"
	case errors.Is(err, board.ErrMalformedMove):
		return "malformed_move"
	case errors.Is(err, board.ErrInvalidFEN):
		return "invalid_fen"
	case errors.Is(err, board.ErrInvalidSnapshot):
		return "invalid_snapshot"
	case errors.Is(err, board.ErrCorruptState):
		return "corrupt_state"
	case errors.Is(err, board.ErrUninitialized):
		return "uninitialized"
	case errors.Is(err, storage.ErrGameNotFound):
		return "not_found"
	case errors.Is(err, errUsage):
		return "usage"
	default:
		return "failed"
	}
}
