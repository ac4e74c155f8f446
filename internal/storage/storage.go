package storage

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/hailam/chessrules/internal/board"
	"github.com/hailam/chessrules/internal/game"
)

// ErrGameNotFound is returned when no game is stored under an id.
var ErrGameNotFound = errors.New("game not found")

// Key prefix for stored games
const gamePrefix = "game/"

// record is the stored value of a game: its snapshot plus the move list
// played so far.
type record struct {
	Snapshot board.Snapshot `json:"snapshot"`
	Moves    []string       `json:"moves,omitempty"`
	SavedAt  time.Time      `json:"saved_at"`
}

// Store wraps BadgerDB for persistent game storage.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) a store in dir. An empty dir uses the platform
// database directory.
func Open(dir string) (*Store, error) {
	if dir == "" {
		var err error
		dir, err = GetDatabaseDir()
		if err != nil {
			return nil, err
		}
	}

	opts := badger.DefaultOptions(dir)
	opts.Logger = nil // Disable logging

	return open(opts)
}

// OpenInMemory opens a store that lives only as long as the process.
func OpenInMemory() (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	return open(opts)
}

func open(opts badger.Options) (*Store, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// NewGameID returns a fresh id. Ids sort by creation time.
func NewGameID() string {
	var suffix [4]byte
	_, _ = rand.Read(suffix[:])
	return fmt.Sprintf("%016x%s", time.Now().UnixNano(), hex.EncodeToString(suffix[:]))
}

func gameKey(id string) []byte {
	return []byte(gamePrefix + id)
}

// SaveGame stores the game under id, replacing any previous value.
func (s *Store) SaveGame(id string, g *game.Game) error {
	if id == "" || strings.Contains(id, "/") {
		return fmt.Errorf("invalid game id %q", id)
	}
	snap, err := g.Snapshot()
	if err != nil {
		return err
	}

	rec := record{Snapshot: snap, SavedAt: time.Now()}
	for _, m := range g.History() {
		rec.Moves = append(rec.Moves, m.String())
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(gameKey(id), data)
	})
}

// LoadGame restores the game stored under id together with its move list.
func (s *Store) LoadGame(id string) (*game.Game, error) {
	rec, err := s.get(id)
	if err != nil {
		return nil, err
	}
	return game.FromSnapshotWithHistory(rec.Snapshot, rec.Moves)
}

// StoredMoves returns the move texts recorded with the game under id.
func (s *Store) StoredMoves(id string) ([]string, error) {
	rec, err := s.get(id)
	if err != nil {
		return nil, err
	}
	return rec.Moves, nil
}

func (s *Store) get(id string) (record, error) {
	var rec record

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(gameKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrGameNotFound, id)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})

	return rec, err
}

// DeleteGame removes the game under id.
func (s *Store) DeleteGame(id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(gameKey(id)); errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrGameNotFound, id)
		} else if err != nil {
			return err
		}
		return txn.Delete(gameKey(id))
	})
}

// ListGames returns the stored game ids in key order.
func (s *Store) ListGames() ([]string, error) {
	var ids []string
	prefix := []byte(gamePrefix)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().Key()
			ids = append(ids, string(bytes.TrimPrefix(key, prefix)))
		}
		return nil
	})

	return ids, err
}
