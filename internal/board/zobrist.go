package board

import "math/bits"

// KeyTableVersion identifies the Zobrist key layout and seed below.
// Persisted hashes are only comparable between equal versions; bump it
// whenever the seed, the PRNG, or the key order changes.
const KeyTableVersion = 1

// keyTableSeedV1 seeds the version 1 key table.
const keyTableSeedV1 uint64 = 0x71C7_02A5_3E9D_4B11

// ZobristKeys is a table of random keys for incremental position hashing.
//
// The hash of a position is the XOR of
//   - Piece[piece][square] for every occupied square,
//   - WhiteToMove when White is to move,
//   - Castling[i] for each castling right i still held,
//   - EnPassant[file] when an en passant target is set.
type ZobristKeys struct {
	Version     int
	Piece       [12][64]uint64
	WhiteToMove uint64
	Castling    [4]uint64 // indexed by castling right bit position
	EnPassant   [8]uint64 // one per file
}

// Simple PRNG for reproducible Zobrist keys
type prng struct {
	state uint64
}

func newPRNG(seed uint64) *prng {
	return &prng{state: seed}
}

// xorshift64* algorithm
func (p *prng) next() uint64 {
	p.state ^= p.state >> 12
	p.state ^= p.state << 25
	p.state ^= p.state >> 27
	return p.state * 0x2545F4914F6CDD1D
}

// NewZobristKeys builds a key table from the given seed. Equal seeds always
// produce equal tables.
func NewZobristKeys(seed uint64) *ZobristKeys {
	rng := newPRNG(seed)
	k := &ZobristKeys{}

	for p := WhitePawn; p < NoPiece; p++ {
		for sq := A8; sq <= H1; sq++ {
			k.Piece[p][sq] = rng.next()
		}
	}

	k.WhiteToMove = rng.next()

	for i := range k.Castling {
		k.Castling[i] = rng.next()
	}

	for file := range k.EnPassant {
		k.EnPassant[file] = rng.next()
	}

	return k
}

var defaultKeys = func() *ZobristKeys {
	k := NewZobristKeys(keyTableSeedV1)
	k.Version = KeyTableVersion
	return k
}()

// DefaultKeys returns the key table used by positions created in this
// package.
func DefaultKeys() *ZobristKeys {
	return defaultKeys
}

// castling returns the XOR of the keys for every right in cr.
func (k *ZobristKeys) castling(cr CastlingRights) uint64 {
	var h uint64
	for cr != 0 {
		i := bits.TrailingZeros8(uint8(cr))
		h ^= k.Castling[i]
		cr &= cr - 1
	}
	return h
}

// enPassant returns the key for an en passant target, or 0 when none is set.
func (k *ZobristKeys) enPassant(sq Square) uint64 {
	if sq == NoSquare {
		return 0
	}
	return k.EnPassant[sq.File()]
}

// ComputeHash computes the Zobrist hash of the position from scratch.
// The live hash is maintained incrementally by MakeMove; this is used
// once at construction and to check the incremental value.
func (p *Position) ComputeHash() uint64 {
	k := p.keys
	var hash uint64

	for sq, piece := range p.Squares {
		if piece != NoPiece {
			hash ^= k.Piece[piece][sq]
		}
	}

	if p.SideToMove == White {
		hash ^= k.WhiteToMove
	}

	hash ^= k.castling(p.CastlingRights)
	hash ^= k.enPassant(p.EnPassant)

	return hash
}
