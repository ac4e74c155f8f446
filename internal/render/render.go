// Package render draws board diagrams as PNG images.
package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"
	"sync"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/hailam/chessrules/internal/board"
)

// Options controls the diagram layout.
type Options struct {
	SquareSize int  // pixels per square, DefaultSquareSize when zero
	Flip       bool // draw with rank 1 at the top
	Coords     bool // draw file and rank labels
}

// DefaultSquareSize is used when Options.SquareSize is not set.
const DefaultSquareSize = 48

// Board colours
const (
	lightSquare = "#f0d9b5"
	darkSquare  = "#b58863"
	checkColour = "#e0473d"
	epColour    = "#7fa650"
)

var (
	whiteInk = color.RGBA{0x20, 0x20, 0x20, 0xff}
	blackInk = color.RGBA{0xf8, 0xf8, 0xf8, 0xff}
	labelInk = color.RGBA{0x40, 0x30, 0x20, 0xff}
)

var (
	fontOnce sync.Once
	boldFont *opentype.Font
	fontErr  error
)

func loadFont() (*opentype.Font, error) {
	fontOnce.Do(func() {
		boldFont, fontErr = opentype.Parse(gobold.TTF)
	})
	return boldFont, fontErr
}

// Render writes a PNG diagram of pos to w.
func Render(w io.Writer, pos *board.Position, opts Options) error {
	img, err := RenderImage(pos, opts)
	if err != nil {
		return err
	}
	return png.Encode(w, img)
}

// RenderImage draws a diagram of pos. Squares and piece discs come from an
// SVG document rasterized with oksvg; piece letters are drawn on top with
// the Go bold font.
func RenderImage(pos *board.Position, opts Options) (*image.RGBA, error) {
	if pos == nil {
		return nil, board.ErrUninitialized
	}
	size := opts.SquareSize
	if size <= 0 {
		size = DefaultSquareSize
	}
	side := size * 8

	icon, err := oksvg.ReadIconStream(strings.NewReader(boardSVG(pos, size, opts.Flip)))
	if err != nil {
		return nil, fmt.Errorf("parse board svg: %w", err)
	}
	icon.SetTarget(0, 0, float64(side), float64(side))

	rgba := image.NewRGBA(image.Rect(0, 0, side, side))
	scanner := rasterx.NewScannerGV(side, side, rgba, rgba.Bounds())
	raster := rasterx.NewDasher(side, side, scanner)
	icon.Draw(raster, 1.0)

	f, err := loadFont()
	if err != nil {
		return nil, fmt.Errorf("load font: %w", err)
	}
	if err := drawLetters(rgba, f, pos, size, opts); err != nil {
		return nil, err
	}
	return rgba, nil
}

// cell returns the top-left pixel of sq in the diagram.
func cell(sq board.Square, size int, flip bool) (x, y int) {
	file, row := sq.File(), sq.Row()
	if flip {
		file, row = 7-file, 7-row
	}
	return file * size, row * size
}

// boardSVG builds the SVG document for the squares, highlights and discs.
func boardSVG(pos *board.Position, size int, flip bool) string {
	var sb strings.Builder
	side := size * 8
	fmt.Fprintf(&sb, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`, side, side, side, side)

	checked := board.NoSquare
	if pos.InCheck() {
		checked = pos.KingSquare(pos.SideToMove)
	}
	ep, hasEP := pos.EnPassantTarget()

	for sq := board.A8; sq <= board.H1; sq++ {
		x, y := cell(sq, size, flip)
		fill := lightSquare
		if sq.Shade() == 1 {
			fill = darkSquare
		}
		switch {
		case sq == checked:
			fill = checkColour
		case hasEP && sq == ep:
			fill = epColour
		}
		fmt.Fprintf(&sb, `<rect x="%d" y="%d" width="%d" height="%d" fill="%s"/>`, x, y, size, size, fill)

		piece := pos.PieceAt(sq)
		if piece == board.NoPiece {
			continue
		}
		disc, rim := "#fafafa", "#202020"
		if piece.Color() == board.Black {
			disc, rim = "#202020", "#fafafa"
		}
		r := float64(size) * 0.4
		fmt.Fprintf(&sb, `<circle cx="%d" cy="%d" r="%.1f" fill="%s" stroke="%s" stroke-width="%.1f"/>`,
			x+size/2, y+size/2, r, disc, rim, float64(size)/24)
	}

	sb.WriteString(`</svg>`)
	return sb.String()
}

// drawLetters writes the piece letters into their discs and, when asked,
// the coordinate labels along the edges.
func drawLetters(dst *image.RGBA, f *opentype.Font, pos *board.Position, size int, opts Options) error {
	pieceFace, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    float64(size) * 0.5,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return fmt.Errorf("piece face: %w", err)
	}
	defer pieceFace.Close()

	for sq := board.A8; sq <= board.H1; sq++ {
		piece := pos.PieceAt(sq)
		if piece == board.NoPiece {
			continue
		}
		ink := whiteInk
		if piece.Color() == board.Black {
			ink = blackInk
		}
		letter := strings.ToUpper(piece.String())
		x, y := cell(sq, size, opts.Flip)
		drawCentered(dst, pieceFace, ink, letter, x, y, size)
	}

	if !opts.Coords {
		return nil
	}

	labelFace, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    float64(size) * 0.2,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return fmt.Errorf("label face: %w", err)
	}
	defer labelFace.Close()

	ascent := labelFace.Metrics().Ascent
	for i := 0; i < 8; i++ {
		file, row := i, i
		if opts.Flip {
			file, row = 7-i, 7-i
		}
		d := font.Drawer{Dst: dst, Src: image.NewUniform(labelInk), Face: labelFace}

		// File letters along the bottom edge
		d.Dot = fixed.Point26_6{
			X: fixed.I(i*size + 2),
			Y: fixed.I(8*size - 2),
		}
		d.DrawString(string(rune('a' + file)))

		// Rank numbers along the left edge
		d.Dot = fixed.Point26_6{
			X: fixed.I(2),
			Y: fixed.I(i*size+2) + ascent,
		}
		d.DrawString(fmt.Sprint(8 - row))
	}
	return nil
}

// drawCentered draws s centred in the size×size cell at (x, y).
func drawCentered(dst *image.RGBA, face font.Face, ink color.Color, s string, x, y, size int) {
	width := font.MeasureString(face, s)
	height := face.Metrics().CapHeight

	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(ink),
		Face: face,
		Dot: fixed.Point26_6{
			X: fixed.I(x) + (fixed.I(size)-width)/2,
			Y: fixed.I(y) + (fixed.I(size)+height)/2,
		},
	}
	d.DrawString(s)
}

// PNG renders pos with the given options and returns the encoded bytes.
func PNG(pos *board.Position, opts Options) ([]byte, error) {
	var buf bytes.Buffer
	if err := Render(&buf, pos, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
