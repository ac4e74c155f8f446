package render

import (
	"bytes"
	"errors"
	"image/png"
	"strings"
	"testing"

	"github.com/hailam/chessrules/internal/board"
)

func TestRenderImageSize(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want int
	}{
		{"default", Options{}, DefaultSquareSize * 8},
		{"small", Options{SquareSize: 20}, 160},
		{"flipped with coords", Options{SquareSize: 32, Flip: true, Coords: true}, 256},
	}

	pos := board.NewPosition()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			img, err := RenderImage(pos, tc.opts)
			if err != nil {
				t.Fatalf("RenderImage: %v", err)
			}
			b := img.Bounds()
			if b.Dx() != tc.want || b.Dy() != tc.want {
				t.Errorf("image is %dx%d, want %dx%d", b.Dx(), b.Dy(), tc.want, tc.want)
			}
		})
	}
}

func TestRenderPNGDecodes(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, board.NewPosition(), Options{SquareSize: 16}); err != nil {
		t.Fatalf("Render: %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("png.Decode: %v", err)
	}
	if img.Bounds().Dx() != 128 {
		t.Errorf("width = %d, want 128", img.Bounds().Dx())
	}
}

func TestSquareColours(t *testing.T) {
	// Empty squares in the middle of the board keep their plain colour
	pos := board.NewPosition()
	img, err := RenderImage(pos, Options{SquareSize: 20})
	if err != nil {
		t.Fatal(err)
	}

	light := img.RGBAAt(board.A4.File()*20+10, board.A4.Row()*20+10)
	dark := img.RGBAAt(board.B4.File()*20+10, board.B4.Row()*20+10)
	if light == dark {
		t.Errorf("a4 and b4 have the same colour %v", light)
	}
	if light.R <= dark.R || light.A != 0xff {
		t.Errorf("a4 colour %v should be lighter than b4 colour %v", light, dark)
	}
}

func TestCheckHighlight(t *testing.T) {
	pos, err := board.ParseFEN("4k3/8/8/8/8/8/8/4K2r w - - 0 1")
	if err != nil {
		t.Fatal(err)
	}
	svg := boardSVG(pos, 10, false)
	if !strings.Contains(svg, checkColour) {
		t.Error("king in check should be highlighted")
	}

	quiet := boardSVG(board.NewPosition(), 10, false)
	if strings.Contains(quiet, checkColour) {
		t.Error("no highlight expected without check")
	}
}

func TestFlipMovesSquares(t *testing.T) {
	x, y := cell(board.A8, 10, false)
	if x != 0 || y != 0 {
		t.Errorf("a8 at (%d,%d), want (0,0)", x, y)
	}
	x, y = cell(board.A8, 10, true)
	if x != 70 || y != 70 {
		t.Errorf("flipped a8 at (%d,%d), want (70,70)", x, y)
	}
}

func TestRenderNilPosition(t *testing.T) {
	if _, err := RenderImage(nil, Options{}); !errors.Is(err, board.ErrUninitialized) {
		t.Errorf("error = %v, want ErrUninitialized", err)
	}
}
