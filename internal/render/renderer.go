// Package render draws chess positions as PNG images.
package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"

	nchess "github.com/corentings/chess/v2"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/park285/chess-platform/internal/rules"
)

const (
	DefaultSquareSize = 60
	MinSquareSize     = 24
	MaxSquareSize     = 128
)

// Options controls a single rendering.
type Options struct {
	SquareSize int
	LastMove   string // UCI code of the move to highlight
	Flip       bool   // draw from black's side
}

var (
	lightSquare     = color.RGBA{233, 207, 163, 255}
	darkSquare      = color.RGBA{187, 136, 96, 255}
	highlightFill   = color.NRGBA{R: 255, G: 228, B: 120, A: 140}
	marginColor     = color.RGBA{28, 31, 46, 255}
	coordinateColor = color.NRGBA{R: 8, G: 214, B: 120, A: 255}
)

// PNG renders the position given by fen.
func PNG(ctx context.Context, fen string, opts Options) ([]byte, error) {
	b, err := rules.FromFEN(fen)
	if err != nil {
		return nil, err
	}
	board := b.Position().Board()

	size := opts.SquareSize
	if size <= 0 {
		size = DefaultSquareSize
	}
	size = min(max(size, MinSquareSize), MaxSquareSize)
	margin := size / 3
	boardPx := size * 8
	origin := image.Pt(margin, margin)

	img := image.NewRGBA(image.Rect(0, 0, boardPx+margin*2, boardPx+margin*2))
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(marginColor), image.Point{}, imagedraw.Src)

	for row := 0; row < 8; row++ {
		for col := 0; col < 8; col++ {
			sq := squareAt(row, col, opts.Flip)
			rect := cellRect(row, col, size, origin)
			imagedraw.Draw(img, rect, image.NewUniform(squareColor(sq)), image.Point{}, imagedraw.Src)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if from, to, ok := parseSquares(opts.LastMove); ok {
		for _, sq := range []nchess.Square{from, to} {
			row, col := cellOf(sq, opts.Flip)
			imagedraw.Draw(img, cellRect(row, col, size, origin), image.NewUniform(highlightFill), image.Point{}, imagedraw.Over)
		}
	}

	pieces := board.SquareMap()
	for row := 0; row < 8; row++ {
		for col := 0; col < 8; col++ {
			piece, ok := pieces[squareAt(row, col, opts.Flip)]
			if !ok || piece == nchess.NoPiece {
				continue
			}
			glyph, err := renderPieceImage(piece, size)
			if err != nil {
				return nil, err
			}
			imagedraw.Draw(img, cellRect(row, col, size, origin), glyph, image.Point{}, imagedraw.Over)
		}
	}

	drawCoordinates(img, size, origin, margin, opts.Flip)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func squareAt(row, col int, flip bool) nchess.Square {
	file, rank := col, 7-row
	if flip {
		file, rank = 7-col, row
	}
	return nchess.NewSquare(nchess.File(file), nchess.Rank(rank))
}

func cellOf(sq nchess.Square, flip bool) (row, col int) {
	file, rank := int(sq.File()), int(sq.Rank())
	if flip {
		return rank, 7 - file
	}
	return 7 - rank, file
}

func cellRect(row, col, size int, origin image.Point) image.Rectangle {
	x := origin.X + col*size
	y := origin.Y + row*size
	return image.Rect(x, y, x+size, y+size)
}

func squareColor(sq nchess.Square) color.Color {
	if (int(sq.File())+int(sq.Rank()))%2 == 0 {
		return darkSquare
	}
	return lightSquare
}

func parseSquares(code string) (nchess.Square, nchess.Square, bool) {
	code, err := rules.ParseMove(code)
	if err != nil {
		return 0, 0, false
	}
	from := nchess.NewSquare(nchess.File(code[0]-'a'), nchess.Rank(code[1]-'1'))
	to := nchess.NewSquare(nchess.File(code[2]-'a'), nchess.Rank(code[3]-'1'))
	return from, to, true
}

func drawCoordinates(img *image.RGBA, size int, origin image.Point, margin int, flip bool) {
	face := basicfont.Face7x13
	d := &font.Drawer{Dst: img, Src: image.NewUniform(coordinateColor), Face: face}
	ascent := face.Metrics().Ascent.Ceil()
	bottom := origin.Y + size*8

	for i := 0; i < 8; i++ {
		file := string(rune('a' + i))
		rank := string(rune('8' - i))
		if flip {
			file = string(rune('h' - i))
			rank = string(rune('1' + i))
		}
		fw := d.MeasureString(file).Ceil()
		d.Dot = fixed.P(origin.X+i*size+(size-fw)/2, bottom+(margin+ascent)/2)
		d.DrawString(file)

		rw := d.MeasureString(rank).Ceil()
		d.Dot = fixed.P((margin-rw)/2, origin.Y+i*size+(size+ascent)/2)
		d.DrawString(rank)
	}
}
