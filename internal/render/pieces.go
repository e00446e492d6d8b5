package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"sync"

	nchess "github.com/corentings/chess/v2"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// Glyph bodies on a 45x45 canvas. FILL and LINE are replaced per side.
var glyphs = map[nchess.PieceType]string{
	nchess.Pawn: `<circle cx="22.5" cy="14" r="5.5" fill="FILL" stroke="LINE" stroke-width="1.5"/>
<path d="M 17 21 L 28 21 L 31 33 L 14 33 Z" fill="FILL" stroke="LINE" stroke-width="1.5"/>
<rect x="11" y="33" width="23" height="5" fill="FILL" stroke="LINE" stroke-width="1.5"/>`,
	nchess.Rook: `<path d="M 11 9 L 15 9 L 15 12 L 20 12 L 20 9 L 25 9 L 25 12 L 30 12 L 30 9 L 34 9 L 34 16 L 11 16 Z" fill="FILL" stroke="LINE" stroke-width="1.5"/>
<rect x="14" y="16" width="17" height="16" fill="FILL" stroke="LINE" stroke-width="1.5"/>
<rect x="10" y="32" width="25" height="6" fill="FILL" stroke="LINE" stroke-width="1.5"/>`,
	nchess.Knight: `<path d="M 14 38 L 33 38 L 32 24 C 32 14 26 8 18 9 L 17 6 L 14 10 C 10 14 9 19 10 22 L 13 24 L 18 20 L 19 24 C 15 28 14 32 14 38 Z" fill="FILL" stroke="LINE" stroke-width="1.5"/>
<circle cx="17" cy="14" r="1.3" fill="LINE"/>`,
	nchess.Bishop: `<circle cx="22.5" cy="8" r="2.5" fill="FILL" stroke="LINE" stroke-width="1.5"/>
<ellipse cx="22.5" cy="20" rx="7" ry="9" fill="FILL" stroke="LINE" stroke-width="1.5"/>
<path d="M 16 29 L 29 29 L 31 33 L 14 33 Z" fill="FILL" stroke="LINE" stroke-width="1.5"/>
<rect x="10" y="33" width="25" height="5" fill="FILL" stroke="LINE" stroke-width="1.5"/>`,
	nchess.Queen: `<path d="M 9 14 L 14 30 L 31 30 L 36 14 L 29 24 L 26 11 L 22.5 23 L 19 11 L 16 24 Z" fill="FILL" stroke="LINE" stroke-width="1.5"/>
<circle cx="9" cy="12" r="2.2" fill="FILL" stroke="LINE" stroke-width="1.2"/>
<circle cx="19" cy="9" r="2.2" fill="FILL" stroke="LINE" stroke-width="1.2"/>
<circle cx="26" cy="9" r="2.2" fill="FILL" stroke="LINE" stroke-width="1.2"/>
<circle cx="36" cy="12" r="2.2" fill="FILL" stroke="LINE" stroke-width="1.2"/>
<rect x="11" y="30" width="23" height="8" fill="FILL" stroke="LINE" stroke-width="1.5"/>`,
	nchess.King: `<path d="M 21 4 L 24 4 L 24 8 L 28 8 L 28 11 L 24 11 L 24 15 L 21 15 L 21 11 L 17 11 L 17 8 L 21 8 Z" fill="FILL" stroke="LINE" stroke-width="1.2"/>
<path d="M 11 20 C 11 14 34 14 34 20 L 31 32 L 14 32 Z" fill="FILL" stroke="LINE" stroke-width="1.5"/>
<rect x="11" y="32" width="23" height="6" fill="FILL" stroke="LINE" stroke-width="1.5"/>`,
}

func pieceSVG(piece nchess.Piece) (string, error) {
	body, ok := glyphs[piece.Type()]
	if !ok {
		return "", fmt.Errorf("no glyph for piece %v", piece)
	}
	fill, line := "#ffffff", "#000000"
	if piece.Color() == nchess.Black {
		fill, line = "#1f1f1f", "#e8e8e8"
	}
	body = strings.NewReplacer("FILL", fill, "LINE", line).Replace(body)
	return `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 45 45" width="45" height="45">` + body + `</svg>`, nil
}

type pieceCacheKey struct {
	piece nchess.Piece
	size  int
}

var (
	pieceCache   = map[pieceCacheKey]image.Image{}
	pieceCacheMu sync.RWMutex
)

func renderPieceImage(piece nchess.Piece, size int) (image.Image, error) {
	key := pieceCacheKey{piece: piece, size: size}

	pieceCacheMu.RLock()
	if img, ok := pieceCache[key]; ok {
		pieceCacheMu.RUnlock()
		return img, nil
	}
	pieceCacheMu.RUnlock()

	svg, err := pieceSVG(piece)
	if err != nil {
		return nil, err
	}
	icon, err := oksvg.ReadIconStream(strings.NewReader(svg))
	if err != nil {
		return nil, fmt.Errorf("parse piece svg: %w", err)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Transparent), image.Point{}, draw.Src)
	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	raster := rasterx.NewDasher(size, size, scanner)
	icon.Draw(raster, 1.0)

	pieceCacheMu.Lock()
	pieceCache[key] = img
	pieceCacheMu.Unlock()
	return img, nil
}
