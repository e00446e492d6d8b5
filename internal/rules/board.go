package rules

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	nchess "github.com/corentings/chess/v2"

	"github.com/park285/chess-platform/internal/domain"
)

var (
	ErrInvalidFormat = errors.New("invalid move format")
	ErrIllegalMove   = errors.New("illegal move")
)

// Outcome describes a terminal position.
type Outcome struct {
	Result string // "1-0", "0-1" or "1/2-1/2"
	Method string // e.g. "checkmate", "stalemate"
}

// Ply is one applied half-move.
type Ply struct {
	Number int    `json:"ply"`
	UCI    string `json:"uci"`
	SAN    string `json:"san"`
	FEN    string `json:"fen"`
}

// Board is a game under the standard rules, built from the initial position.
type Board struct {
	game *nchess.Game
}

func NewBoard() *Board {
	return &Board{game: nchess.NewGame()}
}

// Replay rebuilds a board by applying moves from the initial position.
func Replay(moves []string) (*Board, error) {
	b := NewBoard()
	for i, mv := range moves {
		if _, err := b.Play(mv); err != nil {
			return nil, fmt.Errorf("replay ply %d (%s): %w", i+1, mv, err)
		}
	}
	return b, nil
}

// FromFEN loads an arbitrary position. History before the position is unknown.
func FromFEN(fen string) (*Board, error) {
	opt, err := nchess.FEN(strings.TrimSpace(fen))
	if err != nil {
		return nil, fmt.Errorf("decode fen: %w", err)
	}
	return &Board{game: nchess.NewGame(opt)}, nil
}

func (b *Board) FEN() string { return b.game.FEN() }

func (b *Board) Position() *nchess.Position { return b.game.Position() }

func (b *Board) Turn() domain.Color {
	if b.game.Position().Turn() == nchess.White {
		return domain.White
	}
	return domain.Black
}

// Moves returns the UCI codes applied so far.
func (b *Board) Moves() []string {
	moves := b.game.Moves()
	positions := b.game.Positions()
	out := make([]string, 0, len(moves))
	notation := nchess.UCINotation{}
	for i, mv := range moves {
		if i >= len(positions) {
			break
		}
		out = append(out, strings.ToLower(notation.Encode(positions[i], mv)))
	}
	return out
}

// LegalMoves lists every legal move of the side to move as sorted UCI codes.
func (b *Board) LegalMoves() []string {
	if b.game.Outcome() != nchess.NoOutcome {
		return nil
	}
	pos := b.game.Position()
	var out []string
	for _, mv := range pos.ValidMoves() {
		out = append(out, squareName(mv.S1())+squareName(mv.S2())+promoLetter(mv.Promo()))
	}
	sort.Strings(out)
	return out
}

// Play validates and applies a UCI move code. A four character pawn move onto the
// last rank is promoted to a queen.
func (b *Board) Play(code string) (Ply, error) {
	code, err := ParseMove(code)
	if err != nil {
		return Ply{}, err
	}
	if b.game.Outcome() != nchess.NoOutcome {
		return Ply{}, ErrIllegalMove
	}
	pos := b.game.Position()
	code = withDefaultPromotion(pos, code)

	if !isListed(pos, code) {
		return Ply{}, ErrIllegalMove
	}
	mv, err := nchess.UCINotation{}.Decode(pos, code)
	if err != nil {
		return Ply{}, ErrIllegalMove
	}
	san := nchess.AlgebraicNotation{}.Encode(pos, mv)
	if err := b.game.Move(mv, nil); err != nil {
		return Ply{}, ErrIllegalMove
	}
	return Ply{
		Number: len(b.game.Moves()),
		UCI:    code,
		SAN:    san,
		FEN:    b.game.FEN(),
	}, nil
}

// Outcome reports the result when the position is terminal.
func (b *Board) Outcome() (Outcome, bool) {
	outcome := b.game.Outcome()
	if outcome == nchess.NoOutcome {
		return Outcome{}, false
	}
	return Outcome{
		Result: string(outcome),
		Method: strings.ToLower(b.game.Method().String()),
	}, true
}

// History lists every applied ply with its SAN and the resulting position.
func (b *Board) History() []Ply {
	moves := b.game.Moves()
	positions := b.game.Positions()
	out := make([]Ply, 0, len(moves))
	uci := nchess.UCINotation{}
	san := nchess.AlgebraicNotation{}
	for i, mv := range moves {
		if i+1 >= len(positions) {
			break
		}
		out = append(out, Ply{
			Number: i + 1,
			UCI:    strings.ToLower(uci.Encode(positions[i], mv)),
			SAN:    san.Encode(positions[i], mv),
			FEN:    positions[i+1].String(),
		})
	}
	return out
}

// SAN returns the moves in standard algebraic notation.
func (b *Board) SAN() []string {
	hist := b.History()
	out := make([]string, len(hist))
	for i, p := range hist {
		out[i] = p.SAN
	}
	return out
}

// ParseMove normalises a UCI move code and checks its shape.
func ParseMove(code string) (string, error) {
	code = strings.TrimSpace(code)
	if len(code) != 4 && len(code) != 5 {
		return "", ErrInvalidFormat
	}
	if !isFile(code[0]) || !isRank(code[1]) || !isFile(code[2]) || !isRank(code[3]) {
		return "", ErrInvalidFormat
	}
	if len(code) == 5 {
		switch code[4] {
		case 'q', 'r', 'b', 'n':
		default:
			return "", ErrInvalidFormat
		}
	}
	return code, nil
}

func isFile(c byte) bool { return c >= 'a' && c <= 'h' }
func isRank(c byte) bool { return c >= '1' && c <= '8' }

func squareOf(s string) nchess.Square {
	return nchess.NewSquare(nchess.File(s[0]-'a'), nchess.Rank(s[1]-'1'))
}

func squareName(sq nchess.Square) string {
	return sq.File().String() + sq.Rank().String()
}

func promoLetter(pt nchess.PieceType) string {
	switch pt {
	case nchess.Queen:
		return "q"
	case nchess.Rook:
		return "r"
	case nchess.Bishop:
		return "b"
	case nchess.Knight:
		return "n"
	default:
		return ""
	}
}

func withDefaultPromotion(pos *nchess.Position, code string) string {
	if len(code) != 4 {
		return code
	}
	piece := pos.Board().Piece(squareOf(code[0:2]))
	if piece.Type() != nchess.Pawn {
		return code
	}
	if (piece.Color() == nchess.White && code[3] == '8') || (piece.Color() == nchess.Black && code[3] == '1') {
		return code + "q"
	}
	return code
}

func isListed(pos *nchess.Position, code string) bool {
	for _, mv := range pos.ValidMoves() {
		if squareName(mv.S1())+squareName(mv.S2())+promoLetter(mv.Promo()) == code {
			return true
		}
	}
	return false
}
