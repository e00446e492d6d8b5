package rules

import (
	"sync"

	"github.com/corentings/chess/v2/opening"
)

var (
	ecoOnce sync.Once
	ecoBook *opening.BookECO
)

// Opening names the most specific ECO opening the move sequence reaches.
// Both values are empty when no book line matches.
func (b *Board) Opening() (code, title string) {
	if len(b.game.Moves()) == 0 {
		return "", ""
	}
	ecoOnce.Do(func() { ecoBook = opening.NewBookECO() })
	if ecoBook == nil {
		return "", ""
	}
	if eco := ecoBook.Find(b.game.Moves()); eco != nil {
		return eco.Code(), eco.Title()
	}
	return "", ""
}
