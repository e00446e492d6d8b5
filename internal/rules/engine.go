package rules

import (
	"fmt"
	"strings"
	"time"
)

// Engine is the narrow rules capability used by the services. Applying moves and reading the
// outcome go through the replayed Board, which keeps the position history repetition needs.
type Engine interface {
	LegalMoves(fen string) ([]string, error)
	Replay(moves []string) (*Board, error)
}

// Standard binds Engine to the corentings/chess rules implementation.
type Standard struct{}

func (Standard) LegalMoves(fen string) ([]string, error) {
	b, err := FromFEN(fen)
	if err != nil {
		return nil, err
	}
	return b.LegalMoves(), nil
}

func (Standard) Replay(moves []string) (*Board, error) { return Replay(moves) }

// PGNHeader holds the tag pairs written before the move text.
type PGNHeader struct {
	Event       string
	Site        string
	Date        time.Time
	White       string
	Black       string
	Result      string
	Termination string
}

// PGN renders the game in portable game notation.
func (b *Board) PGN(h PGNHeader) string {
	result := strings.TrimSpace(h.Result)
	if result == "" || result == "aborted" {
		result = "*"
	}
	date := h.Date
	if date.IsZero() {
		date = time.Now()
	}
	event := h.Event
	if strings.TrimSpace(event) == "" {
		event = "Casual game"
	}
	site := h.Site
	if strings.TrimSpace(site) == "" {
		site = "?"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "[Event \"%s\"]\n", sanitizePGN(event))
	fmt.Fprintf(&sb, "[Site \"%s\"]\n", sanitizePGN(site))
	fmt.Fprintf(&sb, "[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day())
	fmt.Fprintf(&sb, "[White \"%s\"]\n", sanitizePGN(h.White))
	fmt.Fprintf(&sb, "[Black \"%s\"]\n", sanitizePGN(h.Black))
	if strings.TrimSpace(h.Termination) != "" {
		fmt.Fprintf(&sb, "[Termination \"%s\"]\n", sanitizePGN(h.Termination))
	}
	fmt.Fprintf(&sb, "[Result \"%s\"]\n\n", result)

	san := b.SAN()
	for i := 0; i < len(san); i += 2 {
		fmt.Fprintf(&sb, "%d. %s", i/2+1, san[i])
		if i+1 < len(san) {
			sb.WriteString(" ")
			sb.WriteString(san[i+1])
		}
		sb.WriteString(" ")
	}
	sb.WriteString(result)
	sb.WriteString("\n")
	return sb.String()
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
