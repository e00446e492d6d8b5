package ai

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/park285/chess-platform/internal/ai/uci"
)

// Candidate is one engine line offered to the picker.
type Candidate struct {
	Move   string
	EvalCP int
	Forced bool // engine sees a mate for the side to move
}

func candidatesFrom(lines []uci.Line) []Candidate {
	out := make([]Candidate, 0, len(lines))
	for _, l := range lines {
		if l.Move == "" {
			continue
		}
		out = append(out, Candidate{Move: l.Move, EvalCP: l.ScoreCP, Forced: l.Mate > 0})
	}
	return out
}

func (l Level) validatePicker() error {
	switch {
	case l.MultiPV <= 1:
		return nil
	case l.PrimaryChoices <= 0:
		return fmt.Errorf("%s: primary choices must be > 0: %d", l.Name, l.PrimaryChoices)
	case l.PrimaryChoices > l.MultiPV:
		return fmt.Errorf("%s: primary choices (%d) must not exceed multipv (%d)", l.Name, l.PrimaryChoices, l.MultiPV)
	case len(l.Weights) < l.PrimaryChoices:
		return fmt.Errorf("%s: weights (%d) must cover primary choices (%d)", l.Name, len(l.Weights), l.PrimaryChoices)
	case l.EvalNoise < 0:
		return fmt.Errorf("%s: eval noise must be >= 0: %d", l.Name, l.EvalNoise)
	}
	sum := 0.0
	for i, w := range l.Weights[:l.PrimaryChoices] {
		if w < 0 {
			return fmt.Errorf("%s: weight at index %d is negative: %f", l.Name, i, w)
		}
		sum += w
	}
	if sum == 0 {
		return fmt.Errorf("%s: weights sum to zero", l.Name)
	}
	return nil
}

// SelectCandidate picks one of the top candidates by the level's weights. A candidate with a
// forced mate among the primary choices always wins. The chosen eval gets ±EvalNoise jitter.
func SelectCandidate(l Level, candidates []Candidate, r *rand.Rand) (Candidate, error) {
	if len(candidates) == 0 {
		return Candidate{}, errors.New("no candidates to choose from")
	}
	if l.MultiPV <= 1 {
		return candidates[0], nil
	}
	if err := l.validatePicker(); err != nil {
		return Candidate{}, err
	}

	limit := min(l.PrimaryChoices, len(candidates))
	for i := 0; i < limit; i++ {
		if candidates[i].Forced {
			return jitter(candidates[i], l.EvalNoise, r), nil
		}
	}

	total := 0.0
	for i := 0; i < limit; i++ {
		total += l.Weights[i]
	}
	if total == 0 {
		return candidates[0], nil
	}

	threshold := r.Float64() * total
	index := 0
	for i := 0; i < limit; i++ {
		if l.Weights[i] == 0 {
			continue
		}
		index = i
		threshold -= l.Weights[i]
		if threshold <= 0 {
			break
		}
	}
	return jitter(candidates[index], l.EvalNoise, r), nil
}

func jitter(c Candidate, noise int, r *rand.Rand) Candidate {
	if noise > 0 {
		c.EvalCP = saturatingAdd(c.EvalCP, r.IntN(2*noise+1)-noise)
	}
	return c
}

func saturatingAdd(a, b int) int {
	sum := int64(a) + int64(b)
	switch {
	case sum > math.MaxInt:
		return math.MaxInt
	case sum < math.MinInt:
		return math.MinInt
	}
	return int(sum)
}
