package uci

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestPositionCommand(t *testing.T) {
	if got := positionCommand(nil); got != "position startpos" {
		t.Fatalf("unexpected %q", got)
	}
	if got := positionCommand([]string{"e2e4", "e7e5"}); got != "position startpos moves e2e4 e7e5" {
		t.Fatalf("unexpected %q", got)
	}
}

func TestGoCommand(t *testing.T) {
	got, err := Limits{MoveTimeMillis: 200, Depth: 8}.goCommand()
	if err != nil || got != "go depth 8 movetime 200" {
		t.Fatalf("unexpected %q %v", got, err)
	}
	if _, err := (Limits{}).goCommand(); err == nil {
		t.Fatalf("empty limits must fail")
	}
}

func TestSearchBudget(t *testing.T) {
	if d := (Limits{MoveTimeMillis: 200}).budget(); d != 2200*time.Millisecond {
		t.Fatalf("unexpected movetime budget %v", d)
	}
	if d := (Limits{Depth: 2}).budget(); d != 6*time.Second {
		t.Fatalf("depth budget must floor at 6s, got %v", d)
	}
	if d := (Limits{Depth: 200}).budget(); d != 20*time.Second {
		t.Fatalf("depth budget must cap at 20s, got %v", d)
	}
}

func TestParseBestMove(t *testing.T) {
	cases := []struct {
		line string
		move string
		ok   bool
	}{
		{"bestmove e2e4 ponder e7e5", "e2e4", true},
		{"bestmove e7e8q", "e7e8q", true},
		{"bestmove (none)", "", true},
		{"info depth 10 pv e2e4", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		mv, ok := parseBestMove(tc.line)
		if mv != tc.move || ok != tc.ok {
			t.Fatalf("%q: got %q %v", tc.line, mv, ok)
		}
	}
}

func TestParseInfo(t *testing.T) {
	l, ok := parseInfo("info depth 12 seldepth 18 multipv 2 score cp -35 nodes 9120 nps 400000 pv d7d5 e4d5 d8d5")
	if !ok || l.Rank != 2 || l.ScoreCP != -35 || l.Move != "d7d5" || len(l.PV) != 3 {
		t.Fatalf("unexpected %+v %v", l, ok)
	}
	l, ok = parseInfo("info depth 5 score mate 2 pv d8h4")
	if !ok || l.Rank != 1 || l.Mate != 2 || l.Move != "d8h4" {
		t.Fatalf("unexpected mate line %+v %v", l, ok)
	}
	if l, ok := parseInfo("info depth 9 score cp 12 lowerbound pv g1f3"); !ok || l.ScoreCP != 12 {
		t.Fatalf("bound marker must be skipped: %+v %v", l, ok)
	}
	for _, line := range []string{
		"info depth 3 currmove e2e4 currmovenumber 1",
		"info string NNUE evaluation enabled",
		"info depth 4 score cp 10",
		"bestmove e2e4",
	} {
		if _, ok := parseInfo(line); ok {
			t.Fatalf("%q must be skipped", line)
		}
	}
}

func TestSetoptions(t *testing.T) {
	joined := strings.Join(Options{SkillLevel: 3, HashMB: 16}.setoptions(), "\n")
	if strings.Contains(joined, "UCI_Elo") {
		t.Fatalf("elo limit must be off when Elo is zero")
	}
	if !strings.Contains(joined, "Threads value 1") || !strings.Contains(joined, "Skill Level value 3") {
		t.Fatalf("unexpected commands %q", joined)
	}
	if strings.Contains(joined, "MultiPV") {
		t.Fatalf("single line searches must not set MultiPV: %q", joined)
	}
	if multi := strings.Join(Options{HashMB: 16, MultiPV: 3}.setoptions(), "\n"); !strings.Contains(multi, "MultiPV value 3") {
		t.Fatalf("missing multipv: %q", multi)
	}
	withElo := strings.Join(Options{HashMB: 16, Elo: 1500}.setoptions(), "\n")
	if !strings.Contains(withElo, "UCI_Elo value 1500") {
		t.Fatalf("missing elo limit: %q", withElo)
	}
}

func TestNewPoolValidates(t *testing.T) {
	if _, err := NewPool("", Options{HashMB: 16}, 1); err == nil {
		t.Fatalf("empty path must fail")
	}
	if _, err := NewPool(filepath.Join(t.TempDir(), "missing"), Options{HashMB: 16}, 1); err == nil {
		t.Fatalf("missing binary must fail")
	}
	if _, err := NewPool(os.Args[0], Options{HashMB: 16, SkillLevel: 42}, 1); err == nil {
		t.Fatalf("skill level out of range must fail")
	}
	if _, err := NewPool(os.Args[0], Options{HashMB: 16, MultiPV: -1}, 1); err == nil {
		t.Fatalf("negative multipv must fail")
	}
}

const fakeEngine = `#!/bin/sh
while read line; do
  case "$line" in
    uci) echo "id name fake"; echo "uciok" ;;
    isready) echo "readyok" ;;
    go*)
      echo "info depth 1 multipv 1 score cp 40 pv c7c5"
      echo "info depth 1 multipv 2 score cp 10 pv d7d5"
      echo "info depth 2 multipv 2 score cp 25 pv e7e5 g1f3"
      echo "info depth 2 multipv 1 score cp 30 pv c7c5 g1f3"
      echo "bestmove c7c5 ponder g1f3" ;;
    quit) exit 0 ;;
  esac
done
`

func TestPoolAgainstScriptedEngine(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs /bin/sh")
	}
	path := filepath.Join(t.TempDir(), "engine.sh")
	if err := os.WriteFile(path, []byte(fakeEngine), 0o755); err != nil {
		t.Fatalf("write fake engine: %v", err)
	}
	pool, err := NewPool(path, Options{HashMB: 16}, 1)
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	defer pool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for i := 0; i < 2; i++ {
		s, err := pool.Acquire(ctx)
		if err != nil {
			t.Fatalf("acquire: %v", err)
		}
		mv, err := s.BestMove(ctx, []string{"e2e4"}, Limits{MoveTimeMillis: 10})
		pool.Release(s, err)
		if err != nil || mv != "c7c5" {
			t.Fatalf("best move = %q, %v", mv, err)
		}
	}

	s, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	res, err := s.Search(ctx, []string{"e2e4"}, Limits{MoveTimeMillis: 10})
	pool.Release(s, err)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if res.BestMove != "c7c5" || len(res.Lines) != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Lines[0].Move != "c7c5" || res.Lines[0].ScoreCP != 30 {
		t.Fatalf("first line must be the deepest rank 1 report: %+v", res.Lines[0])
	}
	if res.Lines[1].Move != "e7e5" || res.Lines[1].ScoreCP != 25 {
		t.Fatalf("second line must be the deepest rank 2 report: %+v", res.Lines[1])
	}
}
