package chessbuilder

import (
	"path/filepath"
	"testing"

	"github.com/park285/chess-platform/internal/config"
)

func TestNewEngineSelection(t *testing.T) {
	cases := []struct {
		engine string
		name   string
	}{
		{"random", "random"},
		{"cloud", "cloud"},
	}
	for _, tc := range cases {
		e, err := NewEngine(&config.AppConfig{AIEngine: tc.engine, CloudEvalURL: "http://127.0.0.1:1/eval"}, nil)
		if err != nil {
			t.Fatalf("%s: %v", tc.engine, err)
		}
		if e.Mover == nil || e.Mover.Name() != tc.name {
			t.Fatalf("%s: unexpected mover %v", tc.engine, e.Mover)
		}
		if err := e.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	}

	none, err := NewEngine(&config.AppConfig{AIEngine: "none"}, nil)
	if err != nil || none.Mover != nil {
		t.Fatalf("none must disable the mover: %v %v", none, err)
	}
}

func TestNewEngineErrors(t *testing.T) {
	if _, err := NewEngine(nil, nil); err == nil {
		t.Fatalf("nil config must fail")
	}
	if _, err := NewEngine(&config.AppConfig{AIEngine: "stockfish", StockfishPath: filepath.Join(t.TempDir(), "nope")}, nil); err == nil {
		t.Fatalf("missing stockfish binary must fail")
	}
	if _, err := NewEngine(&config.AppConfig{AIEngine: "quantum"}, nil); err == nil {
		t.Fatalf("unknown engine must fail")
	}
}
