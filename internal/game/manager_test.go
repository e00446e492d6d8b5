package game

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/park285/chess-platform/internal/apperr"
	"github.com/park285/chess-platform/internal/domain"
	"github.com/park285/chess-platform/internal/matchmaking"
	"github.com/park285/chess-platform/internal/store"
	"github.com/park285/chess-platform/internal/store/storetest"
	"github.com/park285/chess-platform/pkg/chessdto"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.GameEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev domain.GameEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []domain.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.EventType, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

type recordingRater struct {
	mu    sync.Mutex
	games []int64
}

func (r *recordingRater) Apply(_ context.Context, g *domain.Game) ([]domain.StatDelta, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.games = append(r.games, g.ID)
	return nil, nil
}

type recordingArchiver struct {
	mu   sync.Mutex
	pgns []string
}

func (a *recordingArchiver) Upload(_ context.Context, g *domain.Game, white, black, pgn string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pgns = append(a.pgns, pgn)
	return "key", nil
}

// scriptedMover answers with the queued moves, or fails when the queue entry is empty.
type scriptedMover struct {
	mu    sync.Mutex
	queue []string
	calls int
}

func (s *scriptedMover) Name() string { return "scripted" }

func (s *scriptedMover) BestMove(_ context.Context, _ []string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.queue) == 0 {
		return "", errors.New("script exhausted")
	}
	mv := s.queue[0]
	s.queue = s.queue[1:]
	if mv == "" {
		return "", errors.New("engine unavailable")
	}
	return mv, nil
}

type fixture struct {
	repo    store.Repository
	mgr     *Manager
	pub     *recordingPublisher
	rater   *recordingRater
	archive *recordingArchiver
	alice   *domain.User
	bob     *domain.User
	carol   *domain.User
}

func newFixture(t *testing.T, mover *scriptedMover) *fixture {
	t.Helper()
	repo := storetest.Open(t)
	f := &fixture{
		repo:    repo,
		pub:     &recordingPublisher{},
		rater:   &recordingRater{},
		archive: &recordingArchiver{},
		alice:   storetest.User(t, repo, "alice"),
		bob:     storetest.User(t, repo, "bob"),
		carol:   storetest.User(t, repo, "carol"),
	}
	opts := Options{Publisher: f.pub, Rater: f.rater, Archiver: f.archive}
	if mover != nil {
		opts.Mover = mover
	}
	f.mgr = NewManager(repo, matchmaking.NewManager(repo), opts)
	return f
}

// humanGame pairs alice (white) with bob (black).
func (f *fixture) humanGame(t *testing.T) int64 {
	t.Helper()
	ctx := context.Background()
	first, err := f.mgr.CreateGame(ctx, f.alice.ID, false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := f.mgr.CreateGame(ctx, f.bob.ID, false)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("bob must join alice's game: %d != %d", first.ID, second.ID)
	}
	return first.ID
}

func (f *fixture) play(t *testing.T, gameID int64, moves ...string) chessdto.MoveResponse {
	t.Helper()
	var last chessdto.MoveResponse
	for i, mv := range moves {
		player := f.alice.ID
		if i%2 == 1 {
			player = f.bob.ID
		}
		res, err := f.mgr.ApplyMove(context.Background(), gameID, player, mv[:2], mv[2:4], mv[4:])
		if err != nil {
			t.Fatalf("move %s: %v", mv, err)
		}
		if !res.Valid {
			t.Fatalf("move %s rejected: %s", mv, res.Message)
		}
		last = res
	}
	return last
}

func TestCreateGameVsAI(t *testing.T) {
	f := newFixture(t, nil)
	g, err := f.mgr.CreateGame(context.Background(), f.alice.ID, true)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if g.Status != string(domain.StatusActive) || !g.IsVsAI {
		t.Fatalf("unexpected game %+v", g)
	}
	if g.White != "alice" || g.Black != domain.LabelAI {
		t.Fatalf("unexpected seats %s / %s", g.White, g.Black)
	}
	if g.FEN != domain.StartingFEN {
		t.Fatalf("unexpected fen %s", g.FEN)
	}
}

func TestCreateGamePairing(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	waiting, err := f.mgr.CreateGame(ctx, f.alice.ID, false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if waiting.Status != string(domain.StatusWaiting) || waiting.Black != domain.LabelPending {
		t.Fatalf("expected waiting game, got %+v", waiting)
	}

	joined, err := f.mgr.CreateGame(ctx, f.bob.ID, false)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if joined.ID != waiting.ID || joined.Status != string(domain.StatusActive) || joined.Black != "bob" {
		t.Fatalf("expected bob to join game %d, got %+v", waiting.ID, joined)
	}

	fresh, err := f.mgr.CreateGame(ctx, f.alice.ID, false)
	if err != nil {
		t.Fatalf("create again: %v", err)
	}
	if fresh.ID == waiting.ID || fresh.Status != string(domain.StatusWaiting) {
		t.Fatalf("expected a new waiting game, got %+v", fresh)
	}
}

func TestApplyMoveUpdatesPosition(t *testing.T) {
	f := newFixture(t, nil)
	id := f.humanGame(t)

	res := f.play(t, id, "e2e4")
	if res.MoveUCI != "e2e4" || res.MoveSAN != "e4" || res.Message != "Move executed" {
		t.Fatalf("unexpected result %+v", res)
	}
	if !strings.HasPrefix(res.FEN, "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b") {
		t.Fatalf("unexpected fen %s", res.FEN)
	}
	g, _ := f.repo.GameByID(context.Background(), id)
	if len(g.Moves) != 1 || g.Moves[0] != "e2e4" || g.FEN != res.FEN {
		t.Fatalf("stored game not updated: %+v", g)
	}
}

func TestRejectedMovesLeaveGameUnchanged(t *testing.T) {
	f := newFixture(t, nil)
	id := f.humanGame(t)
	ctx := context.Background()

	cases := []struct {
		name     string
		player   int64
		from, to string
		promo    string
		message  string
	}{
		{"illegal", f.alice.ID, "e2", "e5", "", "Illegal move"},
		{"wrong piece movement", f.alice.ID, "b1", "b3", "", "Illegal move"},
		{"malformed square", f.alice.ID, "z9", "e4", "", "Invalid move format"},
		{"short code", f.alice.ID, "e", "e4", "", "Invalid move format"},
		{"bad promotion", f.alice.ID, "e2", "e4", "k", "Invalid move format"},
		{"uppercase squares", f.alice.ID, "E2", "E4", "", "Invalid move format"},
		{"out of turn", f.bob.ID, "e7", "e5", "", "Not your turn"},
		{"malformed out of turn", f.bob.ID, "z9", "e5", "", "Invalid move format"},
		{"uppercase out of turn", f.bob.ID, "E7", "E5", "", "Invalid move format"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := f.mgr.ApplyMove(ctx, id, tc.player, tc.from, tc.to, tc.promo)
			if err != nil {
				t.Fatalf("apply: %v", err)
			}
			if res.Valid || res.Message != tc.message {
				t.Fatalf("expected %q, got %+v", tc.message, res)
			}
			if res.FEN != domain.StartingFEN {
				t.Fatalf("fen changed: %s", res.FEN)
			}
		})
	}
	g, _ := f.repo.GameByID(ctx, id)
	if len(g.Moves) != 0 || g.FEN != domain.StartingFEN {
		t.Fatalf("game mutated: %+v", g)
	}
}

func TestApplyMoveErrors(t *testing.T) {
	f := newFixture(t, nil)
	id := f.humanGame(t)
	ctx := context.Background()

	_, err := f.mgr.ApplyMove(ctx, 9999, f.alice.ID, "e2", "e4", "")
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	_, err = f.mgr.ApplyMove(ctx, id, f.carol.ID, "e2", "e4", "")
	if !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}

	waiting, _ := f.mgr.CreateGame(ctx, f.carol.ID, false)
	res, err := f.mgr.ApplyMove(ctx, waiting.ID, f.carol.ID, "e2", "e4", "")
	if err != nil || res.Valid || res.Message != "Game has not started yet" {
		t.Fatalf("waiting game must reject moves: %+v %v", res, err)
	}
}

func TestCheckmateFinishesGame(t *testing.T) {
	f := newFixture(t, nil)
	id := f.humanGame(t)
	ctx := context.Background()

	res := f.play(t, id, "f2f3", "e7e5", "g2g4", "d8h4")
	if res.Status != string(domain.StatusFinished) || res.Result == nil || *res.Result != domain.ResultBlackWon {
		t.Fatalf("expected black win, got %+v", res)
	}
	g, _ := f.repo.GameByID(ctx, id)
	if g.Status != domain.StatusFinished || g.Result != domain.ResultBlackWon || g.EndedAt == nil {
		t.Fatalf("stored game not finished: %+v", g)
	}

	after, err := f.mgr.ApplyMove(ctx, id, f.alice.ID, "a2", "a3", "")
	if err != nil || after.Valid || after.Message != "Game is already finished" {
		t.Fatalf("finished game must reject moves: %+v %v", after, err)
	}

	f.mgr.Wait()
	if len(f.rater.games) != 1 || f.rater.games[0] != id {
		t.Fatalf("rating not applied: %v", f.rater.games)
	}
	if len(f.archive.pgns) != 1 || !strings.Contains(f.archive.pgns[0], "2. g4 Qh4") {
		t.Fatalf("unexpected archive %v", f.archive.pgns)
	}
	types := f.pub.types()
	if len(types) == 0 || types[len(types)-1] != domain.EventFinished {
		t.Fatalf("expected finished event last, got %v", types)
	}
}

func TestPromotion(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	setup := []string{"a2a4", "b7b5", "a4b5", "a7a6", "b5a6", "c8b7", "a6b7", "g8f6"}

	id := f.humanGame(t)
	f.play(t, id, setup...)
	res, err := f.mgr.ApplyMove(ctx, id, f.alice.ID, "b7", "a8", "")
	if err != nil || !res.Valid || res.MoveUCI != "b7a8q" {
		t.Fatalf("expected default queen promotion, got %+v %v", res, err)
	}

	// 두 번째 대국에서는 나이트로 승격
	if _, err := f.mgr.CreateGame(ctx, f.alice.ID, false); err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := f.mgr.CreateGame(ctx, f.bob.ID, false)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	f.play(t, second.ID, setup...)
	res, err = f.mgr.ApplyMove(ctx, second.ID, f.alice.ID, "b7", "a8", "N")
	if err != nil || !res.Valid || res.MoveUCI != "b7a8n" || res.MoveSAN != "bxa8=N" {
		t.Fatalf("expected knight promotion, got %+v %v", res, err)
	}
}

func TestEngineReplies(t *testing.T) {
	mover := &scriptedMover{queue: []string{"e7e5"}}
	f := newFixture(t, mover)
	ctx := context.Background()

	g, _ := f.mgr.CreateGame(ctx, f.alice.ID, true)
	res, err := f.mgr.ApplyMove(ctx, g.ID, f.alice.ID, "e2", "e4", "")
	if err != nil || !res.Valid {
		t.Fatalf("apply: %+v %v", res, err)
	}
	if res.AIMove != "e7e5" {
		t.Fatalf("expected engine reply, got %+v", res)
	}
	stored, _ := f.repo.GameByID(ctx, g.ID)
	if strings.Join(stored.Moves, ",") != "e2e4,e7e5" {
		t.Fatalf("unexpected moves %v", stored.Moves)
	}
}

func TestEngineCatchUpAfterFailure(t *testing.T) {
	mover := &scriptedMover{queue: []string{"", "e7e5", "b8c6"}}
	f := newFixture(t, mover)
	ctx := context.Background()

	g, _ := f.mgr.CreateGame(ctx, f.alice.ID, true)
	res, err := f.mgr.ApplyMove(ctx, g.ID, f.alice.ID, "e2", "e4", "")
	if err != nil || !res.Valid || res.AIMove != "" {
		t.Fatalf("human move must stand when the engine fails: %+v %v", res, err)
	}

	res, err = f.mgr.ApplyMove(ctx, g.ID, f.alice.ID, "d2", "d4", "")
	if err != nil || !res.Valid || res.AIMove != "b8c6" {
		t.Fatalf("expected catch-up then reply: %+v %v", res, err)
	}
	stored, _ := f.repo.GameByID(ctx, g.ID)
	if strings.Join(stored.Moves, ",") != "e2e4,e7e5,d2d4,b8c6" {
		t.Fatalf("unexpected moves %v", stored.Moves)
	}
}

func TestAIGameWithoutEngineLetsOwnerMoveBothSides(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	g, _ := f.mgr.CreateGame(ctx, f.alice.ID, true)

	for _, mv := range []string{"e2e4", "e7e5"} {
		res, err := f.mgr.ApplyMove(ctx, g.ID, f.alice.ID, mv[:2], mv[2:], "")
		if err != nil || !res.Valid {
			t.Fatalf("move %s: %+v %v", mv, res, err)
		}
	}
}

func TestConcurrentMovesApplyOnce(t *testing.T) {
	f := newFixture(t, nil)
	id := f.humanGame(t)
	ctx := context.Background()

	moves := []string{"e2e4", "d2d4", "c2c4", "g1f3"}
	results := make([]chessdto.MoveResponse, len(moves))
	var wg sync.WaitGroup
	for i, mv := range moves {
		wg.Add(1)
		go func(i int, mv string) {
			defer wg.Done()
			res, err := f.mgr.ApplyMove(ctx, id, f.alice.ID, mv[:2], mv[2:], "")
			if err != nil && !apperr.Is(err, apperr.KindConflict) {
				t.Errorf("apply %s: %v", mv, err)
			}
			results[i] = res
		}(i, mv)
	}
	wg.Wait()

	valid := 0
	for _, r := range results {
		if r.Valid {
			valid++
		}
	}
	g, _ := f.repo.GameByID(ctx, id)
	if valid != 1 || len(g.Moves) != 1 {
		t.Fatalf("expected exactly one applied move, got %d valid and moves %v", valid, g.Moves)
	}
}

func TestGetGameAndHistory(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	id := f.humanGame(t)
	f.play(t, id, "e2e4", "c7c5")
	aiGame, _ := f.mgr.CreateGame(ctx, f.alice.ID, true)

	detail, err := f.mgr.GetGame(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if detail.White != "alice" || detail.Black != "bob" || detail.Turn != "white" {
		t.Fatalf("unexpected detail %+v", detail)
	}
	if len(detail.History) != 2 || detail.History[1].SAN != "c5" || detail.History[1].FEN != detail.FEN {
		t.Fatalf("unexpected history %+v", detail.History)
	}
	if _, err := f.mgr.GetGame(ctx, 4242); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	hist, err := f.mgr.ListHistory(ctx, f.alice.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist) != 2 || hist[0].ID != aiGame.ID || hist[1].ID != id {
		t.Fatalf("expected newest first, got %+v", hist)
	}
	carol, _ := f.mgr.ListHistory(ctx, f.carol.ID)
	if len(carol) != 0 {
		t.Fatalf("carol played no games: %+v", carol)
	}
}

func TestLegalMovesPGNAndSnapshot(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	id := f.humanGame(t)

	legal, err := f.mgr.LegalMoves(ctx, id)
	if err != nil || len(legal.Moves) != 20 || legal.Turn != "white" {
		t.Fatalf("unexpected legal moves %+v %v", legal, err)
	}

	f.play(t, id, "e2e4")
	pgn, err := f.mgr.PGN(ctx, id)
	if err != nil {
		t.Fatalf("pgn: %v", err)
	}
	for _, want := range []string{`[White "alice"]`, `[Black "bob"]`, `[Result "*"]`, "1. e4 *"} {
		if !strings.Contains(pgn, want) {
			t.Fatalf("pgn missing %q:\n%s", want, pgn)
		}
	}

	snap, err := f.mgr.Snapshot(ctx, id)
	if err != nil || snap.Type != domain.EventSnapshot || snap.Move != "e2e4" || snap.Ply != 1 {
		t.Fatalf("unexpected snapshot %+v %v", snap, err)
	}

	waiting, _ := f.mgr.CreateGame(ctx, f.carol.ID, false)
	legal, _ = f.mgr.LegalMoves(ctx, waiting.ID)
	if len(legal.Moves) != 0 {
		t.Fatalf("waiting game has no legal moves yet: %v", legal.Moves)
	}
}

func TestNotifyJoinedPublishes(t *testing.T) {
	f := newFixture(t, nil)
	f.mgr.NotifyJoined(context.Background(), &domain.Game{ID: 5, Status: domain.StatusActive, FEN: domain.StartingFEN})
	if types := f.pub.types(); len(types) != 1 || types[0] != domain.EventJoined {
		t.Fatalf("unexpected events %v", types)
	}
}

func TestSeatLabels(t *testing.T) {
	white := int64(1)
	black := int64(2)
	names := map[int64]string{1: "alice", 2: "bob"}
	cases := []struct {
		g         *domain.Game
		wantWhite string
		wantBlack string
	}{
		{&domain.Game{WhiteID: &white, IsVsAI: true}, "alice", domain.LabelAI},
		{&domain.Game{WhiteID: &white}, "alice", domain.LabelPending},
		{&domain.Game{WhiteID: &white, BlackID: &black}, "alice", "bob"},
	}
	for _, tc := range cases {
		w, b := seatLabels(tc.g, names)
		if w != tc.wantWhite || b != tc.wantBlack {
			t.Fatalf("got %s/%s want %s/%s", w, b, tc.wantWhite, tc.wantBlack)
		}
	}
}
