package uci

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/chess-platform/internal/obslog"
)

const (
	handshakeTimeout = 4 * time.Second
	maxMultiPV       = 500
)

var errEngineExited = errors.New("engine output closed")

// Options are the engine settings applied once per process.
type Options struct {
	Threads    int
	SkillLevel int
	HashMB     int
	Elo        int // 0 disables UCI_LimitStrength
	MultiPV    int // lines reported per search; 0 or 1 means best line only
}

func (o Options) validate() error {
	switch {
	case o.SkillLevel < 0 || o.SkillLevel > 20:
		return fmt.Errorf("skill level %d out of range 0-20", o.SkillLevel)
	case o.HashMB <= 0:
		return fmt.Errorf("hash size must be > 0: %d", o.HashMB)
	case o.Elo < 0:
		return fmt.Errorf("elo must be >= 0: %d", o.Elo)
	case o.MultiPV < 0 || o.MultiPV > maxMultiPV:
		return fmt.Errorf("multipv %d out of range 0-%d", o.MultiPV, maxMultiPV)
	}
	return nil
}

// setoptions lists the setoption lines sent after uciok.
func (o Options) setoptions() []string {
	threads := max(o.Threads, 1)
	out := []string{
		"setoption name Threads value " + strconv.Itoa(threads),
		"setoption name Hash value " + strconv.Itoa(o.HashMB),
		"setoption name Skill Level value " + strconv.Itoa(o.SkillLevel),
		"setoption name Move Overhead value 100",
	}
	if o.Elo > 0 {
		out = append(out,
			"setoption name UCI_LimitStrength value true",
			"setoption name UCI_Elo value "+strconv.Itoa(o.Elo),
		)
	}
	if o.MultiPV > 1 {
		out = append(out, "setoption name MultiPV value "+strconv.Itoa(o.MultiPV))
	}
	return out
}

// Limits bound a single search.
type Limits struct {
	Depth          int
	MoveTimeMillis int
	NodeCap        int
}

func (l Limits) goCommand() (string, error) {
	var sb strings.Builder
	sb.WriteString("go")
	add := func(name string, v int) {
		if v > 0 {
			fmt.Fprintf(&sb, " %s %d", name, v)
		}
	}
	add("depth", l.Depth)
	add("movetime", l.MoveTimeMillis)
	add("nodes", l.NodeCap)
	if sb.Len() == len("go") {
		return "", fmt.Errorf("no search limits specified")
	}
	return sb.String(), nil
}

// budget is how long to wait for bestmove before giving up on the process.
func (l Limits) budget() time.Duration {
	switch {
	case l.MoveTimeMillis > 0:
		return time.Duration(l.MoveTimeMillis)*time.Millisecond + 2*time.Second
	case l.Depth > 0:
		return min(max(time.Duration(l.Depth)*300*time.Millisecond, 6*time.Second), 20*time.Second)
	default:
		return 6 * time.Second
	}
}

func positionCommand(moves []string) string {
	if len(moves) == 0 {
		return "position startpos"
	}
	return "position startpos moves " + strings.Join(moves, " ")
}

// Session is one running UCI engine process. One goroutine pumps stdout into lines.
type Session struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
	lines chan string

	writeMu  sync.Mutex
	searchMu sync.Mutex
	once     sync.Once
}

func NewSession(ctx context.Context, binaryPath string, opt Options) (*Session, error) {
	if err := opt.validate(); err != nil {
		return nil, err
	}

	// 프로세스 수명은 요청 ctx와 분리
	cmd := exec.Command(binaryPath)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		_ = stdin.Close()
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		return nil, fmt.Errorf("start engine: %w", err)
	}

	s := &Session{cmd: cmd, stdin: stdin, lines: make(chan string, 64)}
	go s.pump(stdout)

	if err := s.handshake(ctx, opt); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Session) pump(r io.Reader) {
	defer close(s.lines)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		s.lines <- strings.TrimSpace(sc.Text())
	}
}

func (s *Session) handshake(ctx context.Context, opt Options) error {
	ctx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()

	if err := s.send("uci"); err != nil {
		return err
	}
	if _, err := s.waitFor(ctx, "uciok"); err != nil {
		return fmt.Errorf("wait uciok: %w", err)
	}
	for _, line := range opt.setoptions() {
		if err := s.send(line); err != nil {
			return err
		}
	}
	return s.ping(ctx)
}

// Line is one principal variation from an info line. Mate is nonzero when the engine sees a
// forced mate; positive means the side to move mates.
type Line struct {
	Rank    int
	Move    string
	ScoreCP int
	Mate    int
	PV      []string
}

// Result is what a finished search reported. Lines are ordered by rank and keep only the
// deepest report per rank.
type Result struct {
	BestMove string
	Lines    []Line
}

// BestMove searches the position reached by moves from the initial position.
// An empty move with a nil error means the engine reported no legal move.
func (s *Session) BestMove(ctx context.Context, moves []string, limits Limits) (string, error) {
	res, err := s.Search(ctx, moves, limits)
	if err != nil {
		return "", err
	}
	return res.BestMove, nil
}

// Search runs one search and collects the info lines reported before bestmove.
func (s *Session) Search(ctx context.Context, moves []string, limits Limits) (Result, error) {
	s.searchMu.Lock()
	defer s.searchMu.Unlock()

	goCmd, err := limits.goCommand()
	if err != nil {
		return Result{}, err
	}
	if err := s.send(positionCommand(moves)); err != nil {
		return Result{}, err
	}
	if err := s.send(goCmd); err != nil {
		return Result{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, limits.budget())
	defer cancel()
	byRank := make(map[int]Line)
	for {
		line, err := s.next(ctx)
		if err != nil {
			obslog.L().Warn("uci_search_failed", zap.String("go", goCmd), zap.Int("ply", len(moves)), zap.Error(err))
			return Result{}, fmt.Errorf("wait bestmove: %w", err)
		}
		if info, ok := parseInfo(line); ok {
			byRank[info.Rank] = info
			continue
		}
		if mv, ok := parseBestMove(line); ok {
			return Result{BestMove: mv, Lines: sortedLines(byRank)}, nil
		}
	}
}

func sortedLines(byRank map[int]Line) []Line {
	out := make([]Line, 0, len(byRank))
	for _, l := range byRank {
		out = append(out, l)
	}
	slices.SortFunc(out, func(a, b Line) int { return a.Rank - b.Rank })
	return out
}

// EnsureReady round-trips isready/readyok.
func (s *Session) EnsureReady(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()
	return s.ping(ctx)
}

func (s *Session) ping(ctx context.Context) error {
	if err := s.send("isready"); err != nil {
		return err
	}
	if _, err := s.waitFor(ctx, "readyok"); err != nil {
		return fmt.Errorf("wait readyok: %w", err)
	}
	return nil
}

func (s *Session) Close() error {
	s.once.Do(func() {
		_ = s.send("quit")
		_ = s.stdin.Close()
		if s.cmd.Process != nil {
			_ = s.cmd.Process.Kill()
		}
		_ = s.cmd.Wait()
	})
	return nil
}

func (s *Session) send(line string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := io.WriteString(s.stdin, line+"\n"); err != nil {
		return fmt.Errorf("write %q: %w", strings.Fields(line)[0], err)
	}
	return nil
}

// waitFor consumes output until a line starting with prefix arrives.
func (s *Session) waitFor(ctx context.Context, prefix string) (string, error) {
	for {
		line, err := s.next(ctx)
		if err != nil {
			return "", err
		}
		if strings.HasPrefix(line, prefix) {
			return line, nil
		}
	}
}

func (s *Session) next(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-s.lines:
		if !ok {
			return "", errEngineExited
		}
		return line, nil
	}
}

// parseInfo reads "info ... multipv N score cp X ... pv m1 m2" lines. Lines without a score
// and a pv (currmove, string, hashfull) are skipped.
func parseInfo(line string) (Line, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 || fields[0] != "info" {
		return Line{}, false
	}
	out := Line{Rank: 1}
	scored := false
	for i := 1; i < len(fields); i++ {
		switch fields[i] {
		case "multipv":
			if i+1 < len(fields) {
				if n, err := strconv.Atoi(fields[i+1]); err == nil && n > 0 {
					out.Rank = n
				}
				i++
			}
		case "score":
			if i+2 < len(fields) {
				n, err := strconv.Atoi(fields[i+2])
				if err != nil {
					return Line{}, false
				}
				switch fields[i+1] {
				case "cp":
					out.ScoreCP, scored = n, true
				case "mate":
					out.Mate, scored = n, true
				}
				i += 2
			}
		case "pv":
			out.PV = slices.Clone(fields[i+1:])
			i = len(fields)
		}
	}
	if !scored || len(out.PV) == 0 {
		return Line{}, false
	}
	out.Move = out.PV[0]
	return out, true
}

// parseBestMove extracts the move from a "bestmove" line. "(none)" means no legal move.
func parseBestMove(line string) (string, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 || fields[0] != "bestmove" {
		return "", false
	}
	if len(fields) < 2 || fields[1] == "(none)" || fields[1] == "0000" {
		return "", true
	}
	return fields[1], true
}
