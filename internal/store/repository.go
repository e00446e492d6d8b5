package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/park285/chess-platform/internal/domain"
)

// Repository is the persistence boundary for users and games.
type Repository interface {
	CreateUser(ctx context.Context, u *domain.User) (*domain.User, error)
	UserByID(ctx context.Context, id int64) (*domain.User, error)
	UserByUsername(ctx context.Context, username string) (*domain.User, error)
	UsernamesByIDs(ctx context.Context, ids []int64) (map[int64]string, error)
	TopUsers(ctx context.Context, limit int) ([]*domain.User, error)
	ApplyStatDeltas(ctx context.Context, deltas []domain.StatDelta) error

	CreateGame(ctx context.Context, g *domain.Game) (*domain.Game, error)
	GameByID(ctx context.Context, id int64) (*domain.Game, error)
	WaitingGames(ctx context.Context, excludeWhiteID int64, limit int) ([]*domain.Game, error)
	WaitingGameByWhite(ctx context.Context, whiteID int64) (*domain.Game, error)
	ClaimWaitingGame(ctx context.Context, gameID, blackID int64) (bool, error)
	UpdateGameIfPly(ctx context.Context, g *domain.Game, expectedPly int, expectedStatus domain.Status) error
	GamesByUser(ctx context.Context, userID int64) ([]*domain.Game, error)
	AbortWaitingBefore(ctx context.Context, cutoff, now time.Time) ([]int64, error)
}

type repository struct {
	db *DB
}

func NewRepository(db *DB) Repository {
	return &repository{db: db}
}

const userColumns = `id, username, email, password_hash, wins, losses, draws, elo, created_at`

const gameColumns = `id, white_id, black_id, status, fen, moves, result, started_at, ended_at, is_vs_ai`

func (r *repository) CreateUser(ctx context.Context, u *domain.User) (*domain.User, error) {
	if u == nil {
		return nil, fmt.Errorf("nil user payload")
	}
	const query = `
		INSERT INTO users (username, email, password_hash, wins, losses, draws, elo, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`

	var id int64
	err := r.db.QueryRowContext(ctx, r.db.rebind(query),
		u.Username, u.Email, u.PasswordHash, u.Wins, u.Losses, u.Draws, u.Elo, toMicros(u.CreatedAt),
	).Scan(&id)
	if isDuplicateKeyError(err) {
		return nil, ErrDuplicate
	}
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	out := *u
	out.ID = id
	return &out, nil
}

func (r *repository) UserByID(ctx context.Context, id int64) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	u, err := scanUser(r.db.QueryRowContext(ctx, r.db.rebind(query), id))
	if err != nil {
		return nil, fmt.Errorf("select user by id: %w", err)
	}
	return u, nil
}

func (r *repository) UserByUsername(ctx context.Context, username string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = ?`
	u, err := scanUser(r.db.QueryRowContext(ctx, r.db.rebind(query), strings.TrimSpace(username)))
	if err != nil {
		return nil, fmt.Errorf("select user by username: %w", err)
	}
	return u, nil
}

func (r *repository) UsernamesByIDs(ctx context.Context, ids []int64) (map[int64]string, error) {
	out := make(map[int64]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	seen := make(map[int64]struct{}, len(ids))
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		args = append(args, id)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(args)), ", ")
	query := `SELECT id, username FROM users WHERE id IN (` + placeholders + `)`

	rows, err := r.db.QueryContext(ctx, r.db.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("select usernames: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id   int64
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scan username: %w", err)
		}
		out[id] = name
	}
	return out, rows.Err()
}

// TopUsers orders by elo descending; equal ratings keep registration order.
func (r *repository) TopUsers(ctx context.Context, limit int) ([]*domain.User, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `SELECT ` + userColumns + ` FROM users ORDER BY elo DESC, id ASC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, r.db.rebind(query), limit)
	if err != nil {
		return nil, fmt.Errorf("select top users: %w", err)
	}
	defer rows.Close()

	users := make([]*domain.User, 0, limit)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// ApplyStatDeltas increments counters and ratings in one transaction. Ratings never drop below zero.
func (r *repository) ApplyStatDeltas(ctx context.Context, deltas []domain.StatDelta) error {
	if len(deltas) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin stats tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const query = `
		UPDATE users SET
			wins = wins + ?,
			losses = losses + ?,
			draws = draws + ?,
			elo = CASE WHEN elo + ? < 0 THEN 0 ELSE elo + ? END
		WHERE id = ?`
	q := r.db.rebind(query)
	for _, d := range deltas {
		if d.IsZero() {
			continue
		}
		res, err := tx.ExecContext(ctx, q, d.Wins, d.Losses, d.Draws, d.Elo, d.Elo, d.UserID)
		if err != nil {
			return fmt.Errorf("update user stats: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("update user stats %d: %w", d.UserID, ErrNotFound)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit stats tx: %w", err)
	}
	return nil
}

func (r *repository) CreateGame(ctx context.Context, g *domain.Game) (*domain.Game, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	moves, err := json.Marshal(nonNil(g.Moves))
	if err != nil {
		return nil, fmt.Errorf("marshal moves: %w", err)
	}
	const query = `
		INSERT INTO games (white_id, black_id, status, fen, moves, ply, result, started_at, ended_at, is_vs_ai)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`

	var id int64
	err = r.db.QueryRowContext(ctx, r.db.rebind(query),
		nullInt(g.WhiteID),
		nullInt(g.BlackID),
		string(g.Status),
		g.FEN,
		string(moves),
		len(g.Moves),
		nullString(g.Result),
		toMicros(g.StartedAt),
		nullTime(g.EndedAt),
		g.IsVsAI,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("insert game: %w", err)
	}
	out := g.Clone()
	out.ID = id
	return out, nil
}

func (r *repository) GameByID(ctx context.Context, id int64) (*domain.Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games WHERE id = ?`
	g, err := scanGame(r.db.QueryRowContext(ctx, r.db.rebind(query), id))
	if err != nil {
		return nil, fmt.Errorf("select game: %w", err)
	}
	return g, nil
}

// WaitingGames lists open human seats, oldest first, excluding those opened by excludeWhiteID.
func (r *repository) WaitingGames(ctx context.Context, excludeWhiteID int64, limit int) ([]*domain.Game, error) {
	if limit <= 0 {
		limit = 5
	}
	query := `SELECT ` + gameColumns + ` FROM games
		WHERE status = ? AND is_vs_ai = ? AND white_id <> ?
		ORDER BY started_at ASC, id ASC
		LIMIT ?`
	return r.queryGames(ctx, query, string(domain.StatusWaiting), false, excludeWhiteID, limit)
}

func (r *repository) WaitingGameByWhite(ctx context.Context, whiteID int64) (*domain.Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games
		WHERE status = ? AND is_vs_ai = ? AND white_id = ?
		ORDER BY started_at ASC, id ASC
		LIMIT 1`
	g, err := scanGame(r.db.QueryRowContext(ctx, r.db.rebind(query), string(domain.StatusWaiting), false, whiteID))
	if err != nil {
		return nil, fmt.Errorf("select waiting game: %w", err)
	}
	return g, nil
}

// ClaimWaitingGame seats blackID in a waiting game. It reports false when another
// request claimed the seat first.
func (r *repository) ClaimWaitingGame(ctx context.Context, gameID, blackID int64) (bool, error) {
	const query = `
		UPDATE games SET black_id = ?, status = ?
		WHERE id = ? AND status = ? AND is_vs_ai = ? AND white_id <> ? AND black_id IS NULL`
	res, err := r.db.ExecContext(ctx, r.db.rebind(query),
		blackID, string(domain.StatusActive),
		gameID, string(domain.StatusWaiting), false, blackID,
	)
	if err != nil {
		return false, fmt.Errorf("claim waiting game: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim rows affected: %w", err)
	}
	return n == 1, nil
}

// UpdateGameIfPly writes the mutable game fields only when the stored ply and status
// still match what the caller read.
func (r *repository) UpdateGameIfPly(ctx context.Context, g *domain.Game, expectedPly int, expectedStatus domain.Status) error {
	if err := g.Validate(); err != nil {
		return err
	}
	moves, err := json.Marshal(nonNil(g.Moves))
	if err != nil {
		return fmt.Errorf("marshal moves: %w", err)
	}
	const query = `
		UPDATE games SET
			status = ?, fen = ?, moves = ?, ply = ?, result = ?, ended_at = ?
		WHERE id = ? AND ply = ? AND status = ?`
	res, err := r.db.ExecContext(ctx, r.db.rebind(query),
		string(g.Status), g.FEN, string(moves), len(g.Moves), nullString(g.Result), nullTime(g.EndedAt),
		g.ID, expectedPly, string(expectedStatus),
	)
	if err != nil {
		return fmt.Errorf("update game: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update rows affected: %w", err)
	}
	if n == 0 {
		return ErrVersionConflict
	}
	return nil
}

// GamesByUser returns every game the user sits in, newest first.
func (r *repository) GamesByUser(ctx context.Context, userID int64) ([]*domain.Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games
		WHERE white_id = ? OR black_id = ?
		ORDER BY started_at DESC, id DESC`
	return r.queryGames(ctx, query, userID, userID)
}

// AbortWaitingBefore finishes waiting games opened before cutoff and returns their ids.
func (r *repository) AbortWaitingBefore(ctx context.Context, cutoff, now time.Time) ([]int64, error) {
	query := `SELECT id FROM games WHERE status = ? AND started_at < ? ORDER BY id`
	rows, err := r.db.QueryContext(ctx, r.db.rebind(query), string(domain.StatusWaiting), toMicros(cutoff))
	if err != nil {
		return nil, fmt.Errorf("select stale games: %w", err)
	}
	var candidates []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan stale game: %w", err)
		}
		candidates = append(candidates, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	const update = `
		UPDATE games SET status = ?, result = ?, ended_at = ?
		WHERE id = ? AND status = ?`
	q := r.db.rebind(update)
	aborted := make([]int64, 0, len(candidates))
	for _, id := range candidates {
		res, err := r.db.ExecContext(ctx, q,
			string(domain.StatusFinished), domain.ResultAborted, toMicros(now),
			id, string(domain.StatusWaiting),
		)
		if err != nil {
			return aborted, fmt.Errorf("abort game %d: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 1 {
			aborted = append(aborted, id)
		}
	}
	return aborted, nil
}

func (r *repository) queryGames(ctx context.Context, query string, args ...any) ([]*domain.Game, error) {
	rows, err := r.db.QueryContext(ctx, r.db.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("select games: %w", err)
	}
	defer rows.Close()

	var games []*domain.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("scan game: %w", err)
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		u         domain.User
		createdAt int64
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Wins, &u.Losses, &u.Draws, &u.Elo, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.CreatedAt = fromMicros(createdAt)
	return &u, nil
}

func scanGame(row rowScanner) (*domain.Game, error) {
	var (
		g         domain.Game
		whiteID   sql.NullInt64
		blackID   sql.NullInt64
		status    string
		movesJSON string
		result    sql.NullString
		startedAt int64
		endedAt   sql.NullInt64
	)
	err := row.Scan(&g.ID, &whiteID, &blackID, &status, &g.FEN, &movesJSON, &result, &startedAt, &endedAt, &g.IsVsAI)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if whiteID.Valid {
		v := whiteID.Int64
		g.WhiteID = &v
	}
	if blackID.Valid {
		v := blackID.Int64
		g.BlackID = &v
	}
	g.Status = domain.Status(status)
	if result.Valid {
		g.Result = result.String
	}
	g.StartedAt = fromMicros(startedAt)
	if endedAt.Valid {
		t := fromMicros(endedAt.Int64)
		g.EndedAt = &t
	}
	if err := json.Unmarshal([]byte(movesJSON), &g.Moves); err != nil {
		return nil, fmt.Errorf("unmarshal moves: %w", err)
	}
	g.Moves = nonNil(g.Moves)
	return &g, nil
}

func nonNil(moves []string) []string {
	if moves == nil {
		return []string{}
	}
	return moves
}

func nullInt(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return toMicros(*t)
}
