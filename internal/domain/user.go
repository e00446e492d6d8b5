package domain

import (
	"errors"
	"net/mail"
	"strings"
	"time"
)

const DefaultElo = 1200

var ErrInvalidUser = errors.New("invalid user")

// User is a registered player. Username and Email are unique across users.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	Wins         int
	Losses       int
	Draws        int
	Elo          int
	CreatedAt    time.Time
}

// NewUser builds a user with default counters and rating.
func NewUser(username, email, passwordHash string, now time.Time) (*User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" {
		return nil, errors.Join(ErrInvalidUser, errors.New("username is required"))
	}
	if len(username) > 64 {
		return nil, errors.Join(ErrInvalidUser, errors.New("username is too long"))
	}
	if _, err := mail.ParseAddress(email); err != nil || !strings.Contains(email, "@") {
		return nil, errors.Join(ErrInvalidUser, errors.New("email is invalid"))
	}
	if passwordHash == "" {
		return nil, errors.Join(ErrInvalidUser, errors.New("password hash is required"))
	}
	return &User{
		Username:     username,
		Email:        strings.ToLower(email),
		PasswordHash: passwordHash,
		Elo:          DefaultElo,
		CreatedAt:    now.UTC(),
	}, nil
}

func (u *User) GamesPlayed() int {
	if u == nil {
		return 0
	}
	return u.Wins + u.Losses + u.Draws
}

// StatDelta is an increment applied to a user's counters and rating after a finished game.
type StatDelta struct {
	UserID int64
	Wins   int
	Losses int
	Draws  int
	Elo    int
}

func (d StatDelta) IsZero() bool {
	return d.Wins == 0 && d.Losses == 0 && d.Draws == 0 && d.Elo == 0
}
