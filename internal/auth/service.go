package auth

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/park285/chess-platform/internal/apperr"
	"github.com/park285/chess-platform/internal/domain"
	"github.com/park285/chess-platform/internal/msgcat"
	"github.com/park285/chess-platform/internal/obslog"
	"github.com/park285/chess-platform/internal/store"
)

// bcrypt rejects inputs longer than 72 bytes.
const maxPasswordBytes = 72

type Config struct {
	Secret     string
	TokenTTL   time.Duration
	BcryptCost int
}

// Service registers users, checks credentials and issues bearer tokens.
type Service struct {
	repo    store.Repository
	signer  *Signer
	limiter *LoginLimiter
	cost    int

	onRegistered []func(context.Context)
}

func NewService(repo store.Repository, cfg Config, limiter *LoginLimiter) (*Service, error) {
	signer, err := NewSigner(cfg.Secret, cfg.TokenTTL)
	if err != nil {
		return nil, err
	}
	cost := cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Service{repo: repo, signer: signer, limiter: limiter, cost: cost}, nil
}

// Register creates a user with default rating and counters.
func (s *Service) Register(ctx context.Context, username, email, password string) (*domain.User, error) {
	if password == "" || len(password) > maxPasswordBytes {
		return nil, apperr.New(apperr.KindValidation, "password must be between 1 and 72 bytes")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "password hash failed", err)
	}
	u, err := domain.NewUser(username, email, string(hash), time.Now())
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, validationMessage(err), err)
	}
	saved, err := s.repo.CreateUser(ctx, u)
	if errors.Is(err, store.ErrDuplicate) {
		return nil, apperr.Wrap(apperr.KindConflict, msgcat.T("auth.duplicate"), err)
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	obslog.L().Info("user_registered", zap.Int64("user_id", saved.ID), zap.String("username", saved.Username))
	for _, fn := range s.onRegistered {
		fn(ctx)
	}
	return saved, nil
}

// OnRegistered registers fn to run after every successful registration.
func (s *Service) OnRegistered(fn func(context.Context)) {
	if s != nil && fn != nil {
		s.onRegistered = append(s.onRegistered, fn)
	}
}

// Authenticate checks username and password. Unknown users and wrong passwords
// produce the same Unauthorized error.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	blocked, retry, err := s.limiter.Blocked(ctx, username)
	if err != nil {
		obslog.L().Warn("login_limiter_unavailable", zap.Error(err))
	} else if blocked {
		secs := int(math.Ceil(retry.Seconds()))
		return nil, apperr.New(apperr.KindRateLimited, msgcat.Tf("auth.too_many_attempts", map[string]any{"Seconds": secs}))
	}

	invalid := apperr.New(apperr.KindUnauthorized, msgcat.T("auth.invalid_credentials"))
	u, err := s.repo.UserByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		s.recordFailure(ctx, username)
		return nil, invalid
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		s.recordFailure(ctx, username)
		return nil, invalid
	}
	if err := s.limiter.Reset(ctx, username); err != nil {
		obslog.L().Warn("login_limiter_reset_failed", zap.Error(err))
	}
	return u, nil
}

func (s *Service) recordFailure(ctx context.Context, username string) {
	if err := s.limiter.Fail(ctx, username); err != nil {
		obslog.L().Warn("login_fail_increment_failed", zap.Error(err))
	}
	obslog.L().Info("login_failed", zap.String("username", username))
}

// IssueToken signs a bearer token whose subject is the username.
func (s *Service) IssueToken(username string) (Token, error) {
	t, err := s.signer.Issue(username)
	if err != nil {
		return Token{}, apperr.Internal(err)
	}
	return t, nil
}

// VerifyToken resolves a bearer token to its user.
func (s *Service) VerifyToken(ctx context.Context, raw string) (*domain.User, error) {
	invalid := msgcat.T("auth.invalid_token")
	username, err := s.signer.Subject(raw)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnauthorized, invalid, err)
	}
	u, err := s.repo.UserByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.Wrap(apperr.KindUnauthorized, invalid, err)
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return u, nil
}

// Profile returns the public view of a user by username.
func (s *Service) Profile(ctx context.Context, username string) (*domain.User, error) {
	u, err := s.repo.UserByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.Wrap(apperr.KindNotFound, msgcat.T("auth.user_not_found"), err)
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return u, nil
}

func validationMessage(err error) string {
	msg := err.Error()
	if i := strings.LastIndex(msg, "\n"); i >= 0 {
		return msg[i+1:]
	}
	return msg
}
