package services

import (
	"context"
	"errors"
	"fmt"

	"spendwise/internal/amqp"
	"spendwise/internal/auth"
	"spendwise/internal/core"
	applog "spendwise/internal/log"
	"spendwise/internal/metrics"
	"spendwise/internal/storage"
)

// RegisterInput is the payload of a registration.
type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Currency string `json:"currency"`
}

// AuthService registers accounts, checks credentials and resolves tokens.
type AuthService struct {
	users   storage.UserStore
	tokens  *auth.TokenIssuer
	events  events
	metrics *metrics.Metrics
}

func NewAuthService(users storage.UserStore, tokens *auth.TokenIssuer, ev events, m *metrics.Metrics) *AuthService {
	return &AuthService{users: users, tokens: tokens, events: ev, metrics: m}
}

// Register creates the account together with the default categories and
// returns it with a fresh access token.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (core.User, string, error) {
	logger := applog.FromContext(ctx).WithComponent(applog.ComponentAuth)

	email, err := core.NormalizeEmail(in.Email)
	if err != nil {
		return core.User{}, "", err
	}
	currency, err := core.NormalizeCurrency(in.Currency)
	if err != nil {
		return core.User{}, "", err
	}
	if err := core.ValidatePassword(in.Password); err != nil {
		return core.User{}, "", err
	}

	user := core.User{
		ID:        core.NewID(),
		Username:  in.Username,
		Email:     email,
		Currency:  currency,
		CreatedAt: core.Now(),
	}
	if err := user.Validate(); err != nil {
		return core.User{}, "", err
	}

	user.PasswordHash, err = auth.HashPassword(in.Password)
	if err != nil {
		return core.User{}, "", fmt.Errorf("register: %w", err)
	}

	if err := s.users.CreateUserWithCategories(ctx, user, core.DefaultCategories(user.ID)); err != nil {
		if errors.Is(err, core.ErrConflict) {
			return core.User{}, "", core.ErrEmailRegistered
		}
		return core.User{}, "", fmt.Errorf("register: %w", err)
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return core.User{}, "", fmt.Errorf("register: %w", err)
	}

	s.metrics.Registered()
	logger.InfoContext(ctx, "User registered",
		applog.FieldOperation, applog.OpRegister,
		applog.FieldUserID, user.ID)
	s.events.emit(ctx, amqp.UserRegistered, user.ID, user.ID)

	return user, token, nil
}

// Login checks the credentials and returns the user with a fresh token.
// Unknown emails and wrong passwords produce the same error.
func (s *AuthService) Login(ctx context.Context, email, password string) (core.User, string, error) {
	logger := applog.FromContext(ctx).WithComponent(applog.ComponentAuth)

	user, err := s.checkCredentials(ctx, email, password)
	if err != nil {
		s.metrics.Login(metrics.OutcomeFailure)
		if errors.Is(err, core.ErrUnauthorized) {
			logger.InfoContext(ctx, "Login rejected", applog.FieldOperation, applog.OpLogin)
		}
		return core.User{}, "", err
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return core.User{}, "", fmt.Errorf("login: %w", err)
	}
	s.metrics.Login(metrics.OutcomeSuccess)
	logger.DebugContext(ctx, "User logged in",
		applog.FieldOperation, applog.OpLogin,
		applog.FieldUserID, user.ID)
	return user, token, nil
}

func (s *AuthService) checkCredentials(ctx context.Context, email, password string) (core.User, error) {
	email, err := core.NormalizeEmail(email)
	if err != nil {
		return core.User{}, core.ErrBadCredentials
	}
	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, core.ErrNotFound) {
		return core.User{}, core.ErrBadCredentials
	}
	if err != nil {
		return core.User{}, fmt.Errorf("login: %w", err)
	}
	if !auth.CheckPassword(password, user.PasswordHash) {
		return core.User{}, core.ErrBadCredentials
	}
	return user, nil
}

// Authenticate resolves a bearer token to the id of the user it was issued
// for.
func (s *AuthService) Authenticate(_ context.Context, token string) (string, error) {
	if token == "" {
		return "", core.ErrMissingToken
	}
	return s.tokens.Verify(token)
}

// Me returns the profile of an authenticated user.
func (s *AuthService) Me(ctx context.Context, userID string) (core.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return core.User{}, notFoundAs(err, core.ErrUserNotFound, "get user")
	}
	return user, nil
}

// EnsureUser returns a token for the account with the given email,
// registering it first when it does not exist. The password is only used
// for a new account.
func (s *AuthService) EnsureUser(ctx context.Context, in RegisterInput) (core.User, string, bool, error) {
	email, err := core.NormalizeEmail(in.Email)
	if err != nil {
		return core.User{}, "", false, err
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, core.ErrNotFound) {
		created, token, regErr := s.Register(ctx, in)
		if regErr == nil {
			return created, token, true, nil
		}
		if !errors.Is(regErr, core.ErrConflict) {
			return core.User{}, "", false, regErr
		}
		// Lost a race with a concurrent registration.
		user, err = s.users.GetUserByEmail(ctx, email)
	}
	if err != nil {
		return core.User{}, "", false, fmt.Errorf("ensure user: %w", err)
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return core.User{}, "", false, fmt.Errorf("ensure user: %w", err)
	}
	return user, token, false, nil
}
