// Package auth runs the login, register-then-login and logout flows. It is
// the only component that writes the credential store.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/kjannette/trahn-papertrade/internal/external"
	"github.com/kjannette/trahn-papertrade/internal/models"
	"github.com/kjannette/trahn-papertrade/internal/session"
)

var (
	ErrMissingCredentials = errors.New("email and password are required")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrIncompleteForm     = errors.New("first name, last name, email and password are required")
)

// Backend is the subset of the gateway used by the auth flows.
type Backend interface {
	Login(ctx context.Context, email, password string) (*external.LoginResult, error)
	Register(ctx context.Context, reg models.Registration) error
}

// StepError reports which step of a multi-step flow failed.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return e.Step + " failed: " + e.Err.Error()
}

func (e *StepError) Unwrap() error {
	return e.Err
}

type Service struct {
	backend Backend
	store   session.Store
	logger  zerolog.Logger

	mu      sync.RWMutex
	profile *models.Profile
}

func NewService(backend Backend, store session.Store, logger zerolog.Logger) *Service {
	return &Service{backend: backend, store: store, logger: logger}
}

// Login authenticates and stores the returned credential.
func (s *Service) Login(ctx context.Context, email, password string) (*models.Profile, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	res, err := s.backend.Login(ctx, email, password)
	if err != nil {
		s.logger.Warn().Str("email", email).Err(err).Msg("login failed")
		return nil, err
	}

	if err := s.store.Set(ctx, res.Token); err != nil {
		return nil, fmt.Errorf("store credential: %w", err)
	}

	profile := res.Profile
	s.mu.Lock()
	s.profile = &profile
	s.mu.Unlock()

	s.logger.Info().Int64("user_id", profile.ID).Int64("portfolio_id", profile.PortfolioID).Msg("logged in")
	out := profile
	return &out, nil
}

// RegisterAndLogin creates the account and then logs in with the same
// credentials. The first failing step is reported as a *StepError.
func (s *Service) RegisterAndLogin(ctx context.Context, reg models.Registration) (*models.Profile, error) {
	reg.FirstName = strings.TrimSpace(reg.FirstName)
	reg.LastName = strings.TrimSpace(reg.LastName)
	reg.Email = strings.TrimSpace(reg.Email)
	if reg.FirstName == "" || reg.LastName == "" || reg.Email == "" || reg.Password == "" {
		return nil, ErrIncompleteForm
	}
	if _, err := mail.ParseAddress(reg.Email); err != nil {
		return nil, ErrInvalidEmail
	}

	if err := s.backend.Register(ctx, reg); err != nil {
		s.logger.Warn().Str("email", reg.Email).Err(err).Msg("registration failed")
		return nil, &StepError{Step: "registration", Err: err}
	}
	s.logger.Info().Str("email", reg.Email).Msg("registered")

	profile, err := s.Login(ctx, reg.Email, reg.Password)
	if err != nil {
		return nil, &StepError{Step: "login", Err: err}
	}
	if profile.Name == "" {
		profile.Name = reg.FirstName
		cached := *profile
		s.mu.Lock()
		s.profile = &cached
		s.mu.Unlock()
	}
	return profile, nil
}

// Logout clears the credential and the cached profile.
func (s *Service) Logout(ctx context.Context) error {
	s.Invalidate()
	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear credential: %w", err)
	}
	s.logger.Info().Msg("logged out")
	return nil
}

// Invalidate drops the cached profile after the backend rejected the
// credential. The store itself has already been cleared by the gateway.
func (s *Service) Invalidate() {
	s.mu.Lock()
	s.profile = nil
	s.mu.Unlock()
}

// Profile returns the logged-in user, if any.
func (s *Service) Profile() (models.Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return models.Profile{}, false
	}
	return *s.profile, true
}

// Authenticated reports whether a credential is currently stored.
func (s *Service) Authenticated(ctx context.Context) bool {
	_, err := s.store.Get(ctx)
	return err == nil
}

// PortfolioID returns the logged-in user's portfolio id.
func (s *Service) PortfolioID() (int64, bool) {
	p, ok := s.Profile()
	if !ok || p.PortfolioID == 0 {
		return 0, false
	}
	return p.PortfolioID, true
}

func WelcomeMessage(p models.Profile) string {
	if p.Name == "" {
		return "Welcome!"
	}
	return "Welcome, " + p.Name + "!"
}

func RegistrationMessage(p models.Profile) string {
	return "Registration complete, welcome " + p.Name + "!"
}
