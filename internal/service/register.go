package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/duca-club/acucys-ctf/internal/config"
	"github.com/duca-club/acucys-ctf/internal/constants"
	"github.com/duca-club/acucys-ctf/internal/ctfd"
	"github.com/duca-club/acucys-ctf/internal/logger"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// Registration is the result of a completed sign-up. Password is temporary
// and only ever shown to the registering user.
type Registration struct {
	User     *ctfd.User
	Password string
	LoginURL string
}

// RegistrationService guards the registration dialogue: one in-progress
// registration per Discord user, expiring after the dialogue timeout.
type RegistrationService struct {
	client   CTFd
	loginURL string
	timeout  time.Duration
	now      func() time.Time
	logger   zerolog.Logger

	mu      sync.Mutex
	pending map[string]time.Time
}

func NewRegistrationService(client CTFd, cfg *config.Config, log zerolog.Logger) *RegistrationService {
	timeout := cfg.RegisterTimeout
	if timeout <= 0 {
		timeout = constants.DefaultRegisterTimeout
	}
	return &RegistrationService{
		client:   client,
		loginURL: cfg.CTFdInstanceURL + "/login",
		timeout:  timeout,
		now:      time.Now,
		logger:   logger.Component(log, "registration"),
		pending:  make(map[string]time.Time),
	}
}

// Begin opens a registration for discordID. It fails when one is already
// open or the user already has an account.
func (s *RegistrationService) Begin(ctx context.Context, discordID string) error {
	if !s.claim(discordID) {
		return ErrRegistrationInProgress
	}

	_, found, err := s.client.GetUserFromDiscord(ctx, discordID)
	if err != nil {
		s.Cancel(discordID)
		return fmt.Errorf("look up existing account: %w", err)
	}
	if found {
		s.Cancel(discordID)
		return ErrAlreadyRegistered
	}

	s.logger.Debug().Str("discord_id", discordID).Msg("registration started")
	return nil
}

func (s *RegistrationService) claim(discordID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if started, ok := s.pending[discordID]; ok && s.now().Sub(started) < s.timeout {
		return false
	}
	s.pending[discordID] = s.now()
	return true
}

// Cancel ends an in-progress registration, if any.
func (s *RegistrationService) Cancel(discordID string) {
	s.mu.Lock()
	delete(s.pending, discordID)
	s.mu.Unlock()
}

// InProgress reports whether discordID has an unexpired registration open.
func (s *RegistrationService) InProgress(discordID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	started, ok := s.pending[discordID]
	return ok && s.now().Sub(started) < s.timeout
}

// MaxEmailAttempts is how often the dialogue may re-prompt for an email.
func (s *RegistrationService) MaxEmailAttempts() int {
	return constants.MaxEmailAttempts
}

func (s *RegistrationService) ValidateEmail(email string) error {
	if err := validation.Validate(strings.TrimSpace(email), validation.Required, is.EmailFormat); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEmail, err)
	}
	return nil
}

func (s *RegistrationService) ValidateName(name string) error {
	if err := validation.Validate(strings.TrimSpace(name), validation.Required, validation.RuneLength(1, 128)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidName, err)
	}
	return nil
}

// Complete creates the account with a generated temporary password. The
// registration is closed whatever the outcome.
func (s *RegistrationService) Complete(ctx context.Context, discordID, name, email string) (*Registration, error) {
	defer s.Cancel(discordID)

	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if err := s.ValidateName(name); err != nil {
		return nil, err
	}
	if err := s.ValidateEmail(email); err != nil {
		return nil, err
	}

	password, err := gonanoid.Generate(constants.TempPasswordCharset, constants.TempPasswordLength)
	if err != nil {
		return nil, fmt.Errorf("generate temporary password: %w", err)
	}

	user, err := s.client.RegisterUser(ctx, name, email, password, discordID)
	if err != nil {
		s.logger.Error().Err(err).Str("discord_id", discordID).Msg("registration failed")
		return nil, fmt.Errorf("register user: %w", err)
	}

	s.logger.Info().Int("user_id", user.ID).Str("discord_id", discordID).Msg("registration completed")
	return &Registration{User: user, Password: password, LoginURL: s.loginURL}, nil
}
