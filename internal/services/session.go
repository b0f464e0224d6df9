package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/auth"
	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/mailer"
	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/model"
	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/store"
	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/validate"
)

// PasswordCost is the bcrypt work factor for new accounts.
const PasswordCost = 10

const welcomeTimeout = 15 * time.Second

// SessionService handles signup and login.
type SessionService struct {
	store     store.Store
	tokens    *auth.Tokens
	mail      mailer.Sender
	clientURL string
	log       zerolog.Logger
	cost      int

	// async runs the welcome mail; tests swap it for a synchronous call
	async func(func())
}

func NewSessionService(st store.Store, tokens *auth.Tokens, mail mailer.Sender, clientURL string, log zerolog.Logger) *SessionService {
	return &SessionService{
		store:     st,
		tokens:    tokens,
		mail:      mail,
		clientURL: clientURL,
		log:       log,
		cost:      PasswordCost,
		async:     func(f func()) { go f() },
	}
}

// HashPassword hashes a plaintext password with PasswordCost.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Signup creates an account, returns it with a session token and sends the
// welcome email in the background.
func (s *SessionService) Signup(ctx context.Context, fullName, email, password string) (*model.Identity, string, error) {
	fullName = strings.TrimSpace(fullName)
	email = store.NormalizeEmail(email)
	if fullName == "" || email == "" || password == "" {
		return nil, "", errMissingFields
	}
	if err := validate.Password(password); err != nil {
		if len(password) < validate.MinPasswordLength {
			return nil, "", errPasswordTooShort
		}
		return nil, "", errPasswordTooLong
	}
	if err := validate.Email(email); err != nil {
		return nil, "", errInvalidEmail
	}
	if err := validate.FullName(fullName); err != nil {
		return nil, "", NewValidationError(CodeMissingFields, err.Error())
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}
	u, err := s.store.Users().Create(ctx, &model.Identity{FullName: fullName, Email: email}, string(hash))
	if err != nil {
		if errors.Is(err, model.ErrConflict) {
			return nil, "", errEmailTaken
		}
		return nil, "", fmt.Errorf("create user: %w", err)
	}

	token, err := s.tokens.Issue(u.ID)
	if err != nil {
		return nil, "", fmt.Errorf("issue token: %w", err)
	}

	s.async(func() {
		mctx, cancel := context.WithTimeout(context.Background(), welcomeTimeout)
		defer cancel()
		if err := s.mail.SendWelcome(mctx, u.Email, u.FullName, s.clientURL); err != nil {
			s.log.Error().Err(err).Str("user", u.ID).Msg("welcome email failed")
		}
	})
	s.log.Info().Str("user", u.ID).Msg("account created")
	return u, token, nil
}

// Login checks the password against the stored hash and issues a session token.
func (s *SessionService) Login(ctx context.Context, email, password string) (*model.Identity, string, error) {
	email = store.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, "", errMissingFields
	}

	u, hash, err := s.store.Users().GetCredentials(ctx, email)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, "", errInvalidCredentials
		}
		return nil, "", fmt.Errorf("load credentials: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, "", errInvalidCredentials
		}
		return nil, "", fmt.Errorf("compare password: %w", err)
	}

	token, err := s.tokens.Issue(u.ID)
	if err != nil {
		return nil, "", fmt.Errorf("issue token: %w", err)
	}
	return u, token, nil
}
