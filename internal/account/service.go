// Package account implements the account directory and the authentication flows on top of it.
package account

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/UkralStul/blog-service/internal/domain"
	"github.com/UkralStul/blog-service/internal/storage"
)

// PasswordHasher is satisfied by *credential.Hasher.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hash string) bool
}

// TokenService is satisfied by *credential.Tokens.
type TokenService interface {
	Issue(accountID, secret string, ttl time.Duration) (string, error)
	Verify(token, secret string) (domain.Identity, error)
}

// Settings holds the token secrets and lifetimes.
type Settings struct {
	AccessSecret  string
	AccessTTL     time.Duration
	RefreshSecret string
	RefreshTTL    time.Duration
}

type Service struct {
	store    storage.AccountStore
	hasher   PasswordHasher
	tokens   TokenService
	settings Settings
}

func NewService(store storage.AccountStore, hasher PasswordHasher, tokens TokenService, settings Settings) *Service {
	return &Service{store: store, hasher: hasher, tokens: tokens, settings: settings}
}

// Session is the result of a successful signup or login.
type Session struct {
	Account      *domain.Account
	AccessToken  string
	RefreshToken string
}

type SignupInput struct {
	Name     string
	Email    string
	Password string
}

// === Directory ===

func (s *Service) FindByID(ctx context.Context, id string) (*domain.Account, error) {
	a, err := s.store.GetAccountByID(ctx, id)
	if err != nil {
		return nil, translate(err, "account")
	}
	return a, nil
}

func (s *Service) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	a, err := s.store.GetAccountByEmail(ctx, email)
	if err != nil {
		return nil, translate(err, "account")
	}
	return a, nil
}

// Create registers a new account. The password is hashed before anything is stored.
func (s *Service) Create(ctx context.Context, in SignupInput) (*domain.Account, error) {
	if _, err := s.store.GetAccountByEmail(ctx, in.Email); err == nil {
		return nil, domain.Conflict("email %s is already registered", in.Email)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, translate(err, "account")
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, internal("failed to create account", err)
	}

	a, err := s.store.CreateAccount(ctx, &domain.Account{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
	})
	if err != nil {
		return nil, translate(err, "account")
	}
	return a, nil
}

// Update applies patch to the account. An email owned by another account is a conflict.
func (s *Service) Update(ctx context.Context, id string, patch domain.AccountPatch) (*domain.Account, error) {
	if patch.Email != nil {
		other, err := s.store.GetAccountByEmail(ctx, *patch.Email)
		switch {
		case err == nil && other.ID != id:
			return nil, domain.Conflict("email %s is already registered", *patch.Email)
		case err != nil && !errors.Is(err, storage.ErrNotFound):
			return nil, translate(err, "account")
		}
	}

	a, err := s.store.UpdateAccount(ctx, id, patch)
	if err != nil {
		return nil, translate(err, "account")
	}
	return a, nil
}

func (s *Service) VerifyPassword(raw, hash string) bool {
	return s.hasher.Verify(raw, hash)
}

// === Auth Flows ===

func (s *Service) Signup(ctx context.Context, in SignupInput) (*Session, error) {
	a, err := s.Create(ctx, in)
	if err != nil {
		return nil, err
	}
	log.Printf("[account] signed up %s", a.ID)
	return s.newSession(a)
}

func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	a, err := s.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if !s.hasher.Verify(password, a.PasswordHash) {
		return nil, domain.Unauthorized("password is incorrect")
	}
	return s.newSession(a)
}

// ChangePassword stores a new hash once oldPassword is verified. It returns only after the
// write has been acknowledged by the store.
func (s *Service) ChangePassword(ctx context.Context, id domain.Identity, oldPassword, newPassword string) error {
	a, err := s.FindByID(ctx, id.AccountID)
	if err != nil {
		return err
	}
	if !s.hasher.Verify(oldPassword, a.PasswordHash) {
		return domain.Unauthorized("password is incorrect")
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return internal("failed to change password", err)
	}
	if err := s.store.SetPasswordHash(ctx, a.ID, hash); err != nil {
		return translate(err, "account")
	}
	return nil
}

func (s *Service) Profile(ctx context.Context, id domain.Identity) (*domain.Account, error) {
	return s.FindByID(ctx, id.AccountID)
}

func (s *Service) UpdateProfile(ctx context.Context, id domain.Identity, patch domain.AccountPatch) (*domain.Account, error) {
	return s.Update(ctx, id.AccountID, patch)
}

// Refresh exchanges a refresh token for a new access token.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	if refreshToken == "" {
		return "", domain.Forbidden("refresh token is missing")
	}
	id, err := s.tokens.Verify(refreshToken, s.settings.RefreshSecret)
	if err != nil {
		return "", domain.Forbidden("invalid refresh token")
	}
	a, err := s.FindByID(ctx, id.AccountID)
	if err != nil {
		return "", err
	}
	access, err := s.tokens.Issue(a.ID, s.settings.AccessSecret, s.settings.AccessTTL)
	if err != nil {
		return "", internal("failed to issue token", err)
	}
	return access, nil
}

// Authenticate verifies an access token. Any failure is Forbidden.
func (s *Service) Authenticate(token string) (domain.Identity, error) {
	id, err := s.tokens.Verify(token, s.settings.AccessSecret)
	if err != nil {
		return domain.Identity{}, domain.Forbidden("invalid or expired token")
	}
	return id, nil
}

func (s *Service) newSession(a *domain.Account) (*Session, error) {
	access, err := s.tokens.Issue(a.ID, s.settings.AccessSecret, s.settings.AccessTTL)
	if err != nil {
		return nil, internal("failed to issue token", err)
	}
	refresh, err := s.tokens.Issue(a.ID, s.settings.RefreshSecret, s.settings.RefreshTTL)
	if err != nil {
		return nil, internal("failed to issue token", err)
	}
	return &Session{Account: a, AccessToken: access, RefreshToken: refresh}, nil
}

func translate(err error, entity string) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return domain.NotFound("%s not found", entity)
	case errors.Is(err, storage.ErrDuplicateEmail):
		return domain.Conflict("email is already registered")
	default:
		return internal("account storage failure", err)
	}
}

func internal(message string, err error) error {
	log.Printf("[account] %s: %v", message, err)
	return domain.Internal(message, err)
}
