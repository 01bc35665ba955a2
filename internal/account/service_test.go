package account

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/UkralStul/blog-service/internal/credential"
	"github.com/UkralStul/blog-service/internal/domain"
	"github.com/UkralStul/blog-service/internal/storage"
	"github.com/UkralStul/blog-service/internal/storage/inmemory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var testSettings = Settings{
	AccessSecret:  "access",
	AccessTTL:     time.Hour,
	RefreshSecret: "refresh",
	RefreshTTL:    24 * time.Hour,
}

func newTestService(t *testing.T, store storage.AccountStore) *Service {
	t.Helper()
	if store == nil {
		store = inmemory.New()
	}
	return NewService(store, credential.NewHasher(bcrypt.MinCost), credential.NewTokens(), testSettings)
}

func signup(t *testing.T, s *Service, email string) *Session {
	t.Helper()
	session, err := s.Signup(context.Background(), SignupInput{Name: "Ann", Email: email, Password: "secret"})
	require.NoError(t, err)
	return session
}

func TestService_Signup(t *testing.T) {
	s := newTestService(t, nil)

	session := signup(t, s, "ann@example.com")
	assert.NotEmpty(t, session.Account.ID)
	assert.NotEqual(t, "secret", session.Account.PasswordHash)
	assert.NotEmpty(t, session.AccessToken)
	assert.NotEmpty(t, session.RefreshToken)

	id, err := s.Authenticate(session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, session.Account.ID, id.AccountID)
}

func TestService_SignupDuplicateEmail(t *testing.T) {
	s := newTestService(t, nil)
	signup(t, s, "ann@example.com")

	_, err := s.Signup(context.Background(), SignupInput{Name: "Other", Email: "ann@example.com", Password: "pw1"})
	assert.Equal(t, domain.KindConflict, domain.KindOf(err))
}

func TestService_Login(t *testing.T) {
	s := newTestService(t, nil)
	ctx := context.Background()
	signup(t, s, "ann@example.com")

	session, err := s.Login(ctx, "ann@example.com", "secret")
	require.NoError(t, err)
	assert.NotEmpty(t, session.AccessToken)

	_, err = s.Login(ctx, "ann@example.com", "wrong")
	assert.Equal(t, domain.KindUnauthorized, domain.KindOf(err))

	_, err = s.Login(ctx, "nobody@example.com", "secret")
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestService_ChangePassword(t *testing.T) {
	s := newTestService(t, nil)
	ctx := context.Background()
	session := signup(t, s, "ann@example.com")
	id := domain.Identity{AccountID: session.Account.ID}

	err := s.ChangePassword(ctx, id, "wrong", "newpw")
	assert.Equal(t, domain.KindUnauthorized, domain.KindOf(err))

	require.NoError(t, s.ChangePassword(ctx, id, "secret", "newpw"))

	_, err = s.Login(ctx, "ann@example.com", "newpw")
	assert.NoError(t, err)
	_, err = s.Login(ctx, "ann@example.com", "secret")
	assert.Equal(t, domain.KindUnauthorized, domain.KindOf(err))

	err = s.ChangePassword(ctx, domain.Identity{AccountID: "missing"}, "secret", "newpw")
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

type failingPasswordStore struct {
	*inmemory.Store
}

func (failingPasswordStore) SetPasswordHash(context.Context, string, string) error {
	return errors.New("write not acknowledged")
}

func TestService_ChangePasswordReportsWriteFailure(t *testing.T) {
	s := newTestService(t, failingPasswordStore{inmemory.New()})
	session := signup(t, s, "ann@example.com")

	err := s.ChangePassword(context.Background(), domain.Identity{AccountID: session.Account.ID}, "secret", "newpw")
	require.Error(t, err)
	assert.Equal(t, domain.KindInternal, domain.KindOf(err))
}

func TestService_Profile(t *testing.T) {
	s := newTestService(t, nil)
	ctx := context.Background()
	session := signup(t, s, "ann@example.com")
	id := domain.Identity{AccountID: session.Account.ID}

	a, err := s.Profile(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", a.Email)

	_, err = s.Profile(ctx, domain.Identity{AccountID: "missing"})
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestService_UpdateProfile(t *testing.T) {
	s := newTestService(t, nil)
	ctx := context.Background()
	ann := signup(t, s, "ann@example.com")
	signup(t, s, "bob@example.com")
	id := domain.Identity{AccountID: ann.Account.ID}

	name := "Annie"
	a, err := s.UpdateProfile(ctx, id, domain.AccountPatch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Annie", a.Name)
	assert.Equal(t, "ann@example.com", a.Email)

	same := "ann@example.com"
	_, err = s.UpdateProfile(ctx, id, domain.AccountPatch{Email: &same})
	assert.NoError(t, err)

	taken := "bob@example.com"
	_, err = s.UpdateProfile(ctx, id, domain.AccountPatch{Email: &taken})
	assert.Equal(t, domain.KindConflict, domain.KindOf(err))

	_, err = s.UpdateProfile(ctx, domain.Identity{AccountID: "missing"}, domain.AccountPatch{Name: &name})
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestService_Refresh(t *testing.T) {
	s := newTestService(t, nil)
	ctx := context.Background()
	session := signup(t, s, "ann@example.com")

	access, err := s.Refresh(ctx, session.RefreshToken)
	require.NoError(t, err)
	id, err := s.Authenticate(access)
	require.NoError(t, err)
	assert.Equal(t, session.Account.ID, id.AccountID)

	// An access token is not signed with the refresh secret.
	_, err = s.Refresh(ctx, session.AccessToken)
	assert.Equal(t, domain.KindForbidden, domain.KindOf(err))

	_, err = s.Refresh(ctx, "")
	assert.Equal(t, domain.KindForbidden, domain.KindOf(err))
}

func TestService_AuthenticateRejectsGarbage(t *testing.T) {
	s := newTestService(t, nil)

	_, err := s.Authenticate("not-a-token")
	assert.Equal(t, domain.KindForbidden, domain.KindOf(err))
}
