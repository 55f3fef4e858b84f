package auth_test

import (
	"context"
	"testing"
	"time"

	"voting-service/internal/auth"
	"voting-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUserRepo struct {
	byEmail map[string]*models.User
	byID    map[string]*models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		byEmail: make(map[string]*models.User),
		byID:    make(map[string]*models.User),
	}
}

func (r *fakeUserRepo) CreateUser(_ context.Context, user *models.User) error {
	r.byEmail[user.Email] = user
	r.byID[user.ID] = user
	return nil
}

func (r *fakeUserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	u, ok := r.byEmail[email]
	if !ok {
		return nil, auth.ErrUserNotFound
	}
	return u, nil
}

func (r *fakeUserRepo) FindByID(_ context.Context, id string) (*models.User, error) {
	u, ok := r.byID[id]
	if !ok {
		return nil, auth.ErrUserNotFound
	}
	return u, nil
}

func newTestService() (*auth.AuthService, *fakeUserRepo) {
	repo := newFakeUserRepo()
	return auth.NewAuthService(repo, "test-secret", time.Hour), repo
}

func TestRegisterHashesPassword(t *testing.T) {
	svc, repo := newTestService()

	user, err := svc.Register(context.Background(), models.RegisterRequest{
		Username: "ada",
		Email:    "ada@example.com",
		Password: "s3cret-pass",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, models.RoleVoter, user.Role)
	assert.NotEqual(t, "s3cret-pass", user.Password)
	assert.Contains(t, repo.byEmail, "ada@example.com")
}

func TestLoginAndResolveToken(t *testing.T) {
	svc, _ := newTestService()
	registered, err := svc.Register(context.Background(), models.RegisterRequest{
		Username: "ada",
		Email:    "ada@example.com",
		Password: "s3cret-pass",
	})
	require.NoError(t, err)

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "ada@example.com",
		Password: "s3cret-pass",
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Token)

	identity, err := svc.ResolveToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, registered.ID, identity.UserID)
	assert.Equal(t, models.RoleVoter, identity.Role)
	assert.False(t, identity.IsAdmin())
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Username: "ada",
		Email:    "ada@example.com",
		Password: "s3cret-pass",
	})
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "ada@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "nobody@example.com", Password: "s3cret-pass"})
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestResolveTokenRejectsTampering(t *testing.T) {
	svc, _ := newTestService()
	other := auth.NewAuthService(newFakeUserRepo(), "other-secret", time.Hour)

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Username: "ada",
		Email:    "ada@example.com",
		Password: "s3cret-pass",
	})
	require.NoError(t, err)
	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "ada@example.com",
		Password: "s3cret-pass",
	})
	require.NoError(t, err)

	_, err = other.ResolveToken(resp.Token)
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = svc.ResolveToken("not-a-token")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}
