package identity

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatme-app/chatme/internal/domain"
)

type memoryUserRepo struct {
	mu      sync.Mutex
	byID    map[string]*domain.User
	byEmail map[string]*domain.User
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{
		byID:    make(map[string]*domain.User),
		byEmail: make(map[string]*domain.User),
	}
}

func (r *memoryUserRepo) Create(ctx context.Context, u *domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byEmail[u.Email]; ok {
		return nil, fmt.Errorf("user %s: %w", u.Email, domain.ErrAlreadyExists)
	}
	r.byID[u.ID] = u
	r.byEmail[u.Email] = u
	return u, nil
}

func (r *memoryUserRepo) FindByID(ctx context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return u, nil
}

func (r *memoryUserRepo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byEmail[email]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return u, nil
}

func (r *memoryUserRepo) List(ctx context.Context, q domain.ListQuery) ([]domain.User, string, error) {
	return nil, "", nil
}
func (r *memoryUserRepo) UpdateProfile(ctx context.Context, id string, name, picture *string) (*domain.User, error) {
	return nil, domain.ErrNotFound
}
func (r *memoryUserRepo) TouchLastSeen(ctx context.Context, id string, at time.Time) error {
	return nil
}

func newTestService() (*Service, *memoryUserRepo) {
	repo := newMemoryUserRepo()
	return New(repo, "test-secret", time.Hour), repo
}

func TestSignUpHashesPasswordAndNormalizesSearchName(t *testing.T) {
	svc, _ := newTestService()

	user, err := svc.SignUp(context.Background(), "  Alice Carter ", "alice@example.com", "s3cret-pass")
	require.NoError(t, err)

	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "alice carter", user.SearchName)
	assert.NotEqual(t, "s3cret-pass", user.Password, "password must be stored hashed")
}

func TestSignUpRejectsDuplicateEmail(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.SignUp(ctx, "Alice", "alice@example.com", "s3cret-pass")
	require.NoError(t, err)

	_, err = svc.SignUp(ctx, "Alice Again", "alice@example.com", "other-pass")
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestSignInRoundTrip(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	created, err := svc.SignUp(ctx, "Alice", "alice@example.com", "s3cret-pass")
	require.NoError(t, err)

	user, token, err := svc.SignIn(ctx, "alice@example.com", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, created.ID, user.ID)
	require.NotEmpty(t, token)

	userID, err := svc.VerifyToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, created.ID, userID)
}

func TestSignInRejectsBadCredentials(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.SignUp(ctx, "Alice", "alice@example.com", "s3cret-pass")
	require.NoError(t, err)

	// Wrong password and unknown email look identical to the caller.
	_, _, err = svc.SignIn(ctx, "alice@example.com", "wrong-pass")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, _, err = svc.SignIn(ctx, "nobody@example.com", "s3cret-pass")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestVerifyTokenRejectsForgeryAndExpiry(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	user, err := svc.SignUp(ctx, "Alice", "alice@example.com", "s3cret-pass")
	require.NoError(t, err)

	t.Run("garbage token", func(t *testing.T) {
		_, err := svc.VerifyToken(ctx, "not-a-token")
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("token signed with a different secret", func(t *testing.T) {
		otherRepo := newMemoryUserRepo()
		other := New(otherRepo, "other-secret", time.Hour)
		forged, err := other.IssueToken(user.ID)
		require.NoError(t, err)

		_, err = svc.VerifyToken(ctx, forged)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("expired token", func(t *testing.T) {
		svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
		expired, err := svc.IssueToken(user.ID)
		require.NoError(t, err)
		svc.now = time.Now

		_, err = svc.VerifyToken(ctx, expired)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("token for a deleted account", func(t *testing.T) {
		token, err := svc.IssueToken("vanished-user")
		require.NoError(t, err)

		_, err = svc.VerifyToken(ctx, token)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})
}
