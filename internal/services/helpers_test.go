package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"account-service/internal/models"
	"account-service/internal/permission"
	"account-service/internal/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret-key-at-least-32-characters"

type fakeNotifier struct {
	mu   sync.Mutex
	sent []models.PasswordResetEmail
	err  error
}

func (n *fakeNotifier) NotifyPasswordReset(ctx context.Context, msg models.PasswordResetEmail) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, msg)
	return nil
}

func (n *fakeNotifier) last() (models.PasswordResetEmail, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sent) == 0 {
		return models.PasswordResetEmail{}, false
	}
	return n.sent[len(n.sent)-1], true
}

type testEnv struct {
	users    *repository.MemoryUserRepository
	audits   *repository.MemoryAuditRepository
	redis    *miniredis.Miniredis
	client   *redis.Client
	hasher   *PasswordHasher
	tokens   *TokenService
	notifier *fakeNotifier
	auth     *AuthService
	accounts *UserService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := zerolog.Nop()
	hasher, err := NewPasswordHasher(HasherConfig{Algorithm: AlgorithmBcrypt, BcryptCost: bcrypt.MinCost, Workers: 4}, logger)
	require.NoError(t, err)

	tokens, err := NewTokenService(TokenConfig{
		Secret:     testSecret,
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 24 * time.Hour,
		ResetTTL:   time.Hour,
	}, NewRedisLedger(client), logger)
	require.NoError(t, err)

	env := &testEnv{
		users:    repository.NewMemoryUserRepository(),
		audits:   repository.NewMemoryAuditRepository(),
		redis:    mr,
		client:   client,
		hasher:   hasher,
		tokens:   tokens,
		notifier: &fakeNotifier{},
	}
	audit := NewAuditService(env.audits, logger)
	env.auth = NewAuthService(env.users, hasher, tokens, audit, env.notifier, logger)
	env.accounts = NewUserService(env.users, tokens, audit, logger)
	return env
}

func (e *testEnv) register(t *testing.T, email, password string, role models.UserRole) *models.AuthResponse {
	t.Helper()
	req := &models.RegisterRequest{
		Email:           email,
		Password:        password,
		ConfirmPassword: password,
		Role:            string(role),
	}
	if role == models.RoleSeller {
		req.PhoneNumber = "+9779800000000"
	}
	resp, err := e.auth.Register(context.Background(), req)
	require.NoError(t, err)
	return resp
}

func identityOf(u *models.User) permission.Identity {
	return permission.Identity{UserID: u.ID, Email: u.Email, Role: u.Role}
}
