package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"account-service/internal/handlers"
	"account-service/internal/models"
	"account-service/internal/repository"
	"account-service/internal/services"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type captureNotifier struct {
	mu   sync.Mutex
	last models.PasswordResetEmail
	n    int
}

func (c *captureNotifier) NotifyPasswordReset(ctx context.Context, msg models.PasswordResetEmail) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = msg
	c.n++
	return nil
}

type testServer struct {
	handler  http.Handler
	users    *repository.MemoryUserRepository
	notifier *captureNotifier
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zerolog.Nop()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	ledger := services.NewRedisLedger(client)

	hasher, err := services.NewPasswordHasher(services.HasherConfig{BcryptCost: bcrypt.MinCost, Workers: 4}, logger)
	require.NoError(t, err)
	tokens, err := services.NewTokenService(services.TokenConfig{
		Secret:     "router-test-secret-that-is-long-enough",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 24 * time.Hour,
		ResetTTL:   time.Hour,
	}, ledger, logger)
	require.NoError(t, err)

	users := repository.NewMemoryUserRepository()
	audit := services.NewAuditService(repository.NewMemoryAuditRepository(), logger)
	notifier := &captureNotifier{}

	h := SetupRouter(Deps{
		Auth:   services.NewAuthService(users, hasher, tokens, audit, notifier, logger),
		Users:  services.NewUserService(users, tokens, audit, logger),
		Tokens: tokens,
		Health: handlers.NewHealthHandler(users, ledger, logger),
	}, Options{
		CORSOrigins:    []string{"https://shop.example"},
		RateLimitRPS:   1000,
		RateLimitBurst: 1000,
		RequestTimeout: 5 * time.Second,
	}, logger)

	return &testServer{handler: h, users: users, notifier: notifier}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

type authBody struct {
	User    models.User `json:"user"`
	Access  string      `json:"access"`
	Refresh string      `json:"refresh"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
}

func (s *testServer) register(t *testing.T, email string, role models.UserRole) authBody {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email": email, "password": "Secret123", "confirm_password": "Secret123", "role": string(role),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var body authBody
	decode(t, rec, &body)
	return body
}

func TestRegisterCreatesProfileAndTokens(t *testing.T) {
	s := newTestServer(t)

	body := s.register(t, "a@x.com", models.RoleCustomer)
	assert.NotEmpty(t, body.Access)
	assert.NotEmpty(t, body.Refresh)
	assert.Equal(t, "a@x.com", body.User.Email)
	require.NotNil(t, body.User.Profile)
	assert.True(t, body.User.Profile.ReceiveSMSNotifications)

	rec := s.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email": "A@x.com", "password": "Secret123", "confirm_password": "Secret123", "role": "customer",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"email":"a user with this email already exists"}`, rec.Body.String())
}

func TestRegisterSellerNeedsPhone(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email": "s@x.com", "password": "Secret123", "confirm_password": "Secret123", "role": "seller",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var fields map[string]string
	decode(t, rec, &fields)
	assert.Equal(t, "phone number is required for seller", fields["phone_number"])

	rec = s.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email": "s@x.com", "password": "Secret123", "confirm_password": "Secret123",
		"role": "seller", "phone_number": "+9779812345678",
	})
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestLoginErrorsAreIndistinguishable(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "a@x.com", models.RoleCustomer)

	wrong := s.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "a@x.com", "password": "Wrong1234"})
	missing := s.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "b@x.com", "password": "Secret123"})

	assert.Equal(t, http.StatusBadRequest, wrong.Code)
	assert.Equal(t, wrong.Code, missing.Code)
	assert.Equal(t, wrong.Body.String(), missing.Body.String())
	assert.JSONEq(t, `{"non_field_errors":["unable to login with provided credentials"]}`, wrong.Body.String())
}

func TestLoginLogoutAndReplay(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "a@x.com", models.RoleCustomer)

	rec := s.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "a@x.com", "password": "Secret123"})
	require.Equal(t, http.StatusOK, rec.Code)
	var login authBody
	decode(t, rec, &login)

	rec = s.do(t, http.MethodGet, "/api/v1/auth/users/me", login.Access, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/auth/logout", login.Access, map[string]string{"refresh": login.Refresh})
	assert.Equal(t, http.StatusResetContent, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/auth/token/refresh", "", map[string]string{"refresh": login.Refresh})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/auth/users/me", login.Access, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "access tokens of a revoked session stop working")
}

func TestLogoutWithBadTokenReturnsGenericMessage(t *testing.T) {
	s := newTestServer(t)
	body := s.register(t, "a@x.com", models.RoleCustomer)

	for _, refresh := range []string{"", "garbage", body.Access} {
		rec := s.do(t, http.MethodPost, "/api/v1/auth/logout", body.Access, map[string]string{"refresh": refresh})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"message":"invalid token"}`, rec.Body.String())
	}
}

func TestRefreshMintsNewAccess(t *testing.T) {
	s := newTestServer(t)
	body := s.register(t, "a@x.com", models.RoleCustomer)

	rec := s.do(t, http.MethodPost, "/api/v1/auth/token/refresh", "", map[string]string{"refresh": body.Refresh})
	require.Equal(t, http.StatusOK, rec.Code)
	var out map[string]string
	decode(t, rec, &out)

	rec = s.do(t, http.MethodGet, "/api/v1/auth/profile", out["access"], nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestChangePasswordWrongOld(t *testing.T) {
	s := newTestServer(t)
	body := s.register(t, "a@x.com", models.RoleCustomer)

	rec := s.do(t, http.MethodPut, "/api/v1/auth/change-password", body.Access, map[string]string{
		"old_password": "Nope12345", "new_password": "Newpass123", "confirm_new_password": "Newpass123",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"old_password":"wrong password."}`, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "a@x.com", "password": "Secret123"})
	assert.Equal(t, http.StatusOK, rec.Code, "password unchanged")
}

func TestChangePasswordSuccess(t *testing.T) {
	s := newTestServer(t)
	body := s.register(t, "a@x.com", models.RoleCustomer)

	rec := s.do(t, http.MethodPut, "/api/v1/auth/change-password", body.Access, map[string]string{
		"old_password": "Secret123", "new_password": "Newpass123", "confirm_new_password": "Newpass123",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/auth/profile", body.Access, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = s.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "a@x.com", "password": "Newpass123"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProfileUpdateIgnoresEmail(t *testing.T) {
	s := newTestServer(t)
	body := s.register(t, "a@x.com", models.RoleCustomer)

	rec := s.do(t, http.MethodPut, "/api/v1/auth/profile", body.Access, map[string]interface{}{
		"email":      "hijack@x.com",
		"first_name": "Asha",
		"profile":    map[string]interface{}{"company_name": "Asha Traders", "receive_sms_notifications": false},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var user models.User
	decode(t, rec, &user)
	assert.Equal(t, "a@x.com", user.Email)
	assert.Equal(t, "Asha", user.FirstName)
	assert.Equal(t, "Asha Traders", user.Profile.CompanyName)
	assert.False(t, user.Profile.ReceiveSMSNotifications)
}

func TestPasswordResetFlow(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "a@x.com", models.RoleCustomer)

	for _, email := range []string{"a@x.com", "ghost@x.com"} {
		rec := s.do(t, http.MethodPost, "/api/v1/auth/password-reset", "", map[string]string{"email": email})
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	require.Equal(t, 1, s.notifier.n)

	confirm := map[string]string{
		"uidb64": s.notifier.last.UIDB64, "token": s.notifier.last.Token,
		"new_password": "Reset1234", "confirm_new_password": "Reset1234",
	}
	rec := s.do(t, http.MethodPost, "/api/v1/auth/password-reset-confirm", "", confirm)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/v1/auth/password-reset-confirm", "", confirm)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"token":"invalid or expired token"}`, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "a@x.com", "password": "Reset1234"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminEndpoints(t *testing.T) {
	s := newTestServer(t)
	admin := s.register(t, "admin@x.com", models.RoleAdmin)
	customer := s.register(t, "c@x.com", models.RoleCustomer)

	rec := s.do(t, http.MethodGet, "/api/v1/auth/users", customer.Access, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = s.do(t, http.MethodGet, "/api/v1/auth/users", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/auth/users?page=1&page_size=1", admin.Access, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		Count    int           `json:"count"`
		PageSize int           `json:"page_size"`
		Results  []models.User `json:"results"`
	}
	decode(t, rec, &page)
	assert.Equal(t, 2, page.Count)
	require.Len(t, page.Results, 1)
	assert.Equal(t, "c@x.com", page.Results[0].Email)

	path := fmt.Sprintf("/api/v1/auth/user/%d", customer.User.ID)
	rec = s.do(t, http.MethodPut, path, admin.Access, map[string]interface{}{"role": "seller", "is_email_verified": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated models.User
	decode(t, rec, &updated)
	assert.Equal(t, models.RoleSeller, updated.Role)
	assert.True(t, updated.IsEmailVerified)

	rec = s.do(t, http.MethodDelete, path, customer.Access, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = s.do(t, http.MethodDelete, path, admin.Access, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(t, http.MethodGet, path, admin.Access, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDemotedAdminLosesAccessImmediately(t *testing.T) {
	s := newTestServer(t)
	root := s.register(t, "root@x.com", models.RoleAdmin)
	ops := s.register(t, "ops@x.com", models.RoleAdmin)

	rec := s.do(t, http.MethodGet, "/api/v1/auth/users", ops.Access, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	path := fmt.Sprintf("/api/v1/auth/user/%d", ops.User.ID)
	rec = s.do(t, http.MethodPatch, path, root.Access, map[string]string{"role": "customer"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/v1/auth/users", ops.Access, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHealthAndCORS(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/auth/login", nil)
	req.Header.Set("Origin", "https://shop.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, "https://shop.example", rec.Header().Get("Access-Control-Allow-Origin"))
}
