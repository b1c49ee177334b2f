package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	googleoauth "github.com/socialimageapp/authentication-api-service/internal/adapter/oauth"
	"github.com/socialimageapp/authentication-api-service/internal/config"
	"github.com/socialimageapp/authentication-api-service/internal/domain"
	domainoauth "github.com/socialimageapp/authentication-api-service/internal/domain/oauth"
	httptransport "github.com/socialimageapp/authentication-api-service/internal/http"
	"github.com/socialimageapp/authentication-api-service/internal/http/handler"
	httpmiddleware "github.com/socialimageapp/authentication-api-service/internal/http/middleware"
	sessionjwt "github.com/socialimageapp/authentication-api-service/internal/jwt"
	"github.com/socialimageapp/authentication-api-service/internal/keys"
	"github.com/socialimageapp/authentication-api-service/internal/mail"
	"github.com/socialimageapp/authentication-api-service/internal/repository"
	"github.com/socialimageapp/authentication-api-service/internal/service"
	oauthsvc "github.com/socialimageapp/authentication-api-service/internal/service/oauth"
)

type store struct {
	mu            sync.Mutex
	users         map[int64]domain.User
	verifications map[int64]domain.VerificationRequest
	orgs          map[int64]domain.Organization
	members       map[int64][]int64
	orgKeys       map[int64]domain.OrganizationKeys
	nextID        int64
	bootstraps    int
}

func newStore() *store {
	return &store{
		users:         map[int64]domain.User{},
		verifications: map[int64]domain.VerificationRequest{},
		orgs:          map[int64]domain.Organization{},
		members:       map[int64][]int64{},
		orgKeys:       map[int64]domain.OrganizationKeys{},
		nextID:        500_000,
	}
}

func (s *store) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *store) GetByEmail(_ context.Context, email string) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return domain.User{}, pgx.ErrNoRows
}

func (s *store) GetByID(_ context.Context, id int64) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return u, nil
}

func (s *store) Create(_ context.Context, user domain.User) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user.CreatedAt = time.Now()
	s.users[user.ID] = user
	return user, nil
}

func (s *store) UpdatePassword(_ context.Context, id int64, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	u.PasswordHash = hash
	s.users[id] = u
	return nil
}

func (s *store) CreateVerification(_ context.Context, req domain.VerificationRequest) (domain.VerificationRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verifications[req.ID] = req
	return req, nil
}

func (s *store) GetByToken(_ context.Context, token string) (domain.VerificationRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.verifications {
		if r.Token == token {
			return r, nil
		}
	}
	return domain.VerificationRequest{}, pgx.ErrNoRows
}

func (s *store) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.verifications, id)
	return nil
}

func (s *store) DeleteByUserAndKind(_ context.Context, userID int64, kind domain.VerificationKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range s.verifications {
		if r.UserID == userID && r.Kind == kind {
			delete(s.verifications, id)
		}
	}
	return nil
}

func (s *store) ListByUser(_ context.Context, userID int64) ([]domain.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Organization
	for orgID, members := range s.members {
		for _, m := range members {
			if m == userID {
				out = append(out, s.orgs[orgID])
			}
		}
	}
	return out, nil
}

func (s *store) GetKeys(_ context.Context, orgID int64) (domain.OrganizationKeys, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.orgKeys[orgID]
	if !ok {
		return domain.OrganizationKeys{}, pgx.ErrNoRows
	}
	return k, nil
}

func (s *store) IsMember(_ context.Context, orgID, userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.members[orgID] {
		if m == userID {
			return true, nil
		}
	}
	return false, nil
}

func (s *store) ConsumeAndProvision(_ context.Context, req domain.VerificationRequest) (repository.ProvisionOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.verifications[req.ID]; !ok {
		return repository.ProvisionOutcome{}, repository.ErrRequestConsumed
	}
	delete(s.verifications, req.ID)

	user := s.users[req.UserID]
	outcome := repository.ProvisionOutcome{User: user}
	if !user.Verified {
		user.Verified = true
		s.users[user.ID] = user
		org, err := s.provisionLocked(user)
		if err != nil {
			return repository.ProvisionOutcome{}, err
		}
		outcome.User = user
		outcome.Bootstrapped = true
		outcome.Organization = org
	}
	return outcome, nil
}

func (s *store) CreateProvisionedUser(_ context.Context, user domain.User) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user.Verified = true
	s.users[user.ID] = user
	if _, err := s.provisionLocked(user); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func (s *store) provisionLocked(user domain.User) (domain.Organization, error) {
	pair, err := keys.NewRSAPair()
	if err != nil {
		return domain.Organization{}, err
	}
	boot := domain.NewBootstrap(user, pair, s.id, time.Now().UTC())
	s.orgs[boot.Organization.ID] = boot.Organization
	s.members[boot.Organization.ID] = append(s.members[boot.Organization.ID], user.ID)
	s.orgKeys[boot.Organization.ID] = boot.Keys
	s.bootstraps++
	return boot.Organization, nil
}

func (s *store) Enqueue(_ context.Context, _ mail.Message) error { return nil }

func (s *store) SaveState(_ context.Context, _ domainoauth.State) error { return nil }

func (s *store) GetState(_ context.Context, _ string) (domainoauth.State, error) {
	return domainoauth.State{}, domainoauth.ErrInvalidState
}

func (s *store) DeleteState(_ context.Context, _ string) error { return nil }

func (s *store) token(t *testing.T) string {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.Len(t, s.verifications, 1)
	for _, r := range s.verifications {
		return r.Token
	}
	return ""
}

type stubProvider struct{}

func (stubProvider) Exchange(context.Context, string, string, string) (domainoauth.TokenResponse, error) {
	return domainoauth.TokenResponse{}, domainoauth.ErrTokenInvalid
}

func (stubProvider) FetchUserInfo(context.Context, string) (domainoauth.UserInfo, error) {
	return domainoauth.UserInfo{}, domainoauth.ErrTokenInvalid
}

func newTestServer(t *testing.T) (*gin.Engine, *store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st := newStore()
	cfg := config.Config{
		Environment:        "test",
		VerificationTTL:    24 * time.Hour,
		ResetTokenTTL:      time.Hour,
		AccessTokenTTL:     time.Hour,
		FrontendBaseURL:    "https://app.example.com",
		APIBasePath:        "/api/v1",
		ServiceName:        "authentication-api-test",
		CORSAllowedMethods: []string{"GET", "POST", "OPTIONS"},
		CORSAllowedHeaders: []string{"Authorization", "Content-Type"},
		CORSAllowedOrigins: []string{"*"},
	}
	node, err := snowflake.NewNode(3)
	require.NoError(t, err)
	generator := sessionjwt.NewGenerator([]byte("test-secret-needs-enough-bytes!!"), "test-issuer", cfg.AccessTokenTTL)
	logger := zap.NewNop()

	verifications := verificationAdapter{st}
	auth := service.NewAuthService(st, verifications, st, st, node, generator, st, cfg, logger)
	google := oauthsvc.NewGoogleService(st, stubProvider{}, st, st, auth, node, googleoauth.Config{}, logger)
	h := handler.NewAuthHandler(auth, google, cfg, logger)
	mw := &httpmiddleware.Auth{JWT: generator}

	return httptransport.NewRouter(cfg, h, mw, nil, logger), st
}

// verificationAdapter renames the store's Create to satisfy both the
// user and verification repository interfaces at once.
type verificationAdapter struct{ *store }

func (a verificationAdapter) Create(ctx context.Context, req domain.VerificationRequest) (domain.VerificationRequest, error) {
	return a.store.CreateVerification(ctx, req)
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeResult(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var envelope struct {
		Result map[string]any `json:"result"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope.Result
}

func TestRegisterVerifyLoginRoundTrip(t *testing.T) {
	r, st := newTestServer(t)

	w := doJSON(t, r, http.MethodPost, "/api/v1/register", gin.H{
		"email":           "jane@example.com",
		"password":        "super-secret-1",
		"confirmPassword": "super-secret-1",
		"firstName":       "Jane",
		"lastName":        "Doe",
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotEmpty(t, decodeResult(t, w)["userId"])

	// Login before verification is refused.
	w = doJSON(t, r, http.MethodPost, "/api/v1/login", gin.H{
		"email":    "jane@example.com",
		"password": "super-secret-1",
	}, nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	// Redeem the emailed token.
	w = doJSON(t, r, http.MethodGet, "/api/v1/verify?token="+st.token(t), nil, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Account verified", decodeResult(t, w)["message"])

	w = doJSON(t, r, http.MethodPost, "/api/v1/login", gin.H{
		"email":    "jane@example.com",
		"password": "super-secret-1",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	result := decodeResult(t, w)
	assert.Equal(t, "Login successful", result["message"])
	token, _ := result["token"].(string)
	require.NotEmpty(t, token)

	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, httpmiddleware.SessionCookie, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	// Authenticated endpoints accept the bearer token.
	w = doJSON(t, r, http.MethodGet, "/api/v1/me", nil, map[string]string{"Authorization": "Bearer " + token})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	user, _ := decodeResult(t, w)["user"].(map[string]any)
	require.NotNil(t, user)
	assert.Equal(t, "jane@example.com", user["email"])
	for key := range user {
		assert.NotContains(t, strings.ToLower(key), "password")
	}

	w = doJSON(t, r, http.MethodGet, "/api/v1/organizations", nil, map[string]string{"Authorization": "Bearer " + token})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	orgs, _ := decodeResult(t, w)["organizations"].([]any)
	require.Len(t, orgs, 1)
	org, _ := orgs[0].(map[string]any)
	orgID, _ := org["id"].(string)
	require.NotEmpty(t, orgID)

	w = doJSON(t, r, http.MethodGet, "/api/v1/organizations/"+orgID+"/keys", nil, map[string]string{"Authorization": "Bearer " + token})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	keySet, _ := decodeResult(t, w)["keys"].([]any)
	require.Len(t, keySet, 1)
}

func TestVerifyTokenReplayReturnsInvalidToken(t *testing.T) {
	r, st := newTestServer(t)

	doJSON(t, r, http.MethodPost, "/api/v1/register", gin.H{
		"email":           "jane@example.com",
		"password":        "super-secret-1",
		"confirmPassword": "super-secret-1",
	}, nil)
	token := st.token(t)

	w := doJSON(t, r, http.MethodGet, "/api/v1/verify?token="+token, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/v1/verify?token="+token, nil, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "invalid_token", body["error"])
	assert.Equal(t, 1, st.bootstraps)
}

func TestRegisterValidation(t *testing.T) {
	r, _ := newTestServer(t)

	// Mismatched confirmation.
	w := doJSON(t, r, http.MethodPost, "/api/v1/register", gin.H{
		"email":           "jane@example.com",
		"password":        "super-secret-1",
		"confirmPassword": "different-value",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Short password.
	w = doJSON(t, r, http.MethodPost, "/api/v1/register", gin.H{
		"email":           "jane@example.com",
		"password":        "short",
		"confirmPassword": "short",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Not an email.
	w = doJSON(t, r, http.MethodPost, "/api/v1/register", gin.H{
		"email":           "not-an-email",
		"password":        "super-secret-1",
		"confirmPassword": "super-secret-1",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoginWrongPassword(t *testing.T) {
	r, st := newTestServer(t)

	doJSON(t, r, http.MethodPost, "/api/v1/register", gin.H{
		"email":           "jane@example.com",
		"password":        "super-secret-1",
		"confirmPassword": "super-secret-1",
	}, nil)
	doJSON(t, r, http.MethodGet, "/api/v1/verify?token="+st.token(t), nil, nil)

	w := doJSON(t, r, http.MethodPost, "/api/v1/login", gin.H{
		"email":    "jane@example.com",
		"password": "wrong-password",
	}, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "invalid_credentials", body["error"])
}

func TestForgotAndResetPasswordFlow(t *testing.T) {
	r, st := newTestServer(t)

	doJSON(t, r, http.MethodPost, "/api/v1/register", gin.H{
		"email":           "jane@example.com",
		"password":        "super-secret-1",
		"confirmPassword": "super-secret-1",
	}, nil)
	doJSON(t, r, http.MethodGet, "/api/v1/verify?token="+st.token(t), nil, nil)

	w := doJSON(t, r, http.MethodPost, "/api/v1/forgot-password", gin.H{"email": "jane@example.com"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	known := decodeResult(t, w)["message"]

	// Same body for unknown accounts.
	w = doJSON(t, r, http.MethodPost, "/api/v1/forgot-password", gin.H{"email": "nobody@example.com"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, known, decodeResult(t, w)["message"])

	w = doJSON(t, r, http.MethodPost, "/api/v1/reset-password", gin.H{
		"token":           st.token(t),
		"password":        "brand-new-password-2",
		"confirmPassword": "brand-new-password-2",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, r, http.MethodPost, "/api/v1/login", gin.H{
		"email":    "jane@example.com",
		"password": "brand-new-password-2",
	}, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMeRequiresSession(t *testing.T) {
	r, _ := newTestServer(t)

	w := doJSON(t, r, http.MethodGet, "/api/v1/me", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/v1/me", nil, map[string]string{"Authorization": "Bearer garbage"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHealth(t *testing.T) {
	r, _ := newTestServer(t)
	w := doJSON(t, r, http.MethodGet, "/api/v1/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
