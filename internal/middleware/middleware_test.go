package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/tourbook/internal/apperr"
	"github.com/joshua-takyi/tourbook/internal/helpers"
	"github.com/joshua-takyi/tourbook/internal/metrics"
	"github.com/joshua-takyi/tourbook/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubVerifier map[string]string

func (s stubVerifier) Verify(_ context.Context, token string) (*helpers.CustomClaims, error) {
	email, ok := s[token]
	if !ok {
		return nil, helpers.ErrInvalidToken
	}
	return &helpers.CustomClaims{Email: email}, nil
}

type stubUsers struct {
	users map[string]*models.User
	err   error
}

func (s stubUsers) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	if u, ok := s.users[email]; ok {
		return u, nil
	}
	return nil, apperr.NotFound("user not found")
}

func newRouter(users stubUsers, extra ...gin.HandlerFunc) *gin.Engine {
	verifier := stubVerifier{
		"ana-token":    "ana@example.com",
		"admin-token":  "root@example.com",
		"banned-token": "spam@example.com",
		"new-token":    "new@example.com",
	}
	r := gin.New()
	r.Use(RequestID())
	handlers := append([]gin.HandlerFunc{AuthMiddleware(verifier, users, zerolog.Nop())}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		user, _ := CurrentUser(c)
		c.JSON(http.StatusOK, gin.H{"email": user.Email, "role": user.Role})
	})
	r.GET("/whoami", handlers...)
	return r
}

func defaultUsers() stubUsers {
	return stubUsers{users: map[string]*models.User{
		"ana@example.com":  {Email: "ana@example.com", Role: models.RoleGuide, Status: models.UserActive},
		"root@example.com": {Email: "root@example.com", Role: models.RoleAdmin, Status: models.UserActive},
		"spam@example.com": {Email: "spam@example.com", Role: models.RoleCustomer, Status: models.UserBanned},
	}}
}

func get(r http.Handler, auth string) (*httptest.ResponseRecorder, map[string]any) {
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var body map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestAuthMiddleware(t *testing.T) {
	r := newRouter(defaultUsers())

	w, body := get(r, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "No token provided", body["message"])
	assert.Equal(t, false, body["success"])

	w, body = get(r, "Bearer forged")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid or expired token", body["message"])

	w, body = get(r, "Bearer ana-token")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "guide", body["role"])

	w, body = get(r, "Bearer new-token")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "customer", body["role"])

	w, body = get(r, "Bearer banned-token")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", body["code"])
}

func TestAuthMiddlewareProfileLookupFailure(t *testing.T) {
	r := newRouter(stubUsers{err: apperr.Dependency(errors.New("timeout"), "failed to load user")})
	w, body := get(r, "Bearer ana-token")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "DEPENDENCY_ERROR", body["code"])
}

func TestRequireRole(t *testing.T) {
	r := newRouter(defaultUsers(), RequireRole(models.RoleAdmin))

	w, _ := get(r, "Bearer ana-token")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, body := get(r, "Bearer admin-token")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "root@example.com", body["email"])
}

func TestRequestIDIsEchoed(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(RequestIDKey)) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))
	assert.Equal(t, "req-42", w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestErrorHandlerRendersUnwrittenErrors(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler(zerolog.Nop()))
	r.GET("/boom", func(c *gin.Context) { _ = c.Error(errors.New("disk full")) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL_ERROR")
}

func TestRecoveryRendersEnvelope(t *testing.T) {
	r := gin.New()
	r.Use(Recovery(zerolog.Nop()))
	r.GET("/panic", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"success":false`)
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	r := gin.New()
	r.Use(Metrics(m))
	r.GET("/api/get-package/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, id := range []string{"a", "b", "c"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/get-package/"+id, nil))
	}

	count, err := testutil.GatherAndCount(reg, "http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
