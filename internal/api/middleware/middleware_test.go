package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/goleak"

	"soomhub/market/internal/api/middleware"
	"soomhub/market/internal/auth"
	"soomhub/market/internal/config"
	"soomhub/market/internal/utils"
)

type MockAuthorizer struct {
	mock.Mock
}

func (m *MockAuthorizer) Authorize(ctx context.Context, accessToken string) (*auth.Claims, error) {
	args := m.Called(ctx, accessToken)
	claims, _ := args.Get(0).(*auth.Claims)
	return claims, args.Error(1)
}

type MockTurnstileVerifier struct {
	mock.Mock
}

func (m *MockTurnstileVerifier) Verify(ctx context.Context, token, remoteIP string) (bool, error) {
	args := m.Called(ctx, token, remoteIP)
	return args.Bool(0), args.Error(1)
}

func init() {
	gin.SetMode(gin.TestMode)
}

func perform(r http.Handler, method, path string, header map[string]string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	authz := new(MockAuthorizer)
	userID := utils.NewSixID()
	authz.On("Authorize", mock.Anything, "good").Return(&auth.Claims{UserID: userID.String(), IsAdmin: true}, nil)
	authz.On("Authorize", mock.Anything, "revoked").Return(nil, errors.New("token revoked"))

	r := gin.New()
	r.GET("/me", middleware.AuthMiddleware(authz), func(c *gin.Context) {
		id, ok := middleware.CurrentUserID(c)
		assert.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"id": id.String(), "admin": middleware.IsAdmin(c)})
	})

	w := perform(r, http.MethodGet, "/me", map[string]string{"Authorization": "Bearer good"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), userID.String())

	w = perform(r, http.MethodGet, "/me", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = perform(r, http.MethodGet, "/me", map[string]string{"Authorization": "Token good"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = perform(r, http.MethodGet, "/me", map[string]string{"Authorization": "Bearer revoked"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminMiddleware(t *testing.T) {
	authz := new(MockAuthorizer)
	authz.On("Authorize", mock.Anything, "user").Return(&auth.Claims{UserID: utils.NewSixID().String()}, nil)
	authz.On("Authorize", mock.Anything, "admin").Return(&auth.Claims{UserID: utils.NewSixID().String(), IsAdmin: true}, nil)

	r := gin.New()
	r.GET("/admin", middleware.AuthMiddleware(authz), middleware.AdminMiddleware(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	assert.Equal(t, http.StatusForbidden, perform(r, http.MethodGet, "/admin", map[string]string{"Authorization": "Bearer user"}).Code)
	assert.Equal(t, http.StatusNoContent, perform(r, http.MethodGet, "/admin", map[string]string{"Authorization": "Bearer admin"}).Code)
}

func TestCaptchaMiddleware(t *testing.T) {
	verifier := new(MockTurnstileVerifier)
	verifier.On("Verify", mock.Anything, "ok", mock.Anything).Return(true, nil)
	verifier.On("Verify", mock.Anything, "bad", mock.Anything).Return(false, nil)
	verifier.On("Verify", mock.Anything, "", mock.Anything).Return(false, nil)
	verifier.On("Verify", mock.Anything, "down", mock.Anything).Return(false, errors.New("timeout"))

	r := gin.New()
	r.POST("/register", middleware.CaptchaMiddleware(verifier), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})

	assert.Equal(t, http.StatusCreated, perform(r, http.MethodPost, "/register", map[string]string{middleware.CaptchaHeader: "ok"}).Code)
	assert.Equal(t, http.StatusBadRequest, perform(r, http.MethodPost, "/register", map[string]string{middleware.CaptchaHeader: "bad"}).Code)
	assert.Equal(t, http.StatusBadRequest, perform(r, http.MethodPost, "/register", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, perform(r, http.MethodPost, "/register", map[string]string{middleware.CaptchaHeader: "down"}).Code)
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	r := gin.New()
	r.Use(middleware.CORSMiddleware())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := perform(r, http.MethodOptions, "/x", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimiter(t *testing.T) {
	defer goleak.VerifyNone(t)

	cfg := &config.Config{
		RateLimitSoftBucketSize: 1,
		RateLimitSoftRefillRate: 0,
		RateLimitHardBucketSize: 3,
		RateLimitHardRefillRate: 0,
	}
	rl := middleware.NewRateLimiter(cfg, time.Hour)
	defer rl.Stop()

	r := gin.New()
	r.Use(rl.Limit())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	// One write fits the soft bucket, the second is throttled.
	assert.Equal(t, http.StatusOK, perform(r, http.MethodPost, "/x", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, perform(r, http.MethodPost, "/x", nil).Code)
	// The hard bucket has one token left for reads.
	assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/x", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, perform(r, http.MethodGet, "/x", nil).Code)
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)

	rl := middleware.NewRateLimiter(&config.Config{}, time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	rl.Stop()
	rl.Stop()
}
