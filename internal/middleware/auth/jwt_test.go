package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

func createValidJWT(subject, email, role string) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   subject,
		"email": email,
		"role":  role,
		"exp":   time.Now().Add(time.Hour).Unix(),
		"iat":   time.Now().Unix(),
	})

	tokenString, _ := token.SignedString([]byte(testSecret))
	return tokenString
}

func runMiddleware(t *testing.T, config JWTConfig, req *http.Request) (*httptest.ResponseRecorder, echo.Context) {
	t.Helper()

	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := JWTMiddleware(config)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	err := handler(c)
	assert.NoError(t, err)

	return rec, c
}

func TestJWTMiddleware_SuccessfulAuthentication(t *testing.T) {
	config := JWTConfig{Secret: testSecret, Logger: zap.NewNop()}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/plans/current", nil)
	req.Header.Set("Authorization", "Bearer "+createValidJWT("550e8400-e29b-41d4-a716-446655440000", "owner@example.com", "user"))

	rec, c := runMiddleware(t, config, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	user, ok := GetAuthUser(c)
	assert.True(t, ok)
	assert.Equal(t, "550e8400-e29b-41d4-a716-446655440000", user.Subject)
	assert.Equal(t, "owner@example.com", user.Email)
	assert.Equal(t, "user", user.Role)
}

func TestJWTMiddleware_MissingAuthorizationHeader(t *testing.T) {
	config := JWTConfig{Secret: testSecret, Logger: zap.NewNop()}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/plans/current", nil)
	rec, _ := runMiddleware(t, config, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "MISSING_AUTH_HEADER")
}

func TestJWTMiddleware_InvalidHeaderFormat(t *testing.T) {
	config := JWTConfig{Secret: testSecret, Logger: zap.NewNop()}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/plans/current", nil)
	req.Header.Set("Authorization", createValidJWT("user", "", ""))
	rec, _ := runMiddleware(t, config, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_AUTH_FORMAT")
}

func TestJWTMiddleware_InvalidSignature(t *testing.T) {
	config := JWTConfig{Secret: "other-secret", Logger: zap.NewNop()}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/plans/current", nil)
	req.Header.Set("Authorization", "Bearer "+createValidJWT("user", "", ""))
	rec, _ := runMiddleware(t, config, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_TOKEN")
}

func TestJWTMiddleware_ExpiredToken(t *testing.T) {
	config := JWTConfig{Secret: testSecret, Logger: zap.NewNop()}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	tokenString, _ := token.SignedString([]byte(testSecret))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/plans/current", nil)
	req.Header.Set("Authorization", "Bearer "+tokenString)
	rec, _ := runMiddleware(t, config, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_TOKEN")
}

func TestJWTMiddleware_SkipPaths(t *testing.T) {
	config := JWTConfig{
		Secret:    testSecret,
		Logger:    zap.NewNop(),
		SkipPaths: []string{"/health", "/webhook"},
	}

	req := httptest.NewRequest(http.MethodPost, "/webhook", nil)
	rec, _ := runMiddleware(t, config, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
