package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/seating-plan/internal/utils"
)

const secret = "s3cret"

func sign(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func TestJWTAuth(t *testing.T) {
	valid, err := utils.NewAccessToken(secret, "alice", time.Hour)
	require.NoError(t, err)
	expired, err := utils.NewAccessToken(secret, "alice", -time.Minute)
	require.NoError(t, err)
	foreign, err := utils.NewAccessToken("other", "alice", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
		user   string
	}{
		{"valid", "Bearer " + valid.Token, http.StatusOK, "alice"},
		{"numeric subject", "Bearer " + sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{"sub": float64(42)}), http.StatusOK, "42"},
		{"missing header", "", http.StatusUnauthorized, ""},
		{"wrong scheme", "Basic " + valid.Token, http.StatusUnauthorized, ""},
		{"expired", "Bearer " + expired.Token, http.StatusUnauthorized, ""},
		{"wrong secret", "Bearer " + foreign.Token, http.StatusUnauthorized, ""},
		{"no subject", "Bearer " + sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()}), http.StatusUnauthorized, ""},
		{"unsigned", "Bearer " + sign(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, jwt.MapClaims{"sub": "alice"}), http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			var seen string
			e.GET("/", func(c echo.Context) error {
				seen = CurrentUserID(c)
				return c.NoContent(http.StatusOK)
			}, JWTAuth(secret))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.header)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.user, seen)
			if tt.status == http.StatusUnauthorized {
				assert.Contains(t, rec.Body.String(), `"code":"UNAUTHENTICATED"`)
			}
		})
	}
}
