package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Carbocoon/SteelPriceCrawler/config"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(identityKey)) })
	return r
}

func get(r http.Handler, header, value string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set(header, value)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth(t *testing.T) {
	r := newEngine(Auth([]string{"alpha", "", "beta"}))

	tests := []struct {
		name   string
		header string
		value  string
		status int
	}{
		{"missing", "", "", http.StatusUnauthorized},
		{"wrong", "X-API-Key", "gamma", http.StatusUnauthorized},
		{"header", "X-API-Key", "alpha", http.StatusOK},
		{"bearer", "Authorization", "Bearer beta", http.StatusOK},
		{"prefix only", "X-API-Key", "alph", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := get(r, tt.header, tt.value).Code; got != tt.status {
				t.Errorf("status = %d, want %d", got, tt.status)
			}
		})
	}
}

func TestAuth_NoKeys(t *testing.T) {
	r := newEngine(Auth([]string{""}))
	require.Equal(t, http.StatusOK, get(r, "", "").Code)
}

func TestRateLimit(t *testing.T) {
	r := newEngine(Auth([]string{"a", "b"}), RateLimit(config.RateLimitConfig{RequestsPerSecond: 0.5, Burst: 1}))

	require.Equal(t, http.StatusOK, get(r, "X-API-Key", "a").Code)
	w := get(r, "X-API-Key", "a")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, "2", w.Header().Get("Retry-After"))

	require.Equal(t, http.StatusOK, get(r, "X-API-Key", "b").Code, "limits are per key")
}
