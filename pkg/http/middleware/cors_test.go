package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func corsServer(cfg CORSConfig) *echo.Echo {
	e := echo.New()
	e.Use(CORS(cfg))
	e.Any("/api/chart", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	return e
}

func TestCORS(t *testing.T) {
	cases := []struct {
		name       string
		cfg        CORSConfig
		method     string
		origin     string
		wantOrigin string
		wantStatus int
	}{
		{"wildcard echoes origin", CORSConfig{AllowOrigins: []string{"*"}}, http.MethodGet, "http://viewer.local", "http://viewer.local", http.StatusOK},
		{"wildcard without origin", CORSConfig{AllowOrigins: []string{"*"}}, http.MethodGet, "", "*", http.StatusOK},
		{"listed origin", CORSConfig{AllowOrigins: []string{"http://a.local"}}, http.MethodGet, "http://A.local", "http://A.local", http.StatusOK},
		{"unlisted origin", CORSConfig{AllowOrigins: []string{"http://a.local"}}, http.MethodGet, "http://b.local", "", http.StatusOK},
		{"preflight", CORSConfig{AllowOrigins: []string{"*"}, AllowMethods: []string{"GET", "POST"}, MaxAge: 600}, http.MethodOptions, "http://viewer.local", "http://viewer.local", http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, "/api/chart", nil)
			if tc.origin != "" {
				req.Header.Set(echo.HeaderOrigin, tc.origin)
			}
			rec := httptest.NewRecorder()
			corsServer(tc.cfg).ServeHTTP(rec, req)

			assert.Equal(t, tc.wantStatus, rec.Code)
			assert.Equal(t, tc.wantOrigin, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
			if tc.method == http.MethodOptions {
				assert.Equal(t, "GET, POST", rec.Header().Get(echo.HeaderAccessControlAllowMethods))
				assert.Equal(t, "600", rec.Header().Get(echo.HeaderAccessControlMaxAge))
			}
		})
	}
}

func TestOriginAllowed(t *testing.T) {
	assert.True(t, OriginAllowed([]string{"*"}, "http://anywhere.local"))
	assert.True(t, OriginAllowed([]string{"http://a.local"}, "HTTP://A.LOCAL"))
	assert.False(t, OriginAllowed([]string{"http://a.local"}, "http://b.local"))
	assert.False(t, OriginAllowed(nil, "http://a.local"))
}
