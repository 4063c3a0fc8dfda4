package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func serveGuarded(t *testing.T, secret, header string) int {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.POST("/x", RequireSharedSecret(secret), func(c *gin.Context) {
		c.Status(200)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/x", nil)
	if header != "" {
		req.Header.Set("x-shared-secret", header)
	}
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRequireSharedSecret(t *testing.T) {
	cases := []struct {
		name   string
		secret string
		header string
		want   int
	}{
		{"valid", "meter", "meter", 200},
		{"bearer prefix", "meter", "Bearer meter", 200},
		{"missing header", "meter", "", 401},
		{"wrong secret", "meter", "wrong", 401},
		{"unconfigured secret rejects", "", "", 401},
		{"unconfigured secret rejects nonempty", "", "anything", 401},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := serveGuarded(t, tc.secret, tc.header); got != tc.want {
				t.Fatalf("status = %d, want %d", got, tc.want)
			}
		})
	}
}
