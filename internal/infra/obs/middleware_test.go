package obs_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"bchat/internal/infra/obs"
)

func newRouter(mw obs.Middleware, capture *string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(mw.RequestID(), mw.LoggerMiddleware())
	router.GET("/ping", func(c *gin.Context) {
		*capture = obs.RequestIDFromContext(c.Request.Context())
		c.Status(http.StatusNoContent)
	})
	return router
}

func TestRequestIDPropagation(t *testing.T) {
	t.Parallel()

	t.Run("echoes the inbound header into the request context", func(t *testing.T) {
		t.Parallel()
		var seen string
		router := newRouter(obs.Middleware{}, &seen)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("X-Request-ID", "req-42")
		router.ServeHTTP(rec, req)

		if seen != "req-42" {
			t.Errorf("handler saw request id %q, want %q", seen, "req-42")
		}
		if got := rec.Header().Get("X-Request-ID"); got != "req-42" {
			t.Errorf("response header = %q, want %q", got, "req-42")
		}
	})

	t.Run("generates an id when the header is missing", func(t *testing.T) {
		t.Parallel()
		var seen string
		router := newRouter(obs.Middleware{}, &seen)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

		if seen == "" {
			t.Error("handler saw an empty request id")
		}
		if got := rec.Header().Get("X-Request-ID"); got != seen {
			t.Errorf("response header = %q, want the generated id %q", got, seen)
		}
	})
}

func TestRequestIDFromContextWithoutMiddleware(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	if got := obs.RequestIDFromContext(req.Context()); got != "" {
		t.Errorf("RequestIDFromContext() = %q, want empty", got)
	}
}
