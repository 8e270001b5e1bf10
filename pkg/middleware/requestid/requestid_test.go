package requestid

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newRouter(capture *string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	r.GET("/ping", func(c *gin.Context) {
		*capture = Value(c)
		c.Status(http.StatusOK)
	})
	return r
}

func TestRequestIDGenerated(t *testing.T) {
	var seen string
	r := newRouter(&seen)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	require.NotEmpty(t, seen)
	require.Equal(t, seen, w.Header().Get(Header))
}

func TestRequestIDPassthrough(t *testing.T) {
	var seen string
	r := newRouter(&seen)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(Header, "upstream-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, "upstream-42", seen)
	require.Equal(t, "upstream-42", w.Header().Get(Header))
}
