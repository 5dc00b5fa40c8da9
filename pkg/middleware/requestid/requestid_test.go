package requestid

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, Value(c))
	})

	cases := []struct {
		name    string
		inbound string
		keep    bool
	}{
		{name: "propagates caller id", inbound: "req-42:retry_1", keep: true},
		{name: "assigns when missing", inbound: ""},
		{name: "replaces control characters", inbound: "abc\x1bdef"},
		{name: "replaces spaces", inbound: "two words"},
		{name: "replaces oversized ids", inbound: strings.Repeat("a", maxLength+1)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.inbound != "" {
				req.Header[HeaderKey] = []string{tc.inbound}
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			got := w.Header().Get(HeaderKey)
			assert.Equal(t, got, w.Body.String())
			if tc.keep {
				assert.Equal(t, tc.inbound, got)
				return
			}
			_, err := uuid.Parse(got)
			assert.NoError(t, err)
		})
	}
}
