package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Metrics())
	r.GET("/reports", func(c *gin.Context) { c.String(http.StatusOK, "[]") })
	// 204 with no body leaves the writer size at -1, which the size
	// histogram must skip.
	r.GET("/empty", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	// Collectors are package globals, so count relative to the baseline.
	baseOK := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/reports", "200"))
	base404 := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/does-not-exist", "404"))

	for _, tc := range []struct {
		path string
		want int
	}{
		{"/reports", http.StatusOK},
		{"/does-not-exist", http.StatusNotFound},
		{"/empty", http.StatusNoContent},
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tc.path, nil))
		if w.Code != tc.want {
			t.Fatalf("GET %s = %d, want %d", tc.path, w.Code, tc.want)
		}
	}

	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/reports", "200")); got != baseOK+1 {
		t.Fatalf("counter /reports 200 = %v, want %v", got, baseOK+1)
	}
	// Unrouted requests are labeled with the raw URL path.
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/does-not-exist", "404")); got != base404+1 {
		t.Fatalf("counter 404 fallback = %v, want %v", got, base404+1)
	}
	if inFlight := testutil.ToFloat64(httpInflight); inFlight != 0 {
		t.Fatalf("in-flight gauge = %v after completion", inFlight)
	}
}
