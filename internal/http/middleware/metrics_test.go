package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_CountersInflightAndPathFallback(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Metrics())

	// Body-producing route: response size is observed.
	r.GET("/giveaways", func(c *gin.Context) {
		c.String(http.StatusOK, "[]")
	})
	// Status-only route: size stays -1 and the size observation is skipped.
	r.DELETE("/giveaways/:id/entry", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	// Baselines first; the registry is process-global and other tests touch it.
	baseList := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/giveaways", "200"))
	base404 := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/does-not-exist", "404"))
	baseDel := testutil.ToFloat64(httpReqs.WithLabelValues("DELETE", "/giveaways/:id/entry", "204"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/giveaways", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET /giveaways -> %d", w.Code)
	}

	// Unmatched routes label with the raw URL path.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/does-not-exist", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("GET /does-not-exist -> %d", w.Code)
	}

	// Matched routes label with the route pattern, not the concrete id.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/giveaways/42/entry", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("DELETE entry -> %d", w.Code)
	}

	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/giveaways", "200")); got != baseList+1 {
		t.Fatalf("list counter = %v, want %v", got, baseList+1)
	}
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/does-not-exist", "404")); got != base404+1 {
		t.Fatalf("404 fallback counter = %v, want %v", got, base404+1)
	}
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("DELETE", "/giveaways/:id/entry", "204")); got != baseDel+1 {
		t.Fatalf("pattern counter = %v, want %v", got, baseDel+1)
	}
	if inFlight := testutil.ToFloat64(httpInflight); inFlight != 0 {
		t.Fatalf("httpInflight = %v after requests completed", inFlight)
	}
}
