package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

const scopeInvitationsRoute = "/api/v1/directory/scopes/:scope/invitations"

func newMetricsRouter(t *testing.T, registry *prometheus.Registry) (*gin.Engine, *HTTPMetrics) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	metrics, err := NewHTTPMetrics(HTTPMetricsOptions{Registerer: registry})
	if err != nil {
		t.Fatalf("NewHTTPMetrics returned error: %v", err)
	}

	router := gin.New()
	router.Use(metrics.Handler())
	router.GET(scopeInvitationsRoute, func(c *gin.Context) { c.Status(http.StatusOK) })
	router.POST("/api/v1/directory/invitations", func(c *gin.Context) { c.Status(http.StatusForbidden) })
	return router, metrics
}

func serve(router *gin.Engine, method, path string) {
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(method, path, nil))
}

func TestHTTPMetricsLabelsUseRouteTemplate(t *testing.T) {
	registry := prometheus.NewRegistry()
	router, metrics := newMetricsRouter(t, registry)

	for _, scope := range []string{"acme", "globex", "tenant-personal-01hx"} {
		serve(router, http.MethodGet, "/api/v1/directory/scopes/"+scope+"/invitations")
	}
	serve(router, http.MethodPost, "/api/v1/directory/invitations")

	listed := prometheus.Labels{"method": http.MethodGet, "route": scopeInvitationsRoute, "status": "200"}
	if got := testutil.ToFloat64(metrics.Requests.With(listed)); got != 3 {
		t.Fatalf("expected 3 requests on the templated route, got %f", got)
	}
	denied := prometheus.Labels{"method": http.MethodPost, "route": "/api/v1/directory/invitations", "status": "403"}
	if got := testutil.ToFloat64(metrics.Requests.With(denied)); got != 1 {
		t.Fatalf("expected 1 forbidden invite, got %f", got)
	}
	if got := testutil.CollectAndCount(metrics.Requests); got != 2 {
		t.Fatalf("scope ids must not become label values, got %d series", got)
	}
	if got := testutil.ToFloat64(metrics.InFlight); got != 0 {
		t.Fatalf("expected in-flight gauge back at 0, got %f", got)
	}
}

func TestHTTPMetricsGroupsUnmatchedRoutes(t *testing.T) {
	registry := prometheus.NewRegistry()
	router, metrics := newMetricsRouter(t, registry)

	serve(router, http.MethodGet, "/api/v1/directory/users/u-1/secret")
	serve(router, http.MethodGet, "/wp-login.php")

	unmatched := prometheus.Labels{"method": http.MethodGet, "route": "unmatched", "status": "404"}
	if got := testutil.ToFloat64(metrics.Requests.With(unmatched)); got != 2 {
		t.Fatalf("expected unmatched paths collapsed into one series, got %f", got)
	}
}

func TestHTTPMetricsRegistersUnderDirectoryNamespace(t *testing.T) {
	registry := prometheus.NewRegistry()
	router, _ := newMetricsRouter(t, registry)
	serve(router, http.MethodGet, "/api/v1/directory/scopes/acme/invitations")

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather returned error: %v", err)
	}
	names := make([]string, 0, len(families))
	for _, family := range families {
		names = append(names, family.GetName())
	}
	for _, want := range []string{"directory_http_requests_total", "directory_http_request_duration_seconds", "directory_http_in_flight_requests"} {
		if !strings.Contains(strings.Join(names, ","), want) {
			t.Fatalf("expected %s among %v", want, names)
		}
	}
}

func TestNewHTTPMetricsReusesRegisteredCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()

	first, err := NewHTTPMetrics(HTTPMetricsOptions{Registerer: registry})
	if err != nil {
		t.Fatalf("first NewHTTPMetrics returned error: %v", err)
	}
	second, err := NewHTTPMetrics(HTTPMetricsOptions{Registerer: registry})
	if err != nil {
		t.Fatalf("second NewHTTPMetrics returned error: %v", err)
	}
	if first.Requests != second.Requests || first.Duration != second.Duration {
		t.Fatal("expected the already registered collectors to be reused")
	}
}

func TestHTTPMetricsHandlerNoopWhenNil(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use((*HTTPMetrics)(nil).Handler())
	router.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
}
