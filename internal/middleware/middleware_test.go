package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func perform(router *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestPrometheusMiddleware_CountsRequests(t *testing.T) {
	reg := prometheus.NewRegistry()
	pm := newPrometheusMiddleware("test", reg)

	router := gin.New()
	router.Use(pm.Handler())
	router.GET("/ok", func(c *gin.Context) {
		c.String(http.StatusOK, strings.Repeat("x", 512))
	})
	router.GET("/fail", func(c *gin.Context) {
		c.String(http.StatusInternalServerError, "boom")
	})

	perform(router, "GET", "/ok")
	perform(router, "GET", "/ok")
	perform(router, "GET", "/fail")

	errors := testutil.ToFloat64(pm.reqErrors.WithLabelValues("GET", "/fail", "500"))
	assert.Equal(t, 1.0, errors, "Ошибкой считается только 5xx/4xx ответ")

	okErrors := testutil.ToFloat64(pm.reqErrors.WithLabelValues("GET", "/ok", "200"))
	assert.Equal(t, 0.0, okErrors)

	inflight := testutil.ToFloat64(pm.reqInflight)
	assert.Equal(t, 0.0, inflight, "После завершения запросов gauge обязан вернуться к нулю")

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["test_http_request_duration_seconds"])
	assert.True(t, names["test_http_response_size_bytes"])
}

func TestPrometheusMiddleware_UnmatchedRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	pm := newPrometheusMiddleware("test404", reg)

	router := gin.New()
	router.Use(pm.Handler())

	perform(router, "GET", "/no/such/route")

	errors := testutil.ToFloat64(pm.reqErrors.WithLabelValues("GET", "/no/such/route", "404"))
	assert.Equal(t, 1.0, errors, "Незаматченный маршрут метится сырым путем")
}

func TestRequestLogger_SetsTraceID(t *testing.T) {
	router := gin.New()
	router.Use(NewRequestLogger().Handler())

	var traceID string
	router.GET("/traced", func(c *gin.Context) {
		traceID = c.GetString("trace_id")
		c.Status(http.StatusOK)
	})

	w := perform(router, "GET", "/traced")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, traceID, "Каждый запрос обязан получить trace_id")
}

func TestRequestLogger_SkipPathsStillTraced(t *testing.T) {
	router := gin.New()
	router.Use(NewRequestLogger("/metrics").Handler())

	var traceID string
	router.GET("/metrics", func(c *gin.Context) {
		traceID = c.GetString("trace_id")
		c.Status(http.StatusOK)
	})

	w := perform(router, "GET", "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, traceID, "Пропуск логов не отменяет trace_id")
}
