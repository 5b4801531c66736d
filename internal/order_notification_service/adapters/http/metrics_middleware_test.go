package http

import (
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/bettyorganic/golang_services/internal/order_notification_service/app"
	"github.com/bettyorganic/golang_services/internal/order_notification_service/domain"
)

func TestPrometheusMetricsMiddleware(t *testing.T) {
	c := setupRouter(t)
	c.pending.On("FetchPendingNotifications", mock.Anything, "").
		Return(app.PendingResult{Success: true, Records: []domain.PendingOrderRecord{}}).Once()

	ok := httpRequestsTotal.WithLabelValues(http.MethodGet, "/notifications/pending", "200")
	denied := httpRequestsTotal.WithLabelValues(http.MethodGet, "/notifications/pending", "401")
	health := httpRequestsTotal.WithLabelValues(http.MethodGet, "/healthz", "200")
	okBefore, deniedBefore, healthBefore := testutil.ToFloat64(ok), testutil.ToFloat64(denied), testutil.ToFloat64(health)

	do(t, c.handler, http.MethodGet, "/notifications/pending", "", bearer(adminToken(t)))
	do(t, c.handler, http.MethodGet, "/notifications/pending", "", nil)
	do(t, c.handler, http.MethodGet, "/healthz", "", nil)

	assert.Equal(t, okBefore+1, testutil.ToFloat64(ok))
	assert.Equal(t, deniedBefore+1, testutil.ToFloat64(denied))
	assert.Equal(t, healthBefore, testutil.ToFloat64(health), "health checks are not metered")
	assert.Equal(t, float64(0), testutil.ToFloat64(httpRequestsInFlight))
}
