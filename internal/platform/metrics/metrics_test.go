package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_CountsByRouteTemplate(t *testing.T) {
	e := echo.New()
	e.Use(Middleware())
	e.GET("/api/v1/patients/:id", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	})

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/api/v1/patients/:id", "404"))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients/123", nil)
	e.ServeHTTP(httptest.NewRecorder(), req)
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/api/v1/patients/:id", "404"))

	assert.Equal(t, before+1, after)
}

func TestRecorders(t *testing.T) {
	before := testutil.ToFloat64(invoicesCreated.WithLabelValues(SourceAppointment))
	RecordInvoiceCreated(SourceAppointment)
	assert.Equal(t, before+1, testutil.ToFloat64(invoicesCreated.WithLabelValues(SourceAppointment)))

	created := testutil.ToFloat64(patientsImported.WithLabelValues("created"))
	skipped := testutil.ToFloat64(patientsImported.WithLabelValues("skipped"))
	RecordImport(3, 2, 0)
	assert.Equal(t, created+3, testutil.ToFloat64(patientsImported.WithLabelValues("created")))
	assert.Equal(t, skipped+2, testutil.ToFloat64(patientsImported.WithLabelValues("skipped")))

	p := testutil.ToFloat64(clinicsProvisioned)
	RecordClinicProvisioned()
	assert.Equal(t, p+1, testutil.ToFloat64(clinicsProvisioned))
}

func TestHandler_ExposesCounters(t *testing.T) {
	RecordPayment("UPI")
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `payments_recorded_total{method="UPI"}`))
}
