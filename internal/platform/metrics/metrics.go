// Package metrics exposes Prometheus counters for HTTP traffic and for the
// billing, import, provisioning and reminder flows.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	invoicesCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invoices_created_total",
			Help: "Invoices created, by source (manual or appointment)",
		},
		[]string{"source"},
	)

	paymentsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_recorded_total",
			Help: "Payments recorded, by method",
		},
		[]string{"method"},
	)

	remindersDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminders_dispatched_total",
			Help: "Appointment reminders processed, by outcome",
		},
		[]string{"status"},
	)

	patientsImported = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "patients_imported_total",
			Help: "Patient import rows, by result",
		},
		[]string{"result"},
	)

	clinicsProvisioned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "clinics_provisioned_total",
			Help: "Clinics created by first sign-in",
		},
	)
)

const (
	SourceManual      = "manual"
	SourceAppointment = "appointment"
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request counts and latency. The path label is the route
// template, so ids do not explode cardinality.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else {
					status = http.StatusInternalServerError
				}
			}

			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			method := c.Request().Method
			httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
			httpRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

func RecordInvoiceCreated(source string) {
	invoicesCreated.WithLabelValues(source).Inc()
}

func RecordPayment(method string) {
	paymentsRecorded.WithLabelValues(method).Inc()
}

func RecordReminder(status string) {
	remindersDispatched.WithLabelValues(status).Inc()
}

// RecordImport adds one import run's row outcomes.
func RecordImport(created, skipped, failed int) {
	patientsImported.WithLabelValues("created").Add(float64(created))
	patientsImported.WithLabelValues("skipped").Add(float64(skipped))
	patientsImported.WithLabelValues("failed").Add(float64(failed))
}

func RecordClinicProvisioned() {
	clinicsProvisioned.Inc()
}
