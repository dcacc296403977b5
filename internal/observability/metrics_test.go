package observability

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsWorkerCollectors(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()

	metrics.AddVarslerCreated("KANDIDAT_INVITERT_TREFF", 3)
	metrics.AddVarslerCreated("KANDIDAT_INVITERT_TREFF", 0)
	metrics.IncVarselDispatched("KANDIDAT_INVITERT_TREFF")
	metrics.IncDispatchError("publish")
	metrics.ObserveDispatchDuration(40 * time.Millisecond)
	metrics.IncStatusUpdateApplied("channel_sendt")
	metrics.IncStatusUpdateIgnored()
	metrics.IncReconcileCycle("committed")
	metrics.IncIngestionEvent("invitasjon", "created")

	if got := testutil.ToFloat64(metrics.varslerCreatedTotal.WithLabelValues("kandidat_invitert_treff")); got != 3 {
		t.Fatalf("varsler_created_total = %v, want 3", got)
	}
	if got := testutil.ToFloat64(metrics.varslerDispatchedTotal.WithLabelValues("kandidat_invitert_treff")); got != 1 {
		t.Fatalf("varsler_dispatched_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.dispatchErrorsTotal.WithLabelValues("publish")); got != 1 {
		t.Fatalf("dispatch_errors_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.statusUpdatesAppliedTotal.WithLabelValues("channel_sendt")); got != 1 {
		t.Fatalf("status_updates_applied_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.statusUpdatesIgnoredTotal); got != 1 {
		t.Fatalf("status_updates_ignored_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.reconcileCyclesTotal.WithLabelValues("committed")); got != 1 {
		t.Fatalf("reconciliation_cycles_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.ingestionEventsTotal.WithLabelValues("invitasjon", "created")); got != 1 {
		t.Fatalf("ingestion_events_total = %v, want 1", got)
	}
}

func TestMetricsNilSafe(t *testing.T) {
	t.Parallel()

	var metrics *Metrics
	metrics.IncVarselDispatched("x")
	metrics.IncStatusUpdateIgnored()
	metrics.ObserveDispatchDuration(time.Second)
	if metrics.Handler() == nil {
		t.Fatal("Handler() on nil metrics returned nil")
	}
}

func TestMetricsHTTPMiddlewareRecordsRequest(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()
	app := fiber.New()
	app.Use(metrics.HTTPMiddleware())
	app.Get("/livez", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest("GET", "/livez", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	if got := testutil.ToFloat64(metrics.httpRequestsTotal.WithLabelValues("GET", "/livez", "200")); got != 1 {
		t.Fatalf("http_requests_total = %v, want 1", got)
	}
}

func TestMetricsHTTPMiddlewareRecordsErrorStatus(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()
	app := fiber.New()
	app.Use(metrics.HTTPMiddleware())
	app.Get("/boom", func(c *fiber.Ctx) error {
		return errors.New("boom")
	})

	req := httptest.NewRequest("GET", "/boom", nil)
	_, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}

	if got := testutil.ToFloat64(metrics.httpRequestsTotal.WithLabelValues("GET", "/boom", "500")); got != 1 {
		t.Fatalf("http_requests_total = %v, want 1", got)
	}
}
