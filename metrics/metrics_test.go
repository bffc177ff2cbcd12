package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/aisgo/ais-tenancy/errors"
)

func TestRegisterMetricsEndpoint(t *testing.T) {
	ScopeBypassTotal.WithLabelValues("buildings", "read").Inc()

	app := fiber.New()
	RegisterMetricsEndpoint(app)

	req := httptest.NewRequest("GET", "/metrics", nil)
	resp, err := app.Test(req, fiber.TestConfig{Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !strings.Contains(string(body), "tenancy_scope_bypass_total") {
		t.Fatalf("expected metrics output to include tenancy_scope_bypass_total")
	}
}

func TestHTTPMiddlewareUsesRouteTemplate(t *testing.T) {
	app := fiber.New()
	app.Use(HTTPMiddleware(nil))
	app.Get("/sites/:id", func(c fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	counter := HTTPRequestTotal.WithLabelValues("GET", "/sites/:id", "204")
	before := testutil.ToFloat64(counter)
	resp, err := app.Test(httptest.NewRequest("GET", "/sites/42", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	resp.Body.Close()

	if after := testutil.ToFloat64(counter); after != before+1 {
		t.Fatalf("expected request counter to increase, before=%v after=%v", before, after)
	}
}

func TestHTTPMiddlewareStatusFromError(t *testing.T) {
	app := fiber.New()
	app.Use(HTTPMiddleware(func(c fiber.Ctx) bool { return c.Path() == "/healthz" }))
	app.Patch("/floors/:id", func(c fiber.Ctx) error {
		return errors.NewVersionConflict(c.Params("id"), 1, 2)
	})
	app.Get("/healthz", func(c fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	conflicts := HTTPRequestTotal.WithLabelValues("PATCH", "/floors/:id", "409")
	before := testutil.ToFloat64(conflicts)
	resp, err := app.Test(httptest.NewRequest("PATCH", "/floors/f1", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	resp.Body.Close()
	if after := testutil.ToFloat64(conflicts); after != before+1 {
		t.Fatalf("conflict should be counted as 409, before=%v after=%v", before, after)
	}

	healthHits := HTTPRequestTotal.WithLabelValues("GET", "/healthz", "200")
	before = testutil.ToFloat64(healthHits)
	resp, err = app.Test(httptest.NewRequest("GET", "/healthz", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	resp.Body.Close()
	if after := testutil.ToFloat64(healthHits); after != before {
		t.Fatalf("skipped requests must not be counted")
	}
}
