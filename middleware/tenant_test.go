package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/aisgo/ais-tenancy/errors"
	"github.com/aisgo/ais-tenancy/logger"
	"github.com/aisgo/ais-tenancy/response"
	"github.com/aisgo/ais-tenancy/tenancy"
)

type fakeDirectory struct {
	tenants map[string]tenancy.Status
	homes   map[string]string
}

func (d *fakeDirectory) GetTenant(_ context.Context, id string) (*tenancy.Tenant, error) {
	st, ok := d.tenants[id]
	if !ok {
		return nil, errors.ErrNotFound
	}
	return &tenancy.Tenant{ID: id, Name: id, Status: st}, nil
}

func (d *fakeDirectory) HomeTenant(_ context.Context, actorID string) (string, error) {
	home, ok := d.homes[actorID]
	if !ok {
		return "", errors.ErrNotFound
	}
	return home, nil
}

var testNow = time.Unix(1700000000, 0)

func newTenantApp(t *testing.T) *fiber.App {
	t.Helper()
	dir := &fakeDirectory{
		tenants: map[string]tenancy.Status{"t1": tenancy.StatusActive, "t2": tenancy.StatusTrial, "t3": tenancy.StatusSuspended},
		homes:   map[string]string{"alice": "t1", "carol": "t3"},
	}
	verifier := NewActorVerifier(VerifierConfig{Enabled: true, Secret: "secret", NowFunc: func() time.Time { return testNow }}, nil)
	resolver := NewTenantResolver(tenancy.NewResolver(dir, dir, nil), tenancy.Config{})

	app := fiber.New(fiber.Config{ErrorHandler: NewErrorHandler(logger.NewNop())})
	app.Use(verifier.Authenticate(), resolver.Handler())
	app.Get("/whoami", func(c fiber.Ctx) error {
		st, ok := tenancy.Get(c.Context())
		if !ok {
			return response.OkWithData(c, fiber.Map{"tenant": ""})
		}
		return response.OkWithData(c, fiber.Map{"tenant": st.TenantID, "privileged": st.Privileged})
	})
	return app
}

func call(t *testing.T, app *fiber.App, claims *ActorClaims, target string) (int, response.Result) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	if claims != nil {
		signedHeaders(t, testNow, claims).Write(req.Header)
	}
	if target != "" {
		req.Header.Set(tenancy.DefaultTenantHeader, target)
	}
	resp, err := app.Test(req, fiber.TestConfig{Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	var body response.Result
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp.StatusCode, body
}

func tenantOf(t *testing.T, body response.Result) string {
	t.Helper()
	data, ok := body.Data.(map[string]any)
	if !ok {
		t.Fatalf("unexpected data: %#v", body.Data)
	}
	return data["tenant"].(string)
}

func TestOrdinaryActorGetsHomeTenant(t *testing.T) {
	app := newTenantApp(t)

	status, body := call(t, app, &ActorClaims{ActorID: "alice"}, "")
	if status != fiber.StatusOK || tenantOf(t, body) != "t1" {
		t.Fatalf("unexpected response: %d %+v", status, body)
	}

	status, body = call(t, app, &ActorClaims{ActorID: "alice"}, "t1")
	if status != fiber.StatusOK || tenantOf(t, body) != "t1" {
		t.Fatalf("own tenant header should be accepted: %d %+v", status, body)
	}
}

func TestOrdinaryActorCannotTargetForeignTenant(t *testing.T) {
	app := newTenantApp(t)

	status, body := call(t, app, &ActorClaims{ActorID: "alice"}, "t2")
	if status != fiber.StatusForbidden || body.Code != int(errors.ErrCodePermissionDenied) {
		t.Fatalf("unexpected response: %d %+v", status, body)
	}
}

func TestOperatorNeedsExplicitTenant(t *testing.T) {
	app := newTenantApp(t)
	op := &ActorClaims{ActorID: "ops-1", Roles: []string{tenancy.DefaultOperatorRole}}

	status, body := call(t, app, op, "")
	if status != fiber.StatusBadRequest || body.Code != int(errors.ErrCodeTenantIDRequired) {
		t.Fatalf("unexpected response: %d %+v", status, body)
	}

	status, body = call(t, app, op, "t2")
	if status != fiber.StatusOK || tenantOf(t, body) != "t2" {
		t.Fatalf("unexpected response: %d %+v", status, body)
	}
	if body.Data.(map[string]any)["privileged"] != true {
		t.Fatalf("operator should be privileged: %+v", body)
	}
}

func TestTenantStatusChecked(t *testing.T) {
	app := newTenantApp(t)

	status, body := call(t, app, &ActorClaims{ActorID: "carol"}, "")
	if status != fiber.StatusForbidden || body.Code != int(errors.ErrCodeTenantSuspended) {
		t.Fatalf("unexpected response: %d %+v", status, body)
	}

	status, body = call(t, app, &ActorClaims{ActorID: "bob"}, "")
	if status != fiber.StatusForbidden || body.Code != int(errors.ErrCodeNoTenantAssociation) {
		t.Fatalf("unexpected response: %d %+v", status, body)
	}
}

func TestAnonymousRequestHasNoTenant(t *testing.T) {
	app := newTenantApp(t)

	status, body := call(t, app, nil, "t1")
	if status != fiber.StatusOK || tenantOf(t, body) != "" {
		t.Fatalf("anonymous request must not bind a tenant: %d %+v", status, body)
	}
}

func TestBadActorHeaderRejected(t *testing.T) {
	app := newTenantApp(t)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	h := signedHeaders(t, testNow, &ActorClaims{ActorID: "alice"})
	h.Signature = "00"
	h.Write(req.Header)

	resp, err := app.Test(req, fiber.TestConfig{Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}
