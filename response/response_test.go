package response

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/aisgo/ais-tenancy/errors"
	"github.com/aisgo/ais-tenancy/repository"
)

func do(t *testing.T, app *fiber.App, path string) (int, Result) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest("GET", path, nil), fiber.TestConfig{Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	var got Result
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp.StatusCode, got
}

func TestErrorBizError(t *testing.T) {
	app := fiber.New()
	app.Get("/err", func(c fiber.Ctx) error {
		return Error(c, errors.New(errors.ErrCodeInvalidArgument, "bad request"))
	})

	status, got := do(t, app, "/err")
	if status != fiber.StatusBadRequest {
		t.Fatalf("unexpected status: %d", status)
	}
	if got.Code != int(errors.ErrCodeInvalidArgument) || got.Msg != "bad request" {
		t.Fatalf("unexpected body: %+v", got)
	}
}

func TestErrorVersionConflictCarriesVersions(t *testing.T) {
	app := fiber.New()
	app.Get("/conflict", func(c fiber.Ctx) error {
		return Error(c, errors.NewVersionConflict("doc-1", 3, 4))
	})

	status, got := do(t, app, "/conflict")
	if status != fiber.StatusConflict {
		t.Fatalf("unexpected status: %d", status)
	}
	data, ok := got.Data.(map[string]any)
	if !ok {
		t.Fatalf("expected conflict details, got %#v", got.Data)
	}
	// JSON 数字解码为 float64
	if data[errors.DetailClientVersion] != float64(3) || data[errors.DetailCurrentVersion] != float64(4) {
		t.Fatalf("unexpected details: %v", data)
	}
}

func TestErrorHidesPlainErrors(t *testing.T) {
	app := fiber.New()
	app.Get("/boom", func(c fiber.Ctx) error {
		return Error(c, json.Unmarshal([]byte("{"), &struct{}{}))
	})

	status, got := do(t, app, "/boom")
	if status != fiber.StatusInternalServerError || got.Msg != "internal server error" {
		t.Fatalf("unexpected response: %d %+v", status, got)
	}
}

func TestPageData(t *testing.T) {
	app := fiber.New()
	app.Get("/page", func(c fiber.Ctx) error {
		return PageData(c, &repository.PageResult[string]{List: []*string{}, Total: 7, Page: 2, PageSize: 3, Pages: 3})
	})

	status, got := do(t, app, "/page")
	if status != fiber.StatusOK || got.Code != 0 {
		t.Fatalf("unexpected response: %d %+v", status, got)
	}
	data := got.Data.(map[string]any)
	if data["total"] != float64(7) || data["pages"] != float64(3) {
		t.Fatalf("unexpected page: %v", data)
	}
}
