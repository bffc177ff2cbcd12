package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/aisgo/ais-tenancy/errors"
	"github.com/aisgo/ais-tenancy/repository"
)

func TestParseVersionTag(t *testing.T) {
	for raw, want := range map[string]int64{`W/"3"`: 3, `"3"`: 3, "3": 3, ` "12" `: 12, "0": 0} {
		got, err := ParseVersionTag(raw)
		if err != nil || got != want {
			t.Fatalf("%q: got %d, %v", raw, got, err)
		}
	}
	for _, raw := range []string{"", "*", `W/"abc"`, "-1"} {
		if _, err := ParseVersionTag(raw); errors.Code(err) != errors.ErrCodeInvalidArgument {
			t.Fatalf("%q: expected invalid argument, got %v", raw, err)
		}
	}
	if FormatVersionTag(4) != `W/"4"` {
		t.Fatalf("unexpected tag: %s", FormatVersionTag(4))
	}
}

func TestVersionTokenFromRequest(t *testing.T) {
	var (
		token repository.VersionToken
		err   error
		body  *int64
	)
	app := fiber.New()
	app.Put("/floors/:id", func(c fiber.Ctx) error {
		token, err = VersionToken(c, c.Params("id"), body)
		return c.SendStatus(fiber.StatusNoContent)
	})

	send := func(ifMatch string) {
		t.Helper()
		req := httptest.NewRequest(http.MethodPut, "/floors/f1", nil)
		if ifMatch != "" {
			req.Header.Set(fiber.HeaderIfMatch, ifMatch)
		}
		resp, e := app.Test(req, fiber.TestConfig{Timeout: 2 * time.Second})
		if e != nil {
			t.Fatalf("app.Test: %v", e)
		}
		resp.Body.Close()
	}

	send(`W/"3"`)
	if err != nil || !token.HasVersion() || *token.Version != 3 || token.ResourceID != "f1" {
		t.Fatalf("unexpected token: %+v %v", token, err)
	}

	send("")
	if err != nil || token.HasVersion() {
		t.Fatalf("missing version should leave token empty: %+v %v", token, err)
	}

	three := int64(3)
	body = &three
	send("")
	if err != nil || *token.Version != 3 {
		t.Fatalf("body version should be used: %+v %v", token, err)
	}

	send(`"4"`)
	if errors.Code(err) != errors.ErrCodeInvalidArgument {
		t.Fatalf("conflicting versions should be rejected, got %v", err)
	}
}
