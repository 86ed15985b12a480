package middleware

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/offline-pay/offline_pay/internal/auth"
	"github.com/offline-pay/offline_pay/internal/identity"
)

func TestJWTAuth(t *testing.T) {
	issuer := auth.NewIssuer("secret")
	app := fiber.New()
	app.Get("/me", JWTAuth(issuer), func(c *fiber.Ctx) error {
		num, _ := c.Locals(LocalNum).(string)
		return c.SendString(num)
	})

	good, err := issuer.Issue(identity.Account{Name: "Asha", Phone: "9000000001"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	forged, err := auth.NewIssuer("other").Issue(identity.Account{Name: "Asha", Phone: "9000000001"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", fiber.StatusUnauthorized},
		{"wrong scheme", "Basic " + good, fiber.StatusUnauthorized},
		{"forged", "Bearer " + forged, fiber.StatusUnauthorized},
		{"valid", "Bearer " + good, fiber.StatusOK},
		{"lowercase scheme", "bearer " + good, fiber.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(fiber.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set(fiber.HeaderAuthorization, tc.header)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("app.Test: %v", err)
			}
			if resp.StatusCode != tc.want {
				t.Fatalf("expected %d got %d", tc.want, resp.StatusCode)
			}
		})
	}
}

func TestLoginRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = cache.Close() })

	app := fiber.New()
	app.Post("/login", LoginRateLimit(cache, 2), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	attempt := func(num string) int {
		req := httptest.NewRequest(fiber.MethodPost, "/login", strings.NewReader(`{"num":"`+num+`"}`))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		return resp.StatusCode
	}

	for i := 0; i < 2; i++ {
		if got := attempt("9000000001"); got != fiber.StatusOK {
			t.Fatalf("attempt %d: expected 200 got %d", i+1, got)
		}
	}
	if got := attempt("9000000001"); got != fiber.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", got)
	}
	if got := attempt("9876543210"); got != fiber.StatusOK {
		t.Fatalf("other number must not be throttled, got %d", got)
	}

	mr.FastForward(61 * time.Second)
	if got := attempt("9000000001"); got != fiber.StatusOK {
		t.Fatalf("window should have reset, got %d", got)
	}
}
