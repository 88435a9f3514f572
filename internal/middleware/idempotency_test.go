package middleware

import (
	"io"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/ronalsilva/waller-microservice/internal/apierror"
	"github.com/ronalsilva/waller-microservice/internal/logging"
)

type idemFixture struct {
	app   *fiber.App
	mr    *miniredis.Miniredis
	calls *atomic.Int32
}

func setupTestApp(t *testing.T) (idemFixture, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	calls := new(atomic.Int32)
	app := fiber.New(fiber.Config{ErrorHandler: apierror.Handler})
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(UserIDKey, c.Get("X-Test-User"))
		return c.Next()
	})
	app.Use(Idempotency(cache, time.Minute, logging.Discard()))
	app.Post("/resource", func(c *fiber.Ctx) error {
		n := calls.Add(1)
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"ok": true, "call": n})
	})
	app.Post("/failing", func(c *fiber.Ctx) error {
		calls.Add(1)
		return apierror.New(fiber.StatusBadRequest, "INSUFFICIENT_FUNDS", "insufficient funds")
	})

	cleanup := func() {
		cache.Close()
		mr.Close()
	}
	return idemFixture{app: app, mr: mr, calls: calls}, cleanup
}

func (f idemFixture) post(t *testing.T, path, user, key, body string) (int, string, string) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, path, strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set("X-Test-User", user)
	if key != "" {
		req.Header.Set(IdempotencyKeyHeader, key)
	}
	resp, err := f.app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, string(payload), resp.Header.Get("Idempotent-Replayed")
}

func TestIdempotencyWithoutHeaderPassesThrough(t *testing.T) {
	f, cleanup := setupTestApp(t)
	defer cleanup()

	for i := 0; i < 2; i++ {
		if status, _, _ := f.post(t, "/resource", "u1", "", "{}"); status != fiber.StatusCreated {
			t.Fatalf("expected %d got %d", fiber.StatusCreated, status)
		}
	}
	if got := f.calls.Load(); got != 2 {
		t.Fatalf("expected handler to run twice, got %d", got)
	}
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	f, cleanup := setupTestApp(t)
	defer cleanup()

	status, first, replayed := f.post(t, "/resource", "u1", "abc123", `{"amount":10}`)
	if status != fiber.StatusCreated || replayed != "" {
		t.Fatalf("first: got %d replayed=%q", status, replayed)
	}
	status, second, replayed := f.post(t, "/resource", "u1", "abc123", `{"amount":10}`)
	if status != fiber.StatusCreated || replayed != "true" {
		t.Fatalf("second: got %d replayed=%q", status, replayed)
	}
	if first != second {
		t.Fatalf("expected replayed payload %s got %s", first, second)
	}
	if got := f.calls.Load(); got != 1 {
		t.Fatalf("expected handler to run once, got %d", got)
	}
}

func TestIdempotencyKeysAreScopedPerUser(t *testing.T) {
	f, cleanup := setupTestApp(t)
	defer cleanup()

	f.post(t, "/resource", "u1", "shared", "{}")
	if _, _, replayed := f.post(t, "/resource", "u2", "shared", "{}"); replayed != "" {
		t.Fatalf("expected a different caller not to see the stored response")
	}
	if got := f.calls.Load(); got != 2 {
		t.Fatalf("expected handler to run per caller, got %d", got)
	}
}

func TestIdempotencyRejectsKeyReuseWithDifferentBody(t *testing.T) {
	f, cleanup := setupTestApp(t)
	defer cleanup()

	f.post(t, "/resource", "u1", "k", `{"amount":10}`)
	status, body, _ := f.post(t, "/resource", "u1", "k", `{"amount":99}`)
	if status != fiber.StatusUnprocessableEntity || !strings.Contains(body, CodeKeyReused) {
		t.Fatalf("expected 422 %s, got %d %s", CodeKeyReused, status, body)
	}
}

func TestIdempotencyReleasesKeyOnFailure(t *testing.T) {
	f, cleanup := setupTestApp(t)
	defer cleanup()

	for i := 0; i < 2; i++ {
		if status, _, _ := f.post(t, "/failing", "u1", "retry-me", "{}"); status != fiber.StatusBadRequest {
			t.Fatalf("attempt %d: expected 400 got %d", i+1, status)
		}
	}
	if got := f.calls.Load(); got != 2 {
		t.Fatalf("expected failed attempts not to be replayed, got %d calls", got)
	}
	if f.mr.Exists(idempotencyPrefix + "u1:/failing:retry-me") {
		t.Fatalf("expected slot to be released")
	}
}

func TestIdempotencyConflictsWhileInProgress(t *testing.T) {
	f, cleanup := setupTestApp(t)
	defer cleanup()

	if err := f.mr.Set(idempotencyPrefix+"u1:/resource:busy", inProgressMarker); err != nil {
		t.Fatalf("seed: %v", err)
	}
	status, body, _ := f.post(t, "/resource", "u1", "busy", "{}")
	if status != fiber.StatusConflict || !strings.Contains(body, CodeDuplicateRequest) {
		t.Fatalf("expected 409 %s, got %d %s", CodeDuplicateRequest, status, body)
	}
	if got := f.calls.Load(); got != 0 {
		t.Fatalf("expected handler not to run, got %d", got)
	}
}
