package wallet

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/ronalsilva/waller-microservice/internal/apierror"
)

func newTestApp(t *testing.T, svc *Service, userID string) *fiber.App {
	t.Helper()
	app := fiber.New(fiber.Config{ErrorHandler: apierror.Handler})
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", userID)
		return c.Next()
	})
	h := NewHandler(svc)
	app.Get("/users/balance", h.Balance)
	app.Post("/wallet/create", h.Create)
	app.Post("/wallet/deposit", h.Deposit)
	app.Post("/wallet/transfer", h.Transfer)
	app.Get("/wallet/transactions", h.Transactions)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request %s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestHandlerWalletFlow(t *testing.T) {
	svc, _, _ := newTestService(t)
	alice, bob := uuid.NewString(), uuid.NewString()
	mustCreate(t, svc, bob, 0)
	app := newTestApp(t, svc, alice)

	resp, body := doJSON(t, app, http.MethodPost, "/wallet/create", map[string]any{"balance": 500})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create: expected 200, got %d (%v)", resp.StatusCode, body)
	}
	if body["balance"] != float64(500) {
		t.Fatalf("expected numeric balance 500, got %v", body["balance"])
	}

	resp, body = doJSON(t, app, http.MethodPost, "/wallet/deposit", map[string]any{"amount": 50})
	if resp.StatusCode != http.StatusOK || body["balance"] != float64(550) {
		t.Fatalf("deposit: got %d %v", resp.StatusCode, body)
	}

	resp, body = doJSON(t, app, http.MethodPost, "/wallet/transfer", map[string]any{"amount": 150, "receiver_id": bob})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("transfer: expected 200, got %d (%v)", resp.StatusCode, body)
	}
	if body["type"] != "transfer" || body["description"] != "sent" {
		t.Fatalf("expected sender leg, got %v", body)
	}

	resp, body = doJSON(t, app, http.MethodGet, "/users/balance", nil)
	if resp.StatusCode != http.StatusOK || body["balance"] != float64(400) {
		t.Fatalf("balance: got %d %v", resp.StatusCode, body)
	}

	req := httptest.NewRequest(http.MethodGet, "/wallet/transactions", nil)
	raw, err := app.Test(req)
	if err != nil {
		t.Fatalf("transactions: %v", err)
	}
	defer raw.Body.Close()
	var list []map[string]any
	if err := json.NewDecoder(raw.Body).Decode(&list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected opening credit, deposit and sent leg, got %d rows", len(list))
	}
}

func TestHandlerErrors(t *testing.T) {
	svc, _, _ := newTestService(t)
	alice := uuid.NewString()
	app := newTestApp(t, svc, alice)

	resp, body := doJSON(t, app, http.MethodGet, "/users/balance", nil)
	if resp.StatusCode != http.StatusNotFound || body["error"] != codeWalletNotFound {
		t.Fatalf("expected 404 %s, got %d %v", codeWalletNotFound, resp.StatusCode, body)
	}

	mustCreate(t, svc, alice, 10)

	resp, body = doJSON(t, app, http.MethodPost, "/wallet/create", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 on duplicate, got %d %v", resp.StatusCode, body)
	}

	resp, body = doJSON(t, app, http.MethodPost, "/wallet/transfer", map[string]any{"amount": 20, "receiver_id": uuid.NewString()})
	if resp.StatusCode != http.StatusBadRequest || body["error"] != codeInsufficientFunds {
		t.Fatalf("expected 400 %s, got %d %v", codeInsufficientFunds, resp.StatusCode, body)
	}

	resp, body = doJSON(t, app, http.MethodPost, "/wallet/transfer", map[string]any{"amount": 5, "receiver_id": alice})
	if resp.StatusCode != http.StatusBadRequest || body["error"] != codeSelfTransfer {
		t.Fatalf("expected 400 %s, got %d %v", codeSelfTransfer, resp.StatusCode, body)
	}

	resp, body = doJSON(t, app, http.MethodPost, "/wallet/transfer", map[string]any{"amount": 5, "receiver_id": uuid.NewString()})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for missing receiver, got %d %v", resp.StatusCode, body)
	}
}
