package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ronalsilva/waller-microservice/internal/config"
	"github.com/ronalsilva/waller-microservice/internal/logging"
	"github.com/ronalsilva/waller-microservice/internal/metrics"
	"github.com/ronalsilva/waller-microservice/internal/routes"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	reg := prometheus.NewRegistry()
	srv, err := New(routes.Deps{
		Cfg:      config.Config{AppName: "test", AppEnv: "test", JWTSecret: "secret", AccessTokenTTL: time.Hour},
		Logger:   logging.Discard(),
		Metrics:  metrics.New(reg),
		Gatherer: reg,
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return srv
}

func send(t *testing.T, app *fiber.App, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	out := map[string]any{}
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 && raw[0] == '{' {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode, out
}

func TestServerRegisterLoginAndWalletFlow(t *testing.T) {
	app := newTestServer(t).App()

	status, body := send(t, app, http.MethodPost, "/users", "", map[string]string{
		"first_name": "Ana", "email": "ana@example.com", "password": "s3cret!",
	})
	if status != http.StatusCreated {
		t.Fatalf("register: expected 201 got %d (%v)", status, body)
	}

	status, body = send(t, app, http.MethodPost, "/login", "", map[string]string{
		"email": "ana@example.com", "password": "s3cret!",
	})
	if status != http.StatusOK {
		t.Fatalf("login: expected 200 got %d (%v)", status, body)
	}
	token, _ := body["accessToken"].(string)
	if token == "" {
		t.Fatalf("login: missing access token in %v", body)
	}

	if status, _ = send(t, app, http.MethodGet, "/users/balance", token, nil); status != http.StatusNotFound {
		t.Fatalf("balance before create: expected 404 got %d", status)
	}
	if status, body = send(t, app, http.MethodPost, "/wallet/create", token, map[string]any{"balance": 250}); status != http.StatusOK {
		t.Fatalf("create wallet: expected 200 got %d (%v)", status, body)
	}
	status, body = send(t, app, http.MethodGet, "/users/balance", token, nil)
	if status != http.StatusOK || body["balance"] != float64(250) {
		t.Fatalf("balance: expected 250 got %d %v", status, body)
	}
	if status, body = send(t, app, http.MethodGet, "/users", token, nil); status != http.StatusOK || body["email"] != "ana@example.com" {
		t.Fatalf("profile: got %d %v", status, body)
	}

	if status, _ = send(t, app, http.MethodPost, "/logout", token, nil); status != http.StatusOK {
		t.Fatalf("logout: expected 200 got %d", status)
	}
	status, body = send(t, app, http.MethodGet, "/users/balance", token, nil)
	if status != http.StatusUnauthorized || body["error"] != "UNAUTHORIZED" {
		t.Fatalf("after logout: expected 401 UNAUTHORIZED got %d %v", status, body)
	}
}

func TestServerRejectsAnonymousWalletCalls(t *testing.T) {
	app := newTestServer(t).App()
	status, body := send(t, app, http.MethodPost, "/wallet/create", "", nil)
	if status != http.StatusUnauthorized || body["error"] != "UNAUTHORIZED" {
		t.Fatalf("expected 401 UNAUTHORIZED got %d %v", status, body)
	}
}

func TestServerHealthAndMetrics(t *testing.T) {
	app := newTestServer(t).App()

	status, body := send(t, app, http.MethodGet, "/healthz", "", nil)
	if status != http.StatusOK {
		t.Fatalf("healthz: expected 200 got %d", status)
	}
	identity, _ := body["identity"].(map[string]any)
	if identity["enabled"] != false {
		t.Fatalf("expected remote identity disabled, got %v", body)
	}

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(raw), "wallet_identity_pending_requests") {
		t.Fatalf("metrics: unexpected %d %s", resp.StatusCode, raw)
	}
}

func TestServerRequiresBackendsOutsideDev(t *testing.T) {
	_, err := New(routes.Deps{
		Cfg:    config.Config{AppEnv: "production", JWTSecret: "secret"},
		Logger: logging.Discard(),
	})
	if err == nil {
		t.Fatalf("expected error without database in production")
	}
}
