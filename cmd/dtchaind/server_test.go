package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/designtech/dtchain/internal/codec"
	"github.com/designtech/dtchain/internal/config"
	"github.com/designtech/dtchain/internal/digest"
	"github.com/designtech/dtchain/internal/ledger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

func testRouter(t *testing.T, cfg config.ServerConfig) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return newRouter(ctx, cfg, ledger.NewFactory(digest.Default()), zap.NewNop())
}

func defaultServerConfig() config.ServerConfig {
	return config.ServerConfig{
		CORSOrigins:  []string{"http://localhost:3000"},
		RateLimitRPS: 20,
		MaxCount:     100,
	}
}

func TestRouter_healthAndSecurityHeaders(t *testing.T) {
	r := testRouter(t, defaultServerConfig())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing security headers")
	}
}

func TestRouter_buildChain(t *testing.T) {
	r := testRouter(t, defaultServerConfig())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/chains?count=2", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Count   int `json:"count"`
		Records []struct {
			Payload string `json:"payload"`
		} `json:"records"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Count != 2 || resp.Records[1].Payload != "block1data" {
		t.Errorf("unexpected response %+v", resp)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(w.Body.String(), `dtchain_chains_built_total{algorithm="sha256"}`) {
		t.Error("metrics missing dtchain_chains_built_total for sha256")
	}
}

func TestRouter_verifiesChainBuiltAtMaxCount(t *testing.T) {
	cfg := defaultServerConfig()
	cfg.MaxCount = 5000
	r := testRouter(t, cfg)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/chains?count=5000", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("build: expected 200, got %d", w.Code)
	}
	var built struct {
		Root string `json:"root"`
		codec.Document
	}
	if err := json.Unmarshal(w.Body.Bytes(), &built); err != nil {
		t.Fatal(err)
	}

	body, err := codec.Marshal(codec.FormatJSON, built.Document)
	if err != nil {
		t.Fatal(err)
	}
	if len(body) <= 1<<20 {
		t.Fatalf("document of %d bytes does not exercise bodies above 1 MiB", len(body))
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chains/verify", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("verify: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var verified struct {
		Valid   bool   `json:"valid"`
		Records int    `json:"records"`
		Root    string `json:"root"`
	}
	json.Unmarshal(w.Body.Bytes(), &verified)
	if !verified.Valid || verified.Records != 5000 || verified.Root != built.Root {
		t.Errorf("unexpected verify response %+v", verified)
	}
}

func TestRouter_oversizedBody413(t *testing.T) {
	cfg := defaultServerConfig()
	cfg.MaxCount = 1
	r := testRouter(t, cfg)

	body := bytes.Repeat([]byte(" "), int(2<<20))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chains/verify", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d: %s", w.Code, w.Body.String())
	}
}

func TestRouter_corsPreflight(t *testing.T) {
	r := testRouter(t, defaultServerConfig())

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/chains/verify", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestRouter_rateLimitDisabled(t *testing.T) {
	cfg := defaultServerConfig()
	cfg.RateLimitRPS = 0
	r := testRouter(t, cfg)

	for i := 0; i < 50; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200 with rate limiting disabled, got %d", i, w.Code)
		}
	}
}

func TestContainsWildcard(t *testing.T) {
	if containsWildcard([]string{"https://a.example"}) {
		t.Error("unexpected wildcard")
	}
	if !containsWildcard([]string{"https://a.example", " * "}) {
		t.Error("expected wildcard")
	}
}

func TestGRPCHealth(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	srv := newGRPCServer(zap.NewNop())
	go srv.Serve(lis) //nolint:errcheck

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatal(err)
	}

	hc := grpc_health_v1.NewHealthClient(conn)
	resp, err := hc.Check(context.Background(), &grpc_health_v1.HealthCheckRequest{Service: healthService})
	if err != nil {
		t.Fatalf("health check: %v", err)
	}
	if resp.Status != grpc_health_v1.HealthCheckResponse_SERVING {
		t.Errorf("status = %v, want SERVING", resp.Status)
	}

	conn.Close()
	srv.Stop()
}
