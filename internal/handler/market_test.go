package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/openmarkets/totem/internal/engine"
	"github.com/openmarkets/totem/internal/ledger"
	"github.com/openmarkets/totem/internal/service"
)

func newTestServer(t *testing.T) (*httptest.Server, *ledger.InMemory) {
	t.Helper()
	lg := ledger.NewInMemory()
	lg.Fund("alice", 100_000_000_000)
	lg.Fund("bob", 100_000_000_000)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	eng := engine.New(lg, nil, nil, engine.Config{
		PriceMoveLimit:  sdkmath.NewInt(50_000_000_000_000_000),
		OracleTimeout:   time.Second,
		OracleMaxAge:    time.Hour,
		DustThreshold:   1_000,
		TreasuryAccount: "treasury",
	}, logger)
	svc := service.NewMarketService(eng, nil, logger)

	mux := http.NewServeMux()
	NewMarketHandler(svc, logger).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, lg
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func createMarket(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp := postJSON(t, srv.URL+"/markets", service.CreateMarketRequest{
		Creator:     "alice",
		Question:    "Will the merge ship this month?",
		Seed:        1_000_000_000,
		ExpiresAt:   time.Now().Add(24 * time.Hour),
		TreasuryBps: 50,
		VaultBps:    50,
		LpBps:       100,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create market: status %d", resp.StatusCode)
	}
	var m struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		t.Fatalf("decode market: %v", err)
	}
	return m.ID
}

func TestCreateAndGetMarket(t *testing.T) {
	srv, _ := newTestServer(t)
	id := createMarket(t, srv)

	resp, err := http.Get(srv.URL + "/market/" + id)
	if err != nil {
		t.Fatalf("GET market: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET market: status %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/market/nope")
	if err != nil {
		t.Fatalf("GET missing market: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing market: status %d, want 404", resp.StatusCode)
	}
}

func TestQuoteAndBuy(t *testing.T) {
	srv, _ := newTestServer(t)
	id := createMarket(t, srv)

	resp, err := http.Get(fmt.Sprintf("%s/market/%s/quote?side=YES&amount=100000000", srv.URL, id))
	if err != nil {
		t.Fatalf("GET quote: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("quote: status %d", resp.StatusCode)
	}

	buyResp := postJSON(t, srv.URL+"/market/"+id+"/buy", service.BuyRequest{
		Buyer: "bob", Side: "YES", Amount: 100_000_000,
	})
	if buyResp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(buyResp.Body)
		t.Fatalf("buy: status %d: %s", buyResp.StatusCode, body)
	}
	var rcpt struct {
		TokensOut string `json:"tokens_out"`
		Chunks    int    `json:"chunks"`
	}
	if err := json.NewDecoder(buyResp.Body).Decode(&rcpt); err != nil {
		t.Fatalf("decode receipt: %v", err)
	}
	if rcpt.Chunks != 1 {
		t.Errorf("chunks = %d, want 1", rcpt.Chunks)
	}
}

func TestBuyValidationErrors(t *testing.T) {
	srv, _ := newTestServer(t)
	id := createMarket(t, srv)

	resp := postJSON(t, srv.URL+"/market/"+id+"/buy", service.BuyRequest{
		Buyer: "bob", Side: "MAYBE", Amount: 100,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad side: status %d, want 400", resp.StatusCode)
	}

	resp = postJSON(t, srv.URL+"/market/"+id+"/buy", service.BuyRequest{
		Buyer: "bob", Side: "YES",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("zero amount: status %d, want 400", resp.StatusCode)
	}
}

func TestResolveConflicts(t *testing.T) {
	srv, _ := newTestServer(t)
	id := createMarket(t, srv)

	// Not yet expired.
	resp := postJSON(t, srv.URL+"/market/"+id+"/resolve", map[string]any{"yes_wins": true})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("early resolve: status %d, want 409", resp.StatusCode)
	}

	// Redeem before resolution.
	resp = postJSON(t, srv.URL+"/market/"+id+"/redeem", map[string]any{"account": "bob", "side": "YES"})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("early redeem: status %d, want 409", resp.StatusCode)
	}
}

func TestMarketChart(t *testing.T) {
	srv, _ := newTestServer(t)
	id := createMarket(t, srv)

	postJSON(t, srv.URL+"/market/"+id+"/buy", service.BuyRequest{
		Buyer: "bob", Side: "YES", Amount: 50_000_000,
	})

	resp, err := http.Get(srv.URL + "/market/" + id + "/chart")
	if err != nil {
		t.Fatalf("GET chart: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("chart: status %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "YES Price") {
		t.Errorf("chart output missing title:\n%s", body)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health: status %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("metrics: status %d", resp.StatusCode)
	}
}
