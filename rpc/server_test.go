package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

func postJSON(t *testing.T, url, body string, header http.Header) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestServer_HTTP(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	srv, err := NewServer(env.h)
	if err != nil {
		t.Fatal(err)
	}
	defer srv.Stop()
	ts := httptest.NewServer(srv.HTTPHandler(HTTPConfig{CORSOrigins: []string{"https://app.example"}}))
	defer ts.Close()

	resp := postJSON(t, ts.URL, `{"jsonrpc":"2.0","id":1,"method":"eth_blockNumber","params":[]}`,
		http.Header{"Origin": {"https://app.example"}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "https://app.example" {
		t.Errorf("Allow-Origin = %q", got)
	}
	var out struct {
		Result hexutil.Uint64 `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Result != 2 {
		t.Fatalf("eth_blockNumber = %d, want 2", out.Result)
	}

	resp = postJSON(t, ts.URL, `{"jsonrpc":"2.0","id":2,"method":"eth_chainId","params":[]}`,
		http.Header{"Origin": {"https://evil.example"}})
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("foreign origin allowed: %q", got)
	}
}

func TestServer_RateLimit(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	srv, err := NewServer(env.h)
	if err != nil {
		t.Fatal(err)
	}
	defer srv.Stop()
	ts := httptest.NewServer(srv.HTTPHandler(HTTPConfig{RateLimit: 0.001, RateBurst: 2}))
	defer ts.Close()

	body := `{"jsonrpc":"2.0","id":1,"method":"eth_chainId","params":[]}`
	for i := range 2 {
		if resp := postJSON(t, ts.URL, body, nil); resp.StatusCode != http.StatusOK {
			t.Fatalf("request %d: status = %d", i, resp.StatusCode)
		}
	}
	if resp := postJSON(t, ts.URL, body, nil); resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("third request: status = %d, want 429", resp.StatusCode)
	}
	// Another client has its own bucket.
	if resp := postJSON(t, ts.URL, body, http.Header{"X-Forwarded-For": {"10.0.0.9"}}); resp.StatusCode != http.StatusOK {
		t.Fatalf("other client: status = %d", resp.StatusCode)
	}
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	called := false
	h := CORSMiddleware([]string{"*"})(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://any.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent || called {
		t.Fatalf("preflight: code %d, handler called %v", rec.Code, called)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "https://any.example" {
		t.Fatalf("Allow-Origin = %q", rec.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		header, value, remote, want string
	}{
		{"X-Forwarded-For", "1.2.3.4, 10.0.0.1", "5.5.5.5:80", "1.2.3.4"},
		{"X-Real-IP", "9.9.9.9", "5.5.5.5:80", "9.9.9.9"},
		{"", "", "5.5.5.5:80", "5.5.5.5"},
		{"", "", "[::1]:8545", "::1"},
		{"", "", "pipe", "pipe"},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodPost, "/", nil)
		r.RemoteAddr = tt.remote
		if tt.header != "" {
			r.Header.Set(tt.header, tt.value)
		}
		if got := clientIP(r); got != tt.want {
			t.Errorf("clientIP(%s=%q, %q) = %q, want %q", tt.header, tt.value, tt.remote, got, tt.want)
		}
	}
}

func TestServer_Subscription(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	srv, err := NewServer(env.h)
	if err != nil {
		t.Fatal(err)
	}
	defer srv.Stop()
	client := srv.DialInProc()
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	heads := make(chan *types.Header, 1)
	sub, err := client.EthSubscribe(ctx, heads, "newHeads")
	if err != nil {
		t.Fatalf("EthSubscribe: %v", err)
	}
	defer sub.Unsubscribe()

	b := env.extend(t, nil)
	select {
	case h := <-heads:
		if h.Hash() != b.Hash() {
			t.Fatalf("head %x, want %x", h.Hash(), b.Hash())
		}
	case err := <-sub.Err():
		t.Fatalf("subscription failed: %v", err)
	case <-ctx.Done():
		t.Fatal("no head notification")
	}
}
