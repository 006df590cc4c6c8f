package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/khanhnv2901/seca-markup/internal/analyzer"
	"github.com/khanhnv2901/seca-markup/internal/compliance"
	"github.com/khanhnv2901/seca-markup/internal/history"
	sharedErrors "github.com/khanhnv2901/seca-markup/internal/shared/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

type fakeRecorder struct {
	mu      sync.Mutex
	entries []history.Entry
	err     error
}

func (f *fakeRecorder) Record(_ context.Context, e history.Entry) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.entries = append(f.entries, e)
	return int64(len(f.entries)), nil
}

type fakeHealth struct {
	checkErr error
	readyErr error
}

func (f fakeHealth) Check(context.Context) error { return f.checkErr }
func (f fakeHealth) Ready(context.Context) error { return f.readyErr }

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = zaptest.NewLogger(t)
	}
	return NewServer(cfg)
}

func do(s *Server, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, req)
	return rr
}

func TestWriteJSON(t *testing.T) {
	rr := httptest.NewRecorder()
	writeJSON(rr, http.StatusCreated, map[string]string{"status": "ok"})

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rr.Code)
	}
	if got := rr.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("expected application/json content-type, got %s", got)
	}
	if !strings.Contains(rr.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected body: %s", rr.Body.String())
	}
}

func TestWriteError(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	s := &Server{cfg: Config{Logger: zap.New(core)}}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/scan", nil)

	rr := httptest.NewRecorder()
	s.writeError(rr, req, http.StatusInternalServerError, errors.New("disk on fire"))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "disk on fire") || !strings.Contains(rr.Body.String(), "internal server error") {
		t.Fatalf("expected sanitized message, got %s", rr.Body.String())
	}
	if logs.FilterMessage("internal_server_error").Len() != 1 {
		t.Errorf("expected the 5xx cause to be logged")
	}

	rr = httptest.NewRecorder()
	s.writeError(rr, req, http.StatusBadRequest, errors.New("bad input"))
	if rr.Code != http.StatusBadRequest || !strings.Contains(rr.Body.String(), "bad input") {
		t.Fatalf("expected original client error, got %d %s", rr.Code, rr.Body.String())
	}
}

func TestScan_JSON(t *testing.T) {
	rec := &fakeRecorder{}
	s := newTestServer(t, Config{History: rec})

	body, _ := json.Marshal(ScanRequest{Markup: analyzer.DemoMarkup, Source: "demo.html"})
	rr := do(s, http.MethodPost, "/api/v1/scan", string(body), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp ScanResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Report == nil || resp.Report.Score != 30 || resp.Report.RiskLevel != analyzer.RiskLevelLow {
		t.Fatalf("unexpected report %+v", resp.Report)
	}
	if resp.Source != "demo.html" {
		t.Errorf("expected source echoed, got %q", resp.Source)
	}
	if score, err := analyzer.ParseExportScore(resp.Export); err != nil || score != 30 {
		t.Errorf("export score = %d, %v", score, err)
	}

	if len(rec.entries) != 1 {
		t.Fatalf("expected one history entry, got %d", len(rec.entries))
	}
	if rec.entries[0].Source != "demo.html" || rec.entries[0].Score != 30 {
		t.Errorf("unexpected history entry %+v", rec.entries[0])
	}
}

func TestScan_UnversionedAlias(t *testing.T) {
	s := newTestServer(t, Config{})
	rr := do(s, http.MethodPost, "/api/scan", `{"markup":""}`, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp ScanResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Report.Score != 85 {
		t.Errorf("expected empty markup score 85, got %d", resp.Report.Score)
	}
}

func TestScan_InvalidBody(t *testing.T) {
	s := newTestServer(t, Config{})
	rr := do(s, http.MethodPost, "/api/v1/scan", `{"markup":`, nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestScan_TooLarge(t *testing.T) {
	s := newTestServer(t, Config{MaxBodyBytes: 16})

	body, _ := json.Marshal(ScanRequest{Markup: strings.Repeat("a", 17)})
	rr := do(s, http.MethodPost, "/api/v1/scan", string(body), nil)
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("json: expected 413, got %d", rr.Code)
	}

	rr = do(s, http.MethodPost, "/api/v1/scan/text", strings.Repeat("a", 17), nil)
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("text: expected 413, got %d", rr.Code)
	}
}

func TestScanText(t *testing.T) {
	rec := &fakeRecorder{}
	s := newTestServer(t, Config{History: rec})

	rr := do(s, http.MethodPost, "/api/v1/scan/text?source=page.html", `<p onclick="go()">x</p>`, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("expected text/plain, got %s", ct)
	}
	want := analyzer.ExportText(analyzer.Analyze(`<p onclick="go()">x</p>`))
	if rr.Body.String() != want {
		t.Errorf("export mismatch:\n%s\nwant:\n%s", rr.Body.String(), want)
	}
	if len(rec.entries) != 1 || rec.entries[0].Source != "page.html" {
		t.Errorf("unexpected history entries %+v", rec.entries)
	}
}

func TestScan_HistoryFailureDoesNotFailRequest(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	s := NewServer(Config{
		Logger:  zap.New(core),
		History: &fakeRecorder{err: errors.New("database locked")},
	})

	rr := do(s, http.MethodPost, "/api/v1/scan/text", "<p>x</p>", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	entries := logs.FilterMessage("history_record_failed").All()
	if len(entries) != 1 {
		t.Fatalf("expected history failure to be logged once, got %d", len(entries))
	}
}

func TestScan_HistoryDefaultSource(t *testing.T) {
	rec := &fakeRecorder{}
	s := newTestServer(t, Config{History: rec})
	do(s, http.MethodPost, "/api/v1/scan", `{"markup":"<p>x</p>"}`, nil)
	if len(rec.entries) != 1 || rec.entries[0].Source != "api" {
		t.Errorf("expected default source api, got %+v", rec.entries)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s := newTestServer(t, Config{})
	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/scan"},
		{http.MethodGet, "/api/v1/scan/text"},
		{http.MethodPost, "/api/v1/rules"},
		{http.MethodDelete, "/api/v1/health"},
		{http.MethodPut, "/api/v1/ready"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rr := do(s, tt.method, tt.path, "", nil)
			if rr.Code != http.StatusMethodNotAllowed {
				t.Fatalf("expected 405, got %d", rr.Code)
			}
		})
	}
}

func TestRules(t *testing.T) {
	s := newTestServer(t, Config{})

	rr := do(s, http.MethodGet, "/api/v1/rules", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var all []RuleInfo
	if err := json.Unmarshal(rr.Body.Bytes(), &all); err != nil {
		t.Fatal(err)
	}
	if len(all) != len(analyzer.Rules()) {
		t.Fatalf("expected %d rules, got %d", len(analyzer.Rules()), len(all))
	}
	for i, rule := range analyzer.Rules() {
		if all[i].ID != rule.ID {
			t.Errorf("rule %d: expected %s, got %s", i, rule.ID, all[i].ID)
		}
	}

	rr = do(s, http.MethodGet, "/api/v1/rules?framework="+compliance.FrameworkOWASP, "", nil)
	var owasp []RuleInfo
	if err := json.Unmarshal(rr.Body.Bytes(), &owasp); err != nil {
		t.Fatal(err)
	}
	if len(owasp) == 0 || len(owasp) >= len(all) {
		t.Fatalf("expected a strict subset of rules, got %d of %d", len(owasp), len(all))
	}
	for _, info := range owasp {
		if len(info.References[compliance.FrameworkOWASP]) == 0 {
			t.Errorf("rule %s has no OWASP reference", info.ID)
		}
	}

	rr = do(s, http.MethodGet, "/api/v1/rules?framework=pci", "", nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("unknown framework: expected 400, got %d", rr.Code)
	}
}

func TestHealthAndReady(t *testing.T) {
	s := newTestServer(t, Config{})
	for _, path := range []string{"/api/v1/health", "/api/v1/ready", "/api/health"} {
		if rr := do(s, http.MethodGet, path, "", nil); rr.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, rr.Code)
		}
	}

	failing := newTestServer(t, Config{Health: fakeHealth{
		checkErr: errors.New("sqlite gone"),
		readyErr: errors.New("warming up"),
	}})
	rr := do(failing, http.MethodGet, "/api/v1/health", "", nil)
	if rr.Code != http.StatusInternalServerError || strings.Contains(rr.Body.String(), "sqlite") {
		t.Errorf("health: expected sanitized 500, got %d %s", rr.Code, rr.Body.String())
	}
	rr = do(failing, http.MethodGet, "/api/v1/ready", "", nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("ready: expected 503, got %d", rr.Code)
	}
}

func TestAuth(t *testing.T) {
	s := newTestServer(t, Config{AuthToken: "s3cret"})

	if rr := do(s, http.MethodGet, "/api/v1/rules", "", nil); rr.Code != http.StatusUnauthorized {
		t.Errorf("missing token: expected 401, got %d", rr.Code)
	}
	if rr := do(s, http.MethodGet, "/api/v1/rules", "", map[string]string{"X-Auth-Token": "wrong"}); rr.Code != http.StatusUnauthorized {
		t.Errorf("wrong token: expected 401, got %d", rr.Code)
	}
	if rr := do(s, http.MethodGet, "/api/v1/rules", "", map[string]string{"X-Auth-Token": "s3cret"}); rr.Code != http.StatusOK {
		t.Errorf("valid token: expected 200, got %d", rr.Code)
	}
}

func TestCORS(t *testing.T) {
	open := newTestServer(t, Config{})
	rr := do(open, http.MethodOptions, "/api/v1/scan", "", map[string]string{"Origin": "https://a.example"})
	if rr.Code != http.StatusNoContent {
		t.Fatalf("preflight: expected 204, got %d", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("expected wildcard origin, got %q", got)
	}

	restricted := newTestServer(t, Config{CORSOrigins: []string{"https://a.example"}})
	rr = do(restricted, http.MethodOptions, "/api/v1/scan", "", map[string]string{"Origin": "https://a.example"})
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://a.example" {
		t.Errorf("expected allowed origin echoed, got %q", got)
	}
	rr = do(restricted, http.MethodOptions, "/api/v1/scan", "", map[string]string{"Origin": "https://evil.example"})
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("expected no CORS header for unknown origin, got %q", got)
	}
}

func mustTrusted(t *testing.T, entries ...string) []netip.Prefix {
	t.Helper()
	prefixes, err := ParseTrustedProxies(entries)
	if err != nil {
		t.Fatalf("ParseTrustedProxies: %v", err)
	}
	return prefixes
}

func TestRateLimit(t *testing.T) {
	// httptest requests come from 192.0.2.1.
	s := newTestServer(t, Config{RateLimit: 1, RateBurst: 2, TrustedProxies: mustTrusted(t, "192.0.2.0/24")})

	headers := map[string]string{"X-Forwarded-For": "203.0.113.7"}
	for i := 0; i < 2; i++ {
		if rr := do(s, http.MethodGet, "/api/v1/health", "", headers); rr.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rr.Code)
		}
	}
	if rr := do(s, http.MethodGet, "/api/v1/health", "", headers); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after burst, got %d", rr.Code)
	}

	other := map[string]string{"X-Forwarded-For": "198.51.100.1"}
	if rr := do(s, http.MethodGet, "/api/v1/health", "", other); rr.Code != http.StatusOK {
		t.Errorf("other client should have its own limiter, got %d", rr.Code)
	}
}

func TestRateLimit_IgnoresForwardedFromUntrustedPeer(t *testing.T) {
	s := newTestServer(t, Config{RateLimit: 1, RateBurst: 2})

	for i, ip := range []string{"203.0.113.1", "203.0.113.2", "203.0.113.3"} {
		rr := do(s, http.MethodGet, "/api/v1/health", "", map[string]string{"X-Forwarded-For": ip})
		want := http.StatusOK
		if i == 2 {
			want = http.StatusTooManyRequests
		}
		if rr.Code != want {
			t.Fatalf("request %d with X-Forwarded-For %s: expected %d, got %d", i, ip, want, rr.Code)
		}
	}
	if got := s.limiters.size(); got != 1 {
		t.Errorf("expected one limiter keyed by the socket address, got %d", got)
	}
}

func TestClientAddr(t *testing.T) {
	proxies := mustTrusted(t, "10.0.0.0/8", "2001:db8:ffff::1")
	tests := []struct {
		name       string
		remoteAddr string
		forwarded  []string
		trusted    []netip.Prefix
		want       string
	}{
		{"ipv4 with port", "192.0.2.1:1234", nil, proxies, "192.0.2.1"},
		{"ipv6 with port", "[2001:db8::1]:443", nil, proxies, "2001:db8::1"},
		{"bare ipv6", "2001:db8::1", nil, proxies, "2001:db8::1"},
		{"untrusted peer ignores header", "192.0.2.1:1234", []string{"203.0.113.9"}, proxies, "192.0.2.1"},
		{"no trusted proxies ignores header", "10.0.0.1:1", []string{"203.0.113.9"}, nil, "10.0.0.1"},
		{"forwarded single", "10.0.0.1:1", []string{"203.0.113.9"}, proxies, "203.0.113.9"},
		{"forwarded chain through proxies", "10.0.0.1:1", []string{"203.0.113.9, 10.0.0.2"}, proxies, "203.0.113.9"},
		{"spoofed leftmost hop", "10.0.0.1:1", []string{"1.2.3.4, 203.0.113.9"}, proxies, "203.0.113.9"},
		{"repeated headers", "10.0.0.1:1", []string{"1.2.3.4", "203.0.113.9"}, proxies, "203.0.113.9"},
		{"forwarded with port", "10.0.0.1:1", []string{"203.0.113.9:8080"}, proxies, "203.0.113.9"},
		{"all hops trusted", "10.0.0.1:1", []string{"10.1.1.1, 10.0.0.2"}, proxies, "10.1.1.1"},
		{"ipv6 proxy", "[2001:db8:ffff::1]:443", []string{"2001:db8::7"}, proxies, "2001:db8::7"},
		{"empty header", "10.0.0.1:1", []string{""}, proxies, "10.0.0.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for _, v := range tt.forwarded {
				req.Header.Add("X-Forwarded-For", v)
			}
			if got := clientAddr(req, tt.trusted); got != tt.want {
				t.Errorf("clientAddr() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseTrustedProxies(t *testing.T) {
	got, err := ParseTrustedProxies([]string{" 10.1.2.3/8 ", "192.0.2.5", "", "::ffff:198.51.100.1", "2001:db8::/32"})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"10.0.0.0/8", "192.0.2.5/32", "198.51.100.1/32", "2001:db8::/32"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i].String() != want[i] {
			t.Errorf("entry %d: expected %s, got %s", i, want[i], got[i])
		}
	}

	for _, bad := range []string{"not-an-ip", "10.0.0.0/99"} {
		if _, err := ParseTrustedProxies([]string{bad}); !errors.Is(err, sharedErrors.ErrInvalidInput) {
			t.Errorf("%q: expected ErrInvalidInput, got %v", bad, err)
		}
	}
}

func TestRateLimiterMap_SweepsIdleLimiters(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := newRateLimiterMap()
	m.now = func() time.Time { return now }
	m.lastSweep = now

	m.getLimiter("203.0.113.1", 1, 1)
	now = now.Add(3 * time.Minute)
	m.getLimiter("203.0.113.2", 1, 1)
	if got := m.size(); got != 2 {
		t.Fatalf("expected 2 limiters, got %d", got)
	}

	now = now.Add(limiterIdleTTL - time.Minute)
	m.getLimiter("203.0.113.2", 1, 1)
	if got := m.size(); got != 1 {
		t.Fatalf("expected idle limiter to be swept, got %d", got)
	}

	first := m.getLimiter("203.0.113.2", 1, 1)
	if first != m.getLimiter("203.0.113.2", 1, 1) {
		t.Errorf("active client must keep its limiter")
	}
}

func TestRequestLogging(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	s := NewServer(Config{Logger: zap.New(core)})

	rr := do(s, http.MethodGet, "/api/v1/health", "", map[string]string{"X-Request-ID": "req-1"})
	if rr.Header().Get("X-Request-ID") != "req-1" {
		t.Errorf("expected request ID echoed")
	}
	entries := logs.FilterMessage("http_request").All()
	if len(entries) != 1 {
		t.Fatalf("expected one access log entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["request_id"] != "req-1" || fields["status"] != int64(http.StatusOK) {
		t.Errorf("unexpected log fields %v", fields)
	}
}
