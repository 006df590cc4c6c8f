package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/khanhnv2901/seca-markup/internal/analyzer"
	"github.com/khanhnv2901/seca-markup/internal/api/middleware"
	"github.com/khanhnv2901/seca-markup/internal/compliance"
	"github.com/khanhnv2901/seca-markup/internal/history"
	consts "github.com/khanhnv2901/seca-markup/internal/shared/constants"
	sharedErrors "github.com/khanhnv2901/seca-markup/internal/shared/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// jsonEnvelopeOverhead is the room left for the JSON wrapper around the
// markup on the structured scan endpoint.
const jsonEnvelopeOverhead = 64 << 10

var errBodyTooLarge = errors.New("request body too large")

// ScanRequest is the body of POST /api/v1/scan.
type ScanRequest struct {
	Markup string `json:"markup"`
	Source string `json:"source,omitempty"`
}

// ScanResponse is the reply of POST /api/v1/scan.
type ScanResponse struct {
	Source string           `json:"source,omitempty"`
	Report *analyzer.Report `json:"report"`
	Export string           `json:"export"`
}

// RuleInfo is one entry of GET /api/v1/rules.
type RuleInfo struct {
	analyzer.Rule
	References map[string][]string `json:"references,omitempty"`
}

// Scanner is satisfied by *analyzer.Analyzer.
type Scanner interface {
	Analyze(text string) *analyzer.Report
	MaxInputBytes() int
}

// HistoryRecorder stores scan summaries. *history.Store satisfies it.
type HistoryRecorder interface {
	Record(ctx context.Context, e history.Entry) (int64, error)
}

type HealthService interface {
	Check(ctx context.Context) error
	Ready(ctx context.Context) error
}

type Config struct {
	Analyzer     Scanner
	History      HistoryRecorder
	Health       HealthService
	AuthToken    string
	Logger       *zap.Logger
	CORSOrigins  []string // Allowed CORS origins (empty = allow all)
	RateLimit    int      // Requests per second per IP (0 = disabled)
	RateBurst    int      // Burst size for rate limiter
	MaxBodyBytes int      // Markup size limit; defaults to the analyzer cap

	// TrustedProxies are the peers whose X-Forwarded-For header is believed.
	// Empty means the header is ignored and the socket address is the client.
	TrustedProxies []netip.Prefix
}

// ParseTrustedProxies parses IP addresses and CIDR ranges.
func ParseTrustedProxies(entries []string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if strings.Contains(e, "/") {
			p, err := netip.ParsePrefix(e)
			if err != nil {
				return nil, fmt.Errorf("%w: trusted proxy %q: %v", sharedErrors.ErrInvalidInput, e, err)
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(e)
		if err != nil {
			return nil, fmt.Errorf("%w: trusted proxy %q: %v", sharedErrors.ErrInvalidInput, e, err)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

type Server struct {
	cfg      Config
	mux      *http.ServeMux
	limiters *rateLimiterMap
}

func NewServer(cfg Config) *Server {
	if cfg.Analyzer == nil {
		cfg.Analyzer = analyzer.New(analyzer.WithLogger(cfg.Logger))
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = cfg.Analyzer.MaxInputBytes()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = consts.DefaultMaxInputBytes
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = cfg.RateLimit
	}
	srv := &Server{
		cfg:      cfg,
		mux:      http.NewServeMux(),
		limiters: newRateLimiterMap(),
	}
	srv.routes()
	return srv
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Apply middleware chain: RequestID -> Logging -> RateLimit -> CORS -> Auth -> Handler
	handler := middleware.RequestID(s.withLogging(s.withRateLimit(s.withCORS(s.mux))))
	handler.ServeHTTP(w, r)
}

func (s *Server) routes() {
	// /api/v1 is primary; /api is kept as an unversioned alias.
	for _, prefix := range []string{"/api/v1", "/api"} {
		s.mux.Handle(prefix+"/health", s.withAuth(http.HandlerFunc(s.handleHealth)))
		s.mux.Handle(prefix+"/ready", s.withAuth(http.HandlerFunc(s.handleReady)))
		s.mux.Handle(prefix+"/rules", s.withAuth(http.HandlerFunc(s.handleRules)))
		s.mux.Handle(prefix+"/scan", s.withAuth(http.HandlerFunc(s.handleScan)))
		s.mux.Handle(prefix+"/scan/text", s.withAuth(http.HandlerFunc(s.handleScanText)))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, r)
		return
	}
	if s.cfg.Health != nil {
		if err := s.cfg.Health.Check(r.Context()); err != nil {
			s.writeError(w, r, http.StatusInternalServerError, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, r)
		return
	}
	if s.cfg.Health != nil {
		if err := s.cfg.Health.Ready(r.Context()); err != nil {
			s.writeError(w, r, http.StatusServiceUnavailable, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, r)
		return
	}
	framework := r.URL.Query().Get("framework")
	if framework != "" && !compliance.IsSupported(framework) {
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("unknown framework %q", framework))
		return
	}

	mappings := compliance.GetComplianceMappings()
	rules := analyzer.Rules()
	out := make([]RuleInfo, 0, len(rules))
	for _, rule := range rules {
		refs := mappings[rule.ID].Frameworks
		if framework != "" {
			if _, ok := refs[framework]; !ok {
				continue
			}
		}
		out = append(out, RuleInfo{Rule: rule, References: refs})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, r)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, int64(s.cfg.MaxBodyBytes+jsonEnvelopeOverhead))
	var req ScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.writeError(w, r, http.StatusRequestEntityTooLarge, errBodyTooLarge)
			return
		}
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if len(req.Markup) > s.cfg.MaxBodyBytes {
		s.writeError(w, r, http.StatusRequestEntityTooLarge, errBodyTooLarge)
		return
	}

	report := s.scan(r, req.Source, req.Markup)
	writeJSON(w, http.StatusOK, ScanResponse{
		Source: req.Source,
		Report: report,
		Export: analyzer.ExportText(report),
	})
}

func (s *Server) handleScanText(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, r)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, int64(s.cfg.MaxBodyBytes))
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.writeError(w, r, http.StatusRequestEntityTooLarge, errBodyTooLarge)
			return
		}
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("read body: %w", err))
		return
	}

	report := s.scan(r, r.URL.Query().Get("source"), string(body))
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, analyzer.ExportText(report)); err != nil {
		s.requestLogger(r).Error("failed to write response", zap.Error(err))
	}
}

// scan runs one analysis and records it when a history store is configured.
// A history failure is logged and never fails the request.
func (s *Server) scan(r *http.Request, source, markup string) *analyzer.Report {
	report := s.cfg.Analyzer.Analyze(markup)
	if s.cfg.History != nil {
		if source == "" {
			source = "api"
		}
		entry := history.EntryFromReport(source, markup, report, time.Now())
		if _, err := s.cfg.History.Record(r.Context(), entry); err != nil {
			s.requestLogger(r).Warn("history_record_failed", zap.Error(err))
		}
	}
	return report
}

func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip rate limiting if disabled
		if s.cfg.RateLimit <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		clientIP := clientAddr(r, s.cfg.TrustedProxies)
		limiter := s.limiters.getLimiter(clientIP, s.cfg.RateLimit, s.cfg.RateBurst)
		if !limiter.Allow() {
			s.requestLogger(r).Warn("rate_limit_exceeded", zap.String("client_ip", clientIP))
			s.writeError(w, r, http.StatusTooManyRequests, errors.New("rate limit exceeded"))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientAddr returns the client IP. X-Forwarded-For is only read when the
// peer is a trusted proxy; the chain is walked from the right and the first
// hop that is not a trusted proxy is the client.
func clientAddr(r *http.Request, trusted []netip.Prefix) string {
	clientIP := hostOnly(r.RemoteAddr)
	if !isTrustedProxy(clientIP, trusted) {
		return clientIP
	}
	hops := strings.Split(strings.Join(r.Header.Values("X-Forwarded-For"), ","), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := hostOnly(strings.TrimSpace(hops[i]))
		if hop == "" {
			continue
		}
		clientIP = hop
		if !isTrustedProxy(hop, trusted) {
			break
		}
	}
	return clientIP
}

func hostOnly(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

func isTrustedProxy(ip string, trusted []netip.Prefix) bool {
	if len(trusted) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		allowOrigin := "*"
		if len(s.cfg.CORSOrigins) > 0 {
			allowOrigin = ""
			for _, allowedOrigin := range s.cfg.CORSOrigins {
				if allowedOrigin == origin {
					allowOrigin = origin
					break
				}
			}
		}

		if allowOrigin != "" {
			w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Auth-Token, X-Request-ID")
			w.Header().Set("Access-Control-Max-Age", "3600")
		}

		// Handle preflight requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(lrw, r)

		if s.cfg.Logger != nil {
			s.cfg.Logger.Info("http_request",
				zap.String("request_id", middleware.GetRequestID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr),
				zap.Int("status", lrw.statusCode),
				zap.Duration("duration", time.Since(start)),
				zap.Int64("bytes", lrw.bytesWritten),
			)
		}
	})
}

func (s *Server) withAuth(next http.Handler) http.Handler {
	if s.cfg.AuthToken == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("X-Auth-Token")
		// Use constant-time comparison to prevent timing attacks
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.AuthToken)) != 1 {
			s.writeError(w, r, http.StatusUnauthorized, errors.New("unauthorized"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// loggingResponseWriter wraps http.ResponseWriter to capture status code and bytes written
type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	n, err := lrw.ResponseWriter.Write(b)
	lrw.bytesWritten += int64(n)
	return n, err
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	msg := err.Error()

	// For 5xx errors, return generic message and log details server-side
	if status >= 500 {
		s.requestLogger(r).Error("internal_server_error",
			zap.Error(err),
			zap.Int("status", status),
		)
		msg = "internal server error"
	}

	writeJSON(w, status, map[string]string{"error": msg})
}

// requestLogger creates a logger with request context (request ID, method, path)
func (s *Server) requestLogger(r *http.Request) *zap.Logger {
	if s.cfg.Logger == nil {
		return zap.NewNop()
	}
	return s.cfg.Logger.With(
		zap.String("request_id", middleware.GetRequestID(r.Context())),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
	)
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	s.writeError(w, r, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

const (
	limiterSweepInterval = time.Minute
	limiterIdleTTL       = 5 * time.Minute
)

// rateLimiterMap manages per-IP rate limiters. Idle limiters are swept on
// access, so the map owns no goroutine.
type rateLimiterMap struct {
	mu        sync.Mutex
	limiters  map[string]*ipLimiter
	lastSweep time.Time
	now       func() time.Time
}

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newRateLimiterMap() *rateLimiterMap {
	return &rateLimiterMap{
		limiters:  make(map[string]*ipLimiter),
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

func (m *rateLimiterMap) getLimiter(ip string, rps, burst int) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if now.Sub(m.lastSweep) >= limiterSweepInterval {
		m.sweep(now)
	}

	limiter, exists := m.limiters[ip]
	if !exists {
		limiter = &ipLimiter{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
		m.limiters[ip] = limiter
	}
	limiter.lastSeen = now
	return limiter.limiter
}

// sweep removes limiters idle for longer than limiterIdleTTL. m.mu must be held.
func (m *rateLimiterMap) sweep(now time.Time) {
	for ip, limiter := range m.limiters {
		if now.Sub(limiter.lastSeen) > limiterIdleTTL {
			delete(m.limiters, ip)
		}
	}
	m.lastSweep = now
}

func (m *rateLimiterMap) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.limiters)
}
