// Package http exposes the ledger as a JSON API: the transaction log,
// balances, accounts, transfers and categorization rules. Every request acts
// on behalf of one user, identified by the X-User-ID header.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stepanyanprod-creator/finance-bot/internal/cache"
	"github.com/stepanyanprod-creator/finance-bot/internal/log"
	"github.com/stepanyanprod-creator/finance-bot/internal/services"
	"github.com/stepanyanprod-creator/finance-bot/internal/wizard"
)

type Server struct {
	http.Server
	ledger      *services.Ledger
	wizard      *wizard.Wizard
	logger      *log.Logger
	rateLimiter *rateLimiter

	// Read-side caches, invalidated on any write for the user.
	overviewCache *cache.LRU[services.Overview]
	balancesCache *cache.LRU[map[string]decimal.Decimal]
	janitor       *cache.Janitor

	shutdownOnce sync.Once
}

// Options tunes the server. Zero values fall back to sane defaults.
type Options struct {
	RatePerMinute int
	RateBurst     int
	CacheSize     int
	CacheTTL      time.Duration
	WizardTTL     time.Duration
}

func (o *Options) fill() {
	if o.RatePerMinute <= 0 {
		o.RatePerMinute = 60
	}
	if o.CacheSize <= 0 {
		o.CacheSize = 256
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = 30 * time.Second
	}
	if o.WizardTTL <= 0 {
		o.WizardTTL = 10 * time.Minute
	}
}

// NewServer wires the routes and returns a ready-to-run server.
func NewServer(addr string, ledger *services.Ledger, logger *log.Logger, opts Options) *Server {
	opts.fill()
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		ledger:        ledger,
		wizard:        wizard.New(ledger, logger, opts.CacheSize, opts.WizardTTL),
		logger:        logger.WithComponent(log.ComponentHTTP),
		rateLimiter:   newRateLimiter(opts.RatePerMinute, opts.RateBurst),
		overviewCache: cache.NewLRU[services.Overview](opts.CacheSize, opts.CacheTTL),
		balancesCache: cache.NewLRU[map[string]decimal.Decimal](opts.CacheSize, opts.CacheTTL),
		janitor:       cache.NewJanitor(),
	}
	s.janitor.Register(s.overviewCache)
	s.janitor.Register(s.balancesCache)
	s.janitor.Start(10 * time.Minute)

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)
	mux.HandleFunc("/transactions", s.withMiddleware(s.handleTransactions))
	mux.HandleFunc("/transactions/last", s.withMiddleware(s.handleLastTransaction))
	mux.HandleFunc("/balances", s.withMiddleware(s.handleBalances))
	mux.HandleFunc("/balances/rebuild", s.withMiddleware(s.handleRebuildBalances))
	mux.HandleFunc("/overview", s.withMiddleware(s.handleOverview))
	mux.HandleFunc("/accounts", s.withMiddleware(s.handleAccounts))
	mux.HandleFunc("/accounts/amount", s.withMiddleware(s.handleAccountAmount))
	mux.HandleFunc("/accounts/currency", s.withMiddleware(s.handleAccountCurrency))
	mux.HandleFunc("/transfers", s.withMiddleware(s.handleTransfers))
	mux.HandleFunc("/rules", s.withMiddleware(s.handleRules))
	mux.HandleFunc("/rules/resolve", s.withMiddleware(s.handleResolveCategory))
	mux.HandleFunc("/wizard", s.withMiddleware(s.handleWizard))
	mux.HandleFunc("/wizard/input", s.withMiddleware(s.handleWizardInput))

	return s
}

// Shutdown stops the background goroutines and the HTTP listener.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.janitor.Stop()
		s.rateLimiter.shutdown()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// invalidateUser drops the read-side caches after a write for one user.
func (s *Server) invalidateUser(uid int64) {
	s.balancesCache.Delete(balancesCacheKey(uid))
	// Overview keys carry year/month; drop the current month, older months
	// age out via TTL.
	now := time.Now()
	s.overviewCache.Delete(overviewCacheKey(uid, now.Year(), now.Month()))
}

func balancesCacheKey(uid int64) string {
	return fmt.Sprintf("balances:%d", uid)
}

func overviewCacheKey(uid int64, year int, month time.Month) string {
	return fmt.Sprintf("overview:%d:%d-%02d", uid, year, int(month))
}

// withMiddleware adds request logging, rate limiting on writes and security
// headers.
func (s *Server) withMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := r.RemoteAddr
		requestID := generateRequestID()

		s.logger.Debug("request started",
			log.FieldRequestID, requestID,
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldClientIP, clientIP)

		if r.Method != http.MethodGet && !s.rateLimiter.allow(clientIP) {
			s.logger.Warn("rate limit exceeded",
				log.FieldClientIP, clientIP,
				log.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		s.logger.Info("request completed",
			log.FieldRequestID, requestID,
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldStatusCode, rw.statusCode,
			log.FieldDuration, time.Since(start).Milliseconds())
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
