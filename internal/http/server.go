package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"circolo/internal/core"
	"circolo/internal/events"
	"circolo/internal/export/sheets"
	"circolo/internal/ledger"
	applog "circolo/internal/log"
	"circolo/internal/middleware/ratelimit"
	"circolo/internal/middleware/security"
	"circolo/internal/middleware/trace"
	"circolo/internal/sequence"
	"circolo/internal/services"
)

// LedgerAPI is what the prima nota and statistics endpoints need.
type LedgerAPI interface {
	Report(ctx context.Context, f ledger.Filter, period core.DateRange) (ledger.Report, error)
	Print(ctx context.Context, f ledger.Filter, period core.DateRange) (ledger.PrintLayout, error)
	Stats(ctx context.Context, typ services.StatsType, fy int) (services.StatsResult, error)
}

// NumberingAPI is what the tessere and receipt endpoints need.
type NumberingAPI interface {
	Allocate(ctx context.Context, subscriptionID int64) (core.MembershipNumber, error)
	Reassign(ctx context.Context, subscriptionID int64, number string, allowDuplicate bool) (core.MembershipNumber, error)
	Clear(ctx context.Context, subscriptionID int64) error
	InitializeSeason(ctx context.Context, seasonID int64) ([]core.MembershipNumber, error)
	Lookup(ctx context.Context, number string) ([]core.Subscription, error)
	Audit(ctx context.Context, seasonID int64) (sequence.AuditReport, error)
	RequestAudit(ctx context.Context, seasonID int64) (*events.AuditRequest, error)
	ReceiptNumber(ctx context.Context, receiptID int64) (services.ReceiptNumber, error)
	AnnulReceipt(ctx context.Context, receiptID int64) error
}

// SheetsExporter appends a report to a spreadsheet.
type SheetsExporter interface {
	AppendReport(ctx context.Context, r ledger.Report) (sheets.Result, error)
}

// Pinger reports whether the store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators of the server. Sheets may be nil, in which case
// the spreadsheet export answers 503.
type Deps struct {
	Ledger             LedgerAPI
	Numbering          NumberingAPI
	Sheets             SheetsExporter
	Store              Pinger
	Logger             *applog.Logger
	RateLimitPerMinute int
}

type Server struct {
	http.Server
	ledger    LedgerAPI
	numbering NumberingAPI
	sheets    SheetsExporter
	store     Pinger

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware

	started time.Time
	now     func() time.Time
}

// NewServer wires routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	detector := security.NewDetector()

	s := &Server{
		ledger:           deps.Ledger,
		numbering:        deps.Numbering,
		sheets:           deps.Sheets,
		store:            deps.Store,
		rateLimiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: deps.RateLimitPerMinute}),
		securityDetector: detector,
		traceMiddleware:  trace.NewMiddleware(detector.ExtractClientIP),
		started:          time.Now(),
		now:              time.Now,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /api/primanota", s.handlePrimaNota)
	mux.HandleFunc("GET /api/primanota/print", s.handlePrimaNotaPrint)
	mux.HandleFunc("GET /api/primanota/export.xlsx", s.handleExportXLSX)
	mux.HandleFunc("POST /api/primanota/export/sheets", s.handleExportSheets)
	mux.HandleFunc("GET /api/stats", s.handleStats)

	mux.HandleFunc("POST /api/tessere/allocate", s.handleAllocate)
	mux.HandleFunc("POST /api/tessere/reassign", s.handleReassign)
	mux.HandleFunc("POST /api/tessere/clear", s.handleClear)
	mux.HandleFunc("POST /api/tessere/initialize", s.handleInitialize)
	mux.HandleFunc("GET /api/tessere/audit", s.handleAudit)
	mux.HandleFunc("POST /api/tessere/audit", s.handleRequestAudit)
	mux.HandleFunc("GET /api/tessere/by-number/{number}", s.handleLookup)
	mux.HandleFunc("GET /api/receipts/{id}/rank", s.handleReceiptRank)
	mux.HandleFunc("DELETE /api/receipts/{id}", s.handleAnnulReceipt)

	var h http.Handler = mux
	h = s.rateLimiter.Middleware(detector.ExtractClientIP, s.onRateLimit)(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = detector.Middleware(h)
	h = s.traceMiddleware.Middleware(h)
	h = applog.ComponentMiddleware(applog.ComponentHTTP)(h)
	h = applog.Middleware(logger)(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WithComponent(applog.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.securityDetector.ExtractClientIP(r),
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)
	writeJSON(w, http.StatusTooManyRequests, errorBody("rate_limited", "rate limit exceeded, retry later"))
}

// Shutdown stops background goroutines and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.rateLimiter.Stop()
	if err := s.Server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
