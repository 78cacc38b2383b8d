// Package api exposes the lead service over HTTP (chi) and MCP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"golang.org/x/time/rate"

	"github.com/yangwenmai/leadsniper/internal/apperr"
	"github.com/yangwenmai/leadsniper/internal/events"
	"github.com/yangwenmai/leadsniper/internal/leads"
	"github.com/yangwenmai/leadsniper/internal/model"
)

// maxRequestBody is the maximum allowed request body size (1 MB).
const maxRequestBody int64 = 1 << 20

// LeadService is the lead surface the adapters call.
type LeadService interface {
	Threshold() float64
	Validate(raw model.RawLead) model.ValidationReport
	Submit(ctx context.Context, raw model.RawLead) (*leads.ProcessResult, error)
	SubmitBatch(ctx context.Context, batch []model.RawLead, processLimit int) (*leads.BatchResult, error)
	SubmitURL(ctx context.Context, url, source string) (*leads.ProcessResult, error)
	Get(ctx context.Context, id, token string) (*leads.LeadView, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, offset, limit int) (*leads.Page, error)
	ListProtected(ctx context.Context, offset, limit int) (*leads.Page, error)
	Unlock(ctx context.Context, id, method, paymentToken string) (*leads.UnlockResult, error)
	PaymentStatus(ctx context.Context, id, token string) (*leads.PaymentStatusView, error)
	Stats(ctx context.Context) (*leads.Stats, error)
}

var _ LeadService = (*leads.Service)(nil)

// Options configures the HTTP server.
type Options struct {
	CORSOrigin      string
	RateLimitPerMin int                      // 0 disables rate limiting
	Feed            *events.NotificationFeed // optional; enables GET /api/notifications
}

// Server holds the HTTP handlers and dependencies.
type Server struct {
	svc      LeadService
	feed     *events.NotificationFeed
	validate *validator.Validate
	limiter  *ipRateLimiter
	origin   string
	router   chi.Router
}

// New creates a new API server.
func New(svc LeadService, opts Options) *Server {
	if opts.CORSOrigin == "" {
		opts.CORSOrigin = "*"
	}
	srv := &Server{
		svc:      svc,
		feed:     opts.Feed,
		validate: newValidator(),
		origin:   opts.CORSOrigin,
	}
	if opts.RateLimitPerMin > 0 {
		srv.limiter = newIPRateLimiter(rate.Limit(float64(opts.RateLimitPerMin)/60), opts.RateLimitPerMin)
	}
	srv.routes()
	return srv
}

// Handler returns the root http.Handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(recoverer)
	r.Use(s.cors)
	r.Use(limitBody)
	r.Use(jsonContent)

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(s.rateLimit)
			r.Post("/process", s.handleProcess)
			r.Post("/process-batch", s.handleProcessBatch)
			r.Post("/process-url", s.handleProcessURL)
			r.Post("/unlock", s.handleUnlock)
		})
		r.Post("/validate", s.handleValidate)
		r.Get("/leads", s.handleListLeads)
		r.Get("/leads/{id}", s.handleGetLead)
		r.Delete("/leads/{id}", s.handleDeleteLead)
		r.Get("/leads/{id}/payment-status", s.handlePaymentStatus)
		r.Get("/protected-assets", s.handleProtectedAssets)
		r.Get("/stats", s.handleStats)
		r.Get("/notifications", s.handleNotifications)
	})
	s.router = r
}

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

// cors sets CORS headers for the configured origin.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Access-Token")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// limitBody restricts the request body to maxRequestBody bytes.
func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
		next.ServeHTTP(w, r)
	})
}

func jsonContent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// requestLogger logs one line per request with its status and latency.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", r.RemoteAddr,
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// recoverer turns a handler panic into a 500 response.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				slog.Error("handler panic", "path", r.URL.Path, "panic", fmt.Sprint(rec))
				writeError(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// ipRateLimiter keeps one token bucket per client IP.
type ipRateLimiter struct {
	limiters sync.Map
	rate     rate.Limit
	burst    int
}

func newIPRateLimiter(r rate.Limit, burst int) *ipRateLimiter {
	return &ipRateLimiter{rate: r, burst: burst}
}

func (l *ipRateLimiter) allow(ip string) bool {
	v, ok := l.limiters.Load(ip)
	if !ok {
		v, _ = l.limiters.LoadOrStore(ip, rate.NewLimiter(l.rate, l.burst))
	}
	return v.(*rate.Limiter).Allow()
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.allow(clientIP(r)) {
			slog.Warn("rate limit exceeded", "client_ip", clientIP(r), "path", r.URL.Path)
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// ---------------------------------------------------------------------------
// Response helpers
// ---------------------------------------------------------------------------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeAppError maps a service error to its HTTP status.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		slog.Error("request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	status := ae.HTTPStatus()
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "path", r.URL.Path, "error", err, "cause", errors.Unwrap(err))
	}
	writeJSON(w, status, map[string]string{"error": ae.Message, "kind": ae.Kind.String()})
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeBody decodes the JSON body into v and runs struct validation.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

// validationMessage renders validator errors as "field: rule" pairs.
func validationMessage(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err.Error()
	}
	parts := make([]string, 0, len(ve))
	for _, fe := range ve {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s: %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
		}
	}
	return "invalid request: " + strings.Join(parts, ", ")
}
