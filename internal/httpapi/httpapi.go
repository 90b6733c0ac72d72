package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/edigar/sales-control/internal/commission"
	"github.com/edigar/sales-control/internal/domain"
	"github.com/edigar/sales-control/internal/jobs"
	"github.com/edigar/sales-control/internal/service"
	"github.com/edigar/sales-control/internal/store"
)

type SellerService interface {
	CreateSeller(ctx context.Context, input domain.SellerInput) (domain.Seller, error)
	GetAllSellers(ctx context.Context, pageSize int) (domain.Page[domain.Seller], error)
}

type UserService interface {
	CreateUser(ctx context.Context, input domain.UserInput) (domain.User, error)
	GetAllUsers(ctx context.Context) ([]domain.User, error)
}

type ReportDispatcher interface {
	Dispatch(ctx context.Context, name, date string, sync bool) (string, error)
}

type Deps struct {
	Sales         service.SaleService
	Sellers       SellerService
	Users         UserService
	Reports       ReportDispatcher
	Auth          *AuthManager
	AllowedOrigin string
	Log           logrus.FieldLogger
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
}

type API struct {
	sales         service.SaleService
	sellers       SellerService
	users         UserService
	reports       ReportDispatcher
	auth          *AuthManager
	allowedOrigin string
	log           logrus.FieldLogger
	metrics       http.Handler
	validate      *validator.Validate
	loginLimiter  *attemptLimiter
}

func New(deps Deps) *API {
	log := deps.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &API{
		sales:         deps.Sales,
		sellers:       deps.Sellers,
		users:         deps.Users,
		reports:       deps.Reports,
		auth:          deps.Auth,
		allowedOrigin: deps.AllowedOrigin,
		log:           log,
		metrics:       deps.Metrics,
		validate:      newValidator(),
		loginLimiter:  newAttemptLimiter(5, time.Minute),
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.entries[key][:0]
	for _, ts := range l.entries[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	l.entries[key] = append(kept, now)
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", a.handleHealth)
	if a.metrics != nil {
		mux.Handle("GET /metrics", a.metrics)
	}

	mux.HandleFunc("POST /api/v1/auth/login", a.handleLogin)
	mux.HandleFunc("GET /api/v1/auth/me", a.requireAuth(a.handleMe))
	mux.HandleFunc("POST /api/v1/auth/refresh", a.requireAuth(a.handleRefresh))

	mux.HandleFunc("POST /api/v1/users", a.handleCreateUser)
	mux.HandleFunc("GET /api/v1/users", a.requireAuth(a.handleListUsers))

	mux.HandleFunc("GET /api/v1/sellers", a.requireAuth(a.handleListSellers))
	mux.HandleFunc("POST /api/v1/sellers", a.requireAuth(a.handleCreateSeller))
	mux.HandleFunc("GET /api/v1/sellers/{id}/sales", a.requireAuth(a.handleSalesBySeller))

	mux.HandleFunc("GET /api/v1/sales", a.requireAuth(a.handleListSales))
	mux.HandleFunc("POST /api/v1/sales", a.requireAuth(a.handleCreateSale))

	mux.HandleFunc("POST /api/v1/reports/daily", a.requireAuth(a.handleTriggerDailyReports))

	return a.withMiddleware(mux)
}

type actorContextKey struct{}

func withActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func actorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

func (a *API) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			a.writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			a.writeError(w, http.StatusUnauthorized, err)
			return
		}

		next(w, r.WithContext(withActor(r.Context(), actor)))
	}
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if r.Method == http.MethodPost {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		startedAt := time.Now()
		next.ServeHTTP(w, r)
		a.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(startedAt).String(),
		}).Debug("request served")
	})
}

func (a *API) decodeAndValidate(r *http.Request, dest any) (int, error) {
	if err := decodeJSON(r, dest); err != nil {
		return http.StatusBadRequest, err
	}
	if err := a.validate.Struct(dest); err != nil {
		return http.StatusUnprocessableEntity, validationError(err)
	}
	return 0, nil
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

// validationError flattens validator output into "field: rule" pairs.
func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Field(), rule))
	}
	return fmt.Errorf("validation failed: %s", strings.Join(parts, ", "))
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, commission.ErrInvalidAmount):
		return http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, jobs.ErrAlreadyRunning):
		return http.StatusConflict
	case errors.Is(err, jobs.ErrQueueUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func (a *API) writeError(w http.ResponseWriter, status int, err error) {
	// 5xx details stay in the log.
	msg := err.Error()
	if status >= 500 {
		a.log.WithError(err).WithField("status", status).Error("internal error")
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
