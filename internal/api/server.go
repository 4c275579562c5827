package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/callcenter-console/internal/models"
	"github.com/callcenter-console/internal/throttle"
)

// Store is the persistence the handlers need. *router.Router implements it.
type Store interface {
	Authenticate(ctx context.Context, username, password string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	CreateUser(ctx context.Context, req models.CreateUserRequest) (int64, error)
	UpdateUser(ctx context.Context, req models.UpdateUserRequest) error
	DeleteUser(ctx context.Context, id int64) error
	ListCalls(ctx context.Context, limit int) ([]models.Call, error)
	InitiateCall(ctx context.Context, callerNumber string) (*models.InitiateCallResult, error)
	EndCall(ctx context.Context, req models.EndCallRequest) error
	GetStatistics(ctx context.Context) (*models.Statistics, error)
}

type Server struct {
	store     Store
	lockout   throttle.Lockout
	limiter   *RateLimiter
	port      int
	callLimit int
	srv       *http.Server
}

type Option func(*Server)

// WithLockout enables the failed-login lockout on /api/auth.
func WithLockout(l throttle.Lockout) Option {
	return func(s *Server) { s.lockout = l }
}

// WithRateLimit limits every client IP to rps requests per second.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Server) {
		if rps > 0 {
			s.limiter = NewRateLimiter(rps, burst)
		}
	}
}

// WithCallLimit bounds the call history returned by GET /api/calls.
func WithCallLimit(n int) Option {
	return func(s *Server) { s.callLimit = n }
}

func NewServer(store Store, port int, opts ...Option) *Server {
	s := &Server{
		store: store,
		port:  port,
	}
	for _, o := range opts {
		o(s)
	}
	s.srv = &http.Server{
		Handler:      s.Handler(),
		Addr:         fmt.Sprintf(":%d", s.port),
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}
	return s
}

// Handler builds the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	// Middleware
	r.Use(loggingMiddleware)
	r.Use(corsMiddleware)
	if s.limiter != nil {
		r.Use(s.limiter.Middleware)
	}

	// API endpoints
	r.HandleFunc("/api/auth", s.handleAuth).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/users", s.handleListUsers).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/users", s.handleCreateUser).Methods("POST")
	r.HandleFunc("/api/users", s.handleUpdateUser).Methods("PUT")
	r.HandleFunc("/api/users", s.handleDeleteUser).Methods("DELETE")
	r.HandleFunc("/api/calls", s.handleListCalls).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/calls", s.handleCallAction).Methods("POST")
	r.HandleFunc("/api/stats", s.handleStats).Methods("GET")
	r.HandleFunc("/api/health", s.handleHealth).Methods("GET")

	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	return r
}

// Start serves until Shutdown, which may be called before Start.
func (s *Server) Start() error {
	log.Printf("[API] Server starting on port %d", s.port)
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		log.Printf("[API] %s %s from %s -> %d in %s (request_id=%s)",
			r.Method, r.URL.Path, r.RemoteAddr, rec.status, time.Since(start).Round(time.Microsecond), id)
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
