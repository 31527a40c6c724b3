package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/jonathan/resume-screener/internal/archive"
	"github.com/jonathan/resume-screener/internal/config"
	"github.com/jonathan/resume-screener/internal/events"
	"github.com/jonathan/resume-screener/internal/server/middleware"
	"github.com/jonathan/resume-screener/internal/server/ratelimit"
)

// writeSlack is the write budget for everything but the model calls in a request.
const writeSlack = 60 * time.Second

// Deps are the collaborators a Server needs. Archive and Events may be nil, which
// disables archiving and event publishing.
type Deps struct {
	Store           Store
	ResumeExtractor SkillExtractor
	JobExtractor    SkillExtractor
	Archive         archive.Archive
	Events          events.Publisher
	Logger          *zap.Logger
}

// Server represents the HTTP server
type Server struct {
	httpServer   *http.Server
	store        Store
	resumeSkills SkillExtractor
	jobSkills    SkillExtractor
	archive      archive.Archive
	events       events.Publisher
	logger       *zap.Logger
	validator    *validator.Validate
	rateLimiter  *ratelimit.Limiter
	jwtService   *JWTService
	userService  *UserService
	authHandler  *AuthHandler
	resumes      config.ResumesConfig
	llmTimeout   time.Duration
	corsOrigins  []string
}

// New creates a new server instance
func New(cfg *config.AppConfig, deps Deps) (*Server, error) {
	if deps.Store == nil {
		return nil, errors.New("store is required")
	}
	if deps.ResumeExtractor == nil || deps.JobExtractor == nil {
		return nil, errors.New("skill extractors are required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	publisher := deps.Events
	if publisher == nil {
		publisher = events.Nop{}
	}

	passwordConfig, err := config.NewPasswordConfig(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create password config: %w", err)
	}
	jwtConfig, err := config.NewJWTConfig(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWT config: %w", err)
	}

	resumes := cfg.Resumes
	if resumes.BulkConcurrency < 1 {
		resumes.BulkConcurrency = 1
	}
	if resumes.MaxUploadMB < 1 {
		resumes.MaxUploadMB = 20
	}

	s := &Server{
		store:        deps.Store,
		resumeSkills: deps.ResumeExtractor,
		jobSkills:    deps.JobExtractor,
		archive:      deps.Archive,
		events:       publisher,
		logger:       logger,
		validator:    validator.New(),
		rateLimiter:  ratelimit.NewLimiter(ratelimit.FromSettings(cfg.RateLimit, resumes.ExtractOnUpload)),
		jwtService:   NewJWTService(jwtConfig),
		resumes:      resumes,
		llmTimeout:   cfg.LLM.Timeout,
		corsOrigins:  cfg.Server.CORSOrigins,
	}
	s.userService = NewUserService(deps.Store, passwordConfig)
	s.authHandler = NewAuthHandler(s.userService, s.jwtService, s.validator, logger)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.Handler(),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: cfg.LLM.Timeout + writeSlack,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Handler returns the routed handler wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	auth := middleware.AuthMiddleware(s.jwtService.AsTokenValidator(), s.userService)
	protected := func(h http.HandlerFunc) http.Handler { return auth(h) }

	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("POST /users/register", s.authHandler.Register)
	mux.HandleFunc("POST /users/login", s.authHandler.Login)

	mux.Handle("POST /resumes/upload-resume", protected(s.handleUploadResume))
	mux.Handle("POST /resumes/upload-multiple", protected(s.handleUploadMultiple))
	mux.Handle("GET /resumes/my-resumes", protected(s.handleMyResumes))
	mux.Handle("DELETE /resumes/delete/{id}", protected(s.handleDeleteResume))
	mux.Handle("POST /resumes/extract-skills/bulk", protected(s.handleExtractSkillsBulk))
	mux.Handle("POST /resumes/extract-skills/{id}", protected(s.handleExtractSkills))

	mux.Handle("POST /jobs/create-job", protected(s.handleCreateJob))
	mux.Handle("GET /jobs/list", protected(s.handleListJobs))
	mux.Handle("POST /jobs/match/{job_id}", protected(s.handleMatchJob))

	return s.withRateLimit(s.withLogging(s.withCORS(mux)))
}

// Start begins listening for requests and blocks until SIGINT or SIGTERM, then drains
// in-flight requests for up to 30 seconds.
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	serveErr := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		s.rateLimiter.Stop()
		return fmt.Errorf("server error: %w", err)
	case <-stop:
	}

	s.logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.rateLimiter.Stop()
	s.logger.Info("server stopped")
	return nil
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	allowAll := len(s.corsOrigins) == 0 || slices.Contains(s.corsOrigins, "*")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		switch {
		case allowAll:
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && slices.Contains(s.corsOrigins, origin):
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote", r.RemoteAddr),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, info := s.rateLimiter.Allow(extractClientID(r), r.URL.Path, r.Method)
		setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, r, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// extractClientID identifies the client by the IP of RemoteAddr.
func extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime.Unix(), 10))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response.
func (s *Server) rateLimitResponse(w http.ResponseWriter, r *http.Request, info ratelimit.Info) {
	retryAfter := int(info.RetryAfter.Round(time.Second).Seconds())
	if info.RetryAfter > 0 && retryAfter == 0 {
		retryAfter = 1
	}
	if retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	}

	s.logger.Warn("rate limit exceeded",
		zap.String("client", extractClientID(r)),
		zap.String("path", r.URL.Path),
		zap.Int("limit", info.Limit),
	)
	s.errorResponse(w, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
}

// handleRoot returns a welcome message
func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"message": "Welcome to the AI Resume Screener!"})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	writeJSON(s.logger, w, status, data)
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// fail maps err to a status code and a client-safe message.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	s.errorResponse(w, status, publicMessage(err))
}

// extendWriteDeadline moves the connection's write deadline one model call ahead.
// Handlers that make several sequential model calls use it before each call, since
// the server's WriteTimeout only covers one.
func (s *Server) extendWriteDeadline(w http.ResponseWriter) {
	err := http.NewResponseController(w).SetWriteDeadline(time.Now().Add(s.llmTimeout + writeSlack))
	if err != nil && !errors.Is(err, http.ErrNotSupported) {
		s.logger.Warn("failed to extend write deadline", zap.Error(err))
	}
}

// publish sends an event without letting broker trouble affect the request.
func (s *Server) publish(ctx context.Context, ev events.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := s.events.Publish(ctx, ev); err != nil {
		s.logger.Warn("failed to publish event", zap.String("type", ev.Type), zap.Error(err))
	}
}

func writeJSON(logger *zap.Logger, w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("error encoding JSON response", zap.Error(err))
	}
}

func trimmedEmpty(s string) bool {
	return strings.TrimSpace(s) == ""
}
