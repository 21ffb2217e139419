// Package server exposes the ensemble over a small JSON HTTP API.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/didip/tollbooth/v8"
	"github.com/didip/tollbooth/v8/limiter"
	cache "github.com/go-pkgz/expirable-cache/v3"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/routegroup"

	"github.com/YuminosukeSato/spamensemble/ensemble"
	"github.com/YuminosukeSato/spamensemble/history"
	"github.com/YuminosukeSato/spamensemble/pkg/errors"
	"github.com/YuminosukeSato/spamensemble/pkg/log"
)

// Detector is the ensemble as seen by the API. ensemble.Manager implements it.
type Detector interface {
	EnsureReady(ctx context.Context) error
	IsReady() bool
	Current() *ensemble.Bundle
	Predict(ctx context.Context, email, content string) (*ensemble.Result, error)
	Train(ctx context.Context) (ensemble.Report, error)
}

// History records and lists detections. history.Store implements it.
type History interface {
	Write(ctx context.Context, e history.Entry) (int64, error)
	List(ctx context.Context, limit int) ([]history.Entry, error)
}

// Config holds the server parameters.
type Config struct {
	Listen          string
	Version         string
	RateLimit       float64 // detect requests per second per client, 0 disables
	CacheSize       int     // 0 disables the result cache
	CacheTTL        time.Duration
	MaxContent      int
	ListLimit       int
	ShutdownTimeout time.Duration
}

const (
	serviceName    = "spam-ensemble"
	maxRequestSize = 64 * 1024
)

// Server is the HTTP API.
type Server struct {
	cfg      Config
	detector Detector
	history  History // nil disables the detection log
	cache    cache.Cache[string, *ensemble.Result]
	logger   log.Logger
}

// New creates a server. hist may be nil.
func New(cfg Config, detector Detector, hist History, logger log.Logger) *Server {
	if logger == nil {
		logger = log.Nop()
	}
	if cfg.MaxContent <= 0 {
		cfg.MaxContent = 10000
	}
	if cfg.ListLimit <= 0 {
		cfg.ListLimit = history.DefaultListLimit
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	s := &Server{cfg: cfg, detector: detector, history: hist, logger: logger.With(log.ComponentKey, "server")}
	if cfg.CacheSize > 0 {
		s.cache = cache.NewCache[string, *ensemble.Result]().WithMaxKeys(cfg.CacheSize).WithTTL(cfg.CacheTTL).WithLRU()
	}
	return s
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      5 * time.Minute, // training runs inside the request
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("server shutdown failed", err)
			return
		}
		s.logger.Info("server stopped")
	}()

	s.logger.Info("starting server", "listen", s.cfg.Listen)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "listen")
	}
	return nil
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	router := routegroup.New(http.NewServeMux())
	router.Use(rest.Recoverer(logBackend{s.logger}))
	router.Use(rest.AppInfo("spamensemble", "spamensemble", s.cfg.Version), rest.Ping)
	router.Use(rest.SizeLimit(maxRequestSize))

	router.Mount("/api").Route(func(api *routegroup.Bundle) {
		detect := api.Group()
		if s.cfg.RateLimit > 0 {
			detect.Use(s.rateLimiter())
		}
		detect.HandleFunc("POST /detect", s.detectHandler)
		api.HandleFunc("GET /detect", s.describeHandler)
		api.HandleFunc("GET /logs", s.logsHandler)
		api.HandleFunc("POST /train", s.trainHandler)
		api.HandleFunc("GET /health", s.healthHandler)
	})
	return router
}

func (s *Server) rateLimiter() func(http.Handler) http.Handler {
	lmt := tollbooth.NewLimiter(s.cfg.RateLimit, &limiter.ExpirableOptions{DefaultExpirationTTL: time.Hour})
	lmt.SetIPLookup(limiter.IPLookup{Name: "RemoteAddr", IndexFromRight: 0})
	lmt.SetMessage(`{"error":"rate limit exceeded"}`)
	lmt.SetMessageContentType("application/json; charset=utf-8")
	return tollbooth.HTTPMiddleware(lmt)
}

// DetectRequest is the body of POST /api/detect.
type DetectRequest struct {
	Email   string `json:"email"`
	Content string `json:"content"`
}

// validate trims both fields and returns the problems per field.
func (r *DetectRequest) validate(maxContent int) map[string][]string {
	problems := map[string][]string{}
	r.Email = strings.TrimSpace(r.Email)
	r.Content = strings.TrimSpace(r.Content)

	if r.Email == "" {
		problems["email"] = append(problems["email"], "This field is required.")
	} else if addr, err := mail.ParseAddress(r.Email); err != nil || addr.Address != r.Email {
		problems["email"] = append(problems["email"], "Enter a valid email address.")
	}
	switch n := utf8.RuneCountInString(r.Content); {
	case n == 0:
		problems["content"] = append(problems["content"], "This field is required.")
	case n > maxContent:
		problems["content"] = append(problems["content"],
			fmt.Sprintf("Ensure this field has no more than %d characters.", maxContent))
	}
	if len(problems) == 0 {
		return nil
	}
	return problems
}

// detectResponse is the ensemble result plus the echoed sender.
type detectResponse struct {
	*ensemble.Result
	Email string `json:"email"`
}

// POST /api/detect
func (s *Server) detectHandler(w http.ResponseWriter, r *http.Request) {
	var req DetectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, http.StatusBadRequest, rest.JSON{"error": "can't decode request", "details": err.Error()})
		return
	}
	if problems := req.validate(s.cfg.MaxContent); problems != nil {
		renderError(w, http.StatusBadRequest, rest.JSON{"error": "invalid request", "fields": problems})
		return
	}

	ctx := r.Context()
	if err := s.detector.EnsureReady(ctx); err != nil {
		s.renderFailure(w, "ensemble initialisation failed", err)
		return
	}

	res, cached := s.lookup(req)
	if !cached {
		var err error
		if res, err = s.detector.Predict(ctx, req.Email, req.Content); err != nil {
			s.renderFailure(w, "prediction failed", err)
			return
		}
		s.remember(req, res)
	}

	if s.history != nil {
		if _, err := s.history.Write(ctx, history.NewEntry(req.Email, req.Content, res)); err != nil {
			s.logger.Warn("can't write detection log", err)
		}
	}
	rest.RenderJSON(w, detectResponse{Result: res, Email: req.Email})
}

func cacheKey(bundleID string, req DetectRequest) string {
	return bundleID + "\x00" + req.Email + "\x00" + req.Content
}

// lookup returns a cached verdict of the live bundle.
func (s *Server) lookup(req DetectRequest) (*ensemble.Result, bool) {
	if s.cache == nil {
		return nil, false
	}
	b := s.detector.Current()
	if b == nil {
		return nil, false
	}
	return s.cache.Get(cacheKey(b.ID, req))
}

func (s *Server) remember(req DetectRequest, res *ensemble.Result) {
	if s.cache == nil {
		return
	}
	s.cache.Set(cacheKey(res.BundleID, req), res, 0)
}

// GET /api/detect
func (s *Server) describeHandler(w http.ResponseWriter, _ *http.Request) {
	models := make([]string, 0, len(ensemble.MemberNames))
	for _, name := range ensemble.MemberNames {
		models = append(models, ensemble.DisplayName(name))
	}
	rest.RenderJSON(w, rest.JSON{
		"message":          "Spam detection API. POST a message to classify it.",
		"method":           http.MethodPost,
		"required_fields":  []string{"email", "content"},
		"available_models": models,
	})
}

// GET /api/logs
func (s *Server) logsHandler(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		rest.RenderJSON(w, []history.Entry{})
		return
	}
	entries, err := s.history.List(r.Context(), s.cfg.ListLimit)
	if err != nil {
		s.renderFailure(w, "can't list detection log", err)
		return
	}
	rest.RenderJSON(w, entries)
}

// POST /api/train
func (s *Server) trainHandler(w http.ResponseWriter, r *http.Request) {
	report, err := s.detector.Train(r.Context())
	if err != nil {
		s.renderFailure(w, "training failed", err)
		return
	}
	if s.cache != nil {
		s.cache.Purge()
	}

	results := make(map[string]rest.JSON, len(report.Accuracy))
	for name, acc := range report.Accuracy {
		results[name] = rest.JSON{"accuracy": acc}
	}
	rest.RenderJSON(w, rest.JSON{
		"message":    "Models retrained successfully",
		"bundle_id":  report.BundleID,
		"results":    results,
		"train_size": report.TrainSize,
		"test_size":  report.TestSize,
		"features":   report.Features,
	})
}

// GET /api/health
func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	rest.RenderJSON(w, rest.JSON{"status": "healthy", "service": serviceName, "ready": s.detector.IsReady()})
}

// renderFailure maps ErrNotTrained to 503 and everything else to 500.
func (s *Server) renderFailure(w http.ResponseWriter, msg string, err error) {
	code := http.StatusInternalServerError
	if errors.Is(err, errors.ErrNotTrained) {
		code = http.StatusServiceUnavailable
	}
	s.logger.Error(msg, err, "status", code)
	renderError(w, code, rest.JSON{"error": err.Error()})
}

func renderError(w http.ResponseWriter, code int, body rest.JSON) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	rest.RenderJSON(w, body)
}

// logBackend adapts log.Logger to the Logf interface of go-pkgz/rest.
type logBackend struct {
	l log.Logger
}

func (b logBackend) Logf(format string, args ...interface{}) {
	b.l.Error(fmt.Sprintf(format, args...))
}
