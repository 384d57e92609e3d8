package server

import (
	"context"
	"encoding/json"
	"fmt"
	"image/png"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"strings"
	"sync"
	"time"

	"github.com/fjzll/stringart/internal/art"
	"github.com/fjzll/stringart/internal/render"
	"github.com/fjzll/stringart/internal/store"
)

// Server represents the HTTP server
type Server struct {
	jobManager *JobManager
	store      *store.FSStore
	addr       string
	server     *http.Server
	ctx        context.Context
	cancel     context.CancelFunc

	cacheMu sync.Mutex
	caches  map[cacheKey]*art.LineCache
}

// cacheKey identifies a reusable line cache: geometry only, nothing about
// the image or line count.
type cacheKey struct {
	pins        int
	size        int
	minDistance int
}

// NewServer creates a new HTTP server with optional plan store.
// If planStore is nil, persistence is disabled.
func NewServer(addr string, planStore *store.FSStore) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		jobManager: NewJobManager(),
		store:      planStore,
		addr:       addr,
		ctx:        ctx,
		cancel:     cancel,
		caches:     make(map[cacheKey]*art.LineCache),
	}
}

// cacheFor returns a shared line cache for the given geometry, building it
// on first use. Repeat jobs with identical pin layout skip the O(n^2)
// rasterisation.
func (s *Server) cacheFor(p art.Params) (*art.LineCache, error) {
	key := cacheKey{pins: p.Pins, size: p.ImgSize, minDistance: p.MinDistance}

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	if cache, ok := s.caches[key]; ok {
		return cache, nil
	}

	pins, err := art.PlacePins(p.Pins, p.ImgSize)
	if err != nil {
		return nil, err
	}
	cache, err := art.BuildLineCache(pins, p.ImgSize, p.MinDistance)
	if err != nil {
		return nil, err
	}

	s.caches[key] = cache
	slog.Info("Line cache built", "pins", p.Pins, "img_size", p.ImgSize, "min_distance", p.MinDistance)
	return cache, nil
}

// Start starts the HTTP server
func (s *Server) Start() error {
	mux := http.NewServeMux()

	// Register API routes
	mux.HandleFunc("/api/v1/jobs", s.handleJobs)
	mux.HandleFunc("/api/v1/jobs/", s.handleJobsWithID)
	mux.HandleFunc("/api/v1/validate", s.handleValidate)

	// Register pprof routes for profiling
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	handler := s.loggingMiddleware(s.corsMiddleware(mux))

	s.server = &http.Server{
		Addr:    s.addr,
		Handler: handler,
	}

	slog.Info("Starting HTTP server", "addr", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server, persisting partial plans for
// any still-running jobs.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down HTTP server")

	// Cancel server context to signal workers to stop at their next tick
	s.cancel()

	if s.store != nil {
		s.persistRunningJobs(ctx)
	}

	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// persistRunningJobs saves partial plans for all running jobs
func (s *Server) persistRunningJobs(ctx context.Context) {
	runningJobs := s.jobManager.GetRunningJobs()

	if len(runningJobs) == 0 {
		slog.Info("No running jobs to persist")
		return
	}

	slog.Info("Persisting partial plans for running jobs", "count", len(runningJobs))

	done := make(chan string, len(runningJobs))

	for _, job := range runningJobs {
		go func(j *Job) {
			defer func() { done <- j.ID }()

			seq, pins, progress, ok := s.jobManager.Snapshot(j.ID)
			if !ok || len(seq) < 2 {
				slog.Debug("Skipped persisting job with no progress", "job_id", j.ID)
				return
			}

			result := &art.Result{
				Parameters:        j.Params,
				PinCoordinates:    pins,
				LineSequence:      seq,
				TotalThreadLength: progress.ThreadLength,
			}
			if err := persistPlan(s.store, j.ID, result, j.Config, true); err != nil {
				slog.Error("Failed to persist partial plan on shutdown", "job_id", j.ID, "error", err)
				return
			}
			slog.Info("Partial plan persisted on shutdown",
				"job_id", j.ID,
				"lines_drawn", progress.LinesDrawn,
			)
		}(job)
	}

	for range runningJobs {
		select {
		case <-done:
		case <-ctx.Done():
			slog.Warn("Persist timeout during shutdown")
			return
		}
	}
}

// handleJobs handles /api/v1/jobs
func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateJob(w, r)
	case http.MethodGet:
		s.handleListJobs(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleJobsWithID handles /api/v1/jobs/:id/*
func (s *Server) handleJobsWithID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/jobs/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "Job ID required", http.StatusBadRequest)
		return
	}

	jobID := parts[0]

	if len(parts) == 1 || parts[1] == "status" {
		s.handleGetJobStatus(w, r, jobID)
	} else if parts[1] == "stream" {
		s.handleJobStream(w, r, jobID)
	} else if parts[1] == "cancel" {
		s.handleCancelJob(w, r, jobID)
	} else if parts[1] == "plan.json" {
		s.handleGetPlan(w, r, jobID)
	} else if parts[1] == "preview.png" {
		s.handleGetPreview(w, r, jobID)
	} else if parts[1] == "ref.png" {
		s.handleGetRefImage(w, r, jobID)
	} else {
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

// createJobRequest is the POST /api/v1/jobs body. Params arrive raw so the
// validation predicate can report non-integer values.
type createJobRequest struct {
	ImagePath string         `json:"imagePath"`
	Params    art.ParamInput `json:"params"`
}

// handleCreateJob handles POST /api/v1/jobs
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}

	if req.ImagePath == "" {
		http.Error(w, "imagePath is required", http.StatusBadRequest)
		return
	}

	// Zero-valued params fall back to the defaults before validation.
	if req.Params == (art.ParamInput{}) {
		req.Params = art.DefaultParams().Input()
	}

	params, err := req.Params.Params()
	if err != nil {
		validation := req.Params.Validate()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(validation)
		return
	}

	cache, err := s.cacheFor(params)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to prepare line cache: %v", err), http.StatusUnprocessableEntity)
		return
	}

	job := s.jobManager.CreateJob(JobConfig{ImagePath: req.ImagePath, Params: req.Params}, params)

	go runJob(s.ctx, s.jobManager, s.store, cache, job.ID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(job)
}

// handleListJobs handles GET /api/v1/jobs
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs := s.jobManager.ListJobs()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(jobs)
}

// handleValidate handles POST /api/v1/validate: the pure parameter
// predicate, no allocation, no state.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var input art.ParamInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(input.Validate())
}

// handleGetJobStatus handles GET /api/v1/jobs/:id/status
func (s *Server) handleGetJobStatus(w http.ResponseWriter, r *http.Request, jobID string) {
	job, exists := s.jobManager.GetJob(jobID)
	if !exists {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}

	var elapsed time.Duration
	if job.EndTime != nil {
		elapsed = job.EndTime.Sub(job.StartTime)
	} else {
		elapsed = time.Since(job.StartTime)
	}

	lps := float64(0)
	if elapsed.Seconds() > 0 {
		lps = float64(job.Progress.LinesDrawn) / elapsed.Seconds()
	}

	response := map[string]interface{}{
		"id":           job.ID,
		"state":        job.State,
		"config":       job.Config,
		"params":       job.Params,
		"progress":     job.Progress,
		"threadLength": job.ThreadLength,
		"elapsed":      elapsed.Seconds(),
		"lps":          lps,
		"startTime":    job.StartTime,
		"endTime":      job.EndTime,
		"error":        job.Error,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleCancelJob handles POST /api/v1/jobs/:id/cancel. Cancellation is a
// successful outcome for the run: the job keeps its partial sequence.
func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request, jobID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	job, exists := s.jobManager.GetJob(jobID)
	if !exists {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}

	if !s.jobManager.Cancel(jobID) {
		http.Error(w, fmt.Sprintf("Job is not running (state: %s)", job.State), http.StatusConflict)
		return
	}

	slog.Info("Job cancellation requested", "job_id", jobID)
	w.WriteHeader(http.StatusAccepted)
	fmt.Fprintln(w, "cancellation requested")
}

// handleGetPlan handles GET /api/v1/jobs/:id/plan.json, serving the current
// sequence snapshot for running jobs and the full plan for finished ones.
func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request, jobID string) {
	job, exists := s.jobManager.GetJob(jobID)
	if !exists {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}

	seq, pins, progress, _ := s.jobManager.Snapshot(jobID)
	if len(seq) == 0 {
		http.Error(w, "No results yet", http.StatusNotFound)
		return
	}

	plan := store.NewPlanRecord(jobID, &art.Result{
		Parameters:        job.Params,
		PinCoordinates:    pins,
		LineSequence:      seq,
		TotalThreadLength: progress.ThreadLength,
	}, job.Config, job.State == StateRunning)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	json.NewEncoder(w).Encode(plan)
}

// handleGetPreview handles GET /api/v1/jobs/:id/preview.png
func (s *Server) handleGetPreview(w http.ResponseWriter, r *http.Request, jobID string) {
	job, exists := s.jobManager.GetJob(jobID)
	if !exists {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}

	seq, pins, _, _ := s.jobManager.Snapshot(jobID)
	if len(seq) < 2 {
		http.Error(w, "No results yet", http.StatusNotFound)
		return
	}

	img := render.Preview(pins, seq, job.Params.ImgSize, job.Params.LineWeight)

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")

	if err := png.Encode(w, img); err != nil {
		slog.Error("Failed to encode PNG", "error", err)
	}
}

// handleGetRefImage handles GET /api/v1/jobs/:id/ref.png: the canonicalised
// luminance the solver actually worked from.
func (s *Server) handleGetRefImage(w http.ResponseWriter, r *http.Request, jobID string) {
	job, exists := s.jobManager.GetJob(jobID)
	if !exists {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}

	src, err := loadSourceImage(job.Config.ImagePath)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to load source: %v", err), http.StatusInternalServerError)
		return
	}

	cv, err := art.Canonicalize(src, job.Params.ImgSize)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to canonicalise: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")

	if err := png.Encode(w, cv.GrayImage()); err != nil {
		slog.Error("Failed to encode PNG", "error", err)
	}
}

// corsMiddleware adds CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs each request
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("Request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"elapsed", time.Since(start),
		)
	})
}
