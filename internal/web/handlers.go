package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"math"
	"net/http"
	"sync"
	"time"
)

// maxBodyBytes bounds POST bodies.
const maxBodyBytes = 1 << 20

// Overrides are the per-run parameters a client may change. A nil field
// keeps the configured value.
type Overrides struct {
	TargetAngleDeg *float64 `json:"target_angle_deg,omitempty"`
	TimeoutMs      *int     `json:"timeout_ms,omitempty"`
}

// ValidateOverrides checks that every set field is finite and in range.
func ValidateOverrides(o Overrides) error {
	if o.TargetAngleDeg != nil {
		v := *o.TargetAngleDeg
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.New("target_angle_deg must be a finite number")
		}
		if v < -180 || v > 180 {
			return fmt.Errorf("target_angle_deg must be between -180 and 180, got %.2f", v)
		}
	}
	if o.TimeoutMs != nil && (*o.TimeoutMs <= 0 || *o.TimeoutMs > 60000) {
		return fmt.Errorf("timeout_ms must be between 1 and 60000, got %d", *o.TimeoutMs)
	}
	return nil
}

// RunFunc runs one IntakeArm activation and blocks until it ends. It is
// called from a goroutine started by POST /run.
type RunFunc func(ctx context.Context, overrides Overrides) error

// FormConfig holds the configured run parameters shown by the page.
type FormConfig struct {
	TargetAngleDeg float64 `json:"target_angle_deg"`
	PivotSpeed     float64 `json:"pivot_speed"`
	IntakeSpeed    float64 `json:"intake_speed"`
	TimeoutMs      int     `json:"timeout_ms"`
	CloseOutput    string  `json:"close_output"`
}

// Deps are the callbacks the handlers drive. Release and Status may be nil.
type Deps struct {
	Run          RunFunc
	Release      func()
	Status       func() any
	FormDefaults FormConfig
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Broadcaster *StatusBroadcaster
	deps        Deps
	staticFS    fs.FS

	// RunCooldown is the minimum time between two accepted runs.
	RunCooldown time.Duration
	// StatusInterval is the period of status events while a run is active.
	StatusInterval time.Duration

	mu      sync.Mutex
	ctx     context.Context
	running bool
	lastRun time.Time
	done    chan struct{}
}

// NewHandlers creates handlers. If deps.Run is nil, POST /run returns
// 503 Service Unavailable.
func NewHandlers(broadcaster *StatusBroadcaster, deps Deps, staticFS fs.FS) *Handlers {
	return &Handlers{
		Broadcaster:    broadcaster,
		deps:           deps,
		staticFS:       staticFS,
		RunCooldown:    time.Second,
		StatusInterval: 100 * time.Millisecond,
		ctx:            context.Background(),
	}
}

// setContext sets the parent context of runs started from now on.
func (h *Handlers) setContext(ctx context.Context) {
	h.mu.Lock()
	h.ctx = ctx
	h.mu.Unlock()
}

// Running reports whether a run is in progress.
func (h *Handlers) Running() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}

// Wait blocks until the current run, if any, has returned.
func (h *Handlers) Wait() {
	h.mu.Lock()
	done := h.done
	h.mu.Unlock()
	if done != nil {
		<-done
	}
}

// HandleConfig returns the configured run parameters as JSON.
func (h *Handlers) HandleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.FormDefaults)
}

// HandleStatus returns the current status as JSON.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if h.deps.Status == nil {
		http.Error(w, "status not configured", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Status())
}

// ServeIndex serves the main HTML page (root path only).
func (h *Handlers) ServeIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.staticFS, "index.html")
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// HandleRun handles POST /run to start an intake.
func (h *Handlers) HandleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var overrides Overrides
	if r.ContentLength != 0 {
		body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := json.NewDecoder(body).Decode(&overrides); err != nil {
			http.Error(w, "invalid JSON", http.StatusBadRequest)
			return
		}
	}
	if err := ValidateOverrides(overrides); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if h.deps.Run == nil {
		http.Error(w, "intake not configured", http.StatusServiceUnavailable)
		return
	}

	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		http.Error(w, "intake already in progress", http.StatusConflict)
		return
	}
	if !h.lastRun.IsZero() && time.Since(h.lastRun) < h.RunCooldown {
		h.mu.Unlock()
		http.Error(w, "too many requests", http.StatusTooManyRequests)
		return
	}
	h.running = true
	h.lastRun = time.Now()
	done := make(chan struct{})
	h.done = done
	ctx := h.ctx
	h.mu.Unlock()

	go h.run(ctx, overrides, done)

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (h *Handlers) run(ctx context.Context, overrides Overrides, done chan struct{}) {
	stop := make(chan struct{})
	var pump sync.WaitGroup
	if h.deps.Status != nil && h.StatusInterval > 0 {
		pump.Add(1)
		go func() {
			defer pump.Done()
			h.publishStatus(stop)
		}()
	}

	err := h.deps.Run(ctx, overrides)

	close(stop)
	pump.Wait()
	if h.deps.Status != nil {
		h.Broadcaster.Publish(h.deps.Status())
	}
	if err != nil {
		h.Broadcaster.Broadcast(LevelError, "Intake failed: "+err.Error())
		log.Printf("intake failed: %v", err)
	} else {
		h.Broadcaster.Broadcast(LevelInfo, "Intake complete")
	}

	h.mu.Lock()
	h.running = false
	h.mu.Unlock()
	close(done)
}

func (h *Handlers) publishStatus(stop <-chan struct{}) {
	ticker := time.NewTicker(h.StatusInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := h.Broadcaster.Publish(h.deps.Status()); err != nil {
				log.Printf("status encode: %v", err)
			}
		}
	}
}

// HandleRelease handles POST /release: the operator let go of the intake.
func (h *Handlers) HandleRelease(w http.ResponseWriter, r *http.Request) {
	if h.deps.Release == nil {
		http.Error(w, "release not configured", http.StatusServiceUnavailable)
		return
	}
	if !h.Running() {
		http.Error(w, "no intake in progress", http.StatusConflict)
		return
	}
	h.deps.Release()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "released"})
}

// HandleStatusStream handles GET /status/stream for SSE.
func (h *Handlers) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: " + msg + "\n\n"))
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
