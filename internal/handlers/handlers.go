package handlers

import (
	"embed"
	"html/template"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"DROWSY_DETECTOR/go-backend/internal/models"
	"DROWSY_DETECTOR/go-backend/internal/services"
	"DROWSY_DETECTOR/go-backend/internal/stream"
)

const Version = "1.0"

const (
	MsgDetectionStarted = "Drowsiness detection started"
	MsgDetectionStopped = "Drowsiness detection stopped"
)

//go:embed templates/index.html
var templates embed.FS

// Controller is the part of the monitor the transports drive.
type Controller interface {
	StartDetection()
	StopDetection() error
	Snapshot() models.StatusSnapshot
}

// HealthChecker reports whether the landmark service is reachable.
type HealthChecker interface {
	HealthCheck() bool
}

type HTTPHandler struct {
	monitor   Controller
	frames    *stream.Broadcaster
	metrics   *services.Metrics
	hub       *Hub
	landmarks HealthChecker
	page      *template.Template
	log       *logrus.Logger
}

// NewHTTPHandler loads the viewer page from templateDir when set, otherwise
// the embedded copy is used. landmarks may be nil.
func NewHTTPHandler(monitor Controller, frames *stream.Broadcaster, metrics *services.Metrics, hub *Hub,
	landmarks HealthChecker, templateDir string, log *logrus.Logger) (*HTTPHandler, error) {
	page, err := loadPage(templateDir)
	if err != nil {
		return nil, err
	}
	return &HTTPHandler{
		monitor:   monitor,
		frames:    frames,
		metrics:   metrics,
		hub:       hub,
		landmarks: landmarks,
		page:      page,
		log:       log,
	}, nil
}

func loadPage(dir string) (*template.Template, error) {
	if dir == "" {
		return template.ParseFS(templates, "templates/index.html")
	}
	path := filepath.Join(dir, "index.html")
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return template.ParseFiles(path)
}

// RouterOptions configures NewRouter.
type RouterOptions struct {
	RateLimitPerMin     int
	ControlPasswordHash string
	Gatherer            prometheus.Gatherer
}

func NewRouter(h *HTTPHandler, opts RouterOptions) http.Handler {
	limiter := NewRateLimiter(opts.RateLimitPerMin, h.log)
	control := func(fn http.HandlerFunc) http.Handler {
		return limiter.Wrap(RequirePassword(opts.ControlPasswordHash, fn))
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/", h.Index)
	mux.HandleFunc("/video_feed", h.VideoFeed)
	mux.Handle("/start_detection", control(h.StartDetection))
	mux.Handle("/stop_detection", control(h.StopDetection))

	mux.Handle("/ws", h.hub)

	mux.HandleFunc("/api/health", h.Health)
	mux.HandleFunc("/api/metrics", h.Metrics)
	mux.HandleFunc("/api/status", h.Status)
	if opts.Gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	return WithRequestID(WithLogging(h.log, mux))
}

func allowGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed", "METHOD_NOT_ALLOWED")
		return false
	}
	return true
}

type indexData struct {
	StreamURL string
	Status    models.StatusSnapshot
	Version   string
}

func (h *HTTPHandler) Index(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if !allowGet(w, r) {
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := indexData{StreamURL: "/video_feed", Status: h.monitor.Snapshot(), Version: Version}
	if err := h.page.Execute(w, data); err != nil {
		h.log.WithError(err).Error("Viewer page rendering failed")
	}
}

// VideoFeed streams annotated frames as multipart JPEG until the camera stops
// or the client disconnects.
func (h *HTTPHandler) VideoFeed(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}

	sub := h.frames.Subscribe()

	w.Header().Set("Content-Type", stream.ContentType)
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Connection", "close")
	w.WriteHeader(http.StatusOK)

	var flush func()
	if f, ok := w.(http.Flusher); ok {
		flush = f.Flush
		flush()
	}

	log := h.log.WithField("request_id", RequestID(r.Context()))
	log.Info("Viewer connected")

	err := stream.Serve(r.Context(), w, flush, sub)
	fields := logrus.Fields{"dropped_frames": sub.Drops()}
	if err != nil {
		log.WithFields(fields).WithError(err).Info("Viewer disconnected")
		return
	}
	log.WithFields(fields).Info("Stream ended")
}

func (h *HTTPHandler) StartDetection(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	h.monitor.StartDetection()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(MsgDetectionStarted))
}

func (h *HTTPHandler) StopDetection(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	if err := h.monitor.StopDetection(); err != nil {
		h.log.WithError(err).Error("Alarm did not stop cleanly")
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(MsgDetectionStopped))
}

func (h *HTTPHandler) Status(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, h.monitor.Snapshot())
}

func (h *HTTPHandler) Health(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}

	landmarkHealthy := false
	if h.landmarks != nil {
		landmarkHealthy = h.landmarks.HealthCheck()
	}

	status := "healthy"
	if !landmarkHealthy {
		status = "degraded"
	}

	writeJSON(w, http.StatusOK, models.HealthStatus{
		Status:          status,
		GoBackend:       "running",
		LandmarkService: landmarkHealthy,
		ActiveClients:   h.hub.Count(),
		Uptime:          h.metrics.Uptime(),
		Version:         Version,
	})
}

func (h *HTTPHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}

	writeJSON(w, http.StatusOK, models.MetricsResponse{
		TotalFrames:      h.metrics.GetTotalFrames(),
		TotalErrors:      h.metrics.GetTotalErrors(),
		FacelessFrames:   h.metrics.GetFacelessFrames(),
		AlarmActivations: h.metrics.GetAlarmActivations(),
		AvgLatencyMs:     h.metrics.GetAvgLatency(),
		Viewers:          h.metrics.GetViewers(),
		WebSocketClients: h.metrics.GetWebSocketConnections(),
		UptimeSec:        int(h.metrics.Uptime() / time.Second),
		Timestamp:        time.Now().Format(time.RFC3339),
	})
}
