package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	"DROWSY_DETECTOR/go-backend/internal/models"
)

const RequestIDKey = "X-Request-ID"

type ctxKey string

const requestIDCtxKey ctxKey = "request_id"

// RequestID returns the id assigned by WithRequestID, or "unknown".
func RequestID(ctx context.Context) string {
	id, ok := ctx.Value(requestIDCtxKey).(string)
	if !ok || id == "" {
		return "unknown"
	}
	return id
}

func WithRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDKey)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDKey, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDCtxKey, id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	n, err := s.ResponseWriter.Write(b)
	s.size += n
	return n, err
}

// Flush keeps /video_feed streaming through the recorder.
func (s *statusRecorder) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack is needed by the websocket upgrader.
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}

// WithLogging logs one line per request once the handler returns.
func WithLogging(log *logrus.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		fields := logrus.Fields{
			"request_id":    RequestID(r.Context()),
			"method":        r.Method,
			"path":          r.URL.Path,
			"status":        rec.status,
			"latency_ms":    time.Since(start).Milliseconds(),
			"ip":            clientIP(r),
			"user_agent":    r.UserAgent(),
			"response_size": rec.size,
		}

		switch {
		case rec.status >= 500:
			log.WithFields(fields).Error("Server error")
		case rec.status >= 400:
			log.WithFields(fields).Warn("Client error")
		default:
			log.WithFields(fields).Debug("Success")
		}
	})
}

type RateLimiter struct {
	mu        sync.Mutex
	bucket    map[string]*rate.Limiter
	rate      rate.Limit
	burstSize int
	log       *logrus.Logger
}

// NewRateLimiter allows perMinute requests per client IP.
func NewRateLimiter(perMinute int, log *logrus.Logger) *RateLimiter {
	return &RateLimiter{
		bucket:    make(map[string]*rate.Limiter),
		rate:      rate.Every(time.Minute / time.Duration(perMinute)),
		burstSize: perMinute,
		log:       log,
	}
}

func (rl *RateLimiter) limiterFor(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if _, exist := rl.bucket[ip]; !exist {
		rl.bucket[ip] = rate.NewLimiter(rl.rate, rl.burstSize)
	}
	return rl.bucket[ip]
}

func (rl *RateLimiter) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !rl.limiterFor(ip).Allow() {
			rl.log.WithField("ip", ip).Warn("Too many requests")
			writeError(w, http.StatusTooManyRequests, "Too many requests", "RATE_LIMITED")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequirePassword guards next with HTTP basic auth checked against a bcrypt
// hash. An empty hash disables the check.
func RequirePassword(hash string, next http.Handler) http.Handler {
	if hash == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, password, ok := r.BasicAuth()
		if !ok || bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
			w.Header().Set("WWW-Authenticate", `Basic realm="drowsiness"`)
			writeError(w, http.StatusUnauthorized, "Unauthorized", "UNAUTHORIZED")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg, code string) {
	writeJSON(w, status, models.ErrorResponse{
		Error:     msg,
		Timestamp: time.Now().Unix(),
		Code:      code,
	})
}
