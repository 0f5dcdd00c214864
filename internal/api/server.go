// Package api serves the measurement session over HTTP/JSON.
package api

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/mirrorfit/internal/db"
	"github.com/banshee-data/mirrorfit/internal/frameloop"
	"github.com/banshee-data/mirrorfit/internal/httputil"
	"github.com/banshee-data/mirrorfit/internal/measure"
	"github.com/banshee-data/mirrorfit/internal/pose"
	"github.com/banshee-data/mirrorfit/internal/session"
	"github.com/banshee-data/mirrorfit/internal/units"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// FrameSink accepts frames for asynchronous evaluation by the frame loop.
type FrameSink interface {
	Publish(frame pose.Frame)
}

type Server struct {
	sess  *session.Session
	db    *db.DB
	units string

	frames    FrameSink
	loopStats func() frameloop.Stats
}

// Option configures a Server.
type Option func(*Server)

// WithFrameSink makes POST /api/frame hand frames to sink instead of
// evaluating them inline.
func WithFrameSink(sink FrameSink) Option {
	return func(s *Server) { s.frames = sink }
}

// WithLoopStats exposes frame loop counters on /api/status.
func WithLoopStats(fn func() frameloop.Stats) Option {
	return func(s *Server) { s.loopStats = fn }
}

// NewServer serves sess. database may be nil, in which case the history
// and chart routes answer 404. Lengths are reported in displayUnits,
// falling back to centimetres when the unit is unknown.
func NewServer(sess *session.Session, database *db.DB, displayUnits string, opts ...Option) *Server {
	if !units.IsValid(displayUnits) {
		displayUnits = units.CM
	}
	s := &Server{
		sess:  sess,
		db:    database,
		units: displayUnits,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/measurement", s.showMeasurement)
	mux.HandleFunc("/api/frame", s.submitFrame)
	mux.HandleFunc("/api/calibration", s.handleCalibration)
	mux.HandleFunc("/api/calibration/auto", s.autoCalibrate)
	mux.HandleFunc("/api/reset", s.resetSession)
	mux.HandleFunc("/api/config", s.showConfig)
	mux.HandleFunc("/api/status", s.showStatus)
	mux.HandleFunc("/api/history", s.listHistory)
	mux.HandleFunc("/api/summary", s.showSummary)
	mux.HandleFunc("/api/chart", s.showChart)
	mux.HandleFunc("/api/chart.png", s.showChartPNG)
	return mux
}

// writeError maps engine errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, measure.ErrInvalidInput):
		httputil.BadRequest(w, err.Error())
	case errors.Is(err, measure.ErrNoMeasurement):
		httputil.Conflict(w, err.Error())
	default:
		httputil.InternalServerError(w, err.Error())
	}
}

// toDisplay converts a calibrated length (centimetres) to display units.
func (s *Server) toDisplay(v *float64) *float64 {
	if v == nil {
		return nil
	}
	out := units.ConvertLength(*v, s.units)
	return &out
}
