package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/banshee-data/mirrorfit/internal/db"
	"github.com/banshee-data/mirrorfit/internal/httputil"
	"github.com/banshee-data/mirrorfit/internal/report"
)

const (
	defaultHistoryLimit = 300
	maxHistoryLimit     = 10000
)

// historyQuery reads limit and scale from the query string. scale is "px"
// or "units"; by default lengths are in display units once calibrated.
func (s *Server) historyQuery(r *http.Request) (limit int, usePx bool, err error) {
	limit = defaultHistoryLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, perr := strconv.Atoi(l)
		if perr != nil || parsed < 1 || parsed > maxHistoryLimit {
			return 0, false, fmt.Errorf("invalid 'limit' parameter, must be between 1 and %d", maxHistoryLimit)
		}
		limit = parsed
	}

	switch scale := r.URL.Query().Get("scale"); scale {
	case "":
		usePx = !s.sess.Calibration().Calibrated
	case "px":
		usePx = true
	case "units":
		usePx = false
	default:
		return 0, false, fmt.Errorf("invalid 'scale' parameter %q, must be px or units", scale)
	}
	return limit, usePx, nil
}

// loadHistory fetches the session's rows for a GET request. ok is false
// when an error response has already been written.
func (s *Server) loadHistory(w http.ResponseWriter, r *http.Request) (rows []db.MeasurementRow, usePx bool, ok bool) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return nil, false, false
	}
	if s.db == nil {
		httputil.NotFound(w, "measurement history is disabled")
		return nil, false, false
	}
	limit, usePx, err := s.historyQuery(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return nil, false, false
	}
	rows, err = s.db.RecentMeasurements(s.sess.ID(), limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to retrieve history: %v", err))
		return nil, false, false
	}
	return rows, usePx, true
}

func (s *Server) toSamples(rows []db.MeasurementRow, usePx bool) []report.Sample {
	samples := make([]report.Sample, len(rows))
	for i, row := range rows {
		sm := report.Sample{Seq: row.Seq, At: row.At, PostureScore: row.Output.PostureScore}
		if usePx {
			sm.ShoulderWidth = row.Output.ShoulderWidthPx
			sm.Height = row.Output.HeightPx
		} else {
			sm.ShoulderWidth = s.toDisplay(row.Output.ShoulderWidthUnit)
			sm.Height = s.toDisplay(row.Output.HeightUnit)
		}
		samples[i] = sm
	}
	return samples
}

func (s *Server) reportOptions(usePx bool) report.Options {
	o := report.Options{Title: "Session " + s.sess.ID(), LengthUnit: s.units}
	if usePx {
		o.LengthUnit = "px"
	}
	return o
}

func (s *Server) listHistory(w http.ResponseWriter, r *http.Request) {
	rows, _, ok := s.loadHistory(w, r)
	if !ok {
		return
	}
	resp := make([]MeasurementResponse, len(rows))
	for i, row := range rows {
		resp[i] = s.measurementResponse(row.Seq, row.At, row.Output)
	}
	httputil.WriteJSONOK(w, resp)
}

// SummaryResponse wraps report.Summary with the length unit in use.
type SummaryResponse struct {
	SessionID  string         `json:"session_id"`
	LengthUnit string         `json:"length_unit"`
	Summary    report.Summary `json:"summary"`
}

func (s *Server) showSummary(w http.ResponseWriter, r *http.Request) {
	rows, usePx, ok := s.loadHistory(w, r)
	if !ok {
		return
	}
	httputil.WriteJSONOK(w, SummaryResponse{
		SessionID:  s.sess.ID(),
		LengthUnit: s.reportOptions(usePx).LengthUnit,
		Summary:    report.Summarize(s.toSamples(rows, usePx)),
	})
}

func (s *Server) showChart(w http.ResponseWriter, r *http.Request) {
	rows, usePx, ok := s.loadHistory(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := report.RenderHTML(&buf, s.toSamples(rows, usePx), s.reportOptions(usePx)); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("render error: %v", err))
		return
	}
	httputil.WriteBody(w, "text/html; charset=utf-8", buf.Bytes())
}

func (s *Server) showChartPNG(w http.ResponseWriter, r *http.Request) {
	rows, usePx, ok := s.loadHistory(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	err := report.RenderPNG(&buf, s.toSamples(rows, usePx), s.reportOptions(usePx))
	if errors.Is(err, report.ErrNoData) {
		httputil.NotFound(w, err.Error())
		return
	}
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("render error: %v", err))
		return
	}
	httputil.WriteBody(w, "image/png", buf.Bytes())
}
