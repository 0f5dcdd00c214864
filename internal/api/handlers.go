package api

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/banshee-data/mirrorfit/internal/frameloop"
	"github.com/banshee-data/mirrorfit/internal/httputil"
	"github.com/banshee-data/mirrorfit/internal/measure"
	"github.com/banshee-data/mirrorfit/internal/pose"
	"github.com/banshee-data/mirrorfit/internal/session"
	"github.com/banshee-data/mirrorfit/internal/units"
)

// MeasurementResponse is a measurement with lengths in display units.
type MeasurementResponse struct {
	SessionID       string     `json:"session_id"`
	Seq             uint64     `json:"seq"`
	At              *time.Time `json:"at,omitempty"`
	Units           string     `json:"units"`
	Calibrated      bool       `json:"calibrated"`
	ShoulderWidthPx *float64   `json:"shoulder_width_px"`
	ShoulderWidth   *float64   `json:"shoulder_width"`
	HeightPx        *float64   `json:"height_px"`
	Height          *float64   `json:"height"`
	PostureScore    *int       `json:"posture_score"`
	PostureAngleDeg *float64   `json:"posture_angle_deg"`
	BackAngleDeg    *float64   `json:"back_angle_deg,omitempty"`
	PostureGrade    string     `json:"posture_grade,omitempty"`
}

func (s *Server) measurementResponse(seq uint64, at time.Time, out measure.Output) MeasurementResponse {
	resp := MeasurementResponse{
		SessionID:       s.sess.ID(),
		Seq:             seq,
		Units:           s.units,
		Calibrated:      out.Calibrated,
		ShoulderWidthPx: out.ShoulderWidthPx,
		ShoulderWidth:   s.toDisplay(out.ShoulderWidthUnit),
		HeightPx:        out.HeightPx,
		Height:          s.toDisplay(out.HeightUnit),
		PostureScore:    out.PostureScore,
		PostureAngleDeg: out.PostureAngleDeg,
		BackAngleDeg:    out.BackAngleDeg,
		PostureGrade:    out.PostureGrade,
	}
	if !at.IsZero() {
		resp.At = &at
	}
	return resp
}

func (s *Server) showMeasurement(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	snap := s.sess.Latest()
	httputil.WriteJSONOK(w, s.measurementResponse(snap.Seq, snap.At, snap.Output))
}

// submitFrame evaluates a posted keypoint frame. With a frame sink the
// frame is queued for the loop and 202 is returned.
func (s *Server) submitFrame(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, httputil.MaxBodyBytes))
	if err != nil {
		httputil.BadRequest(w, fmt.Sprintf("failed to read frame: %v", err))
		return
	}
	frame, err := pose.DecodeFrame(body)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	if s.frames != nil {
		s.frames.Publish(frame)
		httputil.WriteJSON(w, http.StatusAccepted, map[string]int{"keypoints": len(frame)})
		return
	}

	snap := s.sess.Evaluate(frame)
	httputil.WriteJSONOK(w, s.measurementResponse(snap.Seq, snap.At, snap.Output))
}

// CalibrationRequest sets the calibration. Exactly one form is used, in
// order of precedence: a units-per-pixel factor, typed text, or a known
// reference width with its measured pixel length. KnownWidth is read in
// Units (centimetres when empty).
type CalibrationRequest struct {
	UnitsPerPixel *float64 `json:"units_per_pixel,omitempty"`
	Text          *string  `json:"text,omitempty"`
	KnownWidth    *float64 `json:"known_width,omitempty"`
	MeasuredPx    *float64 `json:"measured_px,omitempty"`
	Units         string   `json:"units,omitempty"`
}

// AutoCalibrationRequest optionally overrides the reference width.
type AutoCalibrationRequest struct {
	ReferenceWidth *float64 `json:"reference_width,omitempty"`
	Units          string   `json:"units,omitempty"`
}

// CalibrationResponse reports the calibration factor in centimetres per
// pixel.
type CalibrationResponse struct {
	Calibrated    bool     `json:"calibrated"`
	UnitsPerPixel *float64 `json:"units_per_pixel"`
	Units         string   `json:"units"`
}

func calibrationResponse(state session.CalibrationState) CalibrationResponse {
	return CalibrationResponse{
		Calibrated:    state.Calibrated,
		UnitsPerPixel: state.UnitsPerPixel,
		Units:         units.CM,
	}
}

func (s *Server) handleCalibration(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		httputil.WriteJSONOK(w, calibrationResponse(s.sess.Calibration()))

	case http.MethodPost:
		var req CalibrationRequest
		if err := httputil.DecodeJSON(w, r, &req); err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		lengthUnits, ok := requestUnits(req.Units)
		if !ok {
			httputil.BadRequest(w, fmt.Sprintf("invalid units %q, must be one of: %s", req.Units, units.GetValidUnitsString()))
			return
		}

		var (
			state session.CalibrationState
			err   error
		)
		switch {
		case req.UnitsPerPixel != nil:
			state, err = s.sess.SetCalibration(*req.UnitsPerPixel)
		case req.Text != nil:
			state, err = s.sess.SetCalibrationText(*req.Text)
		case req.KnownWidth != nil && req.MeasuredPx != nil:
			known := units.ToCentimetres(*req.KnownWidth, lengthUnits)
			state, err = s.sess.SetCalibrationFromReference(known, *req.MeasuredPx)
		default:
			httputil.BadRequest(w, "one of units_per_pixel, text, or known_width with measured_px is required")
			return
		}
		if err != nil {
			writeError(w, err)
			return
		}
		httputil.WriteJSONOK(w, calibrationResponse(state))

	case http.MethodDelete:
		httputil.WriteJSONOK(w, calibrationResponse(s.sess.ResetCalibration()))

	default:
		httputil.MethodNotAllowed(w)
	}
}

func (s *Server) autoCalibrate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	var req AutoCalibrationRequest
	if r.ContentLength != 0 {
		if err := httputil.DecodeJSON(w, r, &req); err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
	}
	lengthUnits, ok := requestUnits(req.Units)
	if !ok {
		httputil.BadRequest(w, fmt.Sprintf("invalid units %q, must be one of: %s", req.Units, units.GetValidUnitsString()))
		return
	}

	var ref float64
	if req.ReferenceWidth != nil {
		if *req.ReferenceWidth == 0 {
			httputil.BadRequest(w, "reference_width must be positive")
			return
		}
		ref = units.ToCentimetres(*req.ReferenceWidth, lengthUnits)
	}

	state, err := s.sess.AutoCalibrate(ref)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, calibrationResponse(state))
}

func requestUnits(u string) (string, bool) {
	if u == "" {
		return units.CM, true
	}
	return u, units.IsValid(u)
}

func (s *Server) resetSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	s.sess.Reset()
	httputil.WriteJSONOK(w, map[string]string{"status": "reset"})
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, map[string]interface{}{
		"session_id":   s.sess.ID(),
		"units":        s.units,
		"posture_mode": s.sess.Mode().String(),
		"history":      s.db != nil,
	})
}

// StatusResponse reports the frame loop counters when a loop is attached.
type StatusResponse struct {
	SessionID string           `json:"session_id"`
	Seq       uint64           `json:"seq"`
	Loop      *frameloop.Stats `json:"loop,omitempty"`
}

func (s *Server) showStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	resp := StatusResponse{SessionID: s.sess.ID(), Seq: s.sess.Latest().Seq}
	if s.loopStats != nil {
		st := s.loopStats()
		resp.Loop = &st
	}
	httputil.WriteJSONOK(w, resp)
}
