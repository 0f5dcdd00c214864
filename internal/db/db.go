// Package db keeps the in-session measurement log in SQLite.
//
// The log is write-mostly: every processed frame and every calibration
// change is appended for the current session so that history charts and
// the SQL debug console have something to look at. Nothing is reloaded
// from it on start-up.
package db

import (
	"compress/gzip"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/tailscale/tailsql/server/tailsql"
	_ "modernc.org/sqlite"
	"tailscale.com/tsweb"

	"github.com/banshee-data/mirrorfit/internal/config"
	"github.com/banshee-data/mirrorfit/internal/measure"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

type DB struct {
	*sql.DB
	path string

	// measurements kept per session; zero keeps everything
	retention uint64
}

// OpenDB opens the database without touching the schema.
func OpenDB(path string) (*DB, error) {
	if path == "" {
		path = MemoryPath
	}
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// An in-memory database lives on a single connection, and the log
	// has a single writer anyway.
	sqlDB.SetMaxOpenConns(1)

	if _, err := sqlDB.Exec(`PRAGMA foreign_keys = ON; PRAGMA busy_timeout = 5000;`); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	return &DB{DB: sqlDB, path: path}, nil
}

// NewDB opens the database and brings the schema up to date using the
// embedded migrations.
func NewDB(path string) (*DB, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	migrations, err := MigrationsFS()
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := db.MigrateUp(migrations); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Path returns the path the database was opened with.
func (db *DB) Path() string { return db.path }

// CreateSession registers a session so that measurements can reference it.
// The tuning config, if given, is stored alongside for later inspection.
func (db *DB) CreateSession(sessionID string, startedAt time.Time, mode string, cfg *config.TuningConfig) error {
	if sessionID == "" {
		return errors.New("session id is required")
	}
	var cfgJSON sql.NullString
	if cfg != nil {
		b, err := json.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to encode session config: %w", err)
		}
		cfgJSON = sql.NullString{String: string(b), Valid: true}
	}
	_, err := db.Exec(
		`INSERT INTO sessions (session_id, started_unix_nanos, posture_mode, config_json) VALUES (?, ?, ?, ?)`,
		sessionID, startedAt.UnixNano(), mode, cfgJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to create session %s: %w", sessionID, err)
	}
	return nil
}

// RecordMeasurement appends one evaluated frame to the log.
func (db *DB) RecordMeasurement(sessionID string, seq uint64, at time.Time, out measure.Output) error {
	var score sql.NullInt64
	if out.PostureScore != nil {
		score = sql.NullInt64{Int64: int64(*out.PostureScore), Valid: true}
	}
	var grade sql.NullString
	if out.PostureGrade != "" {
		grade = sql.NullString{String: out.PostureGrade, Valid: true}
	}
	_, err := db.Exec(`
		INSERT INTO measurements (
			session_id, seq, recorded_unix_nanos, calibrated,
			shoulder_width_px, shoulder_width_unit, height_px, height_unit,
			posture_score, posture_angle_deg, back_angle_deg, posture_grade
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, int64(seq), at.UnixNano(), out.Calibrated,
		nullFloat(out.ShoulderWidthPx), nullFloat(out.ShoulderWidthUnit),
		nullFloat(out.HeightPx), nullFloat(out.HeightUnit),
		score, nullFloat(out.PostureAngleDeg), nullFloat(out.BackAngleDeg), grade,
	)
	if err != nil {
		return fmt.Errorf("failed to record measurement %d: %w", seq, err)
	}

	if db.retention > 0 && seq > db.retention {
		if _, err := db.Exec(
			`DELETE FROM measurements WHERE session_id = ? AND seq <= ?`,
			sessionID, int64(seq-db.retention),
		); err != nil {
			return fmt.Errorf("failed to prune measurements before %d: %w", seq-db.retention+1, err)
		}
	}
	return nil
}

// SetRetention caps the number of measurements kept per session. Once a
// session logs more than frames rows, the oldest are pruned as new ones are
// recorded. Zero keeps everything.
func (db *DB) SetRetention(frames int) {
	if frames < 0 {
		frames = 0
	}
	db.retention = uint64(frames)
}

// RecordCalibration appends a calibration change. unitsPerPixel is nil
// when the calibration was cleared.
func (db *DB) RecordCalibration(sessionID string, at time.Time, kind string, unitsPerPixel *float64) error {
	_, err := db.Exec(
		`INSERT INTO calibration_events (session_id, recorded_unix_nanos, kind, units_per_pixel) VALUES (?, ?, ?, ?)`,
		sessionID, at.UnixNano(), kind, nullFloat(unitsPerPixel),
	)
	if err != nil {
		return fmt.Errorf("failed to record %s calibration: %w", kind, err)
	}
	return nil
}

// MeasurementRow is one logged measurement.
type MeasurementRow struct {
	SessionID string         `json:"session_id"`
	Seq       uint64         `json:"seq"`
	At        time.Time      `json:"at"`
	Output    measure.Output `json:"output"`
}

// RecentMeasurements returns up to limit of the latest measurements for a
// session, oldest first. A non-positive limit returns everything.
func (db *DB) RecentMeasurements(sessionID string, limit int) ([]MeasurementRow, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.Query(`
		SELECT seq, recorded_unix_nanos, calibrated,
			shoulder_width_px, shoulder_width_unit, height_px, height_unit,
			posture_score, posture_angle_deg, back_angle_deg, posture_grade
		FROM measurements
		WHERE session_id = ?
		ORDER BY seq DESC
		LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query measurements: %w", err)
	}
	defer rows.Close()

	var out []MeasurementRow
	for rows.Next() {
		var (
			seq                      int64
			nanos                    int64
			calibrated               bool
			swPx, swUnit, hPx, hUnit sql.NullFloat64
			score                    sql.NullInt64
			angle, back              sql.NullFloat64
			grade                    sql.NullString
		)
		if err := rows.Scan(&seq, &nanos, &calibrated, &swPx, &swUnit, &hPx, &hUnit, &score, &angle, &back, &grade); err != nil {
			return nil, fmt.Errorf("failed to scan measurement: %w", err)
		}
		row := MeasurementRow{
			SessionID: sessionID,
			Seq:       uint64(seq),
			At:        time.Unix(0, nanos).UTC(),
			Output: measure.Output{
				Calibrated:        calibrated,
				ShoulderWidthPx:   floatPtr(swPx),
				ShoulderWidthUnit: floatPtr(swUnit),
				HeightPx:          floatPtr(hPx),
				HeightUnit:        floatPtr(hUnit),
				PostureAngleDeg:   floatPtr(angle),
				BackAngleDeg:      floatPtr(back),
				PostureGrade:      grade.String,
			},
		}
		if score.Valid {
			s := int(score.Int64)
			row.Output.PostureScore = &s
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// CalibrationEvent is one logged calibration change.
type CalibrationEvent struct {
	ID            int64     `json:"id"`
	SessionID     string    `json:"session_id"`
	At            time.Time `json:"at"`
	Kind          string    `json:"kind"`
	UnitsPerPixel *float64  `json:"units_per_pixel"`
}

// CalibrationEvents lists a session's calibration changes in order.
func (db *DB) CalibrationEvents(sessionID string) ([]CalibrationEvent, error) {
	rows, err := db.Query(`
		SELECT event_id, recorded_unix_nanos, kind, units_per_pixel
		FROM calibration_events
		WHERE session_id = ?
		ORDER BY event_id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query calibration events: %w", err)
	}
	defer rows.Close()

	var out []CalibrationEvent
	for rows.Next() {
		var (
			ev    CalibrationEvent
			nanos int64
			k     sql.NullFloat64
		)
		if err := rows.Scan(&ev.ID, &nanos, &ev.Kind, &k); err != nil {
			return nil, fmt.Errorf("failed to scan calibration event: %w", err)
		}
		ev.SessionID = sessionID
		ev.At = time.Unix(0, nanos).UTC()
		ev.UnitsPerPixel = floatPtr(k)
		out = append(out, ev)
	}
	return out, rows.Err()
}

// LogStats counts rows in the session log.
type LogStats struct {
	Sessions          int `json:"sessions"`
	Measurements      int `json:"measurements"`
	CalibrationEvents int `json:"calibration_events"`
}

func (db *DB) Stats() (LogStats, error) {
	var s LogStats
	err := db.QueryRow(`
		SELECT
			(SELECT COUNT(*) FROM sessions),
			(SELECT COUNT(*) FROM measurements),
			(SELECT COUNT(*) FROM calibration_events)`).Scan(&s.Sessions, &s.Measurements, &s.CalibrationEvents)
	if err != nil {
		return LogStats{}, fmt.Errorf("failed to count session log: %w", err)
	}
	return s, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func (db *DB) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	// create a tailSQL instance and point it to our DB
	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		log.Fatalf("failed to create tailsql server: %v", err)
	}
	tsql.SetDB("sqlite://mirrorfit.db", db.DB, &tailsql.DBOptions{
		Label: "Session log",
	})

	// mount the tailSQL server on the debug /tailsql path
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	debug.Handle("session-log", "Row counts for the session log", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stats, err := db.Stats()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(stats)
	}))

	debug.Handle("backup", "Create and download a backup of the session log now", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dir, err := os.MkdirTemp("", "mirrorfit-backup-")
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to create backup dir: %v", err), http.StatusInternalServerError)
			return
		}
		defer func() {
			if err := os.RemoveAll(dir); err != nil {
				log.Printf("Failed to remove backup dir: %v", err)
			}
		}()

		name := fmt.Sprintf("backup-%d.db", time.Now().Unix())
		backupPath := filepath.Join(dir, name)
		if _, err := db.DB.Exec("VACUUM INTO ?", backupPath); err != nil {
			http.Error(w, fmt.Sprintf("Failed to create backup: %v", err), http.StatusInternalServerError)
			return
		}

		backupFile, err := os.Open(backupPath)
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to open backup file: %v", err), http.StatusInternalServerError)
			return
		}
		defer backupFile.Close()

		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", name))
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Encoding", "gzip")

		gzipWriter := gzip.NewWriter(w)
		defer gzipWriter.Close()
		if _, err := io.Copy(gzipWriter, backupFile); err != nil {
			log.Printf("Failed to write backup: %v", err)
		}
	}))
}
