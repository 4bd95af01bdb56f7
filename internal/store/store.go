// Package store persists events, device runtimes, and sensor readings
// to sqlite, grounded on the teacher's db package (sql.Open("sqlite3", ...),
// CREATE TABLE IF NOT EXISTS migrations run at startup, plain
// parameterized Exec calls) but replacing the teacher's zone/device
// catalog schema with the pool controller's append-only log tables.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/mjpetersen/pipool-controller/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS event (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	state_from TEXT,
	state_to TEXT,
	opaque TEXT,
	time TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS device_runtime (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	topic TEXT NOT NULL,
	start_time TEXT NOT NULL,
	elapsed_seconds REAL NOT NULL
);
CREATE TABLE IF NOT EXISTS sensor (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	sensor TEXT NOT NULL,
	reading REAL NOT NULL,
	time TEXT NOT NULL
);
`

// Store is a sqlite-backed append-only log for events, device runtimes,
// and sensor readings. It implements actuator.EventSink, actuator.RuntimeSink,
// and sensors.Recorder.
type Store struct {
	db *sql.DB
}

// Open creates the database file if missing and applies the schema.
func Open(path string) (*Store, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("store: create db file: %w", err)
		}
		f.Close()
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Event persists one event record. Errors are logged, not returned:
// EventSink implementations are called from actuator hot paths that
// cannot propagate a storage failure without blocking device control.
func (s *Store) Event(e model.Event) {
	var opaque string
	if e.Payload != nil {
		b, err := json.Marshal(e.Payload)
		if err != nil {
			log.Error().Err(err).Str("event", e.Name).Msg("store: marshal event payload")
		} else {
			opaque = string(b)
		}
	}

	_, err := s.db.Exec(
		`INSERT INTO event (name, state_from, state_to, opaque, time) VALUES (?, ?, ?, ?, ?)`,
		e.Name, e.From, e.To, opaque, e.Timestamp.Format(time.RFC3339),
	)
	if err != nil {
		log.Error().Err(err).Str("event", e.Name).Msg("store: insert event")
	}
}

// Runtime persists one completed device on-cycle.
func (s *Store) Runtime(r model.Runtime) {
	_, err := s.db.Exec(
		`INSERT INTO device_runtime (topic, start_time, elapsed_seconds) VALUES (?, ?, ?)`,
		r.Topic, r.StartWall.Format(time.RFC3339), r.Elapsed.Seconds(),
	)
	if err != nil {
		log.Error().Err(err).Str("topic", r.Topic).Msg("store: insert runtime")
	}
}

// Sensor persists one sensor reading.
func (s *Store) Sensor(r model.SensorReading) {
	_, err := s.db.Exec(
		`INSERT INTO sensor (sensor, reading, time) VALUES (?, ?, ?)`,
		r.Name, r.Value, r.Wall.Format(time.RFC3339),
	)
	if err != nil {
		log.Error().Err(err).Str("sensor", r.Name).Msg("store: insert sensor reading")
	}
}

// RecentEvents returns the most recent events, newest first. Read path
// for the inspection CLI; unlike Event/Runtime/Sensor it returns an
// error since there is no hot-path caller to protect.
func (s *Store) RecentEvents(limit int) ([]model.Event, error) {
	rows, err := s.db.Query(`SELECT name, state_from, state_to, opaque, time FROM event ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: query events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		var e model.Event
		var from, to, opaque, ts string
		if err := rows.Scan(&e.Name, &from, &to, &opaque, &ts); err != nil {
			return nil, fmt.Errorf("store: scan event: %w", err)
		}
		e.From, e.To = from, to
		e.Timestamp, _ = time.Parse(time.RFC3339, ts)
		if opaque != "" {
			_ = json.Unmarshal([]byte(opaque), &e.Payload)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// RecentRuntimes returns the most recent completed device on-cycles,
// newest first.
func (s *Store) RecentRuntimes(limit int) ([]model.Runtime, error) {
	rows, err := s.db.Query(`SELECT topic, start_time, elapsed_seconds FROM device_runtime ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: query runtimes: %w", err)
	}
	defer rows.Close()

	var runtimes []model.Runtime
	for rows.Next() {
		var r model.Runtime
		var start string
		var elapsedSeconds float64
		if err := rows.Scan(&r.Topic, &start, &elapsedSeconds); err != nil {
			return nil, fmt.Errorf("store: scan runtime: %w", err)
		}
		r.StartWall, _ = time.Parse(time.RFC3339, start)
		r.Elapsed = time.Duration(elapsedSeconds * float64(time.Second))
		runtimes = append(runtimes, r)
	}
	return runtimes, rows.Err()
}

// RecentSensors returns the most recent readings for one sensor name,
// newest first.
func (s *Store) RecentSensors(name string, limit int) ([]model.SensorReading, error) {
	rows, err := s.db.Query(`SELECT sensor, reading, time FROM sensor WHERE sensor = ? ORDER BY id DESC LIMIT ?`, name, limit)
	if err != nil {
		return nil, fmt.Errorf("store: query sensor readings: %w", err)
	}
	defer rows.Close()

	var readings []model.SensorReading
	for rows.Next() {
		var r model.SensorReading
		var ts string
		if err := rows.Scan(&r.Name, &r.Value, &ts); err != nil {
			return nil, fmt.Errorf("store: scan sensor reading: %w", err)
		}
		r.Wall, _ = time.Parse(time.RFC3339, ts)
		readings = append(readings, r)
	}
	return readings, rows.Err()
}
