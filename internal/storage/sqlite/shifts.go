package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/skysift/shiftwatch/internal/transcript"
	"github.com/skysift/shiftwatch/pkg/logger"
)

// ShiftStorage handles storage of shift metadata and transcripts. The
// transcript is stored as one JSON document per shift, matching the shape
// the transcription step produces.
type ShiftStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewShiftStorage creates a new SQLite shift storage
func NewShiftStorage(db *sql.DB, log *logger.Logger) (*ShiftStorage, error) {
	storage := &ShiftStorage{
		db:     db,
		logger: log.Named("sqlite-shifts"),
	}
	if err := storage.initDB(); err != nil {
		return nil, fmt.Errorf("failed to initialize shift storage: %w", err)
	}
	return storage, nil
}

// initDB initializes the database tables
func (s *ShiftStorage) initDB() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS shifts (
			shift_id TEXT PRIMARY KEY,
			controller_id TEXT NOT NULL,
			facility TEXT NOT NULL,
			start_time TIMESTAMP NOT NULL,
			end_time TIMESTAMP NOT NULL,
			position TEXT NOT NULL,
			schedule_type TEXT NOT NULL,
			traffic_count_avg REAL,
			created_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create shifts table: %w", err)
	}

	_, err = s.db.Exec(`
		CREATE TABLE IF NOT EXISTS transcripts (
			shift_id TEXT PRIMARY KEY,
			segments TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			FOREIGN KEY (shift_id) REFERENCES shifts(shift_id)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create transcripts table: %w", err)
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_shifts_controller_id ON shifts(controller_id)`,
		`CREATE INDEX IF NOT EXISTS idx_shifts_start_time ON shifts(start_time)`,
	}
	for _, indexSQL := range indexes {
		if _, err := s.db.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create shift index: %w", err)
		}
	}

	return nil
}

// StoreShift stores the shift metadata together with its transcript in one
// transaction. Re-ingesting a shift replaces both wholesale.
func (s *ShiftStorage) StoreShift(ctx context.Context, meta transcript.ShiftMetadata, entries []transcript.Entry) error {
	segments, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to marshal transcript: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)

	var traffic any
	if meta.TrafficCountAvg != nil {
		traffic = *meta.TrafficCountAvg
	}

	_, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO shifts
		(shift_id, controller_id, facility, start_time, end_time, position, schedule_type, traffic_count_avg, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		meta.ShiftID,
		meta.ControllerID,
		meta.Facility,
		meta.StartTime.Format(time.RFC3339),
		meta.EndTime.Format(time.RFC3339),
		meta.Position,
		meta.ScheduleType,
		traffic,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert shift: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO transcripts (shift_id, segments, created_at) VALUES (?, ?, ?)`,
		meta.ShiftID,
		string(segments),
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transcript: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit shift: %w", err)
	}

	s.logger.Info("Stored shift",
		logger.String("shift_id", meta.ShiftID),
		logger.String("controller_id", meta.ControllerID),
		logger.Int("segments", len(entries)))
	return nil
}

// FetchMetadata returns the metadata for a shift
func (s *ShiftStorage) FetchMetadata(ctx context.Context, shiftID string) (transcript.ShiftMetadata, error) {
	var meta transcript.ShiftMetadata
	var startTime, endTime string
	var traffic sql.NullFloat64

	err := s.db.QueryRowContext(ctx,
		`SELECT shift_id, controller_id, facility, start_time, end_time, position, schedule_type, traffic_count_avg
		FROM shifts WHERE shift_id = ?`,
		shiftID,
	).Scan(
		&meta.ShiftID,
		&meta.ControllerID,
		&meta.Facility,
		&startTime,
		&endTime,
		&meta.Position,
		&meta.ScheduleType,
		&traffic,
	)
	if err == sql.ErrNoRows {
		return meta, fmt.Errorf("shift %s: %w", shiftID, ErrNotFound)
	}
	if err != nil {
		return meta, fmt.Errorf("failed to query shift: %w", err)
	}

	if meta.StartTime, err = time.Parse(time.RFC3339, startTime); err != nil {
		return meta, fmt.Errorf("failed to parse start_time: %w", err)
	}
	if meta.EndTime, err = time.Parse(time.RFC3339, endTime); err != nil {
		return meta, fmt.Errorf("failed to parse end_time: %w", err)
	}
	if traffic.Valid {
		meta.TrafficCountAvg = &traffic.Float64
	}

	return meta, nil
}

// FetchTranscript returns the ordered transcript entries for a shift
func (s *ShiftStorage) FetchTranscript(ctx context.Context, shiftID string) ([]transcript.Entry, error) {
	var segments string
	err := s.db.QueryRowContext(ctx,
		`SELECT segments FROM transcripts WHERE shift_id = ?`,
		shiftID,
	).Scan(&segments)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("transcript for shift %s: %w", shiftID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query transcript: %w", err)
	}

	var entries []transcript.Entry
	if err := json.Unmarshal([]byte(segments), &entries); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transcript: %w", err)
	}
	return entries, nil
}

// ListShifts returns stored shift metadata, newest first
func (s *ShiftStorage) ListShifts(ctx context.Context, limit, offset int) ([]transcript.ShiftMetadata, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT shift_id FROM shifts ORDER BY start_time DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query shifts: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan shift id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate shifts: %w", err)
	}

	shifts := make([]transcript.ShiftMetadata, 0, len(ids))
	for _, id := range ids {
		meta, err := s.FetchMetadata(ctx, id)
		if err != nil {
			return nil, err
		}
		shifts = append(shifts, meta)
	}
	return shifts, nil
}
