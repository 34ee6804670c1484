package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/skysift/shiftwatch/internal/analysis"
	"github.com/skysift/shiftwatch/pkg/logger"
)

// Ensure the storage satisfies the pipeline's store contract
var _ analysis.ReportStore = (*ReportStorage)(nil)

// ReportStorage handles storage of assembled analysis reports. Each report
// is one JSON document in a single row, replaced wholesale on re-analysis,
// so readers never observe a half-written report. A few columns are
// denormalized from the document purely for filtering.
type ReportStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// ReportFilter narrows report listings
type ReportFilter struct {
	MinFatigueScore   int
	PriorityLevel     string
	RequiresAttention bool
	Limit             int
	Offset            int
}

// NewReportStorage creates a new SQLite report storage
func NewReportStorage(db *sql.DB, log *logger.Logger) (*ReportStorage, error) {
	storage := &ReportStorage{
		db:     db,
		logger: log.Named("sqlite-reports"),
	}
	if err := storage.initDB(); err != nil {
		return nil, fmt.Errorf("failed to initialize report storage: %w", err)
	}
	return storage, nil
}

// initDB initializes the database tables
func (s *ReportStorage) initDB() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS reports (
			shift_id TEXT PRIMARY KEY,
			report TEXT NOT NULL,
			fatigue_score INTEGER NOT NULL,
			safety_score INTEGER NOT NULL,
			priority_level TEXT NOT NULL,
			requires_attention INTEGER NOT NULL,
			requires_immediate_review INTEGER NOT NULL,
			generated_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create reports table: %w", err)
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_reports_fatigue_score ON reports(fatigue_score)`,
		`CREATE INDEX IF NOT EXISTS idx_reports_priority_level ON reports(priority_level)`,
		`CREATE INDEX IF NOT EXISTS idx_reports_requires_attention ON reports(requires_attention)`,
	}
	for _, indexSQL := range indexes {
		if _, err := s.db.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create report index: %w", err)
		}
	}

	return nil
}

// Put stores an assembled report, replacing any previous report for the
// same shift in a single statement
func (s *ReportStorage) Put(ctx context.Context, report *analysis.AnalysisReport) error {
	doc, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO reports
		(shift_id, report, fatigue_score, safety_score, priority_level, requires_attention, requires_immediate_review, generated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		report.ShiftID,
		string(doc),
		report.Fatigue.Score,
		report.Safety.Score,
		report.Summary.PriorityLevel,
		boolToInt(report.Fatigue.RequiresAttention),
		boolToInt(report.Safety.RequiresImmediateReview),
		report.GeneratedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}

	s.logger.Info("Stored analysis report",
		logger.String("shift_id", report.ShiftID),
		logger.Int("fatigue_score", report.Fatigue.Score),
		logger.Int("safety_score", report.Safety.Score),
		logger.String("priority_level", report.Summary.PriorityLevel))
	return nil
}

// Get returns the report for a shift, or analysis.ErrReportNotFound
func (s *ReportStorage) Get(ctx context.Context, shiftID string) (*analysis.AnalysisReport, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT report FROM reports WHERE shift_id = ?`,
		shiftID,
	).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("shift %s: %w", shiftID, analysis.ErrReportNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query report: %w", err)
	}

	var report analysis.AnalysisReport
	if err := json.Unmarshal([]byte(doc), &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}
	return &report, nil
}

// List returns reports matching the filter, newest first
func (s *ReportStorage) List(ctx context.Context, filter ReportFilter) ([]*analysis.AnalysisReport, error) {
	query := `SELECT report FROM reports WHERE 1=1`
	var args []any

	if filter.MinFatigueScore > 0 {
		query += ` AND fatigue_score >= ?`
		args = append(args, filter.MinFatigueScore)
	}
	if filter.PriorityLevel != "" {
		query += ` AND priority_level = ?`
		args = append(args, filter.PriorityLevel)
	}
	if filter.RequiresAttention {
		query += ` AND requires_attention = 1`
	}
	query += ` ORDER BY generated_at DESC LIMIT ? OFFSET ?`
	args = append(args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	var reports []*analysis.AnalysisReport
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		var report analysis.AnalysisReport
		if err := json.Unmarshal([]byte(doc), &report); err != nil {
			return nil, fmt.Errorf("failed to unmarshal report: %w", err)
		}
		reports = append(reports, &report)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reports: %w", err)
	}
	return reports, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
