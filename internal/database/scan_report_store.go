package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/openclassifieds/gatekeeper/internal/models"
)

// ScanReportStore persists scan reports as JSON documents
type ScanReportStore struct {
	db *DB
}

// NewScanReportStore creates a new scan report store
func NewScanReportStore(db *DB) *ScanReportStore {
	return &ScanReportStore{db: db}
}

// Save persists a finished report
func (s *ScanReportStore) Save(ctx context.Context, report *models.ScanReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode scan report: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO scan_reports (mode, report_json) VALUES ($1, $2)`,
		report.Mode, payload)
	if err != nil {
		return fmt.Errorf("save scan report: %w", err)
	}
	return nil
}

// Latest returns the most recently persisted report; nil when none exists
func (s *ScanReportStore) Latest(ctx context.Context) (*models.ScanReport, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT report_json FROM scan_reports
		ORDER BY created_at DESC
		LIMIT 1`).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load latest scan report: %w", err)
	}

	var report models.ScanReport
	if err := json.Unmarshal(payload, &report); err != nil {
		return nil, fmt.Errorf("decode scan report: %w", err)
	}
	return &report, nil
}
