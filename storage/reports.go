package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"videoModerate/config"
	"videoModerate/core"
)

// ReportStore 审核报告持久化
type ReportStore interface {
	SaveReport(ctx context.Context, report *core.Report) error
	LoadReport(ctx context.Context, videoID string) (*core.Report, error)
	Close() error
}

// NewReportStore 在配置了PostgresURL时返回数据库实现，否则返回nil表示仅落盘
func NewReportStore(cfg *config.Config) (ReportStore, error) {
	if strings.TrimSpace(cfg.PostgresURL) == "" {
		return nil, nil
	}
	return newPostgresReportStore(cfg.PostgresURL)
}

// PostgresReportStore 基于Postgres jsonb的报告存储
type PostgresReportStore struct {
	conn *pgx.Conn
}

func newPostgresReportStore(postgresURL string) (*PostgresReportStore, error) {
	ctx := context.Background()
	conn, err := pgx.Connect(ctx, postgresURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if _, err := conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS safety_reports (
			video_id TEXT PRIMARY KEY,
			report JSONB NOT NULL,
			created_at TIMESTAMPTZ DEFAULT now(),
			updated_at TIMESTAMPTZ DEFAULT now()
		)`); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("create safety_reports table: %w", err)
	}
	return &PostgresReportStore{conn: conn}, nil
}

func (s *PostgresReportStore) SaveReport(ctx context.Context, report *core.Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %v", err)
	}
	_, err = s.conn.Exec(ctx, `
		INSERT INTO safety_reports (video_id, report)
		VALUES ($1, $2)
		ON CONFLICT (video_id) DO UPDATE SET report = EXCLUDED.report, updated_at = now()`,
		report.VideoID, data)
	if err != nil {
		return fmt.Errorf("upsert report: %w", err)
	}
	return nil
}

func (s *PostgresReportStore) LoadReport(ctx context.Context, videoID string) (*core.Report, error) {
	var data []byte
	err := s.conn.QueryRow(ctx,
		"SELECT report FROM safety_reports WHERE video_id = $1", videoID).Scan(&data)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("query report: %w", err)
	}
	var report core.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %v", err)
	}
	return &report, nil
}

func (s *PostgresReportStore) Close() error {
	return s.conn.Close(context.Background())
}
