package output

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/avitrack/avitrack/internal/config"
	"github.com/avitrack/avitrack/internal/types"
)

// PostgresWriter persists the report into a postgres table, one row
// per matched listing plus one listing-less row for cities without
// matches.
type PostgresWriter struct {
	writerConfig *config.WriterConfig
	logger       *slog.Logger
}

// NewPostgresWriter returns a new PostgresWriter
func NewPostgresWriter(wc *config.WriterConfig) *PostgresWriter {
	return &PostgresWriter{
		writerConfig: wc,
		logger:       slog.With(slog.String("writer", DATABASE_WRITER_TYPE)),
	}
}

func (pw *PostgresWriter) Write(report *types.RunReport) error {
	if pw.writerConfig.DryRun {
		pw.logger.Info(fmt.Sprintf("dry run, would write %d city outcomes", len(report.Outcomes)))
		return nil
	}
	db, err := sql.Open("pgx", pw.writerConfig.URI)
	if err != nil {
		return fmt.Errorf("open postgres connection: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	if err := ensureSchema(ctx, db); err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO ad_positions (run_started_at, target, city, status, attempts, position, title, url, promoted, seller_name, seller_url, error_detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`)
	if err != nil {
		return fmt.Errorf("prepare insert statement: %w", err)
	}
	defer stmt.Close()

	total := 0
	for _, o := range report.Outcomes {
		for _, row := range outcomeRows(o) {
			var pos *int
			if row[3] != "" {
				p, _ := strconv.Atoi(row[3])
				pos = &p
			}
			if _, err = stmt.ExecContext(ctx,
				report.StartedAt, report.Target,
				row[0], row[1], o.Attempts, pos, row[4], row[5], row[6] == "true", row[7], row[8], row[9],
			); err != nil {
				return fmt.Errorf("insert outcome for city %q: %w", o.City.Slug, err)
			}
			total++
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	pw.logger.Info(fmt.Sprintf("wrote %d rows", total))
	return nil
}

func ensureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS ad_positions (
			id BIGSERIAL PRIMARY KEY,
			run_started_at TIMESTAMPTZ NOT NULL,
			target TEXT NOT NULL,
			city TEXT NOT NULL,
			status TEXT NOT NULL,
			attempts INT NOT NULL,
			position INT,
			title TEXT NOT NULL DEFAULT '',
			url TEXT NOT NULL DEFAULT '',
			promoted BOOLEAN NOT NULL DEFAULT FALSE,
			seller_name TEXT NOT NULL DEFAULT '',
			seller_url TEXT NOT NULL DEFAULT '',
			error_detail TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_ad_positions_city ON ad_positions(city);
	`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
