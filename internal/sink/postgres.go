package sink

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/MeKo-Tech/hudscan/internal/pipeline"
	"github.com/MeKo-Tech/hudscan/internal/validate"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// DefaultTable is the records table used when none is configured.
const DefaultTable = "telemetry_records"

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,50}$`)

// PostgresSink stores every run in a runs table and its records in a
// records table, in one transaction.
type PostgresSink struct {
	db     *sql.DB
	table  string
	runID  string
	source string
}

// NewPostgres connects to dsn and verifies the connection.
func NewPostgres(ctx context.Context, opts Options) (*PostgresSink, error) {
	if opts.PostgresDSN == "" {
		return nil, errors.New("postgres sink requires a DSN (sink.postgres_dsn or HUDSCAN_SINK_POSTGRES_DSN)")
	}
	table := opts.Table
	if table == "" {
		table = DefaultTable
	}
	if err := ValidateTableName(table); err != nil {
		return nil, err
	}
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	if _, err := uuid.Parse(runID); err != nil {
		return nil, fmt.Errorf("postgres sink requires a UUID run id: %w", err)
	}

	db, err := sql.Open("postgres", opts.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresSink{db: db, table: table, runID: runID, source: opts.Source}, nil
}

// ValidateTableName rejects names that would need quoting tricks.
func ValidateTableName(name string) error {
	if !tableNamePattern.MatchString(name) {
		return fmt.Errorf("invalid table name %q", name)
	}
	return nil
}

// RunsTable returns the name of the runs table paired with records table t.
func RunsTable(t string) string { return t + "_runs" }

// SchemaStatements returns the DDL creating the runs and records tables.
func SchemaStatements(table string) []string {
	runs := pq.QuoteIdentifier(RunsTable(table))
	records := pq.QuoteIdentifier(table)
	return []string{
		`CREATE TABLE IF NOT EXISTS ` + runs + ` (
			run_id      UUID PRIMARY KEY,
			source      TEXT NOT NULL DEFAULT '',
			accepted    INTEGER NOT NULL,
			rejected    INTEGER NOT NULL,
			error_rate  DOUBLE PRECISION,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS ` + records + ` (
			run_id         UUID NOT NULL REFERENCES ` + runs + `(run_id) ON DELETE CASCADE,
			frame_index    INTEGER NOT NULL,
			frame_offset_s DOUBLE PRECISION NOT NULL,
			time_s         DOUBLE PRECISION NOT NULL,
			altitude       TEXT NOT NULL,
			speed          TEXT NOT NULL,
			heart_rate     TEXT NOT NULL,
			respiration    TEXT NOT NULL,
			PRIMARY KEY (run_id, frame_index)
		)`,
	}
}

// recordColumns are copied in this order.
var recordColumns = []string{
	"run_id", "frame_index", "frame_offset_s", "time_s",
	"altitude", "speed", "heart_rate", "respiration",
}

// Write stores the run summary and bulk-copies its records.
func (s *PostgresSink) Write(ctx context.Context, records []validate.Record, summary pipeline.RunSummary) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, stmt := range SchemaStatements(s.table) {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}

	var rate *float64
	if r, ok := summary.ErrorRate(); ok {
		rate = &r
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO `+pq.QuoteIdentifier(RunsTable(s.table))+
			` (run_id, source, accepted, rejected, error_rate) VALUES ($1, $2, $3, $4, $5)`,
		s.runID, s.source, int64(summary.Accepted), int64(summary.Rejected), rate,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", s.runID, err)
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(s.table, recordColumns...))
	if err != nil {
		return fmt.Errorf("failed to prepare copy: %w", err)
	}
	for _, r := range records {
		if _, err = stmt.ExecContext(ctx,
			s.runID, r.FrameIndex, r.FrameOffset, r.TimeOffset,
			r.Altitude, r.Speed, r.HeartRate, r.Respiration,
		); err != nil {
			_ = stmt.Close()
			return fmt.Errorf("failed to copy record for frame %d: %w", r.FrameIndex, err)
		}
	}
	if _, err = stmt.ExecContext(ctx); err != nil {
		_ = stmt.Close()
		return fmt.Errorf("failed to flush copy: %w", err)
	}
	if err = stmt.Close(); err != nil {
		return fmt.Errorf("failed to close copy: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresSink) Close() error { return s.db.Close() }
