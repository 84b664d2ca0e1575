// Package store loads normalized stock rows into SQLite.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/edubigdata/stocketl/internal/historical"
)

// TableName is the only table the loader writes to.
const TableName = "spotify_stock_data"

//go:embed schema.sql
var Schema string

var insertStatement = "INSERT INTO " + TableName + " (" + strings.Join(historical.Columns, ", ") + ")\n" +
	"VALUES (?" + strings.Repeat(", ?", len(historical.Columns)-1) + ")"

// Loader owns the database file. Every call opens and closes its own connection.
type Loader struct {
	path string
}

// NewLoader creates a loader for the SQLite file at path.
func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Path returns the database file path.
func (l *Loader) Path() string {
	return l.path
}

func (l *Loader) open() (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// CreateTable creates the table if it does not exist. An existing table is left as is.
func (l *Loader) CreateTable(ctx context.Context) error {
	db, err := l.open()
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

// Insert appends one row per record and commits once at the end.
// Rows are never merged with existing data.
func (l *Loader) Insert(ctx context.Context, rows []historical.StockRow) (int, error) {
	db, err := l.open()
	if err != nil {
		return 0, err
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertStatement)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, row := range rows {
		_, err := stmt.ExecContext(ctx,
			row.Date,
			row.OpenPrice,
			row.HighPrice,
			row.LowPrice,
			row.ClosePrice,
			row.Volume,
			row.ChangePercent,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}

	log.Info().Str("path", l.path).Int("rows", len(rows)).Msg("data inserted into database")
	return len(rows), nil
}

// LoadFile inserts the rows of a processed CSV snapshot.
// A missing file is reported and skipped, not treated as an error.
func (l *Loader) LoadFile(ctx context.Context, csvPath string) (int, error) {
	rows, err := historical.LoadProcessedCSV(csvPath)
	if errors.Is(err, os.ErrNotExist) {
		log.Warn().Str("path", csvPath).Msg("processed data file not found, nothing inserted")
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	return l.Insert(ctx, rows)
}
