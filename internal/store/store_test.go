package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/require"

	"github.com/edubigdata/stocketl/internal/historical"
)

type storedRow struct {
	ID            int64
	Date          string
	OpenPrice     sql.NullFloat64
	HighPrice     sql.NullFloat64
	LowPrice      sql.NullFloat64
	ClosePrice    sql.NullFloat64
	Volume        int64
	ChangePercent float64
}

func sampleRows() []historical.StockRow {
	return []historical.StockRow{
		{
			Date:          historical.NewDate(2025, time.October, 28),
			OpenPrice:     null.FloatFrom(148),
			HighPrice:     null.FloatFrom(151),
			LowPrice:      null.FloatFrom(147.5),
			ClosePrice:    null.FloatFrom(150),
			Volume:        1_230_000,
			ChangePercent: 1.5,
		},
		{
			Date:          historical.NewDate(2025, time.October, 27),
			HighPrice:     null.FloatFrom(149.95),
			LowPrice:      null.FloatFrom(146.02),
			ClosePrice:    null.FloatFrom(147.78),
			Volume:        987_650,
			ChangePercent: -0.89,
		},
	}
}

func openTestDB(t *testing.T, path string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func queryRows(t *testing.T, path string) []storedRow {
	t.Helper()
	db := openTestDB(t, path)

	rs, err := db.Query(`SELECT id, CAST(date AS TEXT), open_price, high_price, low_price, close_price, volume, change_percent
FROM spotify_stock_data ORDER BY id`)
	require.NoError(t, err)
	defer rs.Close()

	var out []storedRow
	for rs.Next() {
		var r storedRow
		require.NoError(t, rs.Scan(&r.ID, &r.Date, &r.OpenPrice, &r.HighPrice, &r.LowPrice, &r.ClosePrice, &r.Volume, &r.ChangePercent))
		out = append(out, r)
	}
	require.NoError(t, rs.Err())
	return out
}

func TestCreateTable(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "db", "spotify_stock.db")
	loader := NewLoader(path)

	require.NoError(t, loader.CreateTable(ctx))
	require.NoError(t, loader.CreateTable(ctx))

	db := openTestDB(t, path)
	rs, err := db.Query(`PRAGMA table_info(` + TableName + `)`)
	require.NoError(t, err)
	defer rs.Close()

	var names, types []string
	for rs.Next() {
		var (
			cid     int
			name    string
			typ     string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		require.NoError(t, rs.Scan(&cid, &name, &typ, &notNull, &dflt, &pk))
		names = append(names, name)
		types = append(types, typ)
	}
	require.NoError(t, rs.Err())

	require.Equal(t, append([]string{"id"}, historical.Columns...), names)
	require.Equal(t, []string{"INTEGER", "DATE", "REAL", "REAL", "REAL", "REAL", "INTEGER", "REAL"}, types)
}

func TestStatementsUseTableName(t *testing.T) {
	require.Contains(t, Schema, "CREATE TABLE IF NOT EXISTS "+TableName+" (")
	require.Equal(t,
		"INSERT INTO spotify_stock_data (date, open_price, high_price, low_price, close_price, volume, change_percent)\n"+
			"VALUES (?, ?, ?, ?, ?, ?, ?)",
		insertStatement)
}

func TestCreateTable_KeepsExistingRows(t *testing.T) {
	ctx := context.Background()
	loader := NewLoader(filepath.Join(t.TempDir(), "stock.db"))

	require.NoError(t, loader.CreateTable(ctx))
	_, err := loader.Insert(ctx, sampleRows())
	require.NoError(t, err)

	require.NoError(t, loader.CreateTable(ctx))
	require.Len(t, queryRows(t, loader.Path()), 2)
}

func TestInsert(t *testing.T) {
	ctx := context.Background()
	loader := NewLoader(filepath.Join(t.TempDir(), "stock.db"))
	require.NoError(t, loader.CreateTable(ctx))

	n, err := loader.Insert(ctx, sampleRows())
	require.NoError(t, err)
	require.Equal(t, 2, n)

	got := queryRows(t, loader.Path())
	require.Equal(t, []storedRow{
		{
			ID:            1,
			Date:          "2025-10-28",
			OpenPrice:     sql.NullFloat64{Float64: 148, Valid: true},
			HighPrice:     sql.NullFloat64{Float64: 151, Valid: true},
			LowPrice:      sql.NullFloat64{Float64: 147.5, Valid: true},
			ClosePrice:    sql.NullFloat64{Float64: 150, Valid: true},
			Volume:        1_230_000,
			ChangePercent: 1.5,
		},
		{
			ID:            2,
			Date:          "2025-10-27",
			HighPrice:     sql.NullFloat64{Float64: 149.95, Valid: true},
			LowPrice:      sql.NullFloat64{Float64: 146.02, Valid: true},
			ClosePrice:    sql.NullFloat64{Float64: 147.78, Valid: true},
			Volume:        987_650,
			ChangePercent: -0.89,
		},
	}, got)

	db := openTestDB(t, loader.Path())
	var typ string
	require.NoError(t, db.QueryRow(`SELECT typeof(date) FROM spotify_stock_data WHERE id = 1`).Scan(&typ))
	require.Equal(t, "text", typ)
}

func TestInsert_AppendsDuplicates(t *testing.T) {
	ctx := context.Background()
	loader := NewLoader(filepath.Join(t.TempDir(), "stock.db"))
	require.NoError(t, loader.CreateTable(ctx))

	rows := sampleRows()[:1]
	_, err := loader.Insert(ctx, rows)
	require.NoError(t, err)
	_, err = loader.Insert(ctx, rows)
	require.NoError(t, err)

	got := queryRows(t, loader.Path())
	require.Len(t, got, 2)
	require.NotEqual(t, got[0].ID, got[1].ID)

	got[1].ID = got[0].ID
	require.Equal(t, got[0], got[1])
}

func TestInsert_Empty(t *testing.T) {
	ctx := context.Background()
	loader := NewLoader(filepath.Join(t.TempDir(), "stock.db"))
	require.NoError(t, loader.CreateTable(ctx))

	n, err := loader.Insert(ctx, nil)
	require.NoError(t, err)
	require.Zero(t, n)
	require.Empty(t, queryRows(t, loader.Path()))
}

func TestInsert_WithoutTableFails(t *testing.T) {
	loader := NewLoader(filepath.Join(t.TempDir(), "stock.db"))

	_, err := loader.Insert(context.Background(), sampleRows())
	require.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "processed.csv")
	require.NoError(t, historical.SaveProcessedCSV(csvPath, sampleRows()))

	loader := NewLoader(filepath.Join(dir, "stock.db"))
	require.NoError(t, loader.CreateTable(ctx))

	n, err := loader.LoadFile(ctx, csvPath)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	got := queryRows(t, loader.Path())
	require.Len(t, got, 2)
	require.Equal(t, "2025-10-28", got[0].Date)
	require.False(t, got[1].OpenPrice.Valid)
}

func TestLoadFile_MissingFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	loader := NewLoader(filepath.Join(dir, "stock.db"))
	require.NoError(t, loader.CreateTable(ctx))

	n, err := loader.LoadFile(ctx, filepath.Join(dir, "missing.csv"))
	require.NoError(t, err)
	require.Zero(t, n)
	require.Empty(t, queryRows(t, loader.Path()))
}
