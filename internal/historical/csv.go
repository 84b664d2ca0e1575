package historical

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
	"github.com/rs/zerolog/log"
)

// SaveRawCSV writes the scraped rows to path, replacing any previous snapshot.
// Columns follow Columns, not the page, so close comes after low.
func SaveRawCSV(path string, rows []RawRow) error {
	return saveCSV(path, rows)
}

// SaveProcessedCSV writes the normalized rows to path, replacing any previous snapshot.
func SaveProcessedCSV(path string, rows []StockRow) error {
	return saveCSV(path, rows)
}

// LoadProcessedCSV reads a snapshot written by SaveProcessedCSV.
func LoadProcessedCSV(path string) ([]StockRow, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	rows := []StockRow{}
	if err := gocsv.UnmarshalFile(file, &rows); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	return rows, nil
}

// saveCSV writes a header of column names, then one line per row.
func saveCSV[T any](path string, rows []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	if err := gocsv.MarshalFile(&rows, file); err != nil {
		return fmt.Errorf("failed to write data: %w", err)
	}

	log.Info().Str("path", path).Int("rows", len(rows)).Msg("saved csv snapshot")
	return nil
}
