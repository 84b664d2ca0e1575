package historical

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

// ParquetRow is the columnar form of a StockRow. Nil prices are stored as nulls.
type ParquetRow struct {
	Date          string   `parquet:"name=date, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	OpenPrice     *float64 `parquet:"name=open_price, type=DOUBLE"`
	HighPrice     *float64 `parquet:"name=high_price, type=DOUBLE"`
	LowPrice      *float64 `parquet:"name=low_price, type=DOUBLE"`
	ClosePrice    *float64 `parquet:"name=close_price, type=DOUBLE"`
	Volume        int64    `parquet:"name=volume, type=INT64, encoding=DELTA_BINARY_PACKED"`
	ChangePercent float64  `parquet:"name=change_percent, type=DOUBLE"`
}

// SaveParquet writes the normalized rows to a single GZIP-compressed parquet file.
func SaveParquet(path string, rows []StockRow) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory structure: %w", err)
	}

	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("failed to create parquet file: %w", err)
	}
	defer fw.Close()

	pw, err := writer.NewParquetWriter(fw, new(ParquetRow), 4)
	if err != nil {
		return fmt.Errorf("failed to create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_GZIP

	for _, row := range rows {
		if err := pw.Write(toParquetRow(row)); err != nil {
			return fmt.Errorf("failed to write parquet data: %w", err)
		}
	}

	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}

	log.Info().Str("path", path).Int("rows", len(rows)).Msg("saved parquet snapshot")
	return nil
}

func toParquetRow(row StockRow) ParquetRow {
	return ParquetRow{
		Date:          row.Date.String(),
		OpenPrice:     row.OpenPrice.Ptr(),
		HighPrice:     row.HighPrice.Ptr(),
		LowPrice:      row.LowPrice.Ptr(),
		ClosePrice:    row.ClosePrice.Ptr(),
		Volume:        row.Volume,
		ChangePercent: row.ChangePercent,
	}
}
