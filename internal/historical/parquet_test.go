package historical

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/require"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"
)

func TestSaveParquet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "spotify.parquet")
	rows := []StockRow{
		{
			Date:          NewDate(2025, time.October, 28),
			OpenPrice:     null.FloatFrom(148),
			HighPrice:     null.FloatFrom(151),
			LowPrice:      null.FloatFrom(147.5),
			ClosePrice:    null.FloatFrom(150),
			Volume:        1_230_000,
			ChangePercent: 1.5,
		},
		{
			Date:          NewDate(2025, time.October, 27),
			HighPrice:     null.FloatFrom(149.95),
			LowPrice:      null.FloatFrom(146.02),
			ClosePrice:    null.FloatFrom(147.78),
			Volume:        987_650,
			ChangePercent: -0.89,
		},
	}

	require.NoError(t, SaveParquet(path, rows))

	fr, err := local.NewLocalFileReader(path)
	require.NoError(t, err)
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, new(ParquetRow), 4)
	require.NoError(t, err)
	defer pr.ReadStop()

	require.Equal(t, int64(2), pr.GetNumRows())

	got := make([]ParquetRow, pr.GetNumRows())
	require.NoError(t, pr.Read(&got))

	require.Equal(t, "2025-10-28", got[0].Date)
	require.NotNil(t, got[0].OpenPrice)
	require.Equal(t, 148.0, *got[0].OpenPrice)
	require.Equal(t, int64(1_230_000), got[0].Volume)
	require.Equal(t, 1.5, got[0].ChangePercent)

	require.Equal(t, "2025-10-27", got[1].Date)
	require.Nil(t, got[1].OpenPrice)
	require.Equal(t, 147.78, *got[1].ClosePrice)
}
