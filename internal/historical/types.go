package historical

import (
	"database/sql/driver"
	"time"

	"github.com/guregu/null/v6"
)

// Column names, shared by both CSV snapshots and the database table.
const (
	ColDate          = "date"
	ColOpenPrice     = "open_price"
	ColHighPrice     = "high_price"
	ColLowPrice      = "low_price"
	ColClosePrice    = "close_price"
	ColVolume        = "volume"
	ColChangePercent = "change_percent"
)

// Columns is the fixed column order kept from scrape to database.
var Columns = []string{
	ColDate,
	ColOpenPrice,
	ColHighPrice,
	ColLowPrice,
	ColClosePrice,
	ColVolume,
	ColChangePercent,
}

// RawRow is one scraped table row, cells as text.
type RawRow struct {
	Date          string `csv:"date"`
	OpenPrice     string `csv:"open_price"`
	HighPrice     string `csv:"high_price"`
	LowPrice      string `csv:"low_price"`
	ClosePrice    string `csv:"close_price"`
	Volume        string `csv:"volume"`
	ChangePercent string `csv:"change_percent"`
}

// StockRow is one normalized trading day.
type StockRow struct {
	Date          Date       `csv:"date"`
	OpenPrice     null.Float `csv:"open_price"`
	HighPrice     null.Float `csv:"high_price"`
	LowPrice      null.Float `csv:"low_price"`
	ClosePrice    null.Float `csv:"close_price"`
	Volume        int64      `csv:"volume"`
	ChangePercent float64    `csv:"change_percent"`
}

// DateLayout is how a Date is written to CSV and to the database.
const DateLayout = "2006-01-02"

// Date is a calendar date without time of day, always in UTC.
type Date struct {
	time.Time
}

// NewDate returns the Date for the given year, month and day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

// MarshalCSV implements gocsv.TypeMarshaller.
func (d Date) MarshalCSV() (string, error) {
	return d.String(), nil
}

// UnmarshalCSV implements gocsv.TypeUnmarshaller.
func (d *Date) UnmarshalCSV(s string) error {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// Value stores the date as ISO text, the way SQLite DATE columns are read back.
func (d Date) Value() (driver.Value, error) {
	return d.String(), nil
}
