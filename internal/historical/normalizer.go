package historical

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/guregu/null/v6"
	"github.com/rs/zerolog/log"
)

// ErrNormalize is returned when a strict field cannot be parsed.
var ErrNormalize = errors.New("normalization failed")

// RawDateLayout is the day/month/year layout the source page uses.
const RawDateLayout = "2/1/2006"

// FieldPolicy decides what happens when a cell cannot be parsed.
type FieldPolicy int

const (
	// PolicyStrict fails the whole normalization.
	PolicyStrict FieldPolicy = iota
	// PolicyCoerceNull stores null and carries on.
	PolicyCoerceNull
)

func (p FieldPolicy) String() string {
	switch p {
	case PolicyStrict:
		return "strict"
	case PolicyCoerceNull:
		return "coerce-null"
	}
	return fmt.Sprintf("FieldPolicy(%d)", int(p))
}

// fieldRule binds a column to its raw cell, its parser and its failure policy.
type fieldRule struct {
	column string
	policy FieldPolicy
	cell   func(RawRow) string
	parse  func(string, *StockRow) error
	// setNull is only needed for PolicyCoerceNull rules.
	setNull func(*StockRow)
}

// fieldRules is in column order. Prices are lenient while date, volume and
// change percent are strict.
var fieldRules = []fieldRule{
	{
		column: ColDate,
		policy: PolicyStrict,
		cell:   func(r RawRow) string { return r.Date },
		parse: func(s string, dst *StockRow) error {
			d, err := ParseDate(s)
			dst.Date = d
			return err
		},
	},
	priceRule(ColOpenPrice, func(r RawRow) string { return r.OpenPrice }, func(dst *StockRow) *null.Float { return &dst.OpenPrice }),
	priceRule(ColHighPrice, func(r RawRow) string { return r.HighPrice }, func(dst *StockRow) *null.Float { return &dst.HighPrice }),
	priceRule(ColLowPrice, func(r RawRow) string { return r.LowPrice }, func(dst *StockRow) *null.Float { return &dst.LowPrice }),
	priceRule(ColClosePrice, func(r RawRow) string { return r.ClosePrice }, func(dst *StockRow) *null.Float { return &dst.ClosePrice }),
	{
		column: ColVolume,
		policy: PolicyStrict,
		cell:   func(r RawRow) string { return r.Volume },
		parse: func(s string, dst *StockRow) error {
			v, err := ParseVolume(s)
			dst.Volume = v
			return err
		},
	},
	{
		column: ColChangePercent,
		policy: PolicyStrict,
		cell:   func(r RawRow) string { return r.ChangePercent },
		parse: func(s string, dst *StockRow) error {
			v, err := ParseChangePercent(s)
			dst.ChangePercent = v
			return err
		},
	},
}

func priceRule(column string, cell func(RawRow) string, field func(*StockRow) *null.Float) fieldRule {
	return fieldRule{
		column: column,
		policy: PolicyCoerceNull,
		cell:   cell,
		parse: func(s string, dst *StockRow) error {
			v, err := ParsePrice(s)
			if err != nil {
				return err
			}
			*field(dst) = null.FloatFrom(v)
			return nil
		},
		setNull: func(dst *StockRow) {
			*field(dst) = null.Float{}
		},
	}
}

// Policies returns the failure policy of every column, keyed by column name.
func Policies() map[string]FieldPolicy {
	out := make(map[string]FieldPolicy, len(fieldRules))
	for _, rule := range fieldRules {
		out[rule.column] = rule.policy
	}
	return out
}

// Normalize converts scraped rows into typed rows, one for one and in order.
// A nil input yields a nil output.
func Normalize(raw []RawRow) ([]StockRow, error) {
	if raw == nil {
		return nil, nil
	}

	rows := make([]StockRow, len(raw))
	for i, r := range raw {
		for _, rule := range fieldRules {
			value := rule.cell(r)
			err := rule.parse(value, &rows[i])
			if err == nil {
				continue
			}

			if rule.policy == PolicyStrict {
				return nil, fmt.Errorf("%w: row %d, column %s, value %q: %v", ErrNormalize, i, rule.column, value, err)
			}

			rule.setNull(&rows[i])
			log.Debug().
				Int("row", i).
				Str("column", rule.column).
				Str("value", value).
				Msg("unparsable value stored as null")
		}
	}

	return rows, nil
}

// ParseDate parses a day/month/year date such as "28/10/2025".
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(RawDateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{t}, nil
}

// ParseVolume parses volumes like "1,234", "1.23M" or "500K".
// Suffixed values are rounded to the nearest share.
func ParseVolume(s string) (int64, error) {
	v := strings.ReplaceAll(strings.TrimSpace(s), ",", "")

	var multiplier float64
	switch {
	case strings.Contains(v, "M"):
		v = strings.ReplaceAll(v, "M", "")
		multiplier = 1_000_000
	case strings.Contains(v, "K"):
		v = strings.ReplaceAll(v, "K", "")
		multiplier = 1_000
	default:
		return strconv.ParseInt(v, 10, 64)
	}

	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, err
	}
	return int64(math.Round(f * multiplier)), nil
}

// ParseChangePercent parses "+1.23%" into 1.23, keeping the sign.
func ParseChangePercent(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), "%", ""), 64)
}

// ParsePrice parses a price, ignoring thousands separators.
func ParsePrice(s string) (float64, error) {
	v := strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, strconv.ErrSyntax
	}
	return f, nil
}
