// Package csvfile parses uploaded price spreadsheets exported as CSV.
//
// The separator is sniffed from the header: ";" or ",". With ";" the decimal mark is
// decided from the data: any comma in a price column means the Brazilian decimal comma
// ("1.234,56"), otherwise prices use a decimal point. Values that do not fit the chosen
// notation, including NaN and Inf, drop their row.
// Files may be UTF-8 or Latin-1. Headers are matched case- and accent-insensitively,
// in Portuguese (Data, Hora, Abertura, Máxima, Mínima, Fechamento, Volume) or English.
package csvfile

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/newthinker/triggerlab/internal/core"
	"github.com/newthinker/triggerlab/internal/series"
)

const (
	colDate   = "date"
	colTime   = "time"
	colOpen   = "open"
	colHigh   = "high"
	colLow    = "low"
	colClose  = "close"
	colVolume = "volume"
)

var headerAliases = map[string]string{
	"data":       colDate,
	"date":       colDate,
	"hora":       colTime,
	"time":       colTime,
	"abertura":   colOpen,
	"open":       colOpen,
	"maxima":     colHigh,
	"high":       colHigh,
	"minima":     colLow,
	"low":        colLow,
	"fechamento": colClose,
	"close":      colClose,
	"volume":     colVolume,
}

var dateLayouts = []string{
	"02/01/2006", "2/1/2006", "02-01-2006", "02.01.2006", "2006-01-02",
	"02/01/2006 15:04:05", "02/01/2006 15:04", "2006-01-02 15:04:05", "2006-01-02T15:04:05",
}

var timeLayouts = []string{"15:04:05", "15:04"}

// Options controls parsing
type Options struct {
	Symbol string
	// Intraday requires a time column and keeps every bar; otherwise days are collapsed
	Intraday bool
}

// Result is a parsed upload
type Result struct {
	Bars []core.OHLCV
	// Dropped counts rows skipped for unparseable dates or prices
	Dropped int
}

// Parse reads an uploaded CSV into ascending bars. Bad rows are dropped and counted;
// a missing required column fails the whole file.
func Parse(r io.Reader, opts Options) (*Result, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, core.WrapError(core.ErrMalformedInput, err)
	}
	if !utf8.Valid(raw) {
		if raw, err = charmap.ISO8859_1.NewDecoder().Bytes(raw); err != nil {
			return nil, core.WrapError(core.ErrMalformedInput, err)
		}
	}
	raw = bytes.TrimPrefix(raw, []byte("\uFEFF"))

	sep := dialect(raw)
	reader := csv.NewReader(bytes.NewReader(raw))
	reader.Comma = sep
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, core.WrapError(core.ErrMalformedInput, fmt.Errorf("reading header: %w", err))
	}
	cols, err := mapColumns(header, opts.Intraday)
	if err != nil {
		return nil, err
	}
	records, err := reader.ReadAll()
	if err != nil {
		return nil, core.WrapError(core.ErrMalformedInput, err)
	}

	decimalComma := sep == ';' && pricesUseComma(records, cols)

	res := &Result{}
	var bars []core.OHLCV
	for _, rec := range records {
		bar, ok := parseRow(rec, cols, decimalComma)
		if !ok {
			res.Dropped++
			continue
		}
		bar.Symbol = opts.Symbol
		bars = append(bars, bar)
	}

	bars = series.Normalize(bars)
	if opts.Intraday {
		for i := range bars {
			bars[i].Interval = core.Interval15m
		}
	} else {
		bars = series.CollapseDaily(bars)
		for i := range bars {
			bars[i].Interval = core.IntervalDaily
		}
	}
	res.Bars = bars
	return res, nil
}

// dialect sniffs the separator from the header line
func dialect(raw []byte) rune {
	line := raw
	if i := bytes.IndexByte(raw, '\n'); i >= 0 {
		line = raw[:i]
	}
	if bytes.Contains(line, []byte(";")) {
		return ';'
	}
	return ','
}

// pricesUseComma reports whether any price cell holds a comma
func pricesUseComma(records [][]string, cols map[string]int) bool {
	for _, rec := range records {
		for _, name := range []string{colOpen, colHigh, colLow, colClose} {
			if i := cols[name]; i < len(rec) && strings.Contains(rec[i], ",") {
				return true
			}
		}
	}
	return false
}

func mapColumns(header []string, intraday bool) (map[string]int, error) {
	cols := make(map[string]int)
	for i, h := range header {
		if name, ok := headerAliases[fold(h)]; ok {
			if _, dup := cols[name]; !dup {
				cols[name] = i
			}
		}
	}

	required := []string{colDate, colOpen, colHigh, colLow, colClose}
	if intraday {
		required = append(required, colTime)
	}
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			return nil, core.WrapError(core.ErrMalformedInput, fmt.Errorf("missing %s column", name))
		}
	}
	return cols, nil
}

// fold lowercases and strips accents: "Máxima" -> "maxima"
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, strings.TrimSpace(s))
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

func parseRow(rec []string, cols map[string]int, decimalComma bool) (core.OHLCV, bool) {
	field := func(name string) (string, bool) {
		i, ok := cols[name]
		if !ok || i >= len(rec) {
			return "", false
		}
		return strings.TrimSpace(rec[i]), true
	}

	ds, _ := field(colDate)
	ts, err := parseDate(ds)
	if err != nil {
		return core.OHLCV{}, false
	}
	if hs, ok := field(colTime); ok {
		c, err := parseClock(hs)
		if err != nil {
			return core.OHLCV{}, false
		}
		ts = c.On(ts)
	}

	var prices [4]float64
	for i, name := range []string{colOpen, colHigh, colLow, colClose} {
		s, _ := field(name)
		v, err := parseNumber(s, decimalComma)
		if err != nil {
			return core.OHLCV{}, false
		}
		prices[i] = v
	}

	var volume int64
	if s, ok := field(colVolume); ok && s != "" {
		if v, err := parseNumber(s, decimalComma); err == nil {
			volume = int64(v)
		}
	}

	return core.OHLCV{
		Open:   prices[0],
		High:   prices[1],
		Low:    prices[2],
		Close:  prices[3],
		Volume: volume,
		Time:   ts,
	}, true
}

// parseDate reads day-first dates; a time-of-day part in the cell is kept
func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}

func parseClock(s string) (series.Clock, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return series.ClockOf(t), nil
		}
	}
	return series.Clock{}, fmt.Errorf("unparseable time %q", s)
}

var (
	commaDecimal = regexp.MustCompile(`^[+-]?(\d+|\d{1,3}(\.\d{3})+)(,\d+)?$`)
	pointDecimal = regexp.MustCompile(`^[+-]?(\d+|\d{1,3}(,\d{3})+)(\.\d+)?$`)
)

// parseNumber reads a finite number in the file's notation. Thousands separators must
// group by three, so a stray decimal point in a comma file is an error, not a rescale.
func parseNumber(s string, decimalComma bool) (float64, error) {
	if decimalComma {
		if !commaDecimal.MatchString(s) {
			return 0, fmt.Errorf("not a decimal-comma number: %q", s)
		}
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	} else {
		if !pointDecimal.MatchString(s) {
			return 0, fmt.Errorf("not a number: %q", s)
		}
		s = strings.ReplaceAll(s, ",", "")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite number %q", s)
	}
	return v, nil
}
