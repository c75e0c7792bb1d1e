package csvfile

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"github.com/newthinker/triggerlab/internal/core"
)

const intradayBR = `Data;Hora;Abertura;Máxima;Mínima;Fechamento;Volume
03/01/2024;10:15;100,50;101,00;100,20;100,80;1.200
02/01/2024;10:00;100,00;100,60;99,90;100,40;1.000
02/01/2024;10:15;100,40;100,70;100,10;100,30;800
02/01/2024;10:15;999,00;999,00;999,00;999,00;1
xx/01/2024;10:30;100,00;100,00;100,00;100,00;1
02/01/2024;10:45;abc;100,00;100,00;100,00;1
`

func TestParse_IntradayBrazilian(t *testing.T) {
	res, err := Parse(strings.NewReader(intradayBR), Options{Symbol: "PETR4", Intraday: true})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Dropped)
	require.Len(t, res.Bars, 3)

	first := res.Bars[0]
	assert.Equal(t, "PETR4", first.Symbol)
	assert.Equal(t, core.Interval15m, first.Interval)
	assert.Equal(t, time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC), first.Time)
	assert.InDelta(t, 100.0, first.Open, 1e-9)
	assert.InDelta(t, 100.6, first.High, 1e-9)
	assert.Equal(t, int64(1000), first.Volume)

	// duplicate timestamp keeps the first row in file order
	assert.InDelta(t, 100.4, res.Bars[1].Open, 1e-9)
	assert.Equal(t, time.Date(2024, 1, 3, 10, 15, 0, 0, time.UTC), res.Bars[2].Time)
}

func TestParse_Latin1(t *testing.T) {
	encoded, err := charmap.ISO8859_1.NewEncoder().String(intradayBR)
	require.NoError(t, err)

	res, err := Parse(bytes.NewReader([]byte(encoded)), Options{Intraday: true})
	require.NoError(t, err)
	assert.Len(t, res.Bars, 3)
}

func TestParse_DailyEnglish(t *testing.T) {
	in := "Date,Open,High,Low,Close\n" +
		"2024-01-02,10.0,11.0,9.5,10.5\n" +
		"2024-01-03,10.5,12.0,10.0,11.5\n" +
		"2024-01-03,1,1,1,1\n"

	res, err := Parse(strings.NewReader(in), Options{})
	require.NoError(t, err)
	require.Len(t, res.Bars, 2)
	assert.Equal(t, core.IntervalDaily, res.Bars[1].Interval)
	assert.InDelta(t, 11.5, res.Bars[1].Close, 1e-9)
}

func TestParse_IntradayRequiresTimeColumn(t *testing.T) {
	in := "Data;Abertura;Máxima;Mínima;Fechamento\n02/01/2024;1;1;1;1\n"

	_, err := Parse(strings.NewReader(in), Options{Intraday: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrMalformedInput)

	res, err := Parse(strings.NewReader(in), Options{})
	require.NoError(t, err)
	assert.Len(t, res.Bars, 1)
}

func TestParse_MissingPriceColumn(t *testing.T) {
	_, err := Parse(strings.NewReader("Data;Abertura\n02/01/2024;1\n"), Options{})
	assert.ErrorIs(t, err, core.ErrMalformedInput)
}

func TestParse_EmptyInput(t *testing.T) {
	_, err := Parse(strings.NewReader(""), Options{})
	assert.ErrorIs(t, err, core.ErrMalformedInput)
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in           string
		decimalComma bool
		want         float64
		wantErr      bool
	}{
		{"1.234,56", true, 1234.56, false},
		{"100,5", true, 100.5, false},
		{"-0,25", true, -0.25, false},
		{"1.234.567", true, 1234567, false},
		{"1,234.56", false, 1234.56, false},
		{"100.50", false, 100.5, false},
		{"42", false, 42, false},
		{"100.50", true, 0, true},
		{"1.2,5", true, 0, true},
		{"1,2.5", false, 0, true},
		{"NaN", false, 0, true},
		{"+Inf", false, 0, true},
		{"Inf", true, 0, true},
		{"1e400", false, 0, true},
		{"", false, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			v, err := parseNumber(tt.in, tt.decimalComma)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, v, 1e-9)
		})
	}
}

func TestParse_NonFinitePricesDropRow(t *testing.T) {
	in := `Data;Hora;Abertura;Máxima;Mínima;Fechamento
02/01/2024;10:00;100,00;100,60;99,90;100,40
02/01/2024;10:15;100,40;100,70;100,10;NaN
02/01/2024;10:30;Inf;100,70;100,10;100,30
02/01/2024;10:45;100,30;+Inf;100,10;100,30
`
	res, err := Parse(strings.NewReader(in), Options{Intraday: true})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Dropped)
	require.Len(t, res.Bars, 1)
	assert.InDelta(t, 100.4, res.Bars[0].Close, 1e-9)

	res, err = Parse(strings.NewReader("Date,Open,High,Low,Close\n2024-01-02,1,1,1,NaN\n2024-01-03,1,2,1,2\n"), Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Dropped)
	assert.Len(t, res.Bars, 1)
}

func TestParse_SemicolonWithDecimalPoint(t *testing.T) {
	in := "Data;Abertura;Máxima;Mínima;Fechamento\n02/01/2024;100.50;101.5;99.25;100\n"

	res, err := Parse(strings.NewReader(in), Options{})
	require.NoError(t, err)
	assert.Zero(t, res.Dropped)
	require.Len(t, res.Bars, 1)

	b := res.Bars[0]
	assert.InDelta(t, 100.5, b.Open, 1e-9)
	assert.InDelta(t, 101.5, b.High, 1e-9)
	assert.InDelta(t, 99.25, b.Low, 1e-9)
	assert.InDelta(t, 100.0, b.Close, 1e-9)
}

func TestParse_DecimalCommaRejectsStrayPoint(t *testing.T) {
	in := "Data;Abertura;Máxima;Mínima;Fechamento\n" +
		"02/01/2024;100,50;101,00;99,00;100,00\n" +
		"03/01/2024;100.50;101,5;99,25;100\n"

	res, err := Parse(strings.NewReader(in), Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Dropped)
	require.Len(t, res.Bars, 1)
	assert.InDelta(t, 100.5, res.Bars[0].Open, 1e-9)
}

func TestParse_Latin1HeaderWithBadValues(t *testing.T) {
	in := "DATA;HORA;ABERTURA;MÁXIMA;MÍNIMA;FECHAMENTO\n" +
		"02/01/2024;10:00;100,00;100,60;99,90;100,40\n" +
		"02/01/2024;10:15;100,40;NaN;100,10;100,30\n" +
		"02/01/2024;10:30;100,30;1.00,5;100,10;100,30\n"
	encoded, err := charmap.ISO8859_1.NewEncoder().String(in)
	require.NoError(t, err)

	res, err := Parse(bytes.NewReader([]byte(encoded)), Options{Intraday: true})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Dropped)
	require.Len(t, res.Bars, 1)
	assert.InDelta(t, 100.6, res.Bars[0].High, 1e-9)
}

func TestFold(t *testing.T) {
	assert.Equal(t, "maxima", fold(" Máxima "))
	assert.Equal(t, "minima", fold("MÍNIMA"))
}
