package parser_test

import (
	"errors"
	"testing"

	"billwatch-backend/internal/statement/parser"

	"github.com/stretchr/testify/require"
)

func TestParseRecordIgnoresTrailingExplanation(t *testing.T) {
	out := `{"Due Date":"01-05-2025","Total Amount Due":"100.00","Bank Name":"X"}This JSON format is provided for you for clarity.`

	rec, err := parser.NewParser().ParseRecord(out)

	require.NoError(t, err)
	require.Equal(t, "01-05-2025", rec.DueDate)
	require.Equal(t, "100.00", rec.TotalAmountDue)
	require.Equal(t, "X", rec.BankName)
	require.Empty(t, rec.CardHolderName)
}

func TestParseRecordWithCardHolderAndFence(t *testing.T) {
	out := "```json\n{\"Due Date\": \"10-03-2025\", \"Total Amount Due\": \"2000.00\", \"Bank Name\": \" HDFC Bank \", \"Card Holder Name\": \"A Kumar\"}\n```"

	rec, err := parser.NewParser().ParseRecord(out)

	require.NoError(t, err)
	require.Equal(t, "HDFC Bank", rec.BankName)
	require.Equal(t, "A Kumar", rec.CardHolderName)
}

func TestParseRecordRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		out  string
	}{
		{name: "empty", out: ""},
		{name: "prose", out: "Sorry, I could not find a due date."},
		{name: "missing bank", out: `{"Due Date":"01-05-2025","Total Amount Due":"100.00"}`},
		{name: "numeric amount", out: `{"Due Date":"01-05-2025","Total Amount Due":100.00,"Bank Name":"X"}`},
		{name: "unknown key", out: `{"Due Date":"01-05-2025","Total Amount Due":"1","Bank Name":"X","Note":"n"}`},
		{name: "unmarked trailing text", out: `{"Due Date":"01-05-2025","Total Amount Due":"1","Bank Name":"X"} Hope this helps!`},
		{name: "array", out: `[{"Due Date":"01-05-2025"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := parser.NewParser().ParseRecord(tt.out)
			require.Nil(t, rec)
			var perr *parser.ParseError
			require.True(t, errors.As(err, &perr))
			require.Equal(t, tt.out, perr.Output)
		})
	}
}

func TestParseRecordCustomMarkers(t *testing.T) {
	p := parser.NewParser("Hope this helps", "  ")
	out := `{"Due Date":"01-05-2025","Total Amount Due":"1.00","Bank Name":"X"} Hope this helps!`

	rec, err := p.ParseRecord(out)

	require.NoError(t, err)
	require.Equal(t, "1.00", rec.TotalAmountDue)
}

func TestParsePaidAmount(t *testing.T) {
	p := parser.NewParser()

	paid, err := p.ParsePaidAmount(`{"Total Amount Due": "1234.00"} This JSON format is provided for you.`)
	require.NoError(t, err)
	require.Equal(t, "1234.00", paid.TotalAmountDue)

	_, err = p.ParsePaidAmount(`{"Total Amount Due": ""}`)
	var perr *parser.ParseError
	require.ErrorAs(t, err, &perr)
}

func TestCutUsesEarliestMarker(t *testing.T) {
	p := parser.NewParser("B-marker", "A-marker")
	require.Equal(t, "{}", p.Cut("{} A-marker then B-marker"))
}
