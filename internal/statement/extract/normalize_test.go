package extract_test

import (
	"testing"

	"billwatch-backend/internal/statement/extract"

	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty", input: "", want: ""},
		{name: "rupee mojibake", input: "â‚¹ 1,234.00", want: "₹ 1,234.00"},
		{name: "euro mojibake", input: "â‚¬50", want: "€50"},
		{name: "pound mojibake", input: "Â£12", want: "£12"},
		{name: "nbsp mojibake", input: "Rs.Â\u00a0500", want: "Rs. 500"},
		{name: "whitespace", input: "  12\t\u00a0 Jan\n2025 ", want: "12 Jan 2025"},
		{name: "nested mojibake", input: "ÂÂ££", want: "££"},
		{name: "mixed sequences", input: "â‚¹10 â‚¬5Â\u00a0Â£2", want: "₹10 €5 £2"},
		{name: "ascii dollar untouched", input: "Â$5", want: "Â$5"},
		{name: "already clean", input: "₹ 99.50", want: "₹ 99.50"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, extract.Normalize(tt.input))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"",
		"   ",
		"â‚¹â‚¹ 10",
		"ÂÂ££",
		"Ââ‚¹",
		"Total\u00a0\u00a0Amount   Due",
		"Â\u00a0Â\u00a0",
		"plain text",
	}
	for _, in := range inputs {
		once := extract.Normalize(in)
		require.Equal(t, once, extract.Normalize(once), "input %q", in)
	}
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{input: "1,234.00", want: "1234.00"},
		{input: "1234", want: "1234.00"},
		{input: " 99.5 ", want: "99.50"},
		{input: "₹ 1,000", want: "1000.00"},
		{input: "abc", wantErr: true},
		{input: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := extract.FormatAmount(tt.input)
		if tt.wantErr {
			require.Error(t, err, "input %q", tt.input)
			continue
		}
		require.NoError(t, err)
		require.Equal(t, tt.want, got)
	}
	require.Equal(t, "1234.00", extract.NormalizeAmount(" 1,234.00"))
}
