package billing

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestFee_Total(t *testing.T) {
	tests := []struct {
		name     string
		lines    []FeeLine
		discount decimal.Decimal
		want     int64
	}{
		{name: "no lines", want: 0},
		{
			name:  "single line",
			lines: []FeeLine{{UnitAmount: decimal.NewFromInt(150), Quantity: 1}},
			want:  150,
		},
		{
			name: "quantity multiplies",
			lines: []FeeLine{
				{UnitAmount: decimal.NewFromInt(150), Quantity: 2},
				{UnitAmount: decimal.NewFromInt(20), Quantity: 1},
			},
			want: 320,
		},
		{
			name:     "discount applies",
			lines:    []FeeLine{{UnitAmount: decimal.NewFromInt(150), Quantity: 1}},
			discount: decimal.NewFromInt(30),
			want:     120,
		},
		{
			name:     "discount floors at zero",
			lines:    []FeeLine{{UnitAmount: decimal.NewFromInt(50), Quantity: 1}},
			discount: decimal.NewFromInt(80),
			want:     0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fee := Fee{Lines: tt.lines, Discount: tt.discount}
			if got := fee.Total(); !got.Equal(decimal.NewFromInt(tt.want)) {
				t.Errorf("Total() = %s, want %d", got, tt.want)
			}
		})
	}
}

func TestFee_Balance(t *testing.T) {
	fee := Fee{
		Lines:      []FeeLine{{UnitAmount: decimal.NewFromInt(150), Quantity: 1}},
		PaidAmount: decimal.NewFromInt(90),
	}
	if got := fee.Balance(); !got.Equal(decimal.NewFromInt(60)) {
		t.Errorf("Balance() = %s, want 60", got)
	}
}
