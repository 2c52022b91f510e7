package coupon

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func items(prices ...string) []Item {
	out := make([]Item, len(prices))
	for i, p := range prices {
		out[i] = Item{
			ProductID: "p" + p,
			Price:     decimal.RequireFromString(p),
			Quantity:  1,
		}
	}
	return out
}

func TestApply(t *testing.T) {
	tests := []struct {
		name       string
		rule       Rule
		items      []Item
		wantAmount string
		wantErr    error
	}{
		{
			name: "percentage discount",
			rule: Rule{DiscountType: DiscountPercentage, Value: decimal.NewFromInt(10)},
			items: []Item{
				{ProductID: "p1", Price: decimal.RequireFromString("50.00"), Quantity: 2},
			},
			wantAmount: "10.00",
		},
		{
			name: "percentage rounds to cents",
			rule: Rule{DiscountType: DiscountPercentage, Value: decimal.NewFromInt(15)},
			items: []Item{
				{ProductID: "p1", Price: decimal.RequireFromString("3.99"), Quantity: 1},
			},
			wantAmount: "0.60", // 0.5985 rounded
		},
		{
			name:       "fixed discount",
			rule:       Rule{DiscountType: DiscountFixed, Value: decimal.NewFromInt(5)},
			items:      items("10.00", "20.00"),
			wantAmount: "5.00",
		},
		{
			name:       "fixed discount capped at subtotal",
			rule:       Rule{DiscountType: DiscountFixed, Value: decimal.NewFromInt(50)},
			items:      items("10.00"),
			wantAmount: "10.00",
		},
		{
			name:       "free lowest item",
			rule:       Rule{DiscountType: DiscountFreeLowest},
			items:      items("12.50", "3.25", "7.00"),
			wantAmount: "3.25",
		},
		{
			name:       "free lowest with empty cart",
			rule:       Rule{DiscountType: DiscountFreeLowest},
			items:      nil,
			wantAmount: "0",
		},
		{
			name: "min items not met",
			rule: Rule{DiscountType: DiscountFixed, Value: decimal.NewFromInt(5), MinItems: 3},
			items: []Item{
				{ProductID: "p1", Price: decimal.RequireFromString("10.00"), Quantity: 2},
			},
			wantErr: ErrInvalidCoupon,
		},
		{
			name: "min items counts quantities",
			rule: Rule{DiscountType: DiscountFixed, Value: decimal.NewFromInt(5), MinItems: 3},
			items: []Item{
				{ProductID: "p1", Price: decimal.RequireFromString("10.00"), Quantity: 3},
			},
			wantAmount: "5.00",
		},
		{
			name: "percentage capped by max discount",
			rule: Rule{
				DiscountType: DiscountPercentage,
				Value:        decimal.NewFromInt(50),
				MaxDiscount:  decimal.RequireFromString("7.50"),
			},
			items:      items("100.00"),
			wantAmount: "7.50",
		},
		{
			name:    "unsupported type",
			rule:    Rule{DiscountType: DiscountType("bogo")},
			items:   items("10.00"),
			wantErr: nil, // checked separately below via error message
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Apply(&tt.rule, tt.items)

			if tt.rule.DiscountType == DiscountType("bogo") {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "unsupported discount type")
				return
			}
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			want := decimal.RequireFromString(tt.wantAmount)
			assert.True(t, want.Equal(got.Amount),
				"want %s, got %s", want, got.Amount)
		})
	}
}
