package coupon

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockCouponRepo struct {
	rule          *Rule
	err           error
	lookups       int
	incrementErr  error
	incrementCode string
}

func (m *mockCouponRepo) FindByCode(_ context.Context, _ string) (*Rule, error) {
	m.lookups++
	return m.rule, m.err
}

func (m *mockCouponRepo) IncrementUses(_ context.Context, code string) error {
	m.incrementCode = code
	return m.incrementErr
}

func TestRepoValidator_Validate(t *testing.T) {
	fixedNow := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	pastTime := fixedNow.Add(-24 * time.Hour)
	futureTime := fixedNow.Add(24 * time.Hour)

	tests := []struct {
		name       string
		repo       *mockCouponRepo
		code       string
		items      []Item
		wantAmount decimal.Decimal
		wantErr    error
	}{
		{
			name: "valid code returns discount",
			repo: &mockCouponRepo{
				rule: &Rule{
					Code:         "SAVE10",
					DiscountType: DiscountPercentage,
					Value:        decimal.NewFromInt(10),
					Description:  "10% off",
				},
			},
			code: "SAVE10",
			items: []Item{
				{ProductID: "p1", Price: decimal.NewFromInt(100), Quantity: 1},
			},
			wantAmount: decimal.NewFromInt(10),
		},
		{
			name: "unknown code returns ErrInvalidCoupon",
			repo: &mockCouponRepo{err: ErrInvalidCoupon},
			code: "BOGUS",
			items: []Item{
				{ProductID: "p1", Price: decimal.NewFromInt(50), Quantity: 1},
			},
			wantErr: ErrInvalidCoupon,
		},
		{
			name: "not yet valid returns ErrCouponExpired",
			repo: &mockCouponRepo{
				rule: &Rule{
					Code:         "SOON",
					DiscountType: DiscountFixed,
					Value:        decimal.NewFromInt(5),
					ValidFrom:    &futureTime,
				},
			},
			code:    "SOON",
			items:   []Item{{ProductID: "p1", Price: decimal.NewFromInt(50), Quantity: 1}},
			wantErr: ErrCouponExpired,
		},
		{
			name: "past window returns ErrCouponExpired",
			repo: &mockCouponRepo{
				rule: &Rule{
					Code:         "GONE",
					DiscountType: DiscountFixed,
					Value:        decimal.NewFromInt(5),
					ValidUntil:   &pastTime,
				},
			},
			code:    "GONE",
			items:   []Item{{ProductID: "p1", Price: decimal.NewFromInt(50), Quantity: 1}},
			wantErr: ErrCouponExpired,
		},
		{
			name: "usage limit reached",
			repo: &mockCouponRepo{
				rule: &Rule{
					Code:         "MAXED",
					DiscountType: DiscountFixed,
					Value:        decimal.NewFromInt(5),
					MaxUses:      3,
					Uses:         3,
				},
			},
			code:    "MAXED",
			items:   []Item{{ProductID: "p1", Price: decimal.NewFromInt(50), Quantity: 1}},
			wantErr: ErrCouponUsageLimitReached,
		},
		{
			name: "min items not met returns ErrInvalidCoupon",
			repo: &mockCouponRepo{
				rule: &Rule{
					Code:         "MIN3",
					DiscountType: DiscountFixed,
					Value:        decimal.NewFromInt(5),
					MinItems:     3,
				},
			},
			code:    "MIN3",
			items:   []Item{{ProductID: "p1", Price: decimal.NewFromInt(50), Quantity: 1}},
			wantErr: ErrInvalidCoupon,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewRepoValidator(tt.repo)
			v.now = func() time.Time { return fixedNow }

			got, err := v.Validate(context.Background(), tt.code, tt.items)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, got)
			assert.True(t, tt.wantAmount.Equal(got.Amount),
				"want %s, got %s", tt.wantAmount, got.Amount)
			assert.Equal(t, tt.code, tt.repo.incrementCode)
		})
	}
}

func TestRepoValidator_IncrementError(t *testing.T) {
	repo := &mockCouponRepo{
		rule: &Rule{
			Code:         "INC",
			DiscountType: DiscountFixed,
			Value:        decimal.NewFromInt(5),
		},
		incrementErr: errors.New("db write failed"),
	}
	v := NewRepoValidator(repo)

	_, err := v.Validate(context.Background(), "INC",
		[]Item{{ProductID: "p1", Price: decimal.NewFromInt(50), Quantity: 1}})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "increment coupon uses")
}

func TestMemoryRepository(t *testing.T) {
	repo := NewMemoryRepository(Rule{
		Code:         "SAVE10",
		DiscountType: DiscountPercentage,
		Value:        decimal.NewFromInt(10),
	})

	// Lookup is case-insensitive.
	rule, err := repo.FindByCode(context.Background(), "save10")
	require.NoError(t, err)
	assert.Equal(t, "SAVE10", rule.Code)

	_, err = repo.FindByCode(context.Background(), "NOPE")
	require.ErrorIs(t, err, ErrInvalidCoupon)

	require.NoError(t, repo.IncrementUses(context.Background(), "SAVE10"))
	rule, err = repo.FindByCode(context.Background(), "SAVE10")
	require.NoError(t, err)
	assert.Equal(t, 1, rule.Uses)
}

func TestPrefilterValidator(t *testing.T) {
	set := codeSetOf(t, "HAPPYHRS", "FIFTYOFF")

	repo := &mockCouponRepo{
		rule: &Rule{
			Code:         "HAPPYHRS",
			DiscountType: DiscountPercentage,
			Value:        decimal.NewFromInt(18),
		},
	}
	v := NewPrefilterValidator(set, NewRepoValidator(repo))
	cartItems := []Item{{ProductID: "p1", Price: decimal.NewFromInt(100), Quantity: 1}}

	got, err := v.Validate(context.Background(), "HAPPYHRS", cartItems)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(18).Equal(got.Amount))
	assert.Equal(t, 1, repo.lookups)

	// Unknown codes are rejected without touching the repository.
	_, err = v.Validate(context.Background(), "NOTACODE", cartItems)
	require.ErrorIs(t, err, ErrInvalidCoupon)
	assert.Equal(t, 1, repo.lookups)
}
