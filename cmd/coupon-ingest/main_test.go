package main

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketloop/storefront/internal/domain/coupon"
)

func TestDecodeCoupon(t *testing.T) {
	line := []byte(`{"code":"SAVE15","description":"15% off","discountType":"percentage",` +
		`"amount":15,"minPurchase":20,"maxDiscount":10,"applicableCategories":["catA","catB"],` +
		`"newUserOnly":true,"expiresAt":"2026-01-01T00:00:00Z"}`)

	c, err := decodeCoupon(line)
	require.NoError(t, err)
	assert.Equal(t, "SAVE15", c.Code)
	assert.Equal(t, coupon.DiscountPercentage, c.DiscountType)
	assert.True(t, c.Amount.Equal(decimal.NewFromInt(15)))
	assert.True(t, c.MinPurchase.Equal(decimal.NewFromInt(20)))
	assert.True(t, c.MaxDiscount.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, []string{"catA", "catB"}, c.ApplicableCategories)
	assert.True(t, c.NewUserOnly)
	assert.NotEmpty(t, c.ID)
}

func TestDecodeCoupon_RejectsOutOfSchemaRecords(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"missing code", `{"discountType":"fixed","amount":5,"expiresAt":"2026-01-01T00:00:00Z"}`},
		{"unknown discount type", `{"code":"X","discountType":"bogo","amount":5,"expiresAt":"2026-01-01T00:00:00Z"}`},
		{"percentage over 100", `{"code":"X","discountType":"percentage","amount":150,"expiresAt":"2026-01-01T00:00:00Z"}`},
		{"zero percentage", `{"code":"X","discountType":"percentage","amount":0,"expiresAt":"2026-01-01T00:00:00Z"}`},
		{"zero fixed amount", `{"code":"X","discountType":"fixed","amount":0,"expiresAt":"2026-01-01T00:00:00Z"}`},
		{"negative minPurchase", `{"code":"X","discountType":"fixed","amount":5,"minPurchase":-1,"expiresAt":"2026-01-01T00:00:00Z"}`},
		{"negative maxDiscount", `{"code":"X","discountType":"fixed","amount":5,"maxDiscount":-1,"expiresAt":"2026-01-01T00:00:00Z"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeCoupon([]byte(tt.line))
			assert.Error(t, err)
		})
	}
}
