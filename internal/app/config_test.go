package app

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCartDefaults(t *testing.T) {
	cfg := &Config{
		DeliveryFee:           "2.99",
		FreeDeliveryThreshold: "500",
	}

	defaults, err := cfg.CartDefaults()
	require.NoError(t, err)

	assert.True(t, decimal.RequireFromString("2.99").Equal(defaults.DeliveryFee))
	assert.True(t, decimal.RequireFromString("500").Equal(defaults.FreeDeliveryThreshold))
}

func TestCartDefaults_Invalid(t *testing.T) {
	_, err := (&Config{DeliveryFee: "free", FreeDeliveryThreshold: "500"}).CartDefaults()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse delivery fee")

	_, err = (&Config{DeliveryFee: "2.99", FreeDeliveryThreshold: "lots"}).CartDefaults()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse free delivery threshold")
}
